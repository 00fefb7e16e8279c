package module

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/wudi/ember/internal/diag"
)

// ScriptExt is the language's source-file extension; a directory
// module's entry point is PackageEntry.
const (
	ScriptExt   = ".ember"
	PackageEntry = "package.ember"
)

// identifierish is the simple module-path grammar: path segments of letters, digits, `_`, `-`, separated by
// `/`, optionally led by a single `./` relative marker. No `..`
// segment is ever valid regardless of this pattern — validate() checks
// that separately so the rejection reason is reported precisely.
var identifierish = regexp.MustCompile(`^(\./)?[A-Za-z0-9_][A-Za-z0-9_\-./]*$`)

// validate rejects anything that isn't a
// simple identifier-ish path, and reject path traversal outright.
func validate(name string) error {
	if name == "" {
		return fmt.Errorf("module path is empty")
	}
	if strings.Contains(name, "..") {
		diag.Logf(diag.Security, "rejected module path %q: path traversal", name)
		return fmt.Errorf("module path %q contains '..'", name)
	}
	if !identifierish.MatchString(name) {
		diag.Logf(diag.Security, "rejected module path %q: invalid characters", name)
		return fmt.Errorf("module path %q is not a valid module identifier", name)
	}
	return nil
}

// searchRoots returns, in fixed order, the directories a module name
// should be tried against: (a) the
// VM's custom search paths, (b) the current working directory, (c) a
// user packages directory, (d) a system packages directory, (e) the
// standard-library directory, (f) the directory holding the running
// executable's lib/ subdirectory.
func searchRoots(customPaths []string) []string {
	var roots []string
	roots = append(roots, customPaths...)

	if cwd, err := os.Getwd(); err == nil {
		roots = append(roots, cwd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, ".ember", "packages"))
	}
	roots = append(roots, "/usr/local/lib/ember/packages")
	roots = append(roots, "/usr/local/lib/ember/stdlib")
	if exe, err := os.Executable(); err == nil {
		roots = append(roots, filepath.Join(filepath.Dir(exe), "lib"))
	}
	return roots
}

// candidatesIn returns the two layouts tried under a single root: "P/M.ember" and "P/M/package.ember".
func candidatesIn(root, name string) []string {
	return []string{
		filepath.Join(root, name+ScriptExt),
		filepath.Join(root, name, PackageEntry),
	}
}

// resolve turns a validated module path into an absolute file path,
// honoring relative ("./x") imports against importingDir before
// falling back to the fixed search-path order. It returns the
// canonical (symlink-resolved, cleaned) path so the registry can key
// on it without accumulating duplicate entries for the same file
//.
func resolve(name string, importingDir string, customPaths []string) (string, error) {
	if err := validate(name); err != nil {
		return "", err
	}

	var candidates []string
	if strings.HasPrefix(name, "./") {
		rel := strings.TrimPrefix(name, "./")
		base := importingDir
		if base == "" {
			if cwd, err := os.Getwd(); err == nil {
				base = cwd
			}
		}
		candidates = candidatesIn(base, rel)
	} else {
		for _, root := range searchRoots(customPaths) {
			candidates = append(candidates, candidatesIn(root, name)...)
		}
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			canon, err := filepath.EvalSymlinks(c)
			if err != nil {
				canon = filepath.Clean(c)
			}
			diag.Logf(diag.Resolve, "resolved %q -> %s", name, canon)
			return canon, nil
		}
	}

	diag.Logf(diag.Resolve, "module %q not found in any search path", name)
	return "", fmt.Errorf("module %q not found", name)
}

// validateSearchPath validates a directory handed to AddSearchPath: it must
// exist, be a directory, be readable, not contain "..", and be unique
// among the VM's already-registered search paths.
func validateSearchPath(dir string, existing []string) error {
	if strings.Contains(dir, "..") {
		return fmt.Errorf("search path %q contains '..'", dir)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("search path %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("search path %q is not a directory", dir)
	}
	f, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("search path %q is not readable: %w", dir, err)
	}
	f.Close()
	for _, e := range existing {
		if e == dir {
			return fmt.Errorf("search path %q already registered", dir)
		}
	}
	return nil
}
