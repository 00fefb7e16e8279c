package module

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/wudi/ember/compiler"
	"github.com/wudi/ember/internal/diag"
	"github.com/wudi/ember/values"
	"github.com/wudi/ember/vm"
)

// DefaultMaxModules bounds a VM's module registry.
const DefaultMaxModules = 256

// Loader implements vm.Importer: it drives the compiler recursively
// per imported file and exposes the module file's exports back to the
// importing chunk's OP_IMPORT. One Loader belongs to exactly one VM;
// the module registry is VM-scoped.
type Loader struct {
	mu          sync.Mutex
	vm          *vm.VM
	registry    map[string]*Record
	searchPaths []string
	maxModules  int
	dirStack    []string

	group singleflight.Group
}

// New creates a Loader bound to vm with the default module-capacity
// limit. Register it as vm.Importer before the first `import`
// statement runs.
func New(v *vm.VM) *Loader {
	return &Loader{
		vm:         v,
		registry:   make(map[string]*Record),
		maxModules: DefaultMaxModules,
	}
}

// SetMaxModules overrides DefaultMaxModules.
func (l *Loader) SetMaxModules(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxModules = n
}

// AddSearchPath registers a custom directory searched before the
// built-in locations, after validating it.
func (l *Loader) AddSearchPath(dir string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := validateSearchPath(dir, l.searchPaths); err != nil {
		diag.Logf(diag.ModulePath, "rejected search path %q: %v", dir, err)
		return err
	}
	l.searchPaths = append(l.searchPaths, dir)
	diag.Logf(diag.ModulePath, "registered search path %s", dir)
	return nil
}

// ResolveModulePath exposes the resolver's search-path walk without
// loading the module, for the embedding API's resolve_module_path.
func (l *Loader) ResolveModulePath(name string) (string, error) {
	l.mu.Lock()
	dir := l.currentDir()
	paths := append([]string(nil), l.searchPaths...)
	l.mu.Unlock()
	return resolve(name, dir, paths)
}

// Record returns a copy of the registry entry for a canonical path, or
// nil if the path has never been imported.
func (l *Loader) Record(canonicalPath string) *Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.registry[canonicalPath]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (l *Loader) currentDir() string {
	if len(l.dirStack) == 0 {
		return ""
	}
	return l.dirStack[len(l.dirStack)-1]
}

// Import implements vm.Importer. It is only ever called from inside
// OP_IMPORT, itself only reached from the locked VM dispatch loop, so
// every compile-and-run below happens with vm.mu already held; that is
// precisely why RunModuleLocked must not try to re-lock it.
func (l *Loader) Import(path string) (*values.Value, error) {
	diag.Logf(diag.Import, "import %q", path)

	l.mu.Lock()
	dir := l.currentDir()
	paths := append([]string(nil), l.searchPaths...)
	l.mu.Unlock()

	canon, err := resolve(path, dir, paths)
	if err != nil {
		diag.Logf(diag.Module, "resolve failed for %q: %v", path, err)
		return nil, err
	}

	l.mu.Lock()
	if rec, ok := l.registry[canon]; ok {
		switch rec.Status {
		case StatusLoaded:
			l.mu.Unlock()
			return rec.Exports, nil
		case StatusLoading:
			l.mu.Unlock()
			diag.Logf(diag.Module, "circular dependency on %s", canon)
			return nil, fmt.Errorf("circular dependency importing %s", canon)
		case StatusFailed:
			l.mu.Unlock()
			return nil, fmt.Errorf("module %s previously failed to load", canon)
		}
	}
	if len(l.registry) >= l.maxModules {
		l.mu.Unlock()
		diag.Logf(diag.Module, "module registry at capacity (%d)", l.maxModules)
		return nil, fmt.Errorf("module registry capacity (%d) exceeded", l.maxModules)
	}
	rec := &Record{Name: filepath.Base(canon), Path: canon, Status: StatusLoading}
	l.registry[canon] = rec
	l.mu.Unlock()

	result, err, _ := l.group.Do(canon, func() (any, error) {
		return l.compileAndRun(canon)
	})
	if err != nil {
		l.mu.Lock()
		if r := l.registry[canon]; r != nil && r.Status == StatusLoading {
			r.Status = StatusFailed
		}
		l.mu.Unlock()
		diag.Logf(diag.Module, "load failed for %s: %v", canon, err)
		return nil, err
	}

	modVal := result.(*values.Value)
	l.mu.Lock()
	rec.Status = StatusLoaded
	rec.Exports = modVal
	l.mu.Unlock()
	diag.Logf(diag.Module, "loaded %s", canon)
	return modVal, nil
}

// compileAndRun reads, compiles, and executes one module file,
// pushing/popping the loader's "currently importing from" directory
// so nested relative imports resolve against the right base.
func (l *Loader) compileAndRun(canon string) (*values.Value, error) {
	src, err := os.ReadFile(canon)
	if err != nil {
		diag.Logf(diag.Library, "read failed for %s: %v", canon, err)
		return nil, err
	}

	l.mu.Lock()
	l.dirStack = append(l.dirStack, filepath.Dir(canon))
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.dirStack = l.dirStack[:len(l.dirStack)-1]
		l.mu.Unlock()
	}()

	comp := compiler.New(string(src), l.vm.Interns())
	comp.SetCurrentFile(canon)
	chunk := comp.Compile()
	if comp.Errors().HasErrors() {
		return nil, fmt.Errorf("compile error in %s:\n%s", canon, comp.Errors().String())
	}

	modVal, err := l.vm.RunModuleLocked(chunk)
	if err != nil {
		return nil, err
	}
	return modVal, nil
}
