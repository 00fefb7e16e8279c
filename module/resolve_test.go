package module

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRejectsTraversalAndBadChars(t *testing.T) {
	require.NoError(t, validate("json"))
	require.NoError(t, validate("./sibling"))
	require.Error(t, validate(""))
	require.Error(t, validate("../escape"))
	require.Error(t, validate("not a module"))
}

func TestResolveRelativeAgainstImportingDir(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sibling.ember")
	require.NoError(t, os.WriteFile(target, []byte("export 1;"), 0o644))

	canon, err := resolve("./sibling", dir, nil)
	require.NoError(t, err)

	wantCanon, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	require.Equal(t, wantCanon, canon)
}

func TestResolveSearchesCustomPathsBeforeFailing(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "util.ember")
	require.NoError(t, os.WriteFile(target, []byte("export 1;"), 0o644))

	canon, err := resolve("util", "", []string{dir})
	require.NoError(t, err)
	require.Contains(t, canon, "util.ember")

	_, err = resolve("does-not-exist", "", []string{dir})
	require.Error(t, err)
}

func TestResolvePackageEntryLayout(t *testing.T) {
	dir := t.TempDir()
	pkgDir := filepath.Join(dir, "widgets")
	require.NoError(t, os.Mkdir(pkgDir, 0o755))
	entry := filepath.Join(pkgDir, PackageEntry)
	require.NoError(t, os.WriteFile(entry, []byte("export 1;"), 0o644))

	canon, err := resolve("widgets", "", []string{dir})
	require.NoError(t, err)
	require.Contains(t, canon, PackageEntry)
}

func TestValidateSearchPathRejectsDuplicatesAndFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, validateSearchPath(dir, nil))
	require.Error(t, validateSearchPath(dir, []string{dir}))

	file := filepath.Join(dir, "notadir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	require.Error(t, validateSearchPath(file, nil))

	require.Error(t, validateSearchPath(filepath.Join(dir, "..", "escape"), nil))
}
