package module

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wudi/ember/vm"
)

func TestLoaderDetectsCircularImport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ember"), []byte(`import "./b";`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.ember"), []byte(`import "./a";`), 0o644))

	interpreter := vm.New()
	loader := New(interpreter)
	interpreter.Importer = loader
	require.NoError(t, loader.AddSearchPath(dir))

	_, err := loader.Import("a")
	require.Error(t, err)

	canonA, err := resolve("a", "", []string{dir})
	require.NoError(t, err)
	rec := loader.Record(canonA)
	require.NotNil(t, rec)
	require.Equal(t, StatusFailed, rec.Status)
}

func TestLoaderCachesSuccessfulImport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.ember"), []byte(`export default 42;`), 0o644))

	interpreter := vm.New()
	loader := New(interpreter)
	interpreter.Importer = loader
	require.NoError(t, loader.AddSearchPath(dir))

	first, err := loader.Import("util")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := loader.Import("util")
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestLoaderRejectsModuleRegistryOverflow(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only.ember"), []byte(`export default 1;`), 0o644))

	interpreter := vm.New()
	loader := New(interpreter)
	interpreter.Importer = loader
	loader.SetMaxModules(0)
	require.NoError(t, loader.AddSearchPath(dir))

	_, err := loader.Import("only")
	require.Error(t, err)
}
