package pool

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFileParsesDurationsAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pool.yaml")
	contents := `
initial_vm_count: 2
max_vm_count: 8
vm_idle_timeout: 90s
enable_bytecode_caching: true
max_script_cache_size: 128
module_search_paths:
  - /opt/ember/lib
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, cfg.InitialVMCount)
	require.Equal(t, 8, cfg.MaxVMCount)
	require.Equal(t, 90*time.Second, cfg.VMIdleTimeout)
	require.Equal(t, 128, cfg.MaxScriptCacheSize)
	require.Equal(t, []string{"/opt/ember/lib"}, cfg.ModuleSearchPaths)
}

func TestLoadConfigFileRejectsMalformedDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vm_idle_timeout: not-a-duration\n"), 0o644))

	_, err := LoadConfigFile(path)
	require.Error(t, err)
}
