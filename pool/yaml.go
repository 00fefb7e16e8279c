package pool

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlConfig mirrors Config but with string durations, since
// time.Duration doesn't round-trip through yaml.v3 without a custom
// type; everything else matches Config field-for-field.
type yamlConfig struct {
	InitialVMCount        int      `yaml:"initial_vm_count"`
	MaxVMCount            int      `yaml:"max_vm_count"`
	VMIdleTimeout         string   `yaml:"vm_idle_timeout"`
	EnableVMReuse         bool     `yaml:"enable_vm_reuse"`
	EnableBytecodeCaching bool     `yaml:"enable_bytecode_caching"`
	EnableHotReload       bool     `yaml:"enable_hot_reload"`
	HotReloadDir          string   `yaml:"hot_reload_dir"`
	MaxScriptCacheSize    int      `yaml:"max_script_cache_size"`
	ScriptCacheTTL        string   `yaml:"script_cache_ttl"`
	ClearMemoryOnRelease  bool     `yaml:"clear_memory_on_release"`
	PerThreadVMLimit      int      `yaml:"per_thread_vm_limit"`
	RateLimitWindow       string   `yaml:"rate_limit_window"`
	RateLimitMax          int      `yaml:"rate_limit_max"`
	ModuleSearchPaths     []string `yaml:"module_search_paths"`
}

// LoadConfigFile reads a pool.Config from a YAML file, the convenience
// the embedding CLI uses to read pool tuning from disk. Durations are plain
// strings parsed with time.ParseDuration ("30s", "5m", ...).
func LoadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return Config{}, fmt.Errorf("parsing pool config %s: %w", path, err)
	}

	cfg := Config{
		InitialVMCount:        yc.InitialVMCount,
		MaxVMCount:            yc.MaxVMCount,
		EnableVMReuse:         yc.EnableVMReuse,
		EnableBytecodeCaching: yc.EnableBytecodeCaching,
		EnableHotReload:       yc.EnableHotReload,
		HotReloadDir:          yc.HotReloadDir,
		MaxScriptCacheSize:    yc.MaxScriptCacheSize,
		ClearMemoryOnRelease:  yc.ClearMemoryOnRelease,
		PerThreadVMLimit:      yc.PerThreadVMLimit,
		RateLimitMax:          yc.RateLimitMax,
		ModuleSearchPaths:     yc.ModuleSearchPaths,
	}

	for _, d := range []struct {
		src string
		dst *time.Duration
	}{
		{yc.VMIdleTimeout, &cfg.VMIdleTimeout},
		{yc.ScriptCacheTTL, &cfg.ScriptCacheTTL},
		{yc.RateLimitWindow, &cfg.RateLimitWindow},
	} {
		if d.src == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.src)
		if err != nil {
			return Config{}, fmt.Errorf("parsing pool config %s: %w", path, err)
		}
		*d.dst = parsed
	}

	return normalize(cfg), nil
}
