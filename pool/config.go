package pool

import (
	"runtime"
	"time"

	"github.com/wudi/ember/vm"
)

// Config tunes a Pool. It is a plain Go struct with documented
// zero-value defaults; LoadConfigFile offers optional YAML loading
// for embedders that want file-based tuning.
type Config struct {
	// InitialVMCount is how many VM entries Start pre-creates. Zero
	// means runtime.NumCPU() * 2.
	InitialVMCount int
	// MaxVMCount caps how many entries the pool will ever grow to.
	// Zero means runtime.NumCPU() * 8.
	MaxVMCount int

	VMIdleTimeout time.Duration

	EnableVMReuse         bool
	EnableBytecodeCaching bool
	EnableHotReload       bool
	HotReloadDir          string

	MaxScriptCacheSize int
	ScriptCacheTTL     time.Duration

	// Security flags.
	ClearMemoryOnRelease bool
	PerThreadVMLimit     int
	RateLimitWindow      time.Duration
	RateLimitMax         int

	// ModuleSearchPaths is threaded into every VM's Loader via
	// AddSearchPath at entry-creation time.
	ModuleSearchPaths []string

	// VMSetup, when non-nil, runs once per freshly created entry so an
	// embedder can install its native functions (register_func) before
	// the VM serves any task.
	VMSetup func(*vm.VM)
}

// DefaultConfig returns a Config with every zero-value default
// resolved: CPU-scaled VM counts, bytecode caching and VM reuse on,
// hot reload and rate limiting off.
func DefaultConfig() Config {
	cpu := runtime.NumCPU()
	return Config{
		InitialVMCount:        cpu * 2,
		MaxVMCount:            cpu * 8,
		VMIdleTimeout:         5 * time.Minute,
		EnableVMReuse:         true,
		EnableBytecodeCaching: true,
		MaxScriptCacheSize:    512,
		ScriptCacheTTL:        10 * time.Minute,
	}
}

// normalize applies the "0 means CPU count x N" defaulting rule
// to a user-supplied Config: zero VM counts get the CPU-scaled
// defaults, a non-positive MaxScriptCacheSize becomes 512, and
// InitialVMCount is clamped to MaxVMCount. Other fields are kept as given.
func normalize(cfg Config) Config {
	if cfg.InitialVMCount == 0 {
		cfg.InitialVMCount = runtime.NumCPU() * 2
	}
	if cfg.MaxVMCount == 0 {
		cfg.MaxVMCount = runtime.NumCPU() * 8
	}
	if cfg.MaxScriptCacheSize <= 0 {
		cfg.MaxScriptCacheSize = 512
	}
	if cfg.InitialVMCount > cfg.MaxVMCount {
		cfg.InitialVMCount = cfg.MaxVMCount
	}
	return cfg
}
