// Package module implements Ember's module resolver/loader: path validation, the absent/loading/loaded/failed status
// machine, the fixed search-path order, cycle detection, and a per-path
// singleflight group around each compile-and-run.
package module

import "github.com/wudi/ember/values"

// Status is a module record's position in the loading state
// machine: absent -> loading -> {loaded, failed}. Once loaded, a
// record never transitions back to loading.
type Status int

const (
	StatusAbsent Status = iota
	StatusLoading
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Record is one entry in a VM-scoped module registry:
// name, canonical path, loading status, exports, and a Deps list for
// the module paths it imports. Loader.Import never fills Deps, so it
// stays empty; cycles are caught only by the loading-status check.
type Record struct {
	Name    string
	Path    string
	Status  Status
	Exports *values.Value
	Deps    []string
}
