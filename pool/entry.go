package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wudi/ember/module"
	"github.com/wudi/ember/vm"
)

// State is one VM pool entry's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateExecuting
	StateError
	StateCleanup
)

// Entry is an owned interpreter plus its mutex, state, and per-entry
// counters. mu is the exclusivity lock serializing tasks that share
// the entry — Pool.Acquire locks it (via TryLock so a busy entry is
// skipped rather than blocked on), and
// Pool.Release unlocks it. Every other field is an atomic so the
// pool's idle-scan and statistics snapshot can read them without
// contending on mu, which the current holder keeps locked for the
// whole task.
type Entry struct {
	mu sync.Mutex

	id     int
	vm     *vm.VM
	loader *module.Loader

	state     atomic.Int32
	createdAt time.Time
	lastUsed  atomic.Int64 // unix nanoseconds

	execCount     atomic.Uint64
	totalExecTime atomic.Int64 // nanoseconds
}

func newEntry(id int, searchPaths []string, setup func(*vm.VM)) *Entry {
	v := vm.New()
	loader := module.New(v)
	v.Importer = loader
	for _, p := range searchPaths {
		_ = loader.AddSearchPath(p)
	}
	if setup != nil {
		setup(v)
	}
	e := &Entry{id: id, vm: v, loader: loader, createdAt: time.Now()}
	e.state.Store(int32(StateIdle))
	e.lastUsed.Store(time.Now().UnixNano())
	return e
}

// ID returns the entry's pool-assigned identity.
func (e *Entry) ID() int { return e.id }

// VM exposes the owned interpreter so a caller holding this entry
// (between Acquire and Release) can Eval/Run/Call on it.
func (e *Entry) VM() *vm.VM { return e.vm }

// Loader exposes the entry's module loader, e.g. for add_module_path.
func (e *Entry) Loader() *module.Loader { return e.loader }

// State reports the entry's current lifecycle state.
func (e *Entry) State() State { return State(e.state.Load()) }

// ExecCount and TotalExecTime report per-entry usage counters.
func (e *Entry) ExecCount() uint64             { return e.execCount.Load() }
func (e *Entry) TotalExecTime() time.Duration  { return time.Duration(e.totalExecTime.Load()) }

func (e *Entry) recordExec(d time.Duration, failed bool) {
	e.execCount.Add(1)
	e.totalExecTime.Add(int64(d))
	e.lastUsed.Store(time.Now().UnixNano())
	if failed {
		e.state.Store(int32(StateError))
	}
}

func (e *Entry) idleFor() time.Duration {
	return time.Since(time.Unix(0, e.lastUsed.Load()))
}
