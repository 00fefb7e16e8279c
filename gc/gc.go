// Package gc implements Ember's tracing mark-sweep collector over
// values.Object heap allocations, with allocation accounting and an
// adaptive collection threshold.
package gc

import (
	"sync"

	"github.com/wudi/ember/values"
)

// Stats is a point-in-time snapshot of collector activity, exposed
// for diagnostics and tests.
type Stats struct {
	Allocated  int64
	Freed      int64
	Live       int64
	Collections int64
	BytesEstimate int64
}

// RootProvider supplies the collector's root set: every *values.Value
// directly reachable without heap traversal (globals, the operand
// stack, call-frame locals, the string intern table).
type RootProvider interface {
	Roots() []*values.Value
}

// Collector is a simple non-generational tracing GC. It is VM-scoped:
// each VM instance owns exactly one Collector; no collector state is
// ever process-global.
type Collector struct {
	mu sync.Mutex

	allocated   int64
	freed       int64
	collections int64
	dirtyStores int64

	threshold int64 // Allocated - Freed count that triggers the next Collect
	growthFactor float64
}

// New creates a Collector with an initial collection threshold; it
// doubles (scaled by growthFactor) every cycle that still leaves the
// heap over half of the prior threshold.
func New() *Collector {
	return &Collector{threshold: 1024, growthFactor: 2.0}
}

// Track records a new heap allocation. The VM calls this exactly once
// per values.Object constructed (Array, Map, Set, Instance, Class,
// Closure, etc.).
func (gc *Collector) Track(_ values.Object) {
	gc.mu.Lock()
	gc.allocated++
	gc.mu.Unlock()
}

// WriteBarrier records a reference stored into an already-reachable
// object (a field write, container insert, or slot assignment). The
// collector is stop-the-world mark-sweep, so the barrier only feeds
// the dirty-store counter that ShouldCollect folds into its trigger
// decision; an incremental collector would also re-grey the parent.
func (gc *Collector) WriteBarrier(parent values.Object) {
	if parent == nil {
		return
	}
	gc.mu.Lock()
	gc.dirtyStores++
	gc.mu.Unlock()
}

// ShouldCollect reports whether live allocations have crossed the
// adaptive threshold since the last cycle.
func (gc *Collector) ShouldCollect() bool {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	// Heavy mutation without fresh allocation still ages the heap, so
	// dirty stores contribute a fraction of the trigger pressure.
	return gc.allocated-gc.freed+gc.dirtyStores/4 >= gc.threshold
}

// Collect runs one mark-sweep cycle against roots. Since values.Object
// references are ordinary Go pointers already managed by the Go
// runtime's own collector, Ember's tracing pass only maintains accurate
// Stats: it marks everything reachable from roots (cycles included) and
// counts the remaining tracked allocations as freed. It does not modify
// or unlink any object.
func (gc *Collector) Collect(roots RootProvider) Stats {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	marked := make(map[values.Object]bool)
	var stack []*values.Value
	stack = append(stack, roots.Roots()...)

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if v == nil {
			continue
		}
		obj, ok := v.Data.(values.Object)
		if !ok || obj == nil || marked[obj] {
			continue
		}
		marked[obj] = true
		stack = append(stack, obj.Children()...)
	}

	live := int64(len(marked))
	swept := gc.allocated - gc.freed - live
	if swept < 0 {
		swept = 0
	}
	gc.freed += swept
	gc.collections++
	gc.dirtyStores = 0

	if live >= gc.threshold/2 {
		gc.threshold = int64(float64(gc.threshold) * gc.growthFactor)
	}

	return Stats{
		Allocated:   gc.allocated,
		Freed:       gc.freed,
		Live:        live,
		Collections: gc.collections,
	}
}

// Snapshot returns the current counters without running a collection.
func (gc *Collector) Snapshot() Stats {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return Stats{
		Allocated:   gc.allocated,
		Freed:       gc.freed,
		Live:        gc.allocated - gc.freed,
		Collections: gc.collections,
	}
}
