// Package pool implements Ember's concurrent VM pool: a
// capped, growable set of VM entries multiplexed across a worker
// dispatch pool, with a process-scoped bytecode cache shared by every
// entry.
package pool

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/wudi/ember/cache"
	"github.com/wudi/ember/compiler"
	"github.com/wudi/ember/internal/diag"
	"github.com/wudi/ember/values"
)

// ErrPoolExhausted is returned by Acquire when every entry is busy and
// the pool has already grown to MaxVMCount.
var ErrPoolExhausted = fmt.Errorf("vm pool: no idle VM and max_vm_count reached")

// Pool owns a growable array of VM entries up to cfg.MaxVMCount and
// dispatches submitted tasks to an idle entry.
type Pool struct {
	mu      sync.Mutex
	cfg     Config
	entries []*Entry
	nextID  int

	cache   *cache.Cache
	watcher *cache.Watcher

	tasks    chan *Task
	workerWG sync.WaitGroup
	stopCh   chan struct{}
	started  bool

	pending int
	stats   statsAccum
}

// New builds a Pool from cfg, resolving any zero-value defaults
// and constructing the shared bytecode cache.
func New(cfg Config) *Pool {
	cfg = normalize(cfg)
	return &Pool{
		cfg:    cfg,
		cache:  cache.New(cfg.MaxScriptCacheSize, cfg.EnableBytecodeCaching),
		tasks:  make(chan *Task, cfg.MaxVMCount*4),
		stopCh: make(chan struct{}),
	}
}

// Start pre-creates InitialVMCount entries and launches the worker
// dispatch goroutines.
func (p *Pool) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("pool already started")
	}
	p.started = true
	for i := 0; i < p.cfg.InitialVMCount; i++ {
		p.spawnEntryLocked()
	}
	p.mu.Unlock()

	if p.cfg.EnableHotReload && p.cfg.HotReloadDir != "" {
		if err := p.EnableHotReload(p.cfg.HotReloadDir); err != nil {
			diag.Logf(diag.Pool, "hot reload not enabled: %v", err)
		}
	}

	workers := p.cfg.MaxVMCount
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.workerWG.Add(1)
		go p.dispatchLoop()
	}

	diag.Logf(diag.Pool, "started with %d initial entries, cap %d", p.cfg.InitialVMCount, p.cfg.MaxVMCount)
	return nil
}

func (p *Pool) spawnEntryLocked() *Entry {
	p.nextID++
	e := newEntry(p.nextID, p.cfg.ModuleSearchPaths, p.cfg.VMSetup)
	p.entries = append(p.entries, e)
	return e
}

// Acquire returns an idle entry's handle, creating a new one if the
// pool hasn't reached MaxVMCount, or ErrPoolExhausted otherwise.
// Lock order here is pool mutex -> entry mutex, never the reverse.
func (p *Pool) Acquire() (*Entry, error) {
	p.mu.Lock()
	for _, e := range p.entries {
		if e.mu.TryLock() {
			if e.State() == StateIdle || e.State() == StateError {
				e.state.Store(int32(StateExecuting))
				p.stats.addAcquisition()
				p.mu.Unlock()
				return e, nil
			}
			e.mu.Unlock()
		}
	}

	if len(p.entries) >= p.cfg.MaxVMCount {
		p.stats.addAcquisitionFailure()
		p.mu.Unlock()
		return nil, ErrPoolExhausted
	}

	e := p.spawnEntryLocked()
	p.stats.addExpansion()
	e.mu.Lock()
	e.state.Store(int32(StateExecuting))
	p.stats.addAcquisition()
	p.mu.Unlock()
	return e, nil
}

// Release clears the entry's error state, marks it idle, and unlocks
// it for the next Acquire.
func (p *Pool) Release(e *Entry) {
	if p.cfg.ClearMemoryOnRelease {
		e.vm.GC().Collect(e.vm)
	}
	e.state.Store(int32(StateIdle))
	e.mu.Unlock()
}

// Submit enqueues task for dispatch to an idle VM.
func (p *Pool) Submit(task *Task) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return fmt.Errorf("pool not started")
	}
	p.pending++
	p.mu.Unlock()

	select {
	case p.tasks <- task:
		return nil
	case <-p.stopCh:
		p.mu.Lock()
		p.pending--
		p.mu.Unlock()
		return fmt.Errorf("pool is shutting down")
	}
}

// SubmitScriptExecution builds and submits a Task for a script
// path/source pair, returning its id.
func (p *Pool) SubmitScriptExecution(scriptPath, source string, callback func(Result)) (string, error) {
	task := NewTask(scriptPath, source, callback)
	if err := p.Submit(task); err != nil {
		return "", err
	}
	return task.ID, nil
}

func (p *Pool) dispatchLoop() {
	defer p.workerWG.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.runTask(task)
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) runTask(task *Task) {
	p.mu.Lock()
	p.pending--
	p.mu.Unlock()

	start := time.Now()
	entry, err := p.Acquire()
	if err != nil {
		p.deliver(task, Result{TaskID: task.ID, Status: StatusPoolExhausted, ErrorMessage: err.Error()})
		return
	}
	defer p.Release(entry)

	chunk, compileElapsed, status, cerr := p.compile(task.ScriptPath, task.Source, entry.VM().Interns())
	if cerr != nil {
		entry.recordExec(time.Since(start), true)
		p.stats.addRequest(0, compileElapsed)
		p.deliver(task, Result{TaskID: task.ID, Status: status, ErrorMessage: cerr.Error(), Elapsed: time.Since(start)})
		return
	}

	val, runErr := entry.VM().Run(chunk)
	elapsed := time.Since(start)
	entry.recordExec(elapsed, runErr != nil)
	p.stats.addRequest(elapsed, compileElapsed)

	if runErr != nil {
		p.deliver(task, Result{TaskID: task.ID, Status: StatusRuntimeError, ErrorMessage: runErr.Error(), Elapsed: elapsed})
		return
	}
	p.deliver(task, Result{TaskID: task.ID, Status: StatusSuccess, Elapsed: elapsed, Value: val})
}

func (p *Pool) deliver(task *Task, result Result) {
	if task.Callback != nil {
		task.Callback(result)
	}
}

// compile resolves task source to a chunk, consulting the shared
// bytecode cache first.
func (p *Pool) compile(scriptPath, source string, interns *values.InternTable) (*compiler.Chunk, time.Duration, Status, error) {
	hash := cache.HashSource([]byte(source))
	key := scriptPath
	if key == "" {
		key = hash
	}

	var mtime time.Time
	if scriptPath != "" {
		if info, err := os.Stat(scriptPath); err == nil {
			mtime = info.ModTime()
		}
	}

	if entry, ok := p.cache.Lookup(key, hash, mtime); ok {
		return entry.Chunk, 0, StatusSuccess, nil
	}

	start := time.Now()
	comp := compiler.New(source, interns)
	if scriptPath != "" {
		comp.SetCurrentFile(scriptPath)
	}
	chunk := comp.Compile()
	elapsed := time.Since(start)
	if comp.Errors().HasErrors() {
		return nil, elapsed, StatusCompileError, fmt.Errorf("%s", comp.Errors().String())
	}

	p.cache.Insert(key, cache.NewEntry(key, hash, chunk, mtime))
	return chunk, elapsed, StatusSuccess, nil
}

// EnableHotReload starts the cache's filesystem watcher over dir.
func (p *Pool) EnableHotReload(dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher != nil {
		return fmt.Errorf("hot reload already enabled")
	}
	w, err := p.cache.EnableHotReload(dir, ".ember")
	if err != nil {
		return err
	}
	p.watcher = w
	return nil
}

// DisableHotReload stops the watcher, if running.
func (p *Pool) DisableHotReload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watcher != nil {
		p.watcher.Stop()
		p.watcher = nil
	}
}

// Shutdown stops accepting new tasks, optionally waits for in-flight
// tasks, then tears down entries, drains the cache, and disables hot
// reload.
func (p *Pool) Shutdown(wait bool) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	close(p.stopCh)
	if wait {
		p.workerWG.Wait()
	}
	p.Destroy()
}

// Destroy releases every owned entry and the shared cache.
func (p *Pool) Destroy() {
	p.DisableHotReload()
	p.mu.Lock()
	p.entries = nil
	p.mu.Unlock()
	p.cache.Clear()
}

// GetStats returns a structured snapshot of pool-wide counters under
// a consistent lock hold.
func (p *Pool) GetStats() Stats {
	acq, acqFail, expansions, requests, execTime, compileTime := p.stats.snapshot()

	p.mu.Lock()
	idle, executing := 0, 0
	for _, e := range p.entries {
		switch e.State() {
		case StateIdle:
			idle++
		case StateExecuting:
			executing++
		}
	}
	total := len(p.entries)
	pending := p.pending
	p.mu.Unlock()

	cstats := p.cache.Stats()

	util := 0.0
	if total > 0 {
		util = float64(executing) / float64(total) * 100
	}

	return Stats{
		Acquisitions:        acq,
		AcquisitionFailures: acqFail,
		PoolExpansions:      expansions,
		TotalRequests:       requests,
		TotalExecTime:       execTime,
		TotalCompileTime:    compileTime,
		CacheHits:           cstats.Hits,
		CacheMisses:         cstats.Misses,
		CachedScriptCount:   cstats.Entries,
		PendingRequests:     pending,
		IdleEntries:         idle,
		ExecutingEntries:    executing,
		TotalEntries:        total,
		UtilizationPercent:  util,
	}
}
