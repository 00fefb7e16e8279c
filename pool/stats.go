package pool

import (
	"sync"
	"time"
)

// Stats is the pool's structured statistics snapshot.
type Stats struct {
	Acquisitions        uint64
	AcquisitionFailures uint64
	PoolExpansions      uint64
	TotalRequests       uint64
	TotalExecTime       time.Duration
	TotalCompileTime    time.Duration
	CacheHits           uint64
	CacheMisses         uint64
	CachedScriptCount   int
	PendingRequests     int
	IdleEntries         int
	ExecutingEntries    int
	TotalEntries        int
	UtilizationPercent  float64
}

// statsAccum is the mutable counter set Pool keeps under its own
// mutex; GetStats folds it into the public Stats snapshot.
type statsAccum struct {
	mu sync.Mutex

	acquisitions        uint64
	acquisitionFailures uint64
	poolExpansions      uint64
	totalRequests       uint64
	totalExecTime       time.Duration
	totalCompileTime    time.Duration
}

func (s *statsAccum) addAcquisition()        { s.mu.Lock(); s.acquisitions++; s.mu.Unlock() }
func (s *statsAccum) addAcquisitionFailure() { s.mu.Lock(); s.acquisitionFailures++; s.mu.Unlock() }
func (s *statsAccum) addExpansion()          { s.mu.Lock(); s.poolExpansions++; s.mu.Unlock() }

func (s *statsAccum) addRequest(exec, compile time.Duration) {
	s.mu.Lock()
	s.totalRequests++
	s.totalExecTime += exec
	s.totalCompileTime += compile
	s.mu.Unlock()
}

func (s *statsAccum) snapshot() (acq, acqFail, expansions, requests uint64, execTime, compileTime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquisitions, s.acquisitionFailures, s.poolExpansions, s.totalRequests, s.totalExecTime, s.totalCompileTime
}
