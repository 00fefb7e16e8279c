package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolExecutesScriptAndReportsStats(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialVMCount = 1
	cfg.MaxVMCount = 2
	p := New(cfg)
	require.NoError(t, p.Start())
	defer p.Shutdown(true)

	var wg sync.WaitGroup
	wg.Add(1)
	var got Result
	_, err := p.SubmitScriptExecution("<test>", `1 + 1;`, func(r Result) {
		got = r
		wg.Done()
	})
	require.NoError(t, err)
	wg.Wait()

	require.Equal(t, StatusSuccess, got.Status)

	stats := p.GetStats()
	require.EqualValues(t, 1, stats.TotalRequests)
}

func TestPoolNeverExceedsMaxVMCountUnderConcurrentLoad(t *testing.T) {
	const cap = 4
	const tasks = 64

	cfg := DefaultConfig()
	cfg.InitialVMCount = 1
	cfg.MaxVMCount = cap
	p := New(cfg)
	require.NoError(t, p.Start())
	defer p.Shutdown(true)

	var concurrent atomic.Int32
	var maxSeen atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < tasks; i++ {
		wg.Add(1)
		_, err := p.SubmitScriptExecution("<test>", `1;`, func(r Result) {
			defer wg.Done()
			cur := concurrent.Add(1)
			for {
				m := maxSeen.Load()
				if cur <= m || maxSeen.CompareAndSwap(m, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			concurrent.Add(-1)
		})
		require.NoError(t, err)
	}

	wg.Wait()
	require.LessOrEqual(t, int(maxSeen.Load()), cap)

	stats := p.GetStats()
	require.EqualValues(t, tasks, stats.TotalRequests)
}

func TestPoolReportsCompileErrorsWithoutCrashing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialVMCount = 1
	cfg.MaxVMCount = 1
	p := New(cfg)
	require.NoError(t, p.Start())
	defer p.Shutdown(true)

	var wg sync.WaitGroup
	wg.Add(1)
	var got Result
	_, err := p.SubmitScriptExecution("<test>", `this is not valid ember`, func(r Result) {
		got = r
		wg.Done()
	})
	require.NoError(t, err)
	wg.Wait()

	require.Equal(t, StatusCompileError, got.Status)
	require.NotEmpty(t, got.ErrorMessage)
}
