package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wudi/ember/values"
)

type fakeRoots struct{ roots []*values.Value }

func (f fakeRoots) Roots() []*values.Value { return f.roots }

func TestCollectKeepsReachable(t *testing.T) {
	arr := values.NewArray(values.Number(1), values.Number(2))
	gc := New()
	gc.Track(arr.Data.(values.Object))

	stats := gc.Collect(fakeRoots{roots: []*values.Value{arr}})
	require.EqualValues(t, 1, stats.Live)
	require.EqualValues(t, 1, stats.Collections)
}

func TestCollectSweepsUnreachable(t *testing.T) {
	reachable := values.NewArray()
	unreachable := values.NewArray()

	gc := New()
	gc.Track(reachable.Data.(values.Object))
	gc.Track(unreachable.Data.(values.Object))

	stats := gc.Collect(fakeRoots{roots: []*values.Value{reachable}})
	require.EqualValues(t, 1, stats.Live)
	require.EqualValues(t, 1, stats.Freed)
}

func TestThresholdGrowsAfterDenseCycle(t *testing.T) {
	gc := New()
	initial := gc.threshold
	var roots []*values.Value
	for i := 0; i < int(initial); i++ {
		v := values.NewArray()
		gc.Track(v.Data.(values.Object))
		roots = append(roots, v)
	}
	gc.Collect(fakeRoots{roots: roots})
	require.Greater(t, gc.threshold, initial)
}
