package values

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqualityCongruence(t *testing.T) {
	a := Number(3)
	b := Number(3)
	require.True(t, Equal(a, b))
	require.Equal(t, Hash(a), Hash(b))

	s1 := Str("hello")
	s2 := Str("hello")
	require.True(t, Equal(s1, s2))
	require.Equal(t, Hash(s1), Hash(s2))
	require.False(t, Equal(Str("hello"), Str("world")))
}

func TestSignedZeroHashesEqual(t *testing.T) {
	pos := Number(0)
	neg := Number(math.Copysign(0, -1))
	require.True(t, Equal(pos, neg))
	require.Equal(t, Hash(pos), Hash(neg))
}

func TestNaNHasReservedHash(t *testing.T) {
	n1 := Number(math.NaN())
	n2 := Number(math.NaN())
	require.Equal(t, Hash(n1), Hash(n2))
	require.False(t, Equal(n1, n1), "NaN must not equal itself")
}

func TestMapLaws(t *testing.T) {
	mv := NewMap()
	m := mv.Data.(*Map)

	key := Str("k")
	m.Insert(key, Number(1))
	got, ok := m.Get(Str("k"))
	require.True(t, ok)
	require.True(t, Equal(got, Number(1)))

	require.True(t, m.Delete(Str("k")))
	_, ok = m.Get(Str("k"))
	require.False(t, ok)
	require.Equal(t, 0, m.Len())
}

func TestMapGrowthPreservesEntries(t *testing.T) {
	mv := NewMap()
	m := mv.Data.(*Map)
	for i := 0; i < 100; i++ {
		m.Insert(Number(float64(i)), Number(float64(i*2)))
	}
	require.Equal(t, 100, m.Len())
	for i := 0; i < 100; i++ {
		got, ok := m.Get(Number(float64(i)))
		require.True(t, ok)
		require.True(t, Equal(got, Number(float64(i*2))))
	}
}

func TestSetOperations(t *testing.T) {
	av := NewSet()
	a := av.Data.(*Set)
	a.Add(Number(1))
	a.Add(Number(2))

	bv := NewSet()
	b := bv.Data.(*Set)
	b.Add(Number(2))
	b.Add(Number(3))

	union := a.Union(b)
	require.Equal(t, 3, union.Len())

	inter := a.Intersection(b)
	require.Equal(t, 1, inter.Len())
	require.True(t, inter.Has(Number(2)))

	diff := a.Difference(b)
	require.Equal(t, 1, diff.Len())
	require.True(t, diff.Has(Number(1)))
}

func TestArrayConcatAndSlice(t *testing.T) {
	a := &Array{Elements: []*Value{Number(1), Number(2)}}
	b := &Array{Elements: []*Value{Number(3)}}
	c := a.Concat(b)
	require.Equal(t, 3, c.Len())

	s := c.Slice(1, 3)
	require.Equal(t, 2, s.Len())
}

func TestClassSuperclassMethodLookup(t *testing.T) {
	base := NewClass("Base", nil).Data.(*Class)
	base.Methods["greet"] = &Function{Name: "greet"}
	derived := NewClass("Derived", base).Data.(*Class)

	m, owner := derived.LookupMethod("greet")
	require.NotNil(t, m)
	require.Equal(t, "Base", owner.Name)

	_, owner2 := derived.LookupMethod("missing")
	require.Nil(t, owner2)
}

func TestInternTableIdentity(t *testing.T) {
	tbl := NewInternTable()
	s1 := tbl.Intern("shared")
	s2 := tbl.Intern("shared")
	require.Same(t, s1, s2)
}

func TestTruthiness(t *testing.T) {
	require.False(t, Nil().Truthy())
	require.False(t, Bool(false).Truthy())
	require.False(t, Number(0).Truthy())
	require.False(t, Str("").Truthy())
	require.True(t, Str("x").Truthy())
	require.True(t, Number(1).Truthy())
}
