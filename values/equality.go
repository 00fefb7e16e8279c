package values

// Equal implements deep equality: nil/bool/
// number compared by value, strings by content, arrays/maps/sets
// element-wise, and classes/instances/exceptions/promises/generators/
// iterators by identity.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a.IsNil() && b.IsNil()
	}
	if a.Type != b.Type {
		// Numeric values never compare equal across variants, but we
		// allow nil to compare equal to nil regardless of which arm
		// produced it (both constructors tag TypeNil).
		return false
	}
	switch a.Type {
	case TypeNil:
		return true
	case TypeBool:
		return a.Data.(bool) == b.Data.(bool)
	case TypeNumber:
		return numbersEqual(a.Data.(float64), b.Data.(float64))
	case TypeString:
		return a.Data.(*String).Chars == b.Data.(*String).Chars
	case TypeArray:
		return arraysEqual(a.Data.(*Array), b.Data.(*Array))
	case TypeMap:
		return mapsEqual(a.Data.(*Map), b.Data.(*Map))
	case TypeSet:
		return setsEqual(a.Data.(*Set), b.Data.(*Set))
	case TypeClass, TypeInstance, TypeException, TypePromise, TypeGenerator,
		TypeIterator, TypeBoundMethod, TypeFunction, TypeRegex:
		return a.Data == b.Data
	default:
		return a.Data == b.Data
	}
}

func numbersEqual(x, y float64) bool {
	// +0.0 == -0.0 falls out of plain float comparison already; NaN !=
	// NaN is IEEE-754 correct and matches the single-reserved-hash
	// treatment in Hash (equal values hash equal is not violated: NaN
	// is never equal to itself under this rule, by design).
	return x == y
}

func arraysEqual(a, b *Array) bool {
	if len(a.Elements) != len(b.Elements) {
		return false
	}
	for i := range a.Elements {
		if !Equal(a.Elements[i], b.Elements[i]) {
			return false
		}
	}
	return true
}

func mapsEqual(a, b *Map) bool {
	if a.size != b.size {
		return false
	}
	for _, bucket := range a.buckets {
		for _, e := range bucket {
			v, ok := b.Get(e.key)
			if !ok || !Equal(v, e.value) {
				return false
			}
		}
	}
	return true
}

func setsEqual(a, b *Set) bool {
	if a.size != b.size {
		return false
	}
	for _, v := range a.Children() {
		if !b.Has(v) {
			return false
		}
	}
	return true
}
