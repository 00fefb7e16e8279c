package values

import "fmt"

// identityHash derives a stable hash from an object's pointer identity.
// Formatting the pointer avoids reflect/unsafe while still giving a
// value that never changes for the lifetime of the object and differs
// between distinct objects.
func identityHash(data any) uint64 {
	addr := fmt.Sprintf("%p", data)
	return fnv1aAvalanche(addr)
}
