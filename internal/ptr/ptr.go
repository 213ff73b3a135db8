// Package ptr helps build values for optional fields, mainly pointer-typed
// struct members in JSON payloads and test fixtures.
package ptr

// Ref returns a pointer to v. Useful where Go has no literal syntax for a
// pointer to a constant, e.g. optional ints in request payloads.
func Ref[T any](v T) *T {
	return &v
}
