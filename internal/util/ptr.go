package util

// Ptr returns a pointer to the given value.
// Useful for setting optional struct fields inline.
func Ptr[T any](v T) *T {
	return &v
}
