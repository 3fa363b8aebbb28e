// Package ptrs is full of helpers for interacting with pointers.
package ptrs

// Ptr is the &x you always wanted, but couldn't have.
func Ptr[T any](x T) *T {
	return &x
}
