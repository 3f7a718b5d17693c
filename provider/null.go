package provider

import "context"

// Null is a Provider that never stores anything.
type Null[V any] struct{}

var _ Provider[int] = Null[int]{}

func (Null[V]) Get(string) (V, bool) {
	var zero V
	return zero, false
}

func (Null[V]) Set(string, V)               {}
func (Null[V]) Len() int                    { return 0 }
func (Null[V]) Close(context.Context) error { return nil }
