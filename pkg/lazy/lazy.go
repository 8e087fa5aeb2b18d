// Package lazy provides a lock-guarded value that is loaded on first use.
package lazy

import (
	"context"
	"sync"
)

// Value holds a lazily loaded T. Concurrent first callers share a single
// load; a failed load leaves the value unset so a later Get retries.
type Value[T any] struct {
	mu    sync.RWMutex
	val   T
	ready bool
}

// Get returns the cached value, calling load under the write lock if it has
// not been loaded yet.
func (v *Value[T]) Get(ctx context.Context, load func(context.Context) (T, error)) (T, error) {
	v.mu.RLock()
	if v.ready {
		val := v.val
		v.mu.RUnlock()
		return val, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	// Double-check after acquiring write lock
	if v.ready {
		return v.val, nil
	}

	val, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	v.val, v.ready = val, true
	return val, nil
}
