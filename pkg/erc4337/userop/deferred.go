package userop

import (
	"context"
	"sync"
)

// Deferred holds a UserOperation field that is either known, pending on a
// task that has not run yet, or unset. Copies of a pending value share the
// task, so it runs at most once no matter how many drafts carry it.
type Deferred[T any] struct {
	value T
	known bool
	task  *task[T]
}

type task[T any] struct {
	once  sync.Once
	fn    func(context.Context) (T, error)
	value T
	err   error
}

// Known wraps an already available value.
func Known[T any](v T) Deferred[T] {
	return Deferred[T]{value: v, known: true}
}

// Pending wraps a value produced by fn on first use.
func Pending[T any](fn func(context.Context) (T, error)) Deferred[T] {
	if fn == nil {
		return Deferred[T]{}
	}
	return Deferred[T]{task: &task[T]{fn: fn}}
}

// IsSet reports whether the field is known or pending.
func (d Deferred[T]) IsSet() bool {
	return d.known || d.task != nil
}

// Peek returns the value only when it is known.
func (d Deferred[T]) Peek() (T, bool) {
	return d.value, d.known
}

// Get returns the value, running the pending task if needed. The context of
// the first caller is the one the task runs with. An unset field yields the
// zero value.
func (d Deferred[T]) Get(ctx context.Context) (T, error) {
	if d.known || d.task == nil {
		return d.value, nil
	}
	t := d.task
	t.once.Do(func() {
		t.value, t.err = t.fn(ctx)
	})
	return t.value, t.err
}
