// Package future provides a single-assignment completion cell that bridges a
// response delivered on an arbitrary goroutine to blocking readers and
// registered observers.
package future

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mtr002/Job-Client/internal/logger"
)

// ErrNilError replaces a nil error passed to CompleteExceptionally.
var ErrNilError = errors.New("future completed exceptionally with nil error")

// CompletionError is the panic value of Join when the future failed.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("future completed exceptionally: %v", e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Future holds exactly one result: a value of type T or an error.
//
// Only the producer completes a Future. The first Complete or
// CompleteExceptionally wins; later calls return false and change nothing.
// Observers registered before completion run on the completing goroutine
// before Done is closed, so a goroutine already blocked in Get never returns
// ahead of them. Readers that find the result stored, observers included,
// return at once. Observers registered afterwards run immediately on the
// caller.
type Future[T any] struct {
	mu        sync.Mutex
	completed bool
	value     T
	err       error
	observers []func(T, error)

	done chan struct{}
}

// New returns an uncompleted future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a future already holding v.
func Completed[T any](v T) *Future[T] {
	f := New[T]()
	f.Complete(v)
	return f
}

// Failed returns a future already holding err.
func Failed[T any](err error) *Future[T] {
	f := New[T]()
	f.CompleteExceptionally(err)
	return f
}

// Complete stores v. It reports whether this call completed the future.
func (f *Future[T]) Complete(v T) bool {
	return f.settle(v, nil)
}

// CompleteExceptionally stores err. It reports whether this call completed
// the future.
func (f *Future[T]) CompleteExceptionally(err error) bool {
	if err == nil {
		err = ErrNilError
	}
	var zero T
	return f.settle(zero, err)
}

func (f *Future[T]) settle(v T, err error) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		logger.Logger.Debug().Msg("Ignoring completion of an already completed future")
		return false
	}
	f.completed = true
	f.value = v
	f.err = err
	observers := f.observers
	f.observers = nil
	f.mu.Unlock()

	for _, fn := range observers {
		notify(fn, v, err)
	}
	close(f.done)
	return true
}

// WhenComplete registers fn to be called once with the result. If the future
// is already completed fn runs synchronously on the calling goroutine.
func (f *Future[T]) WhenComplete(fn func(T, error)) *Future[T] {
	f.mu.Lock()
	if !f.completed {
		f.observers = append(f.observers, fn)
		f.mu.Unlock()
		return f
	}
	v, err := f.value, f.err
	f.mu.Unlock()

	notify(fn, v, err)
	return f
}

func notify[T any](fn func(T, error), v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Error().Interface("panic", r).Msg("Future observer panicked")
		}
	}()
	fn(v, err)
}

// Done is closed once the result is stored and pre-registered observers ran.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the result is stored. Inside an observer it is
// already true even though Done is not yet closed.
func (f *Future[T]) IsDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// IsCompletedExceptionally reports whether the future holds an error.
func (f *Future[T]) IsCompletedExceptionally() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed && f.err != nil
}

// Get blocks until the future completes and returns its value or the stored
// error unchanged.
func (f *Future[T]) Get() (T, error) {
	if v, ok, err := f.stored(); ok {
		return v, err
	}
	<-f.done
	return f.result()
}

// GetContext is Get bounded by ctx. Giving up does not affect the future.
func (f *Future[T]) GetContext(ctx context.Context) (T, error) {
	if v, ok, err := f.stored(); ok {
		return v, err
	}
	select {
	case <-f.done:
		return f.result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Join blocks like Get but panics with a *CompletionError on failure.
func (f *Future[T]) Join() T {
	v, err := f.Get()
	if err != nil {
		panic(&CompletionError{Err: err})
	}
	return v
}

// stored returns the result without waiting when it is already set.
func (f *Future[T]) stored() (T, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.completed, f.err
}

func (f *Future[T]) result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Map returns a future completed with fn applied to the value of f. An error
// from f propagates as is; an error from fn fails the returned future.
func Map[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	out := New[U]()
	f.WhenComplete(func(v T, err error) {
		if err != nil {
			out.CompleteExceptionally(err)
			return
		}
		u, err := apply(fn, v)
		if err != nil {
			out.CompleteExceptionally(err)
			return
		}
		out.Complete(u)
	})
	return out
}

// apply keeps a panicking mapper from leaving the derived future unresolved.
func apply[T, U any](fn func(T) (U, error), v T) (u U, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("future mapper panicked: %v", r)
		}
	}()
	return fn(v)
}
