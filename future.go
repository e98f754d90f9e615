package mqttflow

import (
	"context"
	"errors"
	"sync"
)

// ErrNotSettled is returned by Future.Result before the future completes.
var ErrNotSettled = errors.New("future not settled")

// Future is a one-shot completion cell. It is settled exactly once, either
// with a value or with an error.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// rejectedFuture returns a future that already failed with err.
func rejectedFuture[T any](err error) *Future[T] {
	f := newFuture[T]()
	f.reject(err)
	return f
}

// resolve settles the future with v. It reports false if the future was
// already settled.
func (f *Future[T]) resolve(v T) bool {
	settled := false
	f.once.Do(func() {
		f.value = v
		settled = true
		close(f.done)
	})
	return settled
}

// reject settles the future with err. It reports false if the future was
// already settled.
func (f *Future[T]) reject(err error) bool {
	settled := false
	f.once.Do(func() {
		f.err = err
		settled = true
		close(f.done)
	})
	return settled
}

// Done returns a channel closed once the future is settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future is settled or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the settled value and error without blocking.
// It returns ErrNotSettled while the future is pending.
func (f *Future[T]) Result() (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	default:
		var zero T
		return zero, ErrNotSettled
	}
}

// Then registers fn to run with the outcome once the future settles.
// fn runs on its own goroutine.
func (f *Future[T]) Then(fn func(T, error)) {
	go func() {
		<-f.done
		fn(f.value, f.err)
	}()
}
