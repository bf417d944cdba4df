// Package sigscope is an instrumented reactive library. Signals, memos,
// effects and owners behave like any fine-grained reactive runtime, and every
// one of them is recorded in a tracker that Devtools can analyze and replay.
//
// Each goroutine gets its own runtime, so graphs built on different
// goroutines never share state.
package sigscope

import (
	"github.com/AnatoleLucet/sigscope/internal/runtime"
	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

type options struct {
	name string
}

type Option func(*options)

// WithName labels the node in the tracker.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

func apply(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}

	return v.(T)
}

type Signal[T any] struct {
	signal *runtime.Signal
}

// NewSignal creates your typical read/write signal.
func NewSignal[T any](initial T, opts ...Option) *Signal[T] {
	o := apply(opts)
	return &Signal[T]{
		runtime.Default().NewSignal(o.name, initial),
	}
}

// Read the current value of the signal, tracking the dependency if within a reactive context.
func (s *Signal[T]) Read() T {
	return as[T](s.signal.Read())
}

// Peek reads the value without tracking it or recording a read.
func (s *Signal[T]) Peek() T {
	return as[T](s.signal.Peek())
}

// Write a new value to the signal, triggering updates to any dependents.
func (s *Signal[T]) Write(v T) {
	s.signal.Write(v)
}

func (s *Signal[T]) ID() string {
	return s.signal.ID()
}

type Memo[T any] struct {
	memo *runtime.Computation
}

// NewMemo creates a value derived from other signals. Its dependents only
// re-run when the derived value changes.
func NewMemo[T any](compute func() T, opts ...Option) *Memo[T] {
	o := apply(opts)
	return &Memo[T]{
		runtime.Default().NewMemo(o.name, func() any { return compute() }),
	}
}

// Read the current value of the memo, tracking the dependency if within a reactive context.
func (m *Memo[T]) Read() T {
	return as[T](m.memo.Read())
}

func (m *Memo[T]) Peek() T {
	return as[T](m.memo.Peek())
}

func (m *Memo[T]) ID() string {
	return m.memo.ID()
}

func (m *Memo[T]) Dispose() {
	m.memo.Dispose()
}

type Effect struct {
	effect *runtime.Computation
}

// NewEffect creates a reactive effect that runs the given function
// whenever its dependencies change.
func NewEffect(fn func(), opts ...Option) *Effect {
	o := apply(opts)
	return &Effect{
		runtime.Default().NewEffect(o.name, fn),
	}
}

func (e *Effect) ID() string {
	return e.effect.ID()
}

// Dispose stops the effect and runs its cleanups.
func (e *Effect) Dispose() {
	e.effect.Dispose()
}

// NewBatch batches multiple signal writes into a single update cycle,
// instead of triggering updates after each write.
func NewBatch(fn func()) {
	runtime.Default().Batch(fn)
}

// Untrack runs the given function without tracking any reactive dependencies.
func Untrack[T any](fn func() T) T {
	var result T
	runtime.Default().Untrack(func() { result = fn() })
	return result
}

// OnCleanup registers a function to be called when the current owner is disposed.
func OnCleanup(fn func()) {
	runtime.Default().OnCleanup(fn)
}

type Owner struct {
	owner *runtime.Owner
}

// NewOwner creates a new reactive owner, recorded as a root.
// An owner manages the lifecycle of reactive nodes created within its context.
func NewOwner(opts ...Option) *Owner {
	o := apply(opts)
	return &Owner{
		runtime.Default().NewRoot(o.name),
	}
}

// Run a function within the context of this owner.
// Each reactive node created within the function will be a child of this owner,
// and will be disposed when owner.Dispose() is called on this owner.
func (o *Owner) Run(fn func() error) error { return o.owner.Run(fn) }

// Dispose this owner and all its children.
func (o *Owner) Dispose() { o.owner.Dispose() }

// Add a cleanup function to be called ONCE when the owner is disposed.
func (o *Owner) OnCleanup(fn func()) { o.owner.OnCleanup(fn) }

// Add a function to be called when the owner is disposed (each time Dispose is called).
func (o *Owner) OnDispose(fn func()) { o.owner.OnDispose(fn) }

// Add a function to be called when a panic occurs within this owner.
// If no error listener is registered, the panic will propagate as usual.
func (o *Owner) OnError(fn func(any)) { o.owner.OnError(fn) }

func (o *Owner) ID() string { return o.owner.ID() }

// Tracker returns the tracker of the calling goroutine's runtime.
func Tracker() *tracker.Tracker {
	return runtime.Default().Tracker()
}
