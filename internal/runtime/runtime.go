// Package runtime is an instrumented fine-grained reactive runtime. Every
// signal, memo, effect and root registers itself in a tracker and reports
// reads, writes, executions, subscriptions and disposals as events.
//
// A Runtime is not safe for concurrent use. The package default is one
// runtime per goroutine.
package runtime

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

// ErrRunaway is the panic value of a flush that keeps rescheduling work,
// typically an effect writing a signal it reads.
var ErrRunaway = errors.New("reactive update did not settle")

const maxFlushRounds = 100_000

type Runtime struct {
	tracker *tracker.Tracker
	ctx     *ExecutionContext

	heap     *PriorityHeap
	batcher  *Batcher
	effects  *EffectQueue
	flushing bool

	logger *slog.Logger
}

type Option func(*Runtime)

// WithTracker records into t instead of a fresh tracker.
func WithTracker(t *tracker.Tracker) Option {
	return func(r *Runtime) { r.tracker = t }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) { r.logger = logger }
}

func New(opts ...Option) *Runtime {
	r := &Runtime{
		ctx:     NewContext(),
		heap:    NewHeap(),
		batcher: NewBatcher(),
		effects: NewEffectQueue(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracker == nil {
		r.tracker = tracker.New(tracker.WithLogger(r.logger))
	}
	return r
}

func (r *Runtime) Tracker() *tracker.Tracker {
	return r.tracker
}

func (r *Runtime) Context() *ExecutionContext {
	return r.ctx
}

func (r *Runtime) CurrentOwner() *Owner {
	return r.ctx.Owner()
}

func (r *Runtime) CurrentComputation() *Computation {
	return r.ctx.Computation()
}

// Batch defers propagation of writes made in fn until the outermost batch
// returns.
func (r *Runtime) Batch(fn func()) {
	r.batcher.Batch(fn, r.flush)
}

func (r *Runtime) Untrack(fn func()) {
	r.ctx.RunUntracked(fn)
}

// OnCleanup registers fn on the current owner. Outside any owner it is a
// no-op.
func (r *Runtime) OnCleanup(fn func()) {
	if owner := r.ctx.Owner(); owner != nil {
		owner.OnCleanup(fn)
	}
}

func (r *Runtime) schedule() {
	if r.batcher.Defer() || r.flushing {
		return
	}
	r.flush()
}

// flush recomputes dirty memos in height order, then runs queued effects,
// until neither has work left.
func (r *Runtime) flush() {
	if r.flushing {
		return
	}
	r.flushing = true
	defer func() { r.flushing = false }()

	for round := 0; r.heap.Len() > 0 || r.effects.Len() > 0; round++ {
		if round == maxFlushRounds {
			panic(fmt.Errorf("runtime: flush: %w after %d rounds", ErrRunaway, round))
		}
		r.heap.Drain(r.update)
		r.effects.RunEffects()
	}
}

func (r *Runtime) update(c *Computation) {
	if c.kind == tracker.NodeEffect {
		r.effects.Enqueue(c)
		return
	}
	c.run()
}

func (r *Runtime) own(owner *Owner, id string) {
	if owner == nil {
		return
	}
	r.tracker.AddEdge(tracker.EdgeOwnership, owner.id, id)
	r.tracker.Emit(id, tracker.SubscriptionAdd{Kind: tracker.EdgeOwnership, Source: owner.id, Target: id})
}

func (r *Runtime) subscribe(source, target string) {
	r.tracker.AddEdge(tracker.EdgeDependency, source, target)
	r.tracker.Emit(target, tracker.SubscriptionAdd{Kind: tracker.EdgeDependency, Source: source, Target: target})
}

func (r *Runtime) unsubscribe(source, target string) {
	r.tracker.RemoveEdge(tracker.EdgeID(tracker.EdgeDependency, source, target))
	r.tracker.Emit(target, tracker.SubscriptionRemove{Kind: tracker.EdgeDependency, Source: source, Target: target})
}

// propagate marks the observers of n stale and schedules them.
func (r *Runtime) propagate(n *node) {
	now := r.tracker.Now()
	for _, obs := range n.observers {
		r.tracker.TriggerEdge(tracker.EdgeID(tracker.EdgeDependency, n.id, obs.id), now)
		obs.markStale(n.id)
	}
}
