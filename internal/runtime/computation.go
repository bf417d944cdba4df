package runtime

import (
	"slices"
	"time"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

// Computation is a memo or an effect. It re-runs when a node it read during
// its last run changes, and owns whatever it creates while running.
type Computation struct {
	node
	owner *Owner

	kind tracker.NodeType
	fn   func() any

	value       any
	initialized bool
	running     bool

	// nodes read during the current run, and during the previous one while
	// re-running
	sources     []*node
	prevSources []*node

	stale   bool
	trigger string

	inHeap     bool
	heapHeight int
	queued     bool
}

// NewMemo creates a derived value. fn runs immediately and again whenever a
// node it read changes. Observers are only notified when the result differs.
func (r *Runtime) NewMemo(name string, fn func() any) *Computation {
	return r.newComputation(tracker.NodeMemo, name, fn)
}

// NewEffect creates a side effect. fn runs immediately, then after every
// flush in which one of its sources changed.
func (r *Runtime) NewEffect(name string, fn func()) *Computation {
	return r.newComputation(tracker.NodeEffect, name, func() any {
		fn()
		return nil
	})
}

func (r *Runtime) newComputation(kind tracker.NodeType, name string, fn func() any) *Computation {
	parent := r.ctx.Owner()

	c := &Computation{
		node: node{rt: r},
		kind: kind,
		fn:   fn,
	}
	c.id = r.tracker.RegisterNode(kind, name, nil)
	c.owner = &Owner{rt: r, id: c.id, parent: parent, self: c, teardown: c.teardown}
	r.tracker.Emit(c.id, tracker.ComputationCreate{Kind: kind, Name: name})

	if parent != nil {
		parent.addChild(c)
		r.own(parent, c.id)
	}

	c.run()
	return c
}

func (c *Computation) Kind() tracker.NodeType {
	return c.kind
}

func (c *Computation) Owner() *Owner {
	return c.owner
}

func (c *Computation) Disposed() bool {
	return c.owner.disposed
}

// Read returns the memo's value, tracking the dependency if within another
// computation. A memo marked stale by a pending write recomputes first.
func (c *Computation) Read() any {
	if c.stale && !c.running {
		c.run()
	}
	c.track()
	return c.value
}

// Peek returns the last computed value without tracking or recomputing.
func (c *Computation) Peek() any {
	return c.value
}

func (c *Computation) OnCleanup(fn func()) {
	c.owner.OnCleanup(fn)
}

func (c *Computation) Dispose() {
	c.owner.Dispose()
}

// link records that c read src during the current run.
func (c *Computation) link(src *node) {
	if src == &c.node || slices.Contains(c.sources, src) {
		return
	}
	c.sources = append(c.sources, src)
	src.addObserver(c)

	if src.height+1 > c.height {
		c.height = src.height + 1
	}
	if !slices.Contains(c.prevSources, src) {
		c.rt.subscribe(src.id, c.id)
	}
}

// unlink drops src from the sources of c after src was disposed.
func (c *Computation) unlink(src *node) {
	c.sources = slices.DeleteFunc(c.sources, func(n *node) bool { return n == src })
	c.rt.unsubscribe(src.id, c.id)
}

func (c *Computation) markStale(trigger string) {
	if c.owner.disposed {
		return
	}
	if !c.stale {
		c.stale = true
		c.trigger = trigger
		c.rt.tracker.UpdateNode(c.id, tracker.SetStale(true))
	}
	c.rt.heap.Insert(c)
}

func (c *Computation) run() {
	if c.owner.disposed || c.running {
		return
	}
	r := c.rt
	r.heap.Remove(c)

	c.owner.disposeChildren()
	c.owner.runCleanups()

	c.prevSources = c.sources
	c.sources = nil
	for _, src := range c.prevSources {
		src.removeObserver(c)
	}
	c.height = 0

	trigger := c.trigger
	c.trigger = ""
	r.tracker.UpdateNode(c.id, tracker.SetExecuting(true))
	r.tracker.Emit(c.id, tracker.ComputationExecuteStart{Trigger: trigger})

	c.running = true
	start := time.Now()
	value, rec, panicked := c.invoke()
	elapsed := time.Since(start)
	c.running = false

	for _, src := range c.prevSources {
		if !slices.Contains(c.sources, src) {
			r.unsubscribe(src.id, c.id)
		}
	}
	c.prevSources = nil

	changed := false
	if c.kind == tracker.NodeMemo && !panicked {
		changed = c.initialized && !isEqual(c.value, value)
		c.value = value
	}
	c.initialized = true
	c.stale = false

	updates := []tracker.Update{
		tracker.SetExecuting(false),
		tracker.SetStale(false),
		tracker.RecordExecution(r.tracker.Now()),
	}
	end := tracker.ComputationExecuteEnd{Duration: elapsed}
	if c.kind == tracker.NodeMemo {
		updates = append(updates, tracker.SetValue(c.value))
		end.Value = c.value
	}
	r.tracker.UpdateNode(c.id, updates...)
	r.tracker.Emit(c.id, end)

	// disposed by its own run
	if c.owner.disposed {
		c.teardown()
		return
	}

	if changed {
		r.propagate(&c.node)
	}
	if panicked {
		c.owner.handleError(rec)
	}
}

func (c *Computation) invoke() (value any, rec any, panicked bool) {
	defer func() {
		if p := recover(); p != nil {
			rec, panicked = p, true
		}
	}()

	c.rt.ctx.RunWithComputation(c, func() { value = c.fn() })
	return value, nil, false
}

func (c *Computation) teardown() {
	r := c.rt
	r.heap.Remove(c)
	r.effects.Remove(c)

	for _, src := range c.sources {
		src.removeObserver(c)
		r.unsubscribe(src.id, c.id)
	}
	c.sources = nil

	for _, obs := range slices.Clone(c.observers) {
		obs.unlink(&c.node)
	}
	c.observers = nil
}
