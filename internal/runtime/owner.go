package runtime

import (
	"slices"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

type disposable interface {
	Dispose()
}

// Owner owns the nodes created while it runs. Disposing an owner disposes
// its children in reverse creation order, then runs its cleanups.
type Owner struct {
	rt     *Runtime
	id     string
	parent *Owner

	children  []disposable
	cleanups  []func()
	disposers []func()
	catchers  []func(any)
	disposed  bool

	// what the parent holds in its children, the computation for a
	// computation's owner
	self disposable

	// extra work done by a computation on disposal
	teardown func()
}

// NewRoot creates an owner under the current one. A root is only ever
// disposed explicitly.
func (r *Runtime) NewRoot(name string) *Owner {
	parent := r.ctx.Owner()
	o := &Owner{rt: r, parent: parent}
	o.self = o
	o.id = r.tracker.RegisterNode(tracker.NodeRoot, name, nil)
	r.tracker.Emit(o.id, tracker.ComputationCreate{Kind: tracker.NodeRoot, Name: name})

	if parent != nil {
		parent.addChild(o)
		r.own(parent, o.id)
	}
	return o
}

func (o *Owner) ID() string {
	return o.id
}

func (o *Owner) Parent() *Owner {
	return o.parent
}

func (o *Owner) Disposed() bool {
	return o.disposed
}

// Run runs fn with o as the current owner. A panic in fn goes to the
// nearest OnError handler up the owner chain, and is re-raised when there
// is none.
func (o *Owner) Run(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			o.handleError(rec)
		}
	}()

	o.rt.ctx.RunWithOwner(o, func() { err = fn() })
	return err
}

func (o *Owner) OnCleanup(fn func()) {
	o.cleanups = append(o.cleanups, fn)
}

// OnDispose registers fn to run on every call to Dispose, after the
// children and cleanups.
func (o *Owner) OnDispose(fn func()) {
	o.disposers = append(o.disposers, fn)
}

// OnError catches panics raised by o and its descendants.
func (o *Owner) OnError(fn func(any)) {
	o.catchers = append(o.catchers, fn)
}

func (o *Owner) Dispose() {
	if !o.disposed {
		o.dispose()
	}
	for _, fn := range o.disposers {
		fn()
	}
}

func (o *Owner) dispose() {
	o.disposed = true

	o.disposeChildren()
	o.runCleanups()
	if o.teardown != nil {
		o.teardown()
	}
	if o.parent != nil {
		o.parent.removeChild(o.self)
	}

	o.rt.tracker.UpdateNode(o.id, tracker.MarkDisposed(o.rt.tracker.Now()))
	o.rt.tracker.Emit(o.id, tracker.ComputationDispose{})
}

func (o *Owner) addChild(c disposable) {
	o.children = append(o.children, c)
}

func (o *Owner) removeChild(c disposable) {
	o.children = slices.DeleteFunc(o.children, func(d disposable) bool { return d == c })
}

func (o *Owner) disposeChildren() {
	children := o.children
	o.children = nil

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}
}

func (o *Owner) runCleanups() {
	cleanups := o.cleanups
	o.cleanups = nil
	if len(cleanups) == 0 {
		return
	}

	o.rt.ctx.RunUntracked(func() {
		for _, fn := range cleanups {
			fn()
		}
	})
}

func (o *Owner) handleError(rec any) {
	for owner := o; owner != nil; owner = owner.parent {
		if len(owner.catchers) == 0 {
			continue
		}
		for _, catch := range owner.catchers {
			catch(rec)
		}
		return
	}
	panic(rec)
}
