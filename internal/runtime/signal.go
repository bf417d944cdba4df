package runtime

import (
	"reflect"
	"slices"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

// node is the part shared by everything that can be read: signals and memos.
type node struct {
	rt *Runtime
	id string

	// the current height of the node in the dependency graph
	height int

	observers []*Computation
}

func (n *node) ID() string {
	return n.id
}

func (n *node) addObserver(c *Computation) {
	if !slices.Contains(n.observers, c) {
		n.observers = append(n.observers, c)
	}
}

func (n *node) removeObserver(c *Computation) {
	n.observers = slices.DeleteFunc(n.observers, func(o *Computation) bool { return o == c })
}

// track links n into the running computation and returns its id, or "" when
// the read is untracked.
func (n *node) track() string {
	c := n.rt.ctx.Computation()
	if c == nil {
		return ""
	}
	c.link(n)
	return c.id
}

type Signal struct {
	node

	value any
}

func (r *Runtime) NewSignal(name string, initial any) *Signal {
	s := &Signal{
		node:  node{rt: r},
		value: initial,
	}
	s.id = r.tracker.RegisterNode(tracker.NodeSignal, name, initial)
	r.tracker.Emit(s.id, tracker.SignalCreate{Name: name, Value: initial})
	r.own(r.ctx.Owner(), s.id)

	return s
}

// Read returns the value, tracking the dependency if within a computation.
func (s *Signal) Read() any {
	reader := s.track()
	s.rt.tracker.Emit(s.id, tracker.SignalRead{Value: s.value, Reader: reader})
	return s.value
}

// Peek returns the value without tracking or emitting.
func (s *Signal) Peek() any {
	return s.value
}

// Write stores v and schedules the observers. Writing an equal value is a
// no-op.
func (s *Signal) Write(v any) {
	if isEqual(s.value, v) {
		return
	}

	prev := s.value
	s.value = v
	s.rt.tracker.UpdateNode(s.id, tracker.SetValue(v))
	s.rt.tracker.Emit(s.id, tracker.SignalWrite{Prev: prev, Next: v})

	s.rt.propagate(&s.node)
	s.rt.schedule()
}

// isEqual compares with == when the dynamic types allow it. Values of
// uncomparable types never compare equal.
func isEqual(a, b any) (equal bool) {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta == nil {
		return true
	}
	if !ta.Comparable() {
		return false
	}

	// structs and arrays holding interfaces can still panic
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return a == b
}
