package tracker

import (
	"slices"
	"time"
)

type NodeType string

const (
	NodeSignal NodeType = "signal"
	NodeMemo   NodeType = "memo"
	NodeEffect NodeType = "effect"
	NodeRoot   NodeType = "root"
)

// Valid reports whether t is one of the four known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeSignal, NodeMemo, NodeEffect, NodeRoot:
		return true
	}
	return false
}

// Lifecycle is either Active or Disposed. Disposed nodes stay in the
// registry so ids held elsewhere keep resolving.
type Lifecycle interface {
	isLifecycle()
}

type Active struct{}

type Disposed struct {
	At time.Time
}

func (Active) isLifecycle()   {}
func (Disposed) isLifecycle() {}

type Node struct {
	ID        string
	Type      NodeType
	Name      string
	CreatedAt time.Time

	Value          any
	IsStale        bool
	IsExecuting    bool
	ExecutionCount int
	LastExecutedAt time.Time
	Lifecycle      Lifecycle

	// nodes this one reads from / nodes reading this one
	Sources   []string
	Observers []string

	Owner string
	Owned []string
}

// IsDisposed reports whether the node has been disposed, and when.
func (n Node) IsDisposed() (time.Time, bool) {
	if d, ok := n.Lifecycle.(Disposed); ok {
		return d.At, true
	}
	return time.Time{}, false
}

func (n *Node) clone() Node {
	c := *n
	c.Sources = slices.Clone(n.Sources)
	c.Observers = slices.Clone(n.Observers)
	c.Owned = slices.Clone(n.Owned)
	return c
}

// Update is a single field change applied by Tracker.UpdateNode. Updates can
// only be built by this package, so id, type and name stay immutable.
type Update struct {
	apply func(*Node)
}

func SetValue(v any) Update {
	return Update{func(n *Node) { n.Value = v }}
}

func SetStale(stale bool) Update {
	return Update{func(n *Node) { n.IsStale = stale }}
}

func SetExecuting(executing bool) Update {
	return Update{func(n *Node) { n.IsExecuting = executing }}
}

// RecordExecution increments the execution count and stamps the last
// execution time.
func RecordExecution(at time.Time) Update {
	return Update{func(n *Node) {
		n.ExecutionCount++
		n.LastExecutedAt = at
	}}
}

// MarkDisposed moves the node to Disposed. The first disposal time wins.
func MarkDisposed(at time.Time) Update {
	return Update{func(n *Node) {
		if _, ok := n.IsDisposed(); ok {
			return
		}
		n.Lifecycle = Disposed{At: at}
	}}
}

func appendUnique(list []string, id string) []string {
	if slices.Contains(list, id) {
		return list
	}
	return append(list, id)
}

func remove(list []string, id string) []string {
	return slices.DeleteFunc(list, func(s string) bool { return s == id })
}
