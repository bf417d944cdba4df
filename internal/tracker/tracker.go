// Package tracker is the event-sourced registry of a reactive graph. It owns
// every node and edge, assigns ids, and emits one typed event per mutation.
package tracker

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

type subscriber struct {
	id uint64
	fn func(Event)
}

type Tracker struct {
	mu sync.RWMutex

	nodes     map[string]*Node
	nodeOrder []string
	edges     map[string]*Edge
	edgeOrder []string

	// per node type, reset only by Reset
	counters map[NodeType]int
	eventID  uint64

	subscribers []subscriber
	nextSubID   uint64

	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Tracker)

// WithClock replaces the wall clock used to stamp nodes and events.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

func New(opts ...Option) *Tracker {
	t := &Tracker{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.init()
	return t
}

func (t *Tracker) init() {
	t.nodes = make(map[string]*Node)
	t.nodeOrder = nil
	t.edges = make(map[string]*Edge)
	t.edgeOrder = nil
	t.counters = make(map[NodeType]int)
	t.eventID = 0
	t.subscribers = nil
}

// Now returns the tracker's clock reading.
func (t *Tracker) Now() time.Time {
	return t.now()
}

// RegisterNode creates a node and returns its id ("{type}-{n}"). It does not
// emit: callers emit the matching create event once the node exists.
func (t *Tracker) RegisterNode(typ NodeType, name string, value any) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters[typ]++
	id := fmt.Sprintf("%s-%d", typ, t.counters[typ])
	t.insertNode(&Node{
		ID:        id,
		Type:      typ,
		Name:      name,
		Value:     value,
		CreatedAt: t.now(),
		Lifecycle: Active{},
	})
	return id
}

func (t *Tracker) insertNode(n *Node) {
	t.nodes[n.ID] = n
	t.nodeOrder = append(t.nodeOrder, n.ID)
}

// UpdateNode merges the updates into the node in place. Unknown ids are
// ignored.
func (t *Tracker) UpdateNode(id string, updates ...Update) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		return
	}
	for _, u := range updates {
		if u.apply != nil {
			u.apply(n)
		}
	}
}

// AddEdge inserts an edge and mirrors it into the adjacency lists of both
// endpoints. Adding an existing edge is a no-op. The edge is not inserted
// when an endpoint is unknown, or when an ownership edge would give its
// target a second owner.
func (t *Tracker) AddEdge(typ EdgeType, source, target string) string {
	id := EdgeID(typ, source, target)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.edges[id]; exists {
		return id
	}
	src, ok := t.nodes[source]
	if !ok {
		return id
	}
	tgt, ok := t.nodes[target]
	if !ok {
		return id
	}

	switch typ {
	case EdgeDependency:
		src.Observers = appendUnique(src.Observers, target)
		tgt.Sources = appendUnique(tgt.Sources, source)
	case EdgeOwnership:
		if tgt.Owner != "" && tgt.Owner != source {
			t.logger.Debug("ignoring second owner", "node", target, "owner", tgt.Owner, "candidate", source)
			return id
		}
		src.Owned = appendUnique(src.Owned, target)
		tgt.Owner = source
	default:
		return id
	}

	t.edges[id] = &Edge{ID: id, Type: typ, Source: source, Target: target}
	t.edgeOrder = append(t.edgeOrder, id)
	return id
}

// RemoveEdge deletes the edge and its adjacency mirrors, except for the
// target's Owner which never changes once set. Unknown ids are ignored.
func (t *Tracker) RemoveEdge(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.edges[id]
	if !ok {
		return
	}
	delete(t.edges, id)
	t.edgeOrder = remove(t.edgeOrder, id)

	src := t.nodes[e.Source]
	tgt := t.nodes[e.Target]
	switch e.Type {
	case EdgeDependency:
		if src != nil {
			src.Observers = remove(src.Observers, e.Target)
		}
		if tgt != nil {
			tgt.Sources = remove(tgt.Sources, e.Source)
		}
	case EdgeOwnership:
		// the target keeps its owner: it is assigned at most once
		if src != nil {
			src.Owned = remove(src.Owned, e.Target)
		}
	}
}

// TriggerEdge records that a change propagated along the edge.
func (t *Tracker) TriggerEdge(id string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.edges[id]; ok {
		e.TriggerCount++
		e.LastTriggeredAt = at
	}
}

// Emit appends an event to the log and delivers it synchronously to every
// subscriber registered at the time of the call, in registration order.
// A panicking subscriber is logged and skipped.
func (t *Tracker) Emit(nodeID string, data EventData) Event {
	t.mu.Lock()
	t.eventID++
	evt := Event{
		ID:        t.eventID,
		Type:      data.EventType(),
		Timestamp: t.now(),
		NodeID:    nodeID,
		Data:      data,
	}
	subs := slices.Clone(t.subscribers)
	t.mu.Unlock()

	for _, sub := range subs {
		t.deliver(sub, evt)
	}
	return evt
}

func (t *Tracker) deliver(sub subscriber, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("subscriber panicked",
				"subscriber", sub.id,
				"event", evt.ID,
				"type", evt.Type,
				"panic", r,
			)
		}
	}()
	sub.fn(evt)
}

// Subscribe registers fn for every future event and returns a function that
// removes it. Unsubscribing does not affect an emit already in flight.
func (t *Tracker) Subscribe(fn func(Event)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextSubID++
	id := t.nextSubID
	t.subscribers = append(t.subscribers, subscriber{id: id, fn: fn})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.subscribers = slices.DeleteFunc(t.subscribers, func(s subscriber) bool { return s.id == id })
	}
}

// Reset clears nodes, edges, subscribers and both id counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.init()
}

func (t *Tracker) Node(id string) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Nodes returns a copy of every node in creation order, disposed included.
func (t *Tracker) Nodes() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Node, 0, len(t.nodeOrder))
	for _, id := range t.nodeOrder {
		out = append(out, t.nodes[id].clone())
	}
	return out
}

func (t *Tracker) Edge(id string) (Edge, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.edges[id]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// Edges returns a copy of every edge in insertion order.
func (t *Tracker) Edges() []Edge {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Edge, 0, len(t.edgeOrder))
	for _, id := range t.edgeOrder {
		out = append(out, *t.edges[id])
	}
	return out
}

func (t *Tracker) NodeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

func (t *Tracker) EdgeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.edges)
}
