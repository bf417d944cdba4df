package timetravel

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

type NodeSummary struct {
	ID             string           `json:"id"`
	Type           tracker.NodeType `json:"type"`
	Name           string           `json:"name,omitempty"`
	Value          any              `json:"value"`
	LastUpdateTime time.Time        `json:"lastUpdateTime"`
	CreatedAt      time.Time        `json:"createdAt"`
}

type EdgeRef struct {
	From string           `json:"from"`
	To   string           `json:"to"`
	Type tracker.EdgeType `json:"type"`
}

// GraphState is the graph as a live tracker held it right after the last
// event at or before Timestamp.
type GraphState struct {
	Timestamp       time.Time
	ActiveNodes     map[string]NodeSummary
	Edges           []EdgeRef
	DisposedNodeIDs map[string]struct{}
}

func emptyState() GraphState {
	return GraphState{
		ActiveNodes:     make(map[string]NodeSummary),
		DisposedNodeIDs: make(map[string]struct{}),
	}
}

// Clone deep-copies the state. Node values are opaque and shared.
func (s GraphState) Clone() GraphState {
	c := GraphState{
		Timestamp:       s.Timestamp,
		ActiveNodes:     maps.Clone(s.ActiveNodes),
		Edges:           slices.Clone(s.Edges),
		DisposedNodeIDs: maps.Clone(s.DisposedNodeIDs),
	}
	if c.ActiveNodes == nil {
		c.ActiveNodes = make(map[string]NodeSummary)
	}
	if c.DisposedNodeIDs == nil {
		c.DisposedNodeIDs = make(map[string]struct{})
	}
	return c
}

func (s GraphState) IsDisposed(id string) bool {
	_, ok := s.DisposedNodeIDs[id]
	return ok
}

// Disposed returns the disposed node ids in sorted order.
func (s GraphState) Disposed() []string {
	return slices.Sorted(maps.Keys(s.DisposedNodeIDs))
}

func (s GraphState) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Timestamp       time.Time              `json:"timestamp"`
		ActiveNodes     map[string]NodeSummary `json:"activeNodes"`
		Edges           []EdgeRef              `json:"edges"`
		DisposedNodeIDs []string               `json:"disposedNodeIds"`
	}{
		Timestamp:       s.Timestamp,
		ActiveNodes:     s.ActiveNodes,
		Edges:           s.Edges,
		DisposedNodeIDs: s.Disposed(),
	})
}

func (s *GraphState) apply(e tracker.Event) {
	switch d := e.Data.(type) {
	case tracker.SignalCreate:
		s.ActiveNodes[e.NodeID] = NodeSummary{
			ID:             e.NodeID,
			Type:           tracker.NodeSignal,
			Name:           d.Name,
			Value:          d.Value,
			LastUpdateTime: e.Timestamp,
			CreatedAt:      e.Timestamp,
		}
	case tracker.ComputationCreate:
		s.ActiveNodes[e.NodeID] = NodeSummary{
			ID:             e.NodeID,
			Type:           d.Kind,
			Name:           d.Name,
			LastUpdateTime: e.Timestamp,
			CreatedAt:      e.Timestamp,
		}
	case tracker.SignalWrite:
		s.setValue(e.NodeID, d.Next, e.Timestamp)
	case tracker.ComputationExecuteEnd:
		if n, ok := s.ActiveNodes[e.NodeID]; ok && n.Type == tracker.NodeMemo {
			s.setValue(e.NodeID, d.Value, e.Timestamp)
		}
	case tracker.ComputationDispose:
		delete(s.ActiveNodes, e.NodeID)
		s.DisposedNodeIDs[e.NodeID] = struct{}{}
	case tracker.SubscriptionAdd:
		ref := EdgeRef{From: d.Source, To: d.Target, Type: d.Kind}
		if !slices.Contains(s.Edges, ref) {
			s.Edges = append(s.Edges, ref)
		}
	case tracker.SubscriptionRemove:
		ref := EdgeRef{From: d.Source, To: d.Target, Type: d.Kind}
		s.Edges = slices.DeleteFunc(s.Edges, func(r EdgeRef) bool { return r == ref })
	case tracker.SignalRead, tracker.ComputationExecuteStart:
	default:
		panic("timetravel: unhandled event data")
	}
}

// setValue is a no-op for nodes that are not active.
func (s *GraphState) setValue(id string, v any, at time.Time) {
	n, ok := s.ActiveNodes[id]
	if !ok {
		return
	}
	n.Value = v
	n.LastUpdateTime = at
	s.ActiveNodes[id] = n
}
