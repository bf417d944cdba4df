package tracker

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var (
	// ErrUnsortedLog is returned when an event log is not ordered by timestamp.
	ErrUnsortedLog = errors.New("event log is not sorted by timestamp")

	// ErrMalformedEvent is returned for events whose payload is missing or
	// does not match their type tag.
	ErrMalformedEvent = errors.New("malformed event")
)

// Validate checks that the log is time-sorted (ties allowed) and that every
// event carries a payload matching its type.
func Validate(events []Event) error {
	for i, e := range events {
		if e.Data == nil {
			return fmt.Errorf("%w: event %d (%s) has no data", ErrMalformedEvent, e.ID, e.Type)
		}
		if e.Data.EventType() != e.Type {
			return fmt.Errorf("%w: event %d tagged %s carries %s data",
				ErrMalformedEvent, e.ID, e.Type, e.Data.EventType())
		}
		if i > 0 && e.Timestamp.Before(events[i-1].Timestamp) {
			return fmt.Errorf("%w: event %d at %s precedes event %d at %s",
				ErrUnsortedLog, e.ID, e.Timestamp, events[i-1].ID, events[i-1].Timestamp)
		}
	}
	return nil
}

// Replay rebuilds a tracker from a recorded log. Node ids are preserved and
// the id counters continue after the highest replayed id, so the result is
// the registry a live tracker held after the last event.
func Replay(events []Event, opts ...Option) (*Tracker, error) {
	if err := Validate(events); err != nil {
		return nil, err
	}

	t := New(opts...)
	for _, e := range events {
		t.apply(e)
		if e.ID > t.eventID {
			t.eventID = e.ID
		}
	}
	return t, nil
}

func (t *Tracker) apply(e Event) {
	switch d := e.Data.(type) {
	case SignalCreate:
		t.restoreNode(e.NodeID, NodeSignal, d.Name, d.Value, e)
	case ComputationCreate:
		t.restoreNode(e.NodeID, d.Kind, d.Name, nil, e)
	case SignalRead:
	case SignalWrite:
		t.UpdateNode(e.NodeID, SetValue(d.Next))
		t.triggerObservers(e)
	case ComputationExecuteStart:
		t.UpdateNode(e.NodeID, SetExecuting(true))
	case ComputationExecuteEnd:
		n, ok := t.Node(e.NodeID)
		if !ok {
			return
		}
		updates := []Update{SetExecuting(false), SetStale(false), RecordExecution(e.Timestamp)}
		if n.Type == NodeMemo {
			updates = append(updates, SetValue(d.Value))
		}
		t.UpdateNode(e.NodeID, updates...)
		if n.Type == NodeMemo && n.ExecutionCount > 0 && !reflect.DeepEqual(n.Value, d.Value) {
			t.triggerObservers(e)
		}
	case ComputationDispose:
		t.UpdateNode(e.NodeID, MarkDisposed(e.Timestamp))
	case SubscriptionAdd:
		t.AddEdge(d.Kind, d.Source, d.Target)
	case SubscriptionRemove:
		t.RemoveEdge(EdgeID(d.Kind, d.Source, d.Target))
	default:
		panic(fmt.Sprintf("tracker: unhandled event data %T", d))
	}
}

func (t *Tracker) restoreNode(id string, typ NodeType, name string, value any, e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.nodes[id]; exists {
		return
	}
	t.insertNode(&Node{
		ID:        id,
		Type:      typ,
		Name:      name,
		Value:     value,
		CreatedAt: e.Timestamp,
		Lifecycle: Active{},
	})

	if n, ok := idCounter(id, typ); ok && n > t.counters[typ] {
		t.counters[typ] = n
	}
}

func (t *Tracker) triggerObservers(e Event) {
	n, ok := t.Node(e.NodeID)
	if !ok {
		return
	}
	for _, obs := range n.Observers {
		t.TriggerEdge(EdgeID(EdgeDependency, n.ID, obs), e.Timestamp)
	}
}

func idCounter(id string, typ NodeType) (int, bool) {
	suffix, ok := strings.CutPrefix(id, string(typ)+"-")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return n, true
}
