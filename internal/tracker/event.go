package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownEventType is returned when decoding an event whose type tag is
// not one of the nine known kinds.
var ErrUnknownEventType = errors.New("unknown event type")

type EventType string

const (
	EventSignalCreate            EventType = "signal-create"
	EventSignalRead              EventType = "signal-read"
	EventSignalWrite             EventType = "signal-write"
	EventComputationCreate       EventType = "computation-create"
	EventComputationExecuteStart EventType = "computation-execute-start"
	EventComputationExecuteEnd   EventType = "computation-execute-end"
	EventComputationDispose      EventType = "computation-dispose"
	EventSubscriptionAdd         EventType = "subscription-add"
	EventSubscriptionRemove      EventType = "subscription-remove"
)

// Event is an immutable entry of the append-only log.
type Event struct {
	ID        uint64
	Type      EventType
	Timestamp time.Time
	NodeID    string
	Data      EventData
}

// EventData is the payload of an event. The set of implementations is
// closed: one struct per EventType.
type EventData interface {
	EventType() EventType
	sealed()
}

type SignalCreate struct {
	Name  string `json:"name,omitempty"`
	Value any    `json:"value"`
}

type SignalRead struct {
	Value any `json:"value"`
	// computation that performed the read, empty when untracked
	Reader string `json:"reader,omitempty"`
}

type SignalWrite struct {
	Prev any `json:"prev"`
	Next any `json:"next"`
}

type ComputationCreate struct {
	Kind NodeType `json:"kind"`
	Name string   `json:"name,omitempty"`
}

type ComputationExecuteStart struct {
	// source whose change scheduled this run, empty on the first run
	Trigger string `json:"trigger,omitempty"`
}

type ComputationExecuteEnd struct {
	Duration time.Duration `json:"duration"`
	Value    any           `json:"value,omitempty"`
}

type ComputationDispose struct{}

type SubscriptionAdd struct {
	Kind   EdgeType `json:"kind"`
	Source string   `json:"source"`
	Target string   `json:"target"`
}

type SubscriptionRemove struct {
	Kind   EdgeType `json:"kind"`
	Source string   `json:"source"`
	Target string   `json:"target"`
}

func (SignalCreate) EventType() EventType            { return EventSignalCreate }
func (SignalRead) EventType() EventType              { return EventSignalRead }
func (SignalWrite) EventType() EventType             { return EventSignalWrite }
func (ComputationCreate) EventType() EventType       { return EventComputationCreate }
func (ComputationExecuteStart) EventType() EventType { return EventComputationExecuteStart }
func (ComputationExecuteEnd) EventType() EventType   { return EventComputationExecuteEnd }
func (ComputationDispose) EventType() EventType      { return EventComputationDispose }
func (SubscriptionAdd) EventType() EventType         { return EventSubscriptionAdd }
func (SubscriptionRemove) EventType() EventType      { return EventSubscriptionRemove }

func (SignalCreate) sealed()            {}
func (SignalRead) sealed()              {}
func (SignalWrite) sealed()             {}
func (ComputationCreate) sealed()       {}
func (ComputationExecuteStart) sealed() {}
func (ComputationExecuteEnd) sealed()   {}
func (ComputationDispose) sealed()      {}
func (SubscriptionAdd) sealed()         {}
func (SubscriptionRemove) sealed()      {}

type eventJSON struct {
	ID        uint64          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	NodeID    string          `json:"nodeId"`
	Data      json.RawMessage `json:"data"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("tracker: encode %s data: %w", e.Type, err)
	}
	return json.Marshal(eventJSON{
		ID:        e.ID,
		Type:      e.Type,
		Timestamp: e.Timestamp,
		NodeID:    e.NodeID,
		Data:      data,
	})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	data, err := decodeData(raw.Type, raw.Data)
	if err != nil {
		return err
	}

	*e = Event{
		ID:        raw.ID,
		Type:      raw.Type,
		Timestamp: raw.Timestamp,
		NodeID:    raw.NodeID,
		Data:      data,
	}
	return nil
}

func decodeData(typ EventType, raw json.RawMessage) (EventData, error) {
	var (
		data EventData
		err  error
	)
	switch typ {
	case EventSignalCreate:
		data, err = decodeInto[SignalCreate](raw)
	case EventSignalRead:
		data, err = decodeInto[SignalRead](raw)
	case EventSignalWrite:
		data, err = decodeInto[SignalWrite](raw)
	case EventComputationCreate:
		data, err = decodeInto[ComputationCreate](raw)
	case EventComputationExecuteStart:
		data, err = decodeInto[ComputationExecuteStart](raw)
	case EventComputationExecuteEnd:
		data, err = decodeInto[ComputationExecuteEnd](raw)
	case EventComputationDispose:
		data = ComputationDispose{}
	case EventSubscriptionAdd:
		data, err = decodeInto[SubscriptionAdd](raw)
	case EventSubscriptionRemove:
		data, err = decodeInto[SubscriptionRemove](raw)
	default:
		return nil, fmt.Errorf("tracker: %w: %q", ErrUnknownEventType, typ)
	}
	if err != nil {
		return nil, fmt.Errorf("tracker: decode %s data: %w", typ, err)
	}
	return data, nil
}

func decodeInto[T EventData](raw json.RawMessage) (EventData, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
