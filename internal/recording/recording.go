// Package recording captures the event log of a tracker and persists it as
// named recordings that can be replayed later.
package recording

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

var (
	ErrNotFound    = errors.New("recording not found")
	ErrInvalidName = errors.New("invalid recording name")
)

const maxNameLength = 128

// Recording is a named, time-sorted event log.
type Recording struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	CreatedAt time.Time       `json:"createdAt"`
	Events    []tracker.Event `json:"events"`
}

// Summary describes a recording without its events.
type Summary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	EventCount int       `json:"eventCount"`
	First      time.Time `json:"first,omitzero"`
	Last       time.Time `json:"last,omitzero"`
}

// Store persists recordings. Load and Delete return ErrNotFound for unknown
// ids. List is ordered by creation time, oldest first.
type Store interface {
	Save(ctx context.Context, rec Recording) error
	Load(ctx context.Context, id string) (Recording, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// New validates the name and the log and stamps a fresh id.
func New(name string, events []tracker.Event) (Recording, error) {
	if err := ValidateName(name); err != nil {
		return Recording{}, fmt.Errorf("recording: new: %w", err)
	}
	if err := tracker.Validate(events); err != nil {
		return Recording{}, fmt.Errorf("recording: new: %w", err)
	}

	return Recording{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now().UTC(),
		Events:    events,
	}, nil
}

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case utf8.RuneCountInString(name) > maxNameLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxNameLength)
	case strings.ContainsAny(name, "\n\r\t"):
		return fmt.Errorf("%w: contains control characters", ErrInvalidName)
	}
	return nil
}

func (r Recording) Summary() Summary {
	s := Summary{
		ID:         r.ID,
		Name:       r.Name,
		CreatedAt:  r.CreatedAt,
		EventCount: len(r.Events),
	}
	if len(r.Events) > 0 {
		s.First = r.Events[0].Timestamp
		s.Last = r.Events[len(r.Events)-1].Timestamp
	}
	return s
}
