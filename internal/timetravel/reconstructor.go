// Package timetravel rebuilds past graph states from a recorded event log.
// Reconstructed states are cached by timestamp, and a query replays only the
// events after the nearest cached state.
package timetravel

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

const DefaultCapacity = 100

var (
	ErrUnsortedLog    = tracker.ErrUnsortedLog
	ErrMalformedEvent = tracker.ErrMalformedEvent
)

type Reconstructor struct {
	mu     sync.Mutex
	events []tracker.Event
	cache  *stateCache
	logger *slog.Logger
}

type Option func(*Reconstructor)

// WithCapacity bounds the number of cached states. Non-positive values fall
// back to DefaultCapacity.
func WithCapacity(n int) Option {
	return func(r *Reconstructor) { r.cache = newStateCache(n) }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconstructor) { r.logger = logger }
}

// New takes ownership of a copy of events, which must be sorted by timestamp.
func New(events []tracker.Event, opts ...Option) (*Reconstructor, error) {
	if err := tracker.Validate(events); err != nil {
		return nil, fmt.Errorf("timetravel: new: %w", err)
	}

	r := &Reconstructor{
		events: append([]tracker.Event(nil), events...),
		cache:  newStateCache(DefaultCapacity),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ReconstructAt returns the state after every event with a timestamp at or
// before ts. The result is a copy the caller may modify. Times outside the
// range of UnixNano, the zero time included, are replayed without the cache.
func (r *Reconstructor) ReconstructAt(ts time.Time) GraphState {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, cacheable := cacheKey(ts)
	if !cacheable {
		r.cache.misses++
		cacheLookups.WithLabelValues("miss").Inc()
		return r.replay(emptyState(), 0, ts)
	}

	if state, ok := r.cache.get(key); ok {
		r.cache.hits++
		cacheLookups.WithLabelValues("hit").Inc()
		return state.Clone()
	}

	state := emptyState()
	start := 0
	if nearest, ok := r.cache.nearest(key); ok {
		state = nearest.Clone()
		start = r.after(nearest.Timestamp)
	}
	state = r.replay(state, start, ts)

	if evicted := r.cache.put(key, state); evicted > 0 {
		cacheEvictions.Add(float64(evicted))
		r.logger.Debug("evicted replay states", "count", evicted)
	}
	r.cache.misses++
	cacheLookups.WithLabelValues("miss").Inc()

	return state.Clone()
}

// replay applies the events from index start up to ts onto state.
func (r *Reconstructor) replay(state GraphState, start int, ts time.Time) GraphState {
	end := r.after(ts)
	for _, e := range r.events[start:end] {
		state.apply(e)
	}
	state.Timestamp = ts
	eventsApplied.Observe(float64(max(end-start, 0)))
	return state
}

var (
	minKeyTime = time.Unix(0, math.MinInt64)
	maxKeyTime = time.Unix(0, math.MaxInt64)
)

// cacheKey maps ts to its cache key. It fails for times UnixNano cannot
// represent, which would otherwise alias each other.
func cacheKey(ts time.Time) (int64, bool) {
	if ts.Before(minKeyTime) || ts.After(maxKeyTime) {
		return 0, false
	}
	return ts.UnixNano(), true
}

// after returns the index of the first event strictly after ts.
func (r *Reconstructor) after(ts time.Time) int {
	return sort.Search(len(r.events), func(i int) bool {
		return r.events[i].Timestamp.After(ts)
	})
}

// Append extends the log. Cached states at or after the first appended
// timestamp are dropped, earlier ones stay valid.
func (r *Reconstructor) Append(events ...tracker.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := tracker.Validate(events); err != nil {
		return fmt.Errorf("timetravel: append: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.events); n > 0 {
		last := r.events[n-1]
		if events[0].Timestamp.Before(last.Timestamp) {
			return fmt.Errorf("timetravel: append: %w: event %d precedes event %d",
				ErrUnsortedLog, events[0].ID, last.ID)
		}
	}

	r.events = append(r.events, events...)
	if dropped := r.cache.invalidateFrom(events[0].Timestamp.UnixNano()); dropped > 0 {
		r.logger.Debug("invalidated replay states", "count", dropped)
	}
	return nil
}

// ClearCache drops every cached state and resets the hit and miss counters.
func (r *Reconstructor) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.clear()
}

func (r *Reconstructor) CacheStats() CacheStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.stats()
}

// Bounds returns the first and last event timestamps.
func (r *Reconstructor) Bounds() (first, last time.Time, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return r.events[0].Timestamp, r.events[len(r.events)-1].Timestamp, true
}

// Timeline returns the distinct event timestamps in order.
func (r *Reconstructor) Timeline() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]time.Time, 0, len(r.events))
	for _, e := range r.events {
		if n := len(out); n > 0 && out[n-1].Equal(e.Timestamp) {
			continue
		}
		out = append(out, e.Timestamp)
	}
	return out
}

func (r *Reconstructor) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
