package sigscope

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/sigscope/internal/patterns"
	"github.com/AnatoleLucet/sigscope/internal/timetravel"
	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func stepClock() func() time.Time {
	now := epoch
	return func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}
}

func startDevtools(t *testing.T, opts ...DevtoolsOption) *Devtools {
	t.Helper()

	d, err := NewDevtools(append([]DevtoolsOption{WithClock(stepClock())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

// eventsOf returns the events of type typ emitted for node id, in order.
func eventsOf(d *Devtools, typ tracker.EventType, id string) []tracker.Event {
	var out []tracker.Event
	for _, e := range d.Events() {
		if e.Type == typ && e.NodeID == id {
			out = append(out, e)
		}
	}
	return out
}

func nodeOf(t *testing.T, d *Devtools, id string) tracker.Node {
	t.Helper()

	n, ok := d.Tracker().Node(id)
	require.True(t, ok, "node %s is not tracked", id)
	return n
}

func hasEdge(d *Devtools, typ tracker.EdgeType, source, target string) bool {
	_, ok := d.Tracker().Edge(tracker.EdgeID(typ, source, target))
	return ok
}

func TestDevtools(t *testing.T) {
	t.Run("starts from an empty graph", func(t *testing.T) {
		NewSignal(1)

		d := startDevtools(t)
		assert.Empty(t, d.Nodes())

		s := NewSignal(2)
		assert.Equal(t, "signal-1", s.ID())
		assert.Len(t, d.Nodes(), 1)
		assert.Same(t, d.Tracker(), Tracker())
	})

	t.Run("records every event", func(t *testing.T) {
		d := startDevtools(t)

		count := NewSignal(0)
		NewEffect(func() { count.Read() })
		count.Write(1)

		events := d.Events()
		require.NotEmpty(t, events)
		assert.NoError(t, tracker.Validate(events))
		assert.Equal(t, tracker.EventSignalCreate, events[0].Type)
		assert.Equal(t, d.Reconstructor().Len(), len(events))
	})

	t.Run("analyze", func(t *testing.T) {
		d := startDevtools(t)

		count := NewSignal(0, WithName("count"))
		NewEffect(func() { count.Read() }, WithName("orphan"))

		owner := NewOwner(WithName("app"))
		owner.Run(func() error {
			NewEffect(func() { count.Read() })
			return nil
		})

		result := d.Analyze(context.Background())
		assert.Equal(t, 1, result.Count(patterns.TypeOrphanedEffect))
		assert.Equal(t, 4, result.NodesAnalyzed)
	})

	t.Run("analysis thresholds", func(t *testing.T) {
		cfg := patterns.DefaultConfig()
		cfg.DeepChainThreshold = 2
		d := startDevtools(t, WithAnalysis(cfg))

		owner := NewOwner()
		owner.Run(func() error {
			a := NewSignal(1)
			b := NewMemo(func() int { return a.Read() + 1 })
			c := NewMemo(func() int { return b.Read() + 1 })
			NewEffect(func() { c.Read() })
			return nil
		})

		result := d.Analyze(context.Background())
		assert.Equal(t, 1, result.Count(patterns.TypeDeepChain))
	})

	t.Run("invalid analysis config", func(t *testing.T) {
		_, err := NewDevtools(WithAnalysis(patterns.Config{}))
		assert.ErrorIs(t, err, patterns.ErrInvalidConfig)
	})

	t.Run("reconstructs past states", func(t *testing.T) {
		d := startDevtools(t)

		count := NewSignal(0)
		created := d.Events()[0].Timestamp

		count.Write(5)
		count.Write(7)

		before := d.ReconstructAt(created)
		assert.Equal(t, 0, before.ActiveNodes[count.ID()].Value)

		now := d.ReconstructAt(d.Events()[2].Timestamp)
		assert.Equal(t, 7, now.ActiveNodes[count.ID()].Value)

		d.ReconstructAt(created)
		assert.Equal(t, 1, d.CacheStats().Hits)
	})

	t.Run("replays disposal", func(t *testing.T) {
		d := startDevtools(t)

		owner := NewOwner()
		var effect *Effect
		owner.Run(func() error {
			effect = NewEffect(func() {})
			return nil
		})
		owner.Dispose()

		events := d.Events()
		state := d.ReconstructAt(events[len(events)-1].Timestamp)
		assert.True(t, state.IsDisposed(effect.ID()))
		assert.True(t, state.IsDisposed(owner.ID()))
		assert.Empty(t, state.ActiveNodes)
	})

	t.Run("live, replayed and reconstructed graphs agree", func(t *testing.T) {
		d := startDevtools(t)

		app := NewOwner(WithName("app"))
		var count *Signal[int]
		var stale *Effect
		app.Run(func() error {
			count = NewSignal(1, WithName("count"))
			double := NewMemo(func() int { return count.Read() * 2 })
			NewEffect(func() {
				if double.Read() > 2 {
					NewEffect(func() { count.Read() })
				}
			})
			stale = NewEffect(func() { double.Read() })
			return nil
		})
		NewEffect(func() { count.Read() })

		count.Write(2)
		stale.Dispose()
		count.Write(3)

		events := d.Events()
		replayed, err := tracker.Replay(events)
		require.NoError(t, err)
		state := d.ReconstructAt(events[len(events)-1].Timestamp)

		live := d.Nodes()
		require.Len(t, replayed.Nodes(), len(live))
		for _, n := range live {
			r, ok := replayed.Node(n.ID)
			require.True(t, ok, n.ID)
			assert.Equal(t, n.Owner, r.Owner, n.ID)
			assert.ElementsMatch(t, n.Owned, r.Owned, n.ID)
			assert.ElementsMatch(t, n.Sources, r.Sources, n.ID)
			assert.ElementsMatch(t, n.Observers, r.Observers, n.ID)
			assert.Equal(t, n.Value, r.Value, n.ID)
			assert.Equal(t, n.ExecutionCount, r.ExecutionCount, n.ID)

			_, liveDisposed := n.IsDisposed()
			_, replayDisposed := r.IsDisposed()
			assert.Equal(t, liveDisposed, replayDisposed, n.ID)
			assert.Equal(t, liveDisposed, state.IsDisposed(n.ID), n.ID)
			if !liveDisposed {
				require.Contains(t, state.ActiveNodes, n.ID)
				assert.Equal(t, n.Value, state.ActiveNodes[n.ID].Value, n.ID)
			}
		}

		var liveEdges []timetravel.EdgeRef
		for _, e := range d.Tracker().Edges() {
			liveEdges = append(liveEdges, timetravel.EdgeRef{From: e.Source, To: e.Target, Type: e.Type})
		}
		assert.ElementsMatch(t, liveEdges, state.Edges)
		assert.Equal(t, d.Tracker().EdgeCount(), replayed.EdgeCount())
	})

	t.Run("snapshot", func(t *testing.T) {
		d := startDevtools(t)
		NewSignal(0)

		rec, err := d.Snapshot("session")
		require.NoError(t, err)
		assert.Equal(t, "session", rec.Name)
		assert.Len(t, rec.Events, 1)
	})

	t.Run("close stops recording", func(t *testing.T) {
		d := startDevtools(t)
		d.Close()

		NewSignal(0)
		assert.Empty(t, d.Events())
		assert.Zero(t, d.Reconstructor().Len())
	})

	t.Run("load a recording", func(t *testing.T) {
		live := startDevtools(t)

		count := NewSignal(0, WithName("count"))
		NewEffect(func() { count.Read() })
		count.Write(3)
		rec, err := live.Snapshot("session")
		require.NoError(t, err)

		loaded, err := LoadDevtools(rec.Events)
		require.NoError(t, err)
		defer loaded.Close()

		assert.Len(t, loaded.Nodes(), 2)
		assert.Len(t, loaded.Events(), len(rec.Events))
		assert.Equal(t, 1, loaded.Analyze(context.Background()).Count(patterns.TypeOrphanedEffect))

		state := loaded.ReconstructAt(rec.Events[len(rec.Events)-1].Timestamp)
		assert.Equal(t, 3, state.ActiveNodes[count.ID()].Value)

		// loading leaves the goroutine's runtime alone
		assert.Same(t, live.Tracker(), Tracker())
	})
}
