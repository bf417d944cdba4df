package tracker

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(start time.Time, step time.Duration) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

// assertAdjacency checks that adjacency lists mirror the edge set exactly.
func assertAdjacency(t *testing.T, tr *Tracker) {
	t.Helper()

	edges := tr.Edges()
	for _, e := range edges {
		src, ok := tr.Node(e.Source)
		require.True(t, ok)
		tgt, ok := tr.Node(e.Target)
		require.True(t, ok)

		switch e.Type {
		case EdgeDependency:
			assert.Contains(t, src.Observers, e.Target)
			assert.Contains(t, tgt.Sources, e.Source)
		case EdgeOwnership:
			assert.Contains(t, src.Owned, e.Target)
			assert.Equal(t, e.Source, tgt.Owner)
		}
	}

	for _, n := range tr.Nodes() {
		for _, obs := range n.Observers {
			_, ok := tr.Edge(EdgeID(EdgeDependency, n.ID, obs))
			assert.True(t, ok, "observer %s of %s has no edge", obs, n.ID)
		}
		for _, src := range n.Sources {
			_, ok := tr.Edge(EdgeID(EdgeDependency, src, n.ID))
			assert.True(t, ok, "source %s of %s has no edge", src, n.ID)
		}
		for _, owned := range n.Owned {
			_, ok := tr.Edge(EdgeID(EdgeOwnership, n.ID, owned))
			assert.True(t, ok, "owned %s of %s has no edge", owned, n.ID)
		}
	}
}

func TestRegisterNode(t *testing.T) {
	t.Run("assigns per type ids in order", func(t *testing.T) {
		tr := New()

		assert.Equal(t, "signal-1", tr.RegisterNode(NodeSignal, "a", 0))
		assert.Equal(t, "signal-2", tr.RegisterNode(NodeSignal, "b", 0))
		assert.Equal(t, "memo-1", tr.RegisterNode(NodeMemo, "", nil))
		assert.Equal(t, "signal-3", tr.RegisterNode(NodeSignal, "", 0))
		assert.Equal(t, "effect-1", tr.RegisterNode(NodeEffect, "", nil))
	})

	t.Run("reset restarts counters", func(t *testing.T) {
		tr := New()
		tr.RegisterNode(NodeSignal, "", 0)
		tr.RegisterNode(NodeSignal, "", 0)
		tr.Emit("signal-1", SignalCreate{})

		tr.Reset()

		assert.Equal(t, 0, tr.NodeCount())
		assert.Equal(t, "signal-1", tr.RegisterNode(NodeSignal, "", 0))
		assert.Equal(t, uint64(1), tr.Emit("signal-1", SignalCreate{}).ID)
	})

	t.Run("creates node with defaults", func(t *testing.T) {
		created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		tr := New(WithClock(func() time.Time { return created }))

		id := tr.RegisterNode(NodeMemo, "double", 4)
		n, ok := tr.Node(id)
		require.True(t, ok)

		assert.Equal(t, NodeMemo, n.Type)
		assert.Equal(t, "double", n.Name)
		assert.Equal(t, 4, n.Value)
		assert.Equal(t, created, n.CreatedAt)
		assert.Equal(t, Active{}, n.Lifecycle)
		assert.Zero(t, n.ExecutionCount)
		assert.True(t, n.LastExecutedAt.IsZero())
		assert.Empty(t, n.Owner)
	})
}

func TestUpdateNode(t *testing.T) {
	t.Run("merges fields", func(t *testing.T) {
		tr := New()
		id := tr.RegisterNode(NodeEffect, "log", nil)
		at := time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC)

		tr.UpdateNode(id, SetExecuting(true), SetStale(true))
		tr.UpdateNode(id, RecordExecution(at), RecordExecution(at.Add(time.Second)))

		n, _ := tr.Node(id)
		assert.True(t, n.IsExecuting)
		assert.True(t, n.IsStale)
		assert.Equal(t, 2, n.ExecutionCount)
		assert.Equal(t, at.Add(time.Second), n.LastExecutedAt)
		assert.Equal(t, id, n.ID)
		assert.Equal(t, "log", n.Name)
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		tr := New()
		assert.NotPanics(t, func() { tr.UpdateNode("signal-42", SetValue(1)) })
		assert.Equal(t, 0, tr.NodeCount())
	})

	t.Run("first disposal wins", func(t *testing.T) {
		tr := New()
		id := tr.RegisterNode(NodeEffect, "", nil)
		first := time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC)

		tr.UpdateNode(id, MarkDisposed(first))
		tr.UpdateNode(id, MarkDisposed(first.Add(time.Hour)))

		n, _ := tr.Node(id)
		at, disposed := n.IsDisposed()
		assert.True(t, disposed)
		assert.Equal(t, first, at)
	})
}

func TestEdges(t *testing.T) {
	t.Run("dependency edge mirrors adjacency", func(t *testing.T) {
		tr := New()
		s := tr.RegisterNode(NodeSignal, "", 0)
		m := tr.RegisterNode(NodeMemo, "", nil)

		id := tr.AddEdge(EdgeDependency, s, m)
		assert.Equal(t, "dependency-signal-1-memo-1", id)

		src, _ := tr.Node(s)
		tgt, _ := tr.Node(m)
		assert.Equal(t, []string{m}, src.Observers)
		assert.Equal(t, []string{s}, tgt.Sources)
		assertAdjacency(t, tr)
	})

	t.Run("insertion is idempotent", func(t *testing.T) {
		tr := New()
		s := tr.RegisterNode(NodeSignal, "", 0)
		e := tr.RegisterNode(NodeEffect, "", nil)

		tr.AddEdge(EdgeDependency, s, e)
		tr.AddEdge(EdgeDependency, s, e)

		assert.Equal(t, 1, tr.EdgeCount())
		src, _ := tr.Node(s)
		tgt, _ := tr.Node(e)
		assert.Len(t, src.Observers, 1)
		assert.Len(t, tgt.Sources, 1)
	})

	t.Run("remove restores inverse", func(t *testing.T) {
		tr := New()
		root := tr.RegisterNode(NodeRoot, "", nil)
		s := tr.RegisterNode(NodeSignal, "", 0)
		e := tr.RegisterNode(NodeEffect, "", nil)

		own := tr.AddEdge(EdgeOwnership, root, e)
		dep := tr.AddEdge(EdgeDependency, s, e)
		assertAdjacency(t, tr)

		tr.RemoveEdge(dep)
		tr.RemoveEdge(own)
		tr.RemoveEdge("dependency-nope-nope")

		assert.Equal(t, 0, tr.EdgeCount())
		for _, n := range tr.Nodes() {
			assert.Empty(t, n.Sources)
			assert.Empty(t, n.Observers)
			assert.Empty(t, n.Owned)
		}
	})

	t.Run("owner survives edge removal", func(t *testing.T) {
		tr := New()
		a := tr.RegisterNode(NodeRoot, "", nil)
		b := tr.RegisterNode(NodeRoot, "", nil)
		e := tr.RegisterNode(NodeEffect, "", nil)

		tr.RemoveEdge(tr.AddEdge(EdgeOwnership, a, e))

		n, _ := tr.Node(e)
		assert.Equal(t, a, n.Owner)
		_, disposed := n.IsDisposed()
		assert.False(t, disposed)

		// a second owner is still refused
		tr.AddEdge(EdgeOwnership, b, e)
		n, _ = tr.Node(e)
		assert.Equal(t, a, n.Owner)
		assert.Equal(t, 0, tr.EdgeCount())

		owner, _ := tr.Node(b)
		assert.Empty(t, owner.Owned)
	})

	t.Run("first owner wins", func(t *testing.T) {
		tr := New()
		a := tr.RegisterNode(NodeRoot, "", nil)
		b := tr.RegisterNode(NodeRoot, "", nil)
		e := tr.RegisterNode(NodeEffect, "", nil)

		tr.AddEdge(EdgeOwnership, a, e)
		tr.AddEdge(EdgeOwnership, b, e)

		n, _ := tr.Node(e)
		assert.Equal(t, a, n.Owner)
		assert.Equal(t, 1, tr.EdgeCount())
		assertAdjacency(t, tr)
	})

	t.Run("unknown endpoints are ignored", func(t *testing.T) {
		tr := New()
		s := tr.RegisterNode(NodeSignal, "", 0)

		tr.AddEdge(EdgeDependency, s, "memo-9")
		assert.Equal(t, 0, tr.EdgeCount())
	})

	t.Run("trigger counts", func(t *testing.T) {
		tr := New()
		s := tr.RegisterNode(NodeSignal, "", 0)
		m := tr.RegisterNode(NodeMemo, "", nil)
		id := tr.AddEdge(EdgeDependency, s, m)
		at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		tr.TriggerEdge(id, at)
		tr.TriggerEdge(id, at.Add(time.Second))

		e, ok := tr.Edge(id)
		require.True(t, ok)
		assert.Equal(t, 2, e.TriggerCount)
		assert.Equal(t, at.Add(time.Second), e.LastTriggeredAt)
	})
}

func TestEmit(t *testing.T) {
	t.Run("delivers in order with increasing ids", func(t *testing.T) {
		start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		tr := New(WithClock(fixedClock(start, time.Millisecond)))
		log := []string{}

		tr.Subscribe(func(e Event) { log = append(log, "first "+string(e.Type)) })
		tr.Subscribe(func(e Event) { log = append(log, "second "+string(e.Type)) })

		a := tr.Emit("signal-1", SignalCreate{Value: 1})
		b := tr.Emit("signal-1", SignalWrite{Prev: 1, Next: 2})

		assert.Equal(t, uint64(1), a.ID)
		assert.Equal(t, uint64(2), b.ID)
		assert.True(t, b.Timestamp.After(a.Timestamp))
		assert.Equal(t, EventSignalWrite, b.Type)
		assert.Equal(t, []string{
			"first signal-create",
			"second signal-create",
			"first signal-write",
			"second signal-write",
		}, log)
	})

	t.Run("isolates panicking subscribers", func(t *testing.T) {
		var buf bytes.Buffer
		tr := New(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
		delivered := 0

		tr.Subscribe(func(Event) { panic("boom") })
		tr.Subscribe(func(Event) { delivered++ })

		assert.NotPanics(t, func() { tr.Emit("effect-1", ComputationDispose{}) })
		assert.Equal(t, 1, delivered)
		assert.Contains(t, buf.String(), "subscriber panicked")
	})

	t.Run("unsubscribe during delivery keeps snapshot", func(t *testing.T) {
		tr := New()
		log := []string{}

		var unsubscribeSecond func()
		tr.Subscribe(func(Event) {
			log = append(log, "first")
			unsubscribeSecond()
		})
		unsubscribeSecond = tr.Subscribe(func(Event) { log = append(log, "second") })

		tr.Emit("signal-1", SignalRead{})
		tr.Emit("signal-1", SignalRead{})

		assert.Equal(t, []string{"first", "second", "first"}, log)
	})

	t.Run("reset drops subscribers", func(t *testing.T) {
		tr := New()
		calls := 0
		tr.Subscribe(func(Event) { calls++ })

		tr.Reset()
		tr.Emit("signal-1", SignalRead{})

		assert.Zero(t, calls)
	})
}

func TestNodesAreCopies(t *testing.T) {
	tr := New()
	s := tr.RegisterNode(NodeSignal, "", 0)
	m := tr.RegisterNode(NodeMemo, "", nil)
	tr.AddEdge(EdgeDependency, s, m)

	nodes := tr.Nodes()
	nodes[0].Observers[0] = "mutated"

	n, _ := tr.Node(s)
	assert.Equal(t, []string{m}, n.Observers)
}
