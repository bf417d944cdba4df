package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/sigscope/internal/recording"
	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

// sampleEvents records a signal feeding a memo, then a write.
func sampleEvents(t *testing.T) []tracker.Event {
	t.Helper()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := tracker.New(tracker.WithClock(func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}))
	rec := recording.NewRecorder(tr)
	defer rec.Stop()

	s := tr.RegisterNode(tracker.NodeSignal, "count", 0)
	tr.Emit(s, tracker.SignalCreate{Name: "count", Value: 0})
	m := tr.RegisterNode(tracker.NodeMemo, "double", nil)
	tr.Emit(m, tracker.ComputationCreate{Kind: tracker.NodeMemo, Name: "double"})
	tr.AddEdge(tracker.EdgeDependency, s, m)
	tr.Emit(m, tracker.SubscriptionAdd{Kind: tracker.EdgeDependency, Source: s, Target: m})
	tr.Emit(s, tracker.SignalWrite{Prev: 0, Next: 1})

	events := rec.Events()
	require.Len(t, events, 4)
	return events
}

func eventIDs(events []tracker.Event) []uint64 {
	ids := make([]uint64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

func testStore(t *testing.T, store recording.Store) {
	ctx := context.Background()
	t.Cleanup(func() { store.Close() })

	events := sampleEvents(t)
	first, err := recording.New("first", events)
	require.NoError(t, err)
	second, err := recording.New("second", events[:2])
	require.NoError(t, err)
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	require.NoError(t, store.Save(ctx, second))
	require.NoError(t, store.Save(ctx, first))

	t.Run("load", func(t *testing.T) {
		got, err := store.Load(ctx, first.ID)
		require.NoError(t, err)

		assert.Equal(t, first.Name, got.Name)
		assert.True(t, first.CreatedAt.Equal(got.CreatedAt))
		assert.Equal(t, eventIDs(events), eventIDs(got.Events))
		assert.Equal(t, events[2].Data, got.Events[2].Data)
		assert.True(t, events[3].Timestamp.Equal(got.Events[3].Timestamp))
		assert.NoError(t, tracker.Validate(got.Events))
	})

	t.Run("list is ordered by creation", func(t *testing.T) {
		summaries, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, summaries, 2)

		assert.Equal(t, "first", summaries[0].Name)
		assert.Equal(t, 4, summaries[0].EventCount)
		assert.Equal(t, "second", summaries[1].Name)
		assert.Equal(t, 2, summaries[1].EventCount)
	})

	t.Run("save overwrites", func(t *testing.T) {
		renamed := second
		renamed.Name = "renamed"
		require.NoError(t, store.Save(ctx, renamed))

		got, err := store.Load(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		assert.Len(t, got.Events, 2)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, first.ID))

		_, err := store.Load(ctx, first.ID)
		assert.ErrorIs(t, err, recording.ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, first.ID), recording.ErrNotFound)

		summaries, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, summaries, 1)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, recording.ErrNotFound)
	})
}

func TestBadgerStore(t *testing.T) {
	store, err := OpenBadger(BadgerConfig{InMemory: true})
	require.NoError(t, err)

	testStore(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "recordings.db"))
	require.NoError(t, err)

	testStore(t, store)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("badger on disk", func(t *testing.T) {
		store, err := Open(ctx, DriverBadger, filepath.Join(t.TempDir(), "db"), nil)
		require.NoError(t, err)
		assert.IsType(t, &BadgerStore{}, store)
		assert.NoError(t, store.Close())
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "nested", "rec.db"), nil)
		require.NoError(t, err)
		assert.IsType(t, &SQLiteStore{}, store)
		assert.NoError(t, store.Close())
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := Open(ctx, "postgres", "", nil)
		assert.Error(t, err)
	})
}
