package sigscope

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

func TestBatch(t *testing.T) {
	t.Run("one run per batch", func(t *testing.T) {
		d := startDevtools(t)
		log := []string{}

		count := NewSignal(0)
		effect := NewEffect(func() {
			log = append(log, fmt.Sprintf("changed %d", count.Read()))
			OnCleanup(func() { log = append(log, "cleanup") })
		})

		NewBatch(func() {
			count.Write(10)
			count.Write(20)
			count.Write(30)
			log = append(log, "updated")
		})

		assert.Equal(t, []string{"changed 0", "updated", "cleanup", "changed 30"}, log)

		// every write is recorded, the effect ends once per batch
		assert.Len(t, eventsOf(d, tracker.EventSignalWrite, count.ID()), 3)
		assert.Len(t, eventsOf(d, tracker.EventComputationExecuteEnd, effect.ID()), 2)
		assert.Equal(t, 2, nodeOf(t, d, effect.ID()).ExecutionCount)

		starts := eventsOf(d, tracker.EventComputationExecuteStart, effect.ID())
		require.Len(t, starts, 2)
		assert.Equal(t, tracker.ComputationExecuteStart{}, starts[0].Data)
		assert.Equal(t, tracker.ComputationExecuteStart{Trigger: count.ID()}, starts[1].Data)

		edge, ok := d.Tracker().Edge(tracker.EdgeID(tracker.EdgeDependency, count.ID(), effect.ID()))
		require.True(t, ok)
		assert.Equal(t, 3, edge.TriggerCount)
	})

	t.Run("writes to several signals", func(t *testing.T) {
		d := startDevtools(t)
		log := []string{}

		count := NewSignal(0)
		double := NewSignal(0)

		counter := NewEffect(func() {
			log = append(log, fmt.Sprintf("count %d", count.Read()))
		})
		doubler := NewEffect(func() {
			log = append(log, fmt.Sprintf("double %d", double.Read()))
		})

		NewBatch(func() {
			count.Write(10)
			double.Write(count.Read() * 2)
			log = append(log, "updated")
		})

		assert.Equal(t, []string{"count 0", "double 0", "updated", "count 10", "double 20"}, log)
		for _, e := range []*Effect{counter, doubler} {
			assert.Len(t, eventsOf(d, tracker.EventComputationExecuteEnd, e.ID()), 2)
		}
		assert.Equal(t, 20, nodeOf(t, d, double.ID()).Value)
	})

	t.Run("nested batches flush once", func(t *testing.T) {
		d := startDevtools(t)
		log := []int{}

		count := NewSignal(0)
		effect := NewEffect(func() { log = append(log, count.Read()) })

		NewBatch(func() {
			count.Write(10)
			NewBatch(func() { count.Write(20) })

			// the inner batch does not flush
			assert.Len(t, eventsOf(d, tracker.EventComputationExecuteEnd, effect.ID()), 1)
			assert.True(t, nodeOf(t, d, effect.ID()).IsStale)
		})

		assert.Equal(t, []int{0, 20}, log)
		assert.Len(t, eventsOf(d, tracker.EventComputationExecuteEnd, effect.ID()), 2)
		assert.False(t, nodeOf(t, d, effect.ID()).IsStale)
	})

	t.Run("memos read inside a batch are fresh", func(t *testing.T) {
		d := startDevtools(t)

		count := NewSignal(1)
		double := NewMemo(func() int { return count.Read() * 2 })

		NewBatch(func() {
			count.Write(5)
			assert.Equal(t, 10, double.Read())
		})

		assert.Equal(t, 10, nodeOf(t, d, double.ID()).Value)
		assert.Len(t, eventsOf(d, tracker.EventComputationExecuteEnd, double.ID()), 2)
	})
}
