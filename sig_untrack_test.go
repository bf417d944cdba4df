package sigscope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

func TestUntrack(t *testing.T) {
	t.Run("reads are not dependencies", func(t *testing.T) {
		d := startDevtools(t)
		log := []int{}

		count := NewSignal(0)
		effect := NewEffect(func() {
			log = append(log, Untrack(count.Read))
		})

		count.Write(10)

		assert.Equal(t, []int{0}, log)
		assert.False(t, hasEdge(d, tracker.EdgeDependency, count.ID(), effect.ID()))
		assert.Empty(t, eventsOf(d, tracker.EventSubscriptionAdd, effect.ID()))
		assert.Empty(t, nodeOf(t, d, count.ID()).Observers)

		// still recorded, without a reader
		reads := eventsOf(d, tracker.EventSignalRead, count.ID())
		require.Len(t, reads, 1)
		assert.Equal(t, tracker.SignalRead{Value: 0}, reads[0].Data)
	})

	t.Run("tracking resumes after untrack", func(t *testing.T) {
		d := startDevtools(t)

		a := NewSignal(1)
		b := NewSignal(2)
		sum := NewMemo(func() int {
			return Untrack(a.Read) + b.Read()
		})

		assert.Equal(t, []string{b.ID()}, nodeOf(t, d, sum.ID()).Sources)

		a.Write(5)
		assert.Equal(t, 3, sum.Read())
		b.Write(3)
		assert.Equal(t, 8, sum.Read())
	})
}
