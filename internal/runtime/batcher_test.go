package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatcher(t *testing.T) {
	t.Run("flushes once after the outermost batch", func(t *testing.T) {
		b := NewBatcher()
		flushes := 0
		flush := func() { flushes++ }

		b.Batch(func() {
			assert.True(t, b.Defer())
			b.Batch(func() { b.Defer() }, flush)
			assert.Zero(t, flushes)
			assert.True(t, b.IsBatching())
		}, flush)

		assert.Equal(t, 1, flushes)
		assert.False(t, b.IsBatching())
	})

	t.Run("skips the flush without deferred work", func(t *testing.T) {
		b := NewBatcher()
		flushes := 0

		b.Batch(func() {}, func() { flushes++ })

		assert.Zero(t, flushes)
	})

	t.Run("defer outside a batch", func(t *testing.T) {
		assert.False(t, NewBatcher().Defer())
	})

	t.Run("flushes when the batch panics", func(t *testing.T) {
		b := NewBatcher()
		flushes := 0

		assert.Panics(t, func() {
			b.Batch(func() {
				b.Defer()
				panic("boom")
			}, func() { flushes++ })
		})

		assert.Equal(t, 1, flushes)
		assert.False(t, b.IsBatching())
	})
}
