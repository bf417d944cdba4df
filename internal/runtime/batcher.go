package runtime

// Batcher holds back flushes while a batch is open. Batches nest; the work
// deferred by any of them runs once, when the outermost one returns.
type Batcher struct {
	depth int
	// a write was made while batching
	pending bool
}

func NewBatcher() *Batcher {
	return &Batcher{}
}

func (b *Batcher) IsBatching() bool {
	return b.depth > 0
}

// Defer records that flush work is waiting on the current batch. It reports
// false outside a batch, where the caller should flush right away.
func (b *Batcher) Defer() bool {
	if b.depth == 0 {
		return false
	}
	b.pending = true
	return true
}

// Batch runs fn and calls flush if fn, or a batch nested in it, deferred
// work. flush also runs when fn panics, so writes made before the panic are
// not lost.
func (b *Batcher) Batch(fn, flush func()) {
	b.depth++
	defer func() {
		b.depth--
		if b.depth == 0 && b.pending {
			b.pending = false
			flush()
		}
	}()

	fn()
}
