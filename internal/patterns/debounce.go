package patterns

import (
	"sync"
	"time"
)

// debouncer signals ready once no trigger arrived for delay. Only the last
// armed timer may fire; stale timers check their generation and return.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	gen   uint64
	ready chan struct{}
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay: delay,
		ready: make(chan struct{}, 1),
	}
}

func (b *debouncer) trigger() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(b.delay, func() { b.fire(gen) })
}

func (b *debouncer) fire(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		return
	}
	b.timer = nil
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

func (b *debouncer) setDelay(delay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = delay
}

// stop cancels a pending timer and drains an undelivered signal.
func (b *debouncer) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
	select {
	case <-b.ready:
	default:
	}
}
