package patterns

import (
	"sort"
	"time"
)

// window holds update timestamps for one node in arrival order.
type window struct {
	stamps []time.Time
}

func (w *window) add(at time.Time) {
	w.stamps = append(w.stamps, at)
}

// prune drops stamps at or before cutoff and returns how many remain.
func (w *window) prune(cutoff time.Time) int {
	i := sort.Search(len(w.stamps), func(i int) bool {
		return w.stamps[i].After(cutoff)
	})
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
	return len(w.stamps)
}
