package runtime

import "slices"

// PriorityHeap holds dirty computations bucketed by height so that a node
// always runs after every node it depends on.
type PriorityHeap struct {
	min  int
	size int

	buckets [][]*Computation // [height]entries
}

func NewHeap() *PriorityHeap {
	return &PriorityHeap{}
}

func (h *PriorityHeap) Insert(c *Computation) {
	if c.inHeap {
		return
	}
	c.inHeap = true
	c.heapHeight = c.height

	for len(h.buckets) <= c.heapHeight {
		h.buckets = append(h.buckets, nil)
	}
	h.buckets[c.heapHeight] = append(h.buckets[c.heapHeight], c)
	h.size++

	if c.heapHeight < h.min {
		h.min = c.heapHeight
	}
}

func (h *PriorityHeap) Remove(c *Computation) {
	if !c.inHeap {
		return
	}
	c.inHeap = false

	bucket := h.buckets[c.heapHeight]
	if i := slices.Index(bucket, c); i >= 0 {
		h.buckets[c.heapHeight] = slices.Delete(bucket, i, i+1)
		h.size--
	}
}

func (h *PriorityHeap) Len() int {
	return h.size
}

// Drain processes entries lowest height first until the heap is empty.
// process may insert more entries, at any height.
func (h *PriorityHeap) Drain(process func(*Computation)) {
	for h.size > 0 {
		for len(h.buckets[h.min]) == 0 {
			h.min++
		}

		c := h.buckets[h.min][0]
		h.buckets[h.min] = h.buckets[h.min][1:]
		c.inHeap = false
		h.size--

		process(c)
	}
	h.min = 0
}
