package runtime

// EffectQueue holds effects whose sources changed, in scheduling order.
type EffectQueue struct {
	effects []*Computation
}

func NewEffectQueue() *EffectQueue {
	return &EffectQueue{}
}

func (q *EffectQueue) Enqueue(c *Computation) {
	if c.queued {
		return
	}
	c.queued = true
	q.effects = append(q.effects, c)
}

func (q *EffectQueue) Len() int {
	return len(q.effects)
}

// RunEffects runs the effects queued so far. Effects queued while running
// wait for the next call.
func (q *EffectQueue) RunEffects() {
	effects := q.effects
	q.effects = nil

	for _, e := range effects {
		e.queued = false
		e.run()
	}
}

func (q *EffectQueue) Remove(c *Computation) {
	if !c.queued {
		return
	}
	c.queued = false
	for i, e := range q.effects {
		if e == c {
			q.effects = append(q.effects[:i], q.effects[i+1:]...)
			return
		}
	}
}
