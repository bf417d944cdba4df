package patterns

import (
	"fmt"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

// activeObservers counts the observers of n that are still live.
func (s snapshot) activeObservers(n *tracker.Node) int {
	count := 0
	for _, id := range n.Observers {
		if _, ok := s.byID[id]; ok {
			count++
		}
	}
	return count
}

func (d *Detector) detectOrphanedEffects(s snapshot) []Pattern {
	var out []Pattern
	for i := range s.nodes {
		n := &s.nodes[i]
		if n.Type != tracker.NodeEffect || n.Owner != "" {
			continue
		}
		out = append(out, s.pattern(TypeOrphanedEffect, SeverityHigh, []string{n.ID},
			fmt.Sprintf("Effect %s was created outside any owner and is never disposed", label(n)),
			"Create the effect inside a root or another computation so it is disposed with its owner",
			map[string]any{"nodeId": n.ID},
		))
	}
	return out
}

func (d *Detector) detectHighSubscriptions(s snapshot) []Pattern {
	var out []Pattern
	for i := range s.nodes {
		n := &s.nodes[i]
		count := s.activeObservers(n)
		if count <= s.cfg.HighSubscriptionThreshold {
			continue
		}

		sev := SeverityMedium
		if count > highSubscriptionsHighObs {
			sev = SeverityHigh
		}
		out = append(out, s.pattern(TypeHighSubscriptions, sev, []string{n.ID},
			fmt.Sprintf("%s has %d observers", label(n), count),
			"Split the node or put a memo in front of it so fewer computations re-run on each change",
			map[string]any{
				"nodeId":        n.ID,
				"observerCount": count,
				"threshold":     s.cfg.HighSubscriptionThreshold,
			},
		))
	}
	return out
}

func (d *Detector) detectStaleMemos(s snapshot) []Pattern {
	var out []Pattern
	for i := range s.nodes {
		n := &s.nodes[i]
		if n.Type != tracker.NodeMemo || s.activeObservers(n) > 0 {
			continue
		}
		out = append(out, s.pattern(TypeStaleMemo, SeverityLow, []string{n.ID},
			fmt.Sprintf("Memo %s has no observers", label(n)),
			"Remove the memo or read it from a computation that needs it",
			map[string]any{
				"nodeId":         n.ID,
				"executionCount": n.ExecutionCount,
			},
		))
	}
	return out
}

func (d *Detector) detectHotPaths(s snapshot) []Pattern {
	var out []Pattern
	for i := range s.nodes {
		n := &s.nodes[i]
		rate, ok := s.rates[n.ID]
		if !ok || rate <= s.cfg.HotPathThreshold {
			continue
		}

		sev := SeverityMedium
		if rate > hotPathHighRate {
			sev = SeverityHigh
		}
		out = append(out, s.pattern(TypeHotPath, sev, []string{n.ID},
			fmt.Sprintf("%s updates %.1f times per second", label(n), rate),
			"Batch the writes or debounce the source so downstream computations run less often",
			map[string]any{
				"nodeId":           n.ID,
				"updatesPerSecond": rate,
				"windowMs":         s.cfg.HotPathWindow.Milliseconds(),
			},
		))
	}
	return out
}
