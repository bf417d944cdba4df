package patterns

import (
	"fmt"
	"slices"
)

// maxPathSteps bounds the simple-path enumeration done for one diamond
// candidate. Dense graphs have exponentially many paths.
const maxPathSteps = 10_000

func (s snapshot) activeSources(id string) []string {
	n, ok := s.byID[id]
	if !ok {
		return nil
	}
	var out []string
	for _, src := range n.Sources {
		if _, ok := s.byID[src]; ok {
			out = append(out, src)
		}
	}
	return out
}

// detectDeepChains runs one BFS per root, a node without live sources. The
// visited set belongs to the traversal, so a node reachable from several
// roots is counted once per root.
func (d *Detector) detectDeepChains(s snapshot) []Pattern {
	var out []Pattern
	for i := range s.nodes {
		root := &s.nodes[i]
		if len(root.Observers) == 0 || len(s.activeSources(root.ID)) > 0 {
			continue
		}

		depth := map[string]int{root.ID: 0}
		parent := map[string]string{}
		deepest := root.ID
		queue := []string{root.ID}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, obs := range s.byID[id].Observers {
				if _, ok := s.byID[obs]; !ok {
					continue
				}
				if _, seen := depth[obs]; seen {
					continue
				}
				depth[obs] = depth[id] + 1
				parent[obs] = id
				if depth[obs] > depth[deepest] {
					deepest = obs
				}
				queue = append(queue, obs)
			}
		}

		longest := depth[deepest]
		if longest <= s.cfg.DeepChainThreshold {
			continue
		}

		path := []string{deepest}
		for id := deepest; id != root.ID; {
			id = parent[id]
			path = append(path, id)
		}
		slices.Reverse(path)

		sev := SeverityMedium
		if longest > deepChainHighDepth {
			sev = SeverityHigh
		}
		out = append(out, s.pattern(TypeDeepChain, sev, path,
			fmt.Sprintf("Dependency chain from %s is %d levels deep", label(root), longest),
			"Flatten the chain by deriving from the source directly or merging intermediate memos",
			map[string]any{
				"depth":     longest,
				"rootId":    root.ID,
				"path":      path,
				"threshold": s.cfg.DeepChainThreshold,
			},
		))
	}
	return out
}

// detectDiamonds looks at every node with at least two live sources and
// counts the simple paths reaching it from each upstream node. The upstream
// node with the most paths is the origin of the diamond.
func (d *Detector) detectDiamonds(s snapshot) []Pattern {
	var out []Pattern
	for i := range s.nodes {
		target := &s.nodes[i]
		if len(s.activeSources(target.ID)) < 2 {
			continue
		}

		counts, dist, truncated := s.countPaths(target.ID)
		origin, paths := "", 0
		for id, c := range counts {
			if c > paths ||
				(c == paths && dist[id] < dist[origin]) ||
				(c == paths && dist[id] == dist[origin] && id < origin) {
				origin, paths = id, c
			}
		}
		if paths < s.cfg.DiamondMinPaths {
			continue
		}

		sev := SeverityLow
		if paths > diamondMediumPaths {
			sev = SeverityMedium
		}
		meta := map[string]any{
			"nodeId":    target.ID,
			"originId":  origin,
			"pathCount": paths,
		}
		if truncated {
			meta["truncated"] = true
		}
		out = append(out, s.pattern(TypeDiamond, sev, s.between(origin, target.ID, counts),
			fmt.Sprintf("%d paths from %s converge on %s", paths, origin, label(target)),
			"Derive the converging values in a single memo so the node does not depend on the same source twice",
			meta,
		))
	}
	return out
}

// countPaths walks every simple path upstream from target. counts[a] is the
// number of distinct paths from a to target and dist[a] the shortest of
// them in edges.
func (s snapshot) countPaths(target string) (counts, dist map[string]int, truncated bool) {
	counts = make(map[string]int)
	dist = make(map[string]int)
	onPath := map[string]bool{target: true}
	steps := 0

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		for _, src := range s.activeSources(id) {
			if onPath[src] {
				continue
			}
			if steps >= maxPathSteps {
				truncated = true
				return
			}
			steps++

			counts[src]++
			if prev, ok := dist[src]; !ok || depth+1 < prev {
				dist[src] = depth + 1
			}
			onPath[src] = true
			walk(src, depth+1)
			delete(onPath, src)
		}
	}
	walk(target, 0)
	return counts, dist, truncated
}

// between lists origin, the upstream nodes of target that origin reaches,
// then target, in BFS order from origin.
func (s snapshot) between(origin, target string, upstream map[string]int) []string {
	out := []string{origin}
	seen := map[string]bool{origin: true}
	queue := []string{origin}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, obs := range s.byID[id].Observers {
			if _, ok := upstream[obs]; !ok || seen[obs] {
				continue
			}
			seen[obs] = true
			out = append(out, obs)
			queue = append(queue, obs)
		}
	}
	return append(out, target)
}
