// Package patterns finds structural anti-patterns in a reactive graph:
// orphaned effects, deep dependency chains, diamond convergence, hot update
// paths, excessive fan-out and memos nobody reads.
//
// Detectors are pure functions of a node and edge snapshot. Only the
// hot-path detector keeps state, a per-node sliding window fed by
// HandleEvent.
package patterns

import (
	"time"
)

type Type string

const (
	TypeOrphanedEffect    Type = "orphaned-effect"
	TypeDeepChain         Type = "deep-chain"
	TypeDiamond           Type = "diamond-pattern"
	TypeHotPath           Type = "hot-path"
	TypeHighSubscriptions Type = "high-subscriptions"
	TypeStaleMemo         Type = "stale-memo"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Pattern is one detected issue.
type Pattern struct {
	ID              string         `json:"id"`
	Type            Type           `json:"type"`
	Severity        Severity       `json:"severity"`
	AffectedNodeIDs []string       `json:"affectedNodeIds"`
	Timestamp       time.Time      `json:"timestamp"`
	Description     string         `json:"description"`
	Remediation     string         `json:"remediation"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	IsExpected      bool           `json:"isExpected"`
}

type AnalysisResult struct {
	Patterns      []Pattern     `json:"patterns"`
	Duration      time.Duration `json:"duration"`
	Timestamp     time.Time     `json:"timestamp"`
	NodesAnalyzed int           `json:"nodesAnalyzed"`
	EdgesAnalyzed int           `json:"edgesAnalyzed"`
}

// Count returns how many patterns of typ the result holds.
func (r AnalysisResult) Count(typ Type) int {
	n := 0
	for _, p := range r.Patterns {
		if p.Type == typ {
			n++
		}
	}
	return n
}
