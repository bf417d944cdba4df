package tracker

import "time"

type EdgeType string

const (
	// target read source during its last execution
	EdgeDependency EdgeType = "dependency"
	// target was created inside source's scope
	EdgeOwnership EdgeType = "ownership"
)

type Edge struct {
	ID     string
	Type   EdgeType
	Source string
	Target string

	LastTriggeredAt time.Time
	TriggerCount    int
}

// EdgeID derives the edge id, so there is at most one edge of a type
// between an ordered pair of nodes.
func EdgeID(typ EdgeType, source, target string) string {
	return string(typ) + "-" + source + "-" + target
}
