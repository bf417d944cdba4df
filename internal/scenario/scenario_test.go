package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/sigscope"
	"github.com/AnatoleLucet/sigscope/internal/patterns"
	"github.com/AnatoleLucet/sigscope/internal/runtime"
	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

func analyze(t *testing.T, s Scenario) patterns.AnalysisResult {
	t.Helper()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	devtools, err := sigscope.NewDevtools(sigscope.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	t.Cleanup(devtools.Close)

	s.Run(runtime.Default())
	return devtools.Analyze(context.Background())
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name string
		want patterns.Type
	}{
		{"diamond", patterns.TypeDiamond},
		{"chain", patterns.TypeDeepChain},
		{"orphan", patterns.TypeOrphanedEffect},
		{"hot", patterns.TypeHotPath},
		{"fanout", patterns.TypeHighSubscriptions},
		{"stale", patterns.TypeStaleMemo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Lookup(tt.name)
			require.NoError(t, err)

			result := analyze(t, s)
			assert.Positive(t, result.Count(tt.want), "%s not detected", tt.want)

			if tt.name != "orphan" {
				assert.Zero(t, result.Count(patterns.TypeOrphanedEffect))
			}
		})
	}
}

func TestDispose(t *testing.T) {
	for _, s := range All() {
		t.Run(s.Name, func(t *testing.T) {
			r := runtime.New()
			root := s.Run(r)
			root.Dispose()

			for _, n := range r.Tracker().Nodes() {
				if n.Type == tracker.NodeSignal || (n.Owner == "" && n.ID != root.ID()) {
					continue
				}
				_, disposed := n.IsDisposed()
				assert.True(t, disposed, "%s still active", n.ID)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	_, err := Lookup("nope")
	assert.Error(t, err)

	assert.Equal(t, []string{"diamond", "chain", "orphan", "hot", "fanout", "stale"}, Names())
}
