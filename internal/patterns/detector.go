package patterns

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

// Graph is the read side of a tracker.
type Graph interface {
	Nodes() []tracker.Node
	Edges() []tracker.Edge
}

type Detector struct {
	mu       sync.Mutex
	graph    Graph
	cfg      Config
	windows  map[string]*window
	expected map[string]struct{}
	debounce *debouncer

	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Detector)

func WithConfig(cfg Config) Option {
	return func(d *Detector) { d.cfg = cfg }
}

// WithClock sets the clock used to stamp patterns and age hot-path windows.
// It should match the clock of the tracker feeding HandleEvent.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) { d.logger = logger }
}

func New(graph Graph, opts ...Option) (*Detector, error) {
	d := &Detector{
		graph:    graph,
		cfg:      DefaultConfig(),
		windows:  make(map[string]*window),
		expected: make(map[string]struct{}),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("patterns: new: %w", err)
	}
	d.debounce = newDebouncer(d.cfg.Debounce)
	return d, nil
}

func (d *Detector) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// SetConfig replaces the thresholds. Hot-path windows are kept.
func (d *Detector) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("patterns: set config: %w", err)
	}

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()

	d.debounce.setDelay(cfg.Debounce)
	return nil
}

// HandleEvent records signal writes and computation ends in the hot-path
// window of their node and restarts the debounce timer. Other events only
// restart the timer.
func (d *Detector) HandleEvent(e tracker.Event) {
	switch e.Data.(type) {
	case tracker.SignalWrite, tracker.ComputationExecuteEnd:
		d.mu.Lock()
		w, ok := d.windows[e.NodeID]
		if !ok {
			w = &window{}
			d.windows[e.NodeID] = w
		}
		w.add(e.Timestamp)
		d.mu.Unlock()
	}
	d.debounce.trigger()
}

// Ready receives once the debounce delay elapsed after the last event.
// The detector never runs an analysis on its own.
func (d *Detector) Ready() <-chan struct{} {
	return d.debounce.ready
}

// Reset clears the hot-path windows and cancels a pending debounce.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.windows = make(map[string]*window)
	d.mu.Unlock()

	d.debounce.stop()
}

// Close stops the debounce timer.
func (d *Detector) Close() {
	d.debounce.stop()
}

// RunAnalysis runs every detector against one snapshot, cheapest first.
// ctx only carries tracing; an analysis always runs to completion.
func (d *Detector) RunAnalysis(ctx context.Context) AnalysisResult {
	start := time.Now()
	s := d.snapshot()

	ctx, span := startAnalysisSpan(ctx, len(s.nodes), s.edgeCount)
	defer span.End()

	detectors := []struct {
		typ Type
		fn  func(snapshot) []Pattern
	}{
		{TypeOrphanedEffect, d.detectOrphanedEffects},
		{TypeHighSubscriptions, d.detectHighSubscriptions},
		{TypeStaleMemo, d.detectStaleMemos},
		{TypeDeepChain, d.detectDeepChains},
		{TypeHotPath, d.detectHotPaths},
		{TypeDiamond, d.detectDiamonds},
	}

	result := AnalysisResult{
		Patterns:      []Pattern{},
		Timestamp:     s.at,
		NodesAnalyzed: len(s.nodes),
		EdgesAnalyzed: s.edgeCount,
	}
	for _, det := range detectors {
		_, dspan := startDetectorSpan(ctx, det.typ)
		found := det.fn(s)
		dspan.End()
		result.Patterns = append(result.Patterns, found...)
	}
	result.Duration = time.Since(start)

	if s.cfg.MaxAnalysisTime > 0 && result.Duration > s.cfg.MaxAnalysisTime {
		d.logger.Warn("pattern analysis exceeded budget",
			"duration", result.Duration,
			"budget", s.cfg.MaxAnalysisTime,
			"nodes", result.NodesAnalyzed,
			"edges", result.EdgesAnalyzed,
		)
	}
	setAnalysisSpanResult(span, result, s.cfg.MaxAnalysisTime)
	recordAnalysis(ctx, result)

	return result
}

func (d *Detector) DetectOrphanedEffects() []Pattern {
	return d.detectOrphanedEffects(d.snapshot())
}

func (d *Detector) DetectHighSubscriptions() []Pattern {
	return d.detectHighSubscriptions(d.snapshot())
}

func (d *Detector) DetectStaleMemos() []Pattern {
	return d.detectStaleMemos(d.snapshot())
}

func (d *Detector) DetectDeepChains() []Pattern {
	return d.detectDeepChains(d.snapshot())
}

func (d *Detector) DetectHotPaths() []Pattern {
	return d.detectHotPaths(d.snapshot())
}

func (d *Detector) DetectDiamonds() []Pattern {
	return d.detectDiamonds(d.snapshot())
}

// MarkExpected flags a pattern id as intentional. Later results carrying
// the same id have IsExpected set.
func (d *Detector) MarkExpected(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expected[id] = struct{}{}
}

func (d *Detector) UnmarkExpected(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.expected, id)
}

func (d *Detector) IsExpected(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.expected[id]
	return ok
}

// Expected returns the marked ids in sorted order.
func (d *Detector) Expected() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Sorted(maps.Keys(d.expected))
}

// snapshot is one consistent view of the graph. Disposed nodes are left
// out; the runtime drops their dependency edges on disposal.
type snapshot struct {
	at        time.Time
	cfg       Config
	nodes     []tracker.Node
	byID      map[string]*tracker.Node
	edgeCount int

	// hot-path rates in updates per second, computed under the lock
	rates    map[string]float64
	expected map[string]struct{}
}

func (d *Detector) snapshot() snapshot {
	nodes := d.graph.Nodes()
	edges := d.graph.Edges()

	d.mu.Lock()
	defer d.mu.Unlock()

	s := snapshot{
		at:        d.now(),
		cfg:       d.cfg,
		byID:      make(map[string]*tracker.Node, len(nodes)),
		edgeCount: len(edges),
		rates:     make(map[string]float64, len(d.windows)),
		expected:  maps.Clone(d.expected),
	}
	for _, n := range nodes {
		if _, disposed := n.IsDisposed(); disposed {
			continue
		}
		s.nodes = append(s.nodes, n)
	}
	for i := range s.nodes {
		s.byID[s.nodes[i].ID] = &s.nodes[i]
	}

	cutoff := s.at.Add(-d.cfg.HotPathWindow)
	for id, w := range d.windows {
		count := w.prune(cutoff)
		if count == 0 {
			delete(d.windows, id)
			continue
		}
		s.rates[id] = float64(count) / d.cfg.HotPathWindow.Seconds()
	}
	return s
}

func (s snapshot) pattern(typ Type, sev Severity, affected []string, desc, fix string, meta map[string]any) Pattern {
	id := patternID(typ, affected, s.at)
	_, expected := s.expected[id]
	return Pattern{
		ID:              id,
		Type:            typ,
		Severity:        sev,
		AffectedNodeIDs: affected,
		Timestamp:       s.at,
		Description:     desc,
		Remediation:     fix,
		Metadata:        meta,
		IsExpected:      expected,
	}
}

// label renders a node as its name when it has one.
func label(n *tracker.Node) string {
	if n.Name != "" {
		return fmt.Sprintf("%q (%s)", n.Name, n.ID)
	}
	return n.ID
}
