package sigscope

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/AnatoleLucet/sigscope/internal/patterns"
	"github.com/AnatoleLucet/sigscope/internal/recording"
	"github.com/AnatoleLucet/sigscope/internal/runtime"
	"github.com/AnatoleLucet/sigscope/internal/timetravel"
	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

type devtoolsOptions struct {
	analysis patterns.Config
	capacity int
	clock    func() time.Time
	logger   *slog.Logger
}

type DevtoolsOption func(*devtoolsOptions)

// WithAnalysis sets the pattern detector thresholds.
func WithAnalysis(cfg patterns.Config) DevtoolsOption {
	return func(o *devtoolsOptions) { o.analysis = cfg }
}

// WithReplayCapacity bounds the number of reconstructed states kept in cache.
func WithReplayCapacity(n int) DevtoolsOption {
	return func(o *devtoolsOptions) { o.capacity = n }
}

// WithClock stamps events with now instead of the wall clock.
func WithClock(now func() time.Time) DevtoolsOption {
	return func(o *devtoolsOptions) { o.clock = now }
}

func WithLogger(logger *slog.Logger) DevtoolsOption {
	return func(o *devtoolsOptions) { o.logger = logger }
}

// Devtools instruments the calling goroutine. It installs a fresh runtime,
// records its events, and keeps a pattern detector and a state
// reconstructor fed with them.
type Devtools struct {
	tracker  *tracker.Tracker
	detector *patterns.Detector
	replay   *timetravel.Reconstructor
	logger   *slog.Logger

	// events loaded from a recording, followed by the live ones
	base    []tracker.Event
	history *recording.Recorder

	unsubscribe func()
}

func NewDevtools(opts ...DevtoolsOption) (*Devtools, error) {
	o := newDevtoolsOptions(opts)

	trackerOpts := []tracker.Option{tracker.WithLogger(o.logger)}
	if o.clock != nil {
		trackerOpts = append(trackerOpts, tracker.WithClock(o.clock))
	}
	t := tracker.New(trackerOpts...)

	d, err := newDevtools(t, nil, o)
	if err != nil {
		return nil, err
	}

	runtime.SetDefault(runtime.New(runtime.WithTracker(t), runtime.WithLogger(o.logger)))
	return d, nil
}

// LoadDevtools rebuilds devtools from a recorded log without touching the
// calling goroutine's runtime. Hot paths are measured as of the last event.
func LoadDevtools(events []tracker.Event, opts ...DevtoolsOption) (*Devtools, error) {
	o := newDevtoolsOptions(opts)

	t, err := tracker.Replay(events, tracker.WithLogger(o.logger))
	if err != nil {
		return nil, fmt.Errorf("sigscope: load devtools: %w", err)
	}
	if o.clock == nil && len(events) > 0 {
		last := events[len(events)-1].Timestamp
		o.clock = func() time.Time { return last }
	}

	d, err := newDevtools(t, events, o)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		d.detector.HandleEvent(e)
	}
	return d, nil
}

func newDevtoolsOptions(opts []DevtoolsOption) devtoolsOptions {
	o := devtoolsOptions{
		analysis: patterns.DefaultConfig(),
		capacity: timetravel.DefaultCapacity,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newDevtools(t *tracker.Tracker, events []tracker.Event, o devtoolsOptions) (*Devtools, error) {
	detectorOpts := []patterns.Option{patterns.WithConfig(o.analysis), patterns.WithLogger(o.logger)}
	if o.clock != nil {
		detectorOpts = append(detectorOpts, patterns.WithClock(o.clock))
	}
	detector, err := patterns.New(t, detectorOpts...)
	if err != nil {
		return nil, fmt.Errorf("sigscope: devtools: %w", err)
	}
	replay, err := timetravel.New(events, timetravel.WithCapacity(o.capacity), timetravel.WithLogger(o.logger))
	if err != nil {
		detector.Close()
		return nil, fmt.Errorf("sigscope: devtools: %w", err)
	}

	d := &Devtools{
		tracker:  t,
		detector: detector,
		replay:   replay,
		logger:   o.logger,
		base:     slices.Clone(events),
	}
	d.history = recording.NewRecorder(t)
	d.unsubscribe = t.Subscribe(d.handle)
	return d, nil
}

func (d *Devtools) handle(e tracker.Event) {
	d.detector.HandleEvent(e)
	if err := d.replay.Append(e); err != nil {
		d.logger.Warn("event not replayable", "event", e.ID, "error", err)
	}
}

func (d *Devtools) Tracker() *tracker.Tracker {
	return d.tracker
}

func (d *Devtools) Detector() *patterns.Detector {
	return d.detector
}

func (d *Devtools) Reconstructor() *timetravel.Reconstructor {
	return d.replay
}

func (d *Devtools) Nodes() []tracker.Node {
	return d.tracker.Nodes()
}

func (d *Devtools) Edges() []tracker.Edge {
	return d.tracker.Edges()
}

// Events returns every event recorded since the devtools were created,
// after the loaded ones.
func (d *Devtools) Events() []tracker.Event {
	return append(slices.Clone(d.base), d.history.Events()...)
}

// Subscribe registers fn for every future event and returns a function that
// removes it.
func (d *Devtools) Subscribe(fn func(tracker.Event)) func() {
	return d.tracker.Subscribe(fn)
}

// Analyze runs every pattern detector against the current graph.
func (d *Devtools) Analyze(ctx context.Context) patterns.AnalysisResult {
	return d.detector.RunAnalysis(ctx)
}

// ReconstructAt returns the graph as it was at ts.
func (d *Devtools) ReconstructAt(ts time.Time) timetravel.GraphState {
	return d.replay.ReconstructAt(ts)
}

func (d *Devtools) CacheStats() timetravel.CacheStats {
	return d.replay.CacheStats()
}

// Snapshot captures the recorded events as a named recording.
func (d *Devtools) Snapshot(name string) (recording.Recording, error) {
	return recording.New(name, d.Events())
}

// Close stops recording. The runtime keeps working, untracked by anyone.
func (d *Devtools) Close() {
	d.unsubscribe()
	d.history.Stop()
	d.detector.Close()
}
