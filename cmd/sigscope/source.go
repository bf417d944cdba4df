package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AnatoleLucet/sigscope"
	"github.com/AnatoleLucet/sigscope/internal/ctxlog"
	"github.com/AnatoleLucet/sigscope/internal/recording"
	"github.com/AnatoleLucet/sigscope/internal/recording/store"
	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

func openStore(ctx context.Context) (recording.Store, error) {
	return store.Open(ctx, settings.Store.Driver, settings.Store.Path, ctxlog.FromContext(ctx))
}

// loadEvents reads a .jsonl file when arg names one, and a stored recording
// by id otherwise.
func loadEvents(ctx context.Context, arg string) ([]tracker.Event, error) {
	if filepath.Ext(arg) == ".jsonl" {
		return readEventsFile(arg)
	}

	store, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	rec, err := store.Load(ctx, arg)
	if err != nil {
		return nil, err
	}
	return rec.Events, nil
}

func readEventsFile(path string) ([]tracker.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return recording.ReadJSONL(f)
}

func devtoolsOptions(ctx context.Context) []sigscope.DevtoolsOption {
	return []sigscope.DevtoolsOption{
		sigscope.WithAnalysis(settings.Analysis.Patterns()),
		sigscope.WithReplayCapacity(settings.Replay.CacheCapacity),
		sigscope.WithLogger(ctxlog.FromContext(ctx)),
	}
}

// loadDevtools rebuilds a session from arg and applies the expectations
// file, if any.
func loadDevtools(ctx context.Context, arg string) (*sigscope.Devtools, error) {
	events, err := loadEvents(ctx, arg)
	if err != nil {
		return nil, err
	}
	d, err := sigscope.LoadDevtools(events, devtoolsOptions(ctx)...)
	if err != nil {
		return nil, err
	}
	if err := loadExpected(d); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func loadExpected(d *sigscope.Devtools) error {
	if settings.Analysis.ExpectationsFile == "" {
		return nil
	}
	return d.Detector().LoadExpected(settings.Analysis.ExpectationsFile)
}
