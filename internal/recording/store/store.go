// Package store persists recordings in badger or sqlite.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AnatoleLucet/sigscope/internal/recording"
)

const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// Open opens the store selected by driver. For badger, path is a directory;
// for sqlite, a database file.
func Open(ctx context.Context, driver, path string, logger *slog.Logger) (recording.Store, error) {
	switch driver {
	case DriverBadger, "":
		return OpenBadger(BadgerConfig{Path: path, SyncWrites: true, Logger: logger})
	case DriverSQLite:
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("store: open: unknown driver %q", driver)
	}
}
