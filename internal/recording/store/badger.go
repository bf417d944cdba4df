package store

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/dgraph-io/badger/v4"

	"github.com/AnatoleLucet/sigscope/internal/recording"
)

const (
	recordingPrefix = "recording/"
	summaryPrefix   = "summary/"
)

type BadgerConfig struct {
	// Path is the database directory, ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool

	// Logger receives badger's own logs. Nil disables them.
	Logger *slog.Logger
}

// BadgerStore keeps each recording under one key and its summary under
// another, so listing never decodes event logs.
type BadgerStore struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("store: open badger: path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("store: create %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Save(ctx context.Context, rec recording.Recording) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", rec.ID, err)
	}
	summary, err := json.Marshal(rec.Summary())
	if err != nil {
		return fmt.Errorf("store: save %s: %w", rec.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(recordingPrefix+rec.ID), data); err != nil {
			return err
		}
		return txn.Set([]byte(summaryPrefix+rec.ID), summary)
	})
	if err != nil {
		return fmt.Errorf("store: save %s: %w", rec.ID, err)
	}
	return nil
}

func (s *BadgerStore) Load(ctx context.Context, id string) (recording.Recording, error) {
	if err := ctx.Err(); err != nil {
		return recording.Recording{}, err
	}

	var rec recording.Recording
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordingPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return recording.Recording{}, fmt.Errorf("store: load %s: %w", id, recording.ErrNotFound)
	}
	if err != nil {
		return recording.Recording{}, fmt.Errorf("store: load %s: %w", id, err)
	}
	return rec, nil
}

func (s *BadgerStore) List(ctx context.Context) ([]recording.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var summaries []recording.Summary
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(summaryPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var summary recording.Summary
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &summary)
			})
			if err != nil {
				return err
			}
			summaries = append(summaries, summary)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}

	sortSummaries(summaries)
	return summaries, nil
}

func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(summaryPrefix + id)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(recordingPrefix + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(summaryPrefix + id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("store: delete %s: %w", id, recording.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: delete %s: %w", id, err)
	}
	return nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func sortSummaries(summaries []recording.Summary) {
	slices.SortFunc(summaries, func(a, b recording.Summary) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
