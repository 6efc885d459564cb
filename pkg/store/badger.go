package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	kstore "github.com/goliatone/go-kstore"
)

const (
	snapshotKey    = "snapshot/current"
	revisionPrefix = "revision/"
	// conflictRetries bounds retries of a mutate transaction that lost a
	// write race inside Badger.
	conflictRetries = 3
)

// BadgerConfig holds configuration for the embedded database.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM; data is lost on Close.
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// Logger receives Badger's internal log lines. Nil disables them.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns a durable on-disk configuration for path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// InMemoryBadgerConfig returns a configuration suited to tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// OpenBadger opens a Badger database, creating the directory if needed.
func OpenBadger(cfg BadgerConfig) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store: badger path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("store: create badger directory %s: %w", cfg.Path, err)
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
	return db, nil
}

// BadgerStore persists the current snapshot and a revision log in Badger.
type BadgerStore struct {
	db    *badger.DB
	owned bool
	cfg   config
}

var _ kstore.ContextStoreManager = (*BadgerStore)(nil)

// NewBadgerStore wraps an open database. The caller keeps ownership of db.
func NewBadgerStore(db *badger.DB, opts ...Option) *BadgerStore {
	return &BadgerStore{db: db, cfg: newConfig(opts)}
}

// OpenBadgerStore opens a database and wraps it. Close releases it.
func OpenBadgerStore(bcfg BadgerConfig, opts ...Option) (*BadgerStore, error) {
	db, err := OpenBadger(bcfg)
	if err != nil {
		return nil, err
	}
	s := NewBadgerStore(db, opts...)
	s.owned = true
	return s, nil
}

// Close closes the database when the store opened it.
func (s *BadgerStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// Init stores snapshot as the current value unless one already exists.
func (s *BadgerStore) Init(ctx context.Context, snapshot kstore.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := snapshot.Validate(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(snapshotKey))
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("store: read snapshot: %w", err)
		}
		return setJSON(txn, snapshotKey, snapshot)
	})
}

// GetSnapshot returns the current snapshot, or an empty one when the store
// was never written.
func (s *BadgerStore) GetSnapshot(ctx context.Context) (kstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return kstore.Snapshot{}, err
	}
	var snapshot kstore.Snapshot
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		snapshot, err = readSnapshot(txn)
		return err
	})
	return snapshot, err
}

func (s *BadgerStore) Mutate(ctx context.Context, title, description string, automerge bool, before, after kstore.Snapshot) (kstore.ReviewURL, error) {
	if s.cfg.readOnly {
		return "", ErrReadOnly
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rev, ok, err := s.cfg.prepare(title, description, automerge, before, after)
	if err != nil || !ok {
		return "", err
	}

	for attempt := 1; ; attempt++ {
		err = s.db.Update(func(txn *badger.Txn) error {
			current, err := readSnapshot(txn)
			if err != nil {
				return err
			}
			next, err := kstore.ApplyDiff(current, rev.Diff)
			if err != nil {
				return err
			}
			if err := setJSON(txn, snapshotKey, next); err != nil {
				return err
			}
			return setJSON(txn, revisionPrefix+rev.ID, rev)
		})
		if !errors.Is(err, badger.ErrConflict) || attempt >= conflictRetries {
			break
		}
		s.cfg.logger.Debug("badger mutate conflict, retrying", "revision", rev.ID, "attempt", attempt)
	}
	if err != nil {
		return "", fmt.Errorf("store: apply %q: %w", title, err)
	}

	s.cfg.logRevision("badger", rev)
	return rev.URL, nil
}

// Revision returns the revision recorded under id.
func (s *BadgerStore) Revision(ctx context.Context, id string) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return Revision{}, err
	}
	var rev Revision
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(revisionPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrRevisionNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rev)
		})
	})
	return rev, err
}

// Revisions returns every revision ordered by creation time.
func (s *BadgerStore) Revisions(ctx context.Context) ([]Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []Revision
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(revisionPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rev Revision
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rev)
			}); err != nil {
				return fmt.Errorf("store: decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b Revision) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func readSnapshot(txn *badger.Txn) (kstore.Snapshot, error) {
	var snapshot kstore.Snapshot
	item, err := txn.Get([]byte(snapshotKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return snapshot, nil
	}
	if err != nil {
		return snapshot, fmt.Errorf("store: read snapshot: %w", err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &snapshot)
	})
	if err != nil {
		return kstore.Snapshot{}, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return snapshot, nil
}

func setJSON(txn *badger.Txn, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return txn.Set([]byte(key), raw)
}
