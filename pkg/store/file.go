package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	kstore "github.com/goliatone/go-kstore"
	"github.com/goliatone/go-kstore/internal/hydrate"
	"gopkg.in/yaml.v3"
)

// FileStore serves a snapshot stored as one YAML document. The file is
// re-read on every call so edits made outside the process are picked up.
//
// A writable FileStore treats a missing file as an empty store and writes
// through a temp file and rename. A read-only one (WithReadOnly) requires the
// file to exist.
type FileStore struct {
	path  string
	layer string
	cfg   config
	mu    sync.Mutex
}

var _ kstore.ContextStoreManager = (*FileStore)(nil)

// NewFileStore returns a store backed by the YAML file at path.
func NewFileStore(path string, opts ...Option) *FileStore {
	cfg := newConfig(opts)
	layer := "mutable"
	if cfg.readOnly {
		layer = "shared"
	}
	return &FileStore{path: path, layer: layer, cfg: cfg}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) GetSnapshot(ctx context.Context) (kstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return kstore.Snapshot{}, err
	}
	return s.read()
}

func (s *FileStore) Mutate(ctx context.Context, title, description string, automerge bool, before, after kstore.Snapshot) (kstore.ReviewURL, error) {
	if s.cfg.readOnly {
		return "", fmt.Errorf("%w: %s", ErrReadOnly, s.path)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rev, ok, err := s.cfg.prepare(title, description, automerge, before, after)
	if err != nil || !ok {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.read()
	if err != nil {
		return "", err
	}
	next, err := kstore.ApplyDiff(current, rev.Diff)
	if err != nil {
		return "", fmt.Errorf("store: apply %q: %w", title, err)
	}
	if err := WriteSnapshotFile(s.path, next); err != nil {
		return "", err
	}
	s.cfg.logRevision("file", rev)
	return rev.URL, nil
}

func (s *FileStore) read() (kstore.Snapshot, error) {
	snapshot, err := ReadSnapshotFile(s.path, s.layer)
	if errors.Is(err, fs.ErrNotExist) && !s.cfg.readOnly {
		return kstore.Snapshot{}, nil
	}
	return snapshot, err
}

var snapshotDecoder = hydrate.NewDecoder(
	hydrate.WithDisallowUnknownFields[kstore.Snapshot](),
	hydrate.WithPostHook[kstore.Snapshot](func(_ hydrate.Source, s *kstore.Snapshot) error {
		return s.Validate()
	}),
)

// ReadSnapshotFile decodes and validates the YAML snapshot at path. layer
// only labels errors.
func ReadSnapshotFile(path, layer string) (kstore.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return kstore.Snapshot{}, fmt.Errorf("store: read %s: %w", path, err)
	}
	return snapshotDecoder.DecodeYAML(hydrate.Source{Path: path, Layer: layer}, raw)
}

// WriteSnapshotFile encodes snapshot as YAML and replaces path atomically.
func WriteSnapshotFile(path string, snapshot kstore.Snapshot) error {
	raw, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", path, err)
	}
	if err := writeFileAtomic(path, raw, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
