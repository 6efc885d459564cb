package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	kstore "github.com/goliatone/go-kstore"
	"github.com/goliatone/go-kstore/pkg/store"
	"gopkg.in/yaml.v3"
)

func readSnapshot(path string) (kstore.Snapshot, error) {
	return store.ReadSnapshotFile(path, filepath.Base(path))
}

func readDiff(path string) (kstore.SnapshotDiff, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return kstore.SnapshotDiff{}, fmt.Errorf("read diff %s: %w", path, err)
	}
	var diff kstore.SnapshotDiff
	if err := json.Unmarshal(raw, &diff); err != nil {
		return kstore.SnapshotDiff{}, fmt.Errorf("decode diff %s: %w", path, err)
	}
	return diff, nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func writeYAML(w io.Writer, value any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return err
	}
	return enc.Close()
}
