package kstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/goliatone/go-kstore/layering"
	"golang.org/x/sync/errgroup"
)

// MutableLayerName is the provenance name of the writable store in a
// Composite.
const MutableLayerName = "mutable"

// CompositeOption configures a Composite.
type CompositeOption func(*compositeConfig)

type compositeConfig struct {
	logger      *slog.Logger
	sharedNames []string
}

// WithLogger sets the logger used for debug output. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) CompositeOption {
	return func(cfg *compositeConfig) {
		cfg.logger = logger
	}
}

// WithSharedNames names the shared stores, in the order they were passed to
// NewComposite, for provenance reporting. Unnamed stores are called
// "shared[i]".
func WithSharedNames(names ...string) CompositeOption {
	return func(cfg *compositeConfig) {
		cfg.sharedNames = append([]string(nil), names...)
	}
}

// Composite layers one writable store over zero or more read-only shared
// stores. Shared stores contribute dataset documentation only; every other
// field comes from the writable store. Composite implements
// ContextStoreManager, so it can stand in for a single store.
type Composite struct {
	mutable ContextStoreManager
	shared  []SnapshotReader
	names   []string
	logger  *slog.Logger
}

var _ ContextStoreManager = (*Composite)(nil)

// NewComposite builds a Composite. shared is ordered by precedence: earlier
// stores win over later ones, and the writable store wins over all of them.
func NewComposite(mutable ContextStoreManager, shared []SnapshotReader, opts ...CompositeOption) *Composite {
	cfg := compositeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	names := make([]string, 0, len(shared)+1)
	names = append(names, MutableLayerName)
	for i := range shared {
		name := fmt.Sprintf("shared[%d]", i)
		if i < len(cfg.sharedNames) && cfg.sharedNames[i] != "" {
			name = cfg.sharedNames[i]
		}
		names = append(names, name)
	}

	return &Composite{
		mutable: mutable,
		shared:  slices.Clone(shared),
		names:   names,
		logger:  logger,
	}
}

// GetSnapshot returns the writable snapshot with datasets merged from every
// shared store, sorted by (connection, table).
func (c *Composite) GetSnapshot(ctx context.Context) (Snapshot, error) {
	mutable, folded, err := c.load(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	merged := mutable.Clone()
	merged.Datasets = nil
	if folded.Len() > 0 {
		merged.Datasets = cloneSlice(folded.Sorted(DatasetKey.Compare), DatasetEntry.clone)
	}
	c.logger.Debug("composite snapshot merged",
		"datasets", len(merged.Datasets),
		"mutable_datasets", len(mutable.Datasets),
		"shared_stores", len(c.shared),
	)
	return merged, nil
}

// Provenance reports which layer supplies each dataset of the merged view.
func (c *Composite) Provenance(ctx context.Context) (map[DatasetKey]layering.Provenance, error) {
	_, folded, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[DatasetKey]layering.Provenance, folded.Len())
	for _, key := range folded.Keys() {
		src, _ := folded.Source(key)
		out[key] = src
	}
	return out, nil
}

// Mutate strips shared-sourced datasets from before and after and forwards
// the rest to the writable store. It fails with a
// *SharedDatasetMutationError when the change would add, remove or edit a
// dataset a shared store provides.
func (c *Composite) Mutate(ctx context.Context, title, description string, automerge bool, before, after Snapshot) (ReviewURL, error) {
	_, folded, err := c.load(ctx)
	if err != nil {
		return "", err
	}

	beforeIndex, err := indexOrdered(scopeDatasets, before.Datasets, DatasetEntry.Key)
	if err != nil {
		return "", err
	}
	afterIndex, err := indexOrdered(scopeDatasets, after.Datasets, DatasetEntry.Key)
	if err != nil {
		return "", err
	}

	shared := c.sharedKeys(folded)
	for _, key := range shared {
		current, _ := folded.Get(key)
		_, inBefore := beforeIndex[key]
		ai, inAfter := afterIndex[key]

		var action Action
		switch {
		case inBefore && inAfter:
			if !after.Datasets[ai].Documentation.Equal(current.Documentation) {
				action = ActionModified
			}
		case inBefore:
			action = ActionRemoved
		case inAfter:
			action = ActionAdded
		}
		if action != "" {
			return "", &SharedDatasetMutationError{Connection: key.Connection, Table: key.Table, Action: action}
		}
	}

	strippedBefore := stripDatasets(before, shared)
	strippedAfter := stripDatasets(after, shared)
	c.logger.Debug("composite mutation delegated",
		"title", title,
		"shared_datasets_stripped", len(shared),
		"datasets_before", len(strippedBefore.Datasets),
		"datasets_after", len(strippedAfter.Datasets),
	)
	return c.mutable.Mutate(ctx, title, description, automerge, strippedBefore, strippedAfter)
}

// load fetches the writable and shared snapshots concurrently and folds
// their datasets. Any fetch failure or duplicate identity key in a fetched
// snapshot aborts the whole load.
func (c *Composite) load(ctx context.Context) (Snapshot, layering.Result[DatasetKey, DatasetEntry], error) {
	var (
		mutable Snapshot
		shared  = make([]Snapshot, len(c.shared))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snapshot, err := c.mutable.GetSnapshot(gctx)
		if err != nil {
			return fmt.Errorf("kstore: fetch %s store: %w", c.names[0], err)
		}
		if err := snapshot.Validate(); err != nil {
			return fmt.Errorf("kstore: %s store: %w", c.names[0], err)
		}
		mutable = snapshot
		return nil
	})
	for i, reader := range c.shared {
		g.Go(func() error {
			snapshot, err := reader.GetSnapshot(gctx)
			if err != nil {
				return fmt.Errorf("kstore: fetch %s store: %w", c.names[i+1], err)
			}
			if err := snapshot.Validate(); err != nil {
				return fmt.Errorf("kstore: %s store: %w", c.names[i+1], err)
			}
			shared[i] = snapshot
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, layering.Result[DatasetKey, DatasetEntry]{}, err
	}

	layers := make([]layering.Layer[DatasetEntry], 0, len(shared)+1)
	layers = append(layers, layering.Layer[DatasetEntry]{Name: c.names[0], Items: mutable.Datasets})
	for i, snapshot := range shared {
		layers = append(layers, layering.Layer[DatasetEntry]{Name: c.names[i+1], Items: snapshot.Datasets})
	}
	folded, err := layering.Fold(DatasetEntry.Key, layers...)
	if err != nil {
		return Snapshot{}, layering.Result[DatasetKey, DatasetEntry]{}, fmt.Errorf("kstore: fold datasets: %w", err)
	}
	return mutable, folded, nil
}

// sharedKeys lists the dataset keys whose winner is a shared store, sorted.
func (c *Composite) sharedKeys(folded layering.Result[DatasetKey, DatasetEntry]) []DatasetKey {
	var keys []DatasetKey
	for _, key := range folded.Keys() {
		if !folded.Owned(key, 0) {
			keys = append(keys, key)
		}
	}
	slices.SortFunc(keys, DatasetKey.Compare)
	return keys
}

func stripDatasets(s Snapshot, keys []DatasetKey) Snapshot {
	out := s.Clone()
	if len(keys) == 0 {
		return out
	}
	drop := make(map[DatasetKey]struct{}, len(keys))
	for _, key := range keys {
		drop[key] = struct{}{}
	}
	out.Datasets = slices.DeleteFunc(out.Datasets, func(entry DatasetEntry) bool {
		_, ok := drop[entry.Key()]
		return ok
	})
	if len(out.Datasets) == 0 {
		out.Datasets = nil
	}
	return out
}
