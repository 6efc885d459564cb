package kstore

import "context"

// ReviewURL points at the change request a mutation produced.
type ReviewURL string

// SnapshotReader fetches the current full snapshot of a store. Shared
// read-only stores only need to implement this.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context) (Snapshot, error)
}

// ContextStoreManager is the capability every writable knowledge store
// implements.
//
// Mutate persists the change from before to after, given the exact snapshots
// the caller observed. Implementations own idempotency, retries and handling
// of concurrent external writes.
type ContextStoreManager interface {
	SnapshotReader
	Mutate(ctx context.Context, title, description string, automerge bool, before, after Snapshot) (ReviewURL, error)
}

// ManagerFuncs adapts plain functions to ContextStoreManager. A nil
// MutateFunc makes Mutate a no-op that returns an empty URL.
type ManagerFuncs struct {
	GetSnapshotFunc func(ctx context.Context) (Snapshot, error)
	MutateFunc      func(ctx context.Context, title, description string, automerge bool, before, after Snapshot) (ReviewURL, error)
}

// GetSnapshot dispatches to GetSnapshotFunc.
func (m ManagerFuncs) GetSnapshot(ctx context.Context) (Snapshot, error) {
	if m.GetSnapshotFunc == nil {
		return Snapshot{}, nil
	}
	return m.GetSnapshotFunc(ctx)
}

// Mutate dispatches to MutateFunc.
func (m ManagerFuncs) Mutate(ctx context.Context, title, description string, automerge bool, before, after Snapshot) (ReviewURL, error) {
	if m.MutateFunc == nil {
		return "", nil
	}
	return m.MutateFunc(ctx, title, description, automerge, before, after)
}
