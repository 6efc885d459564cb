// Package store provides knowledge-store backends implementing
// kstore.ContextStoreManager.
//
// Every backend handles Mutate the same way: it computes the diff between the
// caller's before and after snapshots, applies that diff to its own current
// snapshot, persists the result and records a Revision. Applying the diff,
// rather than overwriting with after, keeps non-conflicting writes made by
// others since the caller read; conflicting ones surface as
// kstore.ErrStaleBase.
//
// Backends:
//
//	MemoryStore  in-process, for tests, examples and dry runs
//	BadgerStore  embedded Badger database with a revision log
//	FileStore    a single YAML document, usually a read-only shared store
package store
