package kstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

type recordingManager struct {
	mu       sync.Mutex
	snapshot Snapshot
	err      error
	calls    []mutateCall
}

type mutateCall struct {
	Title, Description string
	Automerge          bool
	Before, After      Snapshot
}

func (m *recordingManager) GetSnapshot(context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Snapshot{}, m.err
	}
	return m.snapshot.Clone(), nil
}

func (m *recordingManager) Mutate(_ context.Context, title, description string, automerge bool, before, after Snapshot) (ReviewURL, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mutateCall{title, description, automerge, before, after})
	return ReviewURL("https://review.example/revisions/1"), nil
}

func dataset(conn, table, summary string) DatasetEntry {
	return DatasetEntry{Connection: conn, Table: table, Documentation: DatasetDocumentation{Summary: summary}}
}

func precedenceFixture() (*recordingManager, *Composite) {
	mutable := &recordingManager{snapshot: Snapshot{
		Project:  ProjectInfo{Name: "test/project", Version: 1},
		Datasets: []DatasetEntry{dataset("postgres", "users", "A")},
	}}
	shared := ManagerFuncs{GetSnapshotFunc: func(context.Context) (Snapshot, error) {
		return Snapshot{
			Project: ProjectInfo{Name: "shared/catalog", Version: 7},
			Datasets: []DatasetEntry{
				dataset("postgres", "users", "B"),
				dataset("postgres", "orders", "C"),
			},
			SystemPrompt: StringPtr("ignored"),
		}, nil
	}}
	return mutable, NewComposite(mutable, []SnapshotReader{shared}, WithSharedNames("catalog"))
}

func TestCompositeGetSnapshotPrecedence(t *testing.T) {
	_, composite := precedenceFixture()

	got, err := composite.GetSnapshot(context.Background())
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	want := []DatasetEntry{dataset("postgres", "orders", "C"), dataset("postgres", "users", "A")}
	if len(got.Datasets) != len(want) {
		t.Fatalf("expected %d datasets, got %+v", len(want), got.Datasets)
	}
	for i := range want {
		if !got.Datasets[i].Equal(want[i]) {
			t.Fatalf("dataset %d: want %+v, got %+v", i, want[i], got.Datasets[i])
		}
	}
	if got.Project.Name != "test/project" || got.SystemPrompt != nil {
		t.Fatalf("non-dataset fields must come from the mutable store, got %+v", got)
	}
}

func TestCompositeProvenance(t *testing.T) {
	_, composite := precedenceFixture()

	prov, err := composite.Provenance(context.Background())
	if err != nil {
		t.Fatalf("provenance: %v", err)
	}
	users := prov[DatasetKey{Connection: "postgres", Table: "users"}]
	if users.Name != MutableLayerName || len(users.Shadowed) != 1 || users.Shadowed[0] != "catalog" {
		t.Fatalf("unexpected users provenance %+v", users)
	}
	orders := prov[DatasetKey{Connection: "postgres", Table: "orders"}]
	if orders.Name != "catalog" || orders.Layer != 1 {
		t.Fatalf("unexpected orders provenance %+v", orders)
	}
}

func TestCompositeRejectsSharedModification(t *testing.T) {
	mutable, composite := precedenceFixture()
	ctx := context.Background()

	before, err := composite.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	after := before.Clone()
	after.Datasets[0].Documentation.Summary = "edited"

	_, err = composite.Mutate(ctx, "edit orders", "", true, before, after)
	if !errors.Is(err, ErrSharedDatasetMutation) {
		t.Fatalf("expected ErrSharedDatasetMutation, got %v", err)
	}
	var sharedErr *SharedDatasetMutationError
	if !errors.As(err, &sharedErr) {
		t.Fatalf("expected *SharedDatasetMutationError, got %T", err)
	}
	if sharedErr.Connection != "postgres" || sharedErr.Table != "orders" || sharedErr.Action != ActionModified {
		t.Fatalf("unexpected error metadata %+v", sharedErr)
	}
	for _, part := range []string{"postgres", "orders", "modified"} {
		if !strings.Contains(err.Error(), part) {
			t.Fatalf("error %q does not mention %q", err, part)
		}
	}
	if len(mutable.calls) != 0 {
		t.Fatalf("mutation must not reach the mutable store")
	}
}

func TestCompositeRejectsSharedRemoval(t *testing.T) {
	_, composite := precedenceFixture()
	ctx := context.Background()

	before, _ := composite.GetSnapshot(ctx)
	after := before.Clone()
	after.Datasets = after.Datasets[1:]

	_, err := composite.Mutate(ctx, "drop orders", "", false, before, after)
	var sharedErr *SharedDatasetMutationError
	if !errors.As(err, &sharedErr) || sharedErr.Action != ActionRemoved || sharedErr.Table != "orders" {
		t.Fatalf("expected removal rejection, got %v", err)
	}
}

func TestCompositeRejectsSharedAddition(t *testing.T) {
	_, composite := precedenceFixture()
	ctx := context.Background()

	before := Snapshot{Datasets: []DatasetEntry{dataset("postgres", "users", "A")}}
	after := before.Clone()
	after.Datasets = append(after.Datasets, dataset("postgres", "orders", "C"))

	_, err := composite.Mutate(ctx, "add orders", "", false, before, after)
	var sharedErr *SharedDatasetMutationError
	if !errors.As(err, &sharedErr) || sharedErr.Action != ActionAdded {
		t.Fatalf("expected addition rejection, got %v", err)
	}
}

func TestCompositeDelegatesFilteredSnapshots(t *testing.T) {
	mutable, composite := precedenceFixture()
	ctx := context.Background()

	before, err := composite.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	after := before.Clone()
	after.Datasets = append(after.Datasets, dataset("postgres", "payments", "D"))

	url, err := composite.Mutate(ctx, "add payments", "docs", true, before, after)
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if url != "https://review.example/revisions/1" {
		t.Fatalf("unexpected review url %q", url)
	}
	if len(mutable.calls) != 1 {
		t.Fatalf("expected one delegated call, got %d", len(mutable.calls))
	}
	call := mutable.calls[0]
	if call.Title != "add payments" || call.Description != "docs" || !call.Automerge {
		t.Fatalf("unexpected delegated arguments %+v", call)
	}
	assertTables(t, "before", call.Before.Datasets, "users")
	assertTables(t, "after", call.After.Datasets, "users", "payments")
	if len(before.Datasets) != 2 {
		t.Fatalf("caller snapshot was modified: %+v", before.Datasets)
	}
}

func TestCompositeFetchFailureAborts(t *testing.T) {
	boom := errors.New("boom")
	mutable := &recordingManager{}
	failing := ManagerFuncs{GetSnapshotFunc: func(context.Context) (Snapshot, error) {
		return Snapshot{}, boom
	}}
	composite := NewComposite(mutable, []SnapshotReader{failing})

	if _, err := composite.GetSnapshot(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected shared fetch error, got %v", err)
	}
	if _, err := composite.Mutate(context.Background(), "t", "", false, Snapshot{}, Snapshot{}); !errors.Is(err, boom) {
		t.Fatalf("expected mutate to abort on fetch error, got %v", err)
	}
	if len(mutable.calls) != 0 {
		t.Fatalf("mutation must not reach the mutable store")
	}
}

func TestCompositeWithoutSharedStores(t *testing.T) {
	mutable := &recordingManager{snapshot: Snapshot{Datasets: []DatasetEntry{
		dataset("pg", "b", ""),
		dataset("pg", "a", ""),
	}}}
	composite := NewComposite(mutable, nil)

	got, err := composite.GetSnapshot(context.Background())
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	assertTables(t, "merged", got.Datasets, "a", "b")
}

func assertTables(t *testing.T, label string, entries []DatasetEntry, tables ...string) {
	t.Helper()
	if len(entries) != len(tables) {
		t.Fatalf("%s: expected tables %v, got %+v", label, tables, entries)
	}
	for i, table := range tables {
		if entries[i].Table != table {
			t.Fatalf("%s: expected tables %v, got %+v", label, tables, entries)
		}
	}
}

func TestCompositeRejectsDuplicateKeysInLayers(t *testing.T) {
	dup := []DatasetEntry{dataset("pg", "x", "first"), dataset("pg", "x", "second")}
	ctx := context.Background()

	shared := ManagerFuncs{GetSnapshotFunc: func(context.Context) (Snapshot, error) {
		return Snapshot{Datasets: dup}, nil
	}}
	composite := NewComposite(&recordingManager{}, []SnapshotReader{shared}, WithSharedNames("catalog"))
	_, err := composite.GetSnapshot(ctx)
	var dupErr *DuplicateKeyError
	if !errors.As(err, &dupErr) || dupErr.Key != "pg.x" {
		t.Fatalf("expected duplicate key from shared store, got %v", err)
	}
	if !strings.Contains(err.Error(), "catalog") {
		t.Fatalf("error %q does not name the layer", err)
	}

	mutable := &recordingManager{snapshot: Snapshot{Datasets: dup}}
	composite = NewComposite(mutable, nil)
	if _, err := composite.Mutate(ctx, "t", "", false, Snapshot{}, Snapshot{}); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected mutate to reject a duplicated mutable store, got %v", err)
	}
	if len(mutable.calls) != 0 {
		t.Fatalf("mutation must not reach the mutable store")
	}
}

func twoSharedFixture() (*recordingManager, *Composite) {
	mutable := &recordingManager{snapshot: Snapshot{Datasets: []DatasetEntry{dataset("pg", "users", "A")}}}
	first := ManagerFuncs{GetSnapshotFunc: func(context.Context) (Snapshot, error) {
		return Snapshot{Datasets: []DatasetEntry{dataset("pg", "orders", "first"), dataset("pg", "users", "B")}}, nil
	}}
	second := ManagerFuncs{GetSnapshotFunc: func(context.Context) (Snapshot, error) {
		return Snapshot{Datasets: []DatasetEntry{dataset("pg", "orders", "second"), dataset("pg", "events", "E")}}, nil
	}}
	return mutable, NewComposite(mutable, []SnapshotReader{first, second}, WithSharedNames("first", "second"))
}

func TestCompositeTwoSharedStoresPrecedence(t *testing.T) {
	_, composite := twoSharedFixture()
	ctx := context.Background()

	got, err := composite.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	want := []DatasetEntry{
		dataset("pg", "events", "E"),
		dataset("pg", "orders", "first"),
		dataset("pg", "users", "A"),
	}
	if len(got.Datasets) != len(want) {
		t.Fatalf("expected %d datasets, got %+v", len(want), got.Datasets)
	}
	for i := range want {
		if !got.Datasets[i].Equal(want[i]) {
			t.Fatalf("dataset %d: want %+v, got %+v", i, want[i], got.Datasets[i])
		}
	}

	prov, err := composite.Provenance(ctx)
	if err != nil {
		t.Fatalf("provenance: %v", err)
	}
	orders := prov[DatasetKey{Connection: "pg", Table: "orders"}]
	if orders.Name != "first" || orders.Layer != 1 || len(orders.Shadowed) != 1 || orders.Shadowed[0] != "second" {
		t.Fatalf("unexpected orders provenance %+v", orders)
	}
}

func TestCompositeTwoSharedStoresWriteChecksWinner(t *testing.T) {
	mutable, composite := twoSharedFixture()
	ctx := context.Background()

	before, err := composite.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}

	// Taking the weaker store's value is still an edit of the winning one.
	edited := before.Clone()
	edited.Datasets[1].Documentation.Summary = "second"
	_, err = composite.Mutate(ctx, "take second", "", false, before, edited)
	var sharedErr *SharedDatasetMutationError
	if !errors.As(err, &sharedErr) || sharedErr.Table != "orders" || sharedErr.Action != ActionModified {
		t.Fatalf("expected modification rejection for orders, got %v", err)
	}

	allowed := before.Clone()
	allowed.SystemPrompt = StringPtr("hi")
	if _, err := composite.Mutate(ctx, "prompt", "", false, before, allowed); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if len(mutable.calls) != 1 {
		t.Fatalf("expected one delegated call, got %d", len(mutable.calls))
	}
	assertTables(t, "before", mutable.calls[0].Before.Datasets, "users")
	assertTables(t, "after", mutable.calls[0].After.Datasets, "users")
}
