package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	kstore "github.com/goliatone/go-kstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		at = at.Add(time.Second)
		return at
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("rev-%d", n)
	}
}

func seedSnapshot() kstore.Snapshot {
	s := kstore.NewSnapshot("acme/analytics")
	s.Datasets = []kstore.DatasetEntry{
		{Connection: "postgres", Table: "users", Documentation: kstore.DatasetDocumentation{Summary: "people"}},
	}
	return s
}

func TestMemoryStoreMutate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(seedSnapshot(),
		WithReviewBaseURL("https://review.example/"),
		WithIDGenerator(sequentialIDs()),
		WithClock(fixedClock()),
	)

	before, err := s.GetSnapshot(ctx)
	require.NoError(t, err)
	after := before.Clone()
	after.Datasets = append(after.Datasets, kstore.DatasetEntry{Connection: "postgres", Table: "orders"})

	url, err := s.Mutate(ctx, "add orders", "documents orders", true, before, after)
	require.NoError(t, err)
	assert.Equal(t, kstore.ReviewURL("https://review.example/revisions/rev-1"), url)

	current, err := s.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, current.Equal(after))

	rev, err := s.Revision(ctx, "rev-1")
	require.NoError(t, err)
	assert.Equal(t, "add orders", rev.Title)
	assert.Equal(t, "documents orders", rev.Description)
	assert.True(t, rev.Automerge)
	assert.Equal(t, 1, rev.Stats.DatasetsAdded)
	assert.Equal(t, url, rev.URL)
}

func TestMemoryStoreNoChangesSkipsRevision(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(seedSnapshot())
	snapshot, err := s.GetSnapshot(ctx)
	require.NoError(t, err)

	url, err := s.Mutate(ctx, "noop", "", false, snapshot, snapshot)
	require.NoError(t, err)
	assert.Empty(t, url)

	revisions, err := s.Revisions(ctx)
	require.NoError(t, err)
	assert.Empty(t, revisions)
}

func TestMemoryStoreKeepsConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(seedSnapshot(), WithIDGenerator(sequentialIDs()))

	stale, err := s.GetSnapshot(ctx)
	require.NoError(t, err)

	other := stale.Clone()
	other.GeneralCronJobs = map[string]kstore.CronJobSpec{"weekly": {Cron: "0 9 * * 1", Question: "Q?"}}
	_, err = s.Mutate(ctx, "add cron", "", true, stale, other)
	require.NoError(t, err)

	mine := stale.Clone()
	mine.Datasets[0].Documentation.Summary = "all people"
	_, err = s.Mutate(ctx, "edit users", "", true, stale, mine)
	require.NoError(t, err)

	current, err := s.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, current.GeneralCronJobs, "weekly")
	assert.Equal(t, "all people", current.Datasets[0].Documentation.Summary)

	revisions, err := s.Revisions(ctx)
	require.NoError(t, err)
	require.Len(t, revisions, 2)
	assert.Equal(t, "add cron", revisions[0].Title)
	assert.Equal(t, "edit users", revisions[1].Title)
}

func TestMemoryStoreStaleBase(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(seedSnapshot())

	before := seedSnapshot()
	before.Datasets = append(before.Datasets, kstore.DatasetEntry{Connection: "postgres", Table: "ghost"})
	after := seedSnapshot()

	_, err := s.Mutate(ctx, "drop ghost", "", false, before, after)
	require.Error(t, err)
	assert.ErrorIs(t, err, kstore.ErrStaleBase)

	current, err := s.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.True(t, current.Equal(seedSnapshot()))
}

func TestMemoryStoreReadOnly(t *testing.T) {
	s := NewMemoryStore(seedSnapshot(), WithReadOnly())
	_, err := s.Mutate(context.Background(), "t", "", false, kstore.Snapshot{}, seedSnapshot())
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestMemoryStoreRevisionNotFound(t *testing.T) {
	s := NewMemoryStore(kstore.Snapshot{})
	_, err := s.Revision(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRevisionNotFound)
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore(seedSnapshot())
	_, err := s.GetSnapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStoreInit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(kstore.Snapshot{})
	require.NoError(t, s.Init(ctx, seedSnapshot()))
	require.NoError(t, s.Init(ctx, kstore.NewSnapshot("other")))

	current, err := s.GetSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acme/analytics", current.Project.Name)

	dup := seedSnapshot()
	dup.Datasets = append(dup.Datasets, dup.Datasets[0])
	assert.ErrorIs(t, NewMemoryStore(kstore.Snapshot{}).Init(ctx, dup), kstore.ErrDuplicateKey)
}
