package kstore

import (
	"errors"
	"testing"
)

func TestSnapshotValidate(t *testing.T) {
	valid := sampleSnapshot()
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid snapshot, got %v", err)
	}

	dupChannel := sampleSnapshot()
	dupChannel.Channels["ops"] = ChannelScope{Context: []NamedContext{
		{Group: "ops", Name: "pager"},
		{Group: "ops", Name: "pager", Topic: "again"},
	}}
	err := dupChannel.Validate()
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Fatalf("expected *DuplicateKeyError, got %v", err)
	}
	if dup.Scope != "channels.ops.context" || dup.Key != "ops/pager" {
		t.Fatalf("unexpected duplicate metadata %+v", dup)
	}
}

func TestSnapshotEqualNilEmpty(t *testing.T) {
	a := Snapshot{Project: ProjectInfo{Name: "p"}}
	b := Snapshot{
		Project:         ProjectInfo{Name: "p", Teams: map[string][]string{}},
		Datasets:        []DatasetEntry{},
		GeneralCronJobs: map[string]CronJobSpec{},
		Channels:        map[string]ChannelScope{},
	}
	if !a.Equal(b) {
		t.Fatalf("expected nil and empty collections to compare equal")
	}

	b.SystemPrompt = StringPtr("")
	if a.Equal(b) {
		t.Fatalf("expected nil prompt to differ from empty prompt")
	}
}

func TestSnapshotEqualIsOrderSensitive(t *testing.T) {
	a := Snapshot{Datasets: []DatasetEntry{{Connection: "pg", Table: "a"}, {Connection: "pg", Table: "b"}}}
	b := Snapshot{Datasets: []DatasetEntry{{Connection: "pg", Table: "b"}, {Connection: "pg", Table: "a"}}}
	if a.Equal(b) {
		t.Fatalf("expected dataset order to matter")
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	original := sampleSnapshot()
	original.Datasets[0].Documentation.Schema = &SchemaFingerprint{Hash: "h", Columns: []string{"id"}}
	original.SystemPrompt = StringPtr("p")

	clone := original.Clone()
	clone.Datasets[0].Documentation.Schema.Columns[0] = "changed"
	clone.Project.Teams["data"][0] = "changed"
	clone.GeneralContext[0].Keywords[0] = "changed"
	*clone.SystemPrompt = "changed"
	clone.Channels["ops"].CronJobs["daily"] = CronJobSpec{Cron: "changed"}

	if !original.Equal(sampleSnapshotWithSchema()) {
		t.Fatalf("clone shares memory with original: %+v", original)
	}
}

func sampleSnapshotWithSchema() Snapshot {
	s := sampleSnapshot()
	s.Datasets[0].Documentation.Schema = &SchemaFingerprint{Hash: "h", Columns: []string{"id"}}
	s.SystemPrompt = StringPtr("p")
	return s
}

func TestSortDatasets(t *testing.T) {
	in := []DatasetEntry{
		{Connection: "pg", Table: "users"},
		{Connection: "bq", Table: "events"},
		{Connection: "pg", Table: "orders"},
	}
	got := SortDatasets(in)
	want := []string{"bq.events", "pg.orders", "pg.users"}
	for i, key := range want {
		if got[i].Key().String() != key {
			t.Fatalf("position %d: want %s, got %s", i, key, got[i].Key())
		}
	}
	if in[0].Table != "users" {
		t.Fatalf("input was reordered")
	}
}

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  error
		want string
		is   error
	}{
		{
			err:  &SharedDatasetMutationError{Connection: "postgres", Table: "orders", Action: ActionModified},
			want: `kstore: dataset connection="postgres" table="orders" is provided by a shared store and cannot be modified`,
			is:   ErrSharedDatasetMutation,
		},
		{
			err:  &StaleBaseError{Scope: "datasets", Key: "pg.users", Action: ActionRemoved},
			want: `kstore: diff removed "pg.users" in datasets but the base does not contain it`,
			is:   ErrStaleBase,
		},
		{
			err:  &DuplicateKeyError{Scope: "general_context", Key: "g/n", First: 0, Second: 2},
			want: `kstore: duplicate key "g/n" in general_context (positions 0 and 2)`,
			is:   ErrDuplicateKey,
		},
	}
	for _, tc := range cases {
		if tc.err.Error() != tc.want {
			t.Fatalf("unexpected message\nwant: %s\n got: %s", tc.want, tc.err.Error())
		}
		if !errors.Is(tc.err, tc.is) {
			t.Fatalf("expected %v to wrap %v", tc.err, tc.is)
		}
	}
}
