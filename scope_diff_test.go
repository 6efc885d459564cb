package kstore

import (
	"reflect"
	"testing"
)

type item struct {
	ID    string
	Value int
}

func itemKey(i item) string { return i.ID }

func itemEqual(a, b item) bool { return a == b }

func TestDiffOrderedClassifiesEntries(t *testing.T) {
	before := []item{{"a", 1}, {"b", 2}, {"c", 3}}
	after := []item{{"d", 4}, {"b", 20}, {"a", 1}}

	diff, err := DiffOrdered("items", before, after, itemKey, itemEqual)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !reflect.DeepEqual(diff.Removed, []string{"c"}) {
		t.Fatalf("unexpected removed %v", diff.Removed)
	}
	if !reflect.DeepEqual(diff.Added, []Addition[item]{{Position: 0, Item: item{"d", 4}}}) {
		t.Fatalf("unexpected added %v", diff.Added)
	}
	if !reflect.DeepEqual(diff.Modified, []item{{"b", 20}}) {
		t.Fatalf("unexpected modified %v", diff.Modified)
	}
	if !reflect.DeepEqual(diff.TargetOrder, []string{"d", "b", "a"}) {
		t.Fatalf("unexpected target order %v", diff.TargetOrder)
	}
	if !diff.Reordered {
		t.Fatalf("expected reordered flag")
	}
}

func TestDiffOrderedPureReorderIsAChange(t *testing.T) {
	before := []item{{"a", 1}, {"b", 2}}
	after := []item{{"b", 2}, {"a", 1}}

	diff, err := DiffOrdered("items", before, after, itemKey, itemEqual)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !diff.HasChanges() {
		t.Fatalf("expected pure reorder to count as a change")
	}
	if len(diff.Added)+len(diff.Removed)+len(diff.Modified) != 0 {
		t.Fatalf("expected no membership changes, got %+v", diff)
	}

	got, err := diff.apply("items", before, itemKey, identity[item])
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(got, after) {
		t.Fatalf("expected %v, got %v", after, got)
	}
}

func TestDiffOrderedNoChanges(t *testing.T) {
	items := []item{{"a", 1}}
	diff, err := DiffOrdered("items", items, items, itemKey, itemEqual)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if diff.HasChanges() || diff.TargetOrder != nil {
		t.Fatalf("expected empty diff, got %+v", diff)
	}
}

func TestOrderedApplyKeepsUnmentionedKeys(t *testing.T) {
	diff, err := DiffOrdered("items", []item{{"a", 1}, {"b", 2}}, []item{{"b", 2}, {"a", 1}, {"c", 3}}, itemKey, itemEqual)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}

	// Working list carries an extra key x written by someone else.
	working := []item{{"x", 9}, {"a", 1}, {"b", 2}}
	got, err := diff.apply("items", working, itemKey, identity[item])
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := []item{{"b", 2}, {"a", 1}, {"c", 3}, {"x", 9}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestOrderedApplyStaleBase(t *testing.T) {
	diff, err := DiffOrdered("items", []item{{"a", 1}, {"b", 2}}, []item{{"a", 10}}, itemKey, itemEqual)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}

	_, err = diff.apply("items", []item{{"a", 1}}, itemKey, identity[item])
	stale, ok := err.(*StaleBaseError)
	if !ok {
		t.Fatalf("expected *StaleBaseError, got %v", err)
	}
	if stale.Scope != "items" || stale.Key != "b" || stale.Action != ActionRemoved {
		t.Fatalf("unexpected stale metadata %+v", stale)
	}

	_, err = diff.apply("items", []item{{"b", 2}}, itemKey, identity[item])
	stale, ok = err.(*StaleBaseError)
	if !ok || stale.Key != "a" || stale.Action != ActionModified {
		t.Fatalf("expected stale modification of a, got %v", err)
	}
}

func TestOrderedApplyEmptyResultIsNil(t *testing.T) {
	diff, err := DiffOrdered("items", []item{{"a", 1}}, nil, itemKey, itemEqual)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	got, err := diff.apply("items", []item{{"a", 1}}, itemKey, identity[item])
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil slice, got %#v", got)
	}
}

func TestDiffMapping(t *testing.T) {
	before := map[string]int{"a": 1, "b": 2, "c": 3}
	after := map[string]int{"a": 1, "b": 20, "d": 4}

	diff := DiffMapping(before, after, func(x, y int) bool { return x == y })
	if !reflect.DeepEqual(diff.Removed, []string{"c"}) {
		t.Fatalf("unexpected removed %v", diff.Removed)
	}
	if !reflect.DeepEqual(diff.Added, map[string]int{"d": 4}) {
		t.Fatalf("unexpected added %v", diff.Added)
	}
	if !reflect.DeepEqual(diff.Modified, map[string]int{"b": 20}) {
		t.Fatalf("unexpected modified %v", diff.Modified)
	}

	got, err := diff.apply("m", before, identity[int])
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(got, after) {
		t.Fatalf("expected %v, got %v", after, got)
	}
	if len(before) != 3 || before["b"] != 2 {
		t.Fatalf("input map was modified: %v", before)
	}
}

func TestMappingApplyStaleBase(t *testing.T) {
	diff := DiffMapping(map[string]int{"a": 1}, map[string]int{"a": 2}, func(x, y int) bool { return x == y })
	_, err := diff.apply("m", map[string]int{}, identity[int])
	stale, ok := err.(*StaleBaseError)
	if !ok || stale.Scope != "m" || stale.Key != "a" || stale.Action != ActionModified {
		t.Fatalf("expected stale modification, got %v", err)
	}
}

func TestDiffOrderedDuplicateKey(t *testing.T) {
	_, err := DiffOrdered("items", []item{{"a", 1}, {"a", 2}}, nil, itemKey, itemEqual)
	dup, ok := err.(*DuplicateKeyError)
	if !ok {
		t.Fatalf("expected *DuplicateKeyError, got %v", err)
	}
	if dup.Scope != "items" || dup.Key != "a" {
		t.Fatalf("unexpected duplicate metadata %+v", dup)
	}
}
