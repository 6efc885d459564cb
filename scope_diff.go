package kstore

import "slices"

// Addition is an entry present only on the after side of an ordered scope,
// with its position in the after list.
type Addition[V any] struct {
	Position int `json:"position"`
	Item     V   `json:"item"`
}

// OrderedDiff describes how an identity-keyed ordered list changed.
//
// TargetOrder carries the complete key order of the after list whenever the
// diff has changes. Reordered records whether the entries present on both
// sides changed their relative order, so a pure reorder with unchanged
// membership still counts as a change.
type OrderedDiff[K comparable, V any] struct {
	Added       []Addition[V] `json:"added,omitempty"`
	Removed     []K           `json:"removed,omitempty"`
	Modified    []V           `json:"modified,omitempty"`
	TargetOrder []K           `json:"target_order,omitempty"`
	Reordered   bool          `json:"reordered,omitempty"`
}

// HasChanges reports whether applying the diff would change anything.
func (d OrderedDiff[K, V]) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Modified) > 0 || d.Reordered
}

// DiffOrdered compares two identity-keyed lists. scope names the collection
// in errors.
func DiffOrdered[K comparable, V any](scope string, before, after []V, key func(V) K, equal func(V, V) bool) (OrderedDiff[K, V], error) {
	var diff OrderedDiff[K, V]

	beforeIndex, err := indexOrdered(scope, before, key)
	if err != nil {
		return diff, err
	}
	afterIndex, err := indexOrdered(scope, after, key)
	if err != nil {
		return diff, err
	}

	for _, item := range before {
		k := key(item)
		if _, ok := afterIndex[k]; !ok {
			diff.Removed = append(diff.Removed, k)
		}
	}
	for pos, item := range after {
		i, ok := beforeIndex[key(item)]
		if !ok {
			diff.Added = append(diff.Added, Addition[V]{Position: pos, Item: item})
			continue
		}
		if !equal(before[i], item) {
			diff.Modified = append(diff.Modified, item)
		}
	}

	diff.Reordered = !slices.Equal(sharedOrder(before, key, afterIndex), sharedOrder(after, key, beforeIndex))
	if diff.HasChanges() {
		diff.TargetOrder = keysOf(after, key)
	}
	return diff, nil
}

// sharedOrder lists, in order, the keys of items that other also contains.
func sharedOrder[K comparable, V any](items []V, key func(V) K, other map[K]int) []K {
	var out []K
	for _, item := range items {
		k := key(item)
		if _, ok := other[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// MappingDiff describes how a name-keyed mapping changed. Mappings carry no
// order, so there is no re-sequencing step.
type MappingDiff[K ~string, V any] struct {
	Added    map[K]V `json:"added,omitempty"`
	Removed  []K     `json:"removed,omitempty"`
	Modified map[K]V `json:"modified,omitempty"`
}

// HasChanges reports whether applying the diff would change anything.
func (d MappingDiff[K, V]) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Modified) > 0
}

// DiffMapping compares two mappings by key.
func DiffMapping[K ~string, V any](before, after map[K]V, equal func(V, V) bool) MappingDiff[K, V] {
	var diff MappingDiff[K, V]
	for _, k := range sortedKeys(before) {
		if _, ok := after[k]; !ok {
			diff.Removed = append(diff.Removed, k)
		}
	}
	for k, next := range after {
		prev, ok := before[k]
		switch {
		case !ok:
			if diff.Added == nil {
				diff.Added = make(map[K]V)
			}
			diff.Added[k] = next
		case !equal(prev, next):
			if diff.Modified == nil {
				diff.Modified = make(map[K]V)
			}
			diff.Modified[k] = next
		}
	}
	return diff
}

// ValueDiff carries the new value of a scalar field when it changed.
type ValueDiff[T any] struct {
	Changed bool `json:"changed,omitempty"`
	Value   T    `json:"value,omitempty"`
}

// HasChanges reports whether the value changed.
func (d ValueDiff[T]) HasChanges() bool {
	return d.Changed
}

func diffValue[T any](before, after T, equal func(T, T) bool) ValueDiff[T] {
	if equal(before, after) {
		return ValueDiff[T]{}
	}
	return ValueDiff[T]{Changed: true, Value: after}
}
