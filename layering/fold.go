// Package layering folds keyed collections from several layers into one,
// keeping the entry from the strongest layer that defines each key and
// recording which layer supplied it.
package layering

import (
	"errors"
	"fmt"
	"slices"
)

// ErrDuplicateKey indicates a layer lists the same key twice.
var ErrDuplicateKey = errors.New("layering: duplicate key in layer")

// DuplicateKeyError names the layer and positions of a repeated key.
type DuplicateKeyError struct {
	Layer  string
	Key    any
	First  int
	Second int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("layering: layer %s repeats key %v (positions %d and %d)", e.Layer, e.Key, e.First, e.Second)
}

func (e *DuplicateKeyError) Unwrap() error {
	return ErrDuplicateKey
}

// Layer is one named contribution to a fold.
type Layer[V any] struct {
	Name  string
	Items []V
}

// Provenance records where a folded entry came from.
type Provenance struct {
	// Layer is the index of the winning layer in the slice passed to Fold.
	Layer int
	Name  string
	// Shadowed lists weaker layers that defined the same key.
	Shadowed []string
}

// Result holds the winner map of a fold.
type Result[K comparable, V any] struct {
	items   map[K]V
	sources map[K]Provenance
	order   []K
}

// Fold composes layers ordered from strongest to weakest. For every key the
// entry of the first layer defining it wins; weaker definitions are recorded
// as shadowed. A layer that repeats a key fails the fold with a
// *DuplicateKeyError.
func Fold[K comparable, V any](key func(V) K, layers ...Layer[V]) (Result[K, V], error) {
	result := Result[K, V]{
		items:   map[K]V{},
		sources: map[K]Provenance{},
	}
	for i, layer := range layers {
		seen := make(map[K]int, len(layer.Items))
		for pos, item := range layer.Items {
			k := key(item)
			if first, dup := seen[k]; dup {
				return Result[K, V]{}, &DuplicateKeyError{Layer: layer.Name, Key: k, First: first, Second: pos}
			}
			seen[k] = pos

			if src, exists := result.sources[k]; exists {
				src.Shadowed = append(src.Shadowed, layer.Name)
				result.sources[k] = src
				continue
			}
			result.items[k] = item
			result.sources[k] = Provenance{Layer: i, Name: layer.Name}
			result.order = append(result.order, k)
		}
	}
	return result, nil
}

// Len returns the number of distinct keys.
func (r Result[K, V]) Len() int {
	return len(r.order)
}

// Get returns the winning entry for key.
func (r Result[K, V]) Get(key K) (V, bool) {
	item, ok := r.items[key]
	return item, ok
}

// Source returns the provenance of key.
func (r Result[K, V]) Source(key K) (Provenance, bool) {
	src, ok := r.sources[key]
	if !ok {
		return Provenance{}, false
	}
	src.Shadowed = slices.Clone(src.Shadowed)
	return src, true
}

// Keys returns keys in first-seen order, strongest layer first.
func (r Result[K, V]) Keys() []K {
	return slices.Clone(r.order)
}

// Items returns the winning entries in first-seen order.
func (r Result[K, V]) Items() []V {
	out := make([]V, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.items[k])
	}
	return out
}

// Sorted returns the winning entries ordered by compare over their keys.
func (r Result[K, V]) Sorted(compare func(a, b K) int) []V {
	keys := r.Keys()
	slices.SortStableFunc(keys, compare)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.items[k])
	}
	return out
}

// From returns the keys whose winning entry came from the layer at index,
// in first-seen order.
func (r Result[K, V]) From(layer int) []K {
	var out []K
	for _, k := range r.order {
		if r.sources[k].Layer == layer {
			out = append(out, k)
		}
	}
	return out
}

// Owned reports whether the winner for key came from the layer at index.
func (r Result[K, V]) Owned(key K, layer int) bool {
	src, ok := r.sources[key]
	return ok && src.Layer == layer
}
