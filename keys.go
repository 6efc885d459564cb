package kstore

import (
	"cmp"
	"slices"
)

// DatasetKey identifies a dataset entry within a snapshot.
type DatasetKey struct {
	Connection string `json:"connection" yaml:"connection"`
	Table      string `json:"table" yaml:"table"`
}

func (k DatasetKey) String() string {
	return k.Connection + "." + k.Table
}

// Compare orders dataset keys by connection, then table.
func (k DatasetKey) Compare(other DatasetKey) int {
	if c := cmp.Compare(k.Connection, other.Connection); c != 0 {
		return c
	}
	return cmp.Compare(k.Table, other.Table)
}

// ContextKey identifies a context note within its list.
type ContextKey struct {
	Group string `json:"group" yaml:"group"`
	Name  string `json:"name" yaml:"name"`
}

func (k ContextKey) String() string {
	return k.Group + "/" + k.Name
}

// Key returns the identity of the entry.
func (e DatasetEntry) Key() DatasetKey {
	return DatasetKey{Connection: e.Connection, Table: e.Table}
}

// Key returns the identity of the note.
func (c NamedContext) Key() ContextKey {
	return ContextKey{Group: c.Group, Name: c.Name}
}

// SortDatasets returns a copy of entries ordered by (connection, table).
func SortDatasets(entries []DatasetEntry) []DatasetEntry {
	out := make([]DatasetEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.clone())
	}
	slices.SortStableFunc(out, func(a, b DatasetEntry) int {
		return a.Key().Compare(b.Key())
	})
	return out
}

const (
	scopeDatasets        = "datasets"
	scopeGeneralContext  = "general_context"
	scopeGeneralCronJobs = "general_cronjobs"
	scopeChannels        = "channels"
	scopeTeams           = "project.teams"
)

func channelContextScope(channel string) string {
	return "channels." + channel + ".context"
}

func channelCronJobsScope(channel string) string {
	return "channels." + channel + ".cronjobs"
}

// indexOrdered maps every item's identity key to its position, failing on
// the first duplicate.
func indexOrdered[K comparable, V any](scope string, items []V, key func(V) K) (map[K]int, error) {
	index := make(map[K]int, len(items))
	for i, item := range items {
		k := key(item)
		if first, exists := index[k]; exists {
			return nil, &DuplicateKeyError{Scope: scope, Key: describeKey(k), First: first, Second: i}
		}
		index[k] = i
	}
	return index, nil
}

func keysOf[K comparable, V any](items []V, key func(V) K) []K {
	if len(items) == 0 {
		return nil
	}
	out := make([]K, len(items))
	for i, item := range items {
		out[i] = key(item)
	}
	return out
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	if len(m) == 0 {
		return nil
	}
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func describeKey(key any) string {
	switch k := key.(type) {
	case interface{ String() string }:
		return k.String()
	case string:
		return k
	default:
		return "<unknown>"
	}
}
