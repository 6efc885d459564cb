package kstore

import "slices"

// Equal reports structural equality: ordered lists compare by position and
// content, maps by their key/value sets. Nil and empty collections are
// equal; a nil optional prompt is not equal to an empty one.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.Project.Equal(other.Project) &&
		slices.EqualFunc(s.Datasets, other.Datasets, DatasetEntry.Equal) &&
		slices.EqualFunc(s.GeneralContext, other.GeneralContext, NamedContext.Equal) &&
		mapsEqual(s.GeneralCronJobs, other.GeneralCronJobs, cronJobEqual) &&
		mapsEqual(s.Channels, other.Channels, ChannelScope.Equal) &&
		optionalEqual(s.SystemPrompt, other.SystemPrompt)
}

// Equal compares project metadata, treating the roster as a mapping.
func (p ProjectInfo) Equal(other ProjectInfo) bool {
	return p.Name == other.Name &&
		p.Version == other.Version &&
		mapsEqual(p.Teams, other.Teams, membersEqual)
}

// Equal compares identity and documentation.
func (e DatasetEntry) Equal(other DatasetEntry) bool {
	return e.Key() == other.Key() && e.Documentation.Equal(other.Documentation)
}

// Equal compares the summary and schema fingerprint.
func (d DatasetDocumentation) Equal(other DatasetDocumentation) bool {
	if d.Summary != other.Summary {
		return false
	}
	if d.Schema == nil || other.Schema == nil {
		return d.Schema == nil && other.Schema == nil
	}
	return d.Schema.Hash == other.Schema.Hash && slices.Equal(d.Schema.Columns, other.Schema.Columns)
}

// Equal compares every field of the note.
func (c NamedContext) Equal(other NamedContext) bool {
	return c.Group == other.Group &&
		c.Name == other.Name &&
		c.Topic == other.Topic &&
		c.Incorrect == other.Incorrect &&
		c.Correct == other.Correct &&
		slices.Equal(c.Keywords, other.Keywords)
}

// Equal compares the channel's cron jobs, context and prompt.
func (c ChannelScope) Equal(other ChannelScope) bool {
	return mapsEqual(c.CronJobs, other.CronJobs, cronJobEqual) &&
		slices.EqualFunc(c.Context, other.Context, NamedContext.Equal) &&
		optionalEqual(c.SystemPrompt, other.SystemPrompt)
}

func cronJobEqual(a, b CronJobSpec) bool {
	return a == b
}

func membersEqual(a, b []string) bool {
	return slices.Equal(a, b)
}

func cloneMembers(members []string) []string {
	return slices.Clone(members)
}

func mapsEqual[K comparable, V any](a, b map[K]V, eq func(V, V) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !eq(av, bv) {
			return false
		}
	}
	return true
}

func optionalEqual[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Project:         s.Project.clone(),
		GeneralCronJobs: cloneMap(s.GeneralCronJobs, identity[CronJobSpec]),
		Channels:        cloneMap(s.Channels, ChannelScope.clone),
		SystemPrompt:    cloneOptional(s.SystemPrompt),
	}
	out.Datasets = cloneSlice(s.Datasets, DatasetEntry.clone)
	out.GeneralContext = cloneSlice(s.GeneralContext, NamedContext.clone)
	return out
}

func (p ProjectInfo) clone() ProjectInfo {
	return ProjectInfo{
		Name:    p.Name,
		Version: p.Version,
		Teams:   cloneMap(p.Teams, cloneMembers),
	}
}

func (e DatasetEntry) clone() DatasetEntry {
	out := e
	if e.Documentation.Schema != nil {
		schema := *e.Documentation.Schema
		schema.Columns = slices.Clone(schema.Columns)
		out.Documentation.Schema = &schema
	}
	return out
}

func (c NamedContext) clone() NamedContext {
	out := c
	out.Keywords = slices.Clone(c.Keywords)
	return out
}

func (c ChannelScope) clone() ChannelScope {
	return ChannelScope{
		CronJobs:     cloneMap(c.CronJobs, identity[CronJobSpec]),
		Context:      cloneSlice(c.Context, NamedContext.clone),
		SystemPrompt: cloneOptional(c.SystemPrompt),
	}
}

func identity[T any](v T) T {
	return v
}

func cloneSlice[V any](in []V, clone func(V) V) []V {
	if in == nil {
		return nil
	}
	out := make([]V, len(in))
	for i, v := range in {
		out[i] = clone(v)
	}
	return out
}

func cloneMap[K comparable, V any](in map[K]V, clone func(V) V) map[K]V {
	if in == nil {
		return nil
	}
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

func cloneOptional[T any](in *T) *T {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}
