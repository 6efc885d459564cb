package kstore

import "slices"

// SnapshotDiff describes how one snapshot became another. Every operation
// encodes absolute target state, so applying a diff to a snapshot that
// already matches its after side leaves add/modify/reorder operations with
// nothing to do.
type SnapshotDiff struct {
	Project         ProjectDiff                           `json:"project"`
	Datasets        OrderedDiff[DatasetKey, DatasetEntry] `json:"datasets"`
	GeneralContext  OrderedDiff[ContextKey, NamedContext] `json:"general_context"`
	GeneralCronJobs MappingDiff[string, CronJobSpec]      `json:"general_cronjobs"`
	Channels        ChannelsDiff                          `json:"channels"`
	SystemPrompt    ValueDiff[*string]                    `json:"system_prompt"`
}

// HasChanges reports whether any scope changed.
func (d SnapshotDiff) HasChanges() bool {
	return d.Project.HasChanges() ||
		d.Datasets.HasChanges() ||
		d.GeneralContext.HasChanges() ||
		d.GeneralCronJobs.HasChanges() ||
		d.Channels.HasChanges() ||
		d.SystemPrompt.HasChanges()
}

// ProjectDiff describes changes to ProjectInfo. Teams are diffed as a
// mapping of team name to member list.
type ProjectDiff struct {
	Name    ValueDiff[string]             `json:"name"`
	Version ValueDiff[int]                `json:"version"`
	Teams   MappingDiff[string, []string] `json:"teams"`
}

// HasChanges reports whether the project metadata changed.
func (d ProjectDiff) HasChanges() bool {
	return d.Name.HasChanges() || d.Version.HasChanges() || d.Teams.HasChanges()
}

// ChannelsDiff describes changes to the channel mapping. Channels present on
// only one side are added or removed whole; channels on both sides carry a
// field-level diff.
type ChannelsDiff struct {
	Added    map[string]ChannelScope     `json:"added,omitempty"`
	Removed  []string                    `json:"removed,omitempty"`
	Modified map[string]ChannelScopeDiff `json:"modified,omitempty"`
}

// HasChanges reports whether any channel was added, removed or changed.
func (d ChannelsDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Modified) > 0
}

// ChannelScopeDiff is the field-level diff of one channel.
type ChannelScopeDiff struct {
	CronJobs     MappingDiff[string, CronJobSpec]      `json:"cronjobs"`
	Context      OrderedDiff[ContextKey, NamedContext] `json:"context"`
	SystemPrompt ValueDiff[*string]                    `json:"system_prompt"`
}

// HasChanges reports whether the channel changed.
func (d ChannelScopeDiff) HasChanges() bool {
	return d.CronJobs.HasChanges() || d.Context.HasChanges() || d.SystemPrompt.HasChanges()
}

// ComputeDiff returns the difference between two snapshots. It fails with a
// *DuplicateKeyError when either side repeats an identity key.
func ComputeDiff(before, after Snapshot) (SnapshotDiff, error) {
	var (
		diff SnapshotDiff
		err  error
	)

	diff.Project = diffProject(before.Project, after.Project)

	diff.Datasets, err = DiffOrdered(scopeDatasets, before.Datasets, after.Datasets, DatasetEntry.Key, DatasetEntry.Equal)
	if err != nil {
		return SnapshotDiff{}, err
	}
	diff.GeneralContext, err = DiffOrdered(scopeGeneralContext, before.GeneralContext, after.GeneralContext, NamedContext.Key, NamedContext.Equal)
	if err != nil {
		return SnapshotDiff{}, err
	}
	diff.GeneralCronJobs = DiffMapping(before.GeneralCronJobs, after.GeneralCronJobs, cronJobEqual)

	diff.Channels, err = diffChannels(before.Channels, after.Channels)
	if err != nil {
		return SnapshotDiff{}, err
	}

	diff.SystemPrompt = diffValue(before.SystemPrompt, after.SystemPrompt, optionalEqual[string])
	return diff, nil
}

func diffProject(before, after ProjectInfo) ProjectDiff {
	return ProjectDiff{
		Name:    diffValue(before.Name, after.Name, scalarEqual[string]),
		Version: diffValue(before.Version, after.Version, scalarEqual[int]),
		Teams:   DiffMapping(before.Teams, after.Teams, membersEqual),
	}
}

func diffChannels(before, after map[string]ChannelScope) (ChannelsDiff, error) {
	var diff ChannelsDiff

	for _, name := range sortedKeys(before) {
		if _, ok := after[name]; !ok {
			diff.Removed = append(diff.Removed, name)
		}
	}

	for _, name := range sortedKeys(after) {
		next := after[name]
		prev, ok := before[name]
		if !ok {
			// Whole-channel additions skip DiffOrdered, so check their notes here.
			if _, err := indexOrdered(channelContextScope(name), next.Context, NamedContext.Key); err != nil {
				return ChannelsDiff{}, err
			}
			if diff.Added == nil {
				diff.Added = make(map[string]ChannelScope)
			}
			diff.Added[name] = next
			continue
		}

		scopeDiff, err := diffChannelScope(name, prev, next)
		if err != nil {
			return ChannelsDiff{}, err
		}
		if !scopeDiff.HasChanges() {
			continue
		}
		if diff.Modified == nil {
			diff.Modified = make(map[string]ChannelScopeDiff)
		}
		diff.Modified[name] = scopeDiff
	}
	for _, name := range diff.Removed {
		if _, err := indexOrdered(channelContextScope(name), before[name].Context, NamedContext.Key); err != nil {
			return ChannelsDiff{}, err
		}
	}
	return diff, nil
}

func diffChannelScope(name string, before, after ChannelScope) (ChannelScopeDiff, error) {
	notes, err := DiffOrdered(channelContextScope(name), before.Context, after.Context, NamedContext.Key, NamedContext.Equal)
	if err != nil {
		return ChannelScopeDiff{}, err
	}
	return ChannelScopeDiff{
		CronJobs:     DiffMapping(before.CronJobs, after.CronJobs, cronJobEqual),
		Context:      notes,
		SystemPrompt: diffValue(before.SystemPrompt, after.SystemPrompt, optionalEqual[string]),
	}, nil
}

func scalarEqual[T comparable](a, b T) bool {
	return a == b
}

// Stats counts the entries each scope of a diff touches.
type Stats struct {
	DatasetsAdded       int  `json:"datasets_added"`
	DatasetsRemoved     int  `json:"datasets_removed"`
	DatasetsModified    int  `json:"datasets_modified"`
	DatasetsReordered   bool `json:"datasets_reordered"`
	ContextChanged      int  `json:"context_changed"`
	CronJobsChanged     int  `json:"cronjobs_changed"`
	ChannelsAdded       int  `json:"channels_added"`
	ChannelsRemoved     int  `json:"channels_removed"`
	ChannelsModified    int  `json:"channels_modified"`
	ProjectChanged      bool `json:"project_changed"`
	SystemPromptChanged bool `json:"system_prompt_changed"`
}

// Total is the number of entries touched across every scope, counting a
// changed scalar as one.
func (s Stats) Total() int {
	total := s.DatasetsAdded + s.DatasetsRemoved + s.DatasetsModified +
		s.ContextChanged + s.CronJobsChanged +
		s.ChannelsAdded + s.ChannelsRemoved + s.ChannelsModified
	for _, flag := range []bool{s.DatasetsReordered, s.ProjectChanged, s.SystemPromptChanged} {
		if flag {
			total++
		}
	}
	return total
}

// Stats summarises the diff. Channel-level cron job and context changes are
// folded into CronJobsChanged and ContextChanged.
func (d SnapshotDiff) Stats() Stats {
	stats := Stats{
		DatasetsAdded:       len(d.Datasets.Added),
		DatasetsRemoved:     len(d.Datasets.Removed),
		DatasetsModified:    len(d.Datasets.Modified),
		DatasetsReordered:   d.Datasets.Reordered,
		ContextChanged:      orderedChanges(d.GeneralContext),
		CronJobsChanged:     mappingChanges(d.GeneralCronJobs),
		ChannelsAdded:       len(d.Channels.Added),
		ChannelsRemoved:     len(d.Channels.Removed),
		ChannelsModified:    len(d.Channels.Modified),
		ProjectChanged:      d.Project.HasChanges(),
		SystemPromptChanged: d.SystemPrompt.HasChanges(),
	}
	for _, name := range sortedKeys(d.Channels.Modified) {
		channel := d.Channels.Modified[name]
		stats.ContextChanged += orderedChanges(channel.Context)
		stats.CronJobsChanged += mappingChanges(channel.CronJobs)
	}
	return stats
}

func orderedChanges[K comparable, V any](d OrderedDiff[K, V]) int {
	return len(d.Added) + len(d.Removed) + len(d.Modified)
}

func mappingChanges[K ~string, V any](d MappingDiff[K, V]) int {
	return len(d.Added) + len(d.Removed) + len(d.Modified)
}

// ChangedChannels lists every channel the diff touches, sorted.
func (d ChannelsDiff) ChangedChannels() []string {
	names := make([]string, 0, len(d.Added)+len(d.Removed)+len(d.Modified))
	names = append(names, sortedKeys(d.Added)...)
	names = append(names, d.Removed...)
	names = append(names, sortedKeys(d.Modified)...)
	slices.Sort(names)
	return slices.Compact(names)
}
