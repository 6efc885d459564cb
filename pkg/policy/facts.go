package policy

import (
	"slices"

	kstore "github.com/goliatone/go-kstore"
)

// Fact names exposed to rule expressions.
const (
	FactTitle                = "title"
	FactAutomerge            = "automerge"
	FactTotal                = "total"
	FactProjectChanged       = "project_changed"
	FactSystemPromptChanged  = "system_prompt_changed"
	FactChannelPromptChanged = "channel_prompt_changed"
	FactDatasetsAdded        = "datasets_added"
	FactDatasetsRemoved      = "datasets_removed"
	FactDatasetsModified     = "datasets_modified"
	FactDatasetsReordered    = "datasets_reordered"
	FactContextChanged       = "context_changed"
	FactCronJobsChanged      = "cronjobs_changed"
	FactChannelsAdded        = "channels_added"
	FactChannelsRemoved      = "channels_removed"
	FactChannelsModified     = "channels_modified"
	FactChangedChannels      = "changed_channels"
	FactAddedDatasets        = "added_datasets"
	FactRemovedDatasets      = "removed_datasets"
	FactModifiedDatasets     = "modified_datasets"
	FactChangedDatasets      = "changed_datasets"
)

// FactNames lists every key Facts populates.
var FactNames = []string{
	FactTitle,
	FactAutomerge,
	FactTotal,
	FactProjectChanged,
	FactSystemPromptChanged,
	FactChannelPromptChanged,
	FactDatasetsAdded,
	FactDatasetsRemoved,
	FactDatasetsModified,
	FactDatasetsReordered,
	FactContextChanged,
	FactCronJobsChanged,
	FactChannelsAdded,
	FactChannelsRemoved,
	FactChannelsModified,
	FactChangedChannels,
	FactAddedDatasets,
	FactRemovedDatasets,
	FactModifiedDatasets,
	FactChangedDatasets,
}

// Facts flattens a diff into the variables rules see. Dataset lists hold
// "connection.table" strings; every list is a []any so all engines can
// index and search it. changed_datasets is the sorted union of the added,
// removed and modified lists.
func Facts(diff kstore.SnapshotDiff, title string, automerge bool) map[string]any {
	stats := diff.Stats()

	added := make([]any, 0, len(diff.Datasets.Added))
	for _, addition := range diff.Datasets.Added {
		added = append(added, addition.Item.Key().String())
	}
	removed := make([]any, 0, len(diff.Datasets.Removed))
	for _, key := range diff.Datasets.Removed {
		removed = append(removed, key.String())
	}
	modified := make([]any, 0, len(diff.Datasets.Modified))
	for _, entry := range diff.Datasets.Modified {
		modified = append(modified, entry.Key().String())
	}
	var touched []string
	for _, list := range [][]any{added, removed, modified} {
		for _, item := range list {
			touched = append(touched, item.(string))
		}
	}
	slices.Sort(touched)
	touched = slices.Compact(touched)
	changedDatasets := make([]any, len(touched))
	for i, name := range touched {
		changedDatasets[i] = name
	}

	channels := diff.Channels.ChangedChannels()
	changed := make([]any, 0, len(channels))
	for _, name := range channels {
		changed = append(changed, name)
	}

	channelPrompt := false
	for _, scope := range diff.Channels.Modified {
		if scope.SystemPrompt.HasChanges() {
			channelPrompt = true
			break
		}
	}

	return map[string]any{
		FactTitle:                title,
		FactAutomerge:            automerge,
		FactTotal:                stats.Total(),
		FactProjectChanged:       stats.ProjectChanged,
		FactSystemPromptChanged:  stats.SystemPromptChanged,
		FactChannelPromptChanged: channelPrompt,
		FactDatasetsAdded:        stats.DatasetsAdded,
		FactDatasetsRemoved:      stats.DatasetsRemoved,
		FactDatasetsModified:     stats.DatasetsModified,
		FactDatasetsReordered:    stats.DatasetsReordered,
		FactContextChanged:       stats.ContextChanged,
		FactCronJobsChanged:      stats.CronJobsChanged,
		FactChannelsAdded:        stats.ChannelsAdded,
		FactChannelsRemoved:      stats.ChannelsRemoved,
		FactChannelsModified:     stats.ChannelsModified,
		FactChangedChannels:      changed,
		FactAddedDatasets:        added,
		FactRemovedDatasets:      removed,
		FactModifiedDatasets:     modified,
		FactChangedDatasets:      changedDatasets,
	}
}
