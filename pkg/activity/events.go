package activity

import (
	"strings"
	"time"

	kstore "github.com/goliatone/go-kstore"
)

const (
	// ObjectTypeKnowledgeStore is the object type of every store event.
	ObjectTypeKnowledgeStore = "knowledge_store"
	// VerbSnapshotMutated marks an accepted mutation.
	VerbSnapshotMutated = "knowledge_store.mutated"
	// VerbMutationFailed marks a mutation the store refused or failed.
	VerbMutationFailed = "knowledge_store.mutation_failed"
)

// MutationEventInput describes one Mutate call.
type MutationEventInput struct {
	Actor       Actor
	Channel     string
	Store       string
	Title       string
	Description string
	Automerge   bool
	ReviewURL   kstore.ReviewURL
	Diff        *kstore.SnapshotDiff
	Err         error
	Metadata    map[string]any
	OccurredAt  time.Time
}

// BuildSnapshotMutatedEvent constructs the event for an accepted mutation.
func BuildSnapshotMutatedEvent(input MutationEventInput) Event {
	return buildMutationEvent(VerbSnapshotMutated, input)
}

// BuildMutationFailedEvent constructs the event for a failed mutation.
func BuildMutationFailedEvent(input MutationEventInput) Event {
	return buildMutationEvent(VerbMutationFailed, input)
}

func buildMutationEvent(verb string, input MutationEventInput) Event {
	metadata := cloneMetadata(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["title"] = input.Title
	metadata["automerge"] = input.Automerge
	if input.Description != "" {
		metadata["description"] = input.Description
	}
	if input.ReviewURL != "" {
		metadata["review_url"] = string(input.ReviewURL)
	}
	if input.Diff != nil {
		metadata["stats"] = statsMetadata(input.Diff.Stats())
		if channels := input.Diff.Channels.ChangedChannels(); len(channels) > 0 {
			metadata["changed_channels"] = channels
		}
	}
	if input.Err != nil {
		metadata["error"] = input.Err.Error()
	}

	objectID := strings.TrimSpace(input.Store)
	if objectID == "" {
		objectID = ObjectTypeKnowledgeStore
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.Actor.ActorID),
		UserID:     strings.TrimSpace(input.Actor.UserID),
		TenantID:   strings.TrimSpace(input.Actor.TenantID),
		ObjectType: ObjectTypeKnowledgeStore,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func statsMetadata(s kstore.Stats) map[string]any {
	return map[string]any{
		"datasets_added":        s.DatasetsAdded,
		"datasets_removed":      s.DatasetsRemoved,
		"datasets_modified":     s.DatasetsModified,
		"datasets_reordered":    s.DatasetsReordered,
		"context_changed":       s.ContextChanged,
		"cronjobs_changed":      s.CronJobsChanged,
		"channels_added":        s.ChannelsAdded,
		"channels_removed":      s.ChannelsRemoved,
		"channels_modified":     s.ChannelsModified,
		"project_changed":       s.ProjectChanged,
		"system_prompt_changed": s.SystemPromptChanged,
		"total":                 s.Total(),
	}
}
