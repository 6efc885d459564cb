package render

import (
	"fmt"
	"slices"
	"strings"

	kstore "github.com/goliatone/go-kstore"
)

// Summary renders diff as the markdown body of a change request. An empty
// diff renders a single "No changes." line under the title.
func Summary(title string, diff kstore.SnapshotDiff) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "## %s\n\n", title)
	}
	if !diff.HasChanges() {
		b.WriteString("No changes.\n")
		return b.String()
	}

	stats := diff.Stats()
	fmt.Fprintf(&b, "%d change(s)\n", stats.Total())

	if diff.Project.HasChanges() {
		section(&b, "Project")
		writeValue(&b, "name", diff.Project.Name.Changed, fmt.Sprintf("`%s`", diff.Project.Name.Value))
		writeValue(&b, "version", diff.Project.Version.Changed, fmt.Sprintf("`%d`", diff.Project.Version.Value))
		writeMapping(&b, "team", diff.Project.Teams.Added, diff.Project.Teams.Removed, diff.Project.Teams.Modified)
	}
	if diff.Datasets.HasChanges() {
		section(&b, "Datasets")
		writeOrdered(&b, diff.Datasets, DatasetLabel)
	}
	if diff.GeneralContext.HasChanges() {
		section(&b, "General context")
		writeOrdered(&b, diff.GeneralContext, ContextLabel)
	}
	if diff.GeneralCronJobs.HasChanges() {
		section(&b, "General cron jobs")
		writeMapping(&b, "cron job", diff.GeneralCronJobs.Added, diff.GeneralCronJobs.Removed, diff.GeneralCronJobs.Modified)
	}
	if diff.SystemPrompt.HasChanges() {
		section(&b, "System prompt")
		writePrompt(&b, diff.SystemPrompt.Value)
	}
	if diff.Channels.HasChanges() {
		section(&b, "Channels")
		writeChannels(&b, diff.Channels)
	}
	return b.String()
}

// DatasetLabel formats a dataset key for review text.
func DatasetLabel(key kstore.DatasetKey) string {
	return "`" + key.String() + "`"
}

// ContextLabel formats a context key for review text.
func ContextLabel(key kstore.ContextKey) string {
	return "`" + key.String() + "`"
}

func section(b *strings.Builder, heading string) {
	fmt.Fprintf(b, "\n### %s\n\n", heading)
}

func writeValue(b *strings.Builder, field string, changed bool, value string) {
	if changed {
		fmt.Fprintf(b, "- %s set to %s\n", field, value)
	}
}

func writePrompt(b *strings.Builder, value *string) {
	if value == nil {
		b.WriteString("- cleared\n")
		return
	}
	fmt.Fprintf(b, "- set to %q\n", *value)
}

type keyed[K comparable] interface {
	Key() K
}

func writeOrdered[K comparable, V keyed[K]](b *strings.Builder, diff kstore.OrderedDiff[K, V], label func(K) string) {
	for _, addition := range diff.Added {
		fmt.Fprintf(b, "- added %s at position %d\n", label(addition.Item.Key()), addition.Position)
	}
	for _, key := range diff.Removed {
		fmt.Fprintf(b, "- removed %s\n", label(key))
	}
	for _, item := range diff.Modified {
		fmt.Fprintf(b, "- modified %s\n", label(item.Key()))
	}
	if diff.Reordered {
		b.WriteString("- reordered\n")
	}
}

func writeMapping[V any](b *strings.Builder, noun string, added map[string]V, removed []string, modified map[string]V) {
	for _, name := range sortedNames(added) {
		fmt.Fprintf(b, "- added %s `%s`\n", noun, name)
	}
	for _, name := range removed {
		fmt.Fprintf(b, "- removed %s `%s`\n", noun, name)
	}
	for _, name := range sortedNames(modified) {
		fmt.Fprintf(b, "- modified %s `%s`\n", noun, name)
	}
}

func writeChannels(b *strings.Builder, diff kstore.ChannelsDiff) {
	for _, name := range sortedNames(diff.Added) {
		scope := diff.Added[name]
		fmt.Fprintf(b, "- added channel `%s` (%d cron job(s), %d context note(s))\n", name, len(scope.CronJobs), len(scope.Context))
	}
	for _, name := range diff.Removed {
		fmt.Fprintf(b, "- removed channel `%s`\n", name)
	}
	for _, name := range sortedNames(diff.Modified) {
		scope := diff.Modified[name]
		fmt.Fprintf(b, "- channel `%s`\n", name)
		var nested strings.Builder
		writeMapping(&nested, "cron job", scope.CronJobs.Added, scope.CronJobs.Removed, scope.CronJobs.Modified)
		writeOrdered(&nested, scope.Context, ContextLabel)
		if scope.SystemPrompt.HasChanges() {
			nested.WriteString("- system prompt ")
			writePrompt(&nested, scope.SystemPrompt.Value)
		}
		for _, line := range strings.SplitAfter(nested.String(), "\n") {
			if line != "" {
				b.WriteString("  " + line)
			}
		}
	}
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
