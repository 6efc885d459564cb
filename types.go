package kstore

// ProjectInfo carries the project-level metadata of a knowledge store.
type ProjectInfo struct {
	Name    string `json:"name" yaml:"name"`
	Version int    `json:"version" yaml:"version"`
	// Teams maps a team name to its ordered member list. A nil roster and an
	// empty roster are equivalent.
	Teams map[string][]string `json:"teams,omitempty" yaml:"teams,omitempty"`
}

// SchemaFingerprint identifies the table shape a dataset was documented
// against.
type SchemaFingerprint struct {
	Hash    string   `json:"hash" yaml:"hash"`
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// DatasetDocumentation is the documentation body attached to a dataset.
type DatasetDocumentation struct {
	Schema  *SchemaFingerprint `json:"schema,omitempty" yaml:"schema,omitempty"`
	Summary string             `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// DatasetEntry documents one (connection, table) pair.
type DatasetEntry struct {
	Connection    string               `json:"connection" yaml:"connection"`
	Table         string               `json:"table" yaml:"table"`
	Documentation DatasetDocumentation `json:"documentation" yaml:"documentation"`
}

// NamedContext is a business-context correction note: what the assistant got
// wrong, what is actually right, and the keywords that should surface it.
type NamedContext struct {
	Group     string   `json:"group" yaml:"group"`
	Name      string   `json:"name" yaml:"name"`
	Topic     string   `json:"topic,omitempty" yaml:"topic,omitempty"`
	Incorrect string   `json:"incorrect_understanding,omitempty" yaml:"incorrect_understanding,omitempty"`
	Correct   string   `json:"correct_understanding,omitempty" yaml:"correct_understanding,omitempty"`
	Keywords  []string `json:"search_keywords,omitempty" yaml:"search_keywords,omitempty"`
}

// CronJobSpec schedules a question to be asked on a cron expression.
type CronJobSpec struct {
	Cron     string `json:"cron" yaml:"cron"`
	Question string `json:"question" yaml:"question"`
	Thread   string `json:"thread,omitempty" yaml:"thread,omitempty"`
}

// ChannelScope holds the per-channel overrides.
type ChannelScope struct {
	CronJobs     map[string]CronJobSpec `json:"cronjobs,omitempty" yaml:"cronjobs,omitempty"`
	Context      []NamedContext         `json:"context,omitempty" yaml:"context,omitempty"`
	SystemPrompt *string                `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}

// Snapshot is the full value of a knowledge store at one point in time.
//
// Snapshots are treated as immutable values: nothing in this package mutates
// a Snapshot it receives, and every operation returns a fresh copy. Callers
// that hold on to a Snapshot should not modify its maps or slices in place;
// use Clone first.
type Snapshot struct {
	Project         ProjectInfo             `json:"project" yaml:"project"`
	Datasets        []DatasetEntry          `json:"datasets,omitempty" yaml:"datasets,omitempty"`
	GeneralContext  []NamedContext          `json:"general_context,omitempty" yaml:"general_context,omitempty"`
	GeneralCronJobs map[string]CronJobSpec  `json:"general_cronjobs,omitempty" yaml:"general_cronjobs,omitempty"`
	Channels        map[string]ChannelScope `json:"channels,omitempty" yaml:"channels,omitempty"`
	SystemPrompt    *string                 `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}

// NewSnapshot returns an empty store for the named project.
func NewSnapshot(name string) Snapshot {
	return Snapshot{Project: ProjectInfo{Name: name, Version: 1}}
}

// Validate reports the first identity-key collision found in the snapshot.
func (s Snapshot) Validate() error {
	if _, err := indexOrdered(scopeDatasets, s.Datasets, DatasetEntry.Key); err != nil {
		return err
	}
	if _, err := indexOrdered(scopeGeneralContext, s.GeneralContext, NamedContext.Key); err != nil {
		return err
	}
	for _, name := range sortedKeys(s.Channels) {
		if _, err := indexOrdered(channelContextScope(name), s.Channels[name].Context, NamedContext.Key); err != nil {
			return err
		}
	}
	return nil
}

// StringPtr is a convenience for building optional prompts.
func StringPtr(value string) *string {
	return &value
}
