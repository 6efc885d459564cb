package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	kstore "github.com/goliatone/go-kstore"
	"github.com/google/uuid"
)

var (
	// ErrReadOnly is returned by Mutate on stores opened read-only.
	ErrReadOnly = errors.New("store: store is read-only")
	// ErrRevisionNotFound is returned when a revision id is unknown.
	ErrRevisionNotFound = errors.New("store: revision not found")
)

// DefaultReviewBaseURL prefixes review URLs when no base is configured.
const DefaultReviewBaseURL = "kstore://local"

// Revision is the audit record of one accepted mutation.
type Revision struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Automerge   bool                `json:"automerge"`
	Diff        kstore.SnapshotDiff `json:"diff"`
	Stats       kstore.Stats        `json:"stats"`
	URL         kstore.ReviewURL    `json:"url"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Option configures a store.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	reviewBaseURL string
	now           func() time.Time
	newID         func() string
	readOnly      bool
}

// WithLogger sets the logger used for write records.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithReviewBaseURL sets the prefix of returned review URLs.
func WithReviewBaseURL(base string) Option {
	return func(cfg *config) {
		if base != "" {
			cfg.reviewBaseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithClock overrides the revision timestamp source.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithIDGenerator overrides revision id generation.
func WithIDGenerator(newID func() string) Option {
	return func(cfg *config) {
		if newID != nil {
			cfg.newID = newID
		}
	}
}

// WithReadOnly makes Mutate fail with ErrReadOnly.
func WithReadOnly() Option {
	return func(cfg *config) {
		cfg.readOnly = true
	}
}

func newConfig(opts []Option) config {
	cfg := config{
		logger:        slog.Default(),
		reviewBaseURL: DefaultReviewBaseURL,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (c config) reviewURL(id string) kstore.ReviewURL {
	return kstore.ReviewURL(fmt.Sprintf("%s/revisions/%s", c.reviewBaseURL, id))
}

// prepare diffs before against after and builds the revision that would
// record it. ok is false when there is nothing to write.
func (c config) prepare(title, description string, automerge bool, before, after kstore.Snapshot) (Revision, bool, error) {
	diff, err := kstore.ComputeDiff(before, after)
	if err != nil {
		return Revision{}, false, err
	}
	if !diff.HasChanges() {
		return Revision{}, false, nil
	}
	id := c.newID()
	return Revision{
		ID:          id,
		Title:       title,
		Description: description,
		Automerge:   automerge,
		Diff:        diff,
		Stats:       diff.Stats(),
		URL:         c.reviewURL(id),
		CreatedAt:   c.now().UTC(),
	}, true, nil
}

func (c config) logRevision(backend string, rev Revision) {
	c.logger.Info("knowledge store mutated",
		"backend", backend,
		"revision", rev.ID,
		"title", rev.Title,
		"automerge", rev.Automerge,
		"changes", rev.Stats.Total(),
	)
}
