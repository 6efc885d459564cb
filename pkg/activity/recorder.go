package activity

import (
	"context"
	"log/slog"

	kstore "github.com/goliatone/go-kstore"
)

// Actor identifies who asked for a change.
type Actor struct {
	ActorID  string
	UserID   string
	TenantID string
}

type actorKey struct{}

// ContextWithActor attaches actor to ctx for Recorder to pick up.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor attached by ContextWithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithStoreName sets the object id stamped on emitted events.
func WithStoreName(name string) RecorderOption {
	return func(r *Recorder) {
		r.store = name
	}
}

// WithRecorderLogger sets the logger used for emission failures.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Recorder decorates a store so every Mutate call lands in the activity
// trail. Emission failures are logged and never fail the mutation.
type Recorder struct {
	next    kstore.ContextStoreManager
	emitter *Emitter
	store   string
	logger  *slog.Logger
}

var _ kstore.ContextStoreManager = (*Recorder)(nil)

func NewRecorder(next kstore.ContextStoreManager, emitter *Emitter, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		next:    next,
		emitter: emitter,
		store:   ObjectTypeKnowledgeStore,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) GetSnapshot(ctx context.Context) (kstore.Snapshot, error) {
	return r.next.GetSnapshot(ctx)
}

func (r *Recorder) Mutate(ctx context.Context, title, description string, automerge bool, before, after kstore.Snapshot) (kstore.ReviewURL, error) {
	url, err := r.next.Mutate(ctx, title, description, automerge, before, after)
	if !r.emitter.Enabled() {
		return url, err
	}
	// An empty URL without an error means nothing changed and no revision exists.
	if err == nil && url == "" {
		return url, nil
	}

	actor, _ := ActorFromContext(ctx)
	input := MutationEventInput{
		Actor:       actor,
		Store:       r.store,
		Title:       title,
		Description: description,
		Automerge:   automerge,
		ReviewURL:   url,
		Err:         err,
	}
	if diff, diffErr := kstore.ComputeDiff(before, after); diffErr == nil {
		input.Diff = &diff
	}

	event := BuildSnapshotMutatedEvent(input)
	if err != nil {
		event = BuildMutationFailedEvent(input)
	}
	if emitErr := r.emitter.Emit(ctx, event); emitErr != nil {
		r.logger.Warn("activity emission failed", "verb", event.Verb, "store", r.store, "error", emitErr)
	}
	return url, err
}
