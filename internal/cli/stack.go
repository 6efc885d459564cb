package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	kstore "github.com/goliatone/go-kstore"
	"github.com/goliatone/go-kstore/pkg/activity"
	"github.com/goliatone/go-kstore/pkg/policy"
	"github.com/goliatone/go-kstore/pkg/store"
	"github.com/goliatone/go-kstore/pkg/telemetry"
)

// backend is the raw mutable store behind the decorators.
type backend interface {
	kstore.ContextStoreManager
	Init(ctx context.Context, snapshot kstore.Snapshot) error
	Revision(ctx context.Context, id string) (store.Revision, error)
	Revisions(ctx context.Context) ([]store.Revision, error)
}

type stack struct {
	backend   backend
	composite *kstore.Composite
	close     func() error
}

// openStack assembles, once per App:
//
//	Composite(Recorder(Guard(Instrument(backend))), shared files...)
func (a *App) openStack() (*stack, error) {
	if a.stack != nil {
		return a.stack, nil
	}

	opts := []store.Option{
		store.WithLogger(a.logger),
		store.WithReviewBaseURL(a.cfg.ReviewBaseURL),
	}
	var (
		raw     backend
		closeFn = func() error { return nil }
	)
	if a.cfg.InMemory {
		raw = store.NewMemoryStore(kstore.Snapshot{}, opts...)
	} else {
		bcfg := store.DefaultBadgerConfig(a.cfg.DataDir)
		bcfg.Logger = a.logger
		bs, err := store.OpenBadgerStore(bcfg, opts...)
		if err != nil {
			return nil, fmt.Errorf("open store %s: %w", a.cfg.DataDir, err)
		}
		raw, closeFn = bs, bs.Close
	}

	var rules *policy.Policy
	if a.cfg.PolicyFile != "" {
		var err error
		rules, err = a.buildPolicy(a.cfg.PolicyFile, nil, nil)
		if err != nil {
			_ = closeFn()
			return nil, err
		}
	}

	var mutable kstore.ContextStoreManager = telemetry.Instrument(raw,
		telemetry.WithStoreName(kstore.MutableLayerName),
		telemetry.WithLogger(a.logger),
	)
	mutable = policy.NewGuard(mutable, rules, policy.WithGuardLogger(a.logger))
	hooks := append(activity.Hooks{logHook(a.logger)}, a.hooks...)
	mutable = activity.NewRecorder(mutable,
		activity.NewEmitter(hooks, activity.Config{Enabled: true}),
		activity.WithStoreName(kstore.MutableLayerName),
		activity.WithRecorderLogger(a.logger),
	)

	shared := make([]kstore.SnapshotReader, 0, len(a.cfg.SharedStores))
	names := make([]string, 0, len(a.cfg.SharedStores))
	for _, path := range a.cfg.SharedStores {
		name := filepath.Base(path)
		shared = append(shared, telemetry.InstrumentReader(
			store.NewFileStore(path, store.WithReadOnly(), store.WithLogger(a.logger)),
			telemetry.WithStoreName(name),
			telemetry.WithLogger(a.logger),
		))
		names = append(names, name)
	}

	a.stack = &stack{
		backend: raw,
		composite: kstore.NewComposite(mutable, shared,
			kstore.WithLogger(a.logger),
			kstore.WithSharedNames(names...),
		),
		close: closeFn,
	}
	return a.stack, nil
}

func logHook(logger *slog.Logger) activity.HookFunc {
	return func(ctx context.Context, event activity.Event) error {
		logger.InfoContext(ctx, "knowledge store activity",
			slog.String("verb", event.Verb),
			slog.String("object_id", event.ObjectID),
			slog.String("actor_id", event.ActorID),
		)
		return nil
	}
}
