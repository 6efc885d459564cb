package policy

import (
	"context"
	"log/slog"

	kstore "github.com/goliatone/go-kstore"
)

// Guard is a ContextStoreManager that checks every mutation against a
// Policy before forwarding it.
type Guard struct {
	next   kstore.ContextStoreManager
	policy *Policy
	logger *slog.Logger
}

var _ kstore.ContextStoreManager = (*Guard)(nil)

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithGuardLogger sets the logger used for rejected and downgraded changes.
func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGuard wraps next. A nil policy lets every change through unchanged.
func NewGuard(next kstore.ContextStoreManager, policy *Policy, opts ...GuardOption) *Guard {
	g := &Guard{next: next, policy: policy, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *Guard) GetSnapshot(ctx context.Context) (kstore.Snapshot, error) {
	return g.next.GetSnapshot(ctx)
}

// Mutate evaluates the change and forwards it with the decided automerge
// flag. Rejected changes never reach the wrapped store.
func (g *Guard) Mutate(ctx context.Context, title, description string, automerge bool, before, after kstore.Snapshot) (kstore.ReviewURL, error) {
	if g.policy == nil {
		return g.next.Mutate(ctx, title, description, automerge, before, after)
	}
	diff, err := kstore.ComputeDiff(before, after)
	if err != nil {
		return "", err
	}
	decision, err := g.policy.Evaluate(diff, title, automerge)
	if err != nil {
		if IsViolation(err) {
			g.logger.Info("policy rejected change", "title", title, "error", err)
		}
		return "", err
	}
	if automerge && !decision.Automerge {
		g.logger.Info("policy withheld automerge", "title", title, "rules", decision.ReviewRequired)
	}
	return g.next.Mutate(ctx, title, description, decision.Automerge, before, after)
}
