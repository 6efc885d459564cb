// Package policy decides whether a knowledge-store change may be merged.
//
// A Policy holds rules written in expr, CEL or JavaScript. Each rule is a
// boolean expression over the facts of a diff (see Facts). A matching deny
// rule rejects the change; a matching manual-review rule only withholds
// automerge.
package policy

import (
	"errors"
	"fmt"
	"time"

	kstore "github.com/goliatone/go-kstore"
)

// Effect is what a matching rule does to a change.
type Effect string

const (
	// EffectDeny rejects the change.
	EffectDeny Effect = "deny"
	// EffectManualReview keeps the change but turns automerge off.
	EffectManualReview Effect = "manual_review"
)

// Rule is one named boolean expression.
type Rule struct {
	Name       string `json:"name" yaml:"name"`
	Expression string `json:"expression" yaml:"expression"`
	Effect     Effect `json:"effect,omitempty" yaml:"effect,omitempty"`
	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Decision is the outcome of evaluating every rule against one change.
type Decision struct {
	Automerge      bool
	Denied         []Violation
	ReviewRequired []string
}

// Allowed reports whether no deny rule matched.
func (d Decision) Allowed() bool {
	return len(d.Denied) == 0
}

type compiledRule struct {
	Rule
	program CompiledRule
}

type policyConfig struct {
	engine    string
	evaluator Evaluator
	evalOpts  []EvaluatorOption
	logger    EvaluatorLogger
	now       func() time.Time
}

// Option configures a Policy.
type Option func(*policyConfig)

// WithEngine selects the engine by name (expr, cel, js).
func WithEngine(engine string) Option {
	return func(cfg *policyConfig) {
		cfg.engine = engine
	}
}

// WithEvaluator supplies a ready evaluator, overriding WithEngine.
func WithEvaluator(evaluator Evaluator) Option {
	return func(cfg *policyConfig) {
		cfg.evaluator = evaluator
	}
}

// WithEvaluatorOptions forwards options to the engine built by WithEngine.
func WithEvaluatorOptions(opts ...EvaluatorOption) Option {
	return func(cfg *policyConfig) {
		cfg.evalOpts = append(cfg.evalOpts, opts...)
	}
}

// WithEvaluatorLogger attaches an evaluator logger.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *policyConfig) {
		if logger == nil {
			cfg.logger = noopEvaluatorLogger{}
			return
		}
		cfg.logger = logger
	}
}

// Policy evaluates compiled rules in declaration order.
type Policy struct {
	engine string
	rules  []compiledRule
	logger EvaluatorLogger
	now    func() time.Time
}

// New compiles rules with the configured engine. Rules without an effect
// default to EffectDeny.
func New(rules []Rule, opts ...Option) (*Policy, error) {
	cfg := policyConfig{logger: noopEvaluatorLogger{}, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	evaluator := cfg.evaluator
	if evaluator == nil {
		var err error
		evalOpts := append([]EvaluatorOption{WithFunctionRegistry(BuiltinFunctions())}, cfg.evalOpts...)
		evaluator, err = NewEvaluator(cfg.engine, evalOpts...)
		if err != nil {
			return nil, err
		}
	}
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}

	p := &Policy{engine: evaluator.Engine(), logger: cfg.logger, now: cfg.now}
	seen := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		if rule.Name == "" {
			return nil, fmt.Errorf("policy: rule name must not be empty")
		}
		if _, dup := seen[rule.Name]; dup {
			return nil, fmt.Errorf("policy: rule %q declared twice", rule.Name)
		}
		seen[rule.Name] = struct{}{}
		switch rule.Effect {
		case "":
			rule.Effect = EffectDeny
		case EffectDeny, EffectManualReview:
		default:
			return nil, fmt.Errorf("policy: rule %q has unknown effect %q", rule.Name, rule.Effect)
		}
		program, err := evaluator.Compile(rule.Expression)
		if err != nil {
			return nil, wrapEvaluationError(p.engine, rule.Expression, rule.Name, err)
		}
		p.rules = append(p.rules, compiledRule{Rule: rule, program: program})
	}
	return p, nil
}

// Engine names the engine the rules were compiled with.
func (p *Policy) Engine() string {
	return p.engine
}

// Rules returns the rules in evaluation order.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	for i, rule := range p.rules {
		out[i] = rule.Rule
	}
	return out
}

// Evaluate runs every rule against the change. When a deny rule matches,
// the returned error is a *ViolationError and the Decision lists all
// matches. Rules that fail or return a non-boolean abort evaluation with an
// *EvaluationError.
func (p *Policy) Evaluate(diff kstore.SnapshotDiff, title string, automerge bool) (Decision, error) {
	decision := Decision{Automerge: automerge}
	if p == nil {
		return decision, nil
	}
	facts := Facts(diff, title, automerge)

	for _, rule := range p.rules {
		matched, err := p.evaluateRule(rule, facts)
		if err != nil {
			return Decision{}, err
		}
		if !matched {
			continue
		}
		switch rule.Effect {
		case EffectManualReview:
			decision.ReviewRequired = append(decision.ReviewRequired, rule.Name)
		default:
			decision.Denied = append(decision.Denied, Violation{Rule: rule.Name, Message: rule.Message})
		}
	}

	if len(decision.ReviewRequired) > 0 {
		decision.Automerge = false
	}
	if len(decision.Denied) > 0 {
		return decision, &ViolationError{Title: title, Violations: decision.Denied}
	}
	return decision, nil
}

func (p *Policy) evaluateRule(rule compiledRule, facts map[string]any) (bool, error) {
	start := p.now()
	value, err := rule.program.Evaluate(facts)
	matched := false
	if err == nil {
		var ok bool
		matched, ok = value.(bool)
		if !ok {
			err = fmt.Errorf("rule must return a boolean, got %T", value)
		}
	}
	err = wrapEvaluationError(p.engine, rule.Expression, rule.Name, err)
	p.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   p.engine,
		Rule:     rule.Name,
		Expr:     rule.Expression,
		Matched:  matched,
		Duration: p.now().Sub(start),
		Err:      err,
	})
	return matched, err
}

// IsViolation reports whether err carries a policy rejection.
func IsViolation(err error) bool {
	return errors.Is(err, ErrPolicyViolation)
}
