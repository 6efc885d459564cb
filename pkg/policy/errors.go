package policy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoEvaluator is returned when no engine could be resolved for a policy.
	ErrNoEvaluator = errors.New("policy: evaluator not configured")
	// ErrUnknownEngine is returned for engine names this package does not know.
	ErrUnknownEngine = errors.New("policy: unknown evaluator engine")
	// ErrEngineUnavailable is returned for engines compiled out of the binary.
	ErrEngineUnavailable = errors.New("policy: evaluator engine unavailable in this build")
	// ErrPolicyViolation is the sentinel behind *ViolationError.
	ErrPolicyViolation = errors.New("policy: change rejected")
)

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Rule   string
	Expr   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("policy: %s evaluator rule=%s %s: %v", e.Engine, describeRule(e.Rule), describeExpression(e.Expr), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeRule(name string) string {
	if name == "" {
		return "<adhoc>"
	}
	return name
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "policy:") {
		return err
	}
	return fmt.Errorf("policy: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, rule string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Rule == "" {
			evalErr.Rule = rule
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Rule:   rule,
		Expr:   expr,
		Err:    err,
	}
}

// Violation names a deny rule that matched a change.
type Violation struct {
	Rule    string
	Message string
}

func (v Violation) String() string {
	if v.Message == "" {
		return v.Rule
	}
	return fmt.Sprintf("%s (%s)", v.Rule, v.Message)
}

// ViolationError lists every deny rule a change matched.
type ViolationError struct {
	Title      string
	Violations []Violation
}

func (e *ViolationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("policy: change %q rejected by %s", e.Title, strings.Join(parts, ", "))
}

func (e *ViolationError) Unwrap() error {
	return ErrPolicyViolation
}
