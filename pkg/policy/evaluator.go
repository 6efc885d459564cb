package policy

import (
	"fmt"
	"strings"
)

// Engine names accepted by NewEvaluator.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// Evaluator runs rule expressions against a fact map.
type Evaluator interface {
	Engine() string
	Evaluate(facts map[string]any, expression string) (any, error)
	Compile(expression string) (CompiledRule, error)
}

// CompiledRule is an expression prepared once and evaluated many times.
type CompiledRule interface {
	Evaluate(facts map[string]any) (any, error)
}

type evaluatorConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// EvaluatorOption configures any of the built-in engines.
type EvaluatorOption func(*evaluatorConfig)

// WithProgramCache shares compiled programs across evaluators.
func WithProgramCache(cache ProgramCache) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes registry functions to expressions. A later
// option replaces an earlier registry.
func WithFunctionRegistry(registry *FunctionRegistry) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		if registry != nil {
			cfg.registry = registry
		}
	}
}

func applyEvaluatorOptions(opts []EvaluatorOption) evaluatorConfig {
	cfg := evaluatorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// NewEvaluator resolves an engine by name. An empty name selects expr.
func NewEvaluator(engine string, opts ...EvaluatorOption) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(opts...), nil
	case EngineCEL:
		return NewCELEvaluator(opts...), nil
	case EngineJS:
		evaluator := NewJSEvaluator(opts...)
		if evaluator == nil {
			return nil, ErrEngineUnavailable
		}
		return evaluator, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
}

// Engines lists the engine names available in this build.
func Engines() []string {
	engines := []string{EngineCEL, EngineExpr}
	if jsEvaluatorAvailable() {
		engines = append(engines, EngineJS)
	}
	return engines
}
