package policy

import (
	"errors"
	"strings"
	"sync"
	"testing"

	kstore "github.com/goliatone/go-kstore"
)

type countingCache struct {
	mu     sync.Mutex
	inner  *MapCache
	hits   int
	stores int
}

func newCountingCache() *countingCache {
	return &countingCache{inner: NewMapCache()}
}

func (c *countingCache) Get(key string) (any, bool) {
	value, ok := c.inner.Get(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.hits++
	}
	return value, ok
}

func (c *countingCache) Set(key string, value any) {
	c.mu.Lock()
	c.stores++
	c.mu.Unlock()
	c.inner.Set(key, value)
}

func sampleFacts(t *testing.T) map[string]any {
	t.Helper()
	before := kstore.Snapshot{
		Datasets: []kstore.DatasetEntry{
			{Connection: "pg", Table: "users"},
			{Connection: "pg", Table: "legacy"},
		},
	}
	after := kstore.Snapshot{
		Datasets: []kstore.DatasetEntry{
			{Connection: "pg", Table: "users"},
			{Connection: "pg", Table: "orders"},
		},
		Channels: map[string]kstore.ChannelScope{
			"ops": {SystemPrompt: kstore.StringPtr("Page the on-call.")},
		},
	}
	diff, err := kstore.ComputeDiff(before, after)
	if err != nil {
		t.Fatalf("compute diff: %v", err)
	}
	return Facts(diff, "swap legacy for orders", true)
}

func TestFactsCoverEveryName(t *testing.T) {
	facts := sampleFacts(t)
	for _, name := range FactNames {
		if _, ok := facts[name]; !ok {
			t.Fatalf("fact %q missing", name)
		}
	}
	if len(facts) != len(FactNames) {
		t.Fatalf("expected %d facts, got %d", len(FactNames), len(facts))
	}
	if facts[FactDatasetsAdded] != 1 || facts[FactDatasetsRemoved] != 1 || facts[FactChannelsAdded] != 1 {
		t.Fatalf("unexpected counts %+v", facts)
	}
	removed := facts[FactRemovedDatasets].([]any)
	if len(removed) != 1 || removed[0] != "pg.legacy" {
		t.Fatalf("unexpected removed datasets %v", removed)
	}
	if facts[FactTitle] != "swap legacy for orders" || facts[FactAutomerge] != true {
		t.Fatalf("unexpected request facts %+v", facts)
	}
}

func TestEnginesEvaluateFacts(t *testing.T) {
	facts := sampleFacts(t)
	cases := []struct {
		engine string
		expr   string
		want   any
	}{
		{EngineExpr, "datasets_removed > 0 && datasets_added == 1", true},
		{EngineExpr, `"pg.legacy" in removed_datasets`, true},
		{EngineExpr, `"ops" in changed_channels`, true},
		{EngineExpr, "system_prompt_changed", false},
		{EngineCEL, "datasets_removed > 0 && datasets_added == 1", true},
		{EngineCEL, `"pg.orders" in added_datasets`, true},
		{EngineCEL, `size(changed_channels) == 1`, true},
		{EngineCEL, "title.startsWith('swap')", true},
	}
	for _, tc := range cases {
		t.Run(tc.engine+"/"+tc.expr, func(t *testing.T) {
			evaluator, err := NewEvaluator(tc.engine)
			if err != nil {
				t.Fatalf("new evaluator: %v", err)
			}
			got, err := evaluator.Evaluate(facts, tc.expr)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %v, got %v (%T)", tc.want, got, got)
			}
		})
	}
}

func TestEvaluatorRejectsEmptyExpression(t *testing.T) {
	for _, engine := range []string{EngineExpr, EngineCEL} {
		evaluator, err := NewEvaluator(engine)
		if err != nil {
			t.Fatalf("new evaluator: %v", err)
		}
		if _, err := evaluator.Evaluate(nil, ""); err == nil || !strings.HasPrefix(err.Error(), "policy:") {
			t.Fatalf("%s: expected prefixed error, got %v", engine, err)
		}
		if _, err := evaluator.Compile(""); err == nil {
			t.Fatalf("%s: expected compile error", engine)
		}
	}
}

func TestCELRejectsUnknownIdentifiers(t *testing.T) {
	evaluator := NewCELEvaluator()
	_, err := evaluator.Compile("not_a_fact > 1")
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Engine != EngineCEL {
		t.Fatalf("unexpected engine %q", evalErr.Engine)
	}
}

func TestEvaluatorsShareProgramCache(t *testing.T) {
	facts := sampleFacts(t)
	for _, engine := range []string{EngineExpr, EngineCEL} {
		cache := newCountingCache()
		evaluator, err := NewEvaluator(engine, WithProgramCache(cache))
		if err != nil {
			t.Fatalf("new evaluator: %v", err)
		}
		for i := 0; i < 3; i++ {
			if _, err := evaluator.Evaluate(facts, "total > 1"); err != nil {
				t.Fatalf("%s: evaluate: %v", engine, err)
			}
		}
		if cache.stores != 1 || cache.hits != 2 {
			t.Fatalf("%s: expected 1 store and 2 hits, got %d and %d", engine, cache.stores, cache.hits)
		}
	}
}

func TestFunctionRegistry(t *testing.T) {
	hasPrefix := func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, errors.New("has_prefix expects a list and a prefix")
		}
		items, _ := args[0].([]any)
		prefix, _ := args[1].(string)
		for _, item := range items {
			if s, ok := item.(string); ok && strings.HasPrefix(s, prefix) {
				return true, nil
			}
		}
		return false, nil
	}
	registry, err := NewFunctionRegistry(map[string]Function{"Has_Prefix": hasPrefix})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, err := registry.With("has_prefix", hasPrefix); err == nil {
		t.Fatalf("expected a case-insensitive duplicate to fail")
	}
	if _, err := registry.With("call", hasPrefix); err == nil {
		t.Fatalf("expected the reserved call name to fail")
	}
	extended, err := registry.With("noop", func(...any) (any, error) { return nil, nil })
	if err != nil {
		t.Fatalf("with: %v", err)
	}
	if names := extended.Names(); len(names) != 2 || names[0] != "has_prefix" || names[1] != "noop" {
		t.Fatalf("unexpected names %v", names)
	}
	if names := registry.Names(); len(names) != 1 {
		t.Fatalf("With must not change the original registry, got %v", names)
	}

	facts := sampleFacts(t)
	exprEval := NewExprEvaluator(WithFunctionRegistry(registry))
	got, err := exprEval.Evaluate(facts, `has_prefix(removed_datasets, "pg.")`)
	if err != nil || got != true {
		t.Fatalf("expr: expected true, got %v (%v)", got, err)
	}
	got, err = exprEval.Evaluate(facts, `call("has_prefix", added_datasets, "mysql.")`)
	if err != nil || got != false {
		t.Fatalf("expr call: expected false, got %v (%v)", got, err)
	}

	celEval := NewCELEvaluator(WithFunctionRegistry(registry))
	got, err = celEval.Evaluate(facts, `call("has_prefix", [removed_datasets, "pg."])`)
	if err != nil || got != true {
		t.Fatalf("cel call: expected true, got %v (%v)", got, err)
	}
}

func TestBuiltinFunctions(t *testing.T) {
	facts := sampleFacts(t)
	changed, ok := facts[FactChangedDatasets].([]any)
	if !ok || len(changed) != 2 || changed[0] != "pg.legacy" || changed[1] != "pg.orders" {
		t.Fatalf("unexpected changed datasets %v", facts[FactChangedDatasets])
	}

	exprEval := NewExprEvaluator(WithFunctionRegistry(BuiltinFunctions()))
	cases := []struct {
		expression string
		want       any
	}{
		{`touches(changed_datasets, "pg.*")`, true},
		{`touches(changed_datasets, "pg.users")`, false},
		{`touches(removed_datasets, "*.legacy")`, true},
		{`"pg" in connections(changed_datasets) && len(connections(changed_datasets)) == 1`, true},
	}
	for _, tc := range cases {
		got, err := exprEval.Evaluate(facts, tc.expression)
		if err != nil || got != tc.want {
			t.Fatalf("%s: want %v, got %v (%v)", tc.expression, tc.want, got, err)
		}
	}

	celEval := NewCELEvaluator(WithFunctionRegistry(BuiltinFunctions()))
	got, err := celEval.Evaluate(facts, `call("touches", [changed_datasets, "pg.orders"])`)
	if err != nil || got != true {
		t.Fatalf("cel touches: expected true, got %v (%v)", got, err)
	}

	if _, err := exprEval.Evaluate(facts, `touches(changed_datasets, "[")`); err == nil {
		t.Fatalf("expected a malformed pattern to fail")
	}
	if _, err := exprEval.Evaluate(facts, `touches(total, "pg.*")`); err == nil {
		t.Fatalf("expected a non-list argument to fail")
	}
}

func TestNewEvaluatorUnknownEngine(t *testing.T) {
	_, err := NewEvaluator("lua")
	if !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
	evaluator, err := NewEvaluator("")
	if err != nil || evaluator.Engine() != EngineExpr {
		t.Fatalf("expected expr by default, got %v (%v)", evaluator, err)
	}
}
