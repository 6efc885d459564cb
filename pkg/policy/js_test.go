//go:build js_eval

package policy

import "testing"

func TestJSEvaluatorEvaluatesFacts(t *testing.T) {
	facts := sampleFacts(t)
	evaluator, err := NewEvaluator(EngineJS, WithProgramCache(NewMapCache()))
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	got, err := evaluator.Evaluate(facts, "datasets_removed > 0 && title.indexOf('legacy') >= 0")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got != true {
		t.Fatalf("expected true, got %v", got)
	}

	rule, err := evaluator.Compile("total")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	total, err := rule.Evaluate(facts)
	if err != nil {
		t.Fatalf("compiled evaluate: %v", err)
	}
	if total != int64(facts[FactTotal].(int)) {
		t.Fatalf("expected total %v, got %v (%T)", facts[FactTotal], total, total)
	}
}
