package scripting

import "testing"

func TestEvalBool(t *testing.T) {
	e := NewEvaluator(0)
	ok, err := e.EvalBool(`query.length > 2`, map[string]any{"query": "hello"})
	if err != nil {
		t.Fatalf("EvalBool() error = %v", err)
	}
	if !ok {
		t.Error("EvalBool() = false, want true")
	}
}

func TestEvalStrings(t *testing.T) {
	e := NewEvaluator(0)
	values, err := e.EvalStrings(`["a","b","c"]`, nil)
	if err != nil {
		t.Fatalf("EvalStrings() error = %v", err)
	}
	if len(values) != 3 {
		t.Errorf("values = %v", values)
	}
}
