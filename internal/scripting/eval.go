// Package scripting evaluates small JS expressions for completion
// handlers (the demo greet prompt's completion generates its candidates
// this way). Tools loaded from mcpcore.yaml do not use it. Ground: the
// teacher's embedded goja
// use for configuration-driven behavior — goja is the only scripting
// dependency in the teacher's own go.mod, so this is its new home.
package scripting

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// Evaluator runs short JS expressions against a bag of named variables.
// Each call gets a fresh *goja.Runtime so one expression's globals can
// never leak into another's.
type Evaluator struct {
	timeout time.Duration
}

// NewEvaluator creates an Evaluator with the given per-call timeout
// (5 seconds if zero), guarding against a pathological expression hanging
// a tool call forever.
func NewEvaluator(timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Evaluator{timeout: timeout}
}

// EvalBool evaluates expr with vars bound as globals and coerces the
// result to a boolean, used for route/policy predicates such as
// completion argument filters.
func (e *Evaluator) EvalBool(expr string, vars map[string]any) (bool, error) {
	vm := goja.New()
	for k, v := range vars {
		if err := vm.Set(k, v); err != nil {
			return false, fmt.Errorf("bind variable %s: %w", k, err)
		}
	}

	done := make(chan struct{})
	var result goja.Value
	var runErr error
	go func() {
		defer close(done)
		result, runErr = vm.RunString(expr)
	}()

	select {
	case <-done:
		if runErr != nil {
			return false, fmt.Errorf("evaluate expression: %w", runErr)
		}
		return result.ToBoolean(), nil
	case <-time.After(e.timeout):
		vm.Interrupt("evaluation timed out")
		return false, fmt.Errorf("expression timed out after %s", e.timeout)
	}
}

// EvalStrings evaluates expr expecting it to produce a JS array and
// returns its elements as strings, used to generate completion
// candidates.
func (e *Evaluator) EvalStrings(expr string, vars map[string]any) ([]string, error) {
	vm := goja.New()
	for k, v := range vars {
		if err := vm.Set(k, v); err != nil {
			return nil, fmt.Errorf("bind variable %s: %w", k, err)
		}
	}
	timer := time.AfterFunc(e.timeout, func() { vm.Interrupt("evaluation timed out") })
	defer timer.Stop()
	value, err := vm.RunString(expr)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression: %w", err)
	}
	exported := value.Export()
	items, ok := exported.([]any)
	if !ok {
		return nil, fmt.Errorf("expression did not produce an array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprintf("%v", item))
	}
	return out, nil
}
