// ABOUTME: Condition evaluator caching parsed ASTs so execution never reparses an expression
// ABOUTME: Validation-time callers should Precompile every expression before the workflow runs

package condition

import (
	"sync"

	"github.com/taskerd/tasker/pkg/types"
)

// Evaluator implements types.ConditionEvaluator with a parse cache.
type Evaluator struct {
	sub types.Substituter

	mu    sync.RWMutex
	cache map[string]*AST
}

// NewEvaluator creates an Evaluator that substitutes references through
// sub when evaluating comparison atoms.
func NewEvaluator(sub types.Substituter) *Evaluator {
	return &Evaluator{sub: sub, cache: make(map[string]*AST)}
}

// Precompile parses expr and caches the AST, without evaluating it. The
// validator calls this for every success_expr/failure_expr/condition in
// the task list before the workflow starts, so Evaluate below never
// needs to parse on the hot path.
func (e *Evaluator) Precompile(expr string) error {
	ast, err := Parse(expr)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.cache[expr] = ast
	e.mu.Unlock()
	return nil
}

// Evaluate evaluates expr (using the cached parse if present) against
// exitCode.
func (e *Evaluator) Evaluate(expr string, exitCode int) (bool, error) {
	e.mu.RLock()
	ast, ok := e.cache[expr]
	e.mu.RUnlock()

	if !ok {
		parsed, err := Parse(expr)
		if err != nil {
			return false, err
		}
		e.mu.Lock()
		e.cache[expr] = parsed
		e.mu.Unlock()
		ast = parsed
	}

	return ast.Eval(exitCode, e.sub)
}
