// ABOUTME: Structural and security validation: rejects a malformed task list before the engine runs
// ABOUTME: Adapted from the workflow engine's parser.Validate, generalized over the four task kinds

package validator

import (
	"fmt"

	"github.com/taskerd/tasker/pkg/types"
)

// Precompiler exposes the subset of condition.Evaluator the validator
// needs: parsing every expression once, up front, so the router and
// executors never hit a parse error mid-run.
type Precompiler interface {
	Precompile(expr string) error
}

// Validate checks the full structural and security surface of a parsed
// task list (§3's invariants plus the parallel cross-reference rule in
// §4.3) before the Workflow Driver ever dispatches a task.
func Validate(tasks map[int]*types.Task, startID int, precompile Precompiler) error {
	if len(tasks) == 0 {
		return types.NewValidationError(0, "tasks", "task list must not be empty")
	}
	if _, ok := tasks[startID]; !ok {
		return types.NewValidationError(startID, "start", fmt.Sprintf("start task %d does not exist", startID))
	}

	for id, task := range tasks {
		if task.ID != id {
			return types.NewValidationError(id, "id", fmt.Sprintf("task stored under key %d has ID %d", id, task.ID))
		}
		if err := validateRouting(task, tasks); err != nil {
			return err
		}
		if err := validateKindFields(task, tasks, precompile); err != nil {
			return err
		}
	}

	return nil
}

func validateRouting(task *types.Task, tasks map[int]*types.Task) error {
	if task.OnSuccess != nil && task.Next != nil {
		return types.NewValidationError(task.ID, "on_success", "on_success and next are mutually exclusive")
	}
	if task.OnFailure != nil && task.Next != nil {
		return types.NewValidationError(task.ID, "on_failure", "on_failure and next are mutually exclusive")
	}
	for _, ref := range []*int{task.OnSuccess, task.OnFailure, task.Next, task.Return} {
		if ref == nil {
			continue
		}
		// Return is an exit-code override, not a task id; every other
		// routing field must name an existing task.
		if ref == task.Return {
			continue
		}
		if _, ok := tasks[*ref]; !ok {
			return types.NewValidationError(task.ID, "route", fmt.Sprintf("routes to nonexistent task %d", *ref))
		}
	}
	return nil
}

func validateKindFields(task *types.Task, tasks map[int]*types.Task, precompile Precompiler) error {
	switch task.Kind {
	case types.KindLeaf:
		return validateLeaf(task, precompile)
	case types.KindParallel:
		return validateParallel(task, tasks)
	case types.KindConditional:
		return validateConditional(task, tasks, precompile)
	case types.KindLoop:
		return validateLoop(task, tasks)
	default:
		return types.NewValidationError(task.ID, "kind", fmt.Sprintf("unknown task kind %q", task.Kind))
	}
}

func validateLeaf(task *types.Task, precompile Precompiler) error {
	if task.SuccessExpr != "" && task.FailureExpr != "" {
		return types.NewValidationError(task.ID, "success_expr", "success_expr and failure_expr are mutually exclusive")
	}
	if task.Command == "" {
		return types.NewValidationError(task.ID, "command", "leaf task requires a command")
	}
	if task.Timeout < types.MinTimeout || task.Timeout > types.MaxTimeout {
		return types.NewValidationError(task.ID, "timeout", fmt.Sprintf("timeout %d out of range [%d, %d]", task.Timeout, types.MinTimeout, types.MaxTimeout))
	}
	if task.RetryCount < 0 || task.RetryCount > types.MaxRetryCount {
		return types.NewValidationError(task.ID, "retry_count", fmt.Sprintf("retry_count %d out of range [0, %d]", task.RetryCount, types.MaxRetryCount))
	}
	if task.RetryDelay < 0 || task.RetryDelay > types.MaxRetryDelay {
		return types.NewValidationError(task.ID, "retry_delay", fmt.Sprintf("retry_delay %d out of range [0, %d]", task.RetryDelay, types.MaxRetryDelay))
	}
	if expr := conditionExprOf(task); expr != "" && precompile != nil {
		if err := precompile.Precompile(expr); err != nil {
			return types.NewValidationError(task.ID, "success_expr/failure_expr", fmt.Sprintf("failed to parse condition %q: %v", expr, err))
		}
	}
	return nil
}

func conditionExprOf(task *types.Task) string {
	if task.SuccessExpr != "" {
		return task.SuccessExpr
	}
	return task.FailureExpr
}

func validateParallel(task *types.Task, tasks map[int]*types.Task) error {
	if len(task.Members) == 0 {
		return types.NewValidationError(task.ID, "members", "parallel task requires at least one member")
	}
	if task.MaxParallel < types.MinMaxParallel || task.MaxParallel > types.MaxMaxParallel {
		return types.NewValidationError(task.ID, "max_parallel", fmt.Sprintf("max_parallel %d out of range [%d, %d]", task.MaxParallel, types.MinMaxParallel, types.MaxMaxParallel))
	}
	if _, err := parseGroupRule(task.Rule); err != nil {
		return types.NewValidationError(task.ID, "rule", err.Error())
	}

	members := make(map[int]bool, len(task.Members))
	for _, id := range task.Members {
		if _, ok := tasks[id]; !ok {
			return types.NewValidationError(task.ID, "members", fmt.Sprintf("member task %d does not exist", id))
		}
		members[id] = true
	}

	// §4.3: member tasks may only reference results from tasks outside
	// the group; a member referencing a sibling member is a
	// validation-time error, since the two may run concurrently and
	// neither is guaranteed to have completed.
	for _, id := range task.Members {
		member := tasks[id]
		for _, ref := range resultRefIDs(member) {
			if members[ref] {
				return types.NewValidationError(id, "arguments", fmt.Sprintf("member task %d references sibling member %d within the same parallel group", id, ref))
			}
		}
	}
	return nil
}

func parseGroupRule(rule string) (types.GroupRule, error) {
	switch types.GroupRule(rule) {
	case types.RuleAll, types.RuleAny, types.RuleMajority:
		return types.GroupRule(rule), nil
	}
	var n int
	if _, err := fmt.Sscanf(rule, "count:%d", &n); err == nil && n > 0 {
		return types.GroupRule(rule), nil
	}
	return "", fmt.Errorf("rule %q must be one of all, any, majority, or count:n", rule)
}

func validateConditional(task *types.Task, tasks map[int]*types.Task, precompile Precompiler) error {
	if task.Condition == "" {
		return types.NewValidationError(task.ID, "condition", "conditional task requires a condition expression")
	}
	if len(task.IfTrueTasks) == 0 && len(task.IfFalseTasks) == 0 {
		return types.NewValidationError(task.ID, "if_true_tasks", "conditional task requires at least one branch task")
	}
	for _, ids := range [][]int{task.IfTrueTasks, task.IfFalseTasks} {
		for _, id := range ids {
			if _, ok := tasks[id]; !ok {
				return types.NewValidationError(task.ID, "if_true_tasks/if_false_tasks", fmt.Sprintf("branch task %d does not exist", id))
			}
		}
	}
	if precompile != nil {
		if err := precompile.Precompile(task.Condition); err != nil {
			return types.NewValidationError(task.ID, "condition", fmt.Sprintf("failed to parse condition %q: %v", task.Condition, err))
		}
	}
	return nil
}

func validateLoop(task *types.Task, tasks map[int]*types.Task) error {
	if len(task.LoopTasks) == 0 {
		return types.NewValidationError(task.ID, "loop_tasks", "loop task requires at least one embedded task")
	}
	if task.LoopCount < 0 || task.LoopCount > types.MaxLoopCount {
		return types.NewValidationError(task.ID, "loop_count", fmt.Sprintf("loop_count %d out of range [0, %d]", task.LoopCount, types.MaxLoopCount))
	}
	for _, id := range task.LoopTasks {
		if _, ok := tasks[id]; !ok {
			return types.NewValidationError(task.ID, "loop_tasks", fmt.Sprintf("embedded task %d does not exist", id))
		}
	}
	return nil
}

// resultRefIDs extracts every "@k_*@" task id referenced in a leaf
// task's substitutable fields, for the parallel cross-reference check.
func resultRefIDs(task *types.Task) []int {
	if task == nil {
		return nil
	}
	var ids []int
	for _, field := range []string{task.Hostname, task.Command, task.Arguments} {
		ids = append(ids, scanRefIDs(field)...)
	}
	return ids
}

// scanRefIDs finds every leading integer inside "@N_suffix@" atoms in s.
func scanRefIDs(s string) []int {
	var ids []int
	for i := 0; i < len(s); i++ {
		if s[i] != '@' {
			continue
		}
		j := i + 1
		start := j
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j > start && j < len(s) && s[j] == '_' {
			n := 0
			for k := start; k < j; k++ {
				n = n*10 + int(s[k]-'0')
			}
			ids = append(ids, n)
		}
		i = j - 1
	}
	return ids
}
