package validator

import (
	"testing"

	"github.com/taskerd/tasker/pkg/types"
)

type stubPrecompiler struct {
	seen []string
	err  error
}

func (p *stubPrecompiler) Precompile(expr string) error {
	p.seen = append(p.seen, expr)
	return p.err
}

func intp(n int) *int { return &n }

func TestValidateAcceptsSimpleLeafWorkflow(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30},
	}
	if err := Validate(tasks, 1, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsEmptyTaskList(t *testing.T) {
	if err := Validate(map[int]*types.Task{}, 1, nil); err == nil {
		t.Errorf("expected an error for an empty task list")
	}
}

func TestValidateRejectsUnknownStartID(t *testing.T) {
	tasks := map[int]*types.Task{1: {ID: 1, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30}}
	if err := Validate(tasks, 99, nil); err == nil {
		t.Errorf("expected an error for a nonexistent start task")
	}
}

func TestValidateRejectsOnSuccessAndNextTogether(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30, OnSuccess: intp(2), Next: intp(2)},
		2: {ID: 2, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30},
	}
	if err := Validate(tasks, 1, nil); err == nil {
		t.Errorf("expected an error for on_success+next both set")
	}
}

func TestValidateRejectsRouteToNonexistentTask(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30, OnSuccess: intp(99)},
	}
	if err := Validate(tasks, 1, nil); err == nil {
		t.Errorf("expected an error for a route to a nonexistent task")
	}
}

func TestValidateAllowsReturnValueNotToBeATaskID(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30, Return: intp(77)},
	}
	if err := Validate(tasks, 1, nil); err != nil {
		t.Errorf("expected return=77 to be accepted as an exit-code override, got %v", err)
	}
}

func TestValidateRejectsBothSuccessAndFailureExpr(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30, SuccessExpr: "exit_0", FailureExpr: "exit_1"},
	}
	if err := Validate(tasks, 1, nil); err == nil {
		t.Errorf("expected an error for mutually exclusive success_expr/failure_expr")
	}
}

func TestValidateRejectsTimeoutOutOfRange(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 0},
	}
	if err := Validate(tasks, 1, nil); err == nil {
		t.Errorf("expected an error for an out-of-range timeout")
	}
}

func TestValidatePrecompilesLeafConditionExpr(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30, SuccessExpr: "exit_0"},
	}
	p := &stubPrecompiler{}
	if err := Validate(tasks, 1, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.seen) != 1 || p.seen[0] != "exit_0" {
		t.Errorf("expected exit_0 to be precompiled, got %v", p.seen)
	}
}

func TestValidateParallelRequiresMembers(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindParallel, MaxParallel: 1, Rule: "all"},
	}
	if err := Validate(tasks, 1, nil); err == nil {
		t.Errorf("expected an error for a parallel task with no members")
	}
}

func TestValidateParallelRejectsUnknownRule(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindParallel, Members: []int{2}, MaxParallel: 1, Rule: "most"},
		2: {ID: 2, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30},
	}
	if err := Validate(tasks, 1, nil); err == nil {
		t.Errorf("expected an error for an unrecognized group rule")
	}
}

func TestValidateParallelAcceptsCountNRule(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindParallel, Members: []int{2, 3}, MaxParallel: 2, Rule: "count:1"},
		2: {ID: 2, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30},
		3: {ID: 3, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30},
	}
	if err := Validate(tasks, 1, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateParallelRejectsCrossGroupReference(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindParallel, Members: []int{2, 3}, MaxParallel: 2, Rule: "all"},
		2: {ID: 2, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30},
		3: {ID: 3, Kind: types.KindLeaf, Command: "/bin/echo", Arguments: "@2_stdout@", Timeout: 30},
	}
	if err := Validate(tasks, 1, nil); err == nil {
		t.Errorf("expected an error for a member referencing a sibling member's result")
	}
}

func TestValidateParallelAllowsReferenceOutsideTheGroup(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30, Next: intp(2)},
		2: {ID: 2, Kind: types.KindParallel, Members: []int{3}, MaxParallel: 1, Rule: "all"},
		3: {ID: 3, Kind: types.KindLeaf, Command: "/bin/echo", Arguments: "@1_stdout@", Timeout: 30},
	}
	if err := Validate(tasks, 1, nil); err != nil {
		t.Errorf("unexpected error referencing a task outside the group: %v", err)
	}
}

func TestValidateConditionalRequiresABranch(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindConditional, Condition: "exit_0"},
	}
	if err := Validate(tasks, 1, nil); err == nil {
		t.Errorf("expected an error for a conditional with no branch tasks")
	}
}

func TestValidateConditionalRejectsUnknownBranchTask(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindConditional, Condition: "exit_0", IfTrueTasks: []int{99}},
	}
	if err := Validate(tasks, 1, nil); err == nil {
		t.Errorf("expected an error for a branch referencing a nonexistent task")
	}
}

func TestValidateLoopRequiresEmbeddedTasks(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLoop, LoopCount: 3},
	}
	if err := Validate(tasks, 1, nil); err == nil {
		t.Errorf("expected an error for a loop with no embedded tasks")
	}
}

func TestValidateLoopRejectsCountOutOfRange(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLoop, LoopTasks: []int{2}, LoopCount: types.MaxLoopCount + 1},
		2: {ID: 2, Kind: types.KindLeaf, Command: "/bin/true", Timeout: 30},
	}
	if err := Validate(tasks, 1, nil); err == nil {
		t.Errorf("expected an error for loop_count above the max")
	}
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: "mystery"},
	}
	if err := Validate(tasks, 1, nil); err == nil {
		t.Errorf("expected an error for an unrecognized task kind")
	}
}
