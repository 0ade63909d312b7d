// ABOUTME: Conditional Executor: evaluates a predicate and runs the matching branch sequentially
// ABOUTME: Composite success is the AND of branch successes; exit code is the last branch task's

package conditional

import (
	"time"

	"github.com/taskerd/tasker/pkg/types"
)

// Executor implements the Conditional Executor (§4.4).
type Executor struct {
	Eval       types.ConditionEvaluator
	Dispatcher types.TaskDispatcher
	Logger     types.Logger
}

// New creates a conditional Executor.
func New(eval types.ConditionEvaluator, dispatcher types.TaskDispatcher, logger types.Logger) *Executor {
	return &Executor{Eval: eval, Dispatcher: dispatcher, Logger: logger}
}

// Execute evaluates task.Condition and runs if_true_tasks or
// if_false_tasks sequentially, returning the composite outcome.
func (x *Executor) Execute(task *types.Task) *types.TaskResult {
	started := time.Now()

	// Conditionals have no current exit code of their own to test
	// exit_<n> against; the condition grammar's @ref@ atoms are what
	// conditionals are expected to use. exitCode 0 is passed as a
	// harmless default for any exit_<n> atom that slips in.
	truthy, err := x.Eval.Evaluate(task.Condition, 0)
	if err != nil {
		return &types.TaskResult{
			TaskID: task.ID, Success: false, ExitCode: -1,
			StartedAt: started, FinishedAt: time.Now(), Attempts: 1,
		}
	}

	branch := task.IfFalseTasks
	if truthy {
		branch = task.IfTrueTasks
	}

	success := true
	exitCode := 0
	for _, id := range branch {
		res := x.Dispatcher.Dispatch(id)
		if res == nil {
			success = false
			continue
		}
		exitCode = res.ExitCode
		if !res.Success {
			success = false
		}
	}

	return &types.TaskResult{
		TaskID: task.ID, Success: success, ExitCode: exitCode,
		StartedAt: started, FinishedAt: time.Now(), Attempts: 1,
	}
}
