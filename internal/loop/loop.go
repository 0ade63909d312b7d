// ABOUTME: Loop Executor: repeats an embedded task list until a break condition or iteration cap
// ABOUTME: Reports iterations executed and the final embedded outcome (§4.5)

package loop

import (
	"time"

	"github.com/taskerd/tasker/pkg/types"
)

// Executor implements the Loop Executor.
type Executor struct {
	Dispatcher types.TaskDispatcher
	Logger     types.Logger
}

// New creates a loop Executor.
func New(dispatcher types.TaskDispatcher, logger types.Logger) *Executor {
	return &Executor{Dispatcher: dispatcher, Logger: logger}
}

// Execute runs task.LoopTasks sequentially, up to task.LoopCount times,
// breaking early per BreakOnSuccess/BreakOnFailure evaluated against the
// last embedded task's outcome each iteration.
func (x *Executor) Execute(task *types.Task) *types.TaskResult {
	started := time.Now()

	iterations := 0
	var last *types.TaskResult

	for iterations < task.LoopCount {
		iterations++
		for _, id := range task.LoopTasks {
			last = x.Dispatcher.Dispatch(id)
		}

		if last == nil {
			continue
		}
		if task.BreakOnSuccess && last.Success {
			break
		}
		if task.BreakOnFailure && !last.Success {
			break
		}
	}

	success := false
	exitCode := -1
	if last != nil {
		success = last.Success
		exitCode = last.ExitCode
	}

	if x.Logger != nil {
		x.Logger.Info().Int("task_id", task.ID).Int("iterations", iterations).Msg("loop task completed")
	}

	return &types.TaskResult{
		TaskID: task.ID, Success: success, ExitCode: exitCode,
		StartedAt: started, FinishedAt: time.Now(), Attempts: iterations,
	}
}
