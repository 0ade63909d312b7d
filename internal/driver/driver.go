// ABOUTME: Workflow Driver: owns the current-task loop, dispatches by kind, stores results, routes
// ABOUTME: Terminates on End/TaskFailedExit/PropagateExit/RoutingLoop/cancellation and reports an exit code

package driver

import (
	"context"
	"sort"
	"time"

	"github.com/taskerd/tasker/internal/conditional"
	"github.com/taskerd/tasker/internal/executor"
	"github.com/taskerd/tasker/internal/loop"
	"github.com/taskerd/tasker/internal/notify"
	"github.com/taskerd/tasker/internal/parallel"
	"github.com/taskerd/tasker/internal/router"
	"github.com/taskerd/tasker/pkg/types"
)

// Exit codes (§6).
const (
	ExitSuccess    = 0
	ExitTaskFailed = 10
	ExitValidation = 20
	ExitSecurity   = 21
)

// Driver owns a workflow's execution from its designated start task to a
// terminal state and computes the final process exit code.
type Driver struct {
	tasks       map[int]*types.Task
	ids         []int
	store       types.ResultStore
	router      *router.Router
	leaf        *executor.LeafExecutor
	parallelX   *parallel.Executor
	conditional *conditional.Executor
	loop        *loop.Executor
	logger      types.Logger
	notifier    *notify.Dispatcher

	ctx context.Context

	// returnOverride tracks the last executed task's Return field
	// (§9: last-writer-wins for return=<n>).
	returnOverride *int

	// lastFailedTaskID tracks the most recent task id whose result was
	// unsuccessful, for the completion Summary handed to notify sinks.
	lastFailedTaskID int
}

// SetNotifier attaches a notification dispatcher; Run fires it exactly
// once at a terminal state. Not a task: no task id, no retry, no
// routing field (§4.8).
func (d *Driver) SetNotifier(n *notify.Dispatcher) {
	d.notifier = n
}

// New assembles a Driver over the given task table and collaborators.
// The conditional and loop executors receive this Driver itself as their
// types.TaskDispatcher, since Dispatch needs to run any task kind.
func New(ctx context.Context, tasks map[int]*types.Task, store types.ResultStore, leaf *executor.LeafExecutor, logger types.Logger) *Driver {
	ids := make([]int, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	d := &Driver{
		tasks:  tasks,
		ids:    ids,
		store:  store,
		router: router.New(ids),
		leaf:   leaf,
		logger: logger,
		ctx:    ctx,
	}
	d.parallelX = parallel.New(leaf, tasks, store, logger)
	d.conditional = conditional.New(leaf.Eval, d, logger)
	d.loop = loop.New(d, logger)
	return d
}

// Dispatch implements types.TaskDispatcher: run task id to completion and
// store its result. Used both by the top-level Run loop and by the
// conditional/loop executors running embedded task ids.
func (d *Driver) Dispatch(taskID int) *types.TaskResult {
	task, ok := d.tasks[taskID]
	if !ok {
		return nil
	}

	var result *types.TaskResult
	switch task.Kind {
	case types.KindLeaf:
		result = d.leaf.Execute(d.ctx, task)
	case types.KindParallel:
		result = d.parallelX.Execute(d.ctx, task)
	case types.KindConditional:
		result = d.conditional.Execute(task)
	case types.KindLoop:
		result = d.loop.Execute(task)
	default:
		return nil
	}

	if !d.store.Has(taskID) {
		d.store.Put(taskID, result)
	}
	if result != nil && !result.Success {
		d.lastFailedTaskID = taskID
	}
	if task.Return != nil {
		d.returnOverride = task.Return
	}
	return result
}

// Run drives the workflow from startID to a terminal state and returns
// the process exit code (§6).
func (d *Driver) Run(startID int) int {
	started := time.Now()
	current := startID
	maxHops := router.MaxHops(len(d.ids))
	hops := 0

	var lastResult *types.TaskResult

	for {
		select {
		case <-d.ctx.Done():
			return d.finish(ExitValidation, started)
		default:
		}

		hops++
		if hops > maxHops {
			if d.logger != nil {
				d.logger.Error().Int("hops", hops).Msg("routing loop detected")
			}
			return d.finish(ExitValidation, started)
		}

		task, ok := d.tasks[current]
		if !ok {
			if d.logger != nil {
				d.logger.Error().Int("task_id", current).Msg("routed to an unknown task id")
			}
			return d.finish(ExitValidation, started)
		}

		result := d.Dispatch(current)
		lastResult = result

		decision := d.router.Route(task, result)
		switch decision.Outcome {
		case router.Continue:
			current = decision.NextID
			continue
		case router.End:
			return d.finish(d.finalExitCode(true, lastResult), started)
		case router.TaskFailedExit:
			return d.finish(ExitTaskFailed, started)
		case router.PropagateExit:
			return d.finish(d.finalExitCode(false, lastResult), started)
		}
	}
}

// finish fires the notify dispatcher (if attached) with the workflow's
// final exit code before returning it to the caller.
func (d *Driver) finish(exitCode int, started time.Time) int {
	if d.notifier != nil {
		failedTask := 0
		if exitCode != ExitSuccess {
			failedTask = d.lastFailedTaskID
		}
		d.notifier.Fire(d.ctx, notify.Summary{
			ExitCode:   exitCode,
			FailedTask: failedTask,
			Duration:   time.Since(started),
		})
	}
	return exitCode
}

// finalExitCode applies the return=<n> override (last-writer-wins) over
// the natural outcome of the workflow.
func (d *Driver) finalExitCode(workflowSucceeded bool, lastResult *types.TaskResult) int {
	if d.returnOverride != nil {
		return *d.returnOverride
	}
	if workflowSucceeded {
		return ExitSuccess
	}
	if lastResult == nil {
		return ExitValidation
	}
	code := lastResult.ExitCode
	if code < 1 || code > 9 {
		// Out-of-band exit codes from the failing task are folded
		// into the workflow-level TASK_FAILED code rather than
		// colliding with the reserved 10/20/21 range.
		return ExitTaskFailed
	}
	return code
}
