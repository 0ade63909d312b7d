// ABOUTME: Leaf Task Executor: drives one atomic task through its per-task state machine
// ABOUTME: substitute -> build command -> run with timeout -> capture -> evaluate -> retry

package executor

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskerd/tasker/internal/stream"
	"github.com/taskerd/tasker/internal/transport"
	"github.com/taskerd/tasker/pkg/types"
)

// LeafExecutor drives a single leaf task (§4.2) through Substituting ->
// Running -> Evaluating -> RetryCheck -> Succeeded/Failed.
type LeafExecutor struct {
	Transports *transport.Registry
	Sub        types.Substituter
	Eval       types.ConditionEvaluator
	Stream     *stream.Handler
	Logger     types.Logger
}

// New creates a LeafExecutor over the given collaborators.
func New(transports *transport.Registry, sub types.Substituter, eval types.ConditionEvaluator, streamHandler *stream.Handler, logger types.Logger) *LeafExecutor {
	return &LeafExecutor{Transports: transports, Sub: sub, Eval: eval, Stream: streamHandler, Logger: logger}
}

// Execute runs task to completion, including retries, and returns the
// terminal TaskResult. It never returns a nil result; engine-fatal
// conditions (e.g. ctx canceled before the first attempt) are reported as
// a Canceled result rather than an error, so the driver can always store
// something at task.ID.
func (x *LeafExecutor) Execute(ctx context.Context, task *types.Task) *types.TaskResult {
	started := time.Now()
	maxAttempts := task.RetryCount + 1
	var last *types.TaskResult

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return &types.TaskResult{
				TaskID: task.ID, Success: false, Canceled: true,
				StartedAt: started, FinishedAt: time.Now(), Attempts: attempt - 1,
			}
		default:
		}

		result, retryable := x.attempt(ctx, task, attempt, started)
		last = result
		if result.Success || !retryable || attempt == maxAttempts {
			return result
		}

		if x.Logger != nil {
			x.Logger.Info().Int("task_id", task.ID).Int("attempt", attempt).Msg("leaf task failed, retrying after delay")
		}
		if !sleepCtx(ctx, time.Duration(task.RetryDelay)*time.Second) {
			last.Canceled = true
			return last
		}
	}
	return last
}

// attempt runs exactly one pass of Substituting -> Running -> Evaluating
// and reports whether a failure here is eligible for another attempt.
func (x *LeafExecutor) attempt(ctx context.Context, task *types.Task, attemptNum int, started time.Time) (*types.TaskResult, bool) {
	attemptID := uuid.NewString()
	if x.Logger != nil {
		x.Logger.Debug().Int("task_id", task.ID).Int("attempt", attemptNum).Str("attempt_id", attemptID).Msg("starting leaf attempt")
	}

	hostname, err := x.Sub.Substitute(task.Hostname)
	if err == nil {
		var command string
		command, err = x.Sub.Substitute(task.Command)
		if err == nil {
			var argStr string
			argStr, err = x.Sub.Substitute(task.Arguments)
			if err == nil {
				return x.run(ctx, task, attemptNum, started, attemptID, hostname, command, strings.Fields(argStr))
			}
		}
	}
	// UnresolvedReference is non-retryable (§7).
	return &types.TaskResult{
		TaskID: task.ID, Success: false, ExitCode: -1,
		StartedAt: started, FinishedAt: time.Now(), Attempts: attemptNum, AttemptID: attemptID,
	}, types.IsRetryable(err)
}

func (x *LeafExecutor) run(ctx context.Context, task *types.Task, attemptNum int, started time.Time, attemptID, hostname, command string, args []string) (*types.TaskResult, bool) {
	driver, err := x.Transports.Get(task.ExecType)
	if err != nil {
		return &types.TaskResult{
			TaskID: task.ID, Success: false, ExitCode: -1,
			StartedAt: started, FinishedAt: time.Now(), Attempts: attemptNum, AttemptID: attemptID,
		}, false
	}

	timeout := time.Duration(task.Timeout) * time.Second
	tr, err := driver.Run(ctx, hostname, command, args, timeout)
	finished := time.Now()
	if err != nil {
		terr := types.NewTransportError(task.ID, task.ExecType, err)
		return &types.TaskResult{
			TaskID: task.ID, Success: false, ExitCode: -1,
			StartedAt: started, FinishedAt: finished, Attempts: attemptNum, AttemptID: attemptID,
		}, types.IsRetryable(terr)
	}
	if tr.TimedOut {
		if x.Logger != nil {
			x.Logger.Warn().Int("task_id", task.ID).Str("attempt_id", attemptID).Dur("timeout", timeout).Msg("leaf task timed out")
		}
		return &types.TaskResult{
			TaskID: task.ID, ExitCode: tr.ExitCode, Success: false,
			Stdout: string(tr.Stdout), Stderr: string(tr.Stderr),
			StartedAt: started, FinishedAt: finished, Attempts: attemptNum, AttemptID: attemptID,
		}, true
	}

	result := &types.TaskResult{
		TaskID: task.ID, ExitCode: tr.ExitCode,
		StartedAt: started, FinishedAt: finished, Attempts: attemptNum, AttemptID: attemptID,
	}
	x.captureOutput(result, task.ID, tr)

	success, err := x.evaluateSuccess(task, tr.ExitCode)
	if err != nil {
		cerr := types.NewConditionFailedError(task.ID, tr.ExitCode, conditionExprOf(task))
		result.Success = false
		return result, types.IsRetryable(cerr)
	}
	result.Success = success
	if !success {
		cerr := types.NewConditionFailedError(task.ID, tr.ExitCode, conditionExprOf(task))
		return result, types.IsRetryable(cerr)
	}

	if task.Sleep > 0 {
		sleepCtx(ctx, time.Duration(task.Sleep)*time.Second)
	}
	return result, false
}

func (x *LeafExecutor) captureOutput(result *types.TaskResult, taskID int, tr types.TransportResult) {
	if x.Stream == nil {
		result.Stdout = string(tr.Stdout)
		result.Stderr = string(tr.Stderr)
		return
	}
	label := strconv.Itoa(taskID)
	if out, err := x.Stream.Capture(label+"-stdout", tr.Stdout); err == nil {
		if out.Spilled {
			result.StdoutFile = out.FilePath
		} else {
			result.Stdout = out.Content
		}
	} else {
		result.Stdout = string(tr.Stdout)
	}
	if errOut, err := x.Stream.Capture(label+"-stderr", tr.Stderr); err == nil {
		if errOut.Spilled {
			result.StderrFile = errOut.FilePath
		} else {
			result.Stderr = errOut.Content
		}
	} else {
		result.Stderr = string(tr.Stderr)
	}
}

// evaluateSuccess implements §4.1's success/failure inversion rule.
func (x *LeafExecutor) evaluateSuccess(task *types.Task, exitCode int) (bool, error) {
	switch {
	case task.SuccessExpr != "":
		return x.Eval.Evaluate(task.SuccessExpr, exitCode)
	case task.FailureExpr != "":
		failed, err := x.Eval.Evaluate(task.FailureExpr, exitCode)
		if err != nil {
			return false, err
		}
		return !failed, nil
	default:
		return exitCode == 0, nil
	}
}

func conditionExprOf(task *types.Task) string {
	if task.SuccessExpr != "" {
		return task.SuccessExpr
	}
	return task.FailureExpr
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first. It
// returns false if ctx ended the sleep early.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
