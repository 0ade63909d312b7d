// ABOUTME: Parallel Executor: runs a task group on a bounded worker pool and applies a group rule
// ABOUTME: Adapted from the workflow engine's layered concurrent executor, narrowed to a flat member list

package parallel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/taskerd/tasker/internal/executor"
	"github.com/taskerd/tasker/pkg/types"
)

// Executor runs a parallel task group (§4.3). Members are looked up by id
// in Tasks and must be leaf tasks; results are written to Store exactly
// once each, after every wave (including the optional retry_failed pass)
// has settled, honoring the Result Store's write-once invariant.
type Executor struct {
	Leaf   *executor.LeafExecutor
	Tasks  map[int]*types.Task
	Store  types.ResultStore
	Logger types.Logger
}

// New creates a parallel group Executor.
func New(leaf *executor.LeafExecutor, tasks map[int]*types.Task, store types.ResultStore, logger types.Logger) *Executor {
	return &Executor{Leaf: leaf, Tasks: tasks, Store: store, Logger: logger}
}

// Execute runs task's member group to completion and returns the
// composite TaskResult for the group itself (§4.3 step 5).
func (x *Executor) Execute(ctx context.Context, task *types.Task) *types.TaskResult {
	started := time.Now()
	size := effectivePoolSize(task.MaxParallel, x.Logger)

	final := make(map[int]*types.TaskResult, len(task.Members))
	x.runWave(ctx, task.Members, size, final)

	if task.RetryFailed {
		var failed []int
		for _, id := range task.Members {
			if r := final[id]; r == nil || !r.Success {
				failed = append(failed, id)
			}
		}
		if len(failed) > 0 {
			if x.Logger != nil {
				x.Logger.Info().Int("task_id", task.ID).Int("retrying", len(failed)).Msg("parallel group retrying failed members")
			}
			x.runWave(ctx, failed, size, final)
		}
	}

	for _, id := range task.Members {
		if r, ok := final[id]; ok {
			x.Store.Put(id, r)
		}
	}

	sorted := append([]int(nil), task.Members...)
	sort.Ints(sorted)

	succeeded := 0
	var stdout strings.Builder
	for _, id := range sorted {
		r := final[id]
		if r == nil {
			continue
		}
		if r.Success {
			succeeded++
		}
		if r.Spilled() {
			stdout.WriteString(fmt.Sprintf("[task %d output spilled to %s]\n", id, r.StdoutFile))
		} else {
			stdout.WriteString(r.Stdout)
		}
	}

	ok, err := groupSucceeded(task.Rule, len(task.Members), succeeded)
	if err != nil {
		ok = false
	}
	exitCode := 0
	if !ok {
		exitCode = 1
	}

	return &types.TaskResult{
		TaskID:     task.ID,
		ExitCode:   exitCode,
		Stdout:     stdout.String(),
		Success:    ok,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Attempts:   1,
	}
}

// runWave dispatches ids to a pool of the given size, running each member
// through the leaf executor, and records each outcome in final. Earlier
// entries in final are overwritten by a later wave (the retry_failed
// pass), never by Store.Put itself.
func (x *Executor) runWave(ctx context.Context, ids []int, size int, final map[int]*types.TaskResult) {
	p := pool.New().WithMaxGoroutines(size)
	var mu sync.Mutex

	for _, id := range ids {
		memberID := id
		p.Go(func() {
			member, ok := x.Tasks[memberID]
			if !ok {
				mu.Lock()
				final[memberID] = &types.TaskResult{TaskID: memberID, Success: false, ExitCode: -1, StartedAt: time.Now(), FinishedAt: time.Now()}
				mu.Unlock()
				return
			}
			res := x.Leaf.Execute(ctx, member)
			mu.Lock()
			final[memberID] = res
			mu.Unlock()
		})
	}
	p.Wait()
}
