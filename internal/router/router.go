// ABOUTME: Router: picks the next task id from a completed task's outcome and routing fields
// ABOUTME: Implements the fall-through table of §4.6, plus routing-loop detection

package router

import (
	"sort"

	"github.com/taskerd/tasker/pkg/types"
)

// Outcome classifies how the workflow should proceed after routing.
type Outcome int

const (
	// Continue means NextID names the task to run next.
	Continue Outcome = iota
	// End means the workflow has reached a normal terminal state.
	End
	// TaskFailedExit means the workflow must terminate with exit 10:
	// the current task failed and only on_success was configured.
	TaskFailedExit
	// PropagateExit means the workflow must terminate with the exit
	// code carried by the failing task (no route absorbed it).
	PropagateExit
)

// Decision is the router's verdict for one completed task.
type Decision struct {
	Outcome Outcome
	NextID  int
}

// Router holds the flat, ascending-sorted table of task ids needed to
// compute fall-through ("smallest id > current").
type Router struct {
	ids []int
}

// New builds a Router over the given task id table.
func New(ids []int) *Router {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	return &Router{ids: sorted}
}

// Route decides the next step after task completed with outcome result.
func (r *Router) Route(task *types.Task, result *types.TaskResult) Decision {
	if result.Success {
		if task.OnSuccess != nil {
			return Decision{Outcome: Continue, NextID: *task.OnSuccess}
		}
		if task.Next != nil {
			return Decision{Outcome: Continue, NextID: *task.Next}
		}
		if next, ok := r.fallThrough(task.ID); ok {
			return Decision{Outcome: Continue, NextID: next}
		}
		return Decision{Outcome: End}
	}

	if task.OnFailure != nil {
		return Decision{Outcome: Continue, NextID: *task.OnFailure}
	}
	if task.OnSuccess != nil {
		// on_success defined but not on_failure: strict-success
		// policy (§8 scenario 3) terminates the workflow at exit 10.
		return Decision{Outcome: TaskFailedExit}
	}
	if task.Next != nil {
		return Decision{Outcome: Continue, NextID: *task.Next}
	}
	return Decision{Outcome: PropagateExit}
}

// fallThrough returns the smallest known task id strictly greater than
// current, or false if current is the last task.
func (r *Router) fallThrough(current int) (int, bool) {
	for _, id := range r.ids {
		if id > current {
			return id, true
		}
	}
	return 0, false
}

// MaxHops bounds routing-loop detection: the driver should fail with
// RoutingLoop after this many hops without reaching a terminal state.
func MaxHops(taskCount int) int {
	return taskCount * 10
}

