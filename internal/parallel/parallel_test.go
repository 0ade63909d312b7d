// ABOUTME: Tests for group success rules, pool sizing, and the parallel executor end to end

package parallel

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/taskerd/tasker/internal/condition"
	"github.com/taskerd/tasker/internal/executor"
	"github.com/taskerd/tasker/internal/resultstore"
	"github.com/taskerd/tasker/internal/transport"
	"github.com/taskerd/tasker/pkg/types"
)

func TestGroupSucceededAll(t *testing.T) {
	ok, err := groupSucceeded(string(types.RuleAll), 3, 3)
	if err != nil || !ok {
		t.Fatalf("expected all-rule success with 3/3, got ok=%v err=%v", ok, err)
	}
	ok, _ = groupSucceeded(string(types.RuleAll), 3, 2)
	if ok {
		t.Errorf("expected all-rule failure with 2/3")
	}
}

func TestGroupSucceededAny(t *testing.T) {
	ok, _ := groupSucceeded(string(types.RuleAny), 5, 1)
	if !ok {
		t.Errorf("expected any-rule success with 1/5")
	}
	ok, _ = groupSucceeded(string(types.RuleAny), 5, 0)
	if ok {
		t.Errorf("expected any-rule failure with 0/5")
	}
}

func TestGroupSucceededMajority(t *testing.T) {
	ok, _ := groupSucceeded(string(types.RuleMajority), 4, 3)
	if !ok {
		t.Errorf("expected majority success with 3/4")
	}
	ok, _ = groupSucceeded(string(types.RuleMajority), 4, 2)
	if ok {
		t.Errorf("expected majority failure with 2/4 (not strictly more than half)")
	}
}

func TestGroupSucceededCountN(t *testing.T) {
	ok, err := groupSucceeded("count:2", 5, 2)
	if err != nil || !ok {
		t.Fatalf("expected count:2 success with 2/5, got ok=%v err=%v", ok, err)
	}
	ok, _ = groupSucceeded("count:2", 5, 1)
	if ok {
		t.Errorf("expected count:2 failure with 1/5")
	}
}

func TestGroupSucceededUnknownRule(t *testing.T) {
	if _, err := groupSucceeded("nonsense", 1, 1); err == nil {
		t.Fatalf("expected an error for an unrecognized rule")
	}
}

func TestEffectivePoolSizeCapsToRequested(t *testing.T) {
	if got := effectivePoolSize(1, nil); got != 1 {
		t.Errorf("expected a pool size of 1 for max_parallel=1, got %d", got)
	}
}

func TestEffectivePoolSizeFloorsAtOne(t *testing.T) {
	if got := effectivePoolSize(0, nil); got < 1 {
		t.Errorf("expected pool size to floor at 1, got %d", got)
	}
}

// trackingDriver records the number of concurrently in-flight Run calls.
type trackingDriver struct {
	inFlight int32
	peak     int32
	delay    time.Duration
}

func (d *trackingDriver) Run(ctx context.Context, hostname, command string, arguments []string, timeout time.Duration) (types.TransportResult, error) {
	n := atomic.AddInt32(&d.inFlight, 1)
	for {
		p := atomic.LoadInt32(&d.peak)
		if n <= p || atomic.CompareAndSwapInt32(&d.peak, p, n) {
			break
		}
	}
	time.Sleep(d.delay)
	atomic.AddInt32(&d.inFlight, -1)
	return types.TransportResult{ExitCode: 0}, nil
}

func newParallelExecutor(driver types.TransportDriver, tasks map[int]*types.Task) (*Executor, types.ResultStore) {
	store := resultstore.New()
	sub := condition.New(store, types.GlobalVars{})
	eval := condition.NewEvaluator(sub)
	registry := transport.NewRegistry()
	registry.Register("local", driver)
	leaf := executor.New(registry, sub, eval, nil, nil)
	return New(leaf, tasks, store, nil), store
}

func TestParallelExecutorRespectsMaxParallel(t *testing.T) {
	driver := &trackingDriver{delay: 20 * time.Millisecond}
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLeaf, ExecType: "local", Command: "/bin/true", Timeout: 5},
		2: {ID: 2, Kind: types.KindLeaf, ExecType: "local", Command: "/bin/true", Timeout: 5},
		3: {ID: 3, Kind: types.KindLeaf, ExecType: "local", Command: "/bin/true", Timeout: 5},
	}
	x, store := newParallelExecutor(driver, tasks)

	group := &types.Task{ID: 100, Kind: types.KindParallel, Members: []int{1, 2, 3}, MaxParallel: 2, Rule: string(types.RuleAll)}
	res := x.Execute(context.Background(), group)

	if !res.Success {
		t.Fatalf("expected group success, got %+v", res)
	}
	if atomic.LoadInt32(&driver.peak) > 2 {
		t.Errorf("expected at most 2 concurrent members, observed peak %d", driver.peak)
	}
	for _, id := range []int{1, 2, 3} {
		if _, ok := store.Get(id); !ok {
			t.Errorf("expected member %d result to be visible in the store after the group", id)
		}
	}
}

func TestParallelExecutorRetryFailedSecondPass(t *testing.T) {
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLeaf, ExecType: "local", Command: "/bin/true", Timeout: 5},
	}
	store := resultstore.New()
	sub := condition.New(store, types.GlobalVars{})
	eval := condition.NewEvaluator(sub)
	registry := transport.NewRegistry()
	calls := 0
	registry.Register("local", &sequenceDriver{results: []types.TransportResult{{ExitCode: 1}, {ExitCode: 0}}, callCount: &calls})
	leaf := executor.New(registry, sub, eval, nil, nil)
	x := New(leaf, tasks, store, nil)

	group := &types.Task{ID: 100, Kind: types.KindParallel, Members: []int{1}, MaxParallel: 1, Rule: string(types.RuleAll), RetryFailed: true}
	res := x.Execute(context.Background(), group)

	if !res.Success {
		t.Fatalf("expected the retry_failed pass to recover member 1, got %+v", res)
	}
	if calls != 2 {
		t.Errorf("expected exactly 2 transport invocations across both waves, got %d", calls)
	}
}

type sequenceDriver struct {
	results   []types.TransportResult
	callCount *int
}

func (d *sequenceDriver) Run(ctx context.Context, hostname, command string, arguments []string, timeout time.Duration) (types.TransportResult, error) {
	i := *d.callCount
	if i >= len(d.results) {
		i = len(d.results) - 1
	}
	*d.callCount++
	return d.results[i], nil
}
