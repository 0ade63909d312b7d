package driver

import (
	"context"
	"testing"

	"github.com/taskerd/tasker/internal/notify"
	"github.com/taskerd/tasker/pkg/types"
)

type recordingSink struct {
	calls   int
	summary notify.Summary
}

func (s *recordingSink) Notify(ctx context.Context, summary notify.Summary) error {
	s.calls++
	s.summary = summary
	return nil
}

func TestDriverFiresOnSuccessNotifierAtEnd(t *testing.T) {
	td := newScriptedDriver().on("/bin/true", types.TransportResult{ExitCode: 0})
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLeaf, ExecType: "local", Command: "/bin/true", Timeout: 5},
	}
	d, _ := newTestDriver(tasks, td)

	onSuccess := &recordingSink{}
	onFailure := &recordingSink{}
	d.SetNotifier(&notify.Dispatcher{OnSuccess: onSuccess, OnFailure: onFailure})

	code := d.Run(1)
	if code != ExitSuccess {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if onSuccess.calls != 1 {
		t.Errorf("expected OnSuccess fired once, got %d", onSuccess.calls)
	}
	if onFailure.calls != 0 {
		t.Errorf("expected OnFailure not fired, got %d", onFailure.calls)
	}
	if onSuccess.summary.FailedTask != 0 {
		t.Errorf("expected FailedTask=0 on a successful run, got %d", onSuccess.summary.FailedTask)
	}
}

func TestDriverFiresOnFailureNotifierWithFailedTaskID(t *testing.T) {
	td := newScriptedDriver().on("/bin/false", types.TransportResult{ExitCode: 1})
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLeaf, ExecType: "local", Command: "/bin/false", Timeout: 5},
	}
	d, _ := newTestDriver(tasks, td)

	onFailure := &recordingSink{}
	d.SetNotifier(&notify.Dispatcher{OnFailure: onFailure})

	code := d.Run(1)
	if code == ExitSuccess {
		t.Fatalf("expected a nonzero exit code, got %d", code)
	}
	if onFailure.calls != 1 {
		t.Fatalf("expected OnFailure fired once, got %d", onFailure.calls)
	}
	if onFailure.summary.FailedTask != 1 {
		t.Errorf("expected FailedTask=1, got %d", onFailure.summary.FailedTask)
	}
}

func TestDriverWithoutNotifierDoesNotPanic(t *testing.T) {
	td := newScriptedDriver().on("/bin/true", types.TransportResult{ExitCode: 0})
	tasks := map[int]*types.Task{
		1: {ID: 1, Kind: types.KindLeaf, ExecType: "local", Command: "/bin/true", Timeout: 5},
	}
	d, _ := newTestDriver(tasks, td)

	if code := d.Run(1); code != ExitSuccess {
		t.Errorf("expected exit 0, got %d", code)
	}
}
