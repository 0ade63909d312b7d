package notify

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubSink struct {
	calls   int
	summary Summary
	err     error
}

func (s *stubSink) Notify(ctx context.Context, summary Summary) error {
	s.calls++
	s.summary = summary
	return s.err
}

func TestParseSpecSplitsKindAndTarget(t *testing.T) {
	spec, err := ParseSpec("slack:https://hooks.slack.com/services/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Kind != "slack" || spec.Target != "https://hooks.slack.com/services/x" {
		t.Errorf("got %+v", spec)
	}
}

func TestParseSpecSplitsEmailKindAndTarget(t *testing.T) {
	spec, err := ParseSpec("email:ops@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Kind != "email" || spec.Target != "ops@example.com" {
		t.Errorf("got %+v", spec)
	}
}

func TestParseSpecRejectsMissingColon(t *testing.T) {
	if _, err := ParseSpec("slack-only"); err == nil {
		t.Errorf("expected an error for a spec with no colon")
	}
}

func TestDispatcherFiresOnSuccessSinkForExitZero(t *testing.T) {
	success := &stubSink{}
	failure := &stubSink{}
	d := &Dispatcher{OnSuccess: success, OnFailure: failure}

	d.Fire(context.Background(), Summary{ExitCode: 0, Duration: time.Second})

	if success.calls != 1 {
		t.Errorf("expected OnSuccess to be called once, got %d", success.calls)
	}
	if failure.calls != 0 {
		t.Errorf("expected OnFailure not to be called, got %d", failure.calls)
	}
}

func TestDispatcherFiresOnFailureSinkForNonzeroExit(t *testing.T) {
	success := &stubSink{}
	failure := &stubSink{}
	d := &Dispatcher{OnSuccess: success, OnFailure: failure}

	d.Fire(context.Background(), Summary{ExitCode: 10, FailedTask: 3, Duration: time.Second})

	if failure.calls != 1 {
		t.Errorf("expected OnFailure to be called once, got %d", failure.calls)
	}
	if success.calls != 0 {
		t.Errorf("expected OnSuccess not to be called, got %d", success.calls)
	}
	if failure.summary.FailedTask != 3 {
		t.Errorf("expected failed task 3 to reach the sink, got %d", failure.summary.FailedTask)
	}
}

func TestDispatcherFireIsNoopWhenSinkIsNil(t *testing.T) {
	d := &Dispatcher{}
	d.Fire(context.Background(), Summary{ExitCode: 0})
	d.Fire(context.Background(), Summary{ExitCode: 1})
}

func TestDispatcherSwallowsSinkErrors(t *testing.T) {
	failure := &stubSink{err: errors.New("webhook unreachable")}
	d := &Dispatcher{OnFailure: failure}

	d.Fire(context.Background(), Summary{ExitCode: 1})

	if failure.calls != 1 {
		t.Errorf("expected the sink to still be invoked, got %d calls", failure.calls)
	}
}

func TestDispatcherAssignsCorrelationIDWhenUnset(t *testing.T) {
	success := &stubSink{}
	d := &Dispatcher{OnSuccess: success}

	d.Fire(context.Background(), Summary{ExitCode: 0})

	if success.summary.CorrelationID == "" {
		t.Errorf("expected Fire to assign a correlation id when the caller left one unset")
	}
}

func TestDispatcherPreservesProvidedCorrelationID(t *testing.T) {
	success := &stubSink{}
	d := &Dispatcher{OnSuccess: success}

	d.Fire(context.Background(), Summary{ExitCode: 0, CorrelationID: "fixed-id"})

	if success.summary.CorrelationID != "fixed-id" {
		t.Errorf("expected the caller-supplied correlation id to be preserved, got %q", success.summary.CorrelationID)
	}
}
