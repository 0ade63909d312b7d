// ABOUTME: Notification Sinks: best-effort completion alerts fired by the Workflow Driver
// ABOUTME: Adapted from the workflow engine's email/slack task executors into a driver-scoped hook

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskerd/tasker/pkg/types"
)

// Summary is the short completion report handed to a sink (§4.8): no
// task id, no retry, no routing field — notifications are not tasks.
type Summary struct {
	ExitCode      int
	FailedTask    int // 0 if the workflow ended without a failing task
	Duration      time.Duration
	CorrelationID string // unique per notification, for correlating a sink's delivery logs back to this run
}

// Sink delivers a Summary to some side channel. Sink failures are
// logged at WARN by the caller and never change the workflow's exit
// code.
type Sink interface {
	Notify(ctx context.Context, summary Summary) error
}

// Spec parses a notify_success / notify_failure value, e.g.
// "slack:https://hooks.slack.com/..." or "email:ops@example.com".
type Spec struct {
	Kind   string
	Target string
}

// ParseSpec splits "<kind>:<target>" into a Spec.
func ParseSpec(raw string) (Spec, error) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == ':' {
			return Spec{Kind: raw[:i], Target: raw[i+1:]}, nil
		}
	}
	return Spec{}, fmt.Errorf("notification spec %q must be of the form <kind>:<target>", raw)
}

// Dispatcher fires configured success/failure sinks when the driver
// reaches a terminal state.
type Dispatcher struct {
	OnSuccess Sink
	OnFailure Sink
	Logger    types.Logger
}

// Fire sends summary through OnSuccess or OnFailure depending on whether
// the workflow exit code indicates success (0). It never returns an
// error: failures are logged and swallowed.
func (d *Dispatcher) Fire(ctx context.Context, summary Summary) {
	var sink Sink
	if summary.ExitCode == 0 {
		sink = d.OnSuccess
	} else {
		sink = d.OnFailure
	}
	if sink == nil {
		return
	}
	if summary.CorrelationID == "" {
		summary.CorrelationID = uuid.NewString()
	}
	if err := sink.Notify(ctx, summary); err != nil && d.Logger != nil {
		d.Logger.Warn().Err(err).Str("correlation_id", summary.CorrelationID).Msg("notification sink failed")
	}
}
