// Package asynctask drives a Jira background task to a terminal state.
//
// A bulk write returns a task handle instead of a result. Confirm polls the
// task at a fixed interval until it is COMPLETE, fails with FailedError when
// the task ends in the failure group (FAILED, CANCEL_REQUESTED, CANCELLED,
// DEAD), or returns the error of a status check. There is no retry limit and
// no timeout: polling only stops at a terminal state, a failed status check,
// or context cancellation.
package asynctask

import (
	"context"
	"fmt"
	"time"

	"github.com/toolsplus/ifj-migrate/internal/jira"
)

// DefaultInterval is the delay between two status checks.
const DefaultInterval = 2 * time.Second

// StatusFunc fetches the current state of a task.
type StatusFunc func(ctx context.Context, taskID string) (*jira.TaskProgress, error)

// FailedError reports a task that reached a failure state.
type FailedError struct {
	TaskID   string
	Status   jira.TaskStatus
	Progress int64
	Message  string
}

func (e *FailedError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "-"
	}
	return fmt.Sprintf("task %s status %s, progress %d%%, message: %s", e.TaskID, e.Status, e.Progress, msg)
}

// Confirmer polls task status.
type Confirmer struct {
	Fetch    StatusFunc
	Interval time.Duration

	// Sleep waits between polls; tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnProgress observes every handle, including the initial one.
	OnProgress func(tp *jira.TaskProgress)
}

// New returns a Confirmer polling through fetch every DefaultInterval.
func New(fetch StatusFunc) *Confirmer {
	return &Confirmer{Fetch: fetch, Interval: DefaultInterval}
}

// Result describes a confirmed task.
type Result struct {
	Final *jira.TaskProgress
	Polls int // status checks performed after the initial handle
}

// Confirm drives initial to a terminal state.
func (c *Confirmer) Confirm(ctx context.Context, initial *jira.TaskProgress) (Result, error) {
	if initial == nil {
		return Result{}, fmt.Errorf("confirm task: no task handle")
	}
	if c.Fetch == nil {
		return Result{}, fmt.Errorf("confirm task %s: no status function", initial.ID)
	}

	interval := c.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	tp := initial
	polls := 0
	for {
		if c.OnProgress != nil {
			c.OnProgress(tp)
		}

		switch {
		case tp.Status == jira.TaskComplete:
			return Result{Final: tp, Polls: polls}, nil

		case tp.Status.Pending():
			if err := sleep(ctx, interval); err != nil {
				return Result{Final: tp, Polls: polls}, fmt.Errorf("wait for task %s: %w", tp.ID, err)
			}
			next, err := c.Fetch(ctx, tp.ID)
			polls++
			if err != nil {
				return Result{Final: tp, Polls: polls}, fmt.Errorf("failed to check status of task with id %s: %w", tp.ID, err)
			}
			if next == nil {
				return Result{Final: tp, Polls: polls}, fmt.Errorf("failed to check status of task with id %s: empty response", tp.ID)
			}
			tp = next

		case tp.Status.Failed():
			return Result{Final: tp, Polls: polls}, &FailedError{
				TaskID:   tp.ID,
				Status:   tp.Status,
				Progress: tp.Progress,
				Message:  tp.Message,
			}

		default:
			return Result{Final: tp, Polls: polls}, fmt.Errorf("task %s has unknown status %q", tp.ID, tp.Status)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
