// Package importer writes reconciled app properties to the target instance.
//
// Issue properties go through the bulk endpoint in chunks of up to 100
// issues. Each chunk is accepted by Jira as a background task, and the task
// is confirmed complete before the next chunk is sent. Project properties are
// written one project at a time through the synchronous property endpoint.
// Every failure is fatal to the run.
package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/toolsplus/ifj-migrate/internal/asynctask"
	"github.com/toolsplus/ifj-migrate/internal/chunk"
	"github.com/toolsplus/ifj-migrate/internal/debug"
	"github.com/toolsplus/ifj-migrate/internal/jira"
	"github.com/toolsplus/ifj-migrate/internal/payload"
	"github.com/toolsplus/ifj-migrate/internal/reconcile"
	"github.com/toolsplus/ifj-migrate/internal/telemetry"
)

// IssuePropertyChunkSize is the bulk issue property endpoint's entity limit.
const IssuePropertyChunkSize = 100

// IssueAPI is the part of the Jira API the issue importer needs.
type IssueAPI interface {
	SetIssueProperties(ctx context.Context, updates []jira.IssuePropertyUpdate) (*jira.TaskProgress, error)
	GetTask(ctx context.Context, taskID string) (*jira.TaskProgress, error)
}

// ProjectAPI is the part of the Jira API the project importer needs.
type ProjectAPI interface {
	SetProjectProperty(ctx context.Context, projectID int64, propertyKey string, value any) error
}

// Event is a progress notification. It is observational only.
type Event struct {
	Position chunk.Position
	Task     *jira.TaskProgress
	Done     bool
}

// IssueImporter imports conversation link issue properties.
type IssueImporter struct {
	API       IssueAPI
	ChunkSize int

	// PollInterval and Sleep configure task confirmation; zero values use
	// the asynctask defaults.
	PollInterval time.Duration
	Sleep        func(ctx context.Context, d time.Duration) error

	// OnEvent receives progress for every observed task state.
	OnEvent func(Event)

	// Counters records batches and polls; nil uses the global meter.
	Counters *telemetry.Counters
}

// IssueStats summarises an issue import.
type IssueStats struct {
	Issues  int
	Batches int
	Polls   int
}

// Import writes every entry, one confirmed chunk at a time.
func (im *IssueImporter) Import(ctx context.Context, entries []reconcile.Entry[payload.ConversationLinks]) (IssueStats, error) {
	var stats IssueStats

	size := im.ChunkSize
	if size <= 0 {
		size = IssuePropertyChunkSize
	}

	updates := make([]jira.IssuePropertyUpdate, len(entries))
	for i, e := range entries {
		updates[i] = jira.IssuePropertyUpdate{
			IssueID:    e.TargetID,
			Properties: e.Payload.IssueProperties(),
		}
	}

	write := func(ctx context.Context, c []jira.IssuePropertyUpdate, pos chunk.Position) (*jira.TaskProgress, error) {
		debug.Logf("importer: sending issue property chunk %s (%d issues)\n", pos, len(c))
		tp, err := im.API.SetIssueProperties(ctx, c)
		if err != nil {
			if isClientError(err) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to import issue property chunk %s: %w", pos, err)
		}
		return tp, nil
	}

	for batch, err := range chunk.Do(ctx, updates, size, write) {
		if err != nil {
			return stats, err
		}
		pos := batch.Position

		_, phase := telemetry.StartPhase(ctx, "import.issues.batch",
			attribute.Int("ifj.chunk", pos.Ordinal()+1),
			attribute.Int("ifj.chunks", pos.Total()),
			attribute.String("ifj.task", batch.Result.ID))

		confirmer := asynctask.New(im.API.GetTask)
		if im.PollInterval > 0 {
			confirmer.Interval = im.PollInterval
		}
		confirmer.Sleep = im.Sleep
		confirmer.OnProgress = func(tp *jira.TaskProgress) {
			if im.OnEvent != nil && tp.Status.Pending() {
				im.OnEvent(Event{Position: pos, Task: tp})
			}
		}

		res, err := confirmer.Confirm(ctx, batch.Result)
		stats.Polls += res.Polls
		im.Counters.TasksPolled(ctx, res.Polls)
		phase.End(err)
		if err != nil {
			debug.LogEvent("ISSUE_CHUNK_FAILED", "chunk-"+pos.String(), err.Error())
			return stats, fmt.Errorf("failed to import issue property chunk %s: %w", pos, err)
		}

		stats.Batches++
		im.Counters.BatchImported(ctx, "issue")
		stats.Issues += min(pos.Size, len(updates)-pos.Index)
		debug.LogEvent("ISSUE_CHUNK_COMPLETE", "chunk-"+pos.String(), fmt.Sprintf("task %s after %d polls", res.Final.ID, res.Polls))
		if im.OnEvent != nil {
			im.OnEvent(Event{Position: pos, Task: res.Final, Done: true})
		}
	}

	return stats, nil
}

// ProjectImporter imports connection configuration project properties.
type ProjectImporter struct {
	API ProjectAPI

	// OnProject is called after each project property is written.
	OnProject func(index, total int, projectID int64)
}

// Import writes each entry in order and stops at the first failure.
func (im *ProjectImporter) Import(ctx context.Context, entries []reconcile.Entry[payload.ConnectionConfiguration]) (int, error) {
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := im.API.SetProjectProperty(ctx, e.TargetID, payload.ConnectionConfigurationPropertyKey, e.Payload); err != nil {
			debug.LogEvent("PROJECT_PROPERTY_FAILED", fmt.Sprint(e.TargetID), err.Error())
			return i, fmt.Errorf("failed to import connection configuration project property for project %d: %w", e.TargetID, err)
		}
		debug.LogEvent("PROJECT_PROPERTY_COMPLETE", fmt.Sprint(e.TargetID), e.Key)
		if im.OnProject != nil {
			im.OnProject(i, len(entries), e.TargetID)
		}
	}
	return len(entries), nil
}

// isClientError reports a non-retryable 4xx rejection, which is surfaced
// unwrapped.
func isClientError(err error) bool {
	var apiErr *jira.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
}
