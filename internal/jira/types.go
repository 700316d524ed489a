// Package jira provides client, types, and response validation for the Jira
// Cloud REST API endpoints used by the migration.
package jira

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/toolsplus/ifj-migrate/internal/payload"
)

// TaskStatus is the state of a Jira background task.
type TaskStatus string

const (
	TaskEnqueued        TaskStatus = "ENQUEUED"
	TaskRunning         TaskStatus = "RUNNING"
	TaskComplete        TaskStatus = "COMPLETE"
	TaskFailed          TaskStatus = "FAILED"
	TaskCancelRequested TaskStatus = "CANCEL_REQUESTED"
	TaskCancelled       TaskStatus = "CANCELLED"
	TaskDead            TaskStatus = "DEAD"
)

// Valid reports whether s is one of the known task states.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskEnqueued, TaskRunning, TaskComplete, TaskFailed, TaskCancelRequested, TaskCancelled, TaskDead:
		return true
	}
	return false
}

// Pending reports whether the task has not reached a terminal state yet.
func (s TaskStatus) Pending() bool {
	return s == TaskEnqueued || s == TaskRunning
}

// Failed reports whether s belongs to the terminal failure group.
func (s TaskStatus) Failed() bool {
	switch s {
	case TaskFailed, TaskCancelRequested, TaskCancelled, TaskDead:
		return true
	}
	return false
}

// TaskProgress is a handle to a Jira background task. It is only ever read by
// the client; Jira owns its state.
type TaskProgress struct {
	Self     string     `json:"self"`
	ID       string     `json:"id"`
	Status   TaskStatus `json:"status"`
	Progress int64      `json:"progress"`
	Message  string     `json:"message,omitempty"`
}

type taskProgressWire struct {
	Self     *string  `json:"self"`
	ID       *string  `json:"id"`
	Status   *string  `json:"status"`
	Progress *float64 `json:"progress"`
	Message  *string  `json:"message"`
}

// ParseTaskProgress validates a task progress response body.
func ParseTaskProgress(body []byte) (*TaskProgress, error) {
	const kind = "task progress"

	var w taskProgressWire
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &payload.ValidationError{Kind: kind, Reason: err.Error()}
	}
	switch {
	case w.Self == nil:
		return nil, &payload.ValidationError{Kind: kind, Field: "self", Reason: "required"}
	case w.ID == nil:
		return nil, &payload.ValidationError{Kind: kind, Field: "id", Reason: "required"}
	case w.Status == nil:
		return nil, &payload.ValidationError{Kind: kind, Field: "status", Reason: "required"}
	case !TaskStatus(*w.Status).Valid():
		return nil, &payload.ValidationError{Kind: kind, Field: "status", Reason: fmt.Sprintf("unknown status %q", *w.Status)}
	case w.Progress == nil:
		return nil, &payload.ValidationError{Kind: kind, Field: "progress", Reason: "required"}
	}

	tp := &TaskProgress{
		Self:     *w.Self,
		ID:       *w.ID,
		Status:   TaskStatus(*w.Status),
		Progress: int64(*w.Progress),
	}
	if w.Message != nil {
		tp.Message = *w.Message
	}
	return tp, nil
}

// ExpressionRequest is the body of POST /rest/api/3/expression/eval.
type ExpressionRequest struct {
	Expression string            `json:"expression"`
	Context    ExpressionContext `json:"context"`
}

// ExpressionContext supplies context variables to an expression.
type ExpressionContext struct {
	Issues *ExpressionIssues `json:"issues,omitempty"`
}

// ExpressionIssues selects the issues bound to the "issues" variable.
type ExpressionIssues struct {
	JQL *ExpressionJQL `json:"jql,omitempty"`
}

// ExpressionJQL is a JQL query used as expression context.
type ExpressionJQL struct {
	Query string `json:"query"`
}

// ParseIssueIDPairs validates an expression result of [key, id] pairs.
func ParseIssueIDPairs(body []byte) (map[string]int64, error) {
	const kind = "issue id expression result"

	var w struct {
		Value *[]json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &payload.ValidationError{Kind: kind, Reason: err.Error()}
	}
	if w.Value == nil {
		return nil, &payload.ValidationError{Kind: kind, Field: "value", Reason: "required"}
	}

	out := make(map[string]int64, len(*w.Value))
	for i, raw := range *w.Value {
		var pair []json.RawMessage
		if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
			return nil, &payload.ValidationError{Kind: kind, Field: fmt.Sprintf("value[%d]", i), Reason: "expected [key, id] pair"}
		}
		var key string
		if err := json.Unmarshal(pair[0], &key); err != nil {
			return nil, &payload.ValidationError{Kind: kind, Field: fmt.Sprintf("value[%d][0]", i), Reason: "expected string key"}
		}
		var num json.Number
		if err := json.Unmarshal(pair[1], &num); err != nil {
			return nil, &payload.ValidationError{Kind: kind, Field: fmt.Sprintf("value[%d][1]", i), Reason: "expected numeric id"}
		}
		id, err := num.Int64()
		if err != nil {
			return nil, &payload.ValidationError{Kind: kind, Field: fmt.Sprintf("value[%d][1]", i), Reason: "expected integer id"}
		}
		out[key] = id
	}
	return out, nil
}

// Project is a project entry in a project search page.
type Project struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// ProjectPage is a page of GET /rest/api/3/project/search.
type ProjectPage struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	IsLast     bool      `json:"isLast"`
	Values     []Project `json:"values"`
}

// ParseProjectPage validates a project search response.
func ParseProjectPage(body []byte) (*ProjectPage, error) {
	const kind = "project search result"

	var page struct {
		ProjectPage
		Values *[]struct {
			ID  *string `json:"id"`
			Key *string `json:"key"`
		} `json:"values"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &payload.ValidationError{Kind: kind, Reason: err.Error()}
	}
	if page.Values == nil {
		return nil, &payload.ValidationError{Kind: kind, Field: "values", Reason: "required"}
	}

	out := page.ProjectPage
	out.Values = make([]Project, 0, len(*page.Values))
	for i, v := range *page.Values {
		if v.ID == nil || v.Key == nil {
			return nil, &payload.ValidationError{Kind: kind, Field: fmt.Sprintf("values[%d]", i), Reason: "id and key are required"}
		}
		out.Values = append(out.Values, Project{ID: *v.ID, Key: *v.Key})
	}
	return &out, nil
}

// IssuePropertyUpdate sets named properties on one issue.
type IssuePropertyUpdate struct {
	IssueID    int64          `json:"issueID"`
	Properties map[string]any `json:"properties"`
}

// BulkIssuePropertyRequest is the body of POST /rest/api/3/issue/properties/multi.
type BulkIssuePropertyRequest struct {
	Issues []IssuePropertyUpdate `json:"issues"`
}

// APIError is a non-2xx response from Jira.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > maxErrorBodyInMessages {
		body = body[:maxErrorBodyInMessages] + "..."
	}
	return fmt.Sprintf("jira API returned %d for %s %s: %s", e.StatusCode, e.Method, e.URL, body)
}

// TransportError is a request that never produced an HTTP response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// isRetryable reports whether err is worth another attempt.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	var tErr *TransportError
	return errors.As(err, &tErr)
}
