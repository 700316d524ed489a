package jira

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatusGroups(t *testing.T) {
	tests := []struct {
		status  TaskStatus
		pending bool
		failed  bool
	}{
		{TaskEnqueued, true, false},
		{TaskRunning, true, false},
		{TaskComplete, false, false},
		{TaskFailed, false, true},
		{TaskCancelRequested, false, true},
		{TaskCancelled, false, true},
		{TaskDead, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.True(t, tt.status.Valid())
			assert.Equal(t, tt.pending, tt.status.Pending())
			assert.Equal(t, tt.failed, tt.status.Failed())
		})
	}
	assert.False(t, TaskStatus("PAUSED").Valid())
}

func TestParseTaskProgress(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *TaskProgress
		wantErr string
	}{
		{
			name: "enqueued",
			body: `{"self":"https://x/rest/api/3/task/1","id":"1","status":"ENQUEUED","progress":0}`,
			want: &TaskProgress{Self: "https://x/rest/api/3/task/1", ID: "1", Status: TaskEnqueued},
		},
		{
			name: "with message",
			body: `{"self":"s","id":"2","status":"DEAD","progress":12,"message":"worker lost","elapsedRuntime":5}`,
			want: &TaskProgress{Self: "s", ID: "2", Status: TaskDead, Progress: 12, Message: "worker lost"},
		},
		{name: "missing id", body: `{"self":"s","status":"RUNNING","progress":1}`, wantErr: "id: required"},
		{name: "missing progress", body: `{"self":"s","id":"1","status":"RUNNING"}`, wantErr: "progress: required"},
		{name: "unknown status", body: `{"self":"s","id":"1","status":"DONE","progress":1}`, wantErr: "unknown status"},
		{name: "not json", body: `<html>`, wantErr: "invalid task progress"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTaskProgress([]byte(tt.body))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseIssueIDPairs(t *testing.T) {
	got, err := ParseIssueIDPairs([]byte(`{"value":[["A-1",10001],["A-2",10002]],"meta":{}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"A-1": 10001, "A-2": 10002}, got)

	got, err = ParseIssueIDPairs([]byte(`{"value":[]}`))
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, bad := range []string{
		`{}`,
		`{"value":[["A-1"]]}`,
		`{"value":[[1,2]]}`,
		`{"value":[["A-1","10001"]]}`,
		`{"value":[["A-1",1.5]]}`,
	} {
		_, err := ParseIssueIDPairs([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestParseProjectPage(t *testing.T) {
	page, err := ParseProjectPage([]byte(`{"startAt":0,"maxResults":50,"total":1,"isLast":true,"values":[{"id":"10000","key":"SUP"}]}`))
	require.NoError(t, err)
	assert.True(t, page.IsLast)
	assert.Equal(t, []Project{{ID: "10000", Key: "SUP"}}, page.Values)

	_, err = ParseProjectPage([]byte(`{"total":0}`))
	assert.ErrorContains(t, err, "values: required")

	_, err = ParseProjectPage([]byte(`{"values":[{"key":"SUP"}]}`))
	assert.ErrorContains(t, err, "id and key are required")
}

func TestAPIErrorTruncatesBody(t *testing.T) {
	long := make([]byte, 2*maxErrorBodyInMessages)
	for i := range long {
		long[i] = 'x'
	}
	err := &APIError{Method: "GET", URL: "u", StatusCode: 500, Body: string(long)}
	assert.Contains(t, err.Error(), "jira API returned 500 for GET u")
	assert.Less(t, len(err.Error()), len(long))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&APIError{StatusCode: 429}))
	assert.True(t, isRetryable(&APIError{StatusCode: 500}))
	assert.True(t, isRetryable(&TransportError{}))
	assert.False(t, isRetryable(&APIError{StatusCode: 404}))
	assert.False(t, isRetryable(assert.AnError))
}
