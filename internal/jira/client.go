package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/toolsplus/ifj-migrate/internal/debug"
	"github.com/toolsplus/ifj-migrate/internal/telemetry"
)

// Default transport settings.
const (
	DefaultMaxRetries      = 3
	DefaultRetryInterval   = time.Second
	DefaultRequestTimeout  = 30 * time.Second
	issueIDExpression      = "issues.map(i => [i.key, i.id])"
	userAgent              = "ifj-migrate/1.0"
	maxErrorBodyInMessages = 512
)

// Client provides HTTP access to a Jira Cloud instance.
//
// Transient failures (network errors, 429 and 5xx responses) are retried up
// to MaxRetries times with exponential backoff. Other 4xx responses are
// returned immediately as *APIError.
type Client struct {
	URL        string
	Username   string
	APIToken   string
	HTTPClient *http.Client

	MaxRetries    int
	RetryInterval time.Duration

	// Limiter, when set, throttles every request attempt.
	Limiter *rate.Limiter

	requests metric.Int64Counter
	retries  metric.Int64Counter
}

// NewClient creates a new Jira client.
func NewClient(url, username, apiToken string) *Client {
	m := telemetry.Meter("github.com/toolsplus/ifj-migrate/jira")
	requests, _ := m.Int64Counter("ifj.jira.requests",
		metric.WithDescription("Jira API requests by method and response status"))
	retries, _ := m.Int64Counter("ifj.jira.retries",
		metric.WithDescription("Jira API request attempts that were retried"))

	return &Client{
		URL:      strings.TrimSuffix(url, "/"),
		Username: username,
		APIToken: apiToken,
		HTTPClient: &http.Client{
			Timeout: DefaultRequestTimeout,
		},
		MaxRetries:    DefaultMaxRetries,
		RetryInterval: DefaultRetryInterval,
		requests:      requests,
		retries:       retries,
	}
}

// WithHTTPClient returns the client using a custom HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.HTTPClient = hc
	return c
}

// WithRateLimit throttles requests to perSecond. Zero or less disables it.
func (c *Client) WithRateLimit(perSecond float64) *Client {
	if perSecond <= 0 {
		c.Limiter = nil
		return c
	}
	c.Limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	return c
}

// ResolveIssueIDs maps issue keys to numeric issue ids using the Jira
// expression API. Keys Jira cannot find are absent from the result.
func (c *Client) ResolveIssueIDs(ctx context.Context, keys []string) (map[string]int64, error) {
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}
	for _, k := range keys {
		if !IsIssueKey(k) {
			return nil, fmt.Errorf("resolve issue ids: malformed issue key %q", k)
		}
	}

	req := ExpressionRequest{
		Expression: issueIDExpression,
		Context: ExpressionContext{
			Issues: &ExpressionIssues{
				JQL: &ExpressionJQL{Query: "issue IN (" + strings.Join(keys, ",") + ")"},
			},
		},
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal expression request: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, c.URL+"/rest/api/3/expression/eval", data)
	if err != nil {
		return nil, fmt.Errorf("evaluate issue id expression: %w", err)
	}

	return ParseIssueIDPairs(body)
}

// SearchProjects returns one page of projects filtered by key.
func (c *Client) SearchProjects(ctx context.Context, keys []string, startAt, maxResults int) ([]Project, error) {
	params := url.Values{}
	for _, k := range keys {
		if !IsProjectKey(k) {
			return nil, fmt.Errorf("search projects: malformed project key %q", k)
		}
		params.Add("keys", k)
	}
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))

	apiURL := fmt.Sprintf("%s/rest/api/3/project/search?%s", c.URL, params.Encode())

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("search projects: %w", err)
	}

	page, err := ParseProjectPage(body)
	if err != nil {
		return nil, err
	}
	return page.Values, nil
}

// SetIssueProperties bulk-sets entity properties on up to 100 issues. Jira
// processes the update in a background task; the returned handle is the
// task's initial state.
func (c *Client) SetIssueProperties(ctx context.Context, updates []IssuePropertyUpdate) (*TaskProgress, error) {
	data, err := json.Marshal(BulkIssuePropertyRequest{Issues: updates})
	if err != nil {
		return nil, fmt.Errorf("marshal bulk issue property request: %w", err)
	}

	body, err := c.doRequest(ctx, http.MethodPost, c.URL+"/rest/api/3/issue/properties/multi", data)
	if err != nil {
		return nil, err
	}

	return ParseTaskProgress(body)
}

// GetTask fetches the current state of a background task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*TaskProgress, error) {
	apiURL := fmt.Sprintf("%s/rest/api/3/task/%s", c.URL, url.PathEscape(taskID))

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}

	return ParseTaskProgress(body)
}

// SetProjectProperty overwrites one entity property of a project.
func (c *Client) SetProjectProperty(ctx context.Context, projectID int64, propertyKey string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal project property %s: %w", propertyKey, err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/project/%d/properties/%s", c.URL, projectID, url.PathEscape(propertyKey))

	if _, err := c.doRequest(ctx, http.MethodPut, apiURL, data); err != nil {
		return fmt.Errorf("set project %d property %s: %w", projectID, propertyKey, err)
	}
	return nil
}

// newBackOff returns a fresh retry policy; BackOff values are stateful.
func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	if c.RetryInterval > 0 {
		bo.InitialInterval = c.RetryInterval
	}
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(max(c.MaxRetries, 0))), ctx)
}

// doRequest executes an authenticated HTTP request, retrying transient
// failures, and returns the response body.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body []byte) ([]byte, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("jira URL not configured")
	}
	if c.APIToken == "" {
		return nil, fmt.Errorf("jira API token not configured")
	}

	var respBody []byte
	op := func() error {
		var err error
		respBody, err = c.attempt(ctx, method, apiURL, body)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.count(ctx, c.retries, method, 0)
		status := "n/a"
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			status = strconv.Itoa(apiErr.StatusCode)
		}
		debug.Logf("Request to %s failed with status %s: Retrying in %s...\n", apiURL, status, wait.Round(time.Millisecond))
	}

	if err := backoff.RetryNotify(op, c.newBackOff(ctx), notify); err != nil {
		return nil, err
	}
	return respBody, nil
}

func (c *Client) attempt(ctx context.Context, method, apiURL string, body []byte) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.count(ctx, c.requests, method, 0)
		return nil, &TransportError{Method: method, URL: apiURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	c.count(ctx, c.requests, method, resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: apiURL, Err: fmt.Errorf("read response: %w", err)}
	}

	// PUT returns 200/201 or 204 No Content on success
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Method:     method,
			URL:        apiURL,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	return respBody, nil
}

func (c *Client) count(ctx context.Context, counter metric.Int64Counter, method string, status int) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.Int("http.status_code", status),
	))
}

// setAuth sets the appropriate authentication header on the request.
func (c *Client) setAuth(req *http.Request) {
	if c.Username != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.APIToken))
		req.Header.Set("Authorization", "Basic "+auth)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.APIToken)
	}
}
