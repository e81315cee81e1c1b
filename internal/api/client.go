package api

import (
	"bytes"
	"context"
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
	"github.com/google/uuid"

	"github.com/runforge/runctl/internal/schemas"
	"github.com/runforge/runctl/internal/types"
)

// MaxPageSize is the upstream API's hard ceiling on events-page size.
const MaxPageSize = 100

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 30 * time.Second

// defaultMaxRetries bounds retry attempts for idempotent GET requests.
const defaultMaxRetries = 3

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the upstream API (e.g. "http://localhost:8288").
	BaseURL string

	// Token is the bearer token sent with every request. Empty for the
	// dev server, which skips authentication.
	Token string

	// HTTPClient is an optional custom HTTP client. If nil, a default
	// client with DefaultTimeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// Client is an HTTP client for the run-execution API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  httpClient,
	}, nil
}

// GetRun fetches a single run by its canonical ID.
func (c *Client) GetRun(ctx context.Context, runID string) (*types.Run, error) {
	data, err := c.get(ctx, "/v1/runs/"+url.PathEscape(runID), nil)
	if err != nil {
		return nil, err
	}
	return schemas.DecodeRun(data)
}

// ListEventsOpts are the parameters of the events listing endpoint.
type ListEventsOpts struct {
	Limit          int
	Cursor         string
	Name           string
	ReceivedAfter  time.Time
	ReceivedBefore time.Time
}

// ListEvents fetches one page of the event listing. Limit is clamped to
// MaxPageSize; zero means the upstream default.
func (c *Client) ListEvents(ctx context.Context, opts ListEventsOpts) (*types.EventsPage, error) {
	params := url.Values{}
	if opts.Limit > MaxPageSize {
		opts.Limit = MaxPageSize
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		params.Set("cursor", opts.Cursor)
	}
	if opts.Name != "" {
		params.Set("name", opts.Name)
	}
	if !opts.ReceivedAfter.IsZero() {
		params.Set("received_after", opts.ReceivedAfter.UTC().Format(time.RFC3339))
	}
	if !opts.ReceivedBefore.IsZero() {
		params.Set("received_before", opts.ReceivedBefore.UTC().Format(time.RFC3339))
	}

	data, err := c.get(ctx, "/v1/events", params)
	if err != nil {
		return nil, err
	}
	return schemas.DecodeEventsPage(data)
}

// GetEvent fetches a single event by ID.
func (c *Client) GetEvent(ctx context.Context, eventID string) (*types.Event, error) {
	data, err := c.get(ctx, "/v1/events/"+url.PathEscape(eventID), nil)
	if err != nil {
		return nil, err
	}
	return schemas.DecodeEvent(data)
}

// GetEventRuns fetches every run triggered by the given event.
func (c *Client) GetEventRuns(ctx context.Context, eventID string) ([]types.Run, error) {
	data, err := c.get(ctx, "/v1/events/"+url.PathEscape(eventID)+"/runs", nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding event runs: %w", err)
	}

	runs := make([]types.Run, 0, len(envelope.Data))
	for _, raw := range envelope.Data {
		run, err := schemas.DecodeRun(raw)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// ListJobs fetches the steps of a run, in execution order.
func (c *Client) ListJobs(ctx context.Context, runID string) ([]types.Job, error) {
	data, err := c.get(ctx, "/v1/runs/"+url.PathEscape(runID)+"/jobs", nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding jobs: %w", err)
	}

	jobs := make([]types.Job, 0, len(envelope.Data))
	for _, raw := range envelope.Data {
		job, err := schemas.DecodeJob(raw)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

// CancelRun requests cancellation of a single run. The transition is
// asynchronous; the server acknowledges before the run reaches Cancelled.
func (c *Client) CancelRun(ctx context.Context, runID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/v1/runs/"+url.PathEscape(runID), nil, nil)
	return err
}

// CancellationRequest targets a set of runs for bulk cancellation.
type CancellationRequest struct {
	FunctionID    string     `json:"function_id"`
	StartedAfter  *time.Time `json:"started_after,omitempty"`
	StartedBefore *time.Time `json:"started_before,omitempty"`
}

// CreateCancellation submits a bulk cancellation. The returned record's
// status is polled separately via GetCancellation.
func (c *Client) CreateCancellation(ctx context.Context, req CancellationRequest) (*types.Cancellation, error) {
	data, err := c.do(ctx, http.MethodPost, "/v1/cancellations", nil, req)
	if err != nil {
		return nil, err
	}
	return schemas.DecodeCancellation(data)
}

// GetCancellation fetches the status of a bulk cancellation.
func (c *Client) GetCancellation(ctx context.Context, cancellationID string) (*types.Cancellation, error) {
	data, err := c.get(ctx, "/v1/cancellations/"+url.PathEscape(cancellationID), nil)
	if err != nil {
		return nil, err
	}
	return schemas.DecodeCancellation(data)
}

// get issues a GET with retry. Reads are idempotent-safe, so transient
// failures (network errors and 5xx) are retried with capped exponential
// backoff; 4xx responses are permanent.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	op := func() ([]byte, error) {
		data, err := c.do(ctx, http.MethodGet, path, params, nil)
		if err != nil {
			var apiErr *Error
			if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return data, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	return backoff.RetryWithData(op, backoff.WithContext(backoff.WithMaxRetries(bo, defaultMaxRetries), ctx))
}

// do issues a single HTTP request and returns the response body, or an
// *Error for non-2xx responses.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp.StatusCode, data)
	}
	return data, nil
}

// decodeError maps an error response body to an *Error, tolerating
// non-JSON bodies.
func decodeError(statusCode int, body []byte) *Error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &Error{StatusCode: statusCode, Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	return &Error{
		StatusCode: statusCode,
		Code:       "unexpected_status",
		Message:    strings.TrimSpace(string(body)),
	}
}
