// Package client talks to the stepflow HTTP API and implements editor.Store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/stepflow/pkg/editor"
	"github.com/dukex/stepflow/pkg/models"
)

const defaultTimeout = 30 * time.Second

// ErrServer is wrapped by retried 5xx responses.
var ErrServer = errors.New("server error during HTTP request")

// RetryConfig defines retry behavior for idempotent requests.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// WorkflowClient is an editor.Store over the workflow routes of the API.
type WorkflowClient struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
	logger     *slog.Logger
}

var _ editor.Store = (*WorkflowClient)(nil)

type Option func(*WorkflowClient)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *WorkflowClient) {
		c.httpClient = httpClient
	}
}

func WithRetry(retry RetryConfig) Option {
	return func(c *WorkflowClient) {
		if retry.Attempts < 1 {
			retry.Attempts = 1
		}

		c.retry = retry
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *WorkflowClient) {
		c.logger = logger.With("module", "workflow_client")
	}
}

func NewWorkflowClient(baseURL string, opts ...Option) *WorkflowClient {
	c := &WorkflowClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		retry:      RetryConfig{Attempts: 1},
		logger:     slog.Default().With("module", "workflow_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *WorkflowClient) Get(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document

	err := c.do(ctx, http.MethodGet, "/workflows/"+url.PathEscape(id), nil, http.StatusOK, &doc)
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

func (c *WorkflowClient) Create(ctx context.Context, doc models.Document) (*models.Document, error) {
	var created models.Document

	err := c.do(ctx, http.MethodPost, "/workflows", doc, http.StatusCreated, &created)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (c *WorkflowClient) Update(ctx context.Context, id string, doc models.Document) (*models.Document, error) {
	var updated models.Document

	err := c.do(ctx, http.MethodPut, "/workflows/"+url.PathEscape(id), doc, http.StatusOK, &updated)
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

func (c *WorkflowClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/workflows/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

func (c *WorkflowClient) Publish(ctx context.Context, id string) (*models.Document, error) {
	var published models.Document

	err := c.do(ctx, http.MethodPost, "/workflows/"+url.PathEscape(id)+"/publish", nil, http.StatusOK, &published)
	if err != nil {
		return nil, err
	}

	return &published, nil
}

// do sends one request, retrying idempotent methods on transport errors and
// 5xx responses, and decodes the body into out on the expected status.
func (c *WorkflowClient) do(ctx context.Context, method, path string, in any, expected int, out any) error {
	var payload []byte

	if in != nil {
		var err error

		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	attempts := 1
	if method == http.MethodGet || method == http.MethodPut || method == http.MethodDelete {
		attempts = c.retry.Attempts
	}

	var (
		lastErr error
		resp    *http.Response
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.logger.InfoContext(ctx, "Retrying request", "method", method, "path", path, "attempt", attempt)

			if err := sleep(ctx, c.retry.Delay); err != nil {
				return err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create http request: %w", err)
		}

		req.Header.Set("Accept", "application/json")

		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request failed: %w", err)
			resp = nil

			continue
		}

		if resp.StatusCode >= http.StatusInternalServerError && attempt < attempts {
			_ = resp.Body.Close()

			lastErr = fmt.Errorf("status %d: %w", resp.StatusCode, ErrServer)
			resp = nil

			continue
		}

		break
	}

	if resp == nil {
		return fmt.Errorf("all retry attempts failed, last error: %w", lastErr)
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != expected {
		return newError(resp.StatusCode, body)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
