// Package robot implements the processing worker: the loop popping tasks
// off the queue, the invocation of the external record processor, and the
// authenticated callback client reporting outcomes back to the service.
package robot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
	"github.com/nmelnikov/contentflow/pkg/retry"
)

// StatusError is an HTTP response that arrived but signalled failure.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Reason)
}

// IsRetryable classifies callback failures for the retry policy. A
// server-side status means the channel may recover; a client-side status
// means the request itself is at fault and retrying cannot help. Anything
// that never produced a response (connection failure, timeout) is worth
// retrying.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= http.StatusInternalServerError
	}
	return true
}

// ClientConfig carries the fixed service credentials and endpoints of the
// callback client.
type ClientConfig struct {
	LoginURL  string
	ReportURL string
	Username  string
	Password  string
}

// Client delivers processing results to the reporting endpoint under a
// valid credential, transparently re-authenticating when the cached token
// is rejected. The token cache has a single writer: the client's own loop.
type Client struct {
	httpClient *http.Client
	config     ClientConfig
	policy     retry.Policy
	token      string
}

// ClientOption represents a functional option for configuring the client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryPolicy replaces the retry policy applied to outbound calls.
func WithRetryPolicy(policy retry.Policy) ClientOption {
	return func(c *Client) {
		c.policy = policy
	}
}

// NewClient creates a callback client with the default retry policy.
func NewClient(config ClientConfig, options ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		config:     config,
		policy:     retry.DefaultPolicy(IsRetryable),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Login exchanges the service credentials for a token and caches it.
// Without a credential the worker cannot proceed, so a failure here is
// final for the caller.
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.config.Username,
		"password": c.config.Password,
	})
	if err != nil {
		return fmt.Errorf("marshal login request: %w", err)
	}

	var token string
	err = c.policy.Do(ctx, func() error {
		resp, err := c.do(ctx, http.MethodPost, c.config.LoginURL, body, "")
		if err != nil {
			return err
		}
		var loginResp struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(resp, &loginResp); err != nil {
			return fmt.Errorf("decode login response: %w", err)
		}
		token = loginResp.AccessToken
		return nil
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	c.token = token
	slog.Info("robot login success")
	return nil
}

// ReportOutcome sends the processing result for task under the cached
// token. On the first credential rejection within a call the client logs in
// again and resends once with the fresh token; a second rejection
// propagates to the caller.
func (c *Client) ReportOutcome(ctx context.Context, task contentflow.Task, result contentflow.ProcessResult) error {
	if c.token == "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
	}

	body, err := json.Marshal(reportPayload(task, result))
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		err := c.policy.Do(ctx, func() error {
			_, err := c.do(ctx, http.MethodPut, c.config.ReportURL, body, c.token)
			return err
		})
		if err == nil {
			slog.Info("content update success", "content_id", task.ContentID, "account_id", task.AccountID)
			return nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized && attempt == 0 {
			slog.Error("content update rejected, attempting relogin",
				"content_id", task.ContentID, "account_id", task.AccountID, "error", err)
			c.token = ""
			if err := c.Login(ctx); err != nil {
				return err
			}
			continue
		}

		slog.Error("content update failed",
			"content_id", task.ContentID, "account_id", task.AccountID, "error", err)
		return err
	}

	return fmt.Errorf("content update failed after relogin")
}

// do performs one HTTP exchange. A non-2xx status becomes a *StatusError
// carrying the machine-readable reason code from the response, if any.
func (c *Client) do(ctx context.Context, method, url string, body []byte, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &errResp)
		return nil, &StatusError{Code: resp.StatusCode, Reason: errResp.Error}
	}

	return data, nil
}

// report is the wire shape of a result callback. The record counts travel
// only on a success outcome.
type report struct {
	AccountID      int64  `json:"account_id"`
	ContentID      int64  `json:"content_id"`
	Status         string `json:"status"`
	TotalRecords   *int   `json:"total_records,omitempty"`
	SuccessRecords *int   `json:"success_records,omitempty"`
	ErrorRecords   *int   `json:"error_records,omitempty"`
}

func reportPayload(task contentflow.Task, result contentflow.ProcessResult) report {
	r := report{
		AccountID: task.AccountID,
		ContentID: task.ContentID,
		Status:    string(result.Status),
	}
	if result.Status == contentflow.ContentStatusSuccess {
		total, success, failed := result.TotalRecords, result.SuccessRecords, result.ErrorRecords
		r.TotalRecords = &total
		r.SuccessRecords = &success
		r.ErrorRecords = &failed
	}
	return r
}
