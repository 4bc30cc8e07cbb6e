// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package flowclient calls the prompt flow's scoring endpoint with bounded
// retries.
package flowclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/leseb/flowbot/pkg/core/config"
	"github.com/leseb/flowbot/pkg/core/extract"
	"github.com/leseb/flowbot/pkg/flow"
	"github.com/leseb/flowbot/pkg/observability/logging"
)

// NoReply is returned when the flow answers without any reply field.
const NoReply = "I couldn't generate a response."

// ErrTimeout is returned when the final attempt timed out.
var ErrTimeout = errors.New("flow request timed out")

// StatusError is returned when the final attempt got a non-200 status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("flow returned status %d", e.Code)
}

// Options configures a Client.
type Options struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration // per attempt
	MaxRetries int           // total attempts, at least 1
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client posts questions to the flow endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	attempts   int
	retryDelay time.Duration
	httpClient *http.Client
	extractor  *extract.Extractor
	logger     *logging.Logger
}

// New creates a flow client.
func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   opts.Endpoint,
		apiKey:     opts.APIKey,
		timeout:    opts.Timeout,
		attempts:   opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		httpClient: opts.HTTPClient,
		extractor:  extract.New(opts.Logger),
		logger:     opts.Logger,
	}
}

// FromConfig creates a client from the flow section.
func FromConfig(cfg config.FlowConfig, httpClient *http.Client, logger *logging.Logger) *Client {
	return New(Options{
		Endpoint:   cfg.Endpoint,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		HTTPClient: httpClient,
		Logger:     logger,
	})
}

// Ask sends one question and returns the reply text. Every failure is
// retried; the error of the last attempt is returned.
func (c *Client) Ask(ctx context.Context, in flow.Input) (string, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal flow request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		reply, err := c.try(ctx, body)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < c.attempts {
			c.logger.Warn("Flow attempt failed, retrying", "attempt", attempt, "error", err)
		}
	}

	c.logger.Error("Flow call failed", "attempts", c.attempts, "error", lastErr)
	return "", lastErr
}

func (c *Client) try(ctx context.Context, body []byte) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create flow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.classify(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.classify(ctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	return c.reply(respBody)
}

// classify maps per-attempt deadline errors to ErrTimeout. A canceled
// parent context is reported as is.
func (c *Client) classify(parent context.Context, err error) error {
	if parent.Err() == nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return ErrTimeout
		}
	}
	return fmt.Errorf("flow request: %w", err)
}

// reply picks chat_output, then output, then answer, and normalizes the
// chosen value to text.
func (c *Client) reply(body []byte) (string, error) {
	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse flow response: %w", err)
	}

	for _, key := range []string{"chat_output", "output", "answer"} {
		v, ok := result[key]
		if !ok || isEmpty(v) {
			continue
		}
		if text := c.extractor.Extract(v); text != "" {
			return text, nil
		}
	}
	return NoReply, nil
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}
