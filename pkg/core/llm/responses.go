// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds one model call when no HTTP client is supplied.
const DefaultTimeout = 120 * time.Second

// ResponsesRequest is the body sent to the Responses API.
type ResponsesRequest struct {
	Model string         `json:"model"`
	Input []InputMessage `json:"input"`
}

// InputMessage is one role-tagged input item.
type InputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponsesClient calls a Responses API endpoint with net/http. On Azure the
// URL is {endpoint}/openai/responses?api-version=... and the key goes in
// the api-key header; elsewhere it is {endpoint}/responses with a bearer
// token.
type ResponsesClient struct {
	baseURL    string
	apiKey     string
	model      string
	apiVersion string
	azure      bool
	httpClient *http.Client
}

// NewResponsesClient creates a new Responses API client. A nil httpClient
// gets one limited to DefaultTimeout.
func NewResponsesClient(endpoint, apiKey, model, apiVersion string, azure bool, httpClient *http.Client) *ResponsesClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &ResponsesClient{
		baseURL:    strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		model:      model,
		apiVersion: apiVersion,
		azure:      azure,
		httpClient: httpClient,
	}
}

func (c *ResponsesClient) url() string {
	if c.azure {
		return c.baseURL + "/openai/responses?api-version=" + url.QueryEscape(c.apiVersion)
	}
	return c.baseURL + "/responses"
}

// Complete sends the system prompt and user input and returns the raw body.
func (c *ResponsesClient) Complete(ctx context.Context, systemPrompt, userInput string) (string, error) {
	body, err := json.Marshal(ResponsesRequest{
		Model: c.model,
		Input: []InputMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userInput},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request to backend failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return string(respBody), nil
}

func (c *ResponsesClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey == "" {
		return
	}
	if c.azure {
		req.Header.Set("api-key", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
