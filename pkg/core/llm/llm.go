// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm calls the model deployment behind the prompt flow. Clients
// return the raw response body; turning it into answer text is the job of
// the extract package.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/leseb/flowbot/pkg/core/config"
)

// ErrNotConfigured is returned when the endpoint or key is missing.
var ErrNotConfigured = errors.New("llm endpoint or api key not configured")

// Client sends a single system+user exchange to the model.
type Client interface {
	// Complete returns the raw response body.
	Complete(ctx context.Context, systemPrompt, userInput string) (string, error)
}

// New builds the client selected by cfg.Mode. Calls go through httpClient;
// when it is nil a client limited to cfg.Timeout (or DefaultTimeout) is
// created.
func New(cfg config.LLMConfig, httpClient *http.Client) (Client, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	switch cfg.Mode {
	case "responses", "":
		return NewResponsesClient(cfg.Endpoint, cfg.APIKey, cfg.Deployment, cfg.APIVersion, cfg.UseAzure(), httpClient), nil
	case "chat":
		return NewChatClient(cfg.Endpoint, cfg.APIKey, cfg.Deployment, cfg.APIVersion, cfg.UseAzure(), httpClient), nil
	default:
		return nil, fmt.Errorf("unknown llm mode %q (want responses or chat)", cfg.Mode)
	}
}
