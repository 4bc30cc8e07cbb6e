// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// ChatClient calls a chat completions endpoint through the official OpenAI
// Go SDK. Works against Azure OpenAI deployments and any OpenAI-compatible
// backend (vLLM, Ollama).
type ChatClient struct {
	client openai.Client
	model  string
}

// NewChatClient creates a chat completions client. With azureMode the
// endpoint is an Azure OpenAI resource URL and model is the deployment
// name; otherwise endpoint is an OpenAI-compatible base URL. A nil
// httpClient gets one limited to DefaultTimeout.
func NewChatClient(endpoint, apiKey, model, apiVersion string, azureMode bool, httpClient *http.Client) *ChatClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	opts := []option.RequestOption{option.WithHTTPClient(httpClient)}

	if azureMode {
		opts = append(opts,
			azure.WithEndpoint(endpoint, apiVersion),
			azure.WithAPIKey(apiKey),
		)
	} else {
		if endpoint != "" {
			opts = append(opts, option.WithBaseURL(endpoint))
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	return &ChatClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Complete sends the system prompt and user input and returns the raw
// completion JSON.
func (c *ChatClient) Complete(ctx context.Context, systemPrompt, userInput string) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userInput),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	return completion.RawJSON(), nil
}
