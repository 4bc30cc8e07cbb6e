// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package flow is the prompt flow behind the bot: knowledge lookup, system
// prompt rendering, one model call and answer extraction.
package flow

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/leseb/flowbot/pkg/core/extract"
	"github.com/leseb/flowbot/pkg/core/llm"
	"github.com/leseb/flowbot/pkg/observability/logging"
	"github.com/leseb/flowbot/pkg/state"
)

// MissingLLMConfig is answered when no model client is configured.
const MissingLLMConfig = "Error: Missing Environment Variables. Please set AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT in your .env file or environment."

// Input is one scoring request.
type Input struct {
	ChatInput   string       `json:"chat_input"`
	ChatHistory []state.Turn `json:"chat_history"`
	CurrentTime string       `json:"current_time"`
	UserName    string       `json:"user_name"`
	UserLocale  string       `json:"user_locale"`
}

// Output is the flow's answer.
type Output struct {
	ChatOutput string `json:"chat_output"`
}

// Knowledge returns context text for a question. It never fails.
type Knowledge interface {
	Lookup(ctx context.Context, query string) string
}

// Pipeline wires the flow steps together.
type Pipeline struct {
	knowledge Knowledge
	client    llm.Client
	prompts   *Prompts
	extractor *extract.Extractor
	logger    *logging.Logger
}

// NewPipeline creates a pipeline. A nil client answers every question with
// MissingLLMConfig.
func NewPipeline(knowledge Knowledge, client llm.Client, prompts *Prompts, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Discard()
	}
	if prompts == nil {
		prompts = DefaultPrompts(logger)
	}
	return &Pipeline{
		knowledge: knowledge,
		client:    client,
		prompts:   prompts,
		extractor: extract.New(logger),
		logger:    logger,
	}
}

// Run answers one question. Model failures become the answer text; only a
// broken prompt template is returned as an error.
func (p *Pipeline) Run(ctx context.Context, in Input) (Output, error) {
	var lookup string
	if p.knowledge != nil {
		lookup = p.knowledge.Lookup(ctx, in.ChatInput)
	}

	system, err := p.prompts.Render(PromptData{
		Context:     PromptContext(lookup),
		CurrentTime: in.CurrentTime,
		UserName:    in.UserName,
		UserLocale:  in.UserLocale,
		History:     in.ChatHistory,
	})
	if err != nil {
		return Output{}, fmt.Errorf("render system prompt: %w", err)
	}

	if p.client == nil {
		return Output{ChatOutput: MissingLLMConfig}, nil
	}

	raw, err := p.client.Complete(ctx, system, in.ChatInput)
	if err != nil {
		p.logger.Error("Model call failed", "error", err)
		return Output{ChatOutput: fmt.Sprintf("Error calling GPT-5: %v", err)}, nil
	}

	return Output{ChatOutput: p.extractor.Extract(raw)}, nil
}

// PromptContext turns a lookup result into prompt text. Strings pass
// through, sequences are joined with blank lines and anything else is
// formatted with fmt.
func PromptContext(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(rv.Index(i).Interface())
		}
		return strings.Join(parts, "\n\n")
	}
	return fmt.Sprint(v)
}
