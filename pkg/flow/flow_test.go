// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/flowbot/pkg/state"
)

type fakeKnowledge struct {
	answer  string
	queries []string
}

func (f *fakeKnowledge) Lookup(_ context.Context, query string) string {
	f.queries = append(f.queries, query)
	return f.answer
}

type fakeLLM struct {
	raw    string
	err    error
	system string
	user   string
}

func (f *fakeLLM) Complete(_ context.Context, systemPrompt, userInput string) (string, error) {
	f.system = systemPrompt
	f.user = userInput
	return f.raw, f.err
}

func TestPipeline_Run(t *testing.T) {
	kn := &fakeKnowledge{answer: "Store: Downtown (ID: 1042)"}
	model := &fakeLLM{raw: `{"output":[{"type":"message","content":[{"type":"output_text","text":"It opens at 8."}]}]}`}
	p := NewPipeline(kn, model, nil, nil)

	out, err := p.Run(context.Background(), Input{
		ChatInput:   "When does Downtown open?",
		ChatHistory: []state.Turn{{Role: "user", Content: "When does Downtown open?"}},
		CurrentTime: "Monday, 2026-10-12 07:00 AM UTC",
		UserName:    "Dana",
		UserLocale:  "en-US",
	})
	require.NoError(t, err)
	assert.Equal(t, "It opens at 8.", out.ChatOutput)

	assert.Equal(t, []string{"When does Downtown open?"}, kn.queries)
	assert.Equal(t, "When does Downtown open?", model.user)
	assert.Contains(t, model.system, "Store: Downtown (ID: 1042)")
	assert.Contains(t, model.system, "You are talking to Dana (locale en-US).")
	assert.Contains(t, model.system, "Current time for the user: Monday, 2026-10-12 07:00 AM UTC.")
	assert.Contains(t, model.system, "user: When does Downtown open?")
}

func TestPipeline_ModelError(t *testing.T) {
	p := NewPipeline(&fakeKnowledge{}, &fakeLLM{err: errors.New("backend returned status 500: boom")}, nil, nil)

	out, err := p.Run(context.Background(), Input{ChatInput: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Error calling GPT-5: backend returned status 500: boom", out.ChatOutput)
}

func TestPipeline_NoModel(t *testing.T) {
	p := NewPipeline(nil, nil, nil, nil)

	out, err := p.Run(context.Background(), Input{ChatInput: "hi"})
	require.NoError(t, err)
	assert.Equal(t, MissingLLMConfig, out.ChatOutput)
}

func TestPipeline_UnrecognizedPayloadIsDumped(t *testing.T) {
	p := NewPipeline(&fakeKnowledge{}, &fakeLLM{raw: `{"status":"incomplete"}`}, nil, nil)

	out, err := p.Run(context.Background(), Input{ChatInput: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"status\": \"incomplete\"\n}", out.ChatOutput)
}

func TestPromptContext(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "already text", "already text"},
		{"bytes", []byte("raw"), "raw"},
		{"strings", []string{"a", "b"}, "a\n\nb"},
		{"mixed", []any{"a", 1, map[string]any{"k": "v"}}, "a\n\n1\n\nmap[k:v]"},
		{"empty slice", []any{}, ""},
		{"number", 42, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PromptContext(tt.in))
		})
	}
}

func TestDefaultPrompt_OmitsEmptySections(t *testing.T) {
	got, err := DefaultPrompts(nil).Render(PromptData{Context: "ctx"})
	require.NoError(t, err)
	assert.Contains(t, got, "KNOWLEDGE\n---------\nctx\n")
	assert.NotContains(t, got, "You are talking to")
	assert.NotContains(t, got, "Current time")
	assert.NotContains(t, got, "CONVERSATION SO FAR")
}

func TestLoadPrompts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("Hello {{.UserName}}: {{.Context}}"), 0o644))

	p, err := LoadPrompts(path, nil)
	require.NoError(t, err)

	got, err := p.Render(PromptData{UserName: "Dana", Context: "facts"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Dana: facts", got)

	_, err = LoadPrompts(filepath.Join(dir, "missing.tmpl"), nil)
	assert.ErrorContains(t, err, "read prompt")

	bad := filepath.Join(dir, "bad.tmpl")
	require.NoError(t, os.WriteFile(bad, []byte("{{.Context"), 0o644))
	_, err = LoadPrompts(bad, nil)
	assert.ErrorContains(t, err, "parse prompt")
}

func TestLoadPrompts_EmptyPathUsesDefault(t *testing.T) {
	p, err := LoadPrompts("", nil)
	require.NoError(t, err)

	got, err := p.Render(PromptData{Context: "facts"})
	require.NoError(t, err)
	assert.Contains(t, got, "KNOWLEDGE")
	assert.NoError(t, p.Watch(context.Background()))
}

func TestPrompts_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("v1 {{.Context}}"), 0o644))

	p, err := LoadPrompts(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	render := func() string {
		s, err := p.Render(PromptData{Context: "x"})
		require.NoError(t, err)
		return s
	}

	// The watcher may not be registered yet; keep rewriting until it sees one.
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("v2 {{.Context}}"), 0o644)
		return render() == "v2 x"
	}, 5*time.Second, 50*time.Millisecond)

	// A broken edit keeps the last good template.
	require.NoError(t, os.WriteFile(path, []byte("{{.Context"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, "v2 x", render())
}
