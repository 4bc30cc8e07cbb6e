// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package flow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/fsnotify/fsnotify"

	"github.com/leseb/flowbot/pkg/observability/logging"
	"github.com/leseb/flowbot/pkg/state"
)

// DefaultPrompt is the built-in system prompt template.
const DefaultPrompt = `You are a helpful assistant for store teams. Answer using the knowledge
below. If the knowledge does not cover the question, say so plainly instead
of guessing.
{{if .UserName}}
You are talking to {{.UserName}}{{if .UserLocale}} (locale {{.UserLocale}}){{end}}.{{end}}
{{if .CurrentTime}}Current time for the user: {{.CurrentTime}}.
{{end}}
KNOWLEDGE
---------
{{.Context}}
{{if .History}}
CONVERSATION SO FAR
-------------------
{{range .History}}{{.Role}}: {{.Content}}
{{end}}{{end}}`

// PromptData feeds the system prompt template.
type PromptData struct {
	Context     string
	CurrentTime string
	UserName    string
	UserLocale  string
	History     []state.Turn
}

// Prompts holds the current system prompt template. When backed by a file
// it can follow edits with Watch.
type Prompts struct {
	mu     sync.RWMutex
	tmpl   *template.Template
	path   string
	logger *logging.Logger
}

// DefaultPrompts returns Prompts using DefaultPrompt.
func DefaultPrompts(logger *logging.Logger) *Prompts {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Prompts{
		tmpl:   template.Must(parsePrompt(DefaultPrompt)),
		logger: logger,
	}
}

// LoadPrompts reads the template at path. An empty path uses DefaultPrompt.
func LoadPrompts(path string, logger *logging.Logger) (*Prompts, error) {
	p := DefaultPrompts(logger)
	if path == "" {
		return p, nil
	}

	p.path = path
	if err := p.reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Render executes the current template.
func (p *Prompts) Render(data PromptData) (string, error) {
	p.mu.RLock()
	tmpl := p.tmpl
	p.mu.RUnlock()

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Watch reloads the template whenever its file changes, until ctx is done.
// A template that fails to parse is logged and the previous one kept.
// Without a backing file Watch returns immediately.
func (p *Prompts) Watch(ctx context.Context) error {
	if p.path == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompt watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors and config mounts replace the file
	// rather than writing it in place.
	dir := filepath.Dir(p.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(p.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := p.reload(); err != nil {
				p.logger.Warn("Keeping previous system prompt", "path", p.path, "error", err)
				continue
			}
			p.logger.Info("Reloaded system prompt", "path", p.path)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("Prompt watcher error", "error", err)
		}
	}
}

func (p *Prompts) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read prompt %s: %w", p.path, err)
	}
	tmpl, err := parsePrompt(string(data))
	if err != nil {
		return fmt.Errorf("parse prompt %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.tmpl = tmpl
	p.mu.Unlock()
	return nil
}

func parsePrompt(text string) (*template.Template, error) {
	return template.New("system").Option("missingkey=zero").Parse(text)
}
