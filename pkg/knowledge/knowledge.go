// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package knowledge looks up store records and indexed documents for the
// prompt flow and formats them as plain text for the model.
package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/leseb/flowbot/pkg/core/config"
	"github.com/leseb/flowbot/pkg/observability/logging"
	"github.com/leseb/flowbot/pkg/provider"
)

// Providers is the global registry for search backends.
var Providers = provider.NewRegistry[Searcher]("knowledge")

// DefaultTop is the number of hits requested per lookup.
const DefaultTop = 10

// Fixed answers returned by Lookup instead of errors.
const (
	NoResults     = "No relevant information found in the knowledge base for this query."
	NotConfigured = "Error: Missing Azure Search configuration. Please set AZURE_SEARCH_ENDPOINT, AZURE_SEARCH_KEY, and AZURE_SEARCH_INDEX_NAME."
)

// Document is one search hit as returned by the index.
type Document map[string]any

// Field returns the field as a string, or "" when absent or not a string.
func (d Document) Field(key string) string {
	s, _ := d[key].(string)
	return s
}

// Searcher runs a full-text query against a knowledge index.
type Searcher interface {
	Search(ctx context.Context, query string, top int) ([]Document, error)
}

// Service turns a user question into formatted context text.
type Service struct {
	searcher   Searcher
	expansions map[string]string
	terms      []string
	top        int
	logger     *logging.Logger
}

// NewService wraps searcher. A nil searcher makes every Lookup return
// NotConfigured. expansions maps query terms to the text appended after
// them, e.g. "TX" to "Texas".
func NewService(searcher Searcher, expansions map[string]string, top int, logger *logging.Logger) *Service {
	if top <= 0 {
		top = DefaultTop
	}
	if logger == nil {
		logger = logging.Discard()
	}

	terms := make([]string, 0, len(expansions))
	for term := range expansions {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	return &Service{
		searcher:   searcher,
		expansions: expansions,
		terms:      terms,
		top:        top,
		logger:     logger,
	}
}

// FromConfig builds a Service from the search section. An unconfigured
// section yields a Service whose lookups return NotConfigured.
func FromConfig(ctx context.Context, cfg config.SearchConfig, logger *logging.Logger) (*Service, error) {
	if !cfg.Configured() {
		return NewService(nil, nil, cfg.Top, logger), nil
	}

	searcher, err := Providers.New(ctx, cfg.Provider, map[string]string{
		"endpoint":    cfg.Endpoint,
		"api_key":     cfg.APIKey,
		"index_name":  cfg.IndexName,
		"api_version": cfg.APIVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge: %w", err)
	}
	return NewService(searcher, cfg.Expansions, cfg.Top, logger), nil
}

// Lookup searches the index and returns the formatted hits joined by blank
// lines. It never fails: configuration and search problems come back as
// readable text so the flow can still answer.
func (s *Service) Lookup(ctx context.Context, query string) string {
	if s.searcher == nil {
		return NotConfigured
	}

	expanded := s.expand(query)
	if expanded != query {
		s.logger.Debug("Expanded knowledge query", "query", query, "expanded", expanded)
	}

	docs, err := s.searcher.Search(ctx, expanded, s.top)
	if err != nil {
		s.logger.Warn("Knowledge search failed", "error", err)
		return fmt.Sprintf("Error querying Azure Search: %v", err)
	}

	var sections []string
	for _, doc := range docs {
		if text, ok := Format(doc); ok {
			sections = append(sections, text)
		}
	}

	s.logger.Debug("Knowledge lookup complete", "hits", len(docs), "used", len(sections))

	if len(sections) == 0 {
		return NoResults
	}
	return strings.Join(sections, "\n\n")
}

// expand appends the expansion after every occurrence of the first
// matching term, checking terms in sorted order.
func (s *Service) expand(query string) string {
	for _, term := range s.terms {
		if strings.Contains(query, term) {
			return strings.ReplaceAll(query, term, term+" "+s.expansions[term])
		}
	}
	return query
}
