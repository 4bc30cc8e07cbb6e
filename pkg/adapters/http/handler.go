// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package http exposes the bot and the prompt flow over HTTP.
package http

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/leseb/flowbot/pkg/bot"
	"github.com/leseb/flowbot/pkg/flow"
	"github.com/leseb/flowbot/pkg/observability/logging"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler implements the HTTP adapter
type Handler struct {
	logger  *logging.Logger
	mux     *http.ServeMux
	closing atomic.Bool

	bot          *bot.Bot
	aiConfigured bool

	pipeline *flow.Pipeline
	flowKey  string
}

// NewBotHandler serves the Bot Framework messaging endpoint. aiConfigured
// is reported on /health and should be true only when both the flow
// endpoint and its key are set.
func NewBotHandler(b *bot.Bot, aiConfigured bool, logger *logging.Logger) *Handler {
	h := &Handler{
		logger:       logger,
		mux:          http.NewServeMux(),
		bot:          b,
		aiConfigured: aiConfigured,
	}

	h.mux.HandleFunc("POST /api/messages", h.handleMessages)
	h.mux.HandleFunc("GET /{$}", h.handleIndex)
	h.mux.HandleFunc("GET /health", h.handleBotHealth)

	return h
}

// NewFlowHandler serves the prompt flow scoring endpoint. A non-empty
// apiKey is required as a bearer token on /score.
func NewFlowHandler(p *flow.Pipeline, apiKey string, logger *logging.Logger) *Handler {
	h := &Handler{
		logger:   logger,
		mux:      http.NewServeMux(),
		pipeline: p,
		flowKey:  apiKey,
	}

	h.mux.HandleFunc("POST /score", h.handleScore)
	h.mux.HandleFunc("GET /health", h.handleHealth)

	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)

	h.logger.Info("Request",
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	h.mux.ServeHTTP(w, r)
}

// Close marks the handler as shutting down; health reports it.
func (h *Handler) Close() {
	h.closing.Store(true)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, errType, message string) {
	h.writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"type":    errType,
			"message": message,
		},
	})
}
