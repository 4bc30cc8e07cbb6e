// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/leseb/flowbot/pkg/flow"
)

// handleScore runs the prompt flow for one question.
func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing API key")
		return
	}

	var in flow.Input
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		h.logger.Error("Failed to parse request", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}
	if strings.TrimSpace(in.ChatInput) == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "chat_input is required")
		return
	}

	h.logger.Info("Processing flow request",
		"history", len(in.ChatHistory),
		"user", in.UserName)

	out, err := h.pipeline.Run(r.Context(), in)
	if err != nil {
		h.logger.Error("Flow failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "processing_error", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.flowKey == "" {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.flowKey)) == 1
}
