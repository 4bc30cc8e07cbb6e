// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/leseb/flowbot/pkg/bot"
)

// IndexText is served on GET /.
const IndexText = "Bot Service is Running (Robust Parser V2)!"

// handleMessages runs one Bot Framework turn.
func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	var activity bot.Activity
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&activity); err != nil {
		h.logger.Error("Failed to parse activity", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse activity")
		return
	}
	if activity.Type == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Activity type is required")
		return
	}

	h.logger.Info("Processing activity",
		"type", activity.Type,
		"channel", activity.ChannelID,
		"activity_id", activity.ID)

	if err := h.bot.OnTurn(r.Context(), &activity); err != nil {
		h.logger.Error("Turn failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "turn_error", err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, IndexText)
}

func (h *Handler) handleBotHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"ai_configured":  h.aiConfigured,
		"session_active": !h.closing.Load(),
	})
}
