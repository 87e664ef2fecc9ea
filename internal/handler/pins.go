// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler wires the board coordinator to HTTP: the JSON pin
// API, the server-rendered pages, admin moderation and the SSE feed.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/corkboard/internal/board"
	"github.com/olegiv/corkboard/internal/config"
	"github.com/olegiv/corkboard/internal/middleware"
	"github.com/olegiv/corkboard/internal/model"
)

// HeaderAuthorToken carries the caller's pin owner token.
const HeaderAuthorToken = "X-Author-Token"

// PinHandler serves the JSON pin API.
type PinHandler struct {
	coordinator    *board.Coordinator
	sessionManager *scs.SessionManager
	cfg            *config.Config
	logger         *slog.Logger
}

// NewPinHandler creates a PinHandler.
func NewPinHandler(c *board.Coordinator, sm *scs.SessionManager, cfg *config.Config, logger *slog.Logger) *PinHandler {
	return &PinHandler{
		coordinator:    c,
		sessionManager: sm,
		cfg:            cfg,
		logger:         logger,
	}
}

// List returns pins from the cache, optionally filtered and sorted.
// GET /api/pins?search=...&sort=created_desc|created_asc|title|rp_name
func (h *PinHandler) List(w http.ResponseWriter, r *http.Request) {
	q := board.Query{
		Search: r.URL.Query().Get("search"),
		Sort:   r.URL.Query().Get("sort"),
	}
	if !board.ValidSort(q.Sort) {
		writeJSONError(w, http.StatusBadRequest, "unknown sort order: "+q.Sort)
		return
	}

	pins := h.coordinator.View(q)
	writeJSONSuccess(w, map[string]any{"pins": pins, "count": len(pins)})
}

// Create adds a new pin. POST /api/pins
func (h *PinHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft model.PinDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if token := r.Header.Get(HeaderAuthorToken); token != "" {
		draft.AuthorID = token
	}

	pin, err := h.coordinator.Create(r.Context(), draft)
	if err != nil {
		writeBoardError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "pin": pin})
}

// Update patches an existing pin. PUT /api/pins/{id}
func (h *PinHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch model.PinPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	admin := middleware.IsAdmin(h.sessionManager, r)
	pin, err := h.coordinator.Update(r.Context(), id, patch, r.Header.Get(HeaderAuthorToken), admin)
	if err != nil {
		writeBoardError(w, err)
		return
	}

	writeJSONSuccess(w, map[string]any{"pin": pin})
}

// Delete removes a pin. DELETE /api/pins/{id}
func (h *PinHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	admin := middleware.IsAdmin(h.sessionManager, r)
	if err := h.coordinator.Remove(r.Context(), id, r.Header.Get(HeaderAuthorToken), admin); err != nil {
		writeBoardError(w, err)
		return
	}

	writeJSONSuccess(w, map[string]any{"id": id})
}

// Stats returns aggregate board statistics. GET /api/pins/stats
func (h *PinHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.coordinator.Stats(r.Context())
	if err != nil {
		writeBoardError(w, err)
		return
	}
	writeJSONSuccess(w, map[string]any{"stats": stats})
}

// Config returns the public client configuration. Credentials never
// appear here; admin auth is a server-side session concern.
// GET /api/config
func (h *PinHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSONSuccess(w, map[string]any{
		"board_name":   h.cfg.BoardName,
		"feed_path":    "/api/feed",
		"max_title":    model.MaxTitleLen,
		"max_content":  model.MaxContentLen,
		"max_nickname": model.MaxNicknameLen,
		"max_rp_name":  model.MaxRPNameLen,
		"main_numbers": model.MainNumbers,
	})
}
