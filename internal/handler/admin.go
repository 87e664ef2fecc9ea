// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/olegiv/corkboard/internal/board"
	"github.com/olegiv/corkboard/internal/store"
)

const adminEventsPerPage = 50

// AdminHandler serves the moderation dashboard and its actions. All
// routes are behind the admin session middleware; the coordinator
// enforces the admin requirement a second time.
type AdminHandler struct {
	coordinator *board.Coordinator
	queries     *store.Queries
	renderer    *Renderer
	logger      *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(c *board.Coordinator, queries *store.Queries, renderer *Renderer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		coordinator: c,
		queries:     queries,
		renderer:    renderer,
		logger:      logger,
	}
}

// Dashboard renders the moderation page. GET /admin
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := board.Query{
		Search: r.URL.Query().Get("search"),
		Sort:   r.URL.Query().Get("sort"),
	}
	if !board.ValidSort(q.Sort) {
		q.Sort = ""
	}

	stats, err := h.coordinator.Stats(r.Context())
	if err != nil {
		h.logger.Error("loading board stats", "error", err)
	}

	h.renderer.Render(w, "admin.html", map[string]any{
		"Title":  "Moderation",
		"Pins":   h.coordinator.View(q),
		"Stats":  stats,
		"Search": q.Search,
		"Sort":   q.Sort,
	})
}

// DeletePins removes the selected pins. POST /admin/pins/delete
func (h *AdminHandler) DeletePins(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.IDs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "no pins selected")
		return
	}

	n, err := h.coordinator.RemoveMany(r.Context(), req.IDs, true)
	if err != nil {
		writeBoardError(w, err)
		return
	}

	writeJSONSuccess(w, map[string]any{"deleted": n})
}

// DeleteAllPins clears the board. POST /admin/pins/delete-all
func (h *AdminHandler) DeleteAllPins(w http.ResponseWriter, r *http.Request) {
	n, err := h.coordinator.RemoveAll(r.Context(), true)
	if err != nil {
		writeBoardError(w, err)
		return
	}

	writeJSONSuccess(w, map[string]any{"deleted": n})
}

// Events renders the event log. GET /admin/events
func (h *AdminHandler) Events(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	events, err := h.queries.ListEvents(r.Context(), adminEventsPerPage, (page-1)*adminEventsPerPage)
	if err != nil {
		h.logger.Error("listing events", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	total, err := h.queries.CountEvents(r.Context())
	if err != nil {
		h.logger.Error("counting events", "error", err)
	}

	h.renderer.Render(w, "events.html", map[string]any{
		"Title":   "Event Log",
		"Events":  events,
		"Page":    page,
		"HasNext": int64(page*adminEventsPerPage) < total,
		"Total":   total,
	})
}
