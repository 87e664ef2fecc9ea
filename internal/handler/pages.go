// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/olegiv/corkboard/internal/board"
)

// PageHandler serves the server-rendered pages.
type PageHandler struct {
	coordinator *board.Coordinator
	renderer    *Renderer
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(c *board.Coordinator, renderer *Renderer) *PageHandler {
	return &PageHandler{coordinator: c, renderer: renderer}
}

// Board renders the public board. GET /
func (h *PageHandler) Board(w http.ResponseWriter, r *http.Request) {
	q := board.Query{
		Search: r.URL.Query().Get("search"),
		Sort:   r.URL.Query().Get("sort"),
	}
	if !board.ValidSort(q.Sort) {
		q.Sort = ""
	}

	pins := h.coordinator.View(q)
	h.renderer.Render(w, "board.html", map[string]any{
		"Title":  "Board",
		"Pins":   pins,
		"Search": q.Search,
		"Sort":   q.Sort,
	})
}

// Setup renders the first-run instructions page. GET /setup
func (h *PageHandler) Setup(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, "setup.html", map[string]any{
		"Title": "Setup",
	})
}

// NotFound handles unmatched routes.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Page not found"))
}
