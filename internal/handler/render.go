// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/olegiv/corkboard/internal/util"
)

// Renderer executes the embedded HTML templates.
type Renderer struct {
	templates *template.Template
	boardName string
	logger    *slog.Logger
}

// NewRenderer parses all templates from the given filesystem.
func NewRenderer(templatesFS fs.FS, boardName string, logger *slog.Logger) (*Renderer, error) {
	funcs := template.FuncMap{
		"timeago": func(t time.Time) string {
			return util.TimeAgo(t, time.Now())
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
	}

	tmpl, err := template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Renderer{
		templates: tmpl,
		boardName: boardName,
		logger:    logger,
	}, nil
}

// Render executes the named template into a buffer first, so a
// template error never produces a half-written page.
func (rn *Renderer) Render(w http.ResponseWriter, name string, data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	data["BoardName"] = rn.boardName

	var buf bytes.Buffer
	if err := rn.templates.ExecuteTemplate(&buf, name, data); err != nil {
		rn.logger.Error("rendering template", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
