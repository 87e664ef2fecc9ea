// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/corkboard/internal/auth"
	"github.com/olegiv/corkboard/internal/config"
	"github.com/olegiv/corkboard/internal/middleware"
	"github.com/olegiv/corkboard/internal/model"
	"github.com/olegiv/corkboard/internal/store"
)

// AuthHandler handles the admin login and logout routes.
type AuthHandler struct {
	queries         *store.Queries
	renderer        *Renderer
	sessionManager  *scs.SessionManager
	loginProtection *middleware.LoginProtection
	logger          *slog.Logger

	adminUsername string
	passwordHash  string
}

// NewAuthHandler creates an AuthHandler. The configured admin password
// is hashed once here so the plaintext never sticks around.
func NewAuthHandler(cfg *config.Config, queries *store.Queries, renderer *Renderer, sm *scs.SessionManager, lp *middleware.LoginProtection, logger *slog.Logger) (*AuthHandler, error) {
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("hashing admin password: %w", err)
	}

	return &AuthHandler{
		queries:         queries,
		renderer:        renderer,
		sessionManager:  sm,
		loginProtection: lp,
		logger:          logger,
		adminUsername:   cfg.AdminUsername,
		passwordHash:    hash,
	}, nil
}

// LoginForm renders the login page. GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if middleware.IsAdmin(h.sessionManager, r) {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}

	flash := h.sessionManager.PopString(r.Context(), "flash")
	h.renderer.Render(w, "login.html", map[string]any{
		"Title": "Admin Login",
		"Flash": flash,
	})
}

// Login handles the login form submission. POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.flashAndBack(w, r, "Invalid form data")
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" || password == "" {
		h.flashAndBack(w, r, "Username and password are required")
		return
	}

	if locked, remaining := h.loginProtection.IsLocked(username); locked {
		h.logger.Warn("login attempt on locked account", "username", username)
		h.flashAndBack(w, r, fmt.Sprintf("Account locked. Try again in %s.", remaining.Round(time.Second)))
		return
	}

	usernameOK := subtle.ConstantTimeCompare([]byte(username), []byte(h.adminUsername)) == 1
	passwordOK, err := auth.CheckPassword(password, h.passwordHash)
	if err != nil || !usernameOK || !passwordOK {
		h.loginProtection.RecordFailure(username)
		h.logger.Warn("failed login attempt", "category", model.EventCategoryAuth, "username", username, "ip", r.RemoteAddr)
		h.flashAndBack(w, r, "Invalid username or password")
		return
	}

	h.loginProtection.RecordSuccess(username)

	// Renew the token on privilege change.
	if err := h.sessionManager.RenewToken(r.Context()); err != nil {
		h.logger.Error("renewing session token", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.sessionManager.Put(r.Context(), middleware.SessionKeyIsAdmin, true)

	_, _ = h.queries.CreateEvent(r.Context(), store.CreateEventParams{
		Category: model.EventCategoryAuth,
		Message:  "admin logged in",
	})

	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// Logout destroys the session. POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionManager.Destroy(r.Context()); err != nil {
		h.logger.Error("destroying session", "error", err)
	}

	_, _ = h.queries.CreateEvent(r.Context(), store.CreateEventParams{
		Category: model.EventCategoryAuth,
		Message:  "admin logged out",
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) flashAndBack(w http.ResponseWriter, r *http.Request, msg string) {
	h.sessionManager.Put(r.Context(), "flash", msg)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
