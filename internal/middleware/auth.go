// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// rate limiting and response hardening.
package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
)

// SessionKeyIsAdmin marks an authenticated moderator session.
const SessionKeyIsAdmin = "is_admin"

// IsAdmin reports whether the request carries an admin session.
func IsAdmin(sm *scs.SessionManager, r *http.Request) bool {
	return sm.GetBool(r.Context(), SessionKeyIsAdmin)
}

// RequireAdmin creates middleware that requires an admin session,
// redirecting to the login page otherwise.
func RequireAdmin(sm *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsAdmin(sm, r) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP used for rate-limit bucketing.
// X-Forwarded-For can carry a whole proxy chain; only the first hop
// identifies the client. Falls back to RemoteAddr without the port.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
