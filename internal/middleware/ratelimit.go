// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterCache is a generic rate limiter cache with double-check locking.
type limiterCache[K comparable] struct {
	limiters map[K]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

// get returns the rate limiter for a specific key, creating one if needed.
func (lc *limiterCache[K]) get(key K) *rate.Limiter {
	lc.mu.RLock()
	limiter, exists := lc.limiters[key]
	lc.mu.RUnlock()

	if exists {
		return limiter
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()

	if limiter, exists = lc.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(lc.rate, lc.burst)
	lc.limiters[key] = limiter
	return limiter
}

// clearIfExceeds clears all entries if the cache exceeds maxSize.
func (lc *limiterCache[K]) clearIfExceeds(maxSize int) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	if len(lc.limiters) > maxSize {
		lc.limiters = make(map[K]*rate.Limiter)
		return true
	}
	return false
}

// RateLimiter provides per-IP rate limiting for API routes.
type RateLimiter struct {
	cache *limiterCache[string]
}

// NewRateLimiter creates a per-IP rate limiter.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{cache: newLimiterCache[string](rps, burst)}
}

// Allow reports whether a request from the given IP may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	return rl.cache.get(ip).Allow()
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)
			if !rl.Allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				http.Error(w, "Too many requests. Please wait a moment and try again.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginProtection combines per-IP rate limiting with account lockout
// after repeated failures.
type LoginProtection struct {
	ipLimiters *limiterCache[string]

	mu             sync.Mutex
	failedAttempts map[string]*loginAttempt

	maxFailedAttempts int
	lockoutDuration   time.Duration
	attemptWindow     time.Duration
}

type loginAttempt struct {
	count       int
	firstFailed time.Time
	lockedUntil time.Time
}

// NewLoginProtection creates login protection with the given limits.
// Zero values fall back to 1 request per 2 seconds with a burst of 5,
// and a 15 minute lockout after 5 failures inside a 15 minute window.
func NewLoginProtection(rps float64, burst, maxFailed int, lockout time.Duration) *LoginProtection {
	if rps <= 0 {
		rps = 0.5
	}
	if burst <= 0 {
		burst = 5
	}
	if maxFailed <= 0 {
		maxFailed = 5
	}
	if lockout <= 0 {
		lockout = 15 * time.Minute
	}

	return &LoginProtection{
		ipLimiters:        newLimiterCache[string](rps, burst),
		failedAttempts:    make(map[string]*loginAttempt),
		maxFailedAttempts: maxFailed,
		lockoutDuration:   lockout,
		attemptWindow:     lockout,
	}
}

// IsLocked reports whether the account is currently locked and for how
// much longer.
func (lp *LoginProtection) IsLocked(username string) (bool, time.Duration) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	attempt, ok := lp.failedAttempts[username]
	if !ok {
		return false, 0
	}
	if time.Now().Before(attempt.lockedUntil) {
		return true, time.Until(attempt.lockedUntil)
	}
	return false, 0
}

// RecordFailure records a failed login. Returns true when the account
// is now locked.
func (lp *LoginProtection) RecordFailure(username string) bool {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	now := time.Now()
	attempt, ok := lp.failedAttempts[username]
	if !ok || now.Sub(attempt.firstFailed) > lp.attemptWindow {
		lp.failedAttempts[username] = &loginAttempt{count: 1, firstFailed: now}
		return false
	}

	attempt.count++
	if attempt.count >= lp.maxFailedAttempts {
		attempt.lockedUntil = now.Add(lp.lockoutDuration)
		attempt.count = 0
		slog.Warn("account locked after repeated failures",
			"username", username, "duration", lp.lockoutDuration)
		return true
	}
	return false
}

// RecordSuccess clears failure tracking for the account.
func (lp *LoginProtection) RecordSuccess(username string) {
	lp.mu.Lock()
	delete(lp.failedAttempts, username)
	lp.mu.Unlock()
}

// Middleware returns per-IP rate limiting for the login POST route.
func (lp *LoginProtection) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)
			if !lp.ipLimiters.get(ip).Allow() {
				slog.Warn("login rate limit exceeded", "ip", ip)
				http.Error(w, "Too many login attempts. Please slow down.", http.StatusTooManyRequests)
				return
			}

			// Opportunistic cleanup keeps the limiter map bounded.
			lp.ipLimiters.clearIfExceeds(10000)

			next.ServeHTTP(w, r)
		})
	}
}
