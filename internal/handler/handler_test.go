// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/corkboard/internal/board"
	"github.com/olegiv/corkboard/internal/config"
	"github.com/olegiv/corkboard/internal/feed"
	"github.com/olegiv/corkboard/internal/handler"
	"github.com/olegiv/corkboard/internal/middleware"
	"github.com/olegiv/corkboard/internal/model"
	"github.com/olegiv/corkboard/internal/store"
	"github.com/olegiv/corkboard/internal/testutil"
	"github.com/olegiv/corkboard/web"
)

type testApp struct {
	router      chi.Router
	coordinator *board.Coordinator
	queries     *store.Queries
	sessions    *scs.SessionManager
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	logger := testutil.TestLoggerSilent()
	queries := store.New(db)
	broker := feed.NewBroker()
	coordinator := board.New(queries, broker, logger)

	cfg := &config.Config{
		BoardName:     "Test Board",
		AdminUsername: "admin",
		AdminPassword: "correct horse battery",
	}

	sm := scs.New()

	renderer, err := handler.NewRenderer(web.Templates, cfg.BoardName, logger)
	require.NoError(t, err)

	lp := middleware.NewLoginProtection(1000, 1000, 5, time.Minute)
	pinHandler := handler.NewPinHandler(coordinator, sm, cfg, logger)
	pageHandler := handler.NewPageHandler(coordinator, renderer)
	adminHandler := handler.NewAdminHandler(coordinator, queries, renderer, logger)
	authHandler, err := handler.NewAuthHandler(cfg, queries, renderer, sm, lp, logger)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(sm.LoadAndSave)
	r.NotFound(pageHandler.NotFound)

	r.Get("/", pageHandler.Board)
	r.Get("/setup", pageHandler.Setup)
	r.Get("/login", authHandler.LoginForm)
	r.Post("/login", authHandler.Login)
	r.Post("/logout", authHandler.Logout)

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", pinHandler.Config)
		r.Route("/pins", func(r chi.Router) {
			r.Get("/", pinHandler.List)
			r.Post("/", pinHandler.Create)
			r.Get("/stats", pinHandler.Stats)
			r.Put("/{id}", pinHandler.Update)
			r.Delete("/{id}", pinHandler.Delete)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireAdmin(sm))
		r.Get("/", adminHandler.Dashboard)
		r.Get("/events", adminHandler.Events)
		r.Post("/pins/delete", adminHandler.DeletePins)
		r.Post("/pins/delete-all", adminHandler.DeleteAllPins)
	})

	return &testApp{router: r, coordinator: coordinator, queries: queries, sessions: sm}
}

func (app *testApp) do(t *testing.T, method, path string, body any, cookies []*http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	return rec
}

// login authenticates and returns the admin session cookies.
func (app *testApp) login(t *testing.T) []*http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString("username=admin&password=correct horse battery"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/admin", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func testDraft() map[string]any {
	return map[string]any{
		"title":       "Lantern walk",
		"content":     "Meet at the gate at dusk",
		"nickname":    "Moss",
		"rp_name":     "Akira",
		"main_number": 2,
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreateAndListPins(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/pins/", testDraft(), nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	pin := body["pin"].(map[string]any)
	assert.NotEmpty(t, pin["id"])
	assert.NotEmpty(t, pin["author_id"]) // server-minted owner token

	rec = app.do(t, http.MethodGet, "/api/pins/", nil, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestCreatePinValidationError(t *testing.T) {
	app := newTestApp(t)

	draft := testDraft()
	draft["title"] = ""
	rec := app.do(t, http.MethodPost, "/api/pins/", draft, nil, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "title")
}

func TestListPinsRejectsUnknownSort(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/pins/?sort=votes", nil, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdatePinWithOwnerToken(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/pins/", testDraft(), nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	pin := decodeBody(t, rec)["pin"].(map[string]any)
	id := pin["id"].(string)
	token := pin["author_id"].(string)

	rec = app.do(t, http.MethodPut, "/api/pins/"+id, map[string]any{"title": "Moved to the mill"},
		nil, map[string]string{handler.HeaderAuthorToken: token})
	require.Equal(t, http.StatusOK, rec.Code)

	updated := decodeBody(t, rec)["pin"].(map[string]any)
	assert.Equal(t, "Moved to the mill", updated["title"])
	assert.Equal(t, "Meet at the gate at dusk", updated["content"])
}

func TestUpdatePinWrongTokenForbidden(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/pins/", testDraft(), nil, nil)
	id := decodeBody(t, rec)["pin"].(map[string]any)["id"].(string)

	rec = app.do(t, http.MethodPut, "/api/pins/"+id, map[string]any{"title": "hijack"},
		nil, map[string]string{handler.HeaderAuthorToken: "wrong-token"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteMissingPinNotFound(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodDelete, "/api/pins/nope", nil,
		nil, map[string]string{handler.HeaderAuthorToken: "whatever"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletePinWithOwnerToken(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/api/pins/", testDraft(), nil, nil)
	pin := decodeBody(t, rec)["pin"].(map[string]any)

	rec = app.do(t, http.MethodDelete, "/api/pins/"+pin["id"].(string), nil,
		nil, map[string]string{handler.HeaderAuthorToken: pin["author_id"].(string)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, app.coordinator.Pins())
}

func TestStatsEndpoint(t *testing.T) {
	app := newTestApp(t)

	app.do(t, http.MethodPost, "/api/pins/", testDraft(), nil, nil)

	rec := app.do(t, http.MethodGet, "/api/pins/stats", nil, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stats := decodeBody(t, rec)["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["total"])
	assert.Equal(t, float64(1), stats["today"])
}

func TestConfigEndpointHasNoCredentials(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/config", nil, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Test Board", body["board_name"])
	assert.Equal(t, float64(model.MaxTitleLen), body["max_title"])
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "admin")
}

func TestAdminRoutesRequireSession(t *testing.T) {
	app := newTestApp(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/admin/"},
		{http.MethodPost, "/admin/pins/delete"},
		{http.MethodPost, "/admin/pins/delete-all"},
		{http.MethodGet, "/admin/events"},
	} {
		rec := app.do(t, route.method, route.path, nil, nil, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code, route.path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), route.path)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString("username=admin&password=wrong"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestAdminBulkDelete(t *testing.T) {
	app := newTestApp(t)
	cookies := app.login(t)

	var ids []string
	for i := 0; i < 3; i++ {
		rec := app.do(t, http.MethodPost, "/api/pins/", testDraft(), nil, nil)
		ids = append(ids, decodeBody(t, rec)["pin"].(map[string]any)["id"].(string))
	}

	rec := app.do(t, http.MethodPost, "/admin/pins/delete", map[string]any{"ids": ids[:2]}, cookies, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["deleted"])
	assert.Len(t, app.coordinator.Pins(), 1)
}

func TestAdminDeleteAll(t *testing.T) {
	app := newTestApp(t)
	cookies := app.login(t)

	for i := 0; i < 2; i++ {
		app.do(t, http.MethodPost, "/api/pins/", testDraft(), nil, nil)
	}

	rec := app.do(t, http.MethodPost, "/admin/pins/delete-all", nil, cookies, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, app.coordinator.Pins())
}

func TestAdminCanDeleteAnyPinDirectly(t *testing.T) {
	app := newTestApp(t)
	cookies := app.login(t)

	rec := app.do(t, http.MethodPost, "/api/pins/", testDraft(), nil, nil)
	id := decodeBody(t, rec)["pin"].(map[string]any)["id"].(string)

	// No owner token, but an admin session.
	rec = app.do(t, http.MethodDelete, "/api/pins/"+id, nil, cookies, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBoardPageRenders(t *testing.T) {
	app := newTestApp(t)

	app.do(t, http.MethodPost, "/api/pins/", testDraft(), nil, nil)

	rec := app.do(t, http.MethodGet, "/", nil, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Test Board")
	assert.Contains(t, rec.Body.String(), "Lantern walk")
}

func TestAdminDashboardRenders(t *testing.T) {
	app := newTestApp(t)
	cookies := app.login(t)

	rec := app.do(t, http.MethodGet, "/admin/", nil, cookies, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Moderation")
}

func TestEventLogPageRenders(t *testing.T) {
	app := newTestApp(t)
	cookies := app.login(t)

	rec := app.do(t, http.MethodGet, "/admin/events", nil, cookies, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Event Log")
	// The login itself is on the record.
	assert.Contains(t, rec.Body.String(), "admin logged in")
}

func TestNotFound(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/nope", nil, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Page not found", rec.Body.String())
}
