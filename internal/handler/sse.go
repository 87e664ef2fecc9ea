// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/olegiv/corkboard/internal/feed"
)

// keepAliveInterval is how often an SSE comment is sent to hold idle
// connections open through proxies.
const keepAliveInterval = 30 * time.Second

// FeedHandler streams pin changes to browsers over Server-Sent Events.
type FeedHandler struct {
	broker *feed.Broker
	logger *slog.Logger
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(broker *feed.Broker, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{broker: broker, logger: logger}
}

// Stream serves the change feed. GET /api/feed
func (h *FeedHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Tell the client it is connected before the first change arrives.
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	events, unsubscribe := h.broker.Subscribe()
	defer unsubscribe()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("encoding feed event", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			flusher.Flush()
		}
	}
}
