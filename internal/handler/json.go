// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/olegiv/corkboard/internal/board"
)

// maxBodyBytes caps JSON request bodies. Pins are small; anything
// bigger is abuse.
const maxBodyBytes = 64 * 1024

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}

// writeJSONSuccess writes a JSON success response.
func writeJSONSuccess(w http.ResponseWriter, data map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		data = make(map[string]any)
	}
	data["success"] = true
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON decodes the request body into dst, rejecting unknown
// fields and oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeBoardError maps a board error to the right HTTP status.
func writeBoardError(w http.ResponseWriter, err error) {
	var (
		verr *board.ValidationError
		nerr *board.NotFoundError
		oerr *board.OwnershipError
		aerr *board.AuthorizationError
	)
	switch {
	case errors.As(err, &verr):
		writeJSONError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &nerr):
		writeJSONError(w, http.StatusNotFound, nerr.Error())
	case errors.As(err, &oerr):
		writeJSONError(w, http.StatusForbidden, oerr.Error())
	case errors.As(err, &aerr):
		writeJSONError(w, http.StatusForbidden, aerr.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}
