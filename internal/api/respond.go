// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/wrenhall/railatlas/internal/logging"
)

// envelope is the uniform JSON response shape: exactly one of Data or
// Error is set.
type envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes used by the HTTP surface.
const (
	codeNotFound    = "not_found"
	codeBadRequest  = "bad_request"
	codeConflict    = "conflict"
	codeInternal    = "internal_error"
	codeUnavailable = "unavailable"
)

func respondData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Error: &apiError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}
