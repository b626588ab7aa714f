// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/camagent/internal/camera/agent"
	"github.com/ManuGH/camagent/internal/camera/dispatch"
	"github.com/ManuGH/camagent/internal/log"
)

var (
	errNotAcquired     = errors.New("camera backend is not open")
	errCallbackTimeout = errors.New("camera did not answer in time")
	errFaultsDisabled  = errors.New("fault journal disabled")
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	History   string `json:"history,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a camera error onto an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, agent.ErrUnknownBackend):
		return http.StatusNotFound, "unknown_backend"
	case errors.Is(err, errNotAcquired), errors.Is(err, agent.ErrBackendNotAcquired):
		return http.StatusConflict, "not_open"
	case errors.Is(err, agent.ErrInvalidated):
		return http.StatusConflict, "invalidated"
	case errors.Is(err, agent.ErrCaptureRejected):
		return http.StatusConflict, "capture_rejected"
	case errors.Is(err, agent.ErrCaptureAborted):
		return http.StatusBadGateway, "capture_failed"
	case errors.Is(err, dispatch.ErrQueueFull):
		return http.StatusServiceUnavailable, "queue_full"
	case errors.Is(err, agent.ErrClosed), errors.Is(err, dispatch.ErrDispatchEnded):
		return http.StatusServiceUnavailable, "closed"
	case errors.Is(err, agent.ErrSettingsUnavailable):
		return http.StatusServiceUnavailable, "settings_unavailable"
	case errors.Is(err, errFaultsDisabled):
		return http.StatusServiceUnavailable, "faults_disabled"
	case errors.Is(err, dispatch.ErrWaitTimeout),
		errors.Is(err, agent.ErrCaptureTimeout),
		errors.Is(err, errCallbackTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps err and writes it. Server-side failures are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, name := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.FromContext(r.Context()).Warn().Err(err).Str("code", name).Msg("camera request failed")
	}
	writeJSON(w, code, errorBody{
		Error:     err.Error(),
		Code:      name,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// writeBadRequest reports a malformed request.
func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:     msg,
		Code:      "bad_request",
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}
