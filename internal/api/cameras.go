// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/camagent/internal/camera/agent"
	"github.com/ManuGH/camagent/internal/camera/device"
	"github.com/ManuGH/camagent/internal/camera/state"
	"github.com/ManuGH/camagent/internal/log"
	"github.com/go-chi/chi/v5"
)

const (
	defaultPreviewTarget = "http"
	maxBodyBytes         = 64 << 10
)

// cameraStatus is the JSON view of one backend.
type cameraStatus struct {
	Backend  string `json:"backend"`
	Open     bool   `json:"open"`
	Refs     int    `json:"refs"`
	State    string `json:"state"`
	Activity string `json:"activity"`
	Invalid  bool   `json:"invalid"`
	History  string `json:"history,omitempty"`
}

// openResult reports which open callback fired.
type openResult struct {
	Outcome string `json:"outcome"`
	Index   int    `json:"index"`
	Error   string `json:"error,omitempty"`
	History string `json:"history,omitempty"`
}

type openRequest struct {
	Index int `json:"index"`
}

type previewRequest struct {
	Target string `json:"target"`
}

// previewTarget names the surface frames are streamed to.
type previewTarget string

func (t previewTarget) TargetID() string { return string(t) }

func (s *Server) status(backend string, withHistory bool) cameraStatus {
	st := cameraStatus{
		Backend:  backend,
		Open:     s.isHeld(backend),
		Refs:     s.deps.Registry.Refs(backend),
		State:    state.Unopened.String(),
		Activity: state.ActivityUnopened.String(),
	}
	if a, ok := s.deps.Registry.Lookup(backend); ok {
		st.State = a.State().String()
		st.Activity = a.Activity().String()
		st.Invalid = a.Invalid()
		if withHistory {
			st.History = a.History()
		}
	}
	return st
}

func (s *Server) handleListCameras(w http.ResponseWriter, _ *http.Request) {
	backends := s.deps.Registry.Backends()
	out := make([]cameraStatus, 0, len(backends))
	for _, b := range backends {
		out = append(out, s.status(b, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cameras": out})
}

func (s *Server) handleGetCamera(w http.ResponseWriter, r *http.Request) {
	backend := chi.URLParam(r, "backend")
	if !s.known(backend) {
		writeError(w, r, agent.ErrUnknownBackend)
		return
	}
	writeJSON(w, http.StatusOK, s.status(backend, true))
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	req := openRequest{Index: s.cfg.DefaultIndex}
	if !decodeOptional(w, r, &req) {
		return
	}
	if req.Index < 0 {
		writeBadRequest(w, r, "index must not be negative")
		return
	}
	a, err := s.acquire(chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	results := make(chan openResult, 1)
	if err := a.OpenDevice(s.callbacks, req.Index, openCallbacks(results)); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeOpenResult(w, r, a, results)
}

func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	a, err := s.heldAgent(chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	results := make(chan openResult, 1)
	if err := a.Reconnect(s.callbacks, openCallbacks(results)); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeOpenResult(w, r, a, results)
}

func (s *Server) writeOpenResult(w http.ResponseWriter, r *http.Request, a *agent.Agent, results <-chan openResult) {
	res, err := await(r.Context(), callbackWait(a), results)
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusOK
	switch res.Outcome {
	case "already_open":
		code = http.StatusConflict
	case "disabled":
		code = http.StatusForbidden
	case "failure":
		code = http.StatusBadGateway
	}
	writeJSON(w, code, res)
}

func openCallbacks(results chan<- openResult) agent.OpenCallbacks {
	return agent.OpenCallbacks{
		OnOpened: func(i int) {
			results <- openResult{Outcome: "opened", Index: i}
		},
		OnAlreadyOpen: func(i int, hist string) {
			results <- openResult{Outcome: "already_open", Index: i, History: hist}
		},
		OnDisabled: func(i int, hist string) {
			results <- openResult{Outcome: "disabled", Index: i, History: hist}
		},
		OnFailure: func(i int, err error, hist string) {
			results <- openResult{Outcome: "failure", Index: i, Error: err.Error(), History: hist}
		},
	}
}

// handleClose releases the device and the server's reference. It also works
// on an invalid agent, which is how a client recovers from a fault.
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	backend := chi.URLParam(r, "backend")
	a, err := s.heldAgent(backend)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.CloseDevice(true); err != nil {
		s.logger.Warn().Err(err).Str("backend", backend).Msg("close device failed, releasing anyway")
	}
	if err := s.release(backend); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"released": true})
}

func (s *Server) handleApplySettings(w http.ResponseWriter, r *http.Request) {
	a, err := s.heldAgent(chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var settings device.Settings
	if !decode(w, r, &settings) {
		return
	}
	if !a.ApplySettings(settings) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]bool{"accepted": false})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	a, err := s.heldAgent(chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	settings, err := a.Settings()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleStartPreview(w http.ResponseWriter, r *http.Request) {
	a, err := s.heldAgent(chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req previewRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	if req.Target == "" {
		req.Target = defaultPreviewTarget
	}
	if err := a.SetPreviewTarget(previewTarget(req.Target), true); err != nil {
		writeError(w, r, err)
		return
	}
	started := make(chan struct{}, 1)
	if err := a.StartPreview(s.callbacks, func() { started <- struct{}{} }); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := await(r.Context(), callbackWait(a), started); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": a.State().String(), "target": req.Target})
}

func (s *Server) handleStopPreview(w http.ResponseWriter, r *http.Request) {
	a, err := s.heldAgent(chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.StopPreview(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": a.State().String()})
}

func (s *Server) handleAutoFocus(w http.ResponseWriter, r *http.Request) {
	a, err := s.heldAgent(chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !requirePreview(w, r, a) {
		return
	}
	focused := make(chan bool, 1)
	if err := a.AutoFocus(s.callbacks, func(ok bool) { focused <- ok }); err != nil {
		writeError(w, r, err)
		return
	}
	ok, err := await(r.Context(), callbackWait(a), focused)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"focused": ok})
}

func (s *Server) handleCancelAutoFocus(w http.ResponseWriter, r *http.Request) {
	a, err := s.heldAgent(chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.CancelAutoFocus(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": a.State().String()})
}

// handleCapture takes one still and returns the JPEG.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	a, err := s.heldAgent(chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !requirePreview(w, r, a) {
		return
	}
	type still struct {
		data []byte
		err  error
	}
	done := make(chan still, 1)
	if err := a.TakePicture(s.callbacks, agent.CaptureCallbacks{
		JPEG:      func(data []byte) { done <- still{data: data} },
		OnFailure: func(err error) { done <- still{err: err} },
	}); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := await(r.Context(), callbackWait(a), done)
	if err == nil {
		err = res.err
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.data)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	s.simple(w, r, (*agent.Agent).Unlock)
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	s.simple(w, r, (*agent.Agent).Lock)
}

// simple runs a fire-and-forget operation and answers 202.
func (s *Server) simple(w http.ResponseWriter, r *http.Request, op func(*agent.Agent) error) {
	a, err := s.heldAgent(chi.URLParam(r, "backend"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := op(a); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
}

// requirePreview answers 409 at once unless preview is running, instead of
// leaving the request queued until the operation timeout.
func requirePreview(w http.ResponseWriter, r *http.Request, a *agent.Agent) bool {
	if a.State().AtLeast(state.PreviewActive) {
		return true
	}
	writeJSON(w, http.StatusConflict, errorBody{
		Error:     "preview is not active",
		Code:      "preview_inactive",
		RequestID: log.RequestIDFromContext(r.Context()),
	})
	return false
}

// callbackWait bounds how long a handler waits for a callback. The job may
// spend one operation timeout on the dispatch goroutine before the worker
// spends another on the device.
func callbackWait(a *agent.Agent) time.Duration {
	return 2 * a.Timeout()
}

// await receives one value from ch within timeout.
func await[T any](ctx context.Context, timeout time.Duration, ch <-chan T) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, errCallbackTimeout
	}
}

// decode reads a required JSON body, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeBadRequest(w, r, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// decodeOptional is decode for routes whose body may be empty.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, r, "invalid request body: "+strings.TrimPrefix(err.Error(), "json: "))
		return false
	}
	return true
}
