// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package faultlog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/camagent/internal/camera/fault"
	xglog "github.com/ManuGH/camagent/internal/log"
	"github.com/ManuGH/camagent/internal/metrics"
	"github.com/rs/zerolog"
)

const defaultWriteTimeout = 5 * time.Second

// Recorder is a fault.Handler that journals every fault, rewrites the dump
// and forwards the fault to an optional follow-up handler.
type Recorder struct {
	journal  *Journal
	dumpPath string
	next     fault.Handler
	timeout  time.Duration
	logger   zerolog.Logger

	mu   sync.Mutex
	last *Entry
	errs int
}

// RecorderOptions configures a Recorder. Journal and DumpPath are each optional.
type RecorderOptions struct {
	Journal  *Journal
	DumpPath string
	// Next runs after the fault has been persisted.
	Next   fault.Handler
	Logger zerolog.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(opts RecorderOptions) *Recorder {
	return &Recorder{
		journal:  opts.Journal,
		dumpPath: opts.DumpPath,
		next:     opts.Next,
		timeout:  defaultWriteTimeout,
		logger:   opts.Logger,
	}
}

// HandleFault implements fault.Handler.
func (r *Recorder) HandleFault(f *fault.Fault) {
	e := EntryFrom(f)
	err := r.persist(e)
	metrics.IncFaultRecorded(e.Agent, e.Kind, err)

	ev := r.logger.Error()
	if err != nil {
		ev = ev.AnErr("persist_error", err)
	}
	ev.Str(xglog.FieldEvent, "camera.fault_recorded").
		Str(xglog.FieldFaultID, e.ID).
		Str(xglog.FieldBackend, e.Agent).
		Str("kind", e.Kind).
		Str(xglog.FieldHistory, e.History).
		Str("error", e.Error).
		Msg("camera fault recorded")

	r.mu.Lock()
	r.last = &e
	if err != nil {
		r.errs++
	}
	r.mu.Unlock()

	if r.next != nil {
		r.next.HandleFault(f)
	}
}

func (r *Recorder) persist(e Entry) error {
	var errs []error
	if r.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		errs = append(errs, r.journal.Append(ctx, e))
		cancel()
	}
	if r.dumpPath != "" {
		errs = append(errs, WriteDump(r.dumpPath, e))
	}
	return errors.Join(errs...)
}

// Last returns the most recently handled fault.
func (r *Recorder) Last() (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Entry{}, false
	}
	return *r.last, true
}

// PersistErrors counts faults that could not be fully persisted.
func (r *Recorder) PersistErrors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs
}
