// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/ManuGH/camagent/internal/camera/fault"
	"github.com/ManuGH/camagent/internal/faultlog"
)

const maxFaultLimit = 1000

// handleListFaults serves the fault journal, newest first.
//
//	GET /api/v1/faults?agent=sim&kind=camera_exception&since=2025-01-02T15:04:05Z&limit=20
func (s *Server) handleListFaults(w http.ResponseWriter, r *http.Request) {
	if s.deps.Faults == nil {
		writeError(w, r, errFaultsDisabled)
		return
	}
	q := faultlog.Query{
		Agent: r.URL.Query().Get("agent"),
		Kind:  r.URL.Query().Get("kind"),
	}
	if q.Kind != "" && !knownKind(q.Kind) {
		writeBadRequest(w, r, "unknown fault kind "+strconv.Quote(q.Kind))
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxFaultLimit {
			writeBadRequest(w, r, "limit must be between 1 and "+strconv.Itoa(maxFaultLimit))
			return
		}
		q.Limit = n
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, r, "since must be an RFC 3339 timestamp")
			return
		}
		q.Since = since
	}

	entries, err := s.deps.Faults.List(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []faultlog.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"faults": entries})
}

func knownKind(kind string) bool {
	return slices.Contains(fault.Kinds(), fault.Kind(kind))
}
