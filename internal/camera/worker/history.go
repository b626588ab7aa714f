// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package worker

import (
	"strconv"
	"strings"
	"sync"
)

// DefaultHistoryLength is the number of action codes kept for diagnostics.
const DefaultHistoryLength = 400

// history is a ring of recently processed action codes.
type history struct {
	mu    sync.Mutex
	id    uint64
	codes []Action
	next  int
	full  bool
}

func newHistory(n int) *history {
	if n <= 0 {
		n = DefaultHistoryLength
	}
	return &history{codes: make([]Action, n)}
}

func (h *history) add(a Action) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.id++
	h.codes[h.next] = a
	h.next++
	if h.next == len(h.codes) {
		h.next = 0
		h.full = true
	}
}

// String renders the trail oldest first as HIST_ID<n>_<code>..._HEND, where
// n counts every action ever recorded.
func (h *history) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var b strings.Builder
	b.WriteString("HIST_ID")
	b.WriteString(strconv.FormatUint(h.id, 10))
	write := func(a Action) {
		b.WriteByte('_')
		b.WriteString(strconv.Itoa(int(a)))
	}
	if h.full {
		for _, a := range h.codes[h.next:] {
			write(a)
		}
	}
	for _, a := range h.codes[:h.next] {
		write(a)
	}
	b.WriteString("_HEND")
	return b.String()
}
