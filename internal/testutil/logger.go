// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

type (
	// LogRecord is one captured log line.
	LogRecord struct {
		Level   slog.Level
		Message string
		Attrs   map[string]string
	}

	// CaptureHandler is a slog.Handler that keeps every record in memory.
	CaptureHandler struct {
		mu      *sync.Mutex
		records *[]LogRecord
		attrs   []slog.Attr
	}
)

// NewCaptureLogger returns a debug-level logger and the handler recording it.
func NewCaptureLogger() (*slog.Logger, *CaptureHandler) {
	h := &CaptureHandler{mu: &sync.Mutex{}, records: &[]LogRecord{}}
	return slog.New(h), h
}

// Enabled reports true for every level.
func (h *CaptureHandler) Enabled(context.Context, slog.Level) bool { return true }

// Handle records r.
func (h *CaptureHandler) Handle(_ context.Context, r slog.Record) error {
	rec := LogRecord{Level: r.Level, Message: r.Message, Attrs: make(map[string]string)}
	for _, a := range h.attrs {
		rec.Attrs[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[a.Key] = a.Value.String()
		return true
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.records = append(*h.records, rec)
	return nil
}

// WithAttrs returns a handler sharing the record store with attrs attached.
func (h *CaptureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &CaptureHandler{mu: h.mu, records: h.records, attrs: merged}
}

// WithGroup ignores groups; captured attributes stay flat.
func (h *CaptureHandler) WithGroup(string) slog.Handler { return h }

// Records returns a copy of the captured records.
func (h *CaptureHandler) Records() []LogRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]LogRecord(nil), *h.records...)
}

// Count returns the number of records at level whose message contains substr.
func (h *CaptureHandler) Count(level slog.Level, substr string) int {
	n := 0
	for _, r := range h.Records() {
		if r.Level == level && strings.Contains(r.Message, substr) {
			n++
		}
	}
	return n
}
