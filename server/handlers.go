// Package server exposes the HTTP surface: health, status, metrics, the
// dachistream log/buffer feeds, and scheduler controls.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/dachi-stream/backend/dachistream"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db     *sql.DB
	engine *dachistream.Engine
	bcast  *Broadcaster
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(db *sql.DB, engine *dachistream.Engine, bcast *Broadcaster) *Handlers {
	return &Handlers{db: db, engine: engine, bcast: bcast}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.Any("err", err))
	}
}

// HandleHealthz reports process liveness.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// HandleReadyz reports readiness (database reachable).
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			writeJSON(w, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, map[string]string{"status": "ready"})
}

// HandleStatus returns the engine's current state snapshot.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.engine.State())
}

// HandleLogs returns the bounded event log, most-recent-last.
func (h *Handlers) HandleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.engine.Logs())
}

// HandleBuffer returns the messages accumulated in the current cycle.
func (h *Handlers) HandleBuffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.engine.BufferMessages())
}

// HandlePause halts cycle processing (ingestion continues).
func (h *Handlers) HandlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.engine.Pause()
	writeJSON(w, h.engine.State())
}

// HandleResume re-enables cycle processing.
func (h *Handlers) HandleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.engine.Resume()
	writeJSON(w, h.engine.State())
}

// HandleInterval updates the cycle cadence. Body: {"seconds": n}.
func (h *Handlers) HandleInterval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Seconds int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.engine.UpdateCycleInterval(body.Seconds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, h.engine.State())
}

// HandleEvents streams state snapshots over Server-Sent Events, starting with
// the current state.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	updates, cancel := h.bcast.Subscribe()
	defer cancel()

	enc := json.NewEncoder(w)
	send := func(st dachistream.State) bool {
		if _, err := w.Write([]byte("data: ")); err != nil {
			return false
		}
		if err := enc.Encode(st); err != nil {
			return false
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(h.engine.State()) {
		return
	}
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-updates:
			if !send(st) {
				return
			}
		}
	}
}
