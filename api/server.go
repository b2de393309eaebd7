// Package api serves the duel over HTTP: current snapshots, a live SSE feed
// of snapshot updates per run, the audited raw log, and a status endpoint.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/agentduel/agentduel/observe"
	auditstore "github.com/agentduel/agentduel/observe/store"
	"github.com/agentduel/agentduel/stream"
)

// RunInfo identifies one lane of the duel for the status endpoint.
type RunInfo struct {
	RunID    string `json:"runId"`
	Side     string `json:"side"`
	Provider string `json:"provider"`
}

// RunSource exposes the live duel to the HTTP layer.
type RunSource interface {
	Goal() string
	Runs() []RunInfo
	RunSnapshot(runID string) (stream.Snapshot, bool)
	Uptime() time.Duration
}

type Config struct {
	Source RunSource
	// Audit is optional; without it the rawlog endpoint reports 404.
	Audit auditstore.Store
}

type Server struct {
	cfg Config
	hub *snapshotHub
	mux *http.ServeMux
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("run source is required")
	}
	s := &Server{
		cfg: cfg,
		hub: newSnapshotHub(),
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /api/duel/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/runs/{id}", s.handleRunSnapshot)
	s.mux.HandleFunc("GET /api/runs/{id}/stream", s.handleRunStream)
	s.mux.HandleFunc("GET /api/runs/{id}/rawlog", s.handleRunRawLog)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Publish feeds one run's fresh snapshot to every attached watcher. Wire it
// as the runner's snapshot callback.
func (s *Server) Publish(runID string, snap stream.Snapshot) {
	s.hub.publish(runID, snap)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	uptime := s.cfg.Source.Uptime()
	status := map[string]any{
		"goal":          s.cfg.Source.Goal(),
		"runs":          s.cfg.Source.Runs(),
		"uptimeSeconds": int64(uptime.Seconds()),
		"uptime":        humanize.RelTime(time.Now().Add(-uptime), time.Now(), "", ""),
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) lookupSnapshot(runID string) (stream.Snapshot, bool) {
	// The hub's copy is at least as fresh as the runner's; prefer it so a
	// finished runner keeps answering from the last published state.
	if snap, ok := s.hub.get(runID); ok {
		return snap, true
	}
	return s.cfg.Source.RunSnapshot(runID)
}

func (s *Server) handleRunSnapshot(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("id"))
	snap, ok := s.lookupSnapshot(runID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown run %q", runID))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("id"))
	if _, ok := s.lookupSnapshot(runID); !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown run %q", runID))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := s.hub.subscribe(runID, 128)
	defer s.hub.unsubscribe(runID, id)

	// Send the current state before any live updates so the watcher never
	// starts blank.
	if snap, ok := s.lookupSnapshot(runID); ok {
		writeSSE(w, snap)
		flusher.Flush()
	}

	ping := time.NewTicker(15 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return // client disconnected
			}
			flusher.Flush()
		case snap := <-ch:
			if !writeSSE(w, snap) {
				return
			}
			flusher.Flush()
			if snap.IsFinished {
				return
			}
		}
	}
}

func (s *Server) handleRunRawLog(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Audit == nil {
		writeError(w, http.StatusNotFound, errors.New("audit log not configured"))
		return
	}
	runID := strings.TrimSpace(r.PathValue("id"))
	events, err := s.cfg.Audit.ListEventsByRun(r.Context(), runID, auditstore.ListQuery{
		Kind: observe.KindRawLog,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runId": runID, "events": events})
}

func writeSSE(w http.ResponseWriter, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return false
	}
	if _, err := w.Write(data); err != nil {
		return false
	}
	if _, err := w.Write([]byte("\n\n")); err != nil {
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, map[string]any{"error": msg})
}
