package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// SubscribeEvents handles GET /v1/sessions/{id}/events. It streams snapshot
// diffs as server-sent events, starting with the full current snapshot.
// ?watch=state,node,row,participants,ui keeps only diffs touching those fields.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if _, err := s.host.Manager(sessionID); err != nil {
		s.writeError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	snaps, err := s.host.Transport().Snapshots(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// Read after subscribing so no change falls between the two.
	current, err := s.host.Snapshot(sessionID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var watch []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, f := range strings.Split(raw, ",") {
			watch = append(watch, strings.TrimSpace(f))
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	s.logger.Info("SSE client subscribed", "session_id", sessionID)

	last := current
	s.writeDiff(w, domain.Diff(nil, &current))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE client disconnected", "session_id", sessionID)
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			if snap.Sequence <= last.Sequence {
				continue
			}
			diff := domain.Diff(&last, &snap)
			last = snap
			if diff == nil || !watched(diff, watch) {
				continue
			}
			s.writeDiff(w, diff)
			flusher.Flush()
		}
	}
}

func (s *Server) writeDiff(w http.ResponseWriter, diff *domain.SnapshotDiff) {
	if diff == nil {
		return
	}
	data, err := json.Marshal(diff)
	if err != nil {
		s.logger.Error("diff encode failed", "session_id", diff.SessionID, "err", err)
		return
	}
	fmt.Fprintf(w, "event: diff\ndata: %s\n\n", data)
}

func watched(d *domain.SnapshotDiff, fields []string) bool {
	if len(fields) == 0 {
		return true
	}
	for _, f := range fields {
		switch f {
		case "state":
			if d.State != nil {
				return true
			}
		case "node":
			if d.ActiveNode != nil || d.AllowedChildren != nil {
				return true
			}
		case "row":
			if d.ActiveRow != nil || d.ActiveRowDataIndex != nil {
				return true
			}
		case "participants":
			if d.ActiveParticipant != nil || d.Participants != nil {
				return true
			}
		case "ui":
			if d.LastUICommand != nil {
				return true
			}
		}
	}
	return false
}

// SubscribeReloads handles GET /v1/events. It streams the names of changed
// graph documents when the loader can watch its backend.
func (s *Server) SubscribeReloads(w http.ResponseWriter, r *http.Request) {
	watcher, ok := s.host.Loader().(ports.Watchable)
	if !ok {
		s.writeJSON(w, http.StatusNotImplemented, errorBody("loader does not support watching"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	events, err := watcher.Watch(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case name, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: reload\ndata: %s\n\n", name)
			flusher.Flush()
		}
	}
}
