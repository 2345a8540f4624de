package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/reviewradar/review-radar/internal/pkg/errors"
)

// progressFrame is the wire shape of one SSE data line.
type progressFrame struct {
	P      int      `json:"p"`
	M      string   `json:"m"`
	Answer string   `json:"answer,omitempty"`
	Model  string   `json:"model,omitempty"`
	Pros   []string `json:"pros,omitempty"`
	Cons   []string `json:"cons,omitempty"`
	Rating float64  `json:"rating,omitempty"`
	Error  bool     `json:"error,omitempty"`
}

// handleAnalyze streams analysis progress for ?product= as server-sent
// events. The stream carries exactly one terminal frame.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	product := r.URL.Query().Get("product")

	flusher, ok := w.(http.Flusher)
	if !ok {
		apperrors.WriteError(w, apperrors.InternalError("streaming not supported", nil))
		return
	}

	// Rejected queries stream a terminal error frame like any other
	// failure, so clients only ever parse event frames.
	events := s.pipeline.Run(r.Context(), product)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	s.metrics.ActiveStreams.Inc()
	defer s.metrics.ActiveStreams.Dec()

	for {
		select {
		case <-r.Context().Done():
			// Client went away; the run's context is r.Context, so the
			// pipeline stops on its own.
			return
		case ev, open := <-events:
			if !open {
				return
			}

			frame := progressFrame{P: ev.Percent, M: ev.Message}
			if ev.Report != nil {
				frame.Answer = ev.Report.Answer
				frame.Model = ev.Report.Model
				frame.Pros = ev.Report.Pros
				frame.Cons = ev.Report.Cons
				frame.Rating = ev.Report.Rating
			}
			if ev.Err != nil {
				frame.Error = true
			}

			data, err := json.Marshal(frame)
			if err != nil {
				s.log.Error("frame marshal failed", "error", err.Error())
				return
			}

			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// statusResponse is the operational status shape at /v1/status.
type statusResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Cache        cacheStatus       `json:"cache"`
	Dependencies map[string]string `json:"dependencies"`
	Providers    []string          `json:"genai_providers"`
}

type cacheStatus struct {
	Backend  string `json:"backend"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// handleStatus reports per-dependency health and cache occupancy.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	deps := make(map[string]string)

	if err := s.search.Ping(ctx); err != nil {
		deps[s.search.Name()] = "unavailable: " + err.Error()
	} else {
		deps[s.search.Name()] = "ok"
	}
	for name, state := range s.genai.Health(ctx) {
		deps[name] = state
	}
	deps["bus"] = s.cfg.Bus.Type

	stats := s.cache.Stats(ctx)

	status := "ok"
	if !s.Ready() {
		status = "starting"
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:  status,
		Version: s.version,
		Cache: cacheStatus{
			Backend:  stats.Backend,
			Size:     stats.Size,
			Capacity: stats.Capacity,
		},
		Dependencies: deps,
		Providers:    s.genai.Providers(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
