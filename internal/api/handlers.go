package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/hookd/internal/journal"
)

const (
	defaultDispatchLimit = 50
	maxDispatchLimit     = 1000
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	table, err := s.deps.Hooks.HookTable()
	if err != nil {
		s.logger.Error("failed to read hook table", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read hook table")
		return
	}

	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Hooks:         len(table),
		Libraries:     len(s.deps.Libraries),
	})
}

func (s *Server) handleHooks(w http.ResponseWriter, r *http.Request) {
	table, err := s.deps.Hooks.HookTable()
	if err != nil {
		s.logger.Error("failed to read hook table", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read hook table")
		return
	}

	libraries := s.deps.Libraries
	if libraries == nil {
		libraries = []string{}
	}
	respondJSON(w, http.StatusOK, HooksResponse{Libraries: libraries, Hooks: table})
}

// handleDispatches handles GET /dispatches?limit=N&hook=name.
func (s *Server) handleDispatches(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		s.writeError(w, http.StatusNotFound, "journal disabled")
		return
	}

	limit := defaultDispatchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxDispatchLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := s.deps.Journal.Recent(r.Context(), r.URL.Query().Get("hook"), limit)
	if err != nil {
		s.logger.Error("failed to read journal", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	respondJSON(w, http.StatusOK, DispatchesResponse{Dispatches: entries})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Metrics == nil {
		s.writeError(w, http.StatusNotFound, "metrics disabled")
		return
	}
	s.deps.Metrics.ServeHTTP(w, r)
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
