package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gitlab.com/tinyland/lab/sysmon-agent/pkg/collectors"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/history"
	"gitlab.com/tinyland/lab/sysmon-agent/pkg/metrics"
)

// Coordinator is the view of the poll coordinator the API needs.
type Coordinator interface {
	Snapshot() map[string]metrics.Reading
	Reading(sourceID string) (metrics.Reading, bool)
	Registry() *collectors.Registry
}

// History is the view of the reading store the API needs.
type History interface {
	Query(ctx context.Context, sourceID string, since, until time.Time, limit int) ([]history.Row, error)
	Sources(ctx context.Context) ([]string, error)
}

type handler struct {
	coord   Coordinator
	history History
	log     *slog.Logger
}

// ErrorResponse is the JSON body for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is one collector's run statistics.
type StatusResponse struct {
	SourceID    string    `json:"source_id"`
	Healthy     bool      `json:"healthy"`
	LastRun     time.Time `json:"last_run"`
	LastError   string    `json:"last_error,omitempty"`
	RunCount    int64     `json:"run_count"`
	ErrorCount  int64     `json:"error_count"`
	LastLatency string    `json:"last_latency"`
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listReadings handles GET /v1/readings.
func (h *handler) listReadings(w http.ResponseWriter, r *http.Request) {
	snap := h.coord.Snapshot()
	out := make([]metrics.Reading, 0, len(snap))
	for _, rd := range snap {
		out = append(out, rd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	respondJSON(w, http.StatusOK, out)
}

// getReading handles GET /v1/readings/{source}. Source IDs contain
// slashes (disk_use:/media/share), so the route is a wildcard.
func (h *handler) getReading(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "*")
	if sourceID == "" {
		respondJSONError(w, http.StatusBadRequest, "missing source id")
		return
	}
	rd, ok := h.coord.Reading(sourceID)
	if !ok {
		respondJSONError(w, http.StatusNotFound, "unknown source: "+sourceID)
		return
	}
	respondJSON(w, http.StatusOK, rd)
}

// listStatus handles GET /v1/status.
func (h *handler) listStatus(w http.ResponseWriter, r *http.Request) {
	statuses := h.coord.Registry().AllStatus()
	out := make([]StatusResponse, 0, len(statuses))
	for _, s := range statuses {
		resp := StatusResponse{
			SourceID:    s.SourceID,
			Healthy:     s.Healthy,
			LastRun:     s.LastRun,
			RunCount:    s.RunCount,
			ErrorCount:  s.ErrorCount,
			LastLatency: s.LastLatency.String(),
		}
		if s.LastError != nil {
			resp.LastError = s.LastError.Error()
		}
		out = append(out, resp)
	}
	respondJSON(w, http.StatusOK, out)
}

// getHistory handles GET /v1/history/{source}?since=RFC3339&until=RFC3339&limit=N.
func (h *handler) getHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondJSONError(w, http.StatusNotFound, "history store is disabled")
		return
	}
	sourceID := chi.URLParam(r, "*")
	if sourceID == "" {
		respondJSONError(w, http.StatusBadRequest, "missing source id")
		return
	}

	q := r.URL.Query()
	var since, until time.Time
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "invalid since: "+err.Error())
			return
		}
		since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "invalid until: "+err.Error())
			return
		}
		until = t
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondJSONError(w, http.StatusBadRequest, "invalid limit: "+v)
			return
		}
		limit = n
	}

	rows, err := h.history.Query(r.Context(), sourceID, since, until, limit)
	if err != nil {
		h.log.Error("history query failed", "source", sourceID, "error", err)
		respondJSONError(w, http.StatusInternalServerError, "history query failed")
		return
	}
	if rows == nil {
		rows = []history.Row{}
	}
	respondJSON(w, http.StatusOK, rows)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
