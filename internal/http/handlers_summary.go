package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"visitas/internal/core"
)

func (s *Server) handleWeekSummary(w http.ResponseWriter, r *http.Request) {
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		offset = n
	}

	today := time.Now().In(s.loc)
	key := fmt.Sprintf("week:%s:%d", today.Format("2006-01-02"), offset)
	if summary, ok := s.weekCache.Get(key); ok {
		writeJSON(w, http.StatusOK, toWeekSummaryDTO(summary))
		return
	}

	summary := core.SummarizeWeek(s.store.Visits(), today, offset)
	s.weekCache.Set(key, summary)
	writeJSON(w, http.StatusOK, toWeekSummaryDTO(summary))
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	today := time.Now().In(s.loc)
	key := "month:" + today.Format("2006-01-02")
	if summary, ok := s.monthCache.Get(key); ok {
		writeJSON(w, http.StatusOK, toMonthSummaryDTO(summary))
		return
	}

	summary := core.SummarizeMonth(s.store.Visits(), today)
	s.monthCache.Set(key, summary)
	writeJSON(w, http.StatusOK, toMonthSummaryDTO(summary))
}

type monthlyReportRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// handleMonthlyReport queues a report for the worker rather than building it
// inline. Year and month may both be zero, in which case the worker picks the
// reference month itself.
func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	if s.requester == nil {
		writeError(w, http.StatusServiceUnavailable, "report queue not configured")
		return
	}

	var req monthlyReportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if (req.Year == 0) != (req.Month == 0) {
		writeError(w, http.StatusBadRequest, "year and month must be given together")
		return
	}
	if req.Month != 0 && (req.Month < 1 || req.Month > 12) {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	if err := s.requester.PublishSummaryRequest(r.Context(), req.Year, req.Month); err != nil {
		writeError(w, http.StatusBadGateway, "failed to queue report: "+err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
