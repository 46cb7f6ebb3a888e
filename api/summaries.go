package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinbrief/clinbrief/extract"
	"github.com/clinbrief/clinbrief/idgen"
	"github.com/clinbrief/clinbrief/report"
	"github.com/clinbrief/clinbrief/shield"
)

func (s *Server) summariesInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"endpoints": []string{"GET /summaries/{reportID}", "POST /summaries/{reportID}"},
	})
}

// getSummary returns the summarization state of a report. Pending reports
// answer with a null summary rather than an error.
func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reportID")
	if !idgen.ValidPrefixed(report.IDPrefix, id) {
		writeMessage(w, http.StatusBadRequest, "Invalid report id")
		return
	}

	rep, err := s.reports.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, extract.SourceText, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reportId":    rep.ID,
		"status":      rep.Status,
		"summaryText": rep.SummaryText,
	})
}

// retrySummary re-attempts summarization for a report that has none, or
// forces a fresh summary for a completed one.
func (s *Server) retrySummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reportID")
	if !idgen.ValidPrefixed(report.IDPrefix, id) {
		writeMessage(w, http.StatusBadRequest, "Invalid report id")
		return
	}

	rep, err := s.reports.Retry(r.Context(), id)
	if err != nil {
		s.writeError(w, r, extract.SourceText, err)
		return
	}

	shield.GetLogger(r.Context()).Info("summary retry succeeded", "report_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"report": rep})
}
