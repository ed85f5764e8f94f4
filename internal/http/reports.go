package httpapi

import (
	"net/http"

	"github.com/example/yinsee/internal/models"
)

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Reports.All(r.Context()))
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var body models.TesterReport
	if err := decodeJSON(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	rep, err := s.svc.SubmitReport(r.Context(), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) handleResetReports(w http.ResponseWriter, r *http.Request) {
	s.svc.ResetReports(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportReports(w http.ResponseWriter, r *http.Request) {
	raw, err := s.svc.Reports.ExportJSON(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="tester-reports.json"`)
	_, _ = w.Write(raw)
}

func (s *Server) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.svc.Reports.Summary(r.Context())))
}
