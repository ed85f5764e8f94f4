package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/yinsee/internal/geo"
	"github.com/example/yinsee/internal/marketplace"
)

// Locator resolves a client hint (its IP) to an area.
type Locator interface {
	Resolve(ctx context.Context, hint string) geo.Resolution
}

type Server struct {
	svc     *marketplace.Service
	locator Locator
	stream  http.Handler
	logger  *slog.Logger
	mux     *mux.Router
}

// NewServer wires the routes. locator and stream may be nil; the matching
// routes then report the location fallback or 404.
func NewServer(svc *marketplace.Service, locator Locator, stream http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, locator: locator, stream: stream, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/requests", s.handleListRequests).Methods(http.MethodGet)
	api.HandleFunc("/requests", s.handlePostRequest).Methods(http.MethodPost)
	api.HandleFunc("/requests/open", s.handleBrowse).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id}/connect", s.handleConnect).Methods(http.MethodPost)

	api.HandleFunc("/provider", s.handleGetProvider).Methods(http.MethodGet)
	api.HandleFunc("/provider", s.handleCreateProvider).Methods(http.MethodPost)
	api.HandleFunc("/provider", s.handleResetProvider).Methods(http.MethodDelete)
	api.HandleFunc("/provider/topup", s.handleTopUp).Methods(http.MethodPost)
	api.HandleFunc("/provider/dashboard", s.handleDashboard).Methods(http.MethodGet)

	api.HandleFunc("/feedback", s.handleListFeedback).Methods(http.MethodGet)
	api.HandleFunc("/feedback", s.handleAddFeedback).Methods(http.MethodPost)

	api.HandleFunc("/taxi/requests", s.handleListTaxi).Methods(http.MethodGet)
	api.HandleFunc("/taxi/requests", s.handlePostTaxi).Methods(http.MethodPost)
	api.HandleFunc("/taxi/requests/open", s.handleBrowseTaxi).Methods(http.MethodGet)
	api.HandleFunc("/taxi/requests/{id}/connect", s.handleConnectTaxi).Methods(http.MethodPost)
	api.HandleFunc("/taxi/credentials", s.handleGetCredentials).Methods(http.MethodGet)
	api.HandleFunc("/taxi/credentials", s.handleSubmitCredentials).Methods(http.MethodPost)

	api.HandleFunc("/reports", s.handleListReports).Methods(http.MethodGet)
	api.HandleFunc("/reports", s.handleSubmitReport).Methods(http.MethodPost)
	api.HandleFunc("/reports", s.handleResetReports).Methods(http.MethodDelete)
	api.HandleFunc("/reports/export", s.handleExportReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/summary", s.handleReportSummary).Methods(http.MethodGet)

	api.HandleFunc("/activity", s.handleActivity).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/location/nearest", s.handleNearest).Methods(http.MethodGet)
	api.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)

	if s.stream != nil {
		s.mux.Handle("/ws/stats", s.stream)
	}
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
