package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/example/yinsee/internal/credit"
	"github.com/example/yinsee/internal/geo"
	"github.com/example/yinsee/internal/marketplace"
	"github.com/example/yinsee/internal/models"
)

const defaultActivityLimit = 5

type postRequestBody struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Suburb      string `json:"suburb"`
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Requests.All(r.Context()))
}

func (s *Server) handlePostRequest(w http.ResponseWriter, r *http.Request) {
	var body postRequestBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	req, err := s.svc.PostRequest(r.Context(), body.Category, body.Description, body.Suburb)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Browse(r.Context(), r.URL.Query().Get("area")))
}

type connectResponse struct {
	marketplace.ConnectResult
	Message string `json:"message"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Connect(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{
		ConnectResult: res,
		Message:       fmt.Sprintf("Connected — debited %d credits", res.Debited),
	})
}

func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	p, ok := s.svc.Provider(r.Context())
	if !ok {
		writeError(w, http.StatusNotFound, noticeNoProvider)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.CreateProvider(r.Context()))
}

func (s *Server) handleResetProvider(w http.ResponseWriter, r *http.Request) {
	s.svc.ResetProvider(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type topUpResponse struct {
	Provider models.Provider `json:"provider"`
	Message  string          `json:"message"`
}

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.TopUp(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, topUpResponse{Provider: p, Message: fmt.Sprintf("Added %d credits", credit.TopUpAmount)})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultActivityLimit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	d, err := s.svc.Dashboard(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type feedbackBody struct {
	ProviderID string `json:"providerId"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", marketplace.DashboardFeedback)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	providerID := r.URL.Query().Get("providerId")
	if providerID == "" {
		if p, ok := s.svc.Provider(r.Context()); ok {
			providerID = p.ID
		}
	}
	writeJSON(w, http.StatusOK, s.svc.RecentFeedback(r.Context(), providerID, limit))
}

func (s *Server) handleAddFeedback(w http.ResponseWriter, r *http.Request) {
	var body feedbackBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	fb, err := s.svc.AddFeedback(r.Context(), body.ProviderID, body.Rating, body.Comment)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultActivityLimit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	ledger := s.svc.Activity
	if r.URL.Query().Get("kind") == "taxi" {
		ledger = s.svc.TaxiActivity
	}
	writeJSON(w, http.StatusOK, marketplace.Views(ledger.Recent(r.Context(), limit)))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats(r.Context()))
}

// handleNearest maps lat/lon to an area. Without coordinates it asks the
// locator using the client address and falls back to manual selection.
func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("lat") == "" && q.Get("lon") == "" {
		if s.locator == nil {
			writeJSON(w, http.StatusOK, geo.Fallback())
			return
		}
		writeJSON(w, http.StatusOK, s.locator.Resolve(r.Context(), clientIP(r)))
		return
	}
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil || !geo.ValidCoord(lat, lon) {
		writeError(w, http.StatusBadRequest, "lat and lon must be valid coordinates")
		return
	}
	writeJSON(w, http.StatusOK, geo.Resolve(geo.Coord{Lat: lat, Lon: lon}))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.svc.ResetAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"testMode": testMode(r.Context()),
		"profile":  s.svc.Store().Profile(),
	})
}
