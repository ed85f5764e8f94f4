package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/yinsee/internal/models"
)

type taxiRequestBody struct {
	Pickup      string `json:"pickup"`
	Destination string `json:"destination"`
	Area        string `json:"area"`
	Notes       string `json:"notes"`
}

func (s *Server) handleListTaxi(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Taxi.Requests(r.Context()))
}

func (s *Server) handlePostTaxi(w http.ResponseWriter, r *http.Request) {
	var body taxiRequestBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	req, err := s.svc.PostTaxiRequest(r.Context(), body.Pickup, body.Destination, body.Area, body.Notes)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleBrowseTaxi(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.BrowseTaxi(r.Context(), r.URL.Query().Get("area")))
}

func (s *Server) handleConnectTaxi(w http.ResponseWriter, r *http.Request) {
	req, err := s.svc.ConnectTaxi(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	c, ok := s.svc.Credentials(r.Context())
	if !ok {
		writeError(w, http.StatusNotFound, "No credentials submitted")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleSubmitCredentials(w http.ResponseWriter, r *http.Request) {
	var body models.TaxiCredentials
	if err := decodeJSON(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	c, err := s.svc.SubmitCredentials(r.Context(), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
