package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/example/yinsee/internal/marketplace"
)

const maxBodyBytes = 1 << 20

// Notices shown to users for the common refusals.
const (
	noticeNoProvider   = "Please create a provider profile first."
	noticeInsufficient = "Insufficient balance — please top up"
	noticeNotFound     = "Request not found"
	noticeNotOpen      = "Request is no longer open"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeServiceError maps marketplace errors onto status codes and notices.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, marketplace.ErrNoProvider):
		writeError(w, http.StatusConflict, noticeNoProvider)
	case errors.Is(err, marketplace.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, noticeInsufficient)
	case errors.Is(err, marketplace.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, noticeNotFound)
	case errors.Is(err, marketplace.ErrRequestNotOpen):
		writeError(w, http.StatusConflict, noticeNotOpen)
	case errors.Is(err, marketplace.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", requestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", marketplace.ErrInvalidRequest, err)
	}
	return nil
}

// intParam reads a non-negative integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", marketplace.ErrInvalidRequest, name)
	}
	return n, nil
}
