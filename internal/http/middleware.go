package httpapi

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/example/yinsee/internal/observability"
)

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxTestMode
)

const (
	headerRequestID = "X-Request-ID"
	headerTestMode  = "X-Test-Mode"
)

// registerMiddleware installs the chain outermost first: panics are caught
// before anything else runs, and the access log sees the request id and the
// test-mode flag.
func (s *Server) registerMiddleware() {
	s.mux.Use(s.withRecovery, withRequestID, withTestMode, s.withAccessLog)
}

// withRequestID keeps a caller-supplied id or mints one, and echoes it back.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxRequestID, id)))
	})
}

// withTestMode honours the single "test=1" query flag.
func withTestMode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("test") == "1" {
			w.Header().Set(headerTestMode, "1")
			r = r.WithContext(context.WithValue(r.Context(), ctxTestMode, true))
		}
		next.ServeHTTP(w, r)
	})
}

// withAccessLog records one metric sample and one log line per API call,
// tagged with the marketplace profile being served.
func (s *Server) withAccessLog(next http.Handler) http.Handler {
	profile := s.svc.Store().Profile()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := routeLabel(r)
		code := strconv.Itoa(rec.status)
		observability.HTTPRequestsTotal.WithLabelValues(r.Method, route, code).Inc()
		observability.HTTPRequestDuration.WithLabelValues(r.Method, route, code).Observe(elapsed.Seconds())

		attrs := []any{
			"profile", profile,
			"method", r.Method,
			"route", route,
			"status", rec.status,
			"elapsed_ms", elapsed.Milliseconds(),
			"client_ip", clientIP(r),
			"request_id", requestID(r.Context()),
		}
		if testMode(r.Context()) {
			attrs = append(attrs, "test_mode", true)
		}
		if rec.status >= http.StatusInternalServerError {
			s.logger.Warn("api call", attrs...)
			return
		}
		s.logger.Info("api call", attrs...)
	})
}

// withRecovery turns a handler panic into a JSON 500.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.Error("handler panicked", "route", r.URL.Path, "panic", fmt.Sprint(v))
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Hijack lets the stats stream upgrade to a websocket through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("stats stream: connection cannot be hijacked")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestID).(string)
	return id
}

func testMode(ctx context.Context) bool {
	on, _ := ctx.Value(ctxTestMode).(bool)
	return on
}

// routeLabel is the mux path template, so ids do not explode metric labels.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// clientIP is the address the location lookup resolves: the first
// X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
