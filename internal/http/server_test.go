package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/yinsee/internal/geo"
	"github.com/example/yinsee/internal/kv"
	"github.com/example/yinsee/internal/marketplace"
	"github.com/example/yinsee/internal/models"
)

type fixedLocator struct{ res geo.Resolution }

func (f fixedLocator) Resolve(context.Context, string) geo.Resolution { return f.res }

func newTestServer(t *testing.T) (*Server, *marketplace.Service) {
	t.Helper()
	svc := marketplace.New(kv.New(kv.NewMemoryBackend(), "test", nil), nil, nil)
	return NewServer(svc, nil, nil, nil), svc
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestPostAndBrowseRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/requests", postRequestBody{Category: "Plumber", Description: "Fix tap", Suburb: "Auckland"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.ServiceRequest](t, rec)
	assert.Equal(t, models.StatusOpen, created.Status)

	rec = do(t, srv, http.MethodGet, "/api/v1/requests/open?area=Auckland", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	open := decode[[]models.ServiceRequest](t, rec)
	require.Len(t, open, 2)
	assert.Equal(t, created.ID, open[1].ID)

	rec = do(t, srv, http.MethodPost, "/api/v1/requests", postRequestBody{Category: "Plumber", Description: strings.Repeat("x", 281), Suburb: "Auckland"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/requests", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/requests/req_sample1/connect", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, noticeNoProvider, decode[errorBody](t, rec).Error)

	rec = do(t, srv, http.MethodPost, "/api/v1/provider", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, decode[models.Provider](t, rec).WalletCredits)

	rec = do(t, srv, http.MethodPost, "/api/v1/requests/req_sample1/connect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "Connected — debited 3 credits", body["message"])
	assert.EqualValues(t, 17, body["provider"].(map[string]any)["walletCredits"])

	rec = do(t, srv, http.MethodPost, "/api/v1/requests/req_sample1/connect", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/requests/req_missing/connect", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/stats", nil)
	stats := decode[models.Stats](t, rec)
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 17, stats.ProviderBalance)
}

func TestConnectInsufficientBalance(t *testing.T) {
	srv, svc := newTestServer(t)
	svc.Providers.Set(context.Background(), models.Provider{ID: "P-AAAAA-B", WalletCredits: 1})

	rec := do(t, srv, http.MethodPost, "/api/v1/requests/req_sample2/connect", nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, noticeInsufficient, decode[errorBody](t, rec).Error)
}

func TestProviderLifecycleAndDashboard(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/v1/provider", nil).Code)
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, "/api/v1/provider/topup", nil).Code)

	p := decode[models.Provider](t, do(t, srv, http.MethodPost, "/api/v1/provider", nil))
	rec := do(t, srv, http.MethodPost, "/api/v1/provider/topup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 25, decode[topUpResponse](t, rec).Provider.WalletCredits)

	rec = do(t, srv, http.MethodPost, "/api/v1/feedback", feedbackBody{ProviderID: p.ID, Rating: 4, Comment: strings.Repeat("c", 250)})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, decode[models.Feedback](t, rec).Comment, 200)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/v1/feedback", feedbackBody{ProviderID: p.ID}).Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/provider/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[marketplace.Dashboard](t, rec)
	assert.Equal(t, p.ID, d.Provider.ID)
	require.Len(t, d.Feedback, 1)
	require.Len(t, d.Activity, 1)
	assert.Equal(t, "Top up +5 credits", d.Activity[0].Text)

	feedback := decode[[]models.Feedback](t, do(t, srv, http.MethodGet, "/api/v1/feedback", nil))
	assert.Len(t, feedback, 1)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/v1/provider", nil).Code)
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodGet, "/api/v1/provider/dashboard", nil).Code)
}

func TestTaxiRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/taxi/requests", taxiRequestBody{Pickup: "Cuba St", Destination: "Airport", Area: "Wellington"})
	require.Equal(t, http.StatusCreated, rec.Code)
	ride := decode[models.TaxiRequest](t, rec)

	assert.Len(t, decode[[]models.TaxiRequest](t, do(t, srv, http.MethodGet, "/api/v1/taxi/requests/open?area=All", nil)), 1)
	assert.Empty(t, decode[[]models.TaxiRequest](t, do(t, srv, http.MethodGet, "/api/v1/taxi/requests/open?area=Dunedin", nil)))

	rec = do(t, srv, http.MethodPost, "/api/v1/taxi/requests/"+ride.ID+"/connect", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.TaxiConnected, decode[models.TaxiRequest](t, rec).Status)
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, "/api/v1/taxi/requests/"+ride.ID+"/connect", nil).Code)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/v1/taxi/requests", taxiRequestBody{Pickup: "A", Destination: "B", Area: "Perth"}).Code)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/v1/taxi/credentials", nil).Code)
	rec = do(t, srv, http.MethodPost, "/api/v1/taxi/credentials", models.TaxiCredentials{DriverName: "Ana", LicenceNumber: "AB123"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.CredentialsPending, decode[models.TaxiCredentials](t, rec).Status)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/v1/taxi/credentials", nil).Code)

	views := decode[[]marketplace.ActivityView](t, do(t, srv, http.MethodGet, "/api/v1/activity?kind=taxi&limit=10", nil))
	require.Len(t, views, 3)
	assert.Equal(t, "Taxi credentials submitted", views[0].Text)
}

func TestReportRoutes(t *testing.T) {
	srv, _ := newTestServer(t)
	report := models.TesterReport{
		DeviceModel: "Pixel 8", OSVersion: "Android 15", BrowserVersion: "Chrome 130",
		PageFlow: "Browse", StepsToReproduce: "open browse", ExpectedResult: "list",
		ActualResult: "list", Severity: "low",
	}
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/v1/reports", models.TesterReport{DeviceModel: "x"}).Code)
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/v1/reports", report).Code)

	rec := do(t, srv, http.MethodGet, "/api/v1/reports/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "tester-reports.json")
	assert.Len(t, decode[[]models.TesterReport](t, rec), 1)

	rec = do(t, srv, http.MethodGet, "/api/v1/reports/summary", nil)
	assert.Contains(t, rec.Body.String(), "Device: Pixel 8")

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/v1/reports", nil).Code)
	assert.Empty(t, decode[[]models.TesterReport](t, do(t, srv, http.MethodGet, "/api/v1/reports", nil)))
}

func TestResetAll(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/v1/provider", nil)
	do(t, srv, http.MethodPost, "/api/v1/requests/req_sample3/connect", nil)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodPost, "/api/v1/reset", nil).Code)
	stats := decode[models.Stats](t, do(t, srv, http.MethodGet, "/api/v1/stats", nil))
	assert.Equal(t, models.Stats{OpenRequests: 3}, stats)
}

func TestNearestArea(t *testing.T) {
	srv, _ := newTestServer(t)

	res := decode[geo.Resolution](t, do(t, srv, http.MethodGet, "/api/v1/location/nearest?lat=-45.9&lon=170.5", nil))
	assert.True(t, res.Located)
	assert.Equal(t, models.Dunedin, res.Area)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/v1/location/nearest?lat=abc&lon=1", nil).Code)

	res = decode[geo.Resolution](t, do(t, srv, http.MethodGet, "/api/v1/location/nearest", nil))
	assert.False(t, res.Located)
	assert.Equal(t, geo.FallbackNotice, res.Notice)
}

func TestNearestAreaUsesLocator(t *testing.T) {
	svc := marketplace.New(kv.New(kv.NewMemoryBackend(), "test", nil), nil, nil)
	srv := NewServer(svc, fixedLocator{res: geo.Resolve(geo.Coord{Lat: -37.79, Lon: 175.28})}, nil, nil)
	res := decode[geo.Resolution](t, do(t, srv, http.MethodGet, "/api/v1/location/nearest", nil))
	assert.Equal(t, models.Hamilton, res.Area)
}

func TestTestModeFlag(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/session?test=1", nil)
	assert.Equal(t, "1", rec.Header().Get("X-Test-Mode"))
	assert.Equal(t, true, decode[map[string]any](t, rec)["testMode"])

	rec = do(t, srv, http.MethodGet, "/api/v1/session?test=true", nil)
	assert.Empty(t, rec.Header().Get("X-Test-Mode"))
	assert.Equal(t, false, decode[map[string]any](t, rec)["testMode"])
}

func TestActivityLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	for i := 0; i < 7; i++ {
		do(t, srv, http.MethodPost, "/api/v1/requests", postRequestBody{Category: "Cleaner", Description: "Oven", Suburb: "Tauranga"})
	}
	assert.Len(t, decode[[]marketplace.ActivityView](t, do(t, srv, http.MethodGet, "/api/v1/activity", nil)), 5)
	assert.Len(t, decode[[]marketplace.ActivityView](t, do(t, srv, http.MethodGet, "/api/v1/activity?limit=2", nil)), 2)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/v1/activity?limit=-1", nil).Code)
}

func TestRecoverMiddleware(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.mux.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec := do(t, srv, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode[errorBody](t, rec).Error)
}

func TestAccessLogCarriesProfileAndRequestID(t *testing.T) {
	var logs bytes.Buffer
	svc := marketplace.New(kv.New(kv.NewMemoryBackend(), "test", nil), nil, nil)
	srv := NewServer(svc, nil, nil, slog.New(slog.NewJSONHandler(&logs, nil)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats?test=1", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-abc", rec.Header().Get("X-Request-ID"))

	var line map[string]any
	require.NoError(t, json.NewDecoder(&logs).Decode(&line))
	assert.Equal(t, "api call", line["msg"])
	assert.Equal(t, "test", line["profile"])
	assert.Equal(t, "/api/v1/stats", line["route"])
	assert.Equal(t, "203.0.113.9", line["client_ip"])
	assert.Equal(t, "req-abc", line["request_id"])
	assert.Equal(t, true, line["test_mode"])
	assert.EqualValues(t, 200, line["status"])
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:51234"
	assert.Equal(t, "192.0.2.7", clientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", clientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.9 ,10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(r))
}
