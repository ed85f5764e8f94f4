package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPSource looks positions up against a geo-IP JSON endpoint. The endpoint
// may contain "{ip}", which is replaced by the hint; otherwise the hint is sent
// as the "ip" query parameter. The response must carry lat and lon (or
// latitude and longitude).
type HTTPSource struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPSource(endpoint string) *HTTPSource {
	return &HTTPSource{Endpoint: endpoint, Client: &http.Client{Timeout: 8 * time.Second}}
}

func (h *HTTPSource) Locate(ctx context.Context, hint string) (Coord, error) {
	target := h.url(hint)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Coord{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return Coord{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Coord{}, fmt.Errorf("geoip status %d", resp.StatusCode)
	}
	var out struct {
		Lat       *float64 `json:"lat"`
		Lon       *float64 `json:"lon"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Coord{}, err
	}
	lat, lon := out.Lat, out.Lon
	if lat == nil || lon == nil {
		lat, lon = out.Latitude, out.Longitude
	}
	if lat == nil || lon == nil {
		return Coord{}, fmt.Errorf("geoip response without coordinates")
	}
	return Coord{Lat: *lat, Lon: *lon}, nil
}

func (h *HTTPSource) url(hint string) string {
	if strings.Contains(h.Endpoint, "{ip}") {
		return strings.ReplaceAll(h.Endpoint, "{ip}", url.PathEscape(hint))
	}
	if hint == "" {
		return h.Endpoint
	}
	sep := "?"
	if strings.Contains(h.Endpoint, "?") {
		sep = "&"
	}
	return h.Endpoint + sep + "ip=" + url.QueryEscape(hint)
}
