package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/example/yinsee/internal/kv"
	"github.com/example/yinsee/internal/models"
)

// TaxiStore holds taxi ride requests and the driver credentials record.
type TaxiStore struct {
	kv  *kv.Store
	Now func() time.Time
}

func NewTaxiStore(s *kv.Store) *TaxiStore { return &TaxiStore{kv: s} }

func (t *TaxiStore) Requests(ctx context.Context) []models.TaxiRequest {
	reqs, _ := readList[models.TaxiRequest](ctx, t.kv, KeyTaxiRequests)
	return reqs
}

func (t *TaxiStore) SetRequests(ctx context.Context, reqs []models.TaxiRequest) {
	t.kv.Write(ctx, KeyTaxiRequests, reqs)
}

func (t *TaxiStore) Stage(b *kv.Batch, reqs []models.TaxiRequest) {
	b.Put(KeyTaxiRequests, reqs)
}

func (t *TaxiStore) Get(ctx context.Context, id string) (models.TaxiRequest, bool) {
	for _, r := range t.Requests(ctx) {
		if r.ID == id {
			return r, true
		}
	}
	return models.TaxiRequest{}, false
}

// New builds an available request without storing it.
func (t *TaxiStore) New(pickup, destination string, area models.Area, notes string) models.TaxiRequest {
	return models.TaxiRequest{
		ID:          models.NewTaxiRequestID(),
		Status:      models.TaxiAvailable,
		CreatedAt:   clock(t.Now),
		Area:        area,
		Pickup:      models.Place{Text: pickup},
		Destination: models.Place{Text: destination},
		Notes:       notes,
	}
}

// Add appends an available request and returns it.
func (t *TaxiStore) Add(ctx context.Context, pickup, destination string, area models.Area, notes string) models.TaxiRequest {
	req := t.New(pickup, destination, area, notes)
	t.SetRequests(ctx, append(t.Requests(ctx), req))
	return req
}

// OpenByArea lists available requests in area; "All" or empty matches every area.
func (t *TaxiStore) OpenByArea(ctx context.Context, area string) []models.TaxiRequest {
	area = strings.TrimSpace(area)
	all := area == "" || strings.EqualFold(area, "all")
	out := []models.TaxiRequest{}
	for _, r := range t.Requests(ctx) {
		if r.Status != models.TaxiAvailable {
			continue
		}
		if all || strings.EqualFold(string(r.Area), area) {
			out = append(out, r)
		}
	}
	return out
}

func (t *TaxiStore) Credentials(ctx context.Context) (models.TaxiCredentials, bool) {
	c, ok := kv.Lookup[models.TaxiCredentials](ctx, t.kv, KeyTaxiCredentials)
	if !ok || !c.Normalize() {
		return models.TaxiCredentials{}, false
	}
	return c, true
}

func (t *TaxiStore) SetCredentials(ctx context.Context, c models.TaxiCredentials) {
	t.kv.Write(ctx, KeyTaxiCredentials, c)
}

func (t *TaxiStore) StageCredentials(b *kv.Batch, c models.TaxiCredentials) {
	b.Put(KeyTaxiCredentials, c)
}

// SeedIfEmpty makes sure the request and activity arrays exist.
func (t *TaxiStore) SeedIfEmpty(ctx context.Context) {
	for _, key := range []string{KeyTaxiRequests, KeyTaxiActivity} {
		if _, ok := kv.Lookup[[]json.RawMessage](ctx, t.kv, key); !ok {
			t.kv.Write(ctx, key, []json.RawMessage{})
		}
	}
}
