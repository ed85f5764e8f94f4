package storage

import (
	"context"
	"strings"
	"time"

	"github.com/example/yinsee/internal/kv"
	"github.com/example/yinsee/internal/models"
)

// RequestStore holds the ordered list of service requests.
type RequestStore struct {
	kv  *kv.Store
	Now func() time.Time
}

func NewRequestStore(s *kv.Store) *RequestStore { return &RequestStore{kv: s} }

// SampleRequests are written on first load.
func SampleRequests(now time.Time) []models.ServiceRequest {
	return []models.ServiceRequest{
		{ID: "req_sample1", Category: "Plumber", Description: "Fix leaking tap", Suburb: "Christchurch", Status: models.StatusOpen, CreatedAt: now},
		{ID: "req_sample2", Category: "Electrician", Description: "Replace light fitting", Suburb: "Wellington", Status: models.StatusOpen, CreatedAt: now},
		{ID: "req_sample3", Category: "Handyman", Description: "Assemble flatpack", Suburb: "Auckland", Status: models.StatusOpen, CreatedAt: now},
	}
}

// All returns every request. An absent or unreadable list reads as the
// samples; nothing is written until a caller stores the list.
func (r *RequestStore) All(ctx context.Context) []models.ServiceRequest {
	reqs, found := readList[models.ServiceRequest](ctx, r.kv, KeyRequests)
	if found {
		return reqs
	}
	return SampleRequests(clock(r.Now))
}

// SeedIfEmpty stores the samples when the list is absent or unreadable.
func (r *RequestStore) SeedIfEmpty(ctx context.Context) {
	if _, found := readList[models.ServiceRequest](ctx, r.kv, KeyRequests); !found {
		r.kv.Write(ctx, KeyRequests, SampleRequests(clock(r.Now)))
	}
}

func (r *RequestStore) Get(ctx context.Context, id string) (models.ServiceRequest, bool) {
	for _, req := range r.All(ctx) {
		if req.ID == id {
			return req, true
		}
	}
	return models.ServiceRequest{}, false
}

func (r *RequestStore) SetAll(ctx context.Context, reqs []models.ServiceRequest) {
	r.kv.Write(ctx, KeyRequests, reqs)
}

// Stage puts the list into b instead of writing it.
func (r *RequestStore) Stage(b *kv.Batch, reqs []models.ServiceRequest) {
	b.Put(KeyRequests, reqs)
}

// New fills in id, status and createdAt when unset, without storing req.
func (r *RequestStore) New(req models.ServiceRequest) models.ServiceRequest {
	if req.ID == "" {
		req.ID = models.NewRequestID()
	}
	if req.Status == "" {
		req.Status = models.StatusOpen
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = clock(r.Now)
	}
	return req
}

// Add appends req after filling it in with New.
func (r *RequestStore) Add(ctx context.Context, req models.ServiceRequest) models.ServiceRequest {
	req = r.New(req)
	reqs := r.All(ctx)
	reqs = append(reqs, req)
	r.SetAll(ctx, reqs)
	return req
}

// Open lists OPEN requests whose suburb matches area. Empty or "all" matches
// every suburb.
func (r *RequestStore) Open(ctx context.Context, area string) []models.ServiceRequest {
	area = strings.TrimSpace(area)
	all := area == "" || strings.EqualFold(area, "all")
	out := []models.ServiceRequest{}
	for _, req := range r.All(ctx) {
		if req.Status != models.StatusOpen {
			continue
		}
		if all || strings.EqualFold(req.Suburb, area) {
			out = append(out, req)
		}
	}
	return out
}

func (r *RequestStore) Reset(ctx context.Context) { r.kv.Remove(ctx, KeyRequests) }
