package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/example/yinsee/internal/activity"
	"github.com/example/yinsee/internal/credit"
	"github.com/example/yinsee/internal/kv"
	"github.com/example/yinsee/internal/models"
	"github.com/example/yinsee/internal/observability"
	"github.com/example/yinsee/internal/storage"
)

const (
	MaxDescriptionLen = 280
	MaxNotesLen       = 140
	MaxCommentLen     = 200
)

var (
	ErrNoProvider          = errors.New("no provider profile")
	ErrRequestNotFound     = errors.New("request not found")
	ErrRequestNotOpen      = errors.New("request is not open")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidRequest      = errors.New("invalid request")
)

// Service runs the marketplace operations for one profile. The mutex
// serialises read-modify-write sequences inside this process; writes from
// other processes sharing the backend are last-writer-wins. Read paths never
// write, and activity is published only after the mutex is released.
type Service struct {
	mu sync.Mutex

	kv           *kv.Store
	Requests     *storage.RequestStore
	Providers    *storage.ProviderStore
	Taxi         *storage.TaxiStore
	Feedback     *storage.FeedbackStore
	Reports      *storage.ReportStore
	Activity     *activity.Ledger
	TaxiActivity *activity.Ledger

	logger *slog.Logger
}

func New(s *kv.Store, pub activity.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		kv:           s,
		Requests:     storage.NewRequestStore(s),
		Providers:    storage.NewProviderStore(s),
		Taxi:         storage.NewTaxiStore(s),
		Feedback:     storage.NewFeedbackStore(s),
		Reports:      storage.NewReportStore(s),
		Activity:     activity.NewLedger(s, storage.KeyActivity, pub, logger),
		TaxiActivity: activity.NewLedger(s, storage.KeyTaxiActivity, pub, logger),
		logger:       logger,
	}
}

// SetClock replaces the time source of every store and ledger.
func (s *Service) SetClock(now func() time.Time) {
	s.Requests.Now = now
	s.Providers.Now = now
	s.Taxi.Now = now
	s.Feedback.Now = now
	s.Reports.Now = now
	s.Activity.Now = now
	s.TaxiActivity.Now = now
}

// Store exposes the underlying key-value store.
func (s *Service) Store() *kv.Store { return s.kv }

// Seed makes sure the sample requests and taxi arrays exist.
func (s *Service) Seed(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests.SeedIfEmpty(ctx)
	s.Taxi.SeedIfEmpty(ctx)
}

func (s *Service) PostRequest(ctx context.Context, category, description, suburb string) (models.ServiceRequest, error) {
	category, description, suburb = strings.TrimSpace(category), strings.TrimSpace(description), strings.TrimSpace(suburb)
	if category == "" || description == "" || suburb == "" {
		return models.ServiceRequest{}, fmt.Errorf("%w: category, description and suburb are required", ErrInvalidRequest)
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLen {
		return models.ServiceRequest{}, fmt.Errorf("%w: description longer than %d characters", ErrInvalidRequest, MaxDescriptionLen)
	}

	s.mu.Lock()
	req := s.Requests.New(models.ServiceRequest{Category: category, Description: description, Suburb: suburb})
	var b kv.Batch
	s.Requests.Stage(&b, append(s.Requests.All(ctx), req))
	entry := s.Activity.Stage(ctx, &b, models.ActivityLogEntry{
		Type:      models.ActivityRequestPosted,
		RequestID: req.ID,
		Category:  req.Category,
		Suburb:    req.Suburb,
	})
	err := s.kv.Commit(ctx, &b)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("post request commit failed", "category", category, "suburb", suburb, "error", err)
		return models.ServiceRequest{}, fmt.Errorf("post request: %w", err)
	}

	s.Activity.Published(ctx, entry)
	observability.RequestsPostedTotal.Inc()
	s.logger.Info("request posted", "request_id", req.ID, "category", req.Category, "suburb", req.Suburb)
	return req, nil
}

// Browse lists open requests in area. "all" or empty lists every open request.
func (s *Service) Browse(ctx context.Context, area string) []models.ServiceRequest {
	return s.Requests.Open(ctx, area)
}

// CreateProvider returns the existing provider, or creates one with the
// starting balance.
func (s *Service) CreateProvider(ctx context.Context) models.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.Providers.Get(ctx); ok {
		return p
	}
	p := s.Providers.Create(ctx)
	observability.ProviderBalance.Set(float64(p.WalletCredits))
	s.logger.Info("provider created", "provider_id", p.ID)
	return p
}

func (s *Service) Provider(ctx context.Context) (models.Provider, bool) {
	return s.Providers.Get(ctx)
}

func (s *Service) ResetProvider(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Providers.Delete(ctx)
	observability.ProviderBalance.Set(0)
}

// TopUp adds credits to the provider. The balance and the activity entry are
// committed together.
func (s *Service) TopUp(ctx context.Context) (models.Provider, error) {
	p, entry, err := s.topUp(ctx)
	if err != nil {
		return models.Provider{}, err
	}
	s.Activity.Published(ctx, entry)
	observability.TopUpsTotal.Inc()
	observability.ProviderBalance.Set(float64(p.WalletCredits))
	return p, nil
}

func (s *Service) topUp(ctx context.Context) (models.Provider, models.ActivityLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Providers.Get(ctx)
	if !ok {
		return models.Provider{}, models.ActivityLogEntry{}, ErrNoProvider
	}
	credit.Credit(&p, credit.TopUpAmount)

	var b kv.Batch
	s.Providers.Stage(&b, p)
	entry := s.Activity.Stage(ctx, &b, models.ActivityLogEntry{Type: models.ActivityTopUp, Amount: credit.TopUpAmount})
	if err := s.kv.Commit(ctx, &b); err != nil {
		s.logger.Error("top up commit failed", "provider_id", p.ID, "error", err)
		return models.Provider{}, models.ActivityLogEntry{}, fmt.Errorf("top up: %w", err)
	}
	return p, entry, nil
}

// ConnectResult is the state after a successful connect.
type ConnectResult struct {
	Provider models.Provider       `json:"provider"`
	Request  models.ServiceRequest `json:"request"`
	Debited  int                   `json:"debited"`
}

// Connect spends credits to claim an open request. The provider debit, the
// status flip and the activity entry are committed together or not at all.
func (s *Service) Connect(ctx context.Context, requestID string) (ConnectResult, error) {
	res, entry, err := s.connect(ctx, requestID)
	if err != nil {
		return ConnectResult{}, err
	}
	s.Activity.Published(ctx, entry)

	observability.ConnectsTotal.WithLabelValues("service", "ok").Inc()
	observability.ProviderBalance.Set(float64(res.Provider.WalletCredits))
	s.logger.Info("request connected", "request_id", requestID, "provider_id", res.Provider.ID, "balance", res.Provider.WalletCredits)
	return res, nil
}

func (s *Service) connect(ctx context.Context, requestID string) (ConnectResult, models.ActivityLogEntry, error) {
	var none models.ActivityLogEntry
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.Providers.Get(ctx)
	if !ok {
		observability.ConnectsTotal.WithLabelValues("service", "no_provider").Inc()
		return ConnectResult{}, none, ErrNoProvider
	}
	reqs := s.Requests.All(ctx)
	idx := -1
	for i := range reqs {
		if reqs[i].ID == requestID {
			idx = i
			break
		}
	}
	if idx < 0 {
		observability.ConnectsTotal.WithLabelValues("service", "not_found").Inc()
		return ConnectResult{}, none, ErrRequestNotFound
	}
	if reqs[idx].Status != models.StatusOpen {
		observability.ConnectsTotal.WithLabelValues("service", "not_open").Inc()
		return ConnectResult{}, none, ErrRequestNotOpen
	}
	if !credit.Debit(&p, credit.ConnectPrice) {
		observability.ConnectsTotal.WithLabelValues("service", "insufficient").Inc()
		return ConnectResult{}, none, ErrInsufficientBalance
	}
	reqs[idx].Status = models.StatusMatched

	var b kv.Batch
	s.Providers.Stage(&b, p)
	s.Requests.Stage(&b, reqs)
	entry := s.Activity.Stage(ctx, &b, models.ActivityLogEntry{
		Type:      models.ActivityConnected,
		RequestID: requestID,
		Category:  reqs[idx].Category,
		Suburb:    reqs[idx].Suburb,
		Debited:   credit.ConnectPrice,
	})
	if err := s.kv.Commit(ctx, &b); err != nil {
		observability.ConnectsTotal.WithLabelValues("service", "error").Inc()
		s.logger.Error("connect commit failed", "request_id", requestID, "error", err)
		return ConnectResult{}, none, fmt.Errorf("connect %s: %w", requestID, err)
	}
	return ConnectResult{Provider: p, Request: reqs[idx], Debited: credit.ConnectPrice}, entry, nil
}

// ResetAll removes requests, provider and activity, then stores the sample
// requests again.
func (s *Service) ResetAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv.Remove(ctx, storage.KeyRequests, storage.KeyProvider, storage.KeyActivity)
	s.Requests.SeedIfEmpty(ctx)
	observability.ProviderBalance.Set(0)
	s.logger.Info("profile data reset", "profile", s.kv.Profile())
}

func (s *Service) Stats(ctx context.Context) models.Stats {
	var st models.Stats
	for _, r := range s.Requests.All(ctx) {
		switch r.Status {
		case models.StatusOpen:
			st.OpenRequests++
		case models.StatusMatched:
			st.MatchedRequests++
		}
	}
	if p, ok := s.Providers.Get(ctx); ok {
		st.ProviderBalance = p.WalletCredits
	}
	st.TotalConnections = s.Activity.Count(ctx, models.ActivityConnected)
	st.TesterReports = len(s.Reports.All(ctx))
	for _, t := range s.Taxi.Requests(ctx) {
		switch t.Status {
		case models.TaxiAvailable:
			st.TaxiAvailable++
		case models.TaxiConnected:
			st.TaxiConnected++
		}
	}
	return st
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ActivityView pairs an entry with its rendered text.
type ActivityView struct {
	models.ActivityLogEntry
	Text string `json:"text"`
}

func Views(entries []models.ActivityLogEntry) []ActivityView {
	out := make([]ActivityView, 0, len(entries))
	for _, e := range entries {
		out = append(out, ActivityView{ActivityLogEntry: e, Text: activity.Format(e)})
	}
	return out
}

type Dashboard struct {
	Provider models.Provider   `json:"provider"`
	Feedback []models.Feedback `json:"feedback"`
	Activity []ActivityView    `json:"activity"`
}

// DashboardFeedback is how many feedback entries the dashboard shows.
const DashboardFeedback = 2

func (s *Service) Dashboard(ctx context.Context, n int) (Dashboard, error) {
	p, ok := s.Providers.Get(ctx)
	if !ok {
		return Dashboard{}, ErrNoProvider
	}
	return Dashboard{
		Provider: p,
		Feedback: s.Feedback.RecentForProvider(ctx, p.ID, DashboardFeedback),
		Activity: Views(s.Activity.Recent(ctx, n)),
	}, nil
}
