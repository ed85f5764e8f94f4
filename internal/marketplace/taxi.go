package marketplace

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/yinsee/internal/kv"
	"github.com/example/yinsee/internal/models"
	"github.com/example/yinsee/internal/observability"
)

func (s *Service) PostTaxiRequest(ctx context.Context, pickup, destination, area, notes string) (models.TaxiRequest, error) {
	pickup, destination = strings.TrimSpace(pickup), strings.TrimSpace(destination)
	if pickup == "" || destination == "" {
		return models.TaxiRequest{}, fmt.Errorf("%w: pickup and destination are required", ErrInvalidRequest)
	}
	a, ok := models.ParseArea(area)
	if !ok {
		return models.TaxiRequest{}, fmt.Errorf("%w: unknown area %q", ErrInvalidRequest, area)
	}

	s.mu.Lock()
	req := s.Taxi.New(pickup, destination, a, truncate(strings.TrimSpace(notes), MaxNotesLen))

	var b kv.Batch
	s.Taxi.Stage(&b, append(s.Taxi.Requests(ctx), req))
	entry := s.TaxiActivity.Stage(ctx, &b, models.ActivityLogEntry{
		Type:        models.ActivityTaxiRequestPosted,
		RequestID:   req.ID,
		Area:        string(req.Area),
		Pickup:      req.Pickup.Text,
		Destination: req.Destination.Text,
	})
	err := s.kv.Commit(ctx, &b)
	s.mu.Unlock()
	if err != nil {
		return models.TaxiRequest{}, fmt.Errorf("post taxi request: %w", err)
	}

	s.TaxiActivity.Published(ctx, entry)
	observability.TaxiRequestsTotal.Inc()
	s.logger.Info("taxi request posted", "request_id", req.ID, "area", req.Area)
	return req, nil
}

// BrowseTaxi lists available taxi requests in area. "All" or empty lists every one.
func (s *Service) BrowseTaxi(ctx context.Context, area string) []models.TaxiRequest {
	return s.Taxi.OpenByArea(ctx, area)
}

// ConnectTaxi marks an available taxi request as connected. It costs no credits.
func (s *Service) ConnectTaxi(ctx context.Context, id string) (models.TaxiRequest, error) {
	req, entry, err := s.connectTaxi(ctx, id)
	if err != nil {
		return models.TaxiRequest{}, err
	}
	s.TaxiActivity.Published(ctx, entry)
	observability.ConnectsTotal.WithLabelValues("taxi", "ok").Inc()
	s.logger.Info("taxi request connected", "request_id", id, "area", req.Area)
	return req, nil
}

func (s *Service) connectTaxi(ctx context.Context, id string) (models.TaxiRequest, models.ActivityLogEntry, error) {
	var none models.ActivityLogEntry
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs := s.Taxi.Requests(ctx)
	idx := -1
	for i := range reqs {
		if reqs[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		observability.ConnectsTotal.WithLabelValues("taxi", "not_found").Inc()
		return models.TaxiRequest{}, none, ErrRequestNotFound
	}
	if reqs[idx].Status != models.TaxiAvailable {
		observability.ConnectsTotal.WithLabelValues("taxi", "not_open").Inc()
		return models.TaxiRequest{}, none, ErrRequestNotOpen
	}
	reqs[idx].Status = models.TaxiConnected

	var b kv.Batch
	s.Taxi.Stage(&b, reqs)
	entry := s.TaxiActivity.Stage(ctx, &b, models.ActivityLogEntry{
		Type:        models.ActivityTaxiConnected,
		RequestID:   id,
		Area:        string(reqs[idx].Area),
		Pickup:      reqs[idx].Pickup.Text,
		Destination: reqs[idx].Destination.Text,
	})
	if err := s.kv.Commit(ctx, &b); err != nil {
		observability.ConnectsTotal.WithLabelValues("taxi", "error").Inc()
		return models.TaxiRequest{}, none, fmt.Errorf("connect taxi %s: %w", id, err)
	}
	return reqs[idx], entry, nil
}

// SubmitCredentials stores the driver's credentials as pending review.
func (s *Service) SubmitCredentials(ctx context.Context, c models.TaxiCredentials) (models.TaxiCredentials, error) {
	c.DriverName = strings.TrimSpace(c.DriverName)
	c.LicenceNumber = strings.TrimSpace(c.LicenceNumber)
	if c.DriverName == "" || c.LicenceNumber == "" {
		return models.TaxiCredentials{}, fmt.Errorf("%w: driver name and licence number are required", ErrInvalidRequest)
	}

	s.mu.Lock()
	c.ID = models.NewCredentialsID()
	c.Status = models.CredentialsPending
	c.SubmittedAt = s.now()

	var b kv.Batch
	s.Taxi.StageCredentials(&b, c)
	entry := s.TaxiActivity.Stage(ctx, &b, models.ActivityLogEntry{Type: models.ActivityTaxiCredentials})
	err := s.kv.Commit(ctx, &b)
	s.mu.Unlock()
	if err != nil {
		return models.TaxiCredentials{}, fmt.Errorf("submit credentials: %w", err)
	}

	s.TaxiActivity.Published(ctx, entry)
	s.logger.Info("taxi credentials submitted", "credentials_id", c.ID)
	return c, nil
}

func (s *Service) Credentials(ctx context.Context) (models.TaxiCredentials, bool) {
	return s.Taxi.Credentials(ctx)
}
