package marketplace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/yinsee/internal/models"
	"github.com/example/yinsee/internal/observability"
)

func (s *Service) AddFeedback(ctx context.Context, providerID string, rating int, comment string) (models.Feedback, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return models.Feedback{}, fmt.Errorf("%w: provider id is required", ErrInvalidRequest)
	}
	if rating < 1 || rating > 5 {
		return models.Feedback{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fb, err := s.Feedback.Add(ctx, providerID, rating, truncate(strings.TrimSpace(comment), MaxCommentLen))
	if err != nil {
		return models.Feedback{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	observability.FeedbackTotal.Inc()
	return fb, nil
}

func (s *Service) RecentFeedback(ctx context.Context, providerID string, n int) []models.Feedback {
	return s.Feedback.RecentForProvider(ctx, providerID, n)
}

// SubmitReport stores a tester report. Every field but notes is required.
func (s *Service) SubmitReport(ctx context.Context, r models.TesterReport) (models.TesterReport, error) {
	if missing := missingReportFields(r); len(missing) > 0 {
		return models.TesterReport{}, fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	r.ID = ""
	r.Timestamp = time.Time{}

	s.mu.Lock()
	rep := s.Reports.Add(ctx, r)
	entry := s.Activity.Record(ctx, models.ActivityLogEntry{
		Type:    models.ActivityTesterReport,
		Message: "Tester report submitted for " + rep.PageFlow,
	})
	s.mu.Unlock()

	s.Activity.Published(ctx, entry)
	return rep, nil
}

func (s *Service) ResetReports(ctx context.Context) {
	s.mu.Lock()
	s.Reports.Reset(ctx)
	entry := s.Activity.Record(ctx, models.ActivityLogEntry{Type: models.ActivityTesterReset, Message: "Tester reports data reset"})
	s.mu.Unlock()

	s.Activity.Published(ctx, entry)
}

func missingReportFields(r models.TesterReport) []string {
	fields := []struct{ name, value string }{
		{"deviceModel", r.DeviceModel},
		{"osVersion", r.OSVersion},
		{"browserVersion", r.BrowserVersion},
		{"pageFlow", r.PageFlow},
		{"stepsToReproduce", r.StepsToReproduce},
		{"expectedResult", r.ExpectedResult},
		{"actualResult", r.ActualResult},
		{"severity", r.Severity},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func (s *Service) now() time.Time {
	if s.Taxi.Now != nil {
		return s.Taxi.Now().UTC()
	}
	return time.Now().UTC()
}
