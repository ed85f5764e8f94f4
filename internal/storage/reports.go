package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/yinsee/internal/kv"
	"github.com/example/yinsee/internal/models"
)

// ReportStore keeps tester reports submitted from the testing guide.
type ReportStore struct {
	kv  *kv.Store
	Now func() time.Time
}

func NewReportStore(s *kv.Store) *ReportStore { return &ReportStore{kv: s} }

func (r *ReportStore) All(ctx context.Context) []models.TesterReport {
	reports, _ := readList[models.TesterReport](ctx, r.kv, KeyTesterReports)
	return reports
}

// Add stamps and appends a report.
func (r *ReportStore) Add(ctx context.Context, rep models.TesterReport) models.TesterReport {
	now := clock(r.Now)
	if rep.ID == "" {
		rep.ID = models.NewReportID(now)
	}
	if rep.Timestamp.IsZero() {
		rep.Timestamp = now
	}
	r.kv.Write(ctx, KeyTesterReports, append(r.All(ctx), rep))
	return rep
}

func (r *ReportStore) Reset(ctx context.Context) { r.kv.Remove(ctx, KeyTesterReports) }

func (r *ReportStore) ExportJSON(ctx context.Context) ([]byte, error) {
	return json.MarshalIndent(r.All(ctx), "", "  ")
}

// Summary renders every report as plain text blocks.
func (r *ReportStore) Summary(ctx context.Context) string {
	reports := r.All(ctx)
	blocks := make([]string, 0, len(reports))
	for _, rep := range reports {
		notes := rep.Notes
		if notes == "" {
			notes = "None"
		}
		blocks = append(blocks, fmt.Sprintf(
			"Report ID: %s\nDate: %s\nDevice: %s\nOS: %s\nBrowser: %s\nPage/Flow: %s\nSeverity: %s\nSteps: %s\nExpected: %s\nActual: %s\nNotes: %s\n---",
			rep.ID, rep.Timestamp.Format(time.RFC1123), rep.DeviceModel, rep.OSVersion, rep.BrowserVersion,
			rep.PageFlow, rep.Severity, rep.StepsToReproduce, rep.ExpectedResult, rep.ActualResult, notes,
		))
	}
	return strings.Join(blocks, "\n\n")
}
