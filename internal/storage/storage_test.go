package storage

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/yinsee/internal/kv"
	"github.com/example/yinsee/internal/models"
)

func newKV(t *testing.T) (*kv.Store, *kv.MemoryBackend) {
	t.Helper()
	mem := kv.NewMemoryBackend()
	return kv.New(mem, "test", nil), mem
}

// tick returns a clock that advances one minute per call.
func tick(start time.Time) func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Minute)
	}
}

func TestRequestsReadAsSamplesUntilSeeded(t *testing.T) {
	ctx := context.Background()
	s, mem := newKV(t)
	store := NewRequestStore(s)

	reqs := store.All(ctx)
	require.Len(t, reqs, 3)
	assert.Equal(t, "req_sample1", reqs[0].ID)
	assert.Equal(t, "Plumber", reqs[0].Category)
	for _, r := range reqs {
		assert.Equal(t, models.StatusOpen, r.Status)
	}
	assert.Zero(t, mem.Len())

	store.SeedIfEmpty(ctx)
	persisted, ok := kv.Lookup[[]models.ServiceRequest](ctx, s, KeyRequests)
	require.True(t, ok)
	assert.Len(t, persisted, 3)

	store.SetAll(ctx, persisted[:1])
	store.SeedIfEmpty(ctx)
	assert.Len(t, store.All(ctx), 1)
}

func TestRequestsEmptyListIsNotReseeded(t *testing.T) {
	ctx := context.Background()
	s, _ := newKV(t)
	store := NewRequestStore(s)
	store.SetAll(ctx, []models.ServiceRequest{})
	assert.Empty(t, store.All(ctx))
}

func TestPostRequestAddsOneOpenEntry(t *testing.T) {
	ctx := context.Background()
	s, _ := newKV(t)
	store := NewRequestStore(s)
	before := store.All(ctx)

	added := store.Add(ctx, models.ServiceRequest{Category: "Plumber", Description: "Fix tap", Suburb: "Auckland"})
	after := store.All(ctx)

	require.Len(t, after, len(before)+1)
	last := after[len(after)-1]
	assert.Equal(t, added, last)
	assert.Equal(t, models.StatusOpen, last.Status)
	assert.Regexp(t, regexp.MustCompile(`^req_`), last.ID)
	assert.False(t, last.CreatedAt.IsZero())
}

func TestRequestsDropInvalidRecords(t *testing.T) {
	ctx := context.Background()
	s, mem := newKV(t)
	raw := `[{"id":"req_A","category":"Plumber","suburb":"Auckland","status":"OPEN"},{"category":"no id"},{"id":"req_B","status":"WEIRD"}]`
	require.NoError(t, mem.Set(ctx, "test:"+KeyRequests, []byte(raw)))

	reqs := NewRequestStore(s).All(ctx)
	require.Len(t, reqs, 2)
	assert.Equal(t, models.StatusOpen, reqs[1].Status)
}

func TestOpenFiltersByArea(t *testing.T) {
	ctx := context.Background()
	s, _ := newKV(t)
	store := NewRequestStore(s)
	store.SetAll(ctx, []models.ServiceRequest{
		{ID: "a", Suburb: "Auckland", Status: models.StatusOpen},
		{ID: "b", Suburb: "auckland", Status: models.StatusMatched},
		{ID: "c", Suburb: "Dunedin", Status: models.StatusOpen},
	})

	assert.Len(t, store.Open(ctx, "all"), 2)
	assert.Len(t, store.Open(ctx, ""), 2)
	got := store.Open(ctx, "AUCKLAND")
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newKV(t)
	store := NewProviderStore(s)

	_, ok := store.Get(ctx)
	assert.False(t, ok)

	created := store.Create(ctx)
	assert.Equal(t, 20, created.WalletCredits)
	assert.Regexp(t, regexp.MustCompile(`^P-[A-Z0-9]{5}-[A-Z]$`), created.ID)

	got, ok := store.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.WalletCredits, got.WalletCredits)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	store.Delete(ctx)
	_, ok = store.Get(ctx)
	assert.False(t, ok)
}

func TestProviderWithoutIDReadsAbsent(t *testing.T) {
	ctx := context.Background()
	s, mem := newKV(t)
	require.NoError(t, mem.Set(ctx, "test:"+KeyProvider, []byte(`{"walletCredits":5}`)))
	_, ok := NewProviderStore(s).Get(ctx)
	assert.False(t, ok)
}

func TestTaxiAddAndFilter(t *testing.T) {
	ctx := context.Background()
	s, _ := newKV(t)
	store := NewTaxiStore(s)
	store.SeedIfEmpty(ctx)
	assert.Empty(t, store.Requests(ctx))

	a := store.Add(ctx, "Auckland", "Airport", models.Auckland, "")
	store.Add(ctx, "Dunedin", "Octagon", models.Dunedin, "two bags")
	assert.Regexp(t, regexp.MustCompile(`^ride_[A-Z0-9]{5}$`), a.ID)
	assert.Equal(t, models.TaxiAvailable, a.Status)

	assert.Len(t, store.OpenByArea(ctx, "All"), 2)
	got := store.OpenByArea(ctx, "auckland")
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestTaxiSeedKeepsExisting(t *testing.T) {
	ctx := context.Background()
	s, _ := newKV(t)
	store := NewTaxiStore(s)
	store.Add(ctx, "A", "B", models.Hamilton, "")
	store.SeedIfEmpty(ctx)
	assert.Len(t, store.Requests(ctx), 1)

	activity, ok := kv.Lookup[[]json.RawMessage](ctx, s, KeyTaxiActivity)
	require.True(t, ok)
	assert.Empty(t, activity)
}

func TestCredentialsDefaultStatus(t *testing.T) {
	ctx := context.Background()
	s, _ := newKV(t)
	store := NewTaxiStore(s)
	store.SetCredentials(ctx, models.TaxiCredentials{ID: "taxi_cred_AB12", DriverName: "Sam"})
	c, ok := store.Credentials(ctx)
	require.True(t, ok)
	assert.Equal(t, models.CredentialsPending, c.Status)
}

func TestFeedbackRecentForProvider(t *testing.T) {
	ctx := context.Background()
	s, _ := newKV(t)
	store := NewFeedbackStore(s)
	store.Now = tick(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	for i, id := range []string{"P-1", "P-2", "P-1", "P-1"} {
		_, err := store.Add(ctx, id, i+1, "")
		require.NoError(t, err)
	}

	got := store.RecentForProvider(ctx, "P-1", 2)
	require.Len(t, got, 2)
	assert.Equal(t, 4, got[0].Rating)
	assert.Equal(t, 3, got[1].Rating)
	assert.True(t, got[0].CreatedAt.After(got[1].CreatedAt))
	for _, fb := range got {
		assert.Equal(t, "P-1", fb.ProviderID)
	}
	assert.Empty(t, store.RecentForProvider(ctx, "P-9", 2))
}

func TestFeedbackRequiresRating(t *testing.T) {
	s, _ := newKV(t)
	_, err := NewFeedbackStore(s).Add(context.Background(), "P-1", 0, "great")
	assert.ErrorIs(t, err, ErrRatingRequired)
}

func TestReportsAddExportReset(t *testing.T) {
	ctx := context.Background()
	s, _ := newKV(t)
	store := NewReportStore(s)
	store.Now = tick(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	rep := store.Add(ctx, models.TesterReport{DeviceModel: "Pixel 8", PageFlow: "browse", Severity: "low"})
	assert.Regexp(t, regexp.MustCompile(`^report_\d+$`), rep.ID)

	raw, err := store.ExportJSON(ctx)
	require.NoError(t, err)
	var decoded []models.TesterReport
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)

	summary := store.Summary(ctx)
	assert.Contains(t, summary, "Device: Pixel 8")
	assert.Contains(t, summary, "Notes: None")

	store.Reset(ctx)
	assert.Empty(t, store.All(ctx))
}
