package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/example/yinsee/internal/kv"
	"github.com/example/yinsee/internal/models"
)

var ErrRatingRequired = errors.New("rating is required")

type FeedbackStore struct {
	kv  *kv.Store
	Now func() time.Time
}

func NewFeedbackStore(s *kv.Store) *FeedbackStore { return &FeedbackStore{kv: s} }

func (f *FeedbackStore) All(ctx context.Context) []models.Feedback {
	items, _ := readList[models.Feedback](ctx, f.kv, KeyFeedback)
	return items
}

// Add appends a timestamped entry. Only the rating is checked.
func (f *FeedbackStore) Add(ctx context.Context, providerID string, rating int, comment string) (models.Feedback, error) {
	if rating == 0 {
		return models.Feedback{}, ErrRatingRequired
	}
	fb := models.Feedback{
		ProviderID: providerID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  clock(f.Now),
	}
	f.kv.Write(ctx, KeyFeedback, append(f.All(ctx), fb))
	return fb, nil
}

// RecentForProvider returns at most n entries for providerID, newest first.
func (f *FeedbackStore) RecentForProvider(ctx context.Context, providerID string, n int) []models.Feedback {
	out := []models.Feedback{}
	for _, fb := range f.All(ctx) {
		if fb.ProviderID == providerID {
			out = append(out, fb)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
