package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/yinsee/internal/kv"
	"github.com/example/yinsee/internal/models"
)

// Publisher receives every recorded entry after it is stored locally.
type Publisher interface {
	PublishActivity(ctx context.Context, profile string, e models.ActivityLogEntry) error
}

// Ledger is an append-only, most-recent-first list of entries under one key.
type Ledger struct {
	kv        *kv.Store
	key       string
	publisher Publisher
	logger    *slog.Logger
	Now       func() time.Time
}

func NewLedger(s *kv.Store, key string, pub Publisher, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{kv: s, key: key, publisher: pub, logger: logger}
}

func (l *Ledger) Key() string { return l.key }

func (l *Ledger) All(ctx context.Context) []models.ActivityLogEntry {
	raw := kv.Read(ctx, l.kv, l.key, []models.ActivityLogEntry{})
	out := make([]models.ActivityLogEntry, 0, len(raw))
	for i := range raw {
		if raw[i].Normalize() {
			out = append(out, raw[i])
		}
	}
	return out
}

// Record stamps e and prepends it. Call Published afterwards, once any lock
// guarding the write is released.
func (l *Ledger) Record(ctx context.Context, e models.ActivityLogEntry) models.ActivityLogEntry {
	e = l.stamp(e)
	l.kv.Write(ctx, l.key, append([]models.ActivityLogEntry{e}, l.All(ctx)...))
	return e
}

// Stage stamps e and puts the prepended list into b. Call Published once the
// batch is committed.
func (l *Ledger) Stage(ctx context.Context, b *kv.Batch, e models.ActivityLogEntry) models.ActivityLogEntry {
	e = l.stamp(e)
	b.Put(l.key, append([]models.ActivityLogEntry{e}, l.All(ctx)...))
	return e
}

// Published hands stored entries to the publisher, if any. Failures are only
// logged. Publishing may block for the producer timeout.
func (l *Ledger) Published(ctx context.Context, entries ...models.ActivityLogEntry) {
	if l.publisher == nil {
		return
	}
	for _, e := range entries {
		if err := l.publisher.PublishActivity(ctx, l.kv.Profile(), e); err != nil {
			l.logger.Warn("activity publish failed", "ledger", l.key, "type", e.Type, "error", err)
		}
	}
}

// Recent returns the first n entries.
func (l *Ledger) Recent(ctx context.Context, n int) []models.ActivityLogEntry {
	all := l.All(ctx)
	if n >= 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// Count returns the number of entries of type t.
func (l *Ledger) Count(ctx context.Context, t models.ActivityType) int {
	n := 0
	for _, e := range l.All(ctx) {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (l *Ledger) Clear(ctx context.Context) { l.kv.Remove(ctx, l.key) }

func (l *Ledger) stamp(e models.ActivityLogEntry) models.ActivityLogEntry {
	if l.Now != nil {
		e.CreatedAt = l.Now().UTC()
	} else {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

// Format renders e as a single line of text.
func Format(e models.ActivityLogEntry) string {
	switch e.Type {
	case models.ActivityRequestPosted:
		return fmt.Sprintf("Request posted: %s, %s", e.Category, e.Suburb)
	case models.ActivityConnected:
		return fmt.Sprintf("Connected request: %s, %s — debited %d credits", e.Category, e.Suburb, e.Debited)
	case models.ActivityTopUp:
		return fmt.Sprintf("Top up +%d credits", e.Amount)
	case models.ActivityTaxiRequestPosted:
		return fmt.Sprintf("Taxi requested: %s → %s (%s)", e.Pickup, e.Destination, e.Area)
	case models.ActivityTaxiConnected:
		return fmt.Sprintf("Taxi connected: %s → %s (%s)", e.Pickup, e.Destination, e.Area)
	case models.ActivityTaxiCredentials:
		return "Taxi credentials submitted"
	case models.ActivityTesterReport, models.ActivityTesterReset:
		return e.Message
	default:
		return "Unknown activity"
	}
}
