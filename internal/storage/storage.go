package storage

import (
	"context"
	"time"

	"github.com/example/yinsee/internal/kv"
)

// Persisted keys, one JSON value each.
const (
	KeyRequests        = "requests"
	KeyProvider        = "provider"
	KeyTaxiRequests    = "taxi_requests"
	KeyTaxiCredentials = "taxi_credentials"
	KeyTaxiActivity    = "taxi_activity"
	KeyActivity        = "activity"
	KeyFeedback        = "feedback"
	KeyTesterReports   = "testerReports"
)

type normalizer[T any] interface {
	*T
	Normalize() bool
}

// readList decodes a JSON array and keeps only records that normalize. found
// is false when the key is absent or not a well-formed array.
func readList[T any, PT normalizer[T]](ctx context.Context, s *kv.Store, key string) (out []T, found bool) {
	raw, ok := kv.Lookup[[]T](ctx, s, key)
	if !ok {
		return []T{}, false
	}
	out = make([]T, 0, len(raw))
	for i := range raw {
		if PT(&raw[i]).Normalize() {
			out = append(out, raw[i])
		}
	}
	return out, true
}

// clock returns now() in UTC, falling back to time.Now.
func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}
