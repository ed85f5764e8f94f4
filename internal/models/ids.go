package models

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	upperAlnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	upper      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewRequestID returns "req_" followed by six base-36 characters.
func NewRequestID() string { return "req_" + randomString(upperAlnum, 6) }

// NewProviderID returns an id shaped like "P-XXXXX-C". The trailing letter is
// cosmetic and never checked.
func NewProviderID() string {
	return "P-" + randomString(upperAlnum, 5) + "-" + randomString(upper, 1)
}

func NewTaxiRequestID() string { return "ride_" + randomString(upperAlnum, 5) }

func NewCredentialsID() string { return "taxi_cred_" + randomString(upperAlnum, 4) }

func NewReportID(now time.Time) string {
	return "report_" + strconv.FormatInt(now.UnixMilli(), 10)
}

func randomString(alphabet string, n int) string {
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			b.WriteByte(alphabet[i%len(alphabet)])
			continue
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String()
}
