// Package feature converts transactions into fixed-length numeric vectors.
package feature

import (
	"hash/fnv"
	"time"

	"github.com/finshield/finshield/internal/domain"
)

// Count is the number of fields in a feature vector.
const Count = 8

// Vector is the ordered feature representation of one transaction.
type Vector [Count]float64

// Defaults substituted when the timestamp cannot be parsed.
const (
	defaultHour    = 12.0
	defaultWeekday = 0.0
)

// hashBuckets bounds the numeric range of hashed string features so they
// stay in the same regime as the other fields.
const hashBuckets = 1000

// Extract derives the feature vector for a transaction. It is a total
// function: malformed timestamps and missing fields fall back to defaults,
// and the same transaction always yields the same vector, across process
// restarts.
func Extract(tx *domain.Transaction) Vector {
	hour, weekday := timeFeatures(tx.Timestamp)
	return Vector{
		tx.Amount,
		StableHash(tx.Merchant),
		StableHash(tx.Location),
		StableHash(tx.DeviceInfo),
		hour,
		weekday,
		float64(len(tx.IPAddress)),
		tx.Amount / 100.0,
	}
}

// ExtractAll derives feature vectors for a batch of transactions.
func ExtractAll(txs []*domain.Transaction) [][]float64 {
	out := make([][]float64, len(txs))
	for i, tx := range txs {
		v := Extract(tx)
		out[i] = v[:]
	}
	return out
}

// StableHash maps a string into [0, hashBuckets) using FNV-1a.
// FNV is fixed and versioned, so hashed features are reproducible across
// runs; a runtime-seeded hash here would silently invalidate trained weights.
func StableHash(s string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return float64(h.Sum32() % hashBuckets)
}

// timestampLayouts are tried in order; producers send ISO-8601 with or
// without a zone designator.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func timeFeatures(ts string) (hour, weekday float64) {
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, ts)
		if err != nil {
			continue
		}
		// Monday=0 .. Sunday=6
		wd := (int(t.Weekday()) + 6) % 7
		return float64(t.Hour()), float64(wd)
	}
	return defaultHour, defaultWeekday
}
