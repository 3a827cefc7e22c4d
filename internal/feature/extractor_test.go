package feature

import (
	"testing"

	"github.com/finshield/finshield/internal/domain"
)

func TestExtract(t *testing.T) {
	tx := &domain.Transaction{
		ID:         "tx-1",
		Amount:     5000,
		Merchant:   "Suspicious Merchant",
		Location:   "Nigeria",
		UserID:     "user_1",
		DeviceInfo: "Chrome Browser",
		IPAddress:  "10.0.0.1",
		Timestamp:  "2024-03-15T14:30:00Z",
	}

	v := Extract(tx)

	if v[0] != 5000 {
		t.Errorf("amount feature = %v, want 5000", v[0])
	}
	if v[7] != 50 {
		t.Errorf("normalized amount = %v, want 50", v[7])
	}
	if v[6] != float64(len("10.0.0.1")) {
		t.Errorf("ip length = %v, want %d", v[6], len("10.0.0.1"))
	}
	if v[4] != 14 {
		t.Errorf("hour = %v, want 14", v[4])
	}
	// 2024-03-15 is a Friday; Monday=0 mapping gives 4.
	if v[5] != 4 {
		t.Errorf("weekday = %v, want 4", v[5])
	}
	for i := 1; i <= 3; i++ {
		if v[i] < 0 || v[i] >= 1000 {
			t.Errorf("hash feature %d = %v, want in [0,1000)", i, v[i])
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	tx := &domain.Transaction{
		Amount:     12,
		Merchant:   "Starbucks",
		Location:   "Chicago",
		UserID:     "user_2",
		DeviceInfo: "iPhone",
		IPAddress:  "192.168.1.5",
		Timestamp:  "2024-03-15T08:00:00Z",
	}

	first := Extract(tx)
	for i := 0; i < 100; i++ {
		if got := Extract(tx); got != first {
			t.Fatalf("extraction not deterministic: %v != %v", got, first)
		}
	}
}

func TestExtractMalformedTimestamp(t *testing.T) {
	cases := []string{"", "not-a-time", "2024-13-45", "garbage Z"}
	for _, ts := range cases {
		t.Run(ts, func(t *testing.T) {
			v := Extract(&domain.Transaction{Timestamp: ts})
			if v[4] != 12 {
				t.Errorf("hour default = %v, want 12", v[4])
			}
			if v[5] != 0 {
				t.Errorf("weekday default = %v, want 0", v[5])
			}
		})
	}
}

func TestExtractMissingFields(t *testing.T) {
	// A zero-value transaction must still produce a vector.
	v := Extract(&domain.Transaction{})
	if v[0] != 0 || v[6] != 0 || v[7] != 0 {
		t.Errorf("zero transaction produced non-zero numeric features: %v", v)
	}
}

func TestStableHashRange(t *testing.T) {
	inputs := []string{"", "a", "Starbucks", "Suspicious Merchant", "Nigeria"}
	for _, s := range inputs {
		h := StableHash(s)
		if h < 0 || h >= 1000 {
			t.Errorf("StableHash(%q) = %v, want in [0,1000)", s, h)
		}
		if h != StableHash(s) {
			t.Errorf("StableHash(%q) not stable", s)
		}
	}
}

func TestScaler(t *testing.T) {
	samples := [][]float64{
		{1, 10, 5},
		{3, 10, 7},
		{5, 10, 9},
	}

	s, err := FitScaler(samples)
	if err != nil {
		t.Fatalf("FitScaler failed: %v", err)
	}

	if s.Mean[0] != 3 {
		t.Errorf("mean[0] = %v, want 3", s.Mean[0])
	}
	// Constant column must not divide by zero.
	if s.Std[1] != 1 {
		t.Errorf("std of constant column = %v, want 1", s.Std[1])
	}

	row := s.Transform([]float64{3, 10, 7})
	for j, v := range row {
		if v != 0 {
			t.Errorf("transform of mean row, col %d = %v, want 0", j, v)
		}
	}
}

func TestScalerEmpty(t *testing.T) {
	if _, err := FitScaler(nil); err == nil {
		t.Error("expected error for empty sample set")
	}
}
