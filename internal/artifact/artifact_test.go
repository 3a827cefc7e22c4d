package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/finshield/finshield/internal/feature"
	"github.com/finshield/finshield/internal/model"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fraud_model.json")

	snap := &model.Snapshot{
		Scaler: &feature.Scaler{
			Mean: []float64{1, 2, 3, 4, 5, 6, 7, 8},
			Std:  []float64{1, 1, 1, 1, 1, 1, 1, 1},
		},
		Version:   "v3",
		Samples:   120,
		TrainedAt: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	}

	if err := Save(path, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Version != "v3" || got.Samples != 120 {
		t.Errorf("metadata mismatch: %+v", got)
	}
	if !got.TrainedAt.Equal(snap.TrainedAt) {
		t.Errorf("TrainedAt = %v, want %v", got.TrainedAt, snap.TrainedAt)
	}
	if got.Scaler == nil || got.Scaler.Mean[2] != 3 {
		t.Errorf("scaler not round-tripped: %+v", got.Scaler)
	}
	if got.LSTM != nil {
		t.Error("omitted LSTM should stay nil")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestSaveNil(t *testing.T) {
	if err := Save(filepath.Join(t.TempDir(), "x.json"), nil); err == nil {
		t.Error("expected error for nil snapshot")
	}
}

func TestSaveNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fraud_model.json")

	if err := Save(path, &model.Snapshot{Version: "v1"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "fraud_model.json" {
		t.Errorf("temp file leaked: %v", entries)
	}
}
