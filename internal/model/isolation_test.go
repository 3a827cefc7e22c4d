package model

import (
	"math/rand"
	"testing"
)

func TestIsolationForestOutlier(t *testing.T) {
	rng := rand.New(rand.NewSource(4))

	// Tight cluster around the origin.
	var x [][]float64
	for i := 0; i < 200; i++ {
		row := make([]float64, 8)
		for j := range row {
			row[j] = rng.NormFloat64() * 0.5
		}
		x = append(x, row)
	}

	f, err := FitIsolationForest(x, rng)
	if err != nil {
		t.Fatalf("FitIsolationForest failed: %v", err)
	}

	outlier := []float64{50, 50, 50, 50, 50, 50, 50, 50}
	inlier := make([]float64, 8)

	if !f.IsAnomaly(outlier) {
		t.Errorf("distant outlier not flagged (score %.3f, threshold %.3f)",
			f.Score(outlier), f.Threshold)
	}
	if f.IsAnomaly(inlier) {
		t.Errorf("cluster center flagged as anomaly (score %.3f, threshold %.3f)",
			f.Score(inlier), f.Threshold)
	}
	if f.Score(outlier) <= f.Score(inlier) {
		t.Error("outlier should score higher than inlier")
	}
}

func TestIsolationForestScoreRange(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	var x [][]float64
	for i := 0; i < 100; i++ {
		x = append(x, []float64{rng.Float64(), rng.Float64() * 10})
	}

	f, err := FitIsolationForest(x, rng)
	if err != nil {
		t.Fatalf("FitIsolationForest failed: %v", err)
	}

	for _, row := range x {
		s := f.Score(row)
		if s <= 0 || s >= 1 {
			t.Fatalf("score %v outside (0,1)", s)
		}
	}
}

func TestIsolationForestEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	if _, err := FitIsolationForest(nil, rng); err == nil {
		t.Error("expected error for empty training set")
	}
}
