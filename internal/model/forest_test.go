package model

import (
	"math/rand"
	"testing"
)

// twoClusters builds a linearly separable 3-class set: class centers far
// apart with small jitter.
func threeClusters(n int, rng *rand.Rand) ([][]float64, []int) {
	centers := [][]float64{
		{-5, -5, -5, -5, -5, -5, -5, -5},
		{0, 0, 0, 0, 0, 0, 0, 0},
		{5, 5, 5, 5, 5, 5, 5, 5},
	}
	var x [][]float64
	var y []int
	for i := 0; i < n; i++ {
		c := i % 3
		row := make([]float64, 8)
		for j := range row {
			row[j] = centers[c][j] + rng.NormFloat64()*0.5
		}
		x = append(x, row)
		y = append(y, c)
	}
	return x, y
}

func TestForestSeparable(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x, y := threeClusters(150, rng)

	f, err := FitForest(x, y, 3, rng)
	if err != nil {
		t.Fatalf("FitForest failed: %v", err)
	}

	correct := 0
	for i, row := range x {
		probs := f.PredictProba(row)
		if argmax(probs) == y[i] {
			correct++
		}
	}
	if acc := float64(correct) / float64(len(x)); acc < 0.95 {
		t.Errorf("training accuracy = %.2f, want >= 0.95", acc)
	}
}

func TestForestDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	x, y := threeClusters(60, rng)

	f, err := FitForest(x, y, 3, rng)
	if err != nil {
		t.Fatalf("FitForest failed: %v", err)
	}

	probs := f.PredictProba(x[0])
	assertDistribution(t, probs)
}

func TestForestEmptyInput(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	if _, err := FitForest(nil, nil, 3, rng); err == nil {
		t.Error("expected error for empty training set")
	}
	if _, err := FitForest([][]float64{{1}}, []int{0, 1}, 3, rng); err == nil {
		t.Error("expected error for mismatched labels")
	}
}

func argmax(v []float64) int {
	best := 0
	for i, x := range v {
		if x > v[best] {
			best = i
		}
	}
	return best
}

func assertDistribution(t *testing.T, probs []float64) {
	t.Helper()
	var sum float64
	for i, p := range probs {
		if p < 0 || p > 1 {
			t.Errorf("probs[%d] = %v, want in [0,1]", i, p)
		}
		sum += p
	}
	if sum < 1-1e-6 || sum > 1+1e-6 {
		t.Errorf("probs sum = %v, want 1", sum)
	}
}
