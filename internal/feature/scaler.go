package feature

import (
	"fmt"
	"math"
)

// Scaler applies z-score normalization. The mean and standard deviation
// are fit once during training and reused verbatim at inference; fitting
// at inference time is a contract violation.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-column mean and standard deviation.
func FitScaler(samples [][]float64) (*Scaler, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("scaler: no samples")
	}
	cols := len(samples[0])

	mean := make([]float64, cols)
	for _, row := range samples {
		for j, v := range row {
			mean[j] += v
		}
	}
	n := float64(len(samples))
	for j := range mean {
		mean[j] /= n
	}

	std := make([]float64, cols)
	for _, row := range samples {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
		if std[j] == 0 {
			// Constant column; leave values centered instead of dividing by zero.
			std[j] = 1
		}
	}

	return &Scaler{Mean: mean, Std: std}, nil
}

// Transform normalizes one row with the fitted parameters.
func (s *Scaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}

// TransformAll normalizes a batch of rows.
func (s *Scaler) TransformAll(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = s.Transform(row)
	}
	return out
}
