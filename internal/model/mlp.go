package model

import (
	"fmt"
	"math"
	"math/rand"
)

// MLP is a feed-forward multi-class classifier: two ReLU hidden layers
// (100, 50 units) and a softmax output, trained with mini-batch gradient
// descent on cross-entropy for at most 500 epochs with early stopping.
type MLP struct {
	Layers []*DenseLayer `json:"layers"`
}

// DenseLayer holds the weights of one fully connected layer,
// W[out][in] plus a bias per output unit.
type DenseLayer struct {
	W [][]float64 `json:"w"`
	B []float64   `json:"b"`
}

const (
	mlpMaxIter   = 500
	mlpBatchSize = 32
	mlpLearnRate = 0.01
	mlpTol       = 1e-4
	mlpPatience  = 10
)

func newDenseLayer(in, out int, rng *rand.Rand) *DenseLayer {
	// He initialization for ReLU stacks.
	scale := math.Sqrt(2.0 / float64(in))
	l := &DenseLayer{
		W: make([][]float64, out),
		B: make([]float64, out),
	}
	for o := range l.W {
		l.W[o] = make([]float64, in)
		for i := range l.W[o] {
			l.W[o][i] = rng.NormFloat64() * scale
		}
	}
	return l
}

func (l *DenseLayer) forward(in []float64) []float64 {
	out := make([]float64, len(l.W))
	for o, row := range l.W {
		sum := l.B[o]
		for i, w := range row {
			sum += w * in[i]
		}
		out[o] = sum
	}
	return out
}

// backward propagates the output-side gradient delta through the layer,
// applying the weight update in place and returning the input-side
// gradient. lr already includes the batch-size division.
func (l *DenseLayer) backward(in, delta []float64, lr float64) []float64 {
	dIn := make([]float64, len(in))
	for o, row := range l.W {
		d := delta[o]
		for i := range row {
			dIn[i] += row[i] * d
			row[i] -= lr * d * in[i]
		}
		l.B[o] -= lr * d
	}
	return dIn
}

func relu(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		if x > 0 {
			out[i] = x
		}
	}
	return out
}

func reluGrad(pre, delta []float64) []float64 {
	out := make([]float64, len(delta))
	for i, x := range pre {
		if x > 0 {
			out[i] = delta[i]
		}
	}
	return out
}

func softmax(v []float64) []float64 {
	maxV := v[0]
	for _, x := range v[1:] {
		if x > maxV {
			maxV = x
		}
	}
	out := make([]float64, len(v))
	var sum float64
	for i, x := range v {
		out[i] = math.Exp(x - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// FitMLP trains the classifier.
func FitMLP(x [][]float64, y []int, numClasses int, rng *rand.Rand) (*MLP, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("mlp: invalid training set: %d samples, %d labels", len(x), len(y))
	}

	in := len(x[0])
	m := &MLP{Layers: []*DenseLayer{
		newDenseLayer(in, 100, rng),
		newDenseLayer(100, 50, rng),
		newDenseLayer(50, numClasses, rng),
	}}

	n := len(x)
	bestLoss := math.Inf(1)
	stale := 0

	for epoch := 0; epoch < mlpMaxIter; epoch++ {
		perm := rng.Perm(n)
		var epochLoss float64

		for start := 0; start < n; start += mlpBatchSize {
			end := start + mlpBatchSize
			if end > n {
				end = n
			}
			lr := mlpLearnRate / float64(end-start)

			for _, pi := range perm[start:end] {
				epochLoss += m.step(x[pi], y[pi], lr)
			}
		}

		epochLoss /= float64(n)
		if bestLoss-epochLoss < mlpTol {
			stale++
			if stale >= mlpPatience {
				break
			}
		} else {
			stale = 0
		}
		if epochLoss < bestLoss {
			bestLoss = epochLoss
		}
	}

	return m, nil
}

// step runs one forward/backward pass for a single sample and returns
// its cross-entropy loss.
func (m *MLP) step(row []float64, label int, lr float64) float64 {
	z1 := m.Layers[0].forward(row)
	a1 := relu(z1)
	z2 := m.Layers[1].forward(a1)
	a2 := relu(z2)
	z3 := m.Layers[2].forward(a2)
	probs := softmax(z3)

	loss := -math.Log(probs[label] + 1e-15)

	// Softmax + cross-entropy gradient.
	delta := make([]float64, len(probs))
	copy(delta, probs)
	delta[label] -= 1

	d2 := m.Layers[2].backward(a2, delta, lr)
	d2 = reluGrad(z2, d2)
	d1 := m.Layers[1].backward(a1, d2, lr)
	d1 = reluGrad(z1, d1)
	m.Layers[0].backward(row, d1, lr)

	return loss
}

// PredictProba returns the class distribution for one sample.
func (m *MLP) PredictProba(row []float64) []float64 {
	a := row
	last := len(m.Layers) - 1
	for i, l := range m.Layers {
		a = l.forward(a)
		if i < last {
			a = relu(a)
		}
	}
	return softmax(a)
}
