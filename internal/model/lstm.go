package model

import (
	"fmt"
	"math"
	"math/rand"
)

// LSTM is the sequence-aware classifier. Transactions are scored as
// length-1 sequences through two stacked 50-unit LSTM cells with dropout
// 0.2 between and after, then a 25-unit ReLU dense layer and a softmax
// output. Training runs a fixed 10 epochs with batch size 32.
type LSTM struct {
	Cell1   *LSTMCell   `json:"cell1"`
	Cell2   *LSTMCell   `json:"cell2"`
	Dense   *DenseLayer `json:"dense"`
	Out     *DenseLayer `json:"out"`
	Dropout float64     `json:"dropout"`
}

// Gate indices into the cell weight arrays.
const (
	gateInput = iota
	gateForget
	gateCand
	gateOutput
	numGates
)

// LSTMCell holds the gate weights of one recurrent layer:
// W over the input, U over the previous hidden state, B the biases.
type LSTMCell struct {
	W      [numGates][][]float64 `json:"w"`
	U      [numGates][][]float64 `json:"u"`
	B      [numGates][]float64   `json:"b"`
	In     int                   `json:"in"`
	Hidden int                   `json:"hidden"`
}

const (
	lstmEpochs    = 10
	lstmBatchSize = 32
	lstmLearnRate = 0.05
	lstmDropout   = 0.2
)

// MinLSTMSamples is the training-set size above which the sequence
// classifier participates; at or below it the member is skipped and a
// uniform default vector is substituted at inference.
const MinLSTMSamples = 10

func newLSTMCell(in, hidden int, rng *rand.Rand) *LSTMCell {
	c := &LSTMCell{In: in, Hidden: hidden}
	scale := math.Sqrt(1.0 / float64(in))
	rscale := math.Sqrt(1.0 / float64(hidden))
	for g := 0; g < numGates; g++ {
		c.W[g] = make([][]float64, hidden)
		c.U[g] = make([][]float64, hidden)
		c.B[g] = make([]float64, hidden)
		for u := 0; u < hidden; u++ {
			c.W[g][u] = make([]float64, in)
			for i := range c.W[g][u] {
				c.W[g][u][i] = rng.NormFloat64() * scale
			}
			c.U[g][u] = make([]float64, hidden)
			for i := range c.U[g][u] {
				c.U[g][u][i] = rng.NormFloat64() * rscale
			}
		}
	}
	// Forget-gate bias starts at 1 so early training does not erase state.
	for u := range c.B[gateForget] {
		c.B[gateForget][u] = 1
	}
	return c
}

// cellState caches one forward step for backpropagation.
type cellState struct {
	x, hPrev, cPrev []float64
	gates           [numGates][]float64
	c, tanhC        []float64
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// forward runs one timestep and returns the hidden state.
func (cell *LSTMCell) forward(x, hPrev, cPrev []float64) ([]float64, *cellState) {
	st := &cellState{x: x, hPrev: hPrev, cPrev: cPrev}
	for g := 0; g < numGates; g++ {
		st.gates[g] = make([]float64, cell.Hidden)
	}
	st.c = make([]float64, cell.Hidden)
	st.tanhC = make([]float64, cell.Hidden)
	h := make([]float64, cell.Hidden)

	for u := 0; u < cell.Hidden; u++ {
		var pre [numGates]float64
		for g := 0; g < numGates; g++ {
			sum := cell.B[g][u]
			for i, w := range cell.W[g][u] {
				sum += w * x[i]
			}
			for i, w := range cell.U[g][u] {
				sum += w * hPrev[i]
			}
			pre[g] = sum
		}
		i := sigmoid(pre[gateInput])
		f := sigmoid(pre[gateForget])
		g := math.Tanh(pre[gateCand])
		o := sigmoid(pre[gateOutput])

		st.gates[gateInput][u] = i
		st.gates[gateForget][u] = f
		st.gates[gateCand][u] = g
		st.gates[gateOutput][u] = o

		st.c[u] = f*cPrev[u] + i*g
		st.tanhC[u] = math.Tanh(st.c[u])
		h[u] = o * st.tanhC[u]
	}

	return h, st
}

// backward propagates dh through one cached step, updates the weights in
// place and returns the gradient with respect to the step input.
func (cell *LSTMCell) backward(st *cellState, dh []float64, lr float64) []float64 {
	dx := make([]float64, cell.In)

	for u := 0; u < cell.Hidden; u++ {
		i := st.gates[gateInput][u]
		f := st.gates[gateForget][u]
		g := st.gates[gateCand][u]
		o := st.gates[gateOutput][u]
		tc := st.tanhC[u]

		dO := dh[u] * tc
		dC := dh[u] * o * (1 - tc*tc)

		var da [numGates]float64
		da[gateInput] = dC * g * i * (1 - i)
		da[gateForget] = dC * st.cPrev[u] * f * (1 - f)
		da[gateCand] = dC * i * (1 - g*g)
		da[gateOutput] = dO * o * (1 - o)

		for gate := 0; gate < numGates; gate++ {
			d := da[gate]
			if d == 0 {
				continue
			}
			wRow := cell.W[gate][u]
			for idx := range wRow {
				dx[idx] += wRow[idx] * d
				wRow[idx] -= lr * d * st.x[idx]
			}
			uRow := cell.U[gate][u]
			for idx := range uRow {
				uRow[idx] -= lr * d * st.hPrev[idx]
			}
			cell.B[gate][u] -= lr * d
		}
	}

	return dx
}

// FitLSTM trains the sequence classifier. Callers are expected to gate on
// MinLSTMSamples; training on fewer samples is not an error here.
func FitLSTM(x [][]float64, y []int, numClasses int, rng *rand.Rand) (*LSTM, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("lstm: invalid training set: %d samples, %d labels", len(x), len(y))
	}

	in := len(x[0])
	m := &LSTM{
		Cell1:   newLSTMCell(in, 50, rng),
		Cell2:   newLSTMCell(50, 50, rng),
		Dense:   newDenseLayer(50, 25, rng),
		Out:     newDenseLayer(25, numClasses, rng),
		Dropout: lstmDropout,
	}

	n := len(x)
	for epoch := 0; epoch < lstmEpochs; epoch++ {
		perm := rng.Perm(n)
		for start := 0; start < n; start += lstmBatchSize {
			end := start + lstmBatchSize
			if end > n {
				end = n
			}
			lr := lstmLearnRate / float64(end-start)
			for _, pi := range perm[start:end] {
				m.step(x[pi], y[pi], lr, rng)
			}
		}
	}

	return m, nil
}

// dropoutMask returns an inverted-dropout mask: kept units are scaled by
// 1/(1-p) so inference needs no rescaling.
func (m *LSTM) dropoutMask(size int, rng *rand.Rand) []float64 {
	mask := make([]float64, size)
	keep := 1 - m.Dropout
	for i := range mask {
		if rng.Float64() < keep {
			mask[i] = 1 / keep
		}
	}
	return mask
}

func applyMask(v, mask []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = v[i] * mask[i]
	}
	return out
}

func (m *LSTM) step(row []float64, label int, lr float64, rng *rand.Rand) {
	zeros1 := make([]float64, m.Cell1.Hidden)
	zeros2 := make([]float64, m.Cell2.Hidden)

	h1, st1 := m.Cell1.forward(row, zeros1, zeros1)
	mask1 := m.dropoutMask(len(h1), rng)
	h1d := applyMask(h1, mask1)

	h2, st2 := m.Cell2.forward(h1d, zeros2, zeros2)
	mask2 := m.dropoutMask(len(h2), rng)
	h2d := applyMask(h2, mask2)

	z3 := m.Dense.forward(h2d)
	a3 := relu(z3)
	z4 := m.Out.forward(a3)
	probs := softmax(z4)

	delta := make([]float64, len(probs))
	copy(delta, probs)
	delta[label] -= 1

	d3 := m.Out.backward(a3, delta, lr)
	d3 = reluGrad(z3, d3)
	dh2d := m.Dense.backward(h2d, d3, lr)

	dh2 := applyMask(dh2d, mask2)
	dh1d := m.Cell2.backward(st2, dh2, lr)
	dh1 := applyMask(dh1d, mask1)
	m.Cell1.backward(st1, dh1, lr)
}

// PredictProba returns the class distribution for one sample.
func (m *LSTM) PredictProba(row []float64) []float64 {
	zeros1 := make([]float64, m.Cell1.Hidden)
	zeros2 := make([]float64, m.Cell2.Hidden)

	h1, _ := m.Cell1.forward(row, zeros1, zeros1)
	h2, _ := m.Cell2.forward(h1, zeros2, zeros2)
	a := relu(m.Dense.forward(h2))
	return softmax(m.Out.forward(a))
}
