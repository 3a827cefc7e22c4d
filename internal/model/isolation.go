package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// contamination is the assumed anomaly fraction; the score threshold is
// fit as the matching quantile of the training scores.
const contamination = 0.1

// IsolationForest is an unsupervised anomaly detector. Points that
// isolate in few random splits receive short average path lengths and
// high scores; the detector is trained on the feature distribution only
// and ignores labels.
type IsolationForest struct {
	Trees      []*IsoNode `json:"trees"`
	SampleSize int        `json:"sample_size"`
	Threshold  float64    `json:"threshold"`
}

// IsoNode is one node of an isolation tree. Leaf nodes carry the number
// of training points that terminated there.
type IsoNode struct {
	Feature int      `json:"feature"`
	Split   float64  `json:"split"`
	Left    *IsoNode `json:"left,omitempty"`
	Right   *IsoNode `json:"right,omitempty"`
	Size    int      `json:"size"`
}

// FitIsolationForest trains the detector on the feature distribution.
func FitIsolationForest(x [][]float64, rng *rand.Rand) (*IsolationForest, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("isolation forest: no samples")
	}

	const numTrees = 100
	sampleSize := len(x)
	if sampleSize > 256 {
		sampleSize = 256
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sampleSize) + 1)))

	f := &IsolationForest{SampleSize: sampleSize, Trees: make([]*IsoNode, 0, numTrees)}
	for t := 0; t < numTrees; t++ {
		idx := rng.Perm(len(x))[:sampleSize]
		f.Trees = append(f.Trees, buildIsoTree(x, idx, 0, heightLimit, rng))
	}

	// Threshold at the (1 - contamination) quantile of training scores.
	scores := make([]float64, len(x))
	for i, row := range x {
		scores[i] = f.Score(row)
	}
	sort.Float64s(scores)
	q := int(float64(len(scores)) * (1 - contamination))
	if q >= len(scores) {
		q = len(scores) - 1
	}
	f.Threshold = scores[q]

	return f, nil
}

func buildIsoTree(x [][]float64, idx []int, height, limit int, rng *rand.Rand) *IsoNode {
	if height >= limit || len(idx) <= 1 {
		return &IsoNode{Size: len(idx)}
	}

	// Pick a feature with spread; bail to a leaf if every column is constant.
	numFeatures := len(x[0])
	feature, lo, hi := -1, 0.0, 0.0
	for _, f := range rng.Perm(numFeatures) {
		lo, hi = math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := x[i][f]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if lo < hi {
			feature = f
			break
		}
	}
	if feature < 0 {
		return &IsoNode{Size: len(idx)}
	}

	split := lo + rng.Float64()*(hi-lo)

	var left, right []int
	for _, i := range idx {
		if x[i][feature] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &IsoNode{
		Feature: feature,
		Split:   split,
		Left:    buildIsoTree(x, left, height+1, limit, rng),
		Right:   buildIsoTree(x, right, height+1, limit, rng),
		Size:    len(idx),
	}
}

// Score returns the anomaly score in (0, 1); higher is more anomalous.
func (f *IsolationForest) Score(row []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var total float64
	for _, tree := range f.Trees {
		total += pathLength(tree, row, 0)
	}
	avg := total / float64(len(f.Trees))
	return math.Pow(2, -avg/avgPathLength(f.SampleSize))
}

// IsAnomaly reports whether a point scores past the fitted threshold.
func (f *IsolationForest) IsAnomaly(row []float64) bool {
	return f.Score(row) > f.Threshold
}

func pathLength(node *IsoNode, row []float64, depth float64) float64 {
	for node.Left != nil {
		if row[node.Feature] < node.Split {
			node = node.Left
		} else {
			node = node.Right
		}
		depth++
	}
	return depth + avgPathLength(node.Size)
}

// avgPathLength is the expected path length of an unsuccessful BST search
// over n points, the standard isolation-forest normalizer.
func avgPathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		fn := float64(n)
		h := math.Log(fn-1) + 0.5772156649015329
		return 2*h - 2*(fn-1)/fn
	}
}
