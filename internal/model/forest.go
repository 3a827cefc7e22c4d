// Package model implements the ensemble members and the immutable model
// snapshot they are published in.
package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Forest is a random forest classifier. Each tree is grown on a bootstrap
// sample with per-split feature subsampling; leaves hold class
// distributions and PredictProba averages them across trees.
type Forest struct {
	Trees      []*TreeNode `json:"trees"`
	NumClasses int         `json:"num_classes"`
}

// TreeNode is one node of a decision tree. Leaf nodes carry Probs;
// internal nodes route on Feature < Threshold.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
	Probs     []float64 `json:"probs,omitempty"`
}

type forestParams struct {
	numTrees int
	maxDepth int
	minSplit int
}

func defaultForestParams() forestParams {
	return forestParams{numTrees: 100, maxDepth: 10, minSplit: 2}
}

// FitForest trains a random forest on the given samples.
func FitForest(x [][]float64, y []int, numClasses int, rng *rand.Rand) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("forest: invalid training set: %d samples, %d labels", len(x), len(y))
	}

	p := defaultForestParams()
	f := &Forest{NumClasses: numClasses, Trees: make([]*TreeNode, 0, p.numTrees)}

	n := len(x)
	mtry := int(math.Ceil(math.Sqrt(float64(len(x[0])))))

	for t := 0; t < p.numTrees; t++ {
		// Bootstrap sample
		idx := make([]int, n)
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		f.Trees = append(f.Trees, buildTree(x, y, idx, numClasses, mtry, 0, p, rng))
	}

	return f, nil
}

// PredictProba returns the class distribution averaged over all trees.
func (f *Forest) PredictProba(row []float64) []float64 {
	probs := make([]float64, f.NumClasses)
	if len(f.Trees) == 0 {
		return probs
	}
	for _, tree := range f.Trees {
		leaf := tree.descend(row)
		for c, p := range leaf.Probs {
			probs[c] += p
		}
	}
	inv := 1.0 / float64(len(f.Trees))
	for c := range probs {
		probs[c] *= inv
	}
	return probs
}

func (n *TreeNode) descend(row []float64) *TreeNode {
	node := n
	for node.Probs == nil {
		if row[node.Feature] < node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

func buildTree(x [][]float64, y []int, idx []int, numClasses, mtry, depth int, p forestParams, rng *rand.Rand) *TreeNode {
	counts := classCounts(y, idx, numClasses)

	if depth >= p.maxDepth || len(idx) < p.minSplit || isPure(counts) {
		return leaf(counts, len(idx))
	}

	feature, threshold, ok := bestSplit(x, y, idx, numClasses, mtry, rng)
	if !ok {
		return leaf(counts, len(idx))
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] < threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return leaf(counts, len(idx))
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      buildTree(x, y, left, numClasses, mtry, depth+1, p, rng),
		Right:     buildTree(x, y, right, numClasses, mtry, depth+1, p, rng),
	}
}

func leaf(counts []int, total int) *TreeNode {
	probs := make([]float64, len(counts))
	if total > 0 {
		for c, cnt := range counts {
			probs[c] = float64(cnt) / float64(total)
		}
	}
	return &TreeNode{Probs: probs}
}

func classCounts(y []int, idx []int, numClasses int) []int {
	counts := make([]int, numClasses)
	for _, i := range idx {
		counts[y[i]]++
	}
	return counts
}

func isPure(counts []int) bool {
	nonzero := 0
	for _, c := range counts {
		if c > 0 {
			nonzero++
		}
	}
	return nonzero <= 1
}

// bestSplit evaluates candidate thresholds on a random feature subset and
// returns the split with the lowest weighted gini impurity.
func bestSplit(x [][]float64, y []int, idx []int, numClasses, mtry int, rng *rand.Rand) (int, float64, bool) {
	numFeatures := len(x[0])
	features := rng.Perm(numFeatures)[:mtry]

	bestGini := math.Inf(1)
	bestFeature := -1
	bestThreshold := 0.0

	values := make([]float64, 0, len(idx))
	for _, feature := range features {
		values = values[:0]
		for _, i := range idx {
			values = append(values, x[i][feature])
		}
		sort.Float64s(values)

		for v := 1; v < len(values); v++ {
			if values[v] == values[v-1] {
				continue
			}
			threshold := (values[v] + values[v-1]) / 2
			g := splitGini(x, y, idx, feature, threshold, numClasses)
			if g < bestGini {
				bestGini = g
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func splitGini(x [][]float64, y []int, idx []int, feature int, threshold float64, numClasses int) float64 {
	leftCounts := make([]int, numClasses)
	rightCounts := make([]int, numClasses)
	leftN, rightN := 0, 0

	for _, i := range idx {
		if x[i][feature] < threshold {
			leftCounts[y[i]]++
			leftN++
		} else {
			rightCounts[y[i]]++
			rightN++
		}
	}

	total := float64(leftN + rightN)
	return float64(leftN)/total*gini(leftCounts, leftN) +
		float64(rightN)/total*gini(rightCounts, rightN)
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}
