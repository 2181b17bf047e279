package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// TreeConfig controls tree growth. The zero value grows the tree until every
// leaf is pure or cannot be split further.
type TreeConfig struct {
	MaxDepth int   `json:"max_depth"`
	Seed     int64 `json:"seed"`
}

// DecisionTree is a CART classifier over dense float features and integer
// class indices. Nodes are stored flat; children are referenced by index.
type DecisionTree struct {
	config   TreeConfig
	nodes    []TreeNode
	nClasses int
	nFeature int
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	Samples    int     `json:"samples"`
	Counts     []int   `json:"counts"`
	IsLeaf     bool    `json:"is_leaf"`
}

func NewDecisionTree(config TreeConfig) *DecisionTree {
	return &DecisionTree{config: config}
}

// Train fits the tree. labels must lie in [0, nClasses).
func (dt *DecisionTree) Train(features [][]float64, labels []int, nClasses int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("features and labels size mismatch")
	}
	if nClasses <= 0 {
		return errors.New("class count must be positive")
	}
	width := len(features[0])
	if width == 0 {
		return errors.New("feature vectors are empty")
	}
	for i, row := range features {
		if len(row) != width {
			return fmt.Errorf("row %d has %d features, want %d", i, len(row), width)
		}
	}
	for i, label := range labels {
		if label < 0 || label >= nClasses {
			return fmt.Errorf("row %d has label %d outside [0, %d)", i, label, nClasses)
		}
	}

	dt.nodes = nil
	dt.nClasses = nClasses
	dt.nFeature = width

	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	rnd := rand.New(rand.NewSource(dt.config.Seed))
	dt.buildNode(features, labels, idx, 0, rnd)
	return nil
}

// Predict returns the majority class of the reached leaf and that class's
// share of the leaf's training samples.
func (dt *DecisionTree) Predict(features []float64) (int, float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return 0, 0, err
	}
	return leaf.ClassLabel, float64(leaf.Counts[leaf.ClassLabel]) / float64(leaf.Samples), nil
}

// PredictProba returns the class distribution of the reached leaf.
func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	leaf, err := dt.leaf(features)
	if err != nil {
		return nil, err
	}
	probs := make([]float64, dt.nClasses)
	for i, count := range leaf.Counts {
		probs[i] = float64(count) / float64(leaf.Samples)
	}
	return probs, nil
}

func (dt *DecisionTree) leaf(features []float64) (*TreeNode, error) {
	if len(dt.nodes) == 0 {
		return nil, ErrNotTrained
	}
	if len(features) != dt.nFeature {
		return nil, fmt.Errorf("got %d features, want %d", len(features), dt.nFeature)
	}
	idx := 0
	for {
		node := &dt.nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx <= 0 || idx >= len(dt.nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

// Nodes returns a copy of the flat node list; index 0 is the root.
func (dt *DecisionTree) Nodes() []TreeNode {
	out := make([]TreeNode, len(dt.nodes))
	copy(out, dt.nodes)
	return out
}

func (dt *DecisionTree) NodeCount() int { return len(dt.nodes) }

func (dt *DecisionTree) LeafCount() int {
	leaves := 0
	for _, node := range dt.nodes {
		if node.IsLeaf {
			leaves++
		}
	}
	return leaves
}

// Depth is the number of edges on the longest root-to-leaf path.
func (dt *DecisionTree) Depth() int {
	if len(dt.nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return 0
		}
		return 1 + max(walk(node.LeftChild), walk(node.RightChild))
	}
	return walk(0)
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, idx []int, depth int, rnd *rand.Rand) int {
	counts := classCounts(labels, idx, dt.nClasses)
	nodeIdx := len(dt.nodes)
	dt.nodes = append(dt.nodes, TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		ClassLabel: argmax(counts),
		Samples:    len(idx),
		Counts:     counts,
		IsLeaf:     true,
	})

	if isPure(counts) || (dt.config.MaxDepth > 0 && depth >= dt.config.MaxDepth) {
		return nodeIdx
	}

	best, ok := dt.findBestSplit(features, labels, idx, counts, rnd)
	if !ok {
		return nodeIdx
	}

	leftIdx, rightIdx := partition(features, idx, best.feature, best.threshold)
	left := dt.buildNode(features, labels, leftIdx, depth+1, rnd)
	right := dt.buildNode(features, labels, rightIdx, depth+1, rnd)

	node := &dt.nodes[nodeIdx]
	node.FeatureIdx = best.feature
	node.Threshold = best.threshold
	node.LeftChild = left
	node.RightChild = right
	node.IsLeaf = false
	return nodeIdx
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
}

// findBestSplit scans every boundary between consecutive distinct values of
// every feature. Features are visited in a seeded random order and the first
// split with the lowest weighted Gini impurity wins.
func (dt *DecisionTree) findBestSplit(features [][]float64, labels []int, idx []int, parentCounts []int, rnd *rand.Rand) (split, bool) {
	best := split{feature: -1, impurity: math.Inf(1)}
	n := len(idx)
	sorted := make([]int, n)
	left := make([]int, dt.nClasses)
	right := make([]int, dt.nClasses)

	for _, f := range rnd.Perm(dt.nFeature) {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool {
			return features[sorted[a]][f] < features[sorted[b]][f]
		})
		for i := range left {
			left[i] = 0
		}
		copy(right, parentCounts)

		for i := 0; i < n-1; i++ {
			label := labels[sorted[i]]
			left[label]++
			right[label]--

			current := features[sorted[i]][f]
			next := features[sorted[i+1]][f]
			if next <= current {
				continue
			}
			nLeft := i + 1
			nRight := n - nLeft
			impurity := (float64(nLeft)*giniFromCounts(left, nLeft) + float64(nRight)*giniFromCounts(right, nRight)) / float64(n)
			if impurity < best.impurity {
				best = split{feature: f, threshold: midpoint(current, next), impurity: impurity}
			}
		}
	}
	return best, best.feature >= 0
}

func partition(features [][]float64, idx []int, feature int, threshold float64) ([]int, []int) {
	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// midpoint falls back to lo when rounding would put the threshold on hi.
func midpoint(lo, hi float64) float64 {
	mid := lo/2 + hi/2
	if mid >= hi || math.IsInf(mid, 0) || math.IsNaN(mid) {
		return lo
	}
	return mid
}

func classCounts(labels []int, idx []int, nClasses int) []int {
	counts := make([]int, nClasses)
	for _, i := range idx {
		counts[labels[i]]++
	}
	return counts
}

func giniFromCounts(counts []int, total int) float64 {
	if total == 0 {
		return 0
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(total)
		impurity -= prob * prob
	}
	return impurity
}

// argmax breaks ties toward the lowest class index.
func argmax(counts []int) int {
	best := 0
	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[best] {
			best = i
		}
	}
	return best
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, count := range counts {
		if count > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}
