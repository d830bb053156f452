package forecast

import (
	"fmt"
	"sort"
)

const (
	DefaultTreeDepth   = 4
	DefaultTreeMinLeaf = 2
)

// RegressionTree is a CART tree that splits on squared error.
type RegressionTree struct {
	maxDepth int
	minLeaf  int
	width    int
	root     *treeNode
}

type treeNode struct {
	feature   int
	threshold float64
	value     float64
	left      *treeNode
	right     *treeNode
}

func (n *treeNode) leaf() bool { return n.left == nil }

// NewRegressionTree creates an unfitted tree. Non-positive limits fall back
// to the defaults.
func NewRegressionTree(maxDepth, minLeaf int) *RegressionTree {
	if maxDepth <= 0 {
		maxDepth = DefaultTreeDepth
	}
	if minLeaf <= 0 {
		minLeaf = DefaultTreeMinLeaf
	}
	return &RegressionTree{maxDepth: maxDepth, minLeaf: minLeaf}
}

func (t *RegressionTree) Name() string { return ModelTree }

func (t *RegressionTree) Fit(features [][]float64, target []float64) error {
	width, err := validateShape(features, target)
	if err != nil {
		return err
	}
	idx := make([]int, len(features))
	for i := range idx {
		idx[i] = i
	}
	t.width = width
	t.root = t.grow(features, target, idx, 0)
	return nil
}

func (t *RegressionTree) Predict(features [][]float64) ([]float64, error) {
	if t.root == nil {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(features))
	for i, row := range features {
		if len(row) != t.width {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), t.width)
		}
		node := t.root
		for !node.leaf() {
			if row[node.feature] <= node.threshold {
				node = node.left
			} else {
				node = node.right
			}
		}
		out[i] = node.value
	}
	return out, nil
}

func (t *RegressionTree) grow(x [][]float64, y []float64, idx []int, depth int) *treeNode {
	node := &treeNode{value: mean(y, idx)}
	if depth >= t.maxDepth || len(idx) < 2*t.minLeaf {
		return node
	}

	feature, threshold, ok := t.bestSplit(x, y, idx)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	node.feature = feature
	node.threshold = threshold
	node.left = t.grow(x, y, left, depth+1)
	node.right = t.grow(x, y, right, depth+1)
	return node
}

// bestSplit scans every feature in sorted order, keeping running sums so each
// candidate threshold is scored in constant time.
func (t *RegressionTree) bestSplit(x [][]float64, y []float64, idx []int) (int, float64, bool) {
	n := len(idx)
	totalSum, totalSq := 0.0, 0.0
	for _, i := range idx {
		totalSum += y[i]
		totalSq += y[i] * y[i]
	}
	parentSSE := totalSq - totalSum*totalSum/float64(n)

	bestSSE := parentSSE
	bestFeature, bestThreshold, found := -1, 0.0, false

	order := make([]int, n)
	for f := 0; f < t.width; f++ {
		copy(order, idx)
		sort.SliceStable(order, func(a, b int) bool { return x[order[a]][f] < x[order[b]][f] })

		leftSum, leftSq := 0.0, 0.0
		for pos := 0; pos < n-1; pos++ {
			v := y[order[pos]]
			leftSum += v
			leftSq += v * v

			nl := pos + 1
			nr := n - nl
			if nl < t.minLeaf || nr < t.minLeaf {
				continue
			}
			cur, next := x[order[pos]][f], x[order[pos+1]][f]
			if cur == next {
				continue
			}

			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			if sse < bestSSE-1e-12 {
				bestSSE = sse
				bestFeature = f
				bestThreshold = (cur + next) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func mean(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	sum := 0.0
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}
