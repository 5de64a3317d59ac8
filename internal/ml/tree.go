package ml

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// treeParams are the growth limits shared by every tree of a forest
type treeParams struct {
	maxDepth        int // 0 means unlimited
	maxFeatures     int // features tried per split, 0 means all
	minSamplesSplit int
	minSamplesLeaf  int
}

// treeNode is a split when left >= 0, otherwise a leaf predicting value
type treeNode struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
	samples   int
}

// RegressionTree is a CART tree fitted by variance reduction
type RegressionTree struct {
	nodes      []treeNode
	importance []float64 // total squared-error reduction per feature
	depth      int
}

// Depth returns the depth of the deepest leaf; a single leaf has depth 0
func (t *RegressionTree) Depth() int { return t.depth }

// Leaves returns the number of leaf nodes
func (t *RegressionTree) Leaves() int {
	n := 0
	for _, nd := range t.nodes {
		if nd.left < 0 {
			n++
		}
	}
	return n
}

// PredictRow walks the tree for one feature vector
func (t *RegressionTree) PredictRow(x []float64) float64 {
	i := 0
	for {
		nd := t.nodes[i]
		if nd.left < 0 {
			return nd.value
		}
		if x[nd.feature] <= nd.threshold {
			i = nd.left
		} else {
			i = nd.right
		}
	}
}

type treeBuilder struct {
	x      *mat.Dense
	y      []float64
	params treeParams
	rng    *rand.Rand
	tree   *RegressionTree
}

// growTree fits a tree on the given rows of x; rows may repeat
func growTree(x *mat.Dense, y []float64, rows []int, params treeParams, rng *rand.Rand) *RegressionTree {
	_, p := x.Dims()
	b := &treeBuilder{
		x:      x,
		y:      y,
		params: params,
		rng:    rng,
		tree:   &RegressionTree{importance: make([]float64, p)},
	}
	b.grow(rows, 0)
	return b.tree
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	sum, sq := 0.0, 0.0
	for _, r := range rows {
		sum += b.y[r]
		sq += b.y[r] * b.y[r]
	}
	n := float64(len(rows))
	mean := sum / n
	sse := sq - sum*sum/n

	id := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, treeNode{left: -1, right: -1, value: mean, samples: len(rows)})
	if depth > b.tree.depth {
		b.tree.depth = depth
	}

	if b.params.maxDepth > 0 && depth >= b.params.maxDepth {
		return id
	}
	if len(rows) < b.params.minSamplesSplit || len(rows) < 2*b.params.minSamplesLeaf || sse <= 1e-12 {
		return id
	}

	s, ok := b.bestSplit(rows, sse)
	if !ok {
		return id
	}

	var left, right []int
	for _, r := range rows {
		if b.x.At(r, s.feature) <= s.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	b.tree.importance[s.feature] += s.gain

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	nd := &b.tree.nodes[id]
	nd.feature, nd.threshold, nd.left, nd.right = s.feature, s.threshold, l, r
	return id
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

// bestSplit scans sorted values of each candidate feature with running sums
// and returns the split with the largest squared-error reduction.
func (b *treeBuilder) bestSplit(rows []int, parentSSE float64) (split, bool) {
	_, p := b.x.Dims()
	features := b.candidateFeatures(p)

	best := split{gain: 0}
	found := false
	order := make([]int, len(rows))
	minLeaf := b.params.minSamplesLeaf
	n := len(rows)

	var totalSum, totalSq float64
	for _, r := range rows {
		totalSum += b.y[r]
		totalSq += b.y[r] * b.y[r]
	}

	for _, f := range features {
		copy(order, rows)
		sort.Slice(order, func(i, j int) bool { return b.x.At(order[i], f) < b.x.At(order[j], f) })

		var lSum, lSq float64
		for i := 0; i < n-1; i++ {
			yi := b.y[order[i]]
			lSum += yi
			lSq += yi * yi
			nl := i + 1
			nr := n - nl
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			v, next := b.x.At(order[i], f), b.x.At(order[i+1], f)
			if v == next {
				continue
			}
			rSum, rSq := totalSum-lSum, totalSq-lSq
			sse := (lSq - lSum*lSum/float64(nl)) + (rSq - rSum*rSum/float64(nr))
			gain := parentSSE - sse
			if gain > best.gain+1e-12 {
				best = split{feature: f, threshold: splitThreshold(v, next), gain: gain}
				found = true
			}
		}
	}
	return best, found
}

// splitThreshold returns a value t with v <= t < next. The midpoint of two
// adjacent floats can round up to next, in which case v is used.
func splitThreshold(v, next float64) float64 {
	mid := v + (next-v)/2
	if mid >= next {
		return v
	}
	return mid
}

func (b *treeBuilder) candidateFeatures(p int) []int {
	m := b.params.maxFeatures
	if m <= 0 || m >= p {
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rng.Perm(p)[:m]
}

// normalizedImportance scales v to sum to one; an all-zero vector stays zero
func normalizedImportance(v []float64) []float64 {
	out := make([]float64, len(v))
	var total float64
	for _, x := range v {
		total += x
	}
	if total <= 0 || math.IsNaN(total) {
		return out
	}
	for i, x := range v {
		out[i] = x / total
	}
	return out
}
