// Package model implements the severity classifiers: a CART decision tree,
// a bagged random forest on top of it, and their evaluation and persistence
// helpers.
package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Impurity criteria.
const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

// TreeConfig are the CART hyperparameters.
type TreeConfig struct {
	MaxDepth            int
	MinSamplesSplit     int
	MinSamplesLeaf      int
	MinImpurityDecrease float64
	Criterion           string
	// MaxFeatures limits how many features each split considers.
	// 0 means all; the forest sets sqrt(p).
	MaxFeatures int
	Seed        int64
}

// Node is one node of a fitted tree. Fields are exported for gob encoding.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	// NaNLeft routes rows with a missing split feature to the left child.
	NaNLeft bool
	Left    *Node
	Right   *Node

	// Probas holds class probabilities indexed like Tree.Classes.
	Probas []float64
	Pred   int
	N      int
}

// Tree is a CART classifier over a fixed feature layout. Missing values
// (NaN) are routed at each split to whichever side improved impurity during
// training.
type Tree struct {
	Config      TreeConfig
	Root        *Node
	Classes     []int
	NumFeatures int
	// Importance accumulates impurity decrease per feature, normalized to
	// sum to 1 after fitting.
	Importance []float64
}

// NewTree validates the config and returns an unfitted tree.
func NewTree(cfg TreeConfig) (*Tree, error) {
	if cfg.Criterion == "" {
		cfg.Criterion = CriterionGini
	}
	if cfg.Criterion != CriterionGini && cfg.Criterion != CriterionEntropy {
		return nil, fmt.Errorf("unknown criterion %q", cfg.Criterion)
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	return &Tree{Config: cfg}, nil
}

// Fit trains the tree on the full dataset.
func (t *Tree) Fit(x [][]float64, y []int) error {
	indices := make([]int, len(y))
	for i := range indices {
		indices[i] = i
	}
	return t.FitIndices(x, y, indices)
}

// FitIndices trains on a subset of rows, given by index. The forest uses
// this for bootstrap samples; indices may repeat.
func (t *Tree) FitIndices(x [][]float64, y []int, indices []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("fit tree: empty or mismatched training data")
	}
	if len(indices) == 0 {
		return errors.New("fit tree: no sample indices")
	}

	t.NumFeatures = len(x[0])
	t.Classes = uniqueClasses(y)
	t.Importance = make([]float64, t.NumFeatures)

	rng := rand.New(rand.NewSource(t.Config.Seed))
	t.Root = t.build(x, y, indices, 0, len(indices), rng)

	normalize(t.Importance)
	return nil
}

// Predict returns the predicted class label for one row.
func (t *Tree) Predict(row []float64) int {
	return t.leaf(row).Pred
}

// PredictProba returns class probabilities for one row, indexed like
// Classes.
func (t *Tree) PredictProba(row []float64) []float64 {
	return t.leaf(row).Probas
}

func (t *Tree) leaf(row []float64) *Node {
	n := t.Root
	for !n.Leaf {
		v := row[n.Feature]
		switch {
		case math.IsNaN(v):
			if n.NaNLeft {
				n = n.Left
			} else {
				n = n.Right
			}
		case v <= n.Threshold:
			n = n.Left
		default:
			n = n.Right
		}
	}
	return n
}

// Prune performs reduced-error pruning against a held-out validation set.
// A subtree collapses to a leaf when the leaf misclassifies no more
// validation rows than the subtree does. Subtrees no validation row reaches
// keep their structure, except sibling leaves that already agree.
func (t *Tree) Prune(valX [][]float64, valY []int) {
	if t.Root == nil {
		return
	}
	if len(valX) == 0 {
		mergeAgreeingLeaves(t.Root)
		return
	}
	rows := make([]int, len(valX))
	for i := range rows {
		rows[i] = i
	}
	pruneNode(t.Root, valX, valY, rows)
}

// pruneNode prunes bottom-up and returns the misclassification count of the
// (possibly collapsed) subtree on the given validation rows.
func pruneNode(n *Node, x [][]float64, y []int, rows []int) int {
	leafErrs := 0
	for _, i := range rows {
		if y[i] != n.Pred {
			leafErrs++
		}
	}
	if n.Leaf {
		return leafErrs
	}
	if len(rows) == 0 {
		mergeAgreeingLeaves(n)
		return 0
	}

	left, right := partition(x, rows, split{feature: n.Feature, threshold: n.Threshold, nanLeft: n.NaNLeft})
	subtreeErrs := pruneNode(n.Left, x, y, left) + pruneNode(n.Right, x, y, right)
	if leafErrs <= subtreeErrs {
		n.Leaf = true
		n.Left, n.Right = nil, nil
		return leafErrs
	}
	return subtreeErrs
}

// mergeAgreeingLeaves collapses sibling leaves that predict the same class.
// It never changes predictions, only shrinks the tree.
func mergeAgreeingLeaves(n *Node) {
	if n.Leaf {
		return
	}
	mergeAgreeingLeaves(n.Left)
	mergeAgreeingLeaves(n.Right)
	if n.Left.Leaf && n.Right.Leaf && n.Left.Pred == n.Right.Pred {
		n.Leaf = true
		n.Left, n.Right = nil, nil
	}
}

// NodeCount returns the number of nodes in the fitted tree.
func (t *Tree) NodeCount() int {
	return countNodes(t.Root)
}

func countNodes(n *Node) int {
	if n == nil {
		return 0
	}
	return 1 + countNodes(n.Left) + countNodes(n.Right)
}

func (t *Tree) build(x [][]float64, y, indices []int, depth, total int, rng *rand.Rand) *Node {
	counts := t.classCounts(y, indices)
	node := t.leafNode(counts, len(indices))

	if depth >= t.Config.MaxDepth && t.Config.MaxDepth > 0 {
		return node
	}
	if len(indices) < t.Config.MinSamplesSplit || isPure(counts) {
		return node
	}

	best, ok := t.bestSplit(x, y, indices, counts, rng)
	if !ok {
		return node
	}

	t.Importance[best.feature] += float64(len(indices)) / float64(total) * best.decrease

	left, right := partition(x, indices, best)
	node.Leaf = false
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.NaNLeft = best.nanLeft
	node.Left = t.build(x, y, left, depth+1, total, rng)
	node.Right = t.build(x, y, right, depth+1, total, rng)
	return node
}

func (t *Tree) leafNode(counts []int, n int) *Node {
	probas := make([]float64, len(counts))
	bestClass, bestCount := 0, -1
	for i, c := range counts {
		probas[i] = float64(c) / float64(n)
		if c > bestCount {
			bestClass, bestCount = i, c
		}
	}
	return &Node{Leaf: true, Probas: probas, Pred: t.Classes[bestClass], N: n}
}

func (t *Tree) classCounts(y, indices []int) []int {
	counts := make([]int, len(t.Classes))
	for _, i := range indices {
		counts[t.classIndex(y[i])]++
	}
	return counts
}

func (t *Tree) classIndex(label int) int {
	for i, c := range t.Classes {
		if c == label {
			return i
		}
	}
	return 0
}

// split is one candidate split of a node.
type split struct {
	feature   int
	threshold float64
	nanLeft   bool
	decrease  float64
}

// bestSplit scans candidate features for the threshold with the largest
// impurity decrease. Rows with a missing feature value are tried on both
// sides; the better placement is recorded.
func (t *Tree) bestSplit(x [][]float64, y, indices []int, parentCounts []int, rng *rand.Rand) (split, bool) {
	n := len(indices)
	parentImpurity := t.impurity(parentCounts, n)

	var best split
	found := false

	for _, feature := range t.candidateFeatures(rng) {
		// Partition rows into observed values and missing.
		type sample struct {
			value float64
			class int
		}
		observed := make([]sample, 0, n)
		nanCounts := make([]int, len(t.Classes))
		numNaN := 0
		for _, i := range indices {
			v := x[i][feature]
			if math.IsNaN(v) {
				nanCounts[t.classIndex(y[i])]++
				numNaN++
				continue
			}
			observed = append(observed, sample{value: v, class: t.classIndex(y[i])})
		}
		if len(observed) < 2 {
			continue
		}
		sort.Slice(observed, func(a, b int) bool { return observed[a].value < observed[b].value })

		leftCounts := make([]int, len(t.Classes))
		rightCounts := make([]int, len(t.Classes))
		for _, s := range observed {
			rightCounts[s.class]++
		}

		for i := 0; i < len(observed)-1; i++ {
			leftCounts[observed[i].class]++
			rightCounts[observed[i].class]--
			if observed[i].value == observed[i+1].value {
				continue
			}
			threshold := (observed[i].value + observed[i+1].value) / 2
			numLeft, numRight := i+1, len(observed)-i-1

			for _, nanLeft := range nanPlacements(numNaN) {
				nl, nr := numLeft, numRight
				lc, rc := leftCounts, rightCounts
				if numNaN > 0 {
					lc = append([]int(nil), leftCounts...)
					rc = append([]int(nil), rightCounts...)
					if nanLeft {
						addCounts(lc, nanCounts)
						nl += numNaN
					} else {
						addCounts(rc, nanCounts)
						nr += numNaN
					}
				}
				if nl < t.Config.MinSamplesLeaf || nr < t.Config.MinSamplesLeaf {
					continue
				}

				weighted := (float64(nl)*t.impurity(lc, nl) + float64(nr)*t.impurity(rc, nr)) / float64(n)
				decrease := parentImpurity - weighted
				if decrease <= t.Config.MinImpurityDecrease || decrease <= 1e-12 {
					continue
				}
				if !found || decrease > best.decrease {
					best = split{feature: feature, threshold: threshold, nanLeft: nanLeft, decrease: decrease}
					found = true
				}
			}
		}
	}
	return best, found
}

// nanPlacements enumerates where missing-value rows can go. With no missing
// rows the placement is irrelevant, so only one candidate is tried.
func nanPlacements(numNaN int) []bool {
	if numNaN == 0 {
		return []bool{false}
	}
	return []bool{false, true}
}

func (t *Tree) candidateFeatures(rng *rand.Rand) []int {
	k := t.Config.MaxFeatures
	if k <= 0 || k >= t.NumFeatures {
		all := make([]int, t.NumFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return rng.Perm(t.NumFeatures)[:k]
}

func (t *Tree) impurity(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	if t.Config.Criterion == CriterionEntropy {
		e := 0.0
		for _, c := range counts {
			if c == 0 {
				continue
			}
			p := float64(c) / float64(n)
			e -= p * math.Log2(p)
		}
		return e
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		g -= p * p
	}
	return g
}

func partition(x [][]float64, indices []int, s split) (left, right []int) {
	for _, i := range indices {
		v := x[i][s.feature]
		switch {
		case math.IsNaN(v):
			if s.nanLeft {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		case v <= s.threshold:
			left = append(left, i)
		default:
			right = append(right, i)
		}
	}
	return left, right
}

func uniqueClasses(y []int) []int {
	set := make(map[int]bool, 4)
	for _, label := range y {
		set[label] = true
	}
	classes := make([]int, 0, len(set))
	for label := range set {
		classes = append(classes, label)
	}
	sort.Ints(classes)
	return classes
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

func addCounts(dst, src []int) {
	for i := range src {
		dst[i] += src[i]
	}
}

func normalize(values []float64) {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	if sum == 0 {
		return
	}
	for i := range values {
		values[i] /= sum
	}
}
