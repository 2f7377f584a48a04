package model

import (
	"fmt"
	"math/rand"
)

// Split holds the row indices of one train/validation/test partition.
type Split struct {
	Train []int
	Val   []int
	Test  []int
}

// TrainValTestSplit shuffles row indices with the given seed and cuts them
// into train, validation, and test partitions. Sizes are fractions of n;
// the training partition takes the remainder.
func TrainValTestSplit(n int, testSize, valSize float64, seed int64) (Split, error) {
	if n < 3 {
		return Split{}, fmt.Errorf("split needs at least 3 rows, got %d", n)
	}
	if testSize <= 0 || valSize < 0 || testSize+valSize >= 1 {
		return Split{}, fmt.Errorf("invalid split sizes test=%g val=%g", testSize, valSize)
	}

	indices := rand.New(rand.NewSource(seed)).Perm(n)

	numTest := int(float64(n) * testSize)
	numVal := int(float64(n) * valSize)
	if numTest < 1 {
		numTest = 1
	}

	return Split{
		Test:  indices[:numTest],
		Val:   indices[numTest : numTest+numVal],
		Train: indices[numTest+numVal:],
	}, nil
}

// KFold shuffles row indices and cuts them into k folds of near-equal size.
// Each returned fold is the held-out test set for that round.
func KFold(n, k int, seed int64) ([][]int, error) {
	if k < 2 || k > n {
		return nil, fmt.Errorf("invalid fold count %d for %d rows", k, n)
	}

	indices := rand.New(rand.NewSource(seed)).Perm(n)
	folds := make([][]int, k)
	for i, idx := range indices {
		folds[i%k] = append(folds[i%k], idx)
	}
	return folds, nil
}

// Gather selects the rows of x and y named by indices.
func Gather(x [][]float64, y, indices []int) ([][]float64, []int) {
	gx := make([][]float64, len(indices))
	gy := make([]int, len(indices))
	for i, idx := range indices {
		gx[i] = x[idx]
		gy[i] = y[idx]
	}
	return gx, gy
}
