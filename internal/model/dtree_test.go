package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoBandDataset is linearly separable on feature 0: values below 5 are
// class 1, values above are class 3. Feature 1 is uniform noise.
func twoBandDataset(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		if i%2 == 0 {
			x[i] = []float64{rng.Float64() * 4, rng.Float64() * 100}
			y[i] = 1
		} else {
			x[i] = []float64{6 + rng.Float64()*4, rng.Float64() * 100}
			y[i] = 3
		}
	}
	return x, y
}

func TestTree_FitPredict(t *testing.T) {
	x, y := twoBandDataset(200, 7)

	tree, err := NewTree(TreeConfig{MaxDepth: 5, MinSamplesSplit: 4, MinSamplesLeaf: 2})
	require.NoError(t, err)
	require.NoError(t, tree.Fit(x, y))

	assert.Equal(t, []int{1, 3}, tree.Classes)
	assert.Equal(t, 1, tree.Predict([]float64{2, 50}))
	assert.Equal(t, 3, tree.Predict([]float64{8, 50}))

	probas := tree.PredictProba([]float64{2, 50})
	require.Len(t, probas, 2)
	assert.Greater(t, probas[0], 0.9)

	t.Run("informative feature dominates importance", func(t *testing.T) {
		require.Len(t, tree.Importance, 2)
		assert.Greater(t, tree.Importance[0], tree.Importance[1])
		assert.InDelta(t, 1.0, tree.Importance[0]+tree.Importance[1], 1e-9)
	})
}

func TestTree_EntropyCriterion(t *testing.T) {
	x, y := twoBandDataset(100, 3)

	tree, err := NewTree(TreeConfig{MaxDepth: 5, Criterion: CriterionEntropy})
	require.NoError(t, err)
	require.NoError(t, tree.Fit(x, y))
	assert.Equal(t, 1, tree.Predict([]float64{1, 10}))
}

func TestTree_MissingValues(t *testing.T) {
	// Rows with missing feature 0 are all class 3, so training should
	// route NaN toward the class-3 side.
	x := [][]float64{
		{1, 0}, {2, 0}, {1.5, 0}, {2.5, 0},
		{8, 0}, {9, 0}, {8.5, 0}, {9.5, 0},
		{math.NaN(), 0}, {math.NaN(), 0}, {math.NaN(), 0}, {math.NaN(), 0},
	}
	y := []int{1, 1, 1, 1, 3, 3, 3, 3, 3, 3, 3, 3}

	tree, err := NewTree(TreeConfig{MaxDepth: 3})
	require.NoError(t, err)
	require.NoError(t, tree.Fit(x, y))

	assert.Equal(t, 1, tree.Predict([]float64{1, 0}))
	assert.Equal(t, 3, tree.Predict([]float64{9, 0}))
	assert.Equal(t, 3, tree.Predict([]float64{math.NaN(), 0}))
}

func TestTree_DepthLimit(t *testing.T) {
	x, y := twoBandDataset(100, 11)

	tree, err := NewTree(TreeConfig{MaxDepth: 1})
	require.NoError(t, err)
	require.NoError(t, tree.Fit(x, y))

	// A depth-1 tree is a single split: three nodes at most.
	assert.LessOrEqual(t, tree.NodeCount(), 3)
}

func TestTree_Prune(t *testing.T) {
	t.Run("keeps predictions on clean data", func(t *testing.T) {
		x, y := twoBandDataset(200, 5)
		valX, valY := twoBandDataset(60, 6)

		tree, err := NewTree(TreeConfig{MaxDepth: 8})
		require.NoError(t, err)
		require.NoError(t, tree.Fit(x, y))

		before := tree.NodeCount()
		tree.Prune(valX, valY)
		assert.LessOrEqual(t, tree.NodeCount(), before)

		assert.Equal(t, 1, tree.Predict([]float64{2, 50}))
		assert.Equal(t, 3, tree.Predict([]float64{8, 50}))
	})

	t.Run("noisy subtrees collapse against validation data", func(t *testing.T) {
		// A few mislabeled training rows force the unrestricted tree to grow
		// extra splits isolating them. Clean validation data should prune
		// those splits away.
		x, y := twoBandDataset(120, 13)
		for _, i := range []int{0, 24, 48} {
			y[i] = 3
		}

		tree, err := NewTree(TreeConfig{MinSamplesSplit: 2, MinSamplesLeaf: 1})
		require.NoError(t, err)
		require.NoError(t, tree.Fit(x, y))

		before := tree.NodeCount()
		require.Greater(t, before, 3)

		valX, valY := twoBandDataset(80, 14)
		tree.Prune(valX, valY)

		assert.Less(t, tree.NodeCount(), before)
		for i := range valX {
			assert.Equal(t, valY[i], tree.Predict(valX[i]))
		}
	})

	t.Run("no validation rows merges agreeing leaves only", func(t *testing.T) {
		x, y := twoBandDataset(200, 5)

		tree, err := NewTree(TreeConfig{MaxDepth: 8})
		require.NoError(t, err)
		require.NoError(t, tree.Fit(x, y))

		before := tree.NodeCount()
		tree.Prune(nil, nil)
		assert.LessOrEqual(t, tree.NodeCount(), before)

		for i := range x {
			assert.Equal(t, y[i], tree.Predict(x[i]))
		}
	})
}

func TestTree_InvalidInput(t *testing.T) {
	_, err := NewTree(TreeConfig{Criterion: "mse"})
	assert.Error(t, err)

	tree, err := NewTree(TreeConfig{})
	require.NoError(t, err)
	assert.Error(t, tree.Fit(nil, nil))
	assert.Error(t, tree.Fit([][]float64{{1}}, []int{1, 2}))
}

func TestTree_Deterministic(t *testing.T) {
	x, y := twoBandDataset(150, 9)

	fit := func() *Tree {
		tree, err := NewTree(TreeConfig{MaxDepth: 6, MaxFeatures: 1, Seed: 42})
		require.NoError(t, err)
		require.NoError(t, tree.Fit(x, y))
		return tree
	}

	a, b := fit(), fit()
	assert.Equal(t, a.NodeCount(), b.NodeCount())
	assert.Equal(t, a.Importance, b.Importance)
	for i := range x {
		assert.Equal(t, a.Predict(x[i]), b.Predict(x[i]))
	}
}
