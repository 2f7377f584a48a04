package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestConfig are the random forest hyperparameters.
type ForestConfig struct {
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures per split; 0 means sqrt(p).
	MaxFeatures int
	Bootstrap   bool
	Criterion   string
	Seed        int64
}

// Forest is a bagged ensemble of CART trees. Trees train in parallel; each
// tree derives its own RNG from the forest seed, so a fit is deterministic
// for a given seed regardless of scheduling.
type Forest struct {
	Config      ForestConfig
	Trees       []*Tree
	Classes     []int
	NumFeatures int
}

// NewForest validates the config and returns an unfitted forest.
func NewForest(cfg ForestConfig) (*Forest, error) {
	if cfg.NumTrees < 1 {
		return nil, fmt.Errorf("forest needs at least one tree, got %d", cfg.NumTrees)
	}
	if cfg.Criterion == "" {
		cfg.Criterion = CriterionGini
	}
	if cfg.Criterion != CriterionGini && cfg.Criterion != CriterionEntropy {
		return nil, fmt.Errorf("unknown criterion %q", cfg.Criterion)
	}
	return &Forest{Config: cfg}, nil
}

// Fit trains the ensemble.
func (f *Forest) Fit(x [][]float64, y []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("fit forest: empty or mismatched training data")
	}

	f.NumFeatures = len(x[0])
	f.Classes = uniqueClasses(y)
	f.Trees = make([]*Tree, f.Config.NumTrees)

	maxFeatures := f.Config.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(f.NumFeatures)))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range f.Trees {
		g.Go(func() error {
			seed := f.Config.Seed + int64(i)
			tree, err := NewTree(TreeConfig{
				MaxDepth:        f.Config.MaxDepth,
				MinSamplesSplit: f.Config.MinSamplesSplit,
				MinSamplesLeaf:  f.Config.MinSamplesLeaf,
				Criterion:       f.Config.Criterion,
				MaxFeatures:     maxFeatures,
				Seed:            seed,
			})
			if err != nil {
				return err
			}

			indices := f.sampleIndices(len(y), seed)
			if err := tree.FitIndices(x, y, indices); err != nil {
				return fmt.Errorf("fit tree %d: %w", i, err)
			}
			f.Trees[i] = tree
			return nil
		})
	}
	return g.Wait()
}

// sampleIndices draws the training rows for one tree. With bootstrapping,
// n rows are drawn with replacement; otherwise every row is used.
func (f *Forest) sampleIndices(n int, seed int64) []int {
	indices := make([]int, n)
	if !f.Config.Bootstrap {
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range indices {
		indices[i] = rng.Intn(n)
	}
	return indices
}

// Predict returns the majority-vote class for one row. Ties break toward
// the lower class label.
func (f *Forest) Predict(row []float64) int {
	votes := make(map[int]int, len(f.Classes))
	for _, tree := range f.Trees {
		votes[tree.Predict(row)]++
	}
	best, bestVotes := 0, -1
	for _, class := range f.Classes {
		if v := votes[class]; v > bestVotes {
			best, bestVotes = class, v
		}
	}
	return best
}

// PredictProba returns the mean of the tree probabilities, indexed like
// Classes.
func (f *Forest) PredictProba(row []float64) []float64 {
	probas := make([]float64, len(f.Classes))
	for _, tree := range f.Trees {
		for i, p := range tree.PredictProba(row) {
			probas[i] += p
		}
	}
	for i := range probas {
		probas[i] /= float64(len(f.Trees))
	}
	return probas
}

// FeatureImportance returns the mean of the per-tree impurity importances,
// normalized to sum to 1.
func (f *Forest) FeatureImportance() []float64 {
	importance := make([]float64, f.NumFeatures)
	for _, tree := range f.Trees {
		for i, v := range tree.Importance {
			importance[i] += v
		}
	}
	normalize(importance)
	return importance
}
