// Package interpret explains fitted severity models: feature importance
// rankings and the report artifact summarizing a training run.
package interpret

import (
	"errors"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/roadquality/accident-severity-etl/internal/model"
)

// Predictor is the slice of a fitted classifier the interpreters need.
type Predictor interface {
	Predict(row []float64) int
}

// FeatureImportance is one feature's score in a ranking.
type FeatureImportance struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	// Std is the spread across permutation repeats; zero for impurity
	// importance.
	Std float64 `json:"std,omitempty"`
}

// ImpurityImportance ranks features by the forest's accumulated impurity
// decrease, largest first.
func ImpurityImportance(forest *model.Forest, names []string) ([]FeatureImportance, error) {
	scores := forest.FeatureImportance()
	if len(scores) != len(names) {
		return nil, errors.New("impurity importance: feature name count mismatch")
	}

	ranking := make([]FeatureImportance, len(names))
	for i, name := range names {
		ranking[i] = FeatureImportance{Name: name, Score: scores[i]}
	}
	sortRanking(ranking)
	return ranking, nil
}

// PermutationOptions configures permutation importance.
type PermutationOptions struct {
	Repeats int
	// SampleCap bounds how many rows are scored; permutation cost grows
	// with rows times features times repeats. 0 means all rows.
	SampleCap int
	Seed      int64
}

// PermutationImportance ranks features by the accuracy drop when the
// feature's column is shuffled. Unlike impurity importance it measures the
// fitted model directly, so correlated features share credit differently.
func PermutationImportance(p Predictor, x [][]float64, y []int, names []string, opts PermutationOptions) ([]FeatureImportance, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, errors.New("permutation importance: empty or mismatched data")
	}
	if len(x[0]) != len(names) {
		return nil, errors.New("permutation importance: feature name count mismatch")
	}
	repeats := opts.Repeats
	if repeats < 1 {
		repeats = 1
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	rows := x
	labels := y
	if opts.SampleCap > 0 && len(x) > opts.SampleCap {
		idx := rng.Perm(len(x))[:opts.SampleCap]
		rows, labels = model.Gather(x, y, idx)
	}

	// Shuffling happens in a private copy so the caller's matrix survives.
	work := make([][]float64, len(rows))
	for i := range rows {
		work[i] = append([]float64(nil), rows[i]...)
	}

	baseline := accuracy(p, work, labels)

	ranking := make([]FeatureImportance, len(names))
	column := make([]float64, len(work))
	drops := make([]float64, repeats)
	for j, name := range names {
		for i := range work {
			column[i] = work[i][j]
		}
		for r := 0; r < repeats; r++ {
			perm := rng.Perm(len(work))
			for i := range work {
				work[i][j] = column[perm[i]]
			}
			drops[r] = baseline - accuracy(p, work, labels)
		}
		for i := range work {
			work[i][j] = column[i]
		}

		mean, std := stat.MeanStdDev(drops, nil)
		if repeats == 1 {
			std = 0
		}
		ranking[j] = FeatureImportance{Name: name, Score: mean, Std: std}
	}
	sortRanking(ranking)
	return ranking, nil
}

func accuracy(p Predictor, x [][]float64, y []int) float64 {
	correct := 0
	for i := range x {
		if p.Predict(x[i]) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(x))
}

func sortRanking(ranking []FeatureImportance) {
	sort.SliceStable(ranking, func(a, b int) bool { return ranking[a].Score > ranking[b].Score })
}
