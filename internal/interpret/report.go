package interpret

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/roadquality/accident-severity-etl/internal/model"
)

// CrossValidation summarizes k-fold accuracy scores.
type CrossValidation struct {
	FoldAccuracies []float64 `json:"fold_accuracies"`
	Mean           float64   `json:"mean"`
	Std            float64   `json:"std"`
}

// Report is the interpretability artifact of one training run. It is the
// final output of the pipeline, written both as JSON for machines and as a
// plain-text summary for reading.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	TrainRows int `json:"train_rows"`
	ValRows   int `json:"val_rows"`
	TestRows  int `json:"test_rows"`
	Features  int `json:"features"`

	TreeEval   model.Evaluation `json:"decision_tree"`
	ForestEval model.Evaluation `json:"random_forest"`
	CrossVal   CrossValidation  `json:"cross_validation"`

	ImpurityImportance    []FeatureImportance `json:"impurity_importance"`
	PermutationImportance []FeatureImportance `json:"permutation_importance"`
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteText renders a readable summary of the run.
func (r *Report) WriteText(w io.Writer) error {
	p := func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
	}

	p("Severity model report %s", r.RunID)
	p("generated %s", r.GeneratedAt.Format(time.RFC3339))
	p("")
	p("Dataset: %d train / %d val / %d test rows, %d features",
		r.TrainRows, r.ValRows, r.TestRows, r.Features)
	p("")

	p("Decision tree   accuracy %.4f  macro-F1 %.4f", r.TreeEval.Accuracy, r.TreeEval.MacroF1)
	p("Random forest   accuracy %.4f  macro-F1 %.4f", r.ForestEval.Accuracy, r.ForestEval.MacroF1)
	if len(r.CrossVal.FoldAccuracies) > 0 {
		p("Cross-val       accuracy %.4f +/- %.4f over %d folds",
			r.CrossVal.Mean, r.CrossVal.Std, len(r.CrossVal.FoldAccuracies))
	}
	p("")

	p("Per-class (random forest):")
	for _, cm := range r.ForestEval.PerClass {
		p("  severity %d  precision %.3f  recall %.3f  f1 %.3f  support %d",
			cm.Class, cm.Precision, cm.Recall, cm.F1, cm.Support)
	}
	p("")

	writeRanking(p, "Impurity importance", r.ImpurityImportance)
	writeRanking(p, "Permutation importance", r.PermutationImportance)
	return nil
}

// WriteTextFile renders the text summary to a file.
func (r *Report) WriteTextFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	if err := r.WriteText(f); err != nil {
		return err
	}
	return f.Close()
}

const topFeatures = 15

func writeRanking(p func(string, ...any), title string, ranking []FeatureImportance) {
	if len(ranking) == 0 {
		return
	}
	p("%s (top %d):", title, min(topFeatures, len(ranking)))
	for i, fi := range ranking {
		if i >= topFeatures {
			break
		}
		if fi.Std > 0 {
			p("  %2d. %-28s %.5f +/- %.5f", i+1, fi.Name, fi.Score, fi.Std)
		} else {
			p("  %2d. %-28s %.5f", i+1, fi.Name, fi.Score)
		}
	}
	p("")
}
