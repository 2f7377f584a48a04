package model

import (
	"errors"
	"fmt"
)

// ClassMetrics holds per-class evaluation results.
type ClassMetrics struct {
	Class     int     `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation summarizes classifier performance on one dataset.
type Evaluation struct {
	Accuracy float64 `json:"accuracy"`
	// Confusion is indexed [true][predicted] in Classes order.
	Confusion      [][]int        `json:"confusion_matrix"`
	Classes        []int          `json:"classes"`
	PerClass       []ClassMetrics `json:"per_class"`
	MacroPrecision float64        `json:"macro_precision"`
	MacroRecall    float64        `json:"macro_recall"`
	MacroF1        float64        `json:"macro_f1"`
}

// Evaluate computes multiclass accuracy, the confusion matrix, and per-class
// precision/recall/F1 with macro averages.
func Evaluate(yTrue, yPred []int) (Evaluation, error) {
	if len(yTrue) == 0 {
		return Evaluation{}, errors.New("evaluate: no samples")
	}
	if len(yTrue) != len(yPred) {
		return Evaluation{}, fmt.Errorf("evaluate: %d labels but %d predictions", len(yTrue), len(yPred))
	}

	classes := uniqueClasses(append(append([]int(nil), yTrue...), yPred...))
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	confusion := make([][]int, len(classes))
	for i := range confusion {
		confusion[i] = make([]int, len(classes))
	}
	correct := 0
	for i := range yTrue {
		confusion[index[yTrue[i]]][index[yPred[i]]]++
		if yTrue[i] == yPred[i] {
			correct++
		}
	}

	ev := Evaluation{
		Accuracy:  float64(correct) / float64(len(yTrue)),
		Confusion: confusion,
		Classes:   classes,
		PerClass:  make([]ClassMetrics, len(classes)),
	}

	for i, class := range classes {
		tp := confusion[i][i]
		support, predicted := 0, 0
		for j := range classes {
			support += confusion[i][j]
			predicted += confusion[j][i]
		}

		var precision, recall, f1 float64
		if predicted > 0 {
			precision = float64(tp) / float64(predicted)
		}
		if support > 0 {
			recall = float64(tp) / float64(support)
		}
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}

		ev.PerClass[i] = ClassMetrics{
			Class:     class,
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Support:   support,
		}
		ev.MacroPrecision += precision
		ev.MacroRecall += recall
		ev.MacroF1 += f1
	}

	n := float64(len(classes))
	ev.MacroPrecision /= n
	ev.MacroRecall /= n
	ev.MacroF1 /= n
	return ev, nil
}
