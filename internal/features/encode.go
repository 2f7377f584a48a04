// Package features turns cleaned integrated accident records into the
// numeric design matrix the models train on.
package features

import (
	"fmt"
	"sort"
)

// OneHotEncoder expands a categorical column into one indicator column per
// vocabulary value. Values unseen at fit time encode as all zeros.
type OneHotEncoder struct {
	Prefix string
	Vocab  []string

	index map[string]int
}

// Fit learns the sorted vocabulary of the column.
func (e *OneHotEncoder) Fit(values []string) {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	e.Vocab = make([]string, 0, len(set))
	for v := range set {
		e.Vocab = append(e.Vocab, v)
	}
	sort.Strings(e.Vocab)

	e.index = make(map[string]int, len(e.Vocab))
	for i, v := range e.Vocab {
		e.index[v] = i
	}
}

// Transform returns the indicator row for one value.
func (e *OneHotEncoder) Transform(value string) []float64 {
	row := make([]float64, len(e.Vocab))
	if i, ok := e.index[value]; ok {
		row[i] = 1
	}
	return row
}

// Names returns the column names the encoder produces.
func (e *OneHotEncoder) Names() []string {
	names := make([]string, len(e.Vocab))
	for i, v := range e.Vocab {
		names[i] = fmt.Sprintf("%s_%s", e.Prefix, v)
	}
	return names
}

// LabelEncoder maps categorical values onto dense integer codes. Unseen
// values encode as -1.
type LabelEncoder struct {
	Classes []string

	index map[string]int
}

// Fit learns the sorted class list.
func (e *LabelEncoder) Fit(values []string) {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	e.Classes = make([]string, 0, len(set))
	for v := range set {
		e.Classes = append(e.Classes, v)
	}
	sort.Strings(e.Classes)

	e.index = make(map[string]int, len(e.Classes))
	for i, v := range e.Classes {
		e.index[v] = i
	}
}

// Transform returns the integer code for one value.
func (e *LabelEncoder) Transform(value string) float64 {
	if i, ok := e.index[value]; ok {
		return float64(i)
	}
	return -1
}

// FrequencyEncoder maps categorical values onto their relative frequency in
// the fit data. High-cardinality interaction columns stay a single numeric
// feature this way instead of exploding into indicators.
type FrequencyEncoder struct {
	Freq map[string]float64
}

// Fit learns value frequencies.
func (e *FrequencyEncoder) Fit(values []string) {
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	e.Freq = make(map[string]float64, len(counts))
	if len(values) == 0 {
		return
	}
	total := float64(len(values))
	for v, n := range counts {
		e.Freq[v] = float64(n) / total
	}
}

// Transform returns the learned frequency, or 0 for unseen values.
func (e *FrequencyEncoder) Transform(value string) float64 {
	return e.Freq[value]
}
