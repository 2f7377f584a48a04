package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers and scales columns to zero mean and unit variance.
// Fit it on the training split only, then transform every split with the
// same parameters, so no test-set statistics leak into training.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// Fit computes per-column mean and standard deviation, ignoring NaN cells.
// Constant columns keep a standard deviation of 1 so transforming them is a
// no-op shift.
func (s *StandardScaler) Fit(x [][]float64) {
	if len(x) == 0 {
		s.Mean, s.Std = nil, nil
		return
	}
	cols := len(x[0])
	s.Mean = make([]float64, cols)
	s.Std = make([]float64, cols)

	col := make([]float64, 0, len(x))
	for j := 0; j < cols; j++ {
		col = col[:0]
		for i := range x {
			if v := x[i][j]; !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		if len(col) == 0 {
			s.Mean[j], s.Std[j] = 0, 1
			continue
		}
		mean, std := stat.MeanStdDev(col, nil)
		if math.IsNaN(std) || std == 0 {
			std = 1
		}
		s.Mean[j], s.Std[j] = mean, std
	}
}

// Transform returns a scaled copy of the matrix. NaN cells stay NaN.
func (s *StandardScaler) Transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i := range x {
		row := make([]float64, len(x[i]))
		for j, v := range x[i] {
			if j < len(s.Mean) && !math.IsNaN(v) {
				v = (v - s.Mean[j]) / s.Std[j]
			}
			row[j] = v
		}
		out[i] = row
	}
	return out
}
