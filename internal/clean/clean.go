// Package clean deduplicates integrated accident records, imputes missing
// values, and removes numeric outliers ahead of feature engineering.
package clean

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/roadquality/accident-severity-etl/internal/domain"
)

// Options configures the cleaning stage.
type Options struct {
	// IQRFactor widens the inter-quartile fence for outlier removal.
	// Values outside [q1 - f*iqr, q3 + f*iqr] are outliers.
	IQRFactor float64
}

// Stats counts what cleaning did to the dataset.
type Stats struct {
	Input           int            `json:"input"`
	Duplicates      int            `json:"duplicates"`
	OutliersRemoved int            `json:"outliers_removed"`
	Imputed         map[string]int `json:"imputed"`
	Output          int            `json:"output"`
}

// numericField exposes one imputable float column of the integrated record.
type numericField struct {
	name string
	get  func(*domain.IntegratedAccident) *float64
}

func numericFields() []numericField {
	return []numericField{
		{"temperature_f", func(r *domain.IntegratedAccident) *float64 { return &r.Weather.TemperatureF }},
		{"humidity_pct", func(r *domain.IntegratedAccident) *float64 { return &r.Weather.HumidityPct }},
		{"pressure_in", func(r *domain.IntegratedAccident) *float64 { return &r.Weather.PressureIn }},
		{"visibility_mi", func(r *domain.IntegratedAccident) *float64 { return &r.Weather.VisibilityMi }},
		{"wind_speed_mph", func(r *domain.IntegratedAccident) *float64 { return &r.Weather.WindSpeedMPH }},
	}
}

// fencedColumn is one numeric column checked against the IQR fence: the
// imputable weather measurements plus the matched join distance. Distance
// reads as NaN for unmatched records so they never enter the fence.
type fencedColumn struct {
	name string
	val  func(*domain.IntegratedAccident) float64
}

func fencedColumns() []fencedColumn {
	cols := make([]fencedColumn, 0, 6)
	for _, field := range numericFields() {
		cols = append(cols, fencedColumn{field.name, func(r *domain.IntegratedAccident) float64 {
			return *field.get(r)
		}})
	}
	cols = append(cols, fencedColumn{"road_distance_m", func(r *domain.IntegratedAccident) float64 {
		if !r.Road.Matched {
			return math.NaN()
		}
		return r.Road.DistanceMeters
	}})
	return cols
}

// Clean runs deduplication, median imputation, and IQR outlier removal, in
// that order. The input slice is not modified.
func Clean(records []domain.IntegratedAccident, opts Options, logger *slog.Logger) ([]domain.IntegratedAccident, Stats) {
	stats := Stats{Input: len(records), Imputed: make(map[string]int)}

	out := dedupe(records, &stats)
	imputeNumeric(out, &stats)
	imputeCondition(out, &stats)
	out = removeOutliers(out, opts.IQRFactor, &stats)

	stats.Output = len(out)
	logger.Info("cleaning complete",
		"input", stats.Input,
		"duplicates", stats.Duplicates,
		"outliers_removed", stats.OutliersRemoved,
		"output", stats.Output)
	return out, stats
}

// dedupe drops records sharing location, start time, and severity, keeping
// the first occurrence.
func dedupe(records []domain.IntegratedAccident, stats *Stats) []domain.IntegratedAccident {
	seen := make(map[string]bool, len(records))
	out := make([]domain.IntegratedAccident, 0, len(records))
	for _, r := range records {
		key := fmt.Sprintf("%.5f|%.5f|%d|%d", r.Geo.Lat, r.Geo.Lon, r.StartTime.Unix(), r.Severity)
		if seen[key] {
			stats.Duplicates++
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// imputeNumeric replaces NaN weather measurements with the column median.
// When a whole column is missing it stays NaN and the tree handles it.
func imputeNumeric(records []domain.IntegratedAccident, stats *Stats) {
	for _, field := range numericFields() {
		values := make([]float64, 0, len(records))
		for i := range records {
			if v := *field.get(&records[i]); !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		sort.Float64s(values)
		median := stat.Quantile(0.5, stat.Empirical, values, nil)

		for i := range records {
			p := field.get(&records[i])
			if math.IsNaN(*p) {
				*p = median
				stats.Imputed[field.name]++
			}
		}
	}
}

// imputeCondition fills empty weather condition strings with the mode of the
// non-empty values.
func imputeCondition(records []domain.IntegratedAccident, stats *Stats) {
	counts := make(map[string]int)
	for i := range records {
		if c := records[i].Weather.Condition; c != "" {
			counts[c]++
		}
	}
	mode := ""
	best := 0
	for c, n := range counts {
		if n > best || (n == best && c < mode) {
			mode, best = c, n
		}
	}
	if mode == "" {
		return
	}
	for i := range records {
		if records[i].Weather.Condition == "" {
			records[i].Weather.Condition = mode
			stats.Imputed["weather_condition"]++
		}
	}
}

// removeOutliers drops records with any fenced numeric column outside the
// widened IQR fence. NaN values never count as outliers.
func removeOutliers(records []domain.IntegratedAccident, factor float64, stats *Stats) []domain.IntegratedAccident {
	if factor <= 0 || len(records) == 0 {
		return records
	}

	type fence struct{ lo, hi float64 }
	columns := fencedColumns()
	fences := make(map[string]fence)
	for _, col := range columns {
		values := make([]float64, 0, len(records))
		for i := range records {
			if v := col.val(&records[i]); !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		if len(values) < 4 {
			continue
		}
		sort.Float64s(values)
		q1 := stat.Quantile(0.25, stat.Empirical, values, nil)
		q3 := stat.Quantile(0.75, stat.Empirical, values, nil)
		iqr := q3 - q1
		fences[col.name] = fence{lo: q1 - factor*iqr, hi: q3 + factor*iqr}
	}

	out := make([]domain.IntegratedAccident, 0, len(records))
	for i := range records {
		keep := true
		for _, col := range columns {
			f, ok := fences[col.name]
			if !ok {
				continue
			}
			v := col.val(&records[i])
			if math.IsNaN(v) {
				continue
			}
			if v < f.lo || v > f.hi {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, records[i])
		} else {
			stats.OutliersRemoved++
		}
	}
	return out
}
