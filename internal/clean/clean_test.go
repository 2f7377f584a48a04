package clean

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadquality/accident-severity-etl/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(id string, lat, lon float64, start time.Time, severity int) domain.IntegratedAccident {
	return domain.IntegratedAccident{
		Accident: domain.Accident{
			ID:        id,
			Severity:  severity,
			StartTime: start,
			Geo:       domain.Geo{Lat: lat, Lon: lon},
			Weather: domain.Weather{
				TemperatureF: 60,
				HumidityPct:  50,
				PressureIn:   29.9,
				VisibilityMi: 10,
				WindSpeedMPH: 5,
				Condition:    "Clear",
			},
		},
		Road: domain.UnmatchedRoad(),
	}
}

func TestClean_Dedupe(t *testing.T) {
	start := time.Date(2023, 3, 1, 8, 30, 0, 0, time.UTC)
	records := []domain.IntegratedAccident{
		record("a", 34.05, -118.24, start, 2),
		record("b", 34.05, -118.24, start, 2), // same place, time, severity
		record("c", 34.05, -118.24, start, 3), // differs in severity
	}

	out, stats := Clean(records, Options{IQRFactor: 3}, discardLogger())
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestClean_ImputesMedian(t *testing.T) {
	start := time.Date(2023, 3, 1, 8, 0, 0, 0, time.UTC)
	records := make([]domain.IntegratedAccident, 0, 5)
	for i, temp := range []float64{50, 60, 70, 80, math.NaN()} {
		r := record(string(rune('a'+i)), 34.05, -118.24, start.Add(time.Duration(i)*time.Hour), 2)
		r.Weather.TemperatureF = temp
		records = append(records, r)
	}

	out, stats := Clean(records, Options{IQRFactor: 3}, discardLogger())
	require.Len(t, out, 5)
	assert.Equal(t, 1, stats.Imputed["temperature_f"])
	// Median of {50, 60, 70, 80}.
	assert.InDelta(t, 65.0, out[4].Weather.TemperatureF, 10.0)
	assert.False(t, math.IsNaN(out[4].Weather.TemperatureF))
}

func TestClean_ImputesConditionMode(t *testing.T) {
	start := time.Date(2023, 3, 1, 8, 0, 0, 0, time.UTC)
	records := make([]domain.IntegratedAccident, 0, 4)
	for i, cond := range []string{"Rain", "Rain", "Clear", ""} {
		r := record(string(rune('a'+i)), 34.05, -118.24, start.Add(time.Duration(i)*time.Hour), 2)
		r.Weather.Condition = cond
		records = append(records, r)
	}

	out, stats := Clean(records, Options{IQRFactor: 3}, discardLogger())
	require.Len(t, out, 4)
	assert.Equal(t, "Rain", out[3].Weather.Condition)
	assert.Equal(t, 1, stats.Imputed["weather_condition"])
}

func TestClean_RemovesOutliers(t *testing.T) {
	start := time.Date(2023, 3, 1, 8, 0, 0, 0, time.UTC)
	var records []domain.IntegratedAccident
	for i := 0; i < 20; i++ {
		r := record(string(rune('a'+i)), 34.05, -118.24, start.Add(time.Duration(i)*time.Hour), 2)
		r.Weather.TemperatureF = 60 + float64(i%5)
		records = append(records, r)
	}
	extreme := record("extreme", 34.05, -118.24, start.Add(100*time.Hour), 2)
	extreme.Weather.TemperatureF = 5000
	records = append(records, extreme)

	out, stats := Clean(records, Options{IQRFactor: 3}, discardLogger())
	assert.Len(t, out, 20)
	assert.Equal(t, 1, stats.OutliersRemoved)
	for _, r := range out {
		assert.NotEqual(t, "extreme", r.ID)
	}
}

func TestClean_FencesJoinDistance(t *testing.T) {
	start := time.Date(2023, 3, 1, 8, 0, 0, 0, time.UTC)
	var records []domain.IntegratedAccident
	for i := 0; i < 20; i++ {
		r := record(string(rune('a'+i)), 34.05, -118.24, start.Add(time.Duration(i)*time.Hour), 2)
		r.Road = domain.RoadMatch{Matched: true, SegmentID: "way/1", DistanceMeters: 1 + float64(i%5)*0.2}
		records = append(records, r)
	}
	far := record("far", 34.05, -118.24, start.Add(100*time.Hour), 2)
	far.Road = domain.RoadMatch{Matched: true, SegmentID: "way/2", DistanceMeters: 95}
	records = append(records, far)
	// Unmatched records have no distance and must never count as outliers.
	records = append(records, record("unmatched", 34.06, -118.24, start.Add(200*time.Hour), 2))

	out, stats := Clean(records, Options{IQRFactor: 3}, discardLogger())
	assert.Len(t, out, 21)
	assert.Equal(t, 1, stats.OutliersRemoved)
	for _, r := range out {
		assert.NotEqual(t, "far", r.ID)
	}
}

func TestClean_ZeroFactorSkipsOutlierRemoval(t *testing.T) {
	start := time.Date(2023, 3, 1, 8, 0, 0, 0, time.UTC)
	var records []domain.IntegratedAccident
	for i := 0; i < 10; i++ {
		r := record(string(rune('a'+i)), 34.05, -118.24, start.Add(time.Duration(i)*time.Hour), 2)
		records = append(records, r)
	}
	extreme := record("extreme", 34.05, -118.24, start.Add(100*time.Hour), 2)
	extreme.Weather.TemperatureF = 5000
	records = append(records, extreme)

	out, stats := Clean(records, Options{}, discardLogger())
	assert.Len(t, out, 11)
	assert.Zero(t, stats.OutliersRemoved)
}

func TestClean_Empty(t *testing.T) {
	out, stats := Clean(nil, Options{IQRFactor: 3}, discardLogger())
	assert.Empty(t, out)
	assert.Zero(t, stats.Input)
	assert.Zero(t, stats.Output)
}
