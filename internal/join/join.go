// Package join integrates accidents with the road network by matching each
// accident to its nearest road segment within a distance threshold.
package join

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/roadquality/accident-severity-etl/internal/domain"
	"github.com/roadquality/accident-severity-etl/internal/geo"
	"github.com/roadquality/accident-severity-etl/internal/observability"
)

// Options configures the spatial join.
type Options struct {
	MaxDistanceMeters float64
	BatchSize         int
}

// Stats summarizes one join run. Distance statistics cover matched records
// only.
type Stats struct {
	Total          int     `json:"total"`
	Matched        int     `json:"matched"`
	MeanDistance   float64 `json:"mean_distance_meters"`
	MedianDistance float64 `json:"median_distance_meters"`
	MaxDistance    float64 `json:"max_distance_meters"`
}

// Unmatched returns the number of accidents with no road within the
// threshold.
func (s Stats) Unmatched() int { return s.Total - s.Matched }

// MatchRate returns the fraction of accidents matched to a segment.
func (s Stats) MatchRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.Total)
}

// NearestRoad joins every accident against the segment index. The output
// always has one record per input accident: unmatched accidents carry
// "unknown" road attributes instead of being dropped. Batches exist for
// progress logging and cancellation checks, not parallelism.
func NearestRoad(ctx context.Context, accidents []domain.Accident, index *geo.Index, opts Options, logger *slog.Logger, metrics *observability.Metrics) ([]domain.IntegratedAccident, Stats, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(accidents)
	}

	integrated := make([]domain.IntegratedAccident, 0, len(accidents))
	distances := make([]float64, 0, len(accidents))
	stats := Stats{Total: len(accidents)}

	for start := 0; start < len(accidents); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, Stats{}, err
		}

		end := min(start+batchSize, len(accidents))
		for _, acc := range accidents[start:end] {
			road := domain.UnmatchedRoad()
			if m, ok := index.Nearest(acc.Geo, opts.MaxDistanceMeters); ok {
				road = domain.RoadMatch{
					Matched:         true,
					SegmentID:       m.Segment.ID,
					Highway:         m.Segment.Highway,
					Surface:         m.Segment.Surface,
					SurfaceCategory: m.Segment.SurfaceCategory,
					LaneCount:       m.Segment.LaneCount,
					MaxSpeedMPH:     m.Segment.MaxSpeedMPH,
					DistanceMeters:  m.DistanceMeters,
				}
				stats.Matched++
				distances = append(distances, m.DistanceMeters)
				metrics.JoinMatched.Inc()
				metrics.JoinDistance.Observe(m.DistanceMeters)
			} else {
				metrics.JoinUnmatched.Inc()
			}
			integrated = append(integrated, domain.IntegratedAccident{Accident: acc, Road: road})
		}

		logger.Debug("join progress",
			"processed", end,
			"total", len(accidents),
			"matched", stats.Matched)
	}

	if len(distances) > 0 {
		sort.Float64s(distances)
		stats.MeanDistance = stat.Mean(distances, nil)
		stats.MedianDistance = stat.Quantile(0.5, stat.Empirical, distances, nil)
		stats.MaxDistance = distances[len(distances)-1]
	} else {
		stats.MeanDistance = math.NaN()
		stats.MedianDistance = math.NaN()
	}

	logger.Info("spatial join complete",
		"total", stats.Total,
		"matched", stats.Matched,
		"match_rate", stats.MatchRate(),
		"median_distance_m", stats.MedianDistance)
	return integrated, stats, nil
}
