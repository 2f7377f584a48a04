package join

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadquality/accident-severity-etl/internal/domain"
	"github.com/roadquality/accident-severity-etl/internal/geo"
	"github.com/roadquality/accident-severity-etl/internal/observability"
)

func testIndex(t *testing.T) *geo.Index {
	t.Helper()
	ix, err := geo.NewIndex([]domain.RoadSegment{
		{
			ID:              "road-a",
			Points:          []domain.Geo{{Lat: 34.0000, Lon: -118.010}, {Lat: 34.0000, Lon: -118.000}},
			Highway:         "primary",
			Surface:         domain.SurfaceAsphalt,
			SurfaceCategory: "paved",
			LaneCount:       2,
			MaxSpeedMPH:     45,
		},
		{
			ID:              "road-b",
			Points:          []domain.Geo{{Lat: 34.0100, Lon: -118.010}, {Lat: 34.0100, Lon: -118.000}},
			Highway:         "residential",
			Surface:         domain.SurfaceGravel,
			SurfaceCategory: "unpaved",
		},
	})
	require.NoError(t, err)
	return ix
}

func accidentAt(id string, lat, lon float64) domain.Accident {
	return domain.Accident{ID: id, Severity: 2, Geo: domain.Geo{Lat: lat, Lon: lon}}
}

func TestNearestRoad(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	opts := Options{MaxDistanceMeters: 100}

	t.Run("matches and preserves all inputs", func(t *testing.T) {
		accidents := []domain.Accident{
			accidentAt("on-road", 34.0000, -118.005),
			accidentAt("near-road-b", 34.0101, -118.005),
			accidentAt("far-from-everything", 34.0500, -118.005),
		}

		integrated, stats, err := NearestRoad(context.Background(), accidents, testIndex(t), opts, logger, metrics)
		require.NoError(t, err)

		// Left join: one output per input, in order.
		require.Len(t, integrated, 3)
		assert.Equal(t, "on-road", integrated[0].ID)
		assert.Equal(t, "far-from-everything", integrated[2].ID)

		assert.True(t, integrated[0].Road.Matched)
		assert.Equal(t, "road-a", integrated[0].Road.SegmentID)
		assert.Equal(t, domain.SurfaceAsphalt, integrated[0].Road.Surface)
		assert.Equal(t, 2, integrated[0].Road.LaneCount)
		assert.Less(t, integrated[0].Road.DistanceMeters, 1.0)

		assert.True(t, integrated[1].Road.Matched)
		assert.Equal(t, "road-b", integrated[1].Road.SegmentID)

		assert.False(t, integrated[2].Road.Matched)
		assert.Equal(t, domain.SurfaceUnknown, integrated[2].Road.Surface)
		assert.Equal(t, domain.SurfaceUnknown, integrated[2].Road.Highway)

		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 2, stats.Matched)
		assert.Equal(t, 1, stats.Unmatched())
		assert.InDelta(t, 2.0/3.0, stats.MatchRate(), 1e-9)
		assert.GreaterOrEqual(t, stats.MaxDistance, stats.MedianDistance)
	})

	t.Run("small batches produce the same result", func(t *testing.T) {
		accidents := []domain.Accident{
			accidentAt("a", 34.0000, -118.005),
			accidentAt("b", 34.0001, -118.004),
			accidentAt("c", 34.0101, -118.003),
			accidentAt("d", 34.0500, -118.002),
			accidentAt("e", 34.0000, -118.001),
		}

		whole, wholeStats, err := NearestRoad(context.Background(), accidents, testIndex(t), opts, logger, metrics)
		require.NoError(t, err)

		batched, batchedStats, err := NearestRoad(context.Background(), accidents, testIndex(t),
			Options{MaxDistanceMeters: 100, BatchSize: 2}, logger, metrics)
		require.NoError(t, err)

		assert.Empty(t, cmp.Diff(whole, batched))
		assert.Equal(t, wholeStats, batchedStats)
	})

	t.Run("empty input", func(t *testing.T) {
		integrated, stats, err := NearestRoad(context.Background(), nil, testIndex(t), opts, logger, metrics)
		require.NoError(t, err)
		assert.Empty(t, integrated)
		assert.Zero(t, stats.Total)
		assert.Zero(t, stats.MatchRate())
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		accidents := []domain.Accident{accidentAt("a", 34.0000, -118.005)}
		_, _, err := NearestRoad(ctx, accidents, testIndex(t),
			Options{MaxDistanceMeters: 100, BatchSize: 1}, logger, metrics)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
