package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadquality/accident-severity-etl/internal/domain"
)

func TestProject(t *testing.T) {
	t.Run("origin maps to origin", func(t *testing.T) {
		p := Project(domain.Geo{Lat: 0, Lon: 0})
		assert.InDelta(t, 0, p.X, 1e-6)
		assert.InDelta(t, 0, p.Y, 1e-6)
	})

	t.Run("known point", func(t *testing.T) {
		// Los Angeles: reference values from EPSG:3857 transform.
		p := Project(domain.Geo{Lat: 34.0522, Lon: -118.2437})
		assert.InDelta(t, -13162829.0, p.X, 2000)
		assert.InDelta(t, 4035822.0, p.Y, 2000)
	})

	t.Run("longitude is linear", func(t *testing.T) {
		a := Project(domain.Geo{Lat: 40, Lon: 10})
		b := Project(domain.Geo{Lat: 40, Lon: 20})
		c := Project(domain.Geo{Lat: 40, Lon: 30})
		assert.InDelta(t, b.X-a.X, c.X-b.X, 1e-6)
	})
}

func TestScale(t *testing.T) {
	assert.InDelta(t, 1.0, Scale(0), 1e-9)
	// At 60°N distances are inflated by a factor of 2.
	assert.InDelta(t, 2.0, Scale(60), 1e-9)
	assert.Greater(t, Scale(45), Scale(30))
}

func TestPointSegmentDistance(t *testing.T) {
	a := XY{X: 0, Y: 0}
	b := XY{X: 10, Y: 0}

	tests := []struct {
		name string
		p    XY
		want float64
	}{
		{"on segment", XY{5, 0}, 0},
		{"above midpoint", XY{5, 3}, 3},
		{"beyond end clamps to endpoint", XY{13, 4}, 5},
		{"before start clamps to start", XY{-3, 4}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PointSegmentDistance(tt.p, a, b), 1e-9)
		})
	}

	t.Run("degenerate segment", func(t *testing.T) {
		assert.InDelta(t, 5.0, PointSegmentDistance(XY{3, 4}, a, a), 1e-9)
	})
}

func TestPointPolylineDistance(t *testing.T) {
	line := []XY{{0, 0}, {10, 0}, {10, 10}}

	assert.InDelta(t, 2.0, PointPolylineDistance(XY{5, 2}, line), 1e-9)
	assert.InDelta(t, 1.0, PointPolylineDistance(XY{11, 5}, line), 1e-9)
	assert.True(t, math.IsInf(PointPolylineDistance(XY{0, 0}, nil), 1))
	assert.InDelta(t, 5.0, PointPolylineDistance(XY{3, 4}, []XY{{0, 0}}), 1e-9)
}

// grid builds a few parallel east-west roads ~111m apart near a reference
// latitude, so nearest-match distances are easy to reason about.
func testSegments() []domain.RoadSegment {
	return []domain.RoadSegment{
		{
			ID:      "road-north",
			Points:  []domain.Geo{{Lat: 34.0010, Lon: -118.010}, {Lat: 34.0010, Lon: -118.000}},
			Highway: "residential",
			Surface: domain.SurfaceAsphalt,
		},
		{
			ID:      "road-south",
			Points:  []domain.Geo{{Lat: 34.0000, Lon: -118.010}, {Lat: 34.0000, Lon: -118.000}},
			Highway: "primary",
			Surface: domain.SurfaceConcrete,
		},
		{
			ID:      "road-far",
			Points:  []domain.Geo{{Lat: 34.1000, Lon: -118.010}, {Lat: 34.1000, Lon: -118.000}},
			Highway: "motorway",
			Surface: domain.SurfaceAsphalt,
		},
	}
}

func TestIndex_Nearest(t *testing.T) {
	ix, err := NewIndex(testSegments())
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Len())

	t.Run("matches nearest of two segments", func(t *testing.T) {
		// ~0.0002° (~22m) south of road-south, ~130m from road-north.
		m, ok := ix.Nearest(domain.Geo{Lat: 33.9998, Lon: -118.005}, 100)
		require.True(t, ok)
		assert.Equal(t, "road-south", m.Segment.ID)
		assert.InDelta(t, 22.0, m.DistanceMeters, 3.0)
	})

	t.Run("point on the road has near-zero distance", func(t *testing.T) {
		m, ok := ix.Nearest(domain.Geo{Lat: 34.0010, Lon: -118.005}, 100)
		require.True(t, ok)
		assert.Equal(t, "road-north", m.Segment.ID)
		assert.Less(t, m.DistanceMeters, 1.0)
	})

	t.Run("no segment within threshold", func(t *testing.T) {
		_, ok := ix.Nearest(domain.Geo{Lat: 34.0500, Lon: -118.005}, 100)
		assert.False(t, ok)
	})

	t.Run("larger threshold recovers the match", func(t *testing.T) {
		m, ok := ix.Nearest(domain.Geo{Lat: 34.0800, Lon: -118.005}, 10000)
		require.True(t, ok)
		assert.Equal(t, "road-far", m.Segment.ID)
	})
}

func TestNewIndex_Invalid(t *testing.T) {
	_, err := NewIndex(nil)
	assert.Error(t, err)

	_, err = NewIndex([]domain.RoadSegment{{ID: "empty"}})
	assert.Error(t, err)
}
