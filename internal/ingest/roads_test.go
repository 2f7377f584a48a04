package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadquality/accident-severity-etl/internal/domain"
)

func TestLoadRoads_GeoJSON(t *testing.T) {
	t.Run("line string features", func(t *testing.T) {
		path := writeFile(t, "roads.geojson", `{
			"type": "FeatureCollection",
			"features": [
				{
					"id": "way/100",
					"geometry": {"type": "LineString", "coordinates": [[-118.010, 34.001], [-118.000, 34.001]]},
					"properties": {"highway": "primary_link", "surface": "concrete:plates", "lanes": "2", "maxspeed": "45 mph"}
				},
				{
					"id": "way/101",
					"geometry": {"type": "LineString", "coordinates": [[-118.020, 34.002], [-118.010, 34.002]]},
					"properties": {"highway": "residential"}
				}
			]
		}`)

		segments, stats, err := LoadRoads(path, discardLogger())
		require.NoError(t, err)
		require.Len(t, segments, 2)
		assert.Equal(t, 2, stats.Segments)

		first := segments[0]
		assert.Equal(t, "way/100", first.ID)
		assert.Equal(t, "primary", first.Highway)
		assert.Equal(t, domain.SurfaceConcrete, first.Surface)
		assert.Equal(t, "paved", first.SurfaceCategory)
		assert.Equal(t, 2, first.LaneCount)
		assert.InDelta(t, 45.0, first.MaxSpeedMPH, 1e-9)
		require.Len(t, first.Points, 2)
		assert.InDelta(t, 34.001, first.Points[0].Lat, 1e-9)
		assert.InDelta(t, -118.010, first.Points[0].Lon, 1e-9)

		second := segments[1]
		assert.Equal(t, domain.SurfaceUnknown, second.Surface)
		assert.Equal(t, domain.SurfaceUnknown, second.SurfaceCategory)
	})

	t.Run("multi line string splits into segments", func(t *testing.T) {
		path := writeFile(t, "roads.geojson", `{
			"type": "FeatureCollection",
			"features": [{
				"id": "way/200",
				"geometry": {"type": "MultiLineString", "coordinates": [
					[[-118.010, 34.001], [-118.005, 34.001]],
					[[-118.004, 34.001], [-118.000, 34.001]]
				]},
				"properties": {"highway": "motorway"}
			}]
		}`)

		segments, _, err := LoadRoads(path, discardLogger())
		require.NoError(t, err)
		require.Len(t, segments, 2)
		assert.Equal(t, "way/200/0", segments[0].ID)
		assert.Equal(t, "way/200/1", segments[1].ID)
	})

	t.Run("skips unsupported geometry", func(t *testing.T) {
		path := writeFile(t, "roads.geojson", `{
			"type": "FeatureCollection",
			"features": [
				{
					"geometry": {"type": "Point", "coordinates": [-118.0, 34.0]},
					"properties": {}
				},
				{
					"geometry": {"type": "LineString", "coordinates": [[-118.010, 34.001], [-118.000, 34.001]]},
					"properties": {"highway": "service"}
				}
			]
		}`)

		segments, stats, err := LoadRoads(path, discardLogger())
		require.NoError(t, err)
		assert.Len(t, segments, 1)
		assert.Equal(t, 1, stats.DroppedGeometry)
	})

	t.Run("no usable features", func(t *testing.T) {
		path := writeFile(t, "roads.geojson", `{"type": "FeatureCollection", "features": []}`)
		_, _, err := LoadRoads(path, discardLogger())
		assert.Error(t, err)
	})

	t.Run("not a feature collection", func(t *testing.T) {
		path := writeFile(t, "roads.geojson", `{"type": "Feature"}`)
		_, _, err := LoadRoads(path, discardLogger())
		assert.ErrorContains(t, err, "FeatureCollection")
	})
}

func TestLoadRoads_CSV(t *testing.T) {
	t.Run("parses geometry column", func(t *testing.T) {
		path := writeFile(t, "roads.csv",
			"id,geometry,highway,surface,lanes,maxspeed\n"+
				"seg-a,-118.010 34.001;-118.000 34.001,tertiary_link,gravel,1,80\n"+
				"seg-b,-118.010 34.002,primary,asphalt,2,55 mph\n")

		segments, stats, err := LoadRoads(path, discardLogger())
		require.NoError(t, err)
		require.Len(t, segments, 1)
		assert.Equal(t, 1, stats.DroppedGeometry)

		seg := segments[0]
		assert.Equal(t, "seg-a", seg.ID)
		assert.Equal(t, "tertiary", seg.Highway)
		assert.Equal(t, domain.SurfaceGravel, seg.Surface)
		assert.Equal(t, "unpaved", seg.SurfaceCategory)
		assert.Equal(t, 1, seg.LaneCount)
		// 80 km/h converted to mph.
		assert.InDelta(t, 49.7, seg.MaxSpeedMPH, 0.1)
	})

	t.Run("missing geometry column", func(t *testing.T) {
		path := writeFile(t, "roads.csv", "id,highway\nseg-a,primary\n")
		_, _, err := LoadRoads(path, discardLogger())
		assert.ErrorContains(t, err, "geometry")
	})
}

func TestLoadRoads_UnsupportedFormat(t *testing.T) {
	path := writeFile(t, "roads.shp", "binary")
	_, _, err := LoadRoads(path, discardLogger())
	assert.ErrorContains(t, err, "unsupported road file format")
}

func TestParseMaxSpeed(t *testing.T) {
	assert.InDelta(t, 45.0, parseMaxSpeed("45 mph"), 1e-9)
	assert.InDelta(t, 62.1371, parseMaxSpeed("100"), 1e-3)
	assert.Zero(t, parseMaxSpeed(""))
	assert.Zero(t, parseMaxSpeed("none"))
}
