package ingest

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roadquality/accident-severity-etl/internal/domain"
)

// RoadStats counts how ingest disposed of each road feature.
type RoadStats struct {
	FeaturesRead    int
	Segments        int
	DroppedGeometry int
	DroppedBadRow   int
}

// LoadRoads reads the road network from a GeoJSON FeatureCollection or a
// CSV export, dispatching on file extension. Surface, highway, and lane
// attributes are normalized into their canonical values as they load.
func LoadRoads(path string, logger *slog.Logger) ([]domain.RoadSegment, RoadStats, error) {
	var (
		segments []domain.RoadSegment
		stats    RoadStats
		err      error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".geojson", ".json":
		segments, stats, err = loadRoadsGeoJSON(path)
	case ".csv":
		segments, stats, err = loadRoadsCSV(path)
	default:
		return nil, RoadStats{}, fmt.Errorf("unsupported road file format %q", ext)
	}
	if err != nil {
		return nil, RoadStats{}, err
	}

	logger.Info("loaded road network",
		"path", path,
		"features_read", stats.FeaturesRead,
		"segments", stats.Segments,
		"dropped_geometry", stats.DroppedGeometry,
		"dropped_bad_row", stats.DroppedBadRow)
	return segments, stats, nil
}

// geoJSONFeature is the subset of the GeoJSON feature schema the road
// network uses. Geometry coordinates are decoded lazily because their shape
// depends on the geometry type.
type geoJSONFeature struct {
	ID       any `json:"id"`
	Geometry struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

func loadRoadsGeoJSON(path string) ([]domain.RoadSegment, RoadStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, RoadStats{}, fmt.Errorf("read roads file: %w", err)
	}

	var fc struct {
		Type     string           `json:"type"`
		Features []geoJSONFeature `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, RoadStats{}, fmt.Errorf("parse roads geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, RoadStats{}, fmt.Errorf("roads geojson: expected FeatureCollection, got %q", fc.Type)
	}

	var (
		segments []domain.RoadSegment
		stats    RoadStats
	)
	for i, feat := range fc.Features {
		stats.FeaturesRead++

		lines, err := decodeLines(feat.Geometry.Type, feat.Geometry.Coordinates)
		if err != nil {
			stats.DroppedGeometry++
			continue
		}

		id := featureID(feat.ID, i)
		highway, _ := feat.Properties["highway"].(string)
		surfaceRaw, _ := feat.Properties["surface"].(string)
		surface := domain.NormalizeSurface(surfaceRaw)

		for j, line := range lines {
			if len(line) < 2 {
				stats.DroppedGeometry++
				continue
			}
			segID := id
			if len(lines) > 1 {
				segID = fmt.Sprintf("%s/%d", id, j)
			}
			segments = append(segments, domain.RoadSegment{
				ID:              segID,
				Points:          line,
				Highway:         domain.NormalizeHighway(highway),
				Surface:         surface,
				SurfaceCategory: domain.SurfaceCategory(surface),
				LaneCount:       propertyInt(feat.Properties, "lanes"),
				MaxSpeedMPH:     propertyMaxSpeed(feat.Properties),
			})
			stats.Segments++
		}
	}

	if len(segments) == 0 {
		return nil, stats, errors.New("roads geojson: no usable line features")
	}
	return segments, stats, nil
}

// decodeLines normalizes LineString and MultiLineString geometries into a
// list of polylines. GeoJSON positions are [lon, lat].
func decodeLines(geomType string, raw json.RawMessage) ([][]domain.Geo, error) {
	switch geomType {
	case "LineString":
		var coords [][]float64
		if err := json.Unmarshal(raw, &coords); err != nil {
			return nil, fmt.Errorf("decode LineString: %w", err)
		}
		line, err := toLine(coords)
		if err != nil {
			return nil, err
		}
		return [][]domain.Geo{line}, nil
	case "MultiLineString":
		var multi [][][]float64
		if err := json.Unmarshal(raw, &multi); err != nil {
			return nil, fmt.Errorf("decode MultiLineString: %w", err)
		}
		lines := make([][]domain.Geo, 0, len(multi))
		for _, coords := range multi {
			line, err := toLine(coords)
			if err != nil {
				return nil, err
			}
			lines = append(lines, line)
		}
		return lines, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", geomType)
	}
}

func toLine(coords [][]float64) ([]domain.Geo, error) {
	line := make([]domain.Geo, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			return nil, errors.New("position needs lon and lat")
		}
		line = append(line, domain.Geo{Lat: c[1], Lon: c[0]})
	}
	return line, nil
}

// loadRoadsCSV reads the flat export format: one segment per row with the
// geometry column holding "lon lat;lon lat;..." vertex pairs.
func loadRoadsCSV(path string) ([]domain.RoadSegment, RoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, RoadStats{}, fmt.Errorf("open roads file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, RoadStats{}, fmt.Errorf("read roads header: %w", err)
	}
	col := headerIndex(header)
	if _, ok := col["geometry"]; !ok {
		return nil, RoadStats{}, errors.New(`roads csv missing column "geometry"`)
	}

	var (
		segments []domain.RoadSegment
		stats    RoadStats
	)
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			stats.DroppedBadRow++
			continue
		}
		stats.FeaturesRead++

		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		line, err := parseGeometryColumn(get("geometry"))
		if err != nil || len(line) < 2 {
			stats.DroppedGeometry++
			continue
		}

		id := get("id")
		if id == "" {
			id = fmt.Sprintf("seg-%d", stats.FeaturesRead)
		}
		surface := domain.NormalizeSurface(get("surface"))
		lanes, _ := strconv.Atoi(get("lanes"))
		maxspeed := parseMaxSpeed(get("maxspeed"))

		segments = append(segments, domain.RoadSegment{
			ID:              id,
			Points:          line,
			Highway:         domain.NormalizeHighway(get("highway")),
			Surface:         surface,
			SurfaceCategory: domain.SurfaceCategory(surface),
			LaneCount:       lanes,
			MaxSpeedMPH:     maxspeed,
		})
		stats.Segments++
	}

	if len(segments) == 0 {
		return nil, stats, errors.New("roads csv: no usable segments")
	}
	return segments, stats, nil
}

// parseGeometryColumn decodes "lon lat;lon lat;..." into a polyline.
func parseGeometryColumn(s string) ([]domain.Geo, error) {
	if s == "" {
		return nil, errors.New("empty geometry")
	}
	pairs := strings.Split(s, ";")
	line := make([]domain.Geo, 0, len(pairs))
	for _, pair := range pairs {
		fields := strings.Fields(pair)
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed vertex %q", pair)
		}
		lon, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, err
		}
		lat, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, err
		}
		line = append(line, domain.Geo{Lat: lat, Lon: lon})
	}
	return line, nil
}

func featureID(raw any, index int) string {
	switch v := raw.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatInt(int64(v), 10)
	}
	return fmt.Sprintf("feature-%d", index)
}

func propertyInt(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case float64:
		return int(v)
	case string:
		// OSM lanes tags are occasionally "2; 3"; the first value wins.
		v = strings.TrimSpace(strings.SplitN(v, ";", 2)[0])
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// propertyMaxSpeed parses the OSM maxspeed tag, which carries its own unit
// ("45 mph") or implies km/h when bare.
func propertyMaxSpeed(props map[string]any) float64 {
	switch v := props["maxspeed"].(type) {
	case float64:
		return v
	case string:
		return parseMaxSpeed(v)
	}
	return 0
}

const kmhToMPH = 0.621371

func parseMaxSpeed(s string) float64 {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0
	}
	if rest, ok := strings.CutSuffix(s, "mph"); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
		if err != nil {
			return 0
		}
		return v
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v * kmhToMPH
}
