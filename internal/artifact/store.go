// Package artifact manages the on-disk outputs of a pipeline run: the
// integrated dataset, fitted models, reports, and the run manifest that
// cmd/validate checks.
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/roadquality/accident-severity-etl/internal/domain"
)

// Well-known artifact file names under the store's base directory.
const (
	IntegratedFile   = "processed/integrated.csv"
	TreeModelFile    = "models/decision_tree.gob"
	ForestModelFile  = "models/random_forest.gob"
	ReportJSONFile   = "reports/report.json"
	ReportTextFile   = "reports/report.txt"
	ManifestFile     = "manifest.json"
	HyperparamsStamp = "reports/hyperparams.json"
)

// StageCount records how many rows entered and left one pipeline stage.
type StageCount struct {
	Stage string `json:"stage"`
	In    int    `json:"in"`
	Out   int    `json:"out"`
}

// Manifest describes one pipeline run end to end. Row counts are listed in
// stage order so a validator can check that no stage invented rows.
type Manifest struct {
	RunID     string       `json:"run_id"`
	CreatedAt time.Time    `json:"created_at"`
	Stages    []StageCount `json:"stages"`
	MatchRate float64      `json:"match_rate"`
	Seed      int64        `json:"seed"`
}

// Store reads and writes run artifacts under a base directory.
type Store struct {
	BaseDir string
}

// NewStore creates the store and its directory layout.
func NewStore(baseDir string) (*Store, error) {
	s := &Store{BaseDir: baseDir}
	for _, dir := range []string{"processed", "models", "reports"} {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir: %w", err)
		}
	}
	return s, nil
}

// Path resolves a file name relative to the base directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.BaseDir, name)
}

var integratedHeader = []string{
	"id", "severity", "severe", "start_time", "state", "lat", "lon",
	"temperature_f", "humidity_pct", "pressure_in", "visibility_mi", "wind_speed_mph",
	"weather_condition", "road_matched", "road_segment_id", "highway",
	"surface", "surface_category", "lane_count", "max_speed_mph", "distance_m",
}

// WriteIntegratedCSV persists the joined dataset.
func (s *Store) WriteIntegratedCSV(records []domain.IntegratedAccident) error {
	f, err := os.Create(s.Path(IntegratedFile))
	if err != nil {
		return fmt.Errorf("create integrated dataset: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(integratedHeader); err != nil {
		return fmt.Errorf("write integrated header: %w", err)
	}
	for i := range records {
		if err := w.Write(integratedRow(&records[i])); err != nil {
			return fmt.Errorf("write integrated row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush integrated dataset: %w", err)
	}
	return f.Close()
}

func integratedRow(r *domain.IntegratedAccident) []string {
	startTime := ""
	if !r.StartTime.IsZero() {
		startTime = r.StartTime.Format(time.RFC3339)
	}
	return []string{
		r.ID,
		strconv.Itoa(r.Severity),
		strconv.FormatBool(r.Severe),
		startTime,
		r.State,
		formatFloat(r.Geo.Lat),
		formatFloat(r.Geo.Lon),
		formatFloat(r.Weather.TemperatureF),
		formatFloat(r.Weather.HumidityPct),
		formatFloat(r.Weather.PressureIn),
		formatFloat(r.Weather.VisibilityMi),
		formatFloat(r.Weather.WindSpeedMPH),
		r.Weather.Condition,
		strconv.FormatBool(r.Road.Matched),
		r.Road.SegmentID,
		r.Road.Highway,
		r.Road.Surface,
		r.Road.SurfaceCategory,
		strconv.Itoa(r.Road.LaneCount),
		formatFloat(r.Road.MaxSpeedMPH),
		formatFloat(r.Road.DistanceMeters),
	}
}

// formatFloat renders NaN as an empty cell, matching the source CSVs.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadIntegratedCSV loads the joined dataset back. Numeric parsing treats
// empty cells as NaN, mirroring WriteIntegratedCSV.
func (s *Store) ReadIntegratedCSV() ([]domain.IntegratedAccident, error) {
	f, err := os.Open(s.Path(IntegratedFile))
	if err != nil {
		return nil, fmt.Errorf("open integrated dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read integrated dataset: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("integrated dataset is empty")
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[name] = i
	}

	records := make([]domain.IntegratedAccident, 0, len(rows)-1)
	for _, row := range rows[1:] {
		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(row) {
				return row[i]
			}
			return ""
		}

		severity, _ := strconv.Atoi(get("severity"))
		lat, _ := strconv.ParseFloat(get("lat"), 64)
		lon, _ := strconv.ParseFloat(get("lon"), 64)
		lanes, _ := strconv.Atoi(get("lane_count"))

		var startTime time.Time
		if ts := get("start_time"); ts != "" {
			startTime, _ = time.Parse(time.RFC3339, ts)
		}

		records = append(records, domain.IntegratedAccident{
			Accident: domain.Accident{
				ID:        get("id"),
				Severity:  severity,
				Severe:    get("severe") == "true",
				StartTime: startTime,
				State:     get("state"),
				Geo:       domain.Geo{Lat: lat, Lon: lon},
				Weather: domain.Weather{
					TemperatureF: parseFloatOrNaN(get("temperature_f")),
					HumidityPct:  parseFloatOrNaN(get("humidity_pct")),
					PressureIn:   parseFloatOrNaN(get("pressure_in")),
					VisibilityMi: parseFloatOrNaN(get("visibility_mi")),
					WindSpeedMPH: parseFloatOrNaN(get("wind_speed_mph")),
					Condition:    get("weather_condition"),
				},
			},
			Road: domain.RoadMatch{
				Matched:         get("road_matched") == "true",
				SegmentID:       get("road_segment_id"),
				Highway:         get("highway"),
				Surface:         get("surface"),
				SurfaceCategory: get("surface_category"),
				LaneCount:       lanes,
				MaxSpeedMPH:     parseFloatOrZero(get("max_speed_mph")),
				DistanceMeters:  parseFloatOrZero(get("distance_m")),
			},
		})
	}
	return records, nil
}

func parseFloatOrNaN(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// WriteJSON marshals v as indented JSON to a named artifact.
func (s *Store) WriteJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := os.WriteFile(s.Path(name), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// WriteManifest persists the run manifest.
func (s *Store) WriteManifest(m *Manifest) error {
	return s.WriteJSON(ManifestFile, m)
}

// ReadManifest loads a previously written manifest.
func (s *Store) ReadManifest() (*Manifest, error) {
	data, err := os.ReadFile(s.Path(ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}
