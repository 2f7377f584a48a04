// Command genmock generates deterministic accident and road-network
// fixtures for tests and local pipeline runs. Records pass through the real
// domain parsers so fixtures always match pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -accidents 500 -roads 40
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roadquality/accident-severity-etl/internal/domain"
)

var baseDate = time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)

// The mock road grid sits in the Los Angeles basin, well inside the
// contiguous-US coordinate window.
const (
	gridLat = 34.00
	gridLon = -118.10
	// Grid spacing in degrees; roughly 550m between parallel roads.
	spacing = 0.005
)

var (
	highways   = []string{"motorway", "primary", "secondary", "tertiary", "residential", "service"}
	surfaces   = []string{"asphalt", "concrete", "paved", "gravel", "dirt", ""}
	conditions = []string{"Clear", "Fair", "Cloudy", "Overcast", "Light Rain", "Rain", "Heavy Snow", "Fog", "Thunderstorm"}
	mockStates = []string{"CA", "CA", "CA", "TX", "NY", "FL"}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "data/mock", "output directory for fixtures")
	numAccidents := flag.Int("accidents", 500, "number of accident rows")
	numRoads := flag.Int("roads", 40, "number of road segments")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	// Fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2023, time.March, 15, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))

	roadsPath := filepath.Join(*outDir, "roads.geojson")
	if err := writeRoads(roadsPath, *numRoads, rng); err != nil {
		return fmt.Errorf("writing roads fixture: %w", err)
	}
	log.Printf("wrote %d road segments: %s", *numRoads, roadsPath)

	accidentsPath := filepath.Join(*outDir, "accidents.csv")
	valid, err := writeAccidents(accidentsPath, *numAccidents, rng)
	if err != nil {
		return fmt.Errorf("writing accidents fixture: %w", err)
	}
	log.Printf("wrote %d accident rows (%d parseable): %s", *numAccidents, valid, accidentsPath)
	return nil
}

type feature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Geometry   map[string]any `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// writeRoads emits a grid of east-west road segments with varied highway
// and surface tags.
func writeRoads(path string, n int, rng *rand.Rand) error {
	features := make([]feature, 0, n)
	for i := 0; i < n; i++ {
		lat := gridLat + float64(i)*spacing
		lonStart := gridLon + rng.Float64()*0.01
		length := 0.02 + rng.Float64()*0.05

		props := map[string]any{
			"highway": highways[rng.Intn(len(highways))],
			"lanes":   fmt.Sprintf("%d", 1+rng.Intn(4)),
		}
		if surface := surfaces[rng.Intn(len(surfaces))]; surface != "" {
			props["surface"] = surface
		}
		if rng.Intn(2) == 0 {
			props["maxspeed"] = fmt.Sprintf("%d mph", 25+5*rng.Intn(8))
		}

		features = append(features, feature{
			Type: "Feature",
			ID:   fmt.Sprintf("way/%d", 1000+i),
			Geometry: map[string]any{
				"type": "LineString",
				"coordinates": [][]float64{
					{lonStart, lat},
					{lonStart + length/2, lat},
					{lonStart + length, lat},
				},
			},
			Properties: props,
		})
	}

	fc := map[string]any{"type": "FeatureCollection", "features": features}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// writeAccidents emits accident rows scattered around the road grid. Most
// rows are valid; a small tail exercises the ingest drop paths.
func writeAccidents(path string, n int, rng *rand.Rand) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"ID", "Severity", "Start_Time", "End_Time", "Start_Lat", "Start_Lng",
		"State", "City", "County", "Temperature(F)", "Humidity(%)", "Pressure(in)",
		"Visibility(mi)", "Wind_Speed(mph)", "Weather_Condition",
		"Amenity", "Bump", "Crossing", "Give_Way", "Junction", "No_Exit", "Railway",
		"Roundabout", "Station", "Stop", "Traffic_Calming", "Traffic_Signal", "Turning_Loop",
	}
	if err := w.Write(header); err != nil {
		return 0, err
	}

	valid := 0
	for i := 0; i < n; i++ {
		row := mockRow(i, rng)
		if _, err := domain.ParseAccidentRecord(rowToRecord(header, row)); err == nil {
			valid++
		}
		if err := w.Write(row); err != nil {
			return 0, err
		}
	}
	w.Flush()
	return valid, w.Error()
}

func mockRow(i int, rng *rand.Rand) []string {
	// Severity skews toward 2, matching the real dataset's imbalance.
	severity := 2
	switch r := rng.Float64(); {
	case r < 0.10:
		severity = 1
	case r < 0.30:
		severity = 3
	case r < 0.40:
		severity = 4
	}

	start := baseDate.Add(time.Duration(rng.Intn(28*24)) * time.Hour).
		Add(time.Duration(rng.Intn(60)) * time.Minute)
	end := start.Add(time.Duration(15+rng.Intn(120)) * time.Minute)

	// Cluster accidents near the road grid with some scatter off it.
	lat := gridLat + rng.Float64()*float64(40)*spacing + rng.NormFloat64()*0.0005
	lon := gridLon + 0.01 + rng.Float64()*0.05

	latStr := fmt.Sprintf("%.5f", lat)
	lonStr := fmt.Sprintf("%.5f", lon)
	severityStr := fmt.Sprintf("%d", severity)

	// Every 50th row is deliberately broken to exercise drop counting.
	switch i % 50 {
	case 47:
		latStr, lonStr = "", ""
	case 48:
		latStr = "61.21000" // Alaska, outside the contiguous window
		lonStr = "-149.90000"
	case 49:
		severityStr = "9"
	}

	temp := fmt.Sprintf("%.1f", 35+rng.Float64()*55)
	if rng.Float64() < 0.05 {
		temp = "" // missing measurement
	}

	return []string{
		fmt.Sprintf("A-%06d", i+1),
		severityStr,
		start.Format("2006-01-02 15:04:05"),
		end.Format("2006-01-02 15:04:05"),
		latStr,
		lonStr,
		mockStates[rng.Intn(len(mockStates))],
		"Springfield",
		"Clark",
		temp,
		fmt.Sprintf("%.1f", 20+rng.Float64()*75),
		fmt.Sprintf("%.2f", 29.5+rng.Float64()),
		fmt.Sprintf("%.1f", 1+rng.Float64()*9),
		fmt.Sprintf("%.1f", rng.Float64()*25),
		conditions[rng.Intn(len(conditions))],
		boolStr(rng.Float64() < 0.02),
		boolStr(rng.Float64() < 0.01),
		boolStr(rng.Float64() < 0.10),
		boolStr(rng.Float64() < 0.03),
		boolStr(rng.Float64() < 0.15),
		boolStr(rng.Float64() < 0.02),
		boolStr(rng.Float64() < 0.01),
		boolStr(rng.Float64() < 0.01),
		boolStr(rng.Float64() < 0.03),
		boolStr(rng.Float64() < 0.02),
		boolStr(rng.Float64() < 0.01),
		boolStr(rng.Float64() < 0.12),
		boolStr(false),
	}
}

func rowToRecord(header, row []string) domain.RawAccidentRecord {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	get := func(name string) string {
		if i, ok := col[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}
	return domain.RawAccidentRecord{
		ID:        get("ID"),
		Severity:  get("Severity"),
		StartTime: get("Start_Time"),
		EndTime:   get("End_Time"),
		StartLat:  get("Start_Lat"),
		StartLng:  get("Start_Lng"),
		State:     get("State"),
	}
}

func boolStr(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
