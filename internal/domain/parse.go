package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Contiguous-US coordinate window. Points outside are coordinate errors.
const (
	MinLat = 24.5
	MaxLat = 49.4
	MinLon = -125.0
	MaxLon = -66.0
)

// Parse failure modes, distinguished so ingest can count drop reasons.
var (
	ErrMissingCoordinates    = errors.New("missing coordinates")
	ErrCoordinatesOutOfRange = errors.New("coordinates outside contiguous US")
	ErrInvalidSeverity       = errors.New("severity outside 1-4")
)

// timeLayouts are the timestamp formats seen in the accidents CSV. Some
// exports carry sub-second precision.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339,
}

// ParseAccidentRecord converts a raw CSV row into an Accident. Coordinate
// and severity violations return an error; everything else degrades to
// NaN/zero values so a sparse row still yields a usable record.
func ParseAccidentRecord(rec RawAccidentRecord) (Accident, error) {
	lat, latOK := parseFloat(rec.StartLat)
	lon, lonOK := parseFloat(rec.StartLng)
	if !latOK || !lonOK {
		return Accident{}, ErrMissingCoordinates
	}
	if !ValidCoordinate(lat, lon) {
		return Accident{}, fmt.Errorf("%w: lat=%g lon=%g", ErrCoordinatesOutOfRange, lat, lon)
	}

	severity, err := strconv.Atoi(strings.TrimSpace(rec.Severity))
	if err != nil || severity < 1 || severity > 4 {
		return Accident{}, fmt.Errorf("%w: %q", ErrInvalidSeverity, rec.Severity)
	}

	start := parseTimestamp(rec.StartTime)
	end := parseTimestamp(rec.EndTime)

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = generateID(severity, lat, lon, rec.StartTime)
	}

	return Accident{
		ID:        id,
		Severity:  severity,
		Severe:    severity > 2,
		StartTime: start,
		EndTime:   end,
		Geo:       Geo{Lat: lat, Lon: lon},
		State:     strings.ToUpper(strings.TrimSpace(rec.State)),
		City:      strings.TrimSpace(rec.City),
		County:    strings.TrimSpace(rec.County),
		Weather: Weather{
			TemperatureF: parseFloatOrNaN(rec.TemperatureF),
			HumidityPct:  parseFloatOrNaN(rec.HumidityPct),
			PressureIn:   parseFloatOrNaN(rec.PressureIn),
			VisibilityMi: parseFloatOrNaN(rec.VisibilityMi),
			WindSpeedMPH: parseFloatOrNaN(rec.WindSpeedMPH),
			Condition:    strings.TrimSpace(rec.Weather),
		},
		Infra: Infrastructure{
			Amenity:        parseBool(rec.Amenity),
			Bump:           parseBool(rec.Bump),
			Crossing:       parseBool(rec.Crossing),
			GiveWay:        parseBool(rec.GiveWay),
			Junction:       parseBool(rec.Junction),
			NoExit:         parseBool(rec.NoExit),
			Railway:        parseBool(rec.Railway),
			Roundabout:     parseBool(rec.Roundabout),
			Station:        parseBool(rec.Station),
			Stop:           parseBool(rec.Stop),
			TrafficCalming: parseBool(rec.TrafficCalming),
			TrafficSignal:  parseBool(rec.TrafficSignal),
			TurningLoop:    parseBool(rec.TurningLoop),
		},
		ProcessedAt: clock.Now(),
	}, nil
}

// ValidCoordinate reports whether a point lies inside the contiguous-US
// window.
func ValidCoordinate(lat, lon float64) bool {
	return lat >= MinLat && lat <= MaxLat && lon >= MinLon && lon <= MaxLon
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// parseFloatOrNaN parses a string as float64, returning NaN for missing or
// malformed values so imputation can find them later.
func parseFloatOrNaN(s string) float64 {
	v, ok := parseFloat(s)
	if !ok {
		return math.NaN()
	}
	return v
}

// parseBool accepts the True/False strings used by the dataset. Missing
// values default to false, matching the original cleaning behavior.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// parseTimestamp tries each known layout, returning zero time when none fit.
// Records with zero start times are excluded from temporal features rather
// than dropped.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// generateID produces a deterministic ID from the record's key fields so
// that reprocessing the same input yields the same ID.
func generateID(severity int, lat, lon float64, startTime string) string {
	input := fmt.Sprintf("%d|%.5f|%.5f|%s", severity, lat, lon, startTime)
	hash := sha256.Sum256([]byte(input))
	return "acc-" + hex.EncodeToString(hash[:8])
}
