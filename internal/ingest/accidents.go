// Package ingest loads the raw accident and road-network datasets from
// disk, parsing and filtering rows into domain records.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/roadquality/accident-severity-etl/internal/domain"
)

// AccidentFilter restricts which rows of the accidents CSV are loaded.
// Zero values mean "no restriction".
type AccidentFilter struct {
	MaxRows    int
	States     []string
	Severities []int
	From       time.Time
	To         time.Time
}

// AccidentStats counts how ingest disposed of each row.
type AccidentStats struct {
	RowsRead             int
	Parsed               int
	DroppedMissingCoords int
	DroppedOutOfRange    int
	DroppedBadSeverity   int
	DroppedBadRow        int
	Filtered             int
}

// Dropped returns the total number of rows excluded for parse failures.
func (s AccidentStats) Dropped() int {
	return s.DroppedMissingCoords + s.DroppedOutOfRange + s.DroppedBadSeverity + s.DroppedBadRow
}

// LoadAccidents streams the accidents CSV, parsing each row into a domain
// record. Rows failing coordinate or severity validation are counted and
// skipped, never fatal. Column order is taken from the header row, so
// reordered exports load the same way.
func LoadAccidents(path string, filter AccidentFilter, logger *slog.Logger) ([]domain.Accident, AccidentStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, AccidentStats{}, fmt.Errorf("open accidents file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)

	header, err := r.Read()
	if err != nil {
		return nil, AccidentStats{}, fmt.Errorf("read accidents header: %w", err)
	}
	col := headerIndex(header)
	for _, required := range []string{"Severity", "Start_Lat", "Start_Lng"} {
		if _, ok := col[required]; !ok {
			return nil, AccidentStats{}, fmt.Errorf("accidents file missing column %q", required)
		}
	}

	wantState := toSet(filter.States)
	wantSeverity := make(map[int]bool, len(filter.Severities))
	for _, s := range filter.Severities {
		wantSeverity[s] = true
	}

	var (
		accidents []domain.Accident
		stats     AccidentStats
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
		stats.RowsRead++

		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}

		acc, err := domain.ParseAccidentRecord(rawRecord(get))
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrMissingCoordinates):
				stats.DroppedMissingCoords++
			case errors.Is(err, domain.ErrCoordinatesOutOfRange):
				stats.DroppedOutOfRange++
			case errors.Is(err, domain.ErrInvalidSeverity):
				stats.DroppedBadSeverity++
			default:
				stats.DroppedBadRow++
			}
			continue
		}

		if !matchesFilter(acc, filter, wantState, wantSeverity) {
			stats.Filtered++
			continue
		}

		accidents = append(accidents, acc)
		stats.Parsed++
		if filter.MaxRows > 0 && stats.Parsed >= filter.MaxRows {
			break
		}
	}

	logger.Info("loaded accidents",
		"path", path,
		"rows_read", stats.RowsRead,
		"parsed", stats.Parsed,
		"dropped", stats.Dropped(),
		"filtered", stats.Filtered)
	return accidents, stats, nil
}

func matchesFilter(acc domain.Accident, filter AccidentFilter, states map[string]bool, severities map[int]bool) bool {
	if len(states) > 0 && !states[acc.State] {
		return false
	}
	if len(severities) > 0 && !severities[acc.Severity] {
		return false
	}
	if !filter.From.IsZero() && acc.StartTime.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !acc.StartTime.Before(filter.To) {
		return false
	}
	return true
}

// rawRecord assembles a RawAccidentRecord from a header-keyed accessor.
func rawRecord(get func(string) string) domain.RawAccidentRecord {
	return domain.RawAccidentRecord{
		ID:             get("ID"),
		Severity:       get("Severity"),
		StartTime:      get("Start_Time"),
		EndTime:        get("End_Time"),
		StartLat:       get("Start_Lat"),
		StartLng:       get("Start_Lng"),
		State:          get("State"),
		City:           get("City"),
		County:         get("County"),
		TemperatureF:   get("Temperature(F)"),
		HumidityPct:    get("Humidity(%)"),
		PressureIn:     get("Pressure(in)"),
		VisibilityMi:   get("Visibility(mi)"),
		WindSpeedMPH:   get("Wind_Speed(mph)"),
		Weather:        get("Weather_Condition"),
		Amenity:        get("Amenity"),
		Bump:           get("Bump"),
		Crossing:       get("Crossing"),
		GiveWay:        get("Give_Way"),
		Junction:       get("Junction"),
		NoExit:         get("No_Exit"),
		Railway:        get("Railway"),
		Roundabout:     get("Roundabout"),
		Station:        get("Station"),
		Stop:           get("Stop"),
		TrafficCalming: get("Traffic_Calming"),
		TrafficSignal:  get("Traffic_Signal"),
		TurningLoop:    get("Turning_Loop"),
	}
}

func headerIndex(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	return col
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToUpper(strings.TrimSpace(v))] = true
	}
	return set
}
