package features

import (
	"errors"
	"fmt"
	"math"

	"github.com/roadquality/accident-severity-etl/internal/domain"
)

// Rush-hour windows, local time: morning 07:00-08:59, evening 16:00-17:59.
const (
	morningRushStart = 7
	morningRushEnd   = 9
	eveningRushStart = 16
	eveningRushEnd   = 18
)

// Matrix is the design matrix for model training. X is row-major with one
// column per name; Y holds the severity labels 1-4.
type Matrix struct {
	X     [][]float64
	Names []string
	Y     []int
}

// Rows returns the number of observations.
func (m *Matrix) Rows() int { return len(m.X) }

// Cols returns the number of feature columns.
func (m *Matrix) Cols() int { return len(m.Names) }

// Column returns the index of a named column.
func (m *Matrix) Column(name string) (int, error) {
	for i, n := range m.Names {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no feature column %q", name)
}

// Builder fits categorical encoders on a dataset and emits the design
// matrix. Fit once on the full dataset, before splitting, so every split
// shares one column layout.
type Builder struct {
	weatherGroup OneHotEncoder
	surfaceCat   OneHotEncoder
	highway      OneHotEncoder
	state        LabelEncoder
	surfWeather  FrequencyEncoder
}

// NewBuilder fits the encoders on the given records.
func NewBuilder(records []domain.IntegratedAccident) (*Builder, error) {
	if len(records) == 0 {
		return nil, errors.New("fit feature encoders: no records")
	}

	b := &Builder{
		weatherGroup: OneHotEncoder{Prefix: "weather"},
		surfaceCat:   OneHotEncoder{Prefix: "surface_cat"},
		highway:      OneHotEncoder{Prefix: "highway"},
	}

	groups := make([]string, len(records))
	surfaces := make([]string, len(records))
	highways := make([]string, len(records))
	states := make([]string, len(records))
	interactions := make([]string, len(records))
	for i := range records {
		groups[i] = domain.GroupWeatherCondition(records[i].Weather.Condition)
		surfaces[i] = records[i].Road.SurfaceCategory
		highways[i] = records[i].Road.Highway
		states[i] = records[i].State
		interactions[i] = interactionKey(&records[i])
	}

	b.weatherGroup.Fit(groups)
	b.surfaceCat.Fit(surfaces)
	b.highway.Fit(highways)
	b.state.Fit(states)
	b.surfWeather.Fit(interactions)
	return b, nil
}

// interactionKey combines road surface and weather group. Unpaved roads in
// rain behave differently from either factor alone.
func interactionKey(r *domain.IntegratedAccident) string {
	return r.Road.SurfaceCategory + "|" + domain.GroupWeatherCondition(r.Weather.Condition)
}

// Build emits the design matrix for a record set using the fitted encoders.
func (b *Builder) Build(records []domain.IntegratedAccident) *Matrix {
	names := b.names()
	m := &Matrix{
		X:     make([][]float64, 0, len(records)),
		Names: names,
		Y:     make([]int, 0, len(records)),
	}
	for i := range records {
		m.X = append(m.X, b.row(&records[i], len(names)))
		m.Y = append(m.Y, records[i].Severity)
	}
	return m
}

func (b *Builder) names() []string {
	names := []string{
		"hour", "day_of_week", "month", "is_weekend", "is_rush_hour",
		"temperature_f", "humidity_pct", "pressure_in", "visibility_mi", "wind_speed_mph",
		"amenity", "bump", "crossing", "give_way", "junction", "no_exit", "railway",
		"roundabout", "station", "stop", "traffic_calming", "traffic_signal", "turning_loop",
		"road_matched", "road_distance_m", "lane_count", "max_speed_mph",
	}
	names = append(names, b.weatherGroup.Names()...)
	names = append(names, b.surfaceCat.Names()...)
	names = append(names, b.highway.Names()...)
	names = append(names, "state_code", "surface_weather_freq")
	return names
}

func (b *Builder) row(r *domain.IntegratedAccident, width int) []float64 {
	row := make([]float64, 0, width)
	row = append(row, temporalFeatures(r)...)
	row = append(row,
		r.Weather.TemperatureF,
		r.Weather.HumidityPct,
		r.Weather.PressureIn,
		r.Weather.VisibilityMi,
		r.Weather.WindSpeedMPH,
	)
	row = append(row,
		boolFeature(r.Infra.Amenity),
		boolFeature(r.Infra.Bump),
		boolFeature(r.Infra.Crossing),
		boolFeature(r.Infra.GiveWay),
		boolFeature(r.Infra.Junction),
		boolFeature(r.Infra.NoExit),
		boolFeature(r.Infra.Railway),
		boolFeature(r.Infra.Roundabout),
		boolFeature(r.Infra.Station),
		boolFeature(r.Infra.Stop),
		boolFeature(r.Infra.TrafficCalming),
		boolFeature(r.Infra.TrafficSignal),
		boolFeature(r.Infra.TurningLoop),
	)

	distance := r.Road.DistanceMeters
	if !r.Road.Matched {
		distance = math.NaN()
	}
	row = append(row,
		boolFeature(r.Road.Matched),
		distance,
		float64(r.Road.LaneCount),
		r.Road.MaxSpeedMPH,
	)

	row = append(row, b.weatherGroup.Transform(domain.GroupWeatherCondition(r.Weather.Condition))...)
	row = append(row, b.surfaceCat.Transform(r.Road.SurfaceCategory)...)
	row = append(row, b.highway.Transform(r.Road.Highway)...)
	row = append(row, b.state.Transform(r.State), b.surfWeather.Transform(interactionKey(r)))
	return row
}

// temporalFeatures derives time-of-day features from the accident start
// time. Records without a start time get NaN so the trees route them like
// any other missing value.
func temporalFeatures(r *domain.IntegratedAccident) []float64 {
	if r.StartTime.IsZero() {
		nan := math.NaN()
		return []float64{nan, nan, nan, nan, nan}
	}
	hour := r.StartTime.Hour()
	dow := int(r.StartTime.Weekday())
	return []float64{
		float64(hour),
		float64(dow),
		float64(int(r.StartTime.Month())),
		boolFeature(dow == 0 || dow == 6),
		boolFeature(isRushHour(hour)),
	}
}

func isRushHour(hour int) bool {
	return (hour >= morningRushStart && hour < morningRushEnd) ||
		(hour >= eveningRushStart && hour < eveningRushEnd)
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
