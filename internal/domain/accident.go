package domain

import "time"

// RawAccidentRecord is a single row of the accidents CSV, untyped. Field
// names mirror the source column headers.
type RawAccidentRecord struct {
	ID             string `json:"ID"`
	Severity       string `json:"Severity"`
	StartTime      string `json:"Start_Time"`
	EndTime        string `json:"End_Time"`
	StartLat       string `json:"Start_Lat"`
	StartLng       string `json:"Start_Lng"`
	State          string `json:"State"`
	City           string `json:"City"`
	County         string `json:"County"`
	TemperatureF   string `json:"Temperature(F)"`
	HumidityPct    string `json:"Humidity(%)"`
	PressureIn     string `json:"Pressure(in)"`
	VisibilityMi   string `json:"Visibility(mi)"`
	WindSpeedMPH   string `json:"Wind_Speed(mph)"`
	Weather        string `json:"Weather_Condition"`
	Amenity        string `json:"Amenity"`
	Bump           string `json:"Bump"`
	Crossing       string `json:"Crossing"`
	GiveWay        string `json:"Give_Way"`
	Junction       string `json:"Junction"`
	NoExit         string `json:"No_Exit"`
	Railway        string `json:"Railway"`
	Roundabout     string `json:"Roundabout"`
	Station        string `json:"Station"`
	Stop           string `json:"Stop"`
	TrafficCalming string `json:"Traffic_Calming"`
	TrafficSignal  string `json:"Traffic_Signal"`
	TurningLoop    string `json:"Turning_Loop"`
}

// Geo is a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Weather holds the meteorological measurements attached to an accident.
// Numeric fields use NaN for missing values so that downstream imputation
// and NaN-aware tree splits can distinguish missing from zero.
type Weather struct {
	TemperatureF float64 `json:"temperature_f"`
	HumidityPct  float64 `json:"humidity_pct"`
	PressureIn   float64 `json:"pressure_in"`
	VisibilityMi float64 `json:"visibility_mi"`
	WindSpeedMPH float64 `json:"wind_speed_mph"`
	Condition    string  `json:"condition"`
}

// Infrastructure holds the boolean point-of-interest flags describing the
// road environment around the accident location.
type Infrastructure struct {
	Amenity        bool `json:"amenity"`
	Bump           bool `json:"bump"`
	Crossing       bool `json:"crossing"`
	GiveWay        bool `json:"give_way"`
	Junction       bool `json:"junction"`
	NoExit         bool `json:"no_exit"`
	Railway        bool `json:"railway"`
	Roundabout     bool `json:"roundabout"`
	Station        bool `json:"station"`
	Stop           bool `json:"stop"`
	TrafficCalming bool `json:"traffic_calming"`
	TrafficSignal  bool `json:"traffic_signal"`
	TurningLoop    bool `json:"turning_loop"`
}

// Accident is the parsed, domain-rich representation of one accident record.
type Accident struct {
	ID        string         `json:"id"`
	Severity  int            `json:"severity"` // ordinal 1-4
	Severe    bool           `json:"severe"`   // Severity > 2
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Geo       Geo            `json:"geo"`
	State     string         `json:"state"`
	City      string         `json:"city,omitempty"`
	County    string         `json:"county,omitempty"`
	Weather   Weather        `json:"weather"`
	Infra     Infrastructure `json:"infrastructure"`

	ProcessedAt time.Time `json:"processed_at"`
}

// RoadMatch records the outcome of the nearest-road spatial join for one
// accident. Unmatched accidents keep "unknown" attributes rather than being
// dropped.
type RoadMatch struct {
	Matched         bool    `json:"matched"`
	SegmentID       string  `json:"segment_id,omitempty"`
	Highway         string  `json:"highway"`
	Surface         string  `json:"surface"`
	SurfaceCategory string  `json:"surface_category"`
	LaneCount       int     `json:"lane_count,omitempty"`
	MaxSpeedMPH     float64 `json:"max_speed_mph,omitempty"`
	DistanceMeters  float64 `json:"distance_meters"`
}

// UnmatchedRoad is the RoadMatch used when no segment lies within the join
// distance threshold.
func UnmatchedRoad() RoadMatch {
	return RoadMatch{
		Matched:         false,
		Highway:         SurfaceUnknown,
		Surface:         SurfaceUnknown,
		SurfaceCategory: SurfaceUnknown,
	}
}

// IntegratedAccident is an accident enriched with nearest-road attributes.
// It is the working record for cleaning, feature engineering, and the
// optional Kafka sink.
type IntegratedAccident struct {
	Accident
	Road RoadMatch `json:"road"`
}

// RoadSegment is one polyline of the road network with its normalized
// attributes.
type RoadSegment struct {
	ID              string  `json:"id"`
	Points          []Geo   `json:"points"`
	Highway         string  `json:"highway"`
	Surface         string  `json:"surface"`
	SurfaceCategory string  `json:"surface_category"`
	LaneCount       int     `json:"lane_count,omitempty"`
	MaxSpeedMPH     float64 `json:"max_speed_mph,omitempty"`
}
