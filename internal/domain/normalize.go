package domain

import "strings"

// Canonical surface values. Everything the normalizers emit is one of these.
const (
	SurfaceAsphalt     = "asphalt"
	SurfacePaved       = "paved"
	SurfaceConcrete    = "concrete"
	SurfaceGravel      = "gravel"
	SurfaceDirt        = "dirt"
	SurfaceUnpaved     = "unpaved"
	SurfaceCobblestone = "cobblestone"
	SurfaceUnknown     = "unknown"
)

// surfaceMapping collapses raw OSM surface tags into the canonical set.
// Values not listed here become "unknown".
var surfaceMapping = map[string]string{
	"asphalt":         SurfaceAsphalt,
	"paved":           SurfacePaved,
	"concrete":        SurfaceConcrete,
	"concrete:plates": SurfaceConcrete,
	"concrete:lanes":  SurfaceConcrete,
	"unpaved":         SurfaceUnpaved,
	"gravel":          SurfaceGravel,
	"fine_gravel":     SurfaceGravel,
	"compacted":       SurfaceUnpaved,
	"dirt":            SurfaceDirt,
	"ground":          SurfaceUnpaved,
	"grass":           SurfaceUnpaved,
	"earth":           SurfaceDirt,
	"sand":            SurfaceUnpaved,
	"cobblestone":     SurfaceCobblestone,
	"paving_stones":   SurfacePaved,
	"sett":            SurfaceCobblestone,
}

// surfaceCategories maps each canonical surface onto paved/unpaved/unknown.
var surfaceCategories = map[string]string{
	SurfaceAsphalt:     "paved",
	SurfaceConcrete:    "paved",
	SurfacePaved:       "paved",
	SurfaceCobblestone: "paved",
	SurfaceGravel:      "unpaved",
	SurfaceDirt:        "unpaved",
	SurfaceUnpaved:     "unpaved",
}

// highwayMapping folds OSM link variants into their parent class and maps
// synonyms onto the functional category.
var highwayMapping = map[string]string{
	"motorway":       "motorway",
	"motorway_link":  "motorway",
	"trunk":          "trunk",
	"trunk_link":     "trunk",
	"primary":        "primary",
	"primary_link":   "primary",
	"secondary":      "secondary",
	"secondary_link": "secondary",
	"tertiary":       "tertiary",
	"tertiary_link":  "tertiary",
	"residential":    "residential",
	"living_street":  "residential",
	"unclassified":   "unclassified",
	"road":           "unclassified",
	"service":        "service",
}

// NormalizeSurface maps a raw OSM surface tag onto the canonical surface set.
func NormalizeSurface(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return SurfaceUnknown
	}
	if s, ok := surfaceMapping[raw]; ok {
		return s
	}
	return SurfaceUnknown
}

// SurfaceCategory returns the coarse paved/unpaved/unknown category for a
// canonical surface value.
func SurfaceCategory(surface string) string {
	if c, ok := surfaceCategories[surface]; ok {
		return c
	}
	return SurfaceUnknown
}

// NormalizeHighway maps a raw OSM highway tag onto the functional road class.
// OSM occasionally tags ways with multiple classes separated by semicolons;
// the first entry wins.
func NormalizeHighway(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexByte(raw, ';'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return SurfaceUnknown
	}
	if h, ok := highwayMapping[raw]; ok {
		return h
	}
	return "other"
}

// weatherGroups buckets the free-form Weather_Condition strings into broad
// groups by substring, checked in order. Precipitation outranks obscuration:
// "Light Snow / Windy" should group as snow, not windy.
var weatherGroups = []struct {
	substr string
	group  string
}{
	{"thunder", "thunderstorm"},
	{"t-storm", "thunderstorm"},
	{"snow", "snow"},
	{"sleet", "snow"},
	{"ice", "snow"},
	{"wintry", "snow"},
	{"hail", "snow"},
	{"rain", "rain"},
	{"drizzle", "rain"},
	{"shower", "rain"},
	{"fog", "fog"},
	{"mist", "fog"},
	{"haze", "fog"},
	{"smoke", "fog"},
	{"dust", "fog"},
	{"cloud", "cloudy"},
	{"overcast", "cloudy"},
	{"fair", "clear"},
	{"clear", "clear"},
}

// GroupWeatherCondition collapses a raw weather condition string into one of
// {clear, cloudy, rain, snow, thunderstorm, fog, other, unknown}. The raw
// vocabulary has over a hundred distinct values; grouping keeps one-hot
// encodings tractable.
func GroupWeatherCondition(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return SurfaceUnknown
	}
	for _, g := range weatherGroups {
		if strings.Contains(raw, g.substr) {
			return g.group
		}
	}
	return "other"
}
