// Package geo provides the planar projection, distance primitives, and
// R-tree segment index behind the nearest-road spatial join.
package geo

import (
	"math"

	"github.com/roadquality/accident-severity-etl/internal/domain"
)

// earthRadius is the WGS-84 spherical radius used by Web Mercator
// (EPSG:3857), in meters.
const earthRadius = 6378137.0

// XY is a point in projected Web Mercator coordinates, in meters.
type XY struct {
	X float64
	Y float64
}

// Project converts a WGS-84 coordinate to Web Mercator. Distances measured
// in this projection overstate ground distance by 1/cos(lat); Scale corrects
// for that at join time.
func Project(g domain.Geo) XY {
	x := earthRadius * g.Lon * math.Pi / 180
	y := earthRadius * math.Log(math.Tan(math.Pi/4+g.Lat*math.Pi/360))
	return XY{X: x, Y: y}
}

// Scale returns the Web Mercator scale factor at the given latitude.
// Dividing a projected distance by this factor yields ground meters.
func Scale(lat float64) float64 {
	return 1 / math.Cos(lat*math.Pi/180)
}

// ProjectPolyline converts each vertex of a polyline to Web Mercator.
func ProjectPolyline(points []domain.Geo) []XY {
	out := make([]XY, len(points))
	for i, p := range points {
		out[i] = Project(p)
	}
	return out
}
