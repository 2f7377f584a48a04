package geo

import "math"

// PointSegmentDistance returns the distance from p to the segment a-b in
// projected coordinates.
func PointSegmentDistance(p, a, b XY) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y

	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		// Degenerate segment.
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}

	// Projection parameter of p onto the infinite line, clamped to [0,1].
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	cx := a.X + t*dx
	cy := a.Y + t*dy
	return math.Hypot(p.X-cx, p.Y-cy)
}

// PointPolylineDistance returns the minimum distance from p to any segment
// of the polyline. A single-vertex polyline degenerates to point distance;
// an empty one returns +Inf.
func PointPolylineDistance(p XY, line []XY) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return math.Hypot(p.X-line[0].X, p.Y-line[0].Y)
	}

	best := math.Inf(1)
	for i := 1; i < len(line); i++ {
		if d := PointSegmentDistance(p, line[i-1], line[i]); d < best {
			best = d
		}
	}
	return best
}
