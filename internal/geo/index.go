package geo

import (
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/roadquality/accident-severity-etl/internal/domain"
)

// rectPadding keeps degenerate bounding boxes (purely horizontal or
// vertical segments) valid for the R-tree, in projected meters.
const rectPadding = 0.1

// indexedSegment is a road segment projected to Web Mercator with its
// bounding box, stored in the R-tree.
type indexedSegment struct {
	seg    *domain.RoadSegment
	line   []XY
	bounds rtreego.Rect
}

func (s *indexedSegment) Bounds() rtreego.Rect { return s.bounds }

// Match is the result of a nearest-segment query.
type Match struct {
	Segment        *domain.RoadSegment
	DistanceMeters float64
}

// Index is an immutable R-tree over projected road segments. Queries are
// safe for concurrent use once built.
type Index struct {
	tree *rtreego.Rtree
	size int
}

// NewIndex projects the segments to Web Mercator and bulk-loads them into
// an R-tree. Segments without geometry are rejected.
func NewIndex(segments []domain.RoadSegment) (*Index, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("build segment index: no road segments")
	}

	spatials := make([]rtreego.Spatial, 0, len(segments))
	for i := range segments {
		seg := &segments[i]
		if len(seg.Points) == 0 {
			return nil, fmt.Errorf("build segment index: segment %s has no geometry", seg.ID)
		}

		line := ProjectPolyline(seg.Points)
		rect, err := boundingRect(line)
		if err != nil {
			return nil, fmt.Errorf("build segment index: segment %s: %w", seg.ID, err)
		}
		spatials = append(spatials, &indexedSegment{seg: seg, line: line, bounds: rect})
	}

	return &Index{
		tree: rtreego.NewTree(2, 25, 50, spatials...),
		size: len(spatials),
	}, nil
}

// Len returns the number of indexed segments.
func (ix *Index) Len() int { return ix.size }

// Nearest finds the road segment closest to the point, if any lies within
// maxDistanceMeters of it. The search window queries the R-tree for
// candidate bounding boxes and refines with exact point-to-polyline
// distance, so the returned match is the true nearest within the threshold.
func (ix *Index) Nearest(point domain.Geo, maxDistanceMeters float64) (Match, bool) {
	p := Project(point)
	scale := Scale(point.Lat)
	radius := maxDistanceMeters * scale

	window, err := rtreego.NewRect(
		rtreego.Point{p.X - radius, p.Y - radius},
		[]float64{2 * radius, 2 * radius},
	)
	if err != nil {
		return Match{}, false
	}

	best := Match{DistanceMeters: math.Inf(1)}
	for _, candidate := range ix.tree.SearchIntersect(window) {
		seg := candidate.(*indexedSegment)
		d := PointPolylineDistance(p, seg.line) / scale
		if d < best.DistanceMeters {
			best = Match{Segment: seg.seg, DistanceMeters: d}
		}
	}

	if best.Segment == nil || best.DistanceMeters > maxDistanceMeters {
		return Match{}, false
	}
	return best, true
}

// boundingRect computes the axis-aligned bounding box of a projected
// polyline, padded so zero-extent boxes stay valid.
func boundingRect(line []XY) (rtreego.Rect, error) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range line {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return rtreego.NewRect(
		rtreego.Point{minX - rectPadding, minY - rectPadding},
		[]float64{maxX - minX + 2*rectPadding, maxY - minY + 2*rectPadding},
	)
}
