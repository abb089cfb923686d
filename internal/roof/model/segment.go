package model

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/banshee-data/rooftop/internal/roof/geom"
)

// SegmentKind orders segments by trust. Higher kinds win conflicts.
type SegmentKind int

const (
	KindBoundary SegmentKind = iota
	KindIntersection
	KindFootprint
)

func (k SegmentKind) String() string {
	switch k {
	case KindIntersection:
		return "intersection"
	case KindFootprint:
		return "footprint"
	}
	return "boundary"
}

// Segment is a 2D line segment tagged with the planes it came from.
type Segment struct {
	Start, End orb.Point
	// PlaneIDs lists the source planes, the detecting plane first.
	PlaneIDs []int
	Priority int
	// Offset is the fit residual of the segment's support points.
	Offset float64
	Kind   SegmentKind
	// Ring is the footprint ring index for KindFootprint segments.
	Ring int
}

// PlaneID returns the primary source plane, or Unassigned.
func (s Segment) PlaneID() int {
	if len(s.PlaneIDs) == 0 {
		return Unassigned
	}
	return s.PlaneIDs[0]
}

// Length returns the segment length.
func (s Segment) Length() float64 { return geom.Dist(s.Start, s.End) }

// Midpoint returns the segment midpoint.
func (s Segment) Midpoint() orb.Point { return geom.Lerp(s.Start, s.End, 0.5) }

// Direction returns the unit direction from Start to End.
func (s Segment) Direction() orb.Point {
	l := s.Length()
	if l == 0 {
		return orb.Point{1, 0}
	}
	return orb.Point{(s.End[0] - s.Start[0]) / l, (s.End[1] - s.Start[1]) / l}
}

// Angle returns the undirected orientation of the segment in [0, π).
func (s Segment) Angle() float64 {
	a := math.Atan2(s.End[1]-s.Start[1], s.End[0]-s.Start[0])
	for a < 0 {
		a += math.Pi
	}
	for a >= math.Pi {
		a -= math.Pi
	}
	return a
}

// MergePlaneIDs returns the sorted union of plane id lists with the primary
// id of first kept at the front.
func MergePlaneIDs(first []int, rest ...[]int) []int {
	seen := map[int]bool{}
	var out []int
	for _, id := range first {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	var extra []int
	for _, ids := range rest {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				extra = append(extra, id)
			}
		}
	}
	sort.Ints(extra)
	return append(out, extra...)
}
