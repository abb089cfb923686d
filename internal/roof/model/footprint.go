package model

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/banshee-data/rooftop/internal/roof/geom"
)

// minRingArea is the smallest |signed area| a footprint ring may have.
const minRingArea = 1e-9

// Footprint is the 2D outline of a building: one outer ring and zero or more
// holes. Rings are closed, the outer ring is counter-clockwise (positive
// signed area) and holes are clockwise.
type Footprint struct {
	Polygon orb.Polygon
}

// NewFootprint copies p, closes every ring, normalises ring orientation and
// validates the result.
func NewFootprint(p orb.Polygon) (Footprint, error) {
	out := make(orb.Polygon, 0, len(p))
	for i, r := range p {
		ring := geom.Close(dedupe(r))
		area := geom.RingSignedArea(ring)
		if (i == 0 && area < 0) || (i > 0 && area > 0) {
			ring.Reverse()
		}
		out = append(out, ring)
	}
	fp := Footprint{Polygon: out}
	if err := fp.Validate(); err != nil {
		return Footprint{}, err
	}
	return fp, nil
}

// dedupe drops consecutive repeated vertices.
func dedupe(r orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r))
	for _, p := range geom.Open(r) {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// Validate reports ErrDegenerateGeometry for empty, zero-area or
// self-intersecting rings, for holes outside the outer ring, and for rings
// wound the wrong way. NewFootprint fixes winding before it validates.
func (f Footprint) Validate() error {
	if len(f.Polygon) == 0 {
		return &StageError{Stage: "footprint", Kind: ErrDegenerateGeometry, Err: fmt.Errorf("no outer ring")}
	}
	for i, r := range f.Polygon {
		if len(geom.Open(r)) < 3 {
			return NewStageError("footprint", ErrDegenerateGeometry, "ring %d has fewer than 3 distinct vertices", i)
		}
		area := geom.RingSignedArea(r)
		if area > -minRingArea && area < minRingArea {
			return NewStageError("footprint", ErrDegenerateGeometry, "ring %d has zero area", i)
		}
		if i == 0 && area < 0 {
			return NewStageError("footprint", ErrDegenerateGeometry, "outer ring is clockwise")
		}
		if i > 0 && area > 0 {
			return NewStageError("footprint", ErrDegenerateGeometry, "hole %d is counter-clockwise", i)
		}
		if !geom.IsSimple(r) {
			return NewStageError("footprint", ErrDegenerateGeometry, "ring %d self-intersects", i)
		}
		if i > 0 {
			for _, p := range geom.Open(r) {
				if geom.LocateInRing(p, f.Outer()) == geom.Outside {
					return NewStageError("footprint", ErrDegenerateGeometry, "hole %d leaves the outer ring", i)
				}
			}
		}
	}
	return nil
}

// Outer returns the outer ring.
func (f Footprint) Outer() orb.Ring { return f.Polygon[0] }

// Holes returns the hole rings.
func (f Footprint) Holes() []orb.Ring {
	if len(f.Polygon) < 2 {
		return nil
	}
	return f.Polygon[1:]
}

// Area returns the footprint area with holes removed.
func (f Footprint) Area() float64 {
	a := math.Abs(geom.RingSignedArea(f.Outer()))
	for _, h := range f.Holes() {
		a -= math.Abs(geom.RingSignedArea(h))
	}
	return a
}

// Bound returns the 2D bounding box.
func (f Footprint) Bound() orb.Bound { return f.Polygon.Bound() }

// Locate classifies a point against the footprint, holes included.
func (f Footprint) Locate(p orb.Point) geom.Location {
	return geom.LocateInPolygon(p, f.Outer(), f.Holes())
}

// Contains reports whether p lies strictly inside the footprint.
func (f Footprint) Contains(p orb.Point) bool {
	return f.Locate(p) == geom.Inside
}

// Edges returns every ring edge as a footprint segment, outer ring first.
func (f Footprint) Edges() []Segment {
	var out []Segment
	for ri, r := range f.Polygon {
		open := geom.Open(r)
		for i := range open {
			out = append(out, Segment{
				Start: open[i],
				End:   open[(i+1)%len(open)],
				Kind:  KindFootprint,
				Ring:  ri,
			})
		}
	}
	return out
}
