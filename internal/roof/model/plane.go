package model

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r3"
)

// PlaneClass is the orientation class of a plane.
type PlaneClass int

const (
	Slanted PlaneClass = iota
	Horizontal
	Wall
)

func (c PlaneClass) String() string {
	switch c {
	case Horizontal:
		return "horizontal"
	case Wall:
		return "wall"
	}
	return "slanted"
}

// RegularisationFlags records which constraints a plane was snapped under.
type RegularisationFlags uint8

const (
	FlagAxisSymmetry RegularisationFlags = 1 << iota
	FlagParallel
	FlagOrthogonal
	FlagCoplanar
)

// Has reports whether all bits of f are set.
func (r RegularisationFlags) Has(f RegularisationFlags) bool { return r&f == f }

// Elevations summarises the z values of a point set.
type Elevations struct {
	Min float64
	P50 float64
	P70 float64
	Max float64
}

// Unassigned is the plane id of points that belong to no plane.
const Unassigned = 0

// Plane is a detected roof plane n·p + d = 0 with a unit normal whose z
// component is non-negative. Inlier sets of different planes are disjoint.
type Plane struct {
	ID          int
	Normal      r3.Vec
	Offset      float64
	Inliers     []int
	Elevation   Elevations
	Class       PlaneClass
	Regularised RegularisationFlags
	// RMS is the root mean square distance of the inliers to the plane.
	RMS float64
}

// Priority ranks planes for conflict resolution; more inliers win.
func (p *Plane) Priority() int { return len(p.Inliers) }

// SignedDistance returns n·v + d.
func (p *Plane) SignedDistance(v r3.Vec) float64 {
	return r3.Dot(p.Normal, v) + p.Offset
}

// HeightAt returns the z of the plane above (x, y). ok is false for planes
// that are too close to vertical.
func (p *Plane) HeightAt(pt orb.Point) (z float64, ok bool) {
	if math.Abs(p.Normal.Z) < 1e-9 {
		return 0, false
	}
	return -(p.Normal.X*pt[0] + p.Normal.Y*pt[1] + p.Offset) / p.Normal.Z, true
}

// SlopeDeg returns the angle between the plane and the horizontal.
func (p *Plane) SlopeDeg() float64 {
	return math.Acos(math.Min(1, math.Abs(p.Normal.Z))) * 180 / math.Pi
}

// AzimuthDeg returns the compass direction the plane faces, 0 = +y (north),
// clockwise, in [0, 360). Horizontal planes report 0.
func (p *Plane) AzimuthDeg() float64 {
	if math.Hypot(p.Normal.X, p.Normal.Y) < 1e-9 {
		return 0
	}
	a := math.Atan2(p.Normal.X, p.Normal.Y) * 180 / math.Pi
	if a < 0 {
		a += 360
	}
	return a
}

// RoofType classifies a building from its detected planes.
type RoofType string

const (
	RoofNoPoints           RoofType = "no points"
	RoofNoPlanes           RoofType = "no planes"
	RoofFlat               RoofType = "flat"
	RoofMultipleHorizontal RoofType = "multiple horizontal"
	RoofSlanted            RoofType = "slanted"
)
