package model

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// PointCloud is random-indexed, read-only access to 3D points and their
// optional normal estimates.
type PointCloud interface {
	Len() int
	At(i int) r3.Vec
	// Normal returns the stored normal of point i, or false when the cloud
	// carries none for it.
	Normal(i int) (r3.Vec, bool)
}

// Points is a slice-backed PointCloud. Normals may be nil or shorter than
// Positions; missing or NaN entries report no normal.
type Points struct {
	Positions []r3.Vec
	Normals   []r3.Vec
}

var _ PointCloud = (*Points)(nil)

// NewPoints wraps positions without normals.
func NewPoints(positions []r3.Vec) *Points {
	return &Points{Positions: positions}
}

func (p *Points) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Positions)
}

func (p *Points) At(i int) r3.Vec { return p.Positions[i] }

func (p *Points) Normal(i int) (r3.Vec, bool) {
	if i >= len(p.Normals) {
		return r3.Vec{}, false
	}
	n := p.Normals[i]
	if math.IsNaN(n.X) || math.IsNaN(n.Y) || math.IsNaN(n.Z) || r3.Norm(n) == 0 {
		return r3.Vec{}, false
	}
	return n, true
}

// Subset is a view of a PointCloud restricted to the given indices.
type Subset struct {
	Cloud   PointCloud
	Indices []int
}

var _ PointCloud = Subset{}

func (s Subset) Len() int {
	return len(s.Indices)
}

func (s Subset) At(i int) r3.Vec {
	return s.Cloud.At(s.Indices[i])
}

func (s Subset) Normal(i int) (r3.Vec, bool) {
	return s.Cloud.Normal(s.Indices[i])
}
