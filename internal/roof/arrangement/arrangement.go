package arrangement

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/banshee-data/rooftop/internal/roof/geom"
	"github.com/banshee-data/rooftop/internal/roof/model"
)

type (
	VertexID int
	EdgeID   int
	FaceID   int
)

// Unbounded is the face outside every cycle.
const Unbounded FaceID = 0

// Config holds the arrangement parameters.
type Config struct {
	// VertexTol reuses an existing vertex or edge when inserting (m).
	VertexTol float64
	// SnapTol merges vertices closer than this during cleanup (m).
	SnapTol float64
	// SliverArea and SliverCompactness flag faces to dissolve. Compactness
	// is 4πA/P².
	SliverArea        float64
	SliverCompactness float64
	// CollinearTol is the largest distance of a removable degree-2 vertex
	// from the line through its neighbours (m).
	CollinearTol float64
	// MaxComplexity caps the number of inserted segments.
	MaxComplexity int
	// MaxCleanupRounds bounds the cleanup fixpoint iteration.
	MaxCleanupRounds int
}

// DefaultConfig returns the arrangement defaults.
func DefaultConfig() Config {
	return Config{
		VertexTol:         1e-4,
		SnapTol:           0.005,
		SliverArea:        0.1,
		SliverCompactness: 0.02,
		CollinearTol:      1e-3,
		MaxComplexity:     400,
		MaxCleanupRounds:  16,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.VertexTol <= 0 || c.SnapTol <= 0 {
		return fmt.Errorf("vertex and snap tolerances must be positive, got %g and %g", c.VertexTol, c.SnapTol)
	}
	if c.MaxComplexity < 1 {
		return fmt.Errorf("max_complexity must be positive, got %d", c.MaxComplexity)
	}
	if c.MaxCleanupRounds < 1 {
		return fmt.Errorf("max_cleanup_rounds must be positive, got %d", c.MaxCleanupRounds)
	}
	return nil
}

// Vertex is a point of the subdivision. Fixed vertices come from the
// footprint and win when snapped against free vertices.
type Vertex struct {
	ID    VertexID
	P     orb.Point
	Fixed bool
	alive bool
}

// Edge is an undirected edge. Constraint edges lie on the footprint and
// are never dissolved.
type Edge struct {
	ID         EdgeID
	A, B       VertexID
	Constraint bool
	PlaneIDs   []int
	alive      bool
}

// Face is a bounded face: a counter-clockwise outer ring with clockwise
// holes. Rings are open.
type Face struct {
	ID    FaceID
	Outer orb.Ring
	Holes []orb.Ring
	// Edges lists the boundary edges in ascending order.
	Edges       []EdgeID
	Area        float64
	Perimeter   float64
	Sample      orb.Point
	InFootprint bool
	// Excluded marks interior faces cut off from the dominant region.
	Excluded bool
	Label    int
	bound    orb.Bound
}

// Interior reports whether the face is part of the reconstructed roof.
func (f *Face) Interior() bool { return f != nil && f.InFootprint && !f.Excluded }

// Locate classifies p against the face polygon.
func (f *Face) Locate(p orb.Point) geom.Location {
	if !f.bound.Pad(1e-9).Contains(p) {
		return geom.Outside
	}
	return geom.LocateInPolygon(p, f.Outer, f.Holes)
}

// Bound returns the bounding box of the outer ring.
func (f *Face) Bound() orb.Bound { return f.bound }

// Compactness returns 4πA/P², 1 for a disc.
func (f *Face) Compactness() float64 {
	if f.Perimeter == 0 {
		return 0
	}
	return 4 * math.Pi * f.Area / (f.Perimeter * f.Perimeter)
}

// Arrangement is a planar subdivision of one building.
type Arrangement struct {
	cfg       Config
	log       *model.Logger
	footprint model.Footprint

	vertices []Vertex
	edges    []Edge
	faces    map[FaceID]*Face
	// edgeFaces holds the faces left of A->B and left of B->A.
	edgeFaces map[EdgeID][2]FaceID
	nextFace  FaceID
	inserted  int

	listeners []Listener
	pending   []Event
}

// New creates an empty arrangement for the footprint.
func New(fp model.Footprint, cfg Config, log *model.Logger) (*Arrangement, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Arrangement{
		cfg:       cfg,
		log:       log,
		footprint: fp,
		faces:     map[FaceID]*Face{},
		edgeFaces: map[EdgeID][2]FaceID{},
		nextFace:  1,
	}, nil
}

// Footprint returns the footprint the arrangement was built for.
func (a *Arrangement) Footprint() model.Footprint { return a.footprint }

// Face returns a bounded face, or nil.
func (a *Arrangement) Face(id FaceID) *Face { return a.faces[id] }

// Faces returns the bounded faces by ascending id.
func (a *Arrangement) Faces() []*Face {
	out := make([]*Face, 0, len(a.faces))
	for _, f := range a.faces {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InteriorFaces returns the faces that make up the roof.
func (a *Arrangement) InteriorFaces() []*Face {
	var out []*Face
	for _, f := range a.Faces() {
		if f.Interior() {
			out = append(out, f)
		}
	}
	return out
}

// FaceAt returns the bounded face containing p, or Unbounded.
func (a *Arrangement) FaceAt(p orb.Point) FaceID {
	for _, f := range a.Faces() {
		if f.Locate(p) != geom.Outside {
			return f.ID
		}
	}
	return Unbounded
}

// SetLabel assigns a plane id to a face.
func (a *Arrangement) SetLabel(id FaceID, label int) {
	if f := a.faces[id]; f != nil {
		f.Label = label
	}
}

// Vertex returns the vertex with the given id.
func (a *Arrangement) Vertex(id VertexID) Vertex { return a.vertices[id] }

// Edges returns the live edges by ascending id.
func (a *Arrangement) Edges() []Edge {
	var out []Edge
	for _, e := range a.edges {
		if e.alive {
			out = append(out, e)
		}
	}
	return out
}

// EdgeFaces returns the faces on either side of an edge.
func (a *Arrangement) EdgeFaces(id EdgeID) (left, right FaceID) {
	f := a.edgeFaces[id]
	return f[0], f[1]
}

// Neighbours returns, for every face sharing an edge with id, the total
// length of the shared boundary.
func (a *Arrangement) Neighbours(id FaceID) map[FaceID]float64 {
	out := map[FaceID]float64{}
	f := a.faces[id]
	if f == nil {
		return out
	}
	for _, eid := range f.Edges {
		l, r := a.EdgeFaces(eid)
		other := l
		if l == id {
			other = r
		}
		if other == id {
			continue
		}
		out[other] += a.edgeLength(eid)
	}
	return out
}

func (a *Arrangement) edgeLength(id EdgeID) float64 {
	e := a.edges[id]
	return geom.Dist(a.vertices[e.A].P, a.vertices[e.B].P)
}

func (a *Arrangement) degree(v VertexID) int {
	n := 0
	for _, e := range a.edges {
		if e.alive && (e.A == v || e.B == v) {
			n++
		}
	}
	return n
}
