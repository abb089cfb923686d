package mesh

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rooftop/internal/roof/arrangement"
	"github.com/banshee-data/rooftop/internal/roof/facelabel"
	"github.com/banshee-data/rooftop/internal/roof/model"
	"github.com/banshee-data/rooftop/internal/roof/planes"
)

// Fallback selects what replaces a face that cannot be triangulated.
type Fallback string

const (
	// FallbackOmit drops the face.
	FallbackOmit Fallback = "omit"
	// FallbackFlat replaces the whole roof by the footprint at the median
	// roof elevation.
	FallbackFlat Fallback = "flat"
)

// Config holds the triangulator parameters.
type Config struct {
	// DupeThresholdExp merges vertices equal to 10^-DupeThresholdExp m.
	DupeThresholdExp int
	// OutputAllTriangles keeps unlabelled footprint faces at the flat
	// elevation with PlaneID 0.
	OutputAllTriangles bool
	Fallback           Fallback
}

// DefaultConfig returns the triangulator defaults.
func DefaultConfig() Config {
	return Config{DupeThresholdExp: 4, Fallback: FallbackOmit}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.DupeThresholdExp < 0 || c.DupeThresholdExp > 12 {
		return fmt.Errorf("dupe_threshold_exp must be in [0, 12], got %d", c.DupeThresholdExp)
	}
	switch c.Fallback {
	case FallbackOmit, FallbackFlat, "":
	default:
		return fmt.Errorf("unknown fallback %q", c.Fallback)
	}
	return nil
}

// Triangle references three mesh vertices, counter-clockwise seen from
// above, and the face it came from.
type Triangle struct {
	V       [3]int
	FaceID  arrangement.FaceID
	PlaneID int
	RingID  int
}

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices  []r3.Vec
	Triangles []Triangle
}

// Area returns the total projected (2D) area of the triangles.
func (m *Mesh) Area() float64 {
	sum := 0.0
	for _, t := range m.Triangles {
		a, b, c := m.Vertices[t.V[0]], m.Vertices[t.V[1]], m.Vertices[t.V[2]]
		sum += ((b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)) / 2
	}
	return sum
}

// FaceAttributes are the per-face quality and shape measures.
type FaceAttributes struct {
	FaceID  arrangement.FaceID
	PlaneID int
	RingID  int
	// RMS is the root mean square distance of the face's plane points to
	// the plane.
	RMS        float64
	Elevation  model.Elevations
	RoofType   model.RoofType
	Area       float64
	SlopeDeg   float64
	AzimuthDeg float64
	PointCount int
	Polygon    orb.Polygon
}

// Result is the triangulator output.
type Result struct {
	Mesh       *Mesh
	Attributes []FaceAttributes
	// Failed lists faces that could not be triangulated.
	Failed []arrangement.FaceID
	// Flat is set when the flat fallback replaced the faces.
	Flat bool
}

// Input bundles what the triangulator reads.
type Input struct {
	Arrangement *arrangement.Arrangement
	Points      *facelabel.Accumulator
	Roof        model.PointCloud
	Planes      *planes.Result
}

type builder struct {
	mesh  *Mesh
	scale float64
	index map[[3]int64]int
}

func newBuilder(exp int) *builder {
	return &builder{
		mesh:  &Mesh{},
		scale: math.Pow(10, float64(exp)),
		index: map[[3]int64]int{},
	}
}

func (b *builder) vertex(v r3.Vec) int {
	key := [3]int64{
		int64(math.Round(v.X * b.scale)),
		int64(math.Round(v.Y * b.scale)),
		int64(math.Round(v.Z * b.scale)),
	}
	if i, ok := b.index[key]; ok {
		return i
	}
	i := len(b.mesh.Vertices)
	b.mesh.Vertices = append(b.mesh.Vertices, v)
	b.index[key] = i
	return i
}

func (b *builder) add(tris [][3]orb.Point, z func(orb.Point) float64, face arrangement.FaceID, plane, ring int) {
	for _, t := range tris {
		var tri Triangle
		for k, p := range t {
			tri.V[k] = b.vertex(r3.Vec{X: p[0], Y: p[1], Z: z(p)})
		}
		if tri.V[0] == tri.V[1] || tri.V[1] == tri.V[2] || tri.V[0] == tri.V[2] {
			continue
		}
		tri.FaceID, tri.PlaneID, tri.RingID = face, plane, ring
		b.mesh.Triangles = append(b.mesh.Triangles, tri)
	}
}

// Build triangulates every labelled interior face. A face that fails is
// reported in Result.Failed and handled per cfg.Fallback; the returned
// error is a model.ErrTriangulationFailure only when nothing could be
// produced.
func Build(in Input, cfg Config, log *model.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := newBuilder(cfg.DupeThresholdExp)
	res := &Result{Mesh: b.mesh}
	flatZ := in.Planes.Elevation.P50

	ring := 0
	for _, f := range in.Arrangement.InteriorFaces() {
		if f.Label == facelabel.Ground {
			continue
		}
		pl := in.Planes.Plane(f.Label)
		if pl == nil && !cfg.OutputAllTriangles {
			continue
		}
		tris, err := Triangulate(f.Outer, f.Holes)
		if err != nil {
			log.Opsf("mesh: face %d: %v", f.ID, err)
			res.Failed = append(res.Failed, f.ID)
			continue
		}
		z := func(orb.Point) float64 { return flatZ }
		planeID := model.Unassigned
		if pl != nil {
			planeID = pl.ID
			z = heightOn(pl, pl.Elevation.P50)
		}
		b.add(tris, z, f.ID, planeID, ring)
		res.Attributes = append(res.Attributes, attributes(in, f, pl, ring))
		ring++
	}

	if len(res.Failed) > 0 && cfg.Fallback == FallbackFlat {
		log.Opsf("mesh: %d faces failed, using flat footprint at %.2f m", len(res.Failed), flatZ)
		return Flat(in.Arrangement.Footprint(), flatZ, in.Planes.RoofType, cfg)
	}
	if len(res.Mesh.Triangles) == 0 && len(res.Failed) > 0 {
		return res, model.NewStageError("mesh", model.ErrTriangulationFailure, "all %d labelled faces failed", len(res.Failed))
	}
	log.Diagf("mesh: %d faces, %d vertices, %d triangles", len(res.Attributes), len(res.Mesh.Vertices), len(res.Mesh.Triangles))
	return res, nil
}

// heightOn evaluates the plane, falling back to z0 for vertical planes.
func heightOn(pl *model.Plane, z0 float64) func(orb.Point) float64 {
	return func(p orb.Point) float64 {
		if z, ok := pl.HeightAt(p); ok {
			return z
		}
		return z0
	}
}

func attributes(in Input, f *arrangement.Face, pl *model.Plane, ring int) FaceAttributes {
	fa := FaceAttributes{
		FaceID:   f.ID,
		RingID:   ring,
		RoofType: in.Planes.RoofType,
		Area:     f.Area,
		Polygon:  facePolygon(f),
	}
	if pl == nil {
		return fa
	}
	fa.PlaneID = pl.ID
	fa.SlopeDeg = pl.SlopeDeg()
	fa.AzimuthDeg = pl.AzimuthDeg()

	var zs []float64
	sq := 0.0
	for _, i := range in.Points.Roof(f.ID) {
		if in.Planes.Labels[i] != pl.ID {
			continue
		}
		v := in.Roof.At(i)
		d := pl.SignedDistance(v)
		sq += d * d
		zs = append(zs, v.Z)
	}
	fa.PointCount = len(zs)
	if len(zs) > 0 {
		fa.RMS = math.Sqrt(sq / float64(len(zs)))
		fa.Elevation = planes.Elevations(zs)
	}
	return fa
}

func facePolygon(f *arrangement.Face) orb.Polygon {
	p := orb.Polygon{append(orb.Ring(nil), f.Outer...)}
	for _, h := range f.Holes {
		p = append(p, append(orb.Ring(nil), h...))
	}
	return p
}

// Flat triangulates the footprint at height z as a single face.
func Flat(fp model.Footprint, z float64, roofType model.RoofType, cfg Config) (*Result, error) {
	tris, err := Triangulate(fp.Outer(), fp.Holes())
	if err != nil {
		return nil, model.NewStageError("mesh", model.ErrTriangulationFailure, "flat footprint: %v", err)
	}
	b := newBuilder(cfg.DupeThresholdExp)
	b.add(tris, func(orb.Point) float64 { return z }, arrangement.Unbounded, model.Unassigned, 0)
	return &Result{
		Mesh: b.mesh,
		Attributes: []FaceAttributes{{
			RoofType:  roofType,
			Area:      fp.Area(),
			Elevation: model.Elevations{Min: z, P50: z, P70: z, Max: z},
			Polygon:   fp.Polygon,
		}},
		Flat: true,
	}, nil
}
