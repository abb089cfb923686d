package alphashape

import (
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rooftop/internal/roof/geom"
)

func lattice(nx, ny int, x0, y0, step float64) []orb.Point {
	var out []orb.Point
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			out = append(out, orb.Point{x0 + float64(i)*step, y0 + float64(j)*step})
		}
	}
	return out
}

func TestDelaunay_Lattice(t *testing.T) {
	pts := lattice(6, 5, 0, 0, 1)
	tr := Delaunay(pts)

	// Euler: a triangulated convex lattice of n points with h hull points
	// has 2n - h - 2 triangles.
	require.Len(t, tr.Triangles, 2*30-18-2)

	var area float64
	for _, tri := range tr.Triangles {
		a := geom.RingSignedArea(orb.Ring{pts[tri[0]], pts[tri[1]], pts[tri[2]]})
		assert.Greater(t, a, 0.0, "triangles must be counter-clockwise")
		area += a
	}
	assert.InDelta(t, 20.0, area, 1e-9)
}

func TestDelaunay_EmptyCircumcircles(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	pts := make([]orb.Point, 200)
	for i := range pts {
		pts[i] = orb.Point{rng.Float64() * 10, rng.Float64() * 10}
	}
	tr := Delaunay(pts)
	require.NotEmpty(t, tr.Triangles)
	for _, tri := range tr.Triangles {
		for i, p := range pts {
			if i == tri[0] || i == tri[1] || i == tri[2] {
				continue
			}
			require.LessOrEqual(t, geom.InCircle(pts[tri[0]], pts[tri[1]], pts[tri[2]], p), 0)
		}
	}
}

func TestDelaunay_Degenerate(t *testing.T) {
	assert.Empty(t, Delaunay([]orb.Point{{0, 0}, {1, 1}}).Triangles)
	assert.Empty(t, Delaunay([]orb.Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}}).Triangles)
	assert.Len(t, Delaunay([]orb.Point{{0, 0}, {1, 0}, {0, 1}, {0, 0}}).Triangles, 1)
}

func TestCompute_SquareOutline(t *testing.T) {
	pts := lattice(11, 11, 0, 0, 0.4)
	shape := Compute(pts, DefaultConfig())

	require.Len(t, shape.Components, 1)
	c := shape.Components[0]
	require.Len(t, c.Outer, 1)
	assert.Empty(t, c.Holes)
	assert.InDelta(t, 16.0, geom.RingSignedArea(c.Outer[0]), 1e-9)
	assert.InDelta(t, 16.0, c.Area, 1e-9)
}

func TestCompute_HoleAndOrientation(t *testing.T) {
	var pts []orb.Point
	for _, p := range lattice(21, 21, 0, 0, 0.4) {
		if p[0] > 3 && p[0] < 5 && p[1] > 3 && p[1] < 5 {
			continue
		}
		pts = append(pts, p)
	}
	shape := Compute(pts, DefaultConfig())
	require.Len(t, shape.Components, 1)
	c := shape.Components[0]
	require.Len(t, c.Outer, 1)
	require.Len(t, c.Holes, 1)
	assert.Greater(t, geom.RingSignedArea(c.Outer[0]), 0.0)
	assert.Less(t, geom.RingSignedArea(c.Holes[0]), 0.0)
	assert.True(t, geom.IsSimple(c.Holes[0]))
}

func TestCompute_OptimalAlphaJoinsComponents(t *testing.T) {
	left := lattice(5, 5, 0, 0, 0.4)
	right := lattice(5, 5, 3.2, 0, 0.4)
	pts := append(left, right...)

	cfg := DefaultConfig()
	cfg.OptimalAlpha = false
	assert.Len(t, Compute(pts, cfg).Components, 2)

	cfg.OptimalAlpha = true
	shape := Compute(pts, cfg)
	assert.Len(t, shape.Components, 1)
	assert.Greater(t, shape.Alpha, cfg.Alpha)
}

func TestBoundaryRings_PinchVertexGivesSimpleRings(t *testing.T) {
	// two triangles touching at (1,1)
	pts := []orb.Point{{0, 0}, {1, 1}, {0, 2}, {2, 0}, {2, 2}}
	rings := boundaryRings(pts, [][3]int{{0, 3, 1}, {1, 4, 2}})
	require.Len(t, rings, 2)
	for _, r := range rings {
		assert.Len(t, r, 3)
		assert.Greater(t, geom.RingSignedArea(r), 0.0)
	}
}
