package mesh

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rooftop/internal/roof/arrangement"
	"github.com/banshee-data/rooftop/internal/roof/facelabel"
	"github.com/banshee-data/rooftop/internal/roof/geom"
	"github.com/banshee-data/rooftop/internal/roof/model"
	"github.com/banshee-data/rooftop/internal/roof/planes"
)

func triArea(tris [][3]orb.Point) float64 {
	sum := 0.0
	for _, t := range tris {
		sum += geom.Cross(t[0], t[1], t[2]) / 2
	}
	return sum
}

func TestTriangulate(t *testing.T) {
	// tris is checked when non-zero; bridges may leave fewer than n-2
	// triangles.
	cases := []struct {
		name  string
		outer orb.Ring
		holes []orb.Ring
		area  float64
		tris  int
	}{
		{
			name:  "square",
			outer: orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
			area:  100,
			tris:  2,
		},
		{
			name:  "clockwise input",
			outer: orb.Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}},
			area:  100,
			tris:  2,
		},
		{
			name:  "L shape",
			outer: orb.Ring{{0, 0}, {10, 0}, {10, 4}, {4, 4}, {4, 10}, {0, 10}},
			area:  64,
			tris:  4,
		},
		{
			name:  "collinear vertex",
			outer: orb.Ring{{0, 0}, {5, 0}, {10, 0}, {10, 10}, {0, 10}},
			area:  100,
			tris:  3,
		},
		{
			name:  "square with hole",
			outer: orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
			holes: []orb.Ring{{{4, 4}, {4, 6}, {6, 6}, {6, 4}}},
			area:  96,
		},
		{
			name:  "two holes",
			outer: orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
			holes: []orb.Ring{
				{{1, 1}, {1, 3}, {3, 3}, {3, 1}},
				{{6, 6}, {6, 8}, {8, 8}, {8, 6}},
			},
			area: 92,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tris, err := Triangulate(tc.outer, tc.holes)
			require.NoError(t, err)
			if tc.tris > 0 {
				assert.Len(t, tris, tc.tris)
			}
			assert.InDelta(t, tc.area, triArea(tris), 1e-9)
			for _, tr := range tris {
				assert.Equal(t, 1, geom.Orient(tr[0], tr[1], tr[2]))
			}
		})
	}
}

func TestTriangulate_KeepsStraightRunVertices(t *testing.T) {
	// Both faces of a split square share the vertices (5,0) and (5,10);
	// the left face also carries (5,5) where a third face would meet it.
	outer := orb.Ring{{0, 0}, {5, 0}, {5, 5}, {5, 10}, {0, 10}, {0, 5}}
	tris, err := Triangulate(outer, nil)
	require.NoError(t, err)
	assert.Len(t, tris, 4)
	assert.InDelta(t, 50, triArea(tris), 1e-9)

	used := map[orb.Point]bool{}
	for _, tr := range tris {
		for _, p := range tr {
			used[p] = true
		}
	}
	for _, p := range outer {
		assert.True(t, used[p], "vertex %v missing from triangulation", p)
	}
}

func TestTriangulate_Degenerate(t *testing.T) {
	_, err := Triangulate(orb.Ring{{0, 0}, {1, 0}, {2, 0}}, nil)
	assert.Error(t, err)
	_, err = Triangulate(orb.Ring{{0, 0}, {1, 0}}, nil)
	assert.Error(t, err)
}

// slantedRoof builds a 10x10 arrangement under the plane z = 0.5x + 1 with
// points on a 0.5 m lattice.
func slantedRoof(t *testing.T) Input {
	t.Helper()
	fp, err := model.NewFootprint(orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}})
	require.NoError(t, err)
	arr, err := arrangement.New(fp, arrangement.DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, arr.InsertFootprint())

	var pts []r3.Vec
	var labels, inliers []int
	for x := 0.25; x < 10; x += 0.5 {
		for y := 0.25; y < 10; y += 0.5 {
			inliers = append(inliers, len(pts))
			pts = append(pts, r3.Vec{X: x, Y: y, Z: 0.5*x + 1})
			labels = append(labels, 1)
		}
	}
	s := math.Sqrt(1.25)
	pl := &model.Plane{
		ID:      1,
		Normal:  r3.Vec{X: -0.5 / s, Z: 1 / s},
		Offset:  -1 / s,
		Inliers: inliers,
	}
	zs := make([]float64, len(pts))
	for i, p := range pts {
		zs[i] = p.Z
	}
	pl.Elevation = planes.Elevations(zs)

	cloud := model.NewPoints(pts)
	acc := facelabel.NewAccumulator(cloud, labels, nil)
	acc.Attach(arr)
	res := &planes.Result{
		Planes:    []*model.Plane{pl},
		Labels:    labels,
		RoofType:  model.RoofSlanted,
		Elevation: pl.Elevation,
	}
	facelabel.Label(arr, acc, res.Plane, facelabel.Config{}, nil)
	return Input{Arrangement: arr, Points: acc, Roof: cloud, Planes: res}
}

func TestBuild_SlantedFace(t *testing.T) {
	in := slantedRoof(t)

	res, err := Build(in, DefaultConfig(), nil)
	require.NoError(t, err)
	require.Len(t, res.Attributes, 1)
	assert.False(t, res.Flat)

	m := res.Mesh
	assert.Len(t, m.Vertices, 4)
	assert.Len(t, m.Triangles, 2)
	assert.InDelta(t, 100, m.Area(), 1e-9)
	for _, v := range m.Vertices {
		assert.InDelta(t, 0.5*v.X+1, v.Z, 1e-9)
	}
	for _, tr := range m.Triangles {
		assert.Equal(t, 1, tr.PlaneID)
	}

	fa := res.Attributes[0]
	assert.Equal(t, 1, fa.PlaneID)
	assert.Equal(t, 400, fa.PointCount)
	assert.InDelta(t, 0, fa.RMS, 1e-9)
	assert.InDelta(t, math.Atan(0.5)*180/math.Pi, fa.SlopeDeg, 1e-9)
	assert.InDelta(t, 270, fa.AzimuthDeg, 1e-9)
	assert.InDelta(t, 100, fa.Area, 1e-9)
	assert.Equal(t, model.RoofSlanted, fa.RoofType)
	assert.InDelta(t, 1.125, fa.Elevation.Min, 1e-9)
}

func TestBuild_UnlabelledFacesSkippedUnlessRequested(t *testing.T) {
	in := slantedRoof(t)
	for _, f := range in.Arrangement.Faces() {
		in.Arrangement.SetLabel(f.ID, model.Unassigned)
	}

	res, err := Build(in, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Mesh.Triangles)

	cfg := DefaultConfig()
	cfg.OutputAllTriangles = true
	res, err = Build(in, cfg, nil)
	require.NoError(t, err)
	require.Len(t, res.Mesh.Triangles, 2)
	assert.Equal(t, model.Unassigned, res.Mesh.Triangles[0].PlaneID)
	for _, v := range res.Mesh.Vertices {
		assert.InDelta(t, in.Planes.Elevation.P50, v.Z, 1e-9)
	}
}

func TestFlat(t *testing.T) {
	fp, err := model.NewFootprint(orb.Polygon{{{0, 0}, {10, 0}, {10, 4}, {4, 4}, {4, 10}, {0, 10}, {0, 0}}})
	require.NoError(t, err)

	res, err := Flat(fp, 5, model.RoofFlat, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, res.Flat)
	assert.InDelta(t, 64, res.Mesh.Area(), 1e-9)
	for _, v := range res.Mesh.Vertices {
		assert.Equal(t, 5.0, v.Z)
	}
	require.Len(t, res.Attributes, 1)
	assert.Equal(t, model.RoofFlat, res.Attributes[0].RoofType)
}

func TestBuilder_DedupesVertices(t *testing.T) {
	b := newBuilder(4)
	i := b.vertex(r3.Vec{X: 1, Y: 2, Z: 3})
	j := b.vertex(r3.Vec{X: 1.00001, Y: 2, Z: 3})
	k := b.vertex(r3.Vec{X: 1.001, Y: 2, Z: 3})
	assert.Equal(t, i, j)
	assert.NotEqual(t, i, k)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	cfg := DefaultConfig()
	cfg.Fallback = "sideways"
	assert.Error(t, cfg.Validate())
}
