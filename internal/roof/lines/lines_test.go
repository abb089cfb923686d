package lines

import (
	"context"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rooftop/internal/roof/geom"
	"github.com/banshee-data/rooftop/internal/roof/model"
	"github.com/banshee-data/rooftop/internal/roof/planes"
)

// squareRing walks the boundary of [0,size]² counter-clockwise with the
// given vertex spacing, starting at the origin.
func squareRing(size, step float64) orb.Ring {
	n := int(math.Round(size / step))
	var r orb.Ring
	for i := 0; i < n; i++ {
		r = append(r, orb.Point{float64(i) * step, 0})
	}
	for i := 0; i < n; i++ {
		r = append(r, orb.Point{size, float64(i) * step})
	}
	for i := 0; i < n; i++ {
		r = append(r, orb.Point{size - float64(i)*step, size})
	}
	for i := 0; i < n; i++ {
		r = append(r, orb.Point{0, size - float64(i)*step})
	}
	return r
}

func testPlane(id, inliers int) *model.Plane {
	return &model.Plane{ID: id, Normal: r3.Vec{Z: 1}, Offset: -5, Inliers: make([]int, inliers)}
}

func TestDetect_SquareGivesFourChainedSegments(t *testing.T) {
	segs, err := Detect(context.Background(), testPlane(3, 120), []orb.Ring{squareRing(4, 0.4)}, DefaultConfig(), nil)
	require.NoError(t, err)
	require.Len(t, segs, 4)

	corners := []orb.Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	nearCorner := func(p orb.Point) bool {
		for _, c := range corners {
			if geom.Dist(p, c) < 1e-9 {
				return true
			}
		}
		return false
	}
	for _, s := range segs {
		assert.True(t, nearCorner(s.Start), "start %v not on a corner", s.Start)
		assert.True(t, nearCorner(s.End), "end %v not on a corner", s.End)
		assert.Equal(t, 3, s.PlaneID())
		assert.Equal(t, 120, s.Priority)
		assert.Equal(t, model.KindBoundary, s.Kind)
		assert.InDelta(t, 0, s.Offset, 1e-9)
	}
}

func TestDetect_WithoutChainingKeepsExtension(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerformChaining = false
	segs, err := Detect(context.Background(), testPlane(1, 50), []orb.Ring{squareRing(4, 0.4)}, cfg, nil)
	require.NoError(t, err)
	require.Len(t, segs, 4)
	for _, s := range segs {
		assert.Greater(t, s.Length(), 3.2)
	}
}

func TestDetect_ShortRingsAreSkipped(t *testing.T) {
	segs, err := Detect(context.Background(), testPlane(1, 10), []orb.Ring{{{0, 0}, {1, 0}, {0, 1}}}, DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestRemoveOverlap(t *testing.T) {
	long := model.Segment{Start: orb.Point{0, 0}, End: orb.Point{10, 0}}
	inside := model.Segment{Start: orb.Point{2, 0.1}, End: orb.Point{5, 0.1}}
	straddle := model.Segment{Start: orb.Point{8, 0.05}, End: orb.Point{14, 0.05}}
	other := model.Segment{Start: orb.Point{0, 5}, End: orb.Point{10, 5}}

	out := removeOverlap([]model.Segment{inside, long, straddle, other}, DefaultConfig())
	require.Len(t, out, 3)

	var trimmed model.Segment
	for _, s := range out {
		if s.End[0] == 14 {
			trimmed = s
		}
	}
	assert.InDelta(t, 10, trimmed.Start[0], 1e-9, "overlapping end must be cut at the longer segment's end")
}

func TestLineFit_Directions(t *testing.T) {
	f, ok := fitPoints([]orb.Point{{0, 0}, {1, 1}, {2, 2}})
	require.True(t, ok)
	assert.InDelta(t, 1, math.Abs(f.dir[0]*math.Sqrt2/2+f.dir[1]*math.Sqrt2/2), 1e-12)
	assert.InDelta(t, 0, f.linearity, 1e-12)

	f, ok = fitPoints([]orb.Point{{0, 3}, {0, 1}, {0, 2}})
	require.True(t, ok)
	assert.InDelta(t, 1, math.Abs(f.dir[1]), 1e-12)

	_, ok = fitPoints([]orb.Point{{1, 1}, {1, 1}})
	assert.False(t, ok)
}

func TestIntersect_GableRidge(t *testing.T) {
	var pts []r3.Vec
	for i := 0; i < 26; i++ {
		for j := 0; j < 26; j++ {
			x, y := float64(i)*0.4, float64(j)*0.4
			pts = append(pts, r3.Vec{X: x, Y: y, Z: 8 - 0.6*math.Abs(x-5)})
		}
	}
	pc := model.NewPoints(pts)
	res, err := planes.Detect(context.Background(), pc, planes.DefaultConfig(), nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Planes), 2)

	segs := Intersect(pc, res, DefaultIntersectConfig(), nil)
	require.NotEmpty(t, segs)
	ridge := segs[0]
	assert.Equal(t, model.KindIntersection, ridge.Kind)
	assert.ElementsMatch(t, []int{1, 2}, ridge.PlaneIDs[:2])
	assert.InDelta(t, 5, ridge.Start[0], 0.2)
	assert.InDelta(t, 5, ridge.End[0], 0.2)
	assert.Greater(t, ridge.Length(), 9.0)
}

func TestIntersect_ParallelPlanesSkipped(t *testing.T) {
	a := &model.Plane{ID: 1, Normal: r3.Vec{Z: 1}, Offset: -5}
	b := &model.Plane{ID: 2, Normal: r3.Vec{Z: 1}, Offset: -6}
	_, ok := intersectPair(model.NewPoints(nil), a, b, DefaultIntersectConfig())
	assert.False(t, ok)
}
