package roof

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rooftop/internal/roof/debug"
	"github.com/banshee-data/rooftop/internal/roof/mesh"
	"github.com/banshee-data/rooftop/internal/roof/model"
)

func square(t *testing.T, size float64) model.Footprint {
	t.Helper()
	fp, err := model.NewFootprint(orb.Polygon{{{0, 0}, {size, 0}, {size, size}, {0, size}}})
	require.NoError(t, err)
	return fp
}

// grid samples z at 32×32 cell centres over [0,10)² with ±1 cm jitter.
func grid(seed int64, z func(x, y float64) float64) *model.Points {
	const n = 32
	step := 10.0 / n
	rng := rand.New(rand.NewSource(seed))
	pts := make([]r3.Vec, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x, y := (float64(i)+0.5)*step, (float64(j)+0.5)*step
			pts = append(pts, r3.Vec{X: x, Y: y, Z: z(x, y) + (rng.Float64()-0.5)*0.02})
		}
	}
	return model.NewPoints(pts)
}

// gridIn is grid restricted to the footprint.
func gridIn(seed int64, fp model.Footprint, z func(x, y float64) float64) *model.Points {
	all := grid(seed, z)
	kept := make([]r3.Vec, 0, len(all.Positions))
	for _, v := range all.Positions {
		if fp.Contains(orb.Point{v.X, v.Y}) {
			kept = append(kept, v)
		}
	}
	return model.NewPoints(kept)
}

// sideExtent returns the range of ux·x + uy·y - c over the vertices of p.
func sideExtent(p orb.Polygon, ux, uy, c float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, ring := range p {
		for _, q := range ring {
			d := q[0]*ux + q[1]*uy - c
			lo, hi = math.Min(lo, d), math.Max(hi, d)
		}
	}
	return lo, hi
}

// assertSplitAlong checks that every face lies on one side of the line
// ux·x + uy·y = c and carries the plane sloping down away from it.
func assertSplitAlong(t *testing.T, res *Result, ux, uy, c, tol float64) {
	t.Helper()
	sides := map[bool]int{}
	for _, f := range res.Faces {
		lo, hi := sideExtent(f.Polygon, ux, uy, c)
		positive := lo+hi > 0
		sides[positive]++
		if positive {
			assert.GreaterOrEqual(t, lo, -tol, "face %d crosses the ridge", f.FaceID)
		} else {
			assert.LessOrEqual(t, hi, tol, "face %d crosses the ridge", f.FaceID)
		}
		require.True(t, f.PlaneID >= 1 && f.PlaneID <= len(res.Planes))
		pl := res.Planes[f.PlaneID-1]
		along := pl.Normal.X*ux + pl.Normal.Y*uy
		if positive {
			assert.Positive(t, along, "face %d labelled with the plane of the other side", f.FaceID)
		} else {
			assert.Negative(t, along, "face %d labelled with the plane of the other side", f.FaceID)
		}
	}
	assert.Equal(t, 1, sides[true])
	assert.Equal(t, 1, sides[false])
}

func TestReconstruct_FlatRoof(t *testing.T) {
	in := Input{
		Roof:      grid(1, func(_, _ float64) float64 { return 5 }),
		Footprint: square(t, 10),
	}
	res, err := Reconstruct(context.Background(), in, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, model.RoofFlat, res.RoofType)
	require.Len(t, res.Planes, 1)
	require.Len(t, res.Faces, 1)
	face := res.Faces[0]
	assert.Equal(t, 1, face.PlaneID)
	assert.InDelta(t, 100, face.Area, 1e-6)
	assert.Less(t, face.RMS, 0.02)
	assert.InDelta(t, 0, face.SlopeDeg, 1)
	assert.False(t, res.Fallback)

	require.NotNil(t, res.Mesh)
	assert.InDelta(t, 100, res.Mesh.Area(), 1e-3)
	for _, v := range res.Mesh.Vertices {
		assert.InDelta(t, 5, v.Z, 0.05)
	}
	for _, stage := range []string{"planes", "lines", "regularise", "arrangement", "mesh"} {
		assert.Contains(t, res.Timings, stage)
	}
}

func TestReconstruct_GableRoof(t *testing.T) {
	in := Input{
		Roof:      grid(2, func(x, _ float64) float64 { return 7.5 - 0.5*math.Abs(x-5) }),
		Footprint: square(t, 10),
	}
	res, err := Reconstruct(context.Background(), in, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, model.RoofSlanted, res.RoofType)
	require.Len(t, res.Planes, 2)
	require.Len(t, res.Faces, 2)
	assert.NotEqual(t, res.Faces[0].PlaneID, res.Faces[1].PlaneID)

	total := 0.0
	for _, f := range res.Faces {
		total += f.Area
		assert.InDelta(t, 50, f.Area, 2, "each slope covers half the footprint")
		assert.InDelta(t, math.Atan(0.5)*180/math.Pi, f.SlopeDeg, 2)
	}
	assert.InDelta(t, 100, total, 1e-6)
	// ridge at x = 5; the side x > 5 falls towards +x
	assertSplitAlong(t, res, 1, 0, 5, 0.3)
}

func TestReconstruct_LShapedDiagonalRidge(t *testing.T) {
	fp, err := model.NewFootprint(orb.Polygon{{{0, 0}, {10, 0}, {10, 4}, {4, 4}, {4, 10}, {0, 10}}})
	require.NoError(t, err)
	// two wings meeting along x = y, which runs from the outer corner to
	// the reflex corner and cuts the L into congruent halves
	in := Input{
		Roof:      gridIn(5, fp, func(x, y float64) float64 { return 7.5 - 0.5*math.Abs(x-y) }),
		Footprint: fp,
	}
	res, err := Reconstruct(context.Background(), in, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, model.RoofSlanted, res.RoofType)
	require.Len(t, res.Planes, 2)
	require.Len(t, res.Faces, 2)

	total := 0.0
	for _, f := range res.Faces {
		total += f.Area
		assert.InDelta(t, 32, f.Area, 2)
	}
	assert.InDelta(t, 64, total, 1e-6)
	// x - y > 0 is the bottom wing, falling towards +x and -y
	assertSplitAlong(t, res, math.Sqrt2/2, -math.Sqrt2/2, 0, 0.3)
}

func TestReconstruct_RecorderAndLogger(t *testing.T) {
	var diag bytes.Buffer
	log := model.NewLogger("roof ", model.LogWriters{Diag: &diag})
	rec := debug.NewRecorder()
	rec.SetEnabled(true)

	in := Input{
		Roof:      grid(3, func(_, _ float64) float64 { return 4 }),
		Footprint: square(t, 10),
	}
	res, err := Reconstruct(context.Background(), in, DefaultConfig(), WithLogger(log), WithRecorder(rec))
	require.NoError(t, err)

	run := rec.Emit()
	require.NotNil(t, run)
	assert.Equal(t, res.RunID.String(), run.RunID)
	assert.Len(t, run.Points, in.Roof.Len())
	assert.NotEmpty(t, run.FacesAt(debug.StageCleaned))
	assert.Len(t, run.Quality, len(res.Faces))
	assert.Contains(t, diag.String(), res.RunID.String())
}

func TestReconstruct_Errors(t *testing.T) {
	fp := square(t, 10)
	few := model.NewPoints([]r3.Vec{{X: 1, Y: 1, Z: 3}, {X: 2, Y: 2, Z: 3}, {X: 3, Y: 1, Z: 3}})

	t.Run("no points", func(t *testing.T) {
		res, err := Reconstruct(context.Background(), Input{Footprint: fp}, DefaultConfig())
		require.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrInsufficientPoints))
		require.NotNil(t, res)
		assert.Equal(t, model.RoofNoPoints, res.RoofType)
	})

	t.Run("too few points", func(t *testing.T) {
		res, err := Reconstruct(context.Background(), Input{Roof: few, Footprint: fp}, DefaultConfig())
		assert.ErrorIs(t, err, model.ErrInsufficientPoints)
		require.NotNil(t, res)
		assert.Equal(t, model.RoofNoPlanes, res.RoofType)
	})

	t.Run("degenerate footprint", func(t *testing.T) {
		bad := model.Footprint{Polygon: orb.Polygon{{{0, 0}, {1, 1}, {2, 2}}}}
		_, err := Reconstruct(context.Background(), Input{Roof: few, Footprint: bad}, DefaultConfig())
		assert.ErrorIs(t, err, model.ErrDegenerateGeometry)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Planes.K = 1
		_, err := Reconstruct(context.Background(), Input{Roof: few, Footprint: fp}, cfg)
		require.Error(t, err)
		assert.Nil(t, model.KindOf(err))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		in := Input{Roof: grid(4, func(_, _ float64) float64 { return 5 }), Footprint: fp}
		_, err := Reconstruct(ctx, in, DefaultConfig())
		assert.ErrorIs(t, err, model.ErrNonConvergence)
	})
}

func TestReconstruct_FlatFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mesh.Fallback = mesh.FallbackFlat
	few := model.NewPoints([]r3.Vec{{X: 1, Y: 1, Z: 3}, {X: 2, Y: 2, Z: 4}, {X: 3, Y: 1, Z: 5}})

	res, err := Reconstruct(context.Background(), Input{Roof: few, Footprint: square(t, 10)}, cfg)
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	require.Len(t, res.Faces, 1)
	assert.InDelta(t, 100, res.Faces[0].Area, 1e-9)
	for _, v := range res.Mesh.Vertices {
		assert.InDelta(t, 4, v.Z, 1e-9)
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Alpha.Alpha = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Timeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Mesh.Fallback = "extrude"
	assert.Error(t, cfg.Validate())
}
