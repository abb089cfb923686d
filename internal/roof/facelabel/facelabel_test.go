package facelabel

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rooftop/internal/roof/arrangement"
	"github.com/banshee-data/rooftop/internal/roof/model"
)

// grid returns points on a 0.5 m lattice over [x0,x1]x[0,10] and their
// labels.
func grid(x0, x1 float64, label int) ([]r3.Vec, []int) {
	var pts []r3.Vec
	var labels []int
	for x := x0 + 0.25; x < x1; x += 0.5 {
		for y := 0.25; y < 10; y += 0.5 {
			pts = append(pts, r3.Vec{X: x, Y: y, Z: 5})
			labels = append(labels, label)
		}
	}
	return pts, labels
}

func setup(t *testing.T, roof []r3.Vec, labels []int, ground []r3.Vec) (*arrangement.Arrangement, *Accumulator) {
	t.Helper()
	fp, err := model.NewFootprint(orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}})
	require.NoError(t, err)
	arr, err := arrangement.New(fp, arrangement.DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, arr.InsertFootprint())

	var g model.PointCloud
	if ground != nil {
		g = model.NewPoints(ground)
	}
	acc := NewAccumulator(model.NewPoints(roof), labels, g)
	acc.Attach(arr)
	return arr, acc
}

func cut(x float64, plane int) model.Segment {
	return model.Segment{
		Start:    orb.Point{x, -1},
		End:      orb.Point{x, 11},
		PlaneIDs: []int{plane},
		Kind:     model.KindIntersection,
	}
}

func planeSet(sizes map[int]int) PlaneLookup {
	return func(id int) *model.Plane {
		n, ok := sizes[id]
		if !ok {
			return nil
		}
		return &model.Plane{ID: id, Inliers: make([]int, n)}
	}
}

func TestAccumulator_FollowsSplit(t *testing.T) {
	left, ll := grid(0, 5, 1)
	right, rl := grid(5, 10, 2)
	arr, acc := setup(t, append(left, right...), append(ll, rl...), nil)
	require.Equal(t, 400, acc.Total())

	arr.Insert(cut(5, 1))

	l := arr.FaceAt(orb.Point{2, 5})
	r := arr.FaceAt(orb.Point{8, 5})
	assert.Equal(t, 400, acc.Total())
	assert.Equal(t, map[int]int{1: 200}, acc.Counts(l))
	assert.Equal(t, map[int]int{2: 200}, acc.Counts(r))
	assert.Len(t, acc.Roof(l), 200)
}

func TestLabel_MajorityAndMerge(t *testing.T) {
	left, ll := grid(0, 5, 1)
	right, rl := grid(5, 10, 1)
	// a handful of stray plane-2 points on the left
	for i := 0; i < 10; i++ {
		ll[i] = 2
	}
	arr, acc := setup(t, append(left, right...), append(ll, rl...), nil)
	arr.Insert(cut(5, 1))

	st := Label(arr, acc, planeSet(map[int]int{1: 390, 2: 10}), Config{}, nil)
	assert.Equal(t, 2, st.Voted)
	for _, f := range arr.InteriorFaces() {
		assert.Equal(t, 1, f.Label)
	}

	require.NoError(t, arr.Cleanup(context.Background()))
	faces := arr.InteriorFaces()
	require.Len(t, faces, 1)
	assert.Equal(t, 400, acc.Len(faces[0].ID))
}

func TestLabel_FillsEmptyFacesBreadthFirst(t *testing.T) {
	left, ll := grid(0, 3, 7)
	arr, acc := setup(t, left, ll, nil)
	arr.Insert(cut(3, 7))
	arr.Insert(cut(6, 7))

	st := Label(arr, acc, planeSet(map[int]int{7: len(left)}), Config{}, nil)
	assert.Equal(t, 1, st.Voted)
	assert.Equal(t, 2, st.Filled)
	assert.Zero(t, st.Unlabelled)
	for _, f := range arr.InteriorFaces() {
		assert.Equal(t, 7, f.Label)
	}
}

func TestLabel_NoPointsAnywhere(t *testing.T) {
	arr, acc := setup(t, nil, nil, nil)
	st := Label(arr, acc, nil, Config{}, nil)
	assert.Equal(t, 1, st.Unlabelled)
	assert.Equal(t, model.Unassigned, arr.InteriorFaces()[0].Label)
}

func TestLabel_ClipGround(t *testing.T) {
	left, ll := grid(0, 5, 1)
	ground, _ := grid(5, 10, 0)
	arr, acc := setup(t, left, ll, ground)
	arr.Insert(cut(5, 1))

	st := Label(arr, acc, nil, Config{ClipGround: true}, nil)
	assert.Equal(t, 1, st.Ground)
	assert.Equal(t, Ground, arr.Face(arr.FaceAt(orb.Point{8, 5})).Label)
	assert.Equal(t, 1, arr.Face(arr.FaceAt(orb.Point{2, 5})).Label)

	st = Label(arr, acc, nil, Config{}, nil)
	assert.Zero(t, st.Ground)
	assert.Equal(t, 1, arr.Face(arr.FaceAt(orb.Point{8, 5})).Label, "filled from the roof side")
}

func TestVote_TieBreak(t *testing.T) {
	counts := map[int]int{1: 10, 2: 10, model.Unassigned: 50, Ground: 80}

	assert.Equal(t, 2, vote(counts, planeSet(map[int]int{1: 100, 2: 300})))
	assert.Equal(t, 1, vote(counts, planeSet(map[int]int{1: 100, 2: 100})))
	assert.Equal(t, 1, vote(counts, nil))
	assert.Equal(t, model.Unassigned, vote(map[int]int{Ground: 3}, nil))
}
