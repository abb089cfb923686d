package debug

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rooftop/internal/roof/model"
)

func sampleRun(t *testing.T) *Run {
	t.Helper()
	r := NewRecorder()
	r.SetEnabled(true)
	r.BeginRun("run-1")
	r.RecordPoints(model.NewPoints([]r3.Vec{{X: 1, Y: 1, Z: 5}, {X: 2, Y: 1, Z: 5}, {X: 9, Y: 9, Z: 4}}), []int{1, 1, 0})
	r.RecordRings(1, []orb.Ring{{{0, 0}, {5, 0}, {5, 5}}})
	r.RecordSegments(StageRegularised, []model.Segment{{Start: orb.Point{5, -1}, End: orb.Point{5, 11}}})
	square := orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}
	r.RecordFaces(StageBuilt, []FaceRecord{{ID: 1, Label: 1, Interior: true, Polygon: square}})
	r.RecordFaces(StageCleaned, []FaceRecord{{ID: 1, Label: 1, Interior: true, Polygon: square}})
	r.RecordQuality(1, 1, 0.02)
	run := r.Emit()
	require.NotNil(t, run)
	return run
}

func TestRecorder_DisabledByDefault(t *testing.T) {
	r := NewRecorder()
	assert.False(t, r.IsEnabled())
	r.BeginRun("x")
	r.RecordQuality(1, 1, 0.1)
	assert.Nil(t, r.Emit())

	var nilRec *Recorder
	assert.False(t, nilRec.IsEnabled())
	nilRec.RecordSegments(StageBoundary, nil)
	assert.Nil(t, nilRec.Emit())
}

func TestRecorder_RecordWithoutBeginRun(t *testing.T) {
	r := NewRecorder()
	r.SetEnabled(true)
	r.RecordQuality(1, 1, 0.1)
	assert.Nil(t, r.Emit())
}

func TestRecorder_CollectsAndClears(t *testing.T) {
	run := sampleRun(t)
	assert.Equal(t, "run-1", run.RunID)
	assert.Len(t, run.Points, 3)
	assert.Equal(t, 0, run.Points[2].PlaneID)
	assert.Len(t, run.Rings, 1)
	assert.Len(t, run.SegmentsAt(StageRegularised), 1)
	assert.Nil(t, run.SegmentsAt(StageBoundary))
	assert.Len(t, run.finalFaces(), 1)
	assert.Len(t, run.Quality, 1)
}

func TestRecorder_Reset(t *testing.T) {
	r := NewRecorder()
	r.SetEnabled(true)
	r.BeginRun("x")
	r.Reset()
	assert.Nil(t, r.Emit())
}

func TestRenderPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "run.png")
	require.NoError(t, RenderPNG(sampleRun(t), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	assert.Error(t, RenderPNG(nil, path))
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(sampleRun(t), &buf))
	html := buf.String()
	assert.Contains(t, html, "Segmented points")
	assert.Contains(t, html, "Face RMS")
}
