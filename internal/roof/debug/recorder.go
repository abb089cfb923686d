// Package debug captures per-stage geometry of a reconstruction for
// offline inspection. The Recorder records segmented points, alpha rings,
// segments and arrangement faces; RenderPNG and RenderHTML turn a recorded
// run into a plot or an interactive report.
package debug

import (
	"github.com/paulmach/orb"

	"github.com/banshee-data/rooftop/internal/roof/model"
)

// Stage names used by the reconstruction.
const (
	StageBoundary     = "boundary"
	StageIntersection = "intersection"
	StageRegularised  = "regularised"
	StageBuilt        = "built"
	StageCleaned      = "cleaned"
)

// Recorder accumulates debug artefacts for a single reconstruction.
//
// Call BeginRun, then the Record* methods while the pipeline runs, then
// Emit to take the run. A disabled recorder ignores every call.
type Recorder struct {
	enabled bool
	current *Run
}

// Run holds the artefacts of one reconstruction.
type Run struct {
	RunID    string
	Points   []Point
	Rings    []PlaneRing
	Segments []StageSegments
	Faces    []StageFaces
	Quality  []FaceQuality
}

// Point is a roof point with its plane label.
type Point struct {
	X, Y, Z float64
	PlaneID int
}

// PlaneRing is one alpha-shape ring of a plane.
type PlaneRing struct {
	PlaneID int
	Ring    orb.Ring
}

// StageSegments are the segments produced by one stage.
type StageSegments struct {
	Stage    string
	Segments []model.Segment
}

// FaceRecord is one arrangement face.
type FaceRecord struct {
	ID       int
	Label    int
	Interior bool
	Polygon  orb.Polygon
}

// StageFaces are the arrangement faces at one point of the pipeline.
type StageFaces struct {
	Stage string
	Faces []FaceRecord
}

// FaceQuality is the fit quality of one output face.
type FaceQuality struct {
	FaceID  int
	PlaneID int
	RMS     float64
}

// NewRecorder creates a recorder that is initially disabled.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// SetEnabled turns recording on or off.
func (r *Recorder) SetEnabled(enabled bool) {
	r.enabled = enabled
}

// IsEnabled reports whether the recorder is recording.
func (r *Recorder) IsEnabled() bool {
	return r != nil && r.enabled
}

// BeginRun starts a new run.
func (r *Recorder) BeginRun(runID string) {
	if !r.IsEnabled() {
		return
	}
	r.current = &Run{RunID: runID}
}

func (r *Recorder) active() bool {
	return r.IsEnabled() && r.current != nil
}

// RecordPoints captures the roof points with their plane labels.
func (r *Recorder) RecordPoints(pc model.PointCloud, labels []int) {
	if !r.active() {
		return
	}
	r.current.Points = make([]Point, 0, pc.Len())
	for i := 0; i < pc.Len(); i++ {
		v := pc.At(i)
		p := Point{X: v.X, Y: v.Y, Z: v.Z}
		if i < len(labels) {
			p.PlaneID = labels[i]
		}
		r.current.Points = append(r.current.Points, p)
	}
}

// RecordRings captures the alpha-shape rings of a plane.
func (r *Recorder) RecordRings(planeID int, rings []orb.Ring) {
	if !r.active() {
		return
	}
	for _, ring := range rings {
		r.current.Rings = append(r.current.Rings, PlaneRing{PlaneID: planeID, Ring: append(orb.Ring(nil), ring...)})
	}
}

// RecordSegments captures the segments of a stage.
func (r *Recorder) RecordSegments(stage string, segs []model.Segment) {
	if !r.active() {
		return
	}
	r.current.Segments = append(r.current.Segments, StageSegments{
		Stage:    stage,
		Segments: append([]model.Segment(nil), segs...),
	})
}

// RecordFaces captures the arrangement faces at a stage.
func (r *Recorder) RecordFaces(stage string, faces []FaceRecord) {
	if !r.active() {
		return
	}
	r.current.Faces = append(r.current.Faces, StageFaces{Stage: stage, Faces: faces})
}

// RecordQuality captures the RMS of an output face.
func (r *Recorder) RecordQuality(faceID, planeID int, rms float64) {
	if !r.active() {
		return
	}
	r.current.Quality = append(r.current.Quality, FaceQuality{FaceID: faceID, PlaneID: planeID, RMS: rms})
}

// Emit returns the recorded run and clears it. It returns nil when the
// recorder is disabled or no run was begun.
func (r *Recorder) Emit() *Run {
	if !r.active() {
		return nil
	}
	run := r.current
	r.current = nil
	return run
}

// Reset drops the current run without emitting it.
func (r *Recorder) Reset() {
	if r != nil {
		r.current = nil
	}
}

// SegmentsAt returns the segments recorded for a stage.
func (run *Run) SegmentsAt(stage string) []model.Segment {
	for _, s := range run.Segments {
		if s.Stage == stage {
			return s.Segments
		}
	}
	return nil
}

// FacesAt returns the faces recorded for a stage.
func (run *Run) FacesAt(stage string) []FaceRecord {
	for _, f := range run.Faces {
		if f.Stage == stage {
			return f.Faces
		}
	}
	return nil
}
