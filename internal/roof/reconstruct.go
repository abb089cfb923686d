package roof

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/banshee-data/rooftop/internal/roof/alphashape"
	"github.com/banshee-data/rooftop/internal/roof/arrangement"
	"github.com/banshee-data/rooftop/internal/roof/debug"
	"github.com/banshee-data/rooftop/internal/roof/facelabel"
	"github.com/banshee-data/rooftop/internal/roof/lines"
	"github.com/banshee-data/rooftop/internal/roof/mesh"
	"github.com/banshee-data/rooftop/internal/roof/model"
	"github.com/banshee-data/rooftop/internal/roof/planes"
	"github.com/banshee-data/rooftop/internal/roof/regularise"
)

// Input is one building.
type Input struct {
	Roof model.PointCloud
	// Ground is optional.
	Ground    model.PointCloud
	Footprint model.Footprint
}

// Result is the reconstruction of one building.
type Result struct {
	RunID     uuid.UUID
	Planes    []*model.Plane
	Mesh      *mesh.Mesh
	Faces     []mesh.FaceAttributes
	RoofType  model.RoofType
	Elevation model.Elevations
	// Unassigned counts roof points no plane claimed.
	Unassigned int
	// Timings holds the wall time of each stage.
	Timings map[string]time.Duration
	// Fallback is set when the flat footprint replaced the faces.
	Fallback bool
}

// Option configures a single Reconstruct call.
type Option func(*options)

type options struct {
	log      *model.Logger
	recorder *debug.Recorder
}

// WithLogger sends stage logs to l.
func WithLogger(l *model.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithRecorder captures per-stage geometry into r. The recorder must be
// enabled; the caller collects the run with r.Emit.
func WithRecorder(r *debug.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// Reconstruct runs the whole pipeline for one building. On failure the
// returned Result, when non-nil, carries what the completed stages found
// (planes, roof type, timings) and the error carries a model error kind.
func Reconstruct(ctx context.Context, in Input, cfg Config, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log, rec := o.log, o.recorder

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := in.Footprint.Validate(); err != nil {
		return nil, err
	}
	roofPts := in.Roof
	if roofPts == nil {
		roofPts = model.NewPoints(nil)
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	res := &Result{RunID: uuid.New(), Timings: map[string]time.Duration{}}
	rec.BeginRun(res.RunID.String())
	timed := func(stage string, start time.Time) {
		res.Timings[stage] = time.Since(start)
	}
	log.Diagf("roof: run %s, %d roof points, footprint area %.1f m²", res.RunID, roofPts.Len(), in.Footprint.Area())

	start := time.Now()
	det, err := planes.Detect(ctx, roofPts, cfg.Planes, log)
	timed("planes", start)
	if det != nil {
		res.Planes, res.RoofType, res.Elevation = det.Planes, det.RoofType, det.Elevation
		res.Unassigned = len(det.Unassigned)
		rec.RecordPoints(roofPts, det.Labels)
	}
	if err != nil && !errors.Is(err, model.ErrInsufficientPoints) {
		return res, err
	}
	if err != nil || len(det.Planes) == 0 {
		if cfg.Mesh.Fallback == mesh.FallbackFlat && roofPts.Len() > 0 {
			return flatFallback(res, in, roofPts, cfg, log)
		}
		if err != nil {
			return res, err
		}
		return res, model.NewStageError("planes", model.ErrNonConvergence,
			"no plane reached %d inliers among %d points", cfg.Planes.MinInliers, roofPts.Len())
	}

	start = time.Now()
	var boundary []model.Segment
	for _, pl := range det.Planes {
		pts := make([]orb.Point, len(pl.Inliers))
		for i, idx := range pl.Inliers {
			v := roofPts.At(idx)
			pts[i] = orb.Point{v.X, v.Y}
		}
		rings := alphashape.Compute(pts, cfg.Alpha).Rings()
		rec.RecordRings(pl.ID, rings)
		segs, err := lines.Detect(ctx, pl, rings, cfg.Lines, log)
		if err != nil {
			timed("lines", start)
			return res, err
		}
		boundary = append(boundary, segs...)
	}
	inter := lines.Intersect(roofPts, det, cfg.Intersect, log)
	timed("lines", start)
	rec.RecordSegments(debug.StageBoundary, boundary)
	rec.RecordSegments(debug.StageIntersection, inter)

	start = time.Now()
	reg, err := regularise.Regularise(append(boundary, inter...), in.Footprint.Edges(), cfg.Regularise, log)
	timed("regularise", start)
	if err != nil {
		return res, err
	}
	rec.RecordSegments(debug.StageRegularised, reg.Segments)

	start = time.Now()
	arr, err := arrangement.New(in.Footprint, cfg.Arrangement, log)
	if err != nil {
		return res, err
	}
	if err := arr.InsertFootprint(); err != nil {
		return res, err
	}
	acc := facelabel.NewAccumulator(roofPts, det.Labels, in.Ground)
	acc.Attach(arr)
	arr.InsertAll(reg.Segments)
	if err := ctx.Err(); err != nil {
		return res, model.NewStageError("arrangement", model.ErrNonConvergence, "%v", err)
	}
	facelabel.Label(arr, acc, det.Plane, cfg.Label, log)
	rec.RecordFaces(debug.StageBuilt, faceRecords(arr))
	err = arr.Cleanup(ctx)
	timed("arrangement", start)
	if err != nil {
		return res, err
	}
	rec.RecordFaces(debug.StageCleaned, faceRecords(arr))

	start = time.Now()
	out, err := mesh.Build(mesh.Input{Arrangement: arr, Points: acc, Roof: roofPts, Planes: det}, cfg.Mesh, log)
	timed("mesh", start)
	if err != nil {
		return res, err
	}
	res.Mesh, res.Faces, res.Fallback = out.Mesh, out.Attributes, out.Flat
	for _, fa := range res.Faces {
		rec.RecordQuality(int(fa.FaceID), fa.PlaneID, fa.RMS)
	}
	log.Diagf("roof: run %s done, %d planes, %d faces, roof type %q", res.RunID, len(res.Planes), len(res.Faces), res.RoofType)
	return res, nil
}

// flatFallback replaces the roof by the footprint at the median roof
// elevation.
func flatFallback(res *Result, in Input, roofPts model.PointCloud, cfg Config, log *model.Logger) (*Result, error) {
	zs := make([]float64, roofPts.Len())
	for i := range zs {
		zs[i] = roofPts.At(i).Z
	}
	elev := planes.Elevations(zs)
	log.Opsf("roof: run %s has no planes, using flat footprint at %.2f m", res.RunID, elev.P50)
	out, err := mesh.Flat(in.Footprint, elev.P50, res.RoofType, cfg.Mesh)
	if err != nil {
		return res, err
	}
	res.Mesh, res.Faces, res.Fallback = out.Mesh, out.Attributes, true
	if res.Elevation == (model.Elevations{}) {
		res.Elevation = elev
	}
	return res, nil
}

func faceRecords(arr *arrangement.Arrangement) []debug.FaceRecord {
	faces := arr.Faces()
	out := make([]debug.FaceRecord, 0, len(faces))
	for _, f := range faces {
		p := orb.Polygon{append(orb.Ring(nil), f.Outer...)}
		for _, h := range f.Holes {
			p = append(p, append(orb.Ring(nil), h...))
		}
		out = append(out, debug.FaceRecord{ID: int(f.ID), Label: f.Label, Interior: f.Interior(), Polygon: p})
	}
	return out
}
