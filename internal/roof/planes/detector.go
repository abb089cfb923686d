package planes

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/rooftop/internal/roof/model"
	"github.com/banshee-data/rooftop/internal/roof/regiongrow"
)

// Config holds the plane detection parameters.
type Config struct {
	// K is the neighbourhood size of the proximity graph.
	K int
	// DistanceTol is the largest point-to-plane distance accepted (m).
	DistanceTol float64
	// NormalAngleTol is the smallest |cos| between a point normal and the
	// region normal that is accepted.
	NormalAngleTol float64
	// MinInliers drops smaller planes.
	MinInliers int
	// RefitEvery refits the running plane after this many acceptances.
	RefitEvery int
	// MaxPlanes caps the number of regions grown. Zero means no cap.
	MaxPlanes int

	// HorizontalThreshold is the |nz| above which a plane is horizontal.
	HorizontalThreshold float64
	// WallThreshold is the |nz| below which a plane is a wall and dropped.
	WallThreshold float64
	// HorizontalMinShare is the share of horizontal inliers above which a
	// multi-plane roof is classified as multiple horizontal.
	HorizontalMinShare float64

	RegularizeAxisSymmetry  bool
	RegularizeParallelism   bool
	RegularizeOrthogonality bool
	RegularizeCoplanarity   bool
	// MaxAngleDeg is the angular tolerance of plane regularisation.
	MaxAngleDeg float64
	// MaxOffset is the offset tolerance of coplanarity merging (m).
	MaxOffset float64
}

// DefaultConfig returns the detection defaults.
func DefaultConfig() Config {
	return Config{
		K:                   15,
		DistanceTol:         0.3,
		NormalAngleTol:      0.75,
		MinInliers:          15,
		RefitEvery:          5,
		HorizontalThreshold: 0.995,
		WallThreshold:       0.3,
		HorizontalMinShare:  0.95,
		MaxAngleDeg:         25,
		MaxOffset:           0.5,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	switch {
	case c.K < 3:
		return fmt.Errorf("k must be at least 3, got %d", c.K)
	case c.DistanceTol <= 0:
		return fmt.Errorf("distance_tol must be positive, got %f", c.DistanceTol)
	case c.NormalAngleTol < 0 || c.NormalAngleTol > 1:
		return fmt.Errorf("normal_angle_tol must be a cosine in [0,1], got %f", c.NormalAngleTol)
	case c.MinInliers < 3:
		return fmt.Errorf("min_inliers must be at least 3, got %d", c.MinInliers)
	}
	return nil
}

// Result is the outcome of plane detection over one building.
type Result struct {
	// Planes are sorted by inlier count, largest first, with IDs 1..n.
	Planes []*model.Plane
	// Labels maps every point to its plane id, or model.Unassigned.
	Labels     []int
	Unassigned []int
	// Adjacency counts neighbouring point pairs between planes, keyed by
	// the higher plane id first.
	Adjacency map[int]map[int]int
	RoofType  model.RoofType
	// Elevation summarises all roof inliers.
	Elevation model.Elevations
}

// Neighbours returns the adjacency count of two planes.
func (r *Result) Neighbours(a, b int) int {
	if a < b {
		a, b = b, a
	}
	return r.Adjacency[a][b]
}

// Plane returns the plane with the given id, or nil.
func (r *Result) Plane(id int) *model.Plane {
	if id < 1 || id > len(r.Planes) {
		return nil
	}
	return r.Planes[id-1]
}

// growState is the running region of plane growth.
type growState struct {
	m          moments
	normal     r3.Vec
	offset     float64
	sinceRefit int
}

// Detect segments pc into planes.
func Detect(ctx context.Context, pc model.PointCloud, cfg Config, log *model.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := pc.Len()
	if n < cfg.MinInliers {
		return &Result{Labels: make([]int, n), Unassigned: seq(n), RoofType: roofTypeForEmpty(n)},
			model.NewStageError("planes", model.ErrInsufficientPoints, "%d points, need at least %d", n, cfg.MinInliers)
	}

	adj := neighbourGraph(pc, cfg.K)
	est := estimateNormals(pc, adj)

	var seeds []int
	for i, e := range est {
		if e.defined {
			seeds = append(seeds, i)
		}
	}
	sort.SliceStable(seeds, func(a, b int) bool {
		return est[seeds[a]].curvature < est[seeds[b]].curvature
	})
	log.Diagf("planes: %d points, %d seeds, k=%d", n, len(seeds), cfg.K)

	refitEvery := max(cfg.RefitEvery, 1)
	strategy := regiongrow.Strategy[*growState]{
		NewState: func(seed int) *growState {
			s := &growState{normal: est[seed].normal}
			s.m.add(pc.At(seed))
			s.offset = -r3.Dot(s.normal, pc.At(seed))
			return s
		},
		Accept: func(s *growState, _, cand int) bool {
			p := pc.At(cand)
			if math.Abs(r3.Dot(s.normal, p)+s.offset) >= cfg.DistanceTol {
				return false
			}
			if !est[cand].defined {
				return true
			}
			return math.Abs(r3.Dot(est[cand].normal, s.normal)) >= cfg.NormalAngleTol
		},
		Update: func(s *growState, cand int) *growState {
			s.m.add(pc.At(cand))
			s.sinceRefit++
			if s.sinceRefit >= refitEvery {
				if f, ok := s.m.fit(); ok {
					s.normal, s.offset = f.normal, f.offset
				}
				s.sinceRefit = 0
			}
			return s
		},
	}

	grown, err := regiongrow.Grow(ctx, &regiongrow.Graph{Adj: adj, Order: seeds}, strategy,
		regiongrow.Params{MinRegionSize: cfg.MinInliers, MaxRegions: cfg.MaxPlanes})
	if err != nil {
		return nil, &model.StageError{Stage: "planes", Kind: model.ErrNonConvergence, Err: err}
	}

	var planes []*model.Plane
	for _, r := range grown.Regions {
		pl := &model.Plane{ID: r.ID, Inliers: append([]int(nil), r.Members...)}
		var m moments
		for _, idx := range r.Members {
			m.add(pc.At(idx))
		}
		if f, ok := m.fit(); ok {
			pl.Normal, pl.Offset = f.normal, f.offset
		} else {
			pl.Normal, pl.Offset = r.State.normal, r.State.offset
		}
		if math.Abs(pl.Normal.Z) < cfg.WallThreshold {
			log.Tracef("planes: region %d is a wall (nz=%.3f), %d points unassigned", r.ID, pl.Normal.Z, len(r.Members))
			continue
		}
		planes = append(planes, pl)
	}

	planes = regularise(pc, planes, cfg, log)
	res := finish(pc, planes, cfg, grown.Labels, grown.Adjacency)
	log.Diagf("planes: %d planes, %d unassigned, roof type %q", len(res.Planes), len(res.Unassigned), res.RoofType)
	return res, nil
}

// finish sorts and renumbers planes, refreshes derived attributes and remaps
// the region adjacency onto the final plane ids.
func finish(pc model.PointCloud, planes []*model.Plane, cfg Config, regionLabels []int, regionAdj map[int]map[int]int) *Result {
	sort.SliceStable(planes, func(a, b int) bool {
		return len(planes[a].Inliers) > len(planes[b].Inliers)
	})

	n := pc.Len()
	res := &Result{Labels: make([]int, n), Adjacency: map[int]map[int]int{}}
	regionToPlane := map[int]int{}
	for i, pl := range planes {
		pl.ID = i + 1
		sort.Ints(pl.Inliers)
		for _, idx := range pl.Inliers {
			regionToPlane[regionLabels[idx]] = pl.ID
			res.Labels[idx] = pl.ID
		}
		refresh(pc, pl, cfg)
	}
	for i, l := range res.Labels {
		if l == model.Unassigned {
			res.Unassigned = append(res.Unassigned, i)
		}
	}
	for hi, row := range regionAdj {
		for lo, cnt := range row {
			a, b := regionToPlane[hi], regionToPlane[lo]
			if a == 0 || b == 0 || a == b {
				continue
			}
			if a < b {
				a, b = b, a
			}
			if res.Adjacency[a] == nil {
				res.Adjacency[a] = map[int]int{}
			}
			res.Adjacency[a][b] += cnt
		}
	}
	res.Planes = planes
	res.RoofType = classifyRoof(n, planes, cfg)

	var zs []float64
	for _, pl := range planes {
		for _, idx := range pl.Inliers {
			zs = append(zs, pc.At(idx).Z)
		}
	}
	res.Elevation = Elevations(zs)
	return res
}

// refresh recomputes class, elevation percentiles and RMS of a plane.
func refresh(pc model.PointCloud, pl *model.Plane, cfg Config) {
	zs := make([]float64, len(pl.Inliers))
	var sq float64
	for i, idx := range pl.Inliers {
		p := pc.At(idx)
		zs[i] = p.Z
		d := pl.SignedDistance(p)
		sq += d * d
	}
	pl.Elevation = Elevations(zs)
	if len(zs) > 0 {
		pl.RMS = math.Sqrt(sq / float64(len(zs)))
	}
	switch nz := math.Abs(pl.Normal.Z); {
	case nz > cfg.HorizontalThreshold:
		pl.Class = model.Horizontal
	case nz < cfg.WallThreshold:
		pl.Class = model.Wall
	default:
		pl.Class = model.Slanted
	}
}

// Elevations returns the min, 50th, 70th percentile and max of zs. The
// slice is sorted in place.
func Elevations(zs []float64) model.Elevations {
	if len(zs) == 0 {
		return model.Elevations{}
	}
	sort.Float64s(zs)
	return model.Elevations{
		Min: zs[0],
		P50: stat.Quantile(0.5, stat.Empirical, zs, nil),
		P70: stat.Quantile(0.7, stat.Empirical, zs, nil),
		Max: zs[len(zs)-1],
	}
}

func classifyRoof(nPoints int, planes []*model.Plane, cfg Config) model.RoofType {
	if nPoints == 0 {
		return model.RoofNoPoints
	}
	if len(planes) == 0 {
		return model.RoofNoPlanes
	}
	var horizPlanes, slantPlanes, horizPts, totalPts int
	for _, pl := range planes {
		totalPts += len(pl.Inliers)
		if pl.Class == model.Horizontal {
			horizPlanes++
			horizPts += len(pl.Inliers)
		} else {
			slantPlanes++
		}
	}
	switch {
	case horizPlanes == 1 && slantPlanes == 0:
		return model.RoofFlat
	case float64(horizPts)/float64(totalPts) > cfg.HorizontalMinShare:
		return model.RoofMultipleHorizontal
	}
	return model.RoofSlanted
}

func roofTypeForEmpty(n int) model.RoofType {
	if n == 0 {
		return model.RoofNoPoints
	}
	return model.RoofNoPlanes
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
