package lines

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/banshee-data/rooftop/internal/roof/geom"
	"github.com/banshee-data/rooftop/internal/roof/model"
	"github.com/banshee-data/rooftop/internal/roof/regiongrow"
)

// Config holds the boundary line detection parameters.
type Config struct {
	// DistThreshold is the largest distance of a ring vertex to its line (m).
	DistThreshold float64
	// MinCountLo and MinCountHi bound the minimum vertices per line; the
	// bound used scales with ring length.
	MinCountLo int
	MinCountHi int
	// K is the ring neighbourhood size.
	K int
	// SnapThreshold is the largest endpoint move when chaining lines (m).
	SnapThreshold float64
	// LineExtend lengthens each segment at both ends (m).
	LineExtend float64
	// PerformChaining joins consecutive segments at their intersection.
	PerformChaining bool
	// RemoveOverlap trims overlapping extents of near-collinear segments.
	RemoveOverlap bool
	// MinSegmentLength drops shorter segments (m).
	MinSegmentLength float64
}

// DefaultConfig returns the line detection defaults.
func DefaultConfig() Config {
	return Config{
		DistThreshold:    0.4,
		MinCountLo:       5,
		MinCountHi:       10,
		K:                10,
		SnapThreshold:    1,
		LineExtend:       0.05,
		PerformChaining:  true,
		RemoveOverlap:    true,
		MinSegmentLength: 0.5,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	switch {
	case c.DistThreshold <= 0:
		return fmt.Errorf("line dist_threshold must be positive, got %f", c.DistThreshold)
	case c.MinCountLo < 2 || c.MinCountHi < c.MinCountLo:
		return fmt.Errorf("line min count range [%d,%d] is invalid", c.MinCountLo, c.MinCountHi)
	case c.K < 2:
		return fmt.Errorf("line k must be at least 2, got %d", c.K)
	}
	return nil
}

// ringCandidates exposes a ring's vertices to the region grower with
// cyclic index neighbourhoods.
type ringCandidates struct {
	ring  orb.Ring
	half  int
	seeds []int
}

func (r *ringCandidates) Len() int { return len(r.ring) }

func (r *ringCandidates) Neighbours(i int) []int {
	n := len(r.ring)
	out := make([]int, 0, 2*r.half)
	for d := 1; d <= r.half && d < n; d++ {
		out = append(out, (i+d)%n, (i-d+n)%n)
	}
	return out
}

func (r *ringCandidates) Seeds() []int { return r.seeds }

func (r *ringCandidates) window(i int) []orb.Point {
	pts := []orb.Point{r.ring[i]}
	for _, j := range r.Neighbours(i) {
		pts = append(pts, r.ring[j])
	}
	return pts
}

type lineState struct {
	m    lineMoments
	line lineFit
}

// run is one detected line before conversion to a segment.
type run struct {
	segment model.Segment
	// position is the circular mean of the member indices along the ring.
	position float64
}

// Detect fits boundary segments to the outline rings of one plane.
func Detect(ctx context.Context, pl *model.Plane, rings []orb.Ring, cfg Config, log *model.Logger) ([]model.Segment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var out []model.Segment
	for ri, ring := range rings {
		if err := ctx.Err(); err != nil {
			return out, &model.StageError{Stage: "lines", Kind: model.ErrNonConvergence, Err: err}
		}
		ring = geom.Open(ring)
		minCount := min(max(len(ring)/10, cfg.MinCountLo), cfg.MinCountHi)
		if len(ring) < minCount {
			continue
		}
		runs, err := detectRing(ctx, pl, ring, minCount, cfg)
		if err != nil {
			return out, err
		}
		if cfg.PerformChaining {
			chain(runs, cfg)
		}
		segs := make([]model.Segment, 0, len(runs))
		for _, r := range runs {
			segs = append(segs, r.segment)
		}
		if cfg.RemoveOverlap {
			segs = removeOverlap(segs, cfg)
		}
		for _, s := range segs {
			if s.Length() >= cfg.MinSegmentLength {
				out = append(out, s)
			}
		}
		log.Tracef("lines: plane %d ring %d: %d vertices, %d segments", pl.ID, ri, len(ring), len(segs))
	}
	log.Diagf("lines: plane %d: %d boundary segments", pl.ID, len(out))
	return out, nil
}

func detectRing(ctx context.Context, pl *model.Plane, ring orb.Ring, minCount int, cfg Config) ([]run, error) {
	cands := &ringCandidates{ring: ring, half: max(1, cfg.K/2)}
	windows := make([]lineFit, len(ring))
	valid := make([]bool, len(ring))
	for i := range ring {
		windows[i], valid[i] = fitPoints(cands.window(i))
		if valid[i] {
			cands.seeds = append(cands.seeds, i)
		}
	}
	sort.SliceStable(cands.seeds, func(a, b int) bool {
		return windows[cands.seeds[a]].linearity < windows[cands.seeds[b]].linearity
	})

	grown, err := regiongrow.Grow(ctx, cands, regiongrow.Strategy[*lineState]{
		NewState: func(seed int) *lineState {
			s := &lineState{line: windows[seed]}
			s.m.add(ring[seed])
			return s
		},
		Accept: func(s *lineState, _, cand int) bool {
			return s.line.distance(ring[cand]) < cfg.DistThreshold
		},
		Update: func(s *lineState, cand int) *lineState {
			s.m.add(ring[cand])
			if s.m.n >= 3 {
				if f, ok := s.m.fit(); ok {
					s.line = f
				}
			}
			return s
		},
	}, regiongrow.Params{MinRegionSize: minCount})
	if err != nil {
		return nil, &model.StageError{Stage: "lines", Kind: model.ErrNonConvergence, Err: err}
	}

	var runs []run
	for _, region := range grown.Regions {
		pts := make([]orb.Point, len(region.Members))
		var sx, sy float64
		for i, idx := range region.Members {
			pts[i] = ring[idx]
			a := 2 * math.Pi * float64(idx) / float64(len(ring))
			sx += math.Cos(a)
			sy += math.Sin(a)
		}
		f, ok := fitPoints(pts)
		if !ok {
			continue
		}
		tMin, tMax := math.Inf(1), math.Inf(-1)
		var sq float64
		for _, p := range pts {
			t := f.param(p)
			tMin, tMax = math.Min(tMin, t), math.Max(tMax, t)
			d := f.distance(p)
			sq += d * d
		}
		tMin -= cfg.LineExtend
		tMax += cfg.LineExtend
		runs = append(runs, run{
			segment: model.Segment{
				Start:    f.at(tMin),
				End:      f.at(tMax),
				PlaneIDs: []int{pl.ID},
				Priority: pl.Priority(),
				Offset:   math.Sqrt(sq / float64(len(pts))),
				Kind:     model.KindBoundary,
			},
			position: math.Atan2(sy, sx),
		})
	}
	sort.SliceStable(runs, func(a, b int) bool { return runs[a].position < runs[b].position })
	return runs, nil
}

// minChainAngle keeps nearly parallel neighbours from being chained at a
// far away intersection.
const minChainAngle = 0.2

// chain moves the facing endpoints of consecutive segments onto the
// intersection of their lines when both moves are within SnapThreshold.
func chain(runs []run, cfg Config) {
	n := len(runs)
	if n < 2 {
		return
	}
	pairs := n
	if n == 2 {
		pairs = 1
	}
	for i := 0; i < pairs; i++ {
		a, b := &runs[i].segment, &runs[(i+1)%n].segment
		diff := math.Abs(a.Angle() - b.Angle())
		if diff > math.Pi/2 {
			diff = math.Pi - diff
		}
		if diff < minChainAngle {
			continue
		}
		t, _, ok := geom.LineIntersection(a.Start, a.End, b.Start, b.End)
		if !ok {
			continue
		}
		x := geom.Lerp(a.Start, a.End, t)

		ea, eb := closestEnds(a, b)
		if geom.Dist(*ea, x) < cfg.SnapThreshold && geom.Dist(*eb, x) < cfg.SnapThreshold {
			*ea, *eb = x, x
		}
	}
}

// closestEnds returns pointers to the endpoints of a and b nearest to each
// other.
func closestEnds(a, b *model.Segment) (*orb.Point, *orb.Point) {
	ends := [][2]*orb.Point{
		{&a.Start, &b.Start}, {&a.Start, &b.End},
		{&a.End, &b.Start}, {&a.End, &b.End},
	}
	best := ends[0]
	bestD := math.Inf(1)
	for _, e := range ends {
		if d := geom.Dist(*e[0], *e[1]); d < bestD {
			best, bestD = e, d
		}
	}
	return best[0], best[1]
}

// overlapAngle is the angular tolerance for treating two segments of the
// same plane as the same line.
const overlapAngle = 0.1

// removeOverlap trims segments whose extents overlap a longer, nearly
// collinear segment; segments covered entirely are dropped.
func removeOverlap(segs []model.Segment, cfg Config) []model.Segment {
	sort.SliceStable(segs, func(a, b int) bool { return segs[a].Length() > segs[b].Length() })
	alive := make([]bool, len(segs))
	for i := range alive {
		alive[i] = true
	}
	for i := range segs {
		if !alive[i] {
			continue
		}
		a := segs[i]
		la := a.Length()
		if la == 0 {
			continue
		}
		for j := i + 1; j < len(segs); j++ {
			if !alive[j] {
				continue
			}
			b := &segs[j]
			diff := math.Abs(a.Angle() - b.Angle())
			if diff > math.Pi/2 {
				diff = math.Pi - diff
			}
			if diff >= overlapAngle || geom.PointLineDistance(b.Midpoint(), a.Start, a.End) >= cfg.DistThreshold {
				continue
			}
			ts := geom.Project(b.Start, a.Start, a.End) * la
			te := geom.Project(b.End, a.Start, a.End) * la
			lo, hi := math.Min(ts, te), math.Max(ts, te)
			switch {
			case lo >= 0 && hi <= la:
				alive[j] = false
			case lo < 0 && hi > la:
				// b covers a; leave both, the regulariser merges them
			case hi > 0 && lo < 0:
				clip(b, ts, te, 0, false)
			case lo < la && hi > la:
				clip(b, ts, te, la, true)
			}
		}
	}
	out := segs[:0]
	for i, s := range segs {
		if alive[i] {
			out = append(out, s)
		}
	}
	return out
}

// clip cuts b at parameter at of a's line, keeping the part of b above at
// when keepAbove is set and the part below otherwise.
func clip(b *model.Segment, ts, te, at float64, keepAbove bool) {
	kept := func(t float64) bool {
		if keepAbove {
			return t > at
		}
		return t < at
	}
	if kept(ts) == kept(te) {
		return
	}
	cut := geom.Lerp(b.Start, b.End, (at-ts)/(te-ts))
	if kept(ts) {
		b.End = cut
	} else {
		b.Start = cut
	}
}
