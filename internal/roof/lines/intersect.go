package lines

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rooftop/internal/roof/model"
	"github.com/banshee-data/rooftop/internal/roof/planes"
)

// IntersectConfig holds the plane intersection parameters.
type IntersectConfig struct {
	// MinNeighbourPoints is the smallest adjacency count for a plane pair.
	MinNeighbourPoints int
	// MinDistToLine is the distance within which inliers bound the line (m).
	MinDistToLine float64
	// MinLength drops shorter intersection segments (m).
	MinLength float64
}

// DefaultIntersectConfig returns the intersection defaults.
func DefaultIntersectConfig() IntersectConfig {
	return IntersectConfig{
		MinNeighbourPoints: 5,
		MinDistToLine:      1,
		MinLength:          0.5,
	}
}

// minIntersectionSine rejects plane pairs that are too close to parallel.
const minIntersectionSine = 1e-3

// Intersect returns the 2D segments where adjacent planes meet, bounded by
// the overlap of both planes' inliers near the line.
func Intersect(pc model.PointCloud, res *planes.Result, cfg IntersectConfig, log *model.Logger) []model.Segment {
	type pair struct{ hi, lo int }
	var pairs []pair
	for hi, row := range res.Adjacency {
		for lo, cnt := range row {
			if cnt >= cfg.MinNeighbourPoints {
				pairs = append(pairs, pair{hi, lo})
			}
		}
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a].lo != pairs[b].lo {
			return pairs[a].lo < pairs[b].lo
		}
		return pairs[a].hi < pairs[b].hi
	})

	var out []model.Segment
	for _, pr := range pairs {
		a, b := res.Plane(pr.lo), res.Plane(pr.hi)
		if a == nil || b == nil {
			continue
		}
		seg, ok := intersectPair(pc, a, b, cfg)
		if !ok {
			log.Tracef("lines: planes %d/%d give no intersection segment", a.ID, b.ID)
			continue
		}
		out = append(out, seg)
	}
	log.Diagf("lines: %d intersection segments from %d adjacent plane pairs", len(out), len(pairs))
	return out
}

func intersectPair(pc model.PointCloud, a, b *model.Plane, cfg IntersectConfig) (model.Segment, bool) {
	u := r3.Cross(a.Normal, b.Normal)
	uu := r3.Dot(u, u)
	if math.Sqrt(uu) < minIntersectionSine {
		return model.Segment{}, false
	}
	// point on both planes closest to the origin
	ha, hb := -a.Offset, -b.Offset
	p0 := r3.Scale(1/uu, r3.Add(r3.Scale(ha, r3.Cross(b.Normal, u)), r3.Scale(hb, r3.Cross(u, a.Normal))))
	dir := r3.Unit(u)
	if math.Hypot(dir.X, dir.Y) < minIntersectionSine {
		return model.Segment{}, false
	}

	extent := func(pl *model.Plane) (float64, float64, bool) {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, idx := range pl.Inliers {
			q := r3.Sub(pc.At(idx), p0)
			t := r3.Dot(q, dir)
			perp := r3.Sub(q, r3.Scale(t, dir))
			if r3.Norm(perp) > cfg.MinDistToLine {
				continue
			}
			lo, hi = math.Min(lo, t), math.Max(hi, t)
		}
		return lo, hi, lo <= hi
	}
	loA, hiA, okA := extent(a)
	loB, hiB, okB := extent(b)
	if !okA || !okB {
		return model.Segment{}, false
	}
	lo, hi := math.Max(loA, loB), math.Min(hiA, hiB)
	start, end := r3.Add(p0, r3.Scale(lo, dir)), r3.Add(p0, r3.Scale(hi, dir))
	s := model.Segment{
		Start:    orb.Point{start.X, start.Y},
		End:      orb.Point{end.X, end.Y},
		PlaneIDs: []int{a.ID, b.ID},
		Priority: min(a.Priority(), b.Priority()),
		Kind:     model.KindIntersection,
	}
	if hi <= lo || s.Length() < cfg.MinLength {
		return model.Segment{}, false
	}
	return s, true
}
