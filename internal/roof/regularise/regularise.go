// Package regularise merges line segments detected across planes into a
// reduced, angle-snapped edge set. Segments are clustered first by
// direction, then by perpendicular offset; the best ranked member of each
// cluster supplies the geometry every other member is snapped onto.
package regularise

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/banshee-data/rooftop/internal/roof/model"
)

// Config holds the regularisation tolerances.
type Config struct {
	// AngleTol is the largest direction difference within a cluster (rad).
	AngleTol float64
	// DistTol is the largest perpendicular offset within a cluster (m).
	DistTol float64
	// Extension lengthens every output segment at both ends (m).
	Extension float64
}

// DefaultConfig returns the regularisation defaults.
func DefaultConfig() Config {
	return Config{AngleTol: 0.15, DistTol: 0.5, Extension: 1}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.AngleTol <= 0 || c.AngleTol >= math.Pi/2 {
		return fmt.Errorf("angle_tol must be in (0, π/2), got %f", c.AngleTol)
	}
	if c.DistTol <= 0 {
		return fmt.Errorf("dist_tol must be positive, got %f", c.DistTol)
	}
	if c.Extension < 0 {
		return fmt.Errorf("extension must be non-negative, got %f", c.Extension)
	}
	return nil
}

// Cluster is a group of segments judged collinear within tolerance.
type Cluster struct {
	// Members index the ranked input; Members[0] is the reference.
	Members []int
	// Representative is the merged segment. It is unset for clusters
	// anchored on a footprint edge.
	Representative model.Segment
	Anchored       bool
}

// Result holds the regularised segments and the clusters behind them.
type Result struct {
	// Segments are the unanchored representatives, highest rank first.
	Segments []model.Segment
	Clusters []Cluster
	// Ranked is the input in processing order.
	Ranked []model.Segment
}

// less ranks segments: footprint before intersection before boundary,
// then priority, then length.
func less(a, b model.Segment) bool {
	if a.Kind != b.Kind {
		return a.Kind > b.Kind
	}
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.Length() > b.Length()
}

// angleDiff returns the undirected angle between two orientations in [0, π).
func angleDiff(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > math.Pi/2 {
		d = math.Pi - d
	}
	return d
}

// Regularise clusters segs together with the footprint edges. Footprint
// edges anchor clusters but are never emitted.
func Regularise(segs, footprint []model.Segment, cfg Config, log *model.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ranked := make([]model.Segment, 0, len(segs)+len(footprint))
	for _, s := range footprint {
		s.Kind = model.KindFootprint
		ranked = append(ranked, s)
	}
	for _, s := range segs {
		if s.Length() == 0 {
			continue
		}
		ranked = append(ranked, s)
	}
	sort.SliceStable(ranked, func(a, b int) bool { return less(ranked[a], ranked[b]) })

	// angle clusters
	type angleCluster struct {
		ref     float64
		members []int
	}
	var byAngle []*angleCluster
	for i, s := range ranked {
		a := s.Angle()
		var host *angleCluster
		for _, c := range byAngle {
			if angleDiff(a, c.ref) < cfg.AngleTol {
				host = c
				break
			}
		}
		if host == nil {
			host = &angleCluster{ref: a}
			byAngle = append(byAngle, host)
		}
		host.members = append(host.members, i)
	}

	res := &Result{Ranked: ranked}
	for _, ac := range byAngle {
		ref := ranked[ac.members[0]]
		u := ref.Direction()
		nrm := orb.Point{-u[1], u[0]}
		offset := func(p orb.Point) float64 { return nrm[0]*p[0] + nrm[1]*p[1] }

		type distCluster struct {
			ref     float64
			members []int
		}
		var byDist []*distCluster
		for _, i := range ac.members {
			o := offset(ranked[i].Midpoint())
			var host *distCluster
			for _, c := range byDist {
				if math.Abs(o-c.ref) < cfg.DistTol {
					host = c
					break
				}
			}
			if host == nil {
				host = &distCluster{ref: o}
				byDist = append(byDist, host)
			}
			host.members = append(host.members, i)
		}

		for _, dc := range byDist {
			res.Clusters = append(res.Clusters, merge(ranked, dc.members, u, cfg))
		}
	}

	for _, c := range res.Clusters {
		if !c.Anchored {
			res.Segments = append(res.Segments, c.Representative)
		}
	}
	sort.SliceStable(res.Segments, func(a, b int) bool { return less(res.Segments[a], res.Segments[b]) })
	log.Diagf("regularise: %d segments + %d footprint edges -> %d clusters, %d segments",
		len(segs), len(footprint), len(res.Clusters), len(res.Segments))
	return res, nil
}

// merge builds the representative of one distance cluster. Every member is
// rotated about its midpoint onto the reference direction u and projected
// onto the reference line; the representative spans the union of the
// projections.
func merge(ranked []model.Segment, members []int, u orb.Point, cfg Config) Cluster {
	c := Cluster{Members: members}
	ref := ranked[members[0]]
	if ref.Kind == model.KindFootprint {
		c.Anchored = true
		return c
	}
	for _, i := range members {
		if ranked[i].Kind == model.KindFootprint {
			c.Anchored = true
			return c
		}
	}

	// reference line through the reference midpoint along u
	origin := ref.Midpoint()
	lo, hi := math.Inf(1), math.Inf(-1)
	var ids [][]int
	for _, i := range members {
		s := ranked[i]
		mid := s.Midpoint()
		half := s.Length() / 2
		tMid := (mid[0]-origin[0])*u[0] + (mid[1]-origin[1])*u[1]
		lo = math.Min(lo, tMid-half)
		hi = math.Max(hi, tMid+half)
		ids = append(ids, s.PlaneIDs)
	}
	lo -= cfg.Extension
	hi += cfg.Extension

	c.Representative = model.Segment{
		Start:    orb.Point{origin[0] + lo*u[0], origin[1] + lo*u[1]},
		End:      orb.Point{origin[0] + hi*u[0], origin[1] + hi*u[1]},
		PlaneIDs: model.MergePlaneIDs(ref.PlaneIDs, ids...),
		Priority: ref.Priority,
		Offset:   ref.Offset,
		Kind:     ref.Kind,
	}
	return c
}
