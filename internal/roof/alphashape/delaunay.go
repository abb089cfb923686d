// Package alphashape derives plane outlines from projected inlier points:
// a Delaunay triangulation filtered by circumradius, split into connected
// components, with each component's boundary chained into rings.
package alphashape

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/banshee-data/rooftop/internal/roof/geom"
)

// Triangulation is a Delaunay triangulation. Triangles are counter-clockwise
// and index into Points.
type Triangulation struct {
	Points    []orb.Point
	Triangles [][3]int
}

type tri struct {
	v      [3]int
	centre orb.Point
	r      float64
}

// Delaunay triangulates pts with the Bowyer-Watson algorithm. Points are
// inserted in x order so triangles whose circumcircle lies entirely to the
// left of the sweep can be retired early. Exact duplicates are skipped.
func Delaunay(pts []orb.Point) *Triangulation {
	out := &Triangulation{Points: pts}
	if len(pts) < 3 {
		return out
	}

	order := make([]int, len(pts))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		pa, pb := pts[order[a]], pts[order[b]]
		if pa[0] != pb[0] {
			return pa[0] < pb[0]
		}
		return pa[1] < pb[1]
	})

	bound := orb.MultiPoint(pts).Bound()
	span := math.Max(bound.Max[0]-bound.Min[0], bound.Max[1]-bound.Min[1])
	if span == 0 {
		return out
	}
	mid := bound.Center()
	// Super triangle vertices are appended after the input points.
	all := append(append([]orb.Point(nil), pts...),
		orb.Point{mid[0] - 20*span, mid[1] - span},
		orb.Point{mid[0] + 20*span, mid[1] - span},
		orb.Point{mid[0], mid[1] + 20*span},
	)
	s0 := len(pts)

	newTri := func(a, b, c int) tri {
		centre, r2, _ := geom.Circumcircle(all[a], all[b], all[c])
		return tri{v: [3]int{a, b, c}, centre: centre, r: math.Sqrt(r2)}
	}

	open := []tri{newTri(s0, s0+1, s0+2)}
	var done []tri
	var prev orb.Point
	for k, idx := range order {
		p := all[idx]
		if k > 0 && p == prev {
			continue
		}
		prev = p

		edges := map[[2]int]int{}
		var edgeOrder [][2]int
		keep := open[:0]
		for _, t := range open {
			if dx := p[0] - t.centre[0]; dx > 0 && dx > t.r*(1+1e-9)+1e-12 {
				done = append(done, t)
				continue
			}
			if geom.InCircle(all[t.v[0]], all[t.v[1]], all[t.v[2]], p) > 0 {
				for i := 0; i < 3; i++ {
					e := [2]int{t.v[i], t.v[(i+1)%3]}
					key := e
					if key[0] > key[1] {
						key[0], key[1] = key[1], key[0]
					}
					if _, seen := edges[key]; !seen {
						edgeOrder = append(edgeOrder, e)
					}
					edges[key]++
				}
				continue
			}
			keep = append(keep, t)
		}
		open = keep
		for _, e := range edgeOrder {
			key := e
			if key[0] > key[1] {
				key[0], key[1] = key[1], key[0]
			}
			if edges[key] == 1 {
				open = append(open, newTri(e[0], e[1], idx))
			}
		}
	}
	done = append(done, open...)

	for _, t := range done {
		if t.v[0] >= s0 || t.v[1] >= s0 || t.v[2] >= s0 {
			continue
		}
		if geom.Orient(pts[t.v[0]], pts[t.v[1]], pts[t.v[2]]) <= 0 {
			continue
		}
		out.Triangles = append(out.Triangles, t.v)
	}
	sort.Slice(out.Triangles, func(a, b int) bool {
		ta, tb := out.Triangles[a], out.Triangles[b]
		for i := 0; i < 3; i++ {
			if ta[i] != tb[i] {
				return ta[i] < tb[i]
			}
		}
		return false
	})
	return out
}
