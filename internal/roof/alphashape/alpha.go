package alphashape

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/banshee-data/rooftop/internal/roof/geom"
	"github.com/banshee-data/rooftop/internal/roof/regiongrow"
)

// Config holds the alpha-shape parameters.
type Config struct {
	// Alpha is the largest squared circumradius of a kept triangle (m²).
	Alpha float64
	// OptimalAlpha grows Alpha until a single component remains.
	OptimalAlpha bool
	// MaxGrowthSteps bounds the OptimalAlpha search.
	MaxGrowthSteps int
	// GrowthFactor multiplies Alpha at each step.
	GrowthFactor float64
}

// DefaultConfig returns the alpha-shape defaults.
func DefaultConfig() Config {
	return Config{
		Alpha:          0.25,
		OptimalAlpha:   true,
		MaxGrowthSteps: 8,
		GrowthFactor:   1.5,
	}
}

// Component is one connected piece of an alpha shape.
type Component struct {
	// Outer rings are counter-clockwise, holes clockwise. Rings are open.
	Outer []orb.Ring
	Holes []orb.Ring
	// Triangles lists the kept triangles of this component.
	Triangles [][3]int
	Area      float64
}

// Rings returns outer rings followed by holes.
func (c Component) Rings() []orb.Ring {
	return append(append([]orb.Ring(nil), c.Outer...), c.Holes...)
}

// Shape is the alpha shape of a point set.
type Shape struct {
	Alpha      float64
	Points     []orb.Point
	Components []Component
}

// Rings returns the rings of every component, largest component first.
func (s *Shape) Rings() []orb.Ring {
	var out []orb.Ring
	for _, c := range s.Components {
		out = append(out, c.Rings()...)
	}
	return out
}

// Compute builds the alpha shape of pts.
func Compute(pts []orb.Point, cfg Config) *Shape {
	tr := Delaunay(pts)
	r2 := make([]float64, len(tr.Triangles))
	for i, t := range tr.Triangles {
		_, rr, ok := geom.Circumcircle(pts[t[0]], pts[t[1]], pts[t[2]])
		if !ok {
			rr = math.Inf(1)
		}
		r2[i] = rr
	}

	alpha := cfg.Alpha
	shape := build(tr, r2, alpha)
	if cfg.OptimalAlpha {
		factor := cfg.GrowthFactor
		if factor <= 1 {
			factor = 1.5
		}
		for step := 0; step < cfg.MaxGrowthSteps && len(shape.Components) > 1; step++ {
			alpha *= factor
			shape = build(tr, r2, alpha)
		}
	}
	return shape
}

func build(tr *Triangulation, r2 []float64, alpha float64) *Shape {
	shape := &Shape{Alpha: alpha, Points: tr.Points}

	var kept []int
	for i := range tr.Triangles {
		if r2[i] <= alpha {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 {
		return shape
	}

	// Triangle adjacency through shared edges.
	edgeOwner := map[[2]int][]int{}
	for k, ti := range kept {
		t := tr.Triangles[ti]
		for i := 0; i < 3; i++ {
			edgeOwner[undirected(t[i], t[(i+1)%3])] = append(edgeOwner[undirected(t[i], t[(i+1)%3])], k)
		}
	}
	g := &regiongrow.Graph{Adj: make([][]int, len(kept))}
	for _, owners := range edgeOwner {
		if len(owners) == 2 {
			g.Adj[owners[0]] = append(g.Adj[owners[0]], owners[1])
			g.Adj[owners[1]] = append(g.Adj[owners[1]], owners[0])
		}
	}
	for i := range g.Adj {
		sort.Ints(g.Adj[i])
	}

	comps := regiongrow.Components(g)
	for _, region := range comps.Regions {
		var c Component
		for _, k := range region.Members {
			t := tr.Triangles[kept[k]]
			c.Triangles = append(c.Triangles, t)
			c.Area += geom.RingSignedArea(orb.Ring{tr.Points[t[0]], tr.Points[t[1]], tr.Points[t[2]]})
		}
		for _, ring := range boundaryRings(tr.Points, c.Triangles) {
			if geom.RingSignedArea(ring) > 0 {
				c.Outer = append(c.Outer, ring)
			} else {
				c.Holes = append(c.Holes, ring)
			}
		}
		shape.Components = append(shape.Components, c)
	}
	sort.SliceStable(shape.Components, func(a, b int) bool {
		return shape.Components[a].Area > shape.Components[b].Area
	})
	return shape
}

func undirected(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// boundaryRings chains the boundary edges of a triangle set into rings with
// the triangles on their left. At a vertex shared by several boundary
// loops the first edge clockwise from the incoming edge is taken, which
// keeps every ring simple.
func boundaryRings(pts []orb.Point, tris [][3]int) []orb.Ring {
	directed := map[[2]int]bool{}
	for _, t := range tris {
		for i := 0; i < 3; i++ {
			directed[[2]int{t[i], t[(i+1)%3]}] = true
		}
	}
	outgoing := map[int][]int{}
	var starts [][2]int
	for e := range directed {
		if !directed[[2]int{e[1], e[0]}] {
			outgoing[e[0]] = append(outgoing[e[0]], e[1])
			starts = append(starts, e)
		}
	}
	sort.Slice(starts, func(a, b int) bool {
		if starts[a][0] != starts[b][0] {
			return starts[a][0] < starts[b][0]
		}
		return starts[a][1] < starts[b][1]
	})

	used := map[[2]int]bool{}
	var rings []orb.Ring
	for _, s := range starts {
		if used[s] {
			continue
		}
		var ring orb.Ring
		cur := s
		for !used[cur] {
			used[cur] = true
			ring = append(ring, pts[cur[0]])
			next, ok := nextClockwise(pts, cur, outgoing[cur[1]], used)
			if !ok {
				break
			}
			cur = [2]int{cur[1], next}
		}
		if len(ring) >= 3 {
			rings = append(rings, ring)
		}
	}
	return rings
}

// nextClockwise picks, among unused edges leaving e's head, the first one
// reached by rotating clockwise from the reversed edge.
func nextClockwise(pts []orb.Point, e [2]int, candidates []int, used map[[2]int]bool) (int, bool) {
	u, v := pts[e[0]], pts[e[1]]
	back := math.Atan2(u[1]-v[1], u[0]-v[0])
	best, bestAngle := -1, math.Inf(1)
	for _, w := range candidates {
		if used[[2]int{e[1], w}] {
			continue
		}
		p := pts[w]
		a := back - math.Atan2(p[1]-v[1], p[0]-v[0])
		for a <= 0 {
			a += 2 * math.Pi
		}
		for a > 2*math.Pi {
			a -= 2 * math.Pi
		}
		if a < bestAngle || (a == bestAngle && w < best) {
			best, bestAngle = w, a
		}
	}
	return best, best >= 0
}
