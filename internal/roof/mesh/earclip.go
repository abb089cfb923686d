package mesh

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/banshee-data/rooftop/internal/roof/geom"
)

// Triangulate ear-clips a polygon with a counter-clockwise outer ring and
// clockwise holes, all open. It returns counter-clockwise triangles.
func Triangulate(outer orb.Ring, holes []orb.Ring) ([][3]orb.Point, error) {
	poly := orient(geom.Open(outer), true)
	if len(poly) < 3 {
		return nil, fmt.Errorf("outer ring has %d vertices", len(poly))
	}
	hs := make([]orb.Ring, 0, len(holes))
	for _, h := range holes {
		h = orient(geom.Open(h), false)
		if len(h) >= 3 {
			hs = append(hs, h)
		}
	}
	// Rightmost holes first so later bridges never cross earlier ones.
	sort.SliceStable(hs, func(i, j int) bool { return maxX(hs[i]) > maxX(hs[j]) })
	for k, h := range hs {
		var err error
		poly, err = bridge(poly, h, hs[k+1:])
		if err != nil {
			return nil, err
		}
	}
	tris, err := clip(poly)
	if err == nil && len(tris) == 0 {
		err = fmt.Errorf("polygon has no area")
	}
	return tris, err
}

func orient(r orb.Ring, ccw bool) orb.Ring {
	out := append(orb.Ring(nil), r...)
	if (geom.RingSignedArea(out) > 0) != ccw {
		out.Reverse()
	}
	return out
}

func maxX(r orb.Ring) float64 {
	m := math.Inf(-1)
	for _, p := range r {
		m = math.Max(m, p[0])
	}
	return m
}

// bridge splices hole h into poly through the closest polygon vertex the
// hole's rightmost vertex can see.
func bridge(poly, h orb.Ring, rest []orb.Ring) (orb.Ring, error) {
	mi := 0
	for i, p := range h {
		if p[0] > h[mi][0] || (p[0] == h[mi][0] && p[1] < h[mi][1]) {
			mi = i
		}
	}
	m := h[mi]

	order := make([]int, len(poly))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return geom.Dist(poly[order[i]], m) < geom.Dist(poly[order[j]], m)
	})
	for _, vi := range order {
		v := poly[vi]
		if v == m || !visible(m, v, poly, append([]orb.Ring{h}, rest...)) {
			continue
		}
		out := make(orb.Ring, 0, len(poly)+len(h)+2)
		out = append(out, poly[:vi+1]...)
		for k := 0; k <= len(h); k++ {
			out = append(out, h[(mi+k)%len(h)])
		}
		out = append(out, v)
		out = append(out, poly[vi+1:]...)
		return out, nil
	}
	return nil, fmt.Errorf("no visible bridge vertex for hole at %v", m)
}

// visible reports whether the open segment m-v crosses no ring edge and
// runs inside the polygon.
func visible(m, v orb.Point, outer orb.Ring, holes []orb.Ring) bool {
	for _, r := range append([]orb.Ring{outer}, holes...) {
		for i := range r {
			a, b := r[i], r[(i+1)%len(r)]
			if a == m || a == v || b == m || b == v {
				continue
			}
			if geom.SegmentsTouch(m, v, a, b) {
				return false
			}
		}
	}
	mid := geom.Lerp(m, v, 0.5)
	if geom.LocateInRing(mid, outer) != geom.Inside {
		return false
	}
	for _, r := range holes {
		if geom.LocateInRing(mid, r) != geom.Outside {
			return false
		}
	}
	return true
}

// clip ear-clips a simple (possibly bridged) counter-clockwise polygon.
// Vertices on a straight run stay in the output so a face edge carries
// the same vertices as its neighbour's.
func clip(poly orb.Ring) ([][3]orb.Point, error) {
	idx := make([]int, len(poly))
	for i := range idx {
		idx[i] = i
	}
	var tris [][3]orb.Point
	for len(idx) > 3 {
		n := len(idx)
		cut := -1
		for i := 0; i < n; i++ {
			a, b, c := poly[idx[(i+n-1)%n]], poly[idx[i]], poly[idx[(i+1)%n]]
			o := geom.Orient(a, b, c)
			if o == 0 && !straight(a, b, c) {
				// zero-width spike or repeated point
				cut = i
				break
			}
			if o <= 0 || !isEar(poly, idx, i) {
				continue
			}
			tris = append(tris, [3]orb.Point{a, b, c})
			cut = i
			break
		}
		if cut < 0 {
			// Nothing convex is left, only straight runs of zero area.
			cut = straightVertex(poly, idx)
		}
		if cut < 0 {
			return tris, fmt.Errorf("no ear among %d remaining vertices", n)
		}
		idx = append(idx[:cut], idx[cut+1:]...)
	}
	if len(idx) == 3 {
		a, b, c := poly[idx[0]], poly[idx[1]], poly[idx[2]]
		if geom.Orient(a, b, c) > 0 {
			tris = append(tris, [3]orb.Point{a, b, c})
		}
	}
	return tris, nil
}

// straight reports whether b lies strictly between a and c on a
// collinear run.
func straight(a, b, c orb.Point) bool {
	return (b[0]-a[0])*(c[0]-b[0])+(b[1]-a[1])*(c[1]-b[1]) > 0
}

func straightVertex(poly orb.Ring, idx []int) int {
	n := len(idx)
	for i := range idx {
		a, b, c := poly[idx[(i+n-1)%n]], poly[idx[i]], poly[idx[(i+1)%n]]
		if geom.Orient(a, b, c) == 0 {
			return i
		}
	}
	return -1
}

// isEar reports whether no other remaining vertex lies inside or on the
// triangle at position i.
func isEar(poly orb.Ring, idx []int, i int) bool {
	n := len(idx)
	a, b, c := poly[idx[(i+n-1)%n]], poly[idx[i]], poly[idx[(i+1)%n]]
	for k := 0; k < n; k++ {
		p := poly[idx[k]]
		if p == a || p == b || p == c {
			continue
		}
		if geom.Orient(a, b, p) >= 0 && geom.Orient(b, c, p) >= 0 && geom.Orient(c, a, p) >= 0 {
			return false
		}
	}
	return true
}
