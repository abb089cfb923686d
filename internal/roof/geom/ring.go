package geom

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// Location classifies a point against a ring.
type Location int

const (
	Outside Location = iota
	OnBoundary
	Inside
)

// RingSignedArea returns the shoelace area of a ring. Counter-clockwise rings
// are positive, clockwise rings negative. The ring may be open or closed.
func RingSignedArea(r orb.Ring) float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	if r[0] == r[n-1] {
		n--
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += r[i][0]*r[j][1] - r[j][0]*r[i][1]
	}
	return sum / 2
}

// Open returns the ring without its closing vertex.
func Open(r orb.Ring) orb.Ring {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

// Close returns a copy of the ring with the first vertex repeated at the end.
func Close(r orb.Ring) orb.Ring {
	r = Open(r)
	out := make(orb.Ring, len(r), len(r)+1)
	copy(out, r)
	if len(out) > 0 {
		out = append(out, out[0])
	}
	return out
}

// Perimeter returns the length of a ring's boundary.
func Perimeter(r orb.Ring) float64 {
	r = Open(r)
	var sum float64
	for i := range r {
		sum += Dist(r[i], r[(i+1)%len(r)])
	}
	return sum
}

// LocateInRing classifies p against the ring using exact orientation tests,
// so a point on an edge is always reported as OnBoundary.
func LocateInRing(p orb.Point, r orb.Ring) Location {
	r = Open(r)
	n := len(r)
	if n < 3 {
		return Outside
	}
	winding := 0
	for i := 0; i < n; i++ {
		a, b := r[i], r[(i+1)%n]
		if OnSegment(p, a, b) {
			return OnBoundary
		}
		if a[1] <= p[1] {
			if b[1] > p[1] && Orient(a, b, p) > 0 {
				winding++
			}
		} else if b[1] <= p[1] && Orient(a, b, p) < 0 {
			winding--
		}
	}
	if winding != 0 {
		return Inside
	}
	return Outside
}

// LocateInPolygon classifies p against an outer ring with holes.
func LocateInPolygon(p orb.Point, outer orb.Ring, holes []orb.Ring) Location {
	loc := LocateInRing(p, outer)
	if loc != Inside {
		return loc
	}
	for _, h := range holes {
		switch LocateInRing(p, h) {
		case Inside:
			return Outside
		case OnBoundary:
			return OnBoundary
		}
	}
	return Inside
}

// InteriorPoint returns a point strictly inside the polygon. A horizontal
// scanline is placed between every pair of consecutive distinct vertex
// heights and the midpoint of the widest interior interval wins. ok is false
// for degenerate polygons.
func InteriorPoint(outer orb.Ring, holes []orb.Ring) (orb.Point, bool) {
	rings := append([]orb.Ring{Open(outer)}, holes...)
	var ys []float64
	for _, r := range rings {
		for _, p := range Open(r) {
			ys = append(ys, p[1])
		}
	}
	if len(ys) < 3 {
		return orb.Point{}, false
	}
	sort.Float64s(ys)

	best := orb.Point{}
	bestWidth := 0.0
	for i := 1; i < len(ys); i++ {
		if ys[i] == ys[i-1] {
			continue
		}
		y := (ys[i] + ys[i-1]) / 2
		var xs []float64
		for _, r := range rings {
			r = Open(r)
			for k := range r {
				a, b := r[k], r[(k+1)%len(r)]
				if (a[1] > y) == (b[1] > y) {
					continue
				}
				t := (y - a[1]) / (b[1] - a[1])
				xs = append(xs, a[0]+t*(b[0]-a[0]))
			}
		}
		sort.Float64s(xs)
		for k := 0; k+1 < len(xs); k += 2 {
			if w := xs[k+1] - xs[k]; w > bestWidth {
				bestWidth = w
				best = orb.Point{(xs[k] + xs[k+1]) / 2, y}
			}
		}
	}
	if bestWidth <= 0 || math.IsNaN(best[0]) {
		return orb.Point{}, false
	}
	return best, true
}

// IsSimple reports whether no two non-adjacent edges of the ring touch.
func IsSimple(r orb.Ring) bool {
	r = Open(r)
	n := len(r)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		a, b := r[i], r[(i+1)%n]
		if a == b {
			return false
		}
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			c, d := r[j], r[(j+1)%n]
			if SegmentsTouch(a, b, c, d) {
				return false
			}
		}
	}
	return true
}
