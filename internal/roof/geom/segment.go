package geom

import (
	"math"

	"github.com/paulmach/orb"
)

// OnSegment reports whether p lies exactly on the closed segment a-b.
func OnSegment(p, a, b orb.Point) bool {
	if Orient(a, b, p) != 0 {
		return false
	}
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

// SegmentsTouch reports whether closed segments a-b and c-d share a point.
func SegmentsTouch(a, b, c, d orb.Point) bool {
	o1 := Orient(a, b, c)
	o2 := Orient(a, b, d)
	o3 := Orient(c, d, a)
	o4 := Orient(c, d, b)
	if o1*o2 < 0 && o3*o4 < 0 {
		return true
	}
	return (o1 == 0 && OnSegment(c, a, b)) || (o2 == 0 && OnSegment(d, a, b)) ||
		(o3 == 0 && OnSegment(a, c, d)) || (o4 == 0 && OnSegment(b, c, d))
}

// ProperCrossing reports whether the open segments a-b and c-d cross at a
// single point interior to both.
func ProperCrossing(a, b, c, d orb.Point) bool {
	return Orient(a, b, c)*Orient(a, b, d) < 0 && Orient(c, d, a)*Orient(c, d, b) < 0
}

// LineIntersection intersects the infinite lines through a-b and c-d. It
// returns the parameters along both segments; ok is false for parallel lines.
func LineIntersection(a, b, c, d orb.Point) (t, u float64, ok bool) {
	rx, ry := b[0]-a[0], b[1]-a[1]
	sx, sy := d[0]-c[0], d[1]-c[1]
	den := rx*sy - ry*sx
	if den == 0 {
		return 0, 0, false
	}
	qx, qy := c[0]-a[0], c[1]-a[1]
	t = (qx*sy - qy*sx) / den
	u = (qx*ry - qy*rx) / den
	return t, u, true
}

// Project returns the parameter of the orthogonal projection of p onto the
// line a-b (0 at a, 1 at b).
func Project(p, a, b orb.Point) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return 0
	}
	return ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / l2
}

// PointSegmentDistance returns the distance from p to the closed segment a-b
// together with the clamped projection parameter.
func PointSegmentDistance(p, a, b orb.Point) (float64, float64) {
	t := Project(p, a, b)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return Dist(p, Lerp(a, b, t)), t
}

// PointLineDistance returns the distance from p to the infinite line a-b.
func PointLineDistance(p, a, b orb.Point) float64 {
	l := Dist(a, b)
	if l == 0 {
		return Dist(p, a)
	}
	return math.Abs(Cross(a, b, p)) / l
}
