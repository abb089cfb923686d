package geom

import (
	"math"
	"math/big"

	"github.com/paulmach/orb"
)

// ccwErrBound is the relative error bound of the floating point orientation
// determinant (Shewchuk, "Adaptive Precision Floating-Point Arithmetic").
var ccwErrBound = (3 + 16*epsilon) * epsilon

const epsilon = 1.1102230246251565e-16 // 2^-53

// Orient returns +1 if c lies to the left of the directed line a->b, -1 if it
// lies to the right and 0 if the three points are collinear.
func Orient(a, b, c orb.Point) int {
	detLeft := (a[0] - c[0]) * (b[1] - c[1])
	detRight := (a[1] - c[1]) * (b[0] - c[0])
	det := detLeft - detRight

	var detSum float64
	switch {
	case detLeft > 0:
		if detRight <= 0 {
			return sign(det)
		}
		detSum = detLeft + detRight
	case detLeft < 0:
		if detRight >= 0 {
			return sign(det)
		}
		detSum = -detLeft - detRight
	default:
		return sign(det)
	}

	if math.Abs(det) >= ccwErrBound*detSum {
		return sign(det)
	}
	return orientExact(a, b, c)
}

// orientExact evaluates the orientation determinant with rationals. Every
// float64 converts to a big.Rat without loss, so the sign is exact.
func orientExact(a, b, c orb.Point) int {
	r := func(v float64) *big.Rat { return new(big.Rat).SetFloat64(v) }

	acx := new(big.Rat).Sub(r(a[0]), r(c[0]))
	bcy := new(big.Rat).Sub(r(b[1]), r(c[1]))
	acy := new(big.Rat).Sub(r(a[1]), r(c[1]))
	bcx := new(big.Rat).Sub(r(b[0]), r(c[0]))

	left := new(big.Rat).Mul(acx, bcy)
	right := new(big.Rat).Mul(acy, bcx)
	return left.Cmp(right)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Cross returns the z component of (b-a) x (c-a).
func Cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// Dist returns the euclidean distance between two points.
func Dist(a, b orb.Point) float64 {
	return math.Hypot(b[0]-a[0], b[1]-a[1])
}

// Lerp returns a + t*(b-a).
func Lerp(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}
