package geom

import (
	"math"
	"math/big"

	"github.com/paulmach/orb"
)

var iccErrBound = (10 + 96*epsilon) * epsilon

// InCircle returns +1 if d lies inside the circle through a, b, c (given in
// counter-clockwise order), -1 if outside and 0 if the four points are
// cocircular. Like Orient it falls back to exact arithmetic near zero.
func InCircle(a, b, c, d orb.Point) int {
	adx, ady := a[0]-d[0], a[1]-d[1]
	bdx, bdy := b[0]-d[0], b[1]-d[1]
	cdx, cdy := c[0]-d[0], c[1]-d[1]

	bdxcdy, cdxbdy := bdx*cdy, cdx*bdy
	alift := adx*adx + ady*ady
	cdxady, adxcdy := cdx*ady, adx*cdy
	blift := bdx*bdx + bdy*bdy
	adxbdy, bdxady := adx*bdy, bdx*ady
	clift := cdx*cdx + cdy*cdy

	det := alift*(bdxcdy-cdxbdy) + blift*(cdxady-adxcdy) + clift*(adxbdy-bdxady)
	permanent := (math.Abs(bdxcdy)+math.Abs(cdxbdy))*alift +
		(math.Abs(cdxady)+math.Abs(adxcdy))*blift +
		(math.Abs(adxbdy)+math.Abs(bdxady))*clift
	if math.Abs(det) > iccErrBound*permanent {
		return sign(det)
	}
	return inCircleExact(a, b, c, d)
}

func inCircleExact(a, b, c, d orb.Point) int {
	r := func(v float64) *big.Rat { return new(big.Rat).SetFloat64(v) }
	sub := func(x, y float64) *big.Rat { return new(big.Rat).Sub(r(x), r(y)) }
	mul := func(x, y *big.Rat) *big.Rat { return new(big.Rat).Mul(x, y) }
	add := func(x, y *big.Rat) *big.Rat { return new(big.Rat).Add(x, y) }

	adx, ady := sub(a[0], d[0]), sub(a[1], d[1])
	bdx, bdy := sub(b[0], d[0]), sub(b[1], d[1])
	cdx, cdy := sub(c[0], d[0]), sub(c[1], d[1])

	alift := add(mul(adx, adx), mul(ady, ady))
	blift := add(mul(bdx, bdx), mul(bdy, bdy))
	clift := add(mul(cdx, cdx), mul(cdy, cdy))

	t1 := mul(alift, new(big.Rat).Sub(mul(bdx, cdy), mul(cdx, bdy)))
	t2 := mul(blift, new(big.Rat).Sub(mul(cdx, ady), mul(adx, cdy)))
	t3 := mul(clift, new(big.Rat).Sub(mul(adx, bdy), mul(bdx, ady)))
	return add(add(t1, t2), t3).Sign()
}

// Circumcircle returns the centre and squared radius of the circle through
// a, b and c. ok is false for collinear points.
func Circumcircle(a, b, c orb.Point) (centre orb.Point, r2 float64, ok bool) {
	bx, by := b[0]-a[0], b[1]-a[1]
	cx, cy := c[0]-a[0], c[1]-a[1]
	d := 2 * (bx*cy - by*cx)
	if d == 0 {
		return orb.Point{}, 0, false
	}
	b2 := bx*bx + by*by
	c2 := cx*cx + cy*cy
	ux := (cy*b2 - by*c2) / d
	uy := (bx*c2 - cx*b2) / d
	return orb.Point{a[0] + ux, a[1] + uy}, ux*ux + uy*uy, true
}
