package lines

import (
	"math"

	"github.com/paulmach/orb"
)

// lineCovarianceEpsilon is the variance below which a point set is treated
// as a single point.
const lineCovarianceEpsilon = 1e-12

// lineFit is a 2D line through centre along the unit direction dir.
type lineFit struct {
	centre orb.Point
	dir    orb.Point
	// linearity is λmin/(λmin+λmax); 0 for perfectly collinear points.
	linearity float64
}

func (l lineFit) distance(p orb.Point) float64 {
	dx, dy := p[0]-l.centre[0], p[1]-l.centre[1]
	return math.Abs(dx*l.dir[1] - dy*l.dir[0])
}

func (l lineFit) param(p orb.Point) float64 {
	return (p[0]-l.centre[0])*l.dir[0] + (p[1]-l.centre[1])*l.dir[1]
}

func (l lineFit) at(t float64) orb.Point {
	return orb.Point{l.centre[0] + t*l.dir[0], l.centre[1] + t*l.dir[1]}
}

// lineMoments accumulates 2D moments relative to the first point.
type lineMoments struct {
	ref           orb.Point
	n             float64
	sx, sy        float64
	sxx, sxy, syy float64
}

func (m *lineMoments) add(p orb.Point) {
	if m.n == 0 {
		m.ref = p
	}
	dx, dy := p[0]-m.ref[0], p[1]-m.ref[1]
	m.n++
	m.sx += dx
	m.sy += dy
	m.sxx += dx * dx
	m.sxy += dx * dy
	m.syy += dy * dy
}

// fit computes the principal axis of the accumulated points with the closed
// form eigen decomposition of the 2x2 covariance matrix.
func (m *lineMoments) fit() (lineFit, bool) {
	if m.n < 2 {
		return lineFit{}, false
	}
	mx, my := m.sx/m.n, m.sy/m.n
	c00 := m.sxx/m.n - mx*mx
	c01 := m.sxy/m.n - mx*my
	c11 := m.syy/m.n - my*my

	// λ = (trace ± sqrt(trace² - 4*det)) / 2
	trace := c00 + c11
	if trace < lineCovarianceEpsilon {
		return lineFit{}, false
	}
	det := c00*c11 - c01*c01
	disc := math.Sqrt(math.Max(0, trace*trace/4-det))
	lMax := trace/2 + disc
	lMin := trace/2 - disc

	var dx, dy float64
	if math.Abs(c01) > lineCovarianceEpsilon {
		dx, dy = lMax-c11, c01
	} else if c00 >= c11 {
		dx, dy = 1, 0
	} else {
		dx, dy = 0, 1
	}
	norm := math.Hypot(dx, dy)
	return lineFit{
		centre:    orb.Point{m.ref[0] + mx, m.ref[1] + my},
		dir:       orb.Point{dx / norm, dy / norm},
		linearity: math.Max(0, lMin) / trace,
	}, true
}

func fitPoints(pts []orb.Point) (lineFit, bool) {
	var m lineMoments
	for _, p := range pts {
		m.add(p)
	}
	return m.fit()
}
