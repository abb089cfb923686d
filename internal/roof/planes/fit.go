package planes

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// moments accumulates first and second order moments of a point set,
// relative to the first point added to keep large coordinates well
// conditioned.
type moments struct {
	ref                          r3.Vec
	n                            float64
	sx, sy, sz                   float64
	sxx, sxy, sxz, syy, syz, szz float64
}

func (m *moments) add(p r3.Vec) {
	if m.n == 0 {
		m.ref = p
	}
	d := r3.Sub(p, m.ref)
	m.n++
	m.sx += d.X
	m.sy += d.Y
	m.sz += d.Z
	m.sxx += d.X * d.X
	m.sxy += d.X * d.Y
	m.sxz += d.X * d.Z
	m.syy += d.Y * d.Y
	m.syz += d.Y * d.Z
	m.szz += d.Z * d.Z
}

func (m *moments) centroid() r3.Vec {
	if m.n == 0 {
		return r3.Vec{}
	}
	return r3.Add(m.ref, r3.Vec{X: m.sx / m.n, Y: m.sy / m.n, Z: m.sz / m.n})
}

// planeFit is the result of a PCA fit: the unit normal (nz >= 0), the offset
// d of n·p + d = 0 and the curvature λ0/(λ0+λ1+λ2).
type planeFit struct {
	normal    r3.Vec
	offset    float64
	curvature float64
}

// fit solves the total least squares plane through the accumulated points.
// ok is false for fewer than three points or a degenerate spread.
func (m *moments) fit() (planeFit, bool) {
	if m.n < 3 {
		return planeFit{}, false
	}
	mx, my, mz := m.sx/m.n, m.sy/m.n, m.sz/m.n
	cov := mat.NewSymDense(3, []float64{
		m.sxx/m.n - mx*mx, m.sxy/m.n - mx*my, m.sxz/m.n - mx*mz,
		m.sxy/m.n - mx*my, m.syy/m.n - my*my, m.syz/m.n - my*mz,
		m.sxz/m.n - mx*mz, m.syz/m.n - my*mz, m.szz/m.n - mz*mz,
	})

	var es mat.EigenSym
	if !es.Factorize(cov, true) {
		return planeFit{}, false
	}
	values := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	total := values[0] + values[1] + values[2]
	// A line or a single point has two vanishing eigenvalues.
	if total <= 0 || values[1] <= 1e-12*total {
		return planeFit{}, false
	}

	n := r3.Unit(r3.Vec{X: vecs.At(0, 0), Y: vecs.At(1, 0), Z: vecs.At(2, 0)})
	if n.Z < 0 {
		n = r3.Scale(-1, n)
	}
	c := m.centroid()
	return planeFit{
		normal:    n,
		offset:    -r3.Dot(n, c),
		curvature: math.Max(0, values[0]) / total,
	}, true
}
