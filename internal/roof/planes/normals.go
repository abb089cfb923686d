package planes

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rooftop/internal/roof/model"
)

// normalEstimate is the local surface estimate of a single point.
type normalEstimate struct {
	normal    r3.Vec
	defined   bool
	curvature float64
}

// estimateNormals fits a plane to each point's neighbourhood. Normals stored
// on the cloud take precedence; the neighbourhood fit still provides the
// curvature used to order seeds.
func estimateNormals(pc model.PointCloud, adj [][]int) []normalEstimate {
	out := make([]normalEstimate, pc.Len())
	for i := range out {
		var m moments
		m.add(pc.At(i))
		for _, j := range adj[i] {
			m.add(pc.At(j))
		}
		est := normalEstimate{curvature: math.Inf(1)}
		if f, ok := m.fit(); ok {
			est = normalEstimate{normal: f.normal, defined: true, curvature: f.curvature}
		}
		if n, ok := pc.Normal(i); ok {
			n = r3.Unit(n)
			if n.Z < 0 {
				n = r3.Scale(-1, n)
			}
			est.normal = n
			est.defined = true
		}
		out[i] = est
	}
	return out
}
