package planes

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/rooftop/internal/roof/model"
)

// regularise snaps planes onto idealised relationships. Each pass is
// enabled by its Config toggle; planes are visited by inlier count so the
// better supported plane keeps its orientation.
func regularise(pc model.PointCloud, planes []*model.Plane, cfg Config, log *model.Logger) []*model.Plane {
	if len(planes) < 2 {
		return planes
	}
	sort.SliceStable(planes, func(a, b int) bool {
		return len(planes[a].Inliers) > len(planes[b].Inliers)
	})
	maxAngle := cfg.MaxAngleDeg * math.Pi / 180

	if cfg.RegularizeParallelism {
		regulariseParallel(planes, maxAngle)
	}
	if cfg.RegularizeOrthogonality {
		regulariseOrthogonal(planes, maxAngle)
	}
	if cfg.RegularizeAxisSymmetry {
		regulariseSymmetric(planes, maxAngle)
	}
	for _, pl := range planes {
		if pl.Regularised != 0 {
			recentre(pc, pl)
		}
	}
	if cfg.RegularizeCoplanarity {
		before := len(planes)
		planes = mergeCoplanar(pc, planes, maxAngle, cfg.MaxOffset)
		if merged := before - len(planes); merged > 0 {
			log.Diagf("planes: merged %d coplanar planes", merged)
		}
	}
	return planes
}

func angleBetween(a, b r3.Vec) float64 {
	c := r3.Dot(r3.Unit(a), r3.Unit(b))
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// regulariseParallel averages the normals of planes that are within
// maxAngle of a better supported plane.
func regulariseParallel(planes []*model.Plane, maxAngle float64) {
	used := make([]bool, len(planes))
	for i := range planes {
		if used[i] {
			continue
		}
		group := []int{i}
		for j := i + 1; j < len(planes); j++ {
			if !used[j] && angleBetween(planes[i].Normal, planes[j].Normal) < maxAngle {
				group = append(group, j)
			}
		}
		if len(group) < 2 {
			continue
		}
		var sum r3.Vec
		for _, g := range group {
			used[g] = true
			sum = r3.Add(sum, r3.Scale(float64(len(planes[g].Inliers)), planes[g].Normal))
		}
		n := r3.Unit(sum)
		for _, g := range group {
			planes[g].Normal = n
			planes[g].Regularised |= model.FlagParallel
		}
	}
}

// regulariseOrthogonal rotates a plane whose normal is within maxAngle of
// being perpendicular to a better supported plane onto exact orthogonality.
func regulariseOrthogonal(planes []*model.Plane, maxAngle float64) {
	for i := range planes {
		for j := i + 1; j < len(planes); j++ {
			a, b := planes[i].Normal, planes[j].Normal
			if math.Abs(angleBetween(a, b)-math.Pi/2) >= maxAngle {
				continue
			}
			nb := r3.Sub(b, r3.Scale(r3.Dot(a, b), a))
			if r3.Norm(nb) < 1e-9 {
				continue
			}
			nb = r3.Unit(nb)
			if nb.Z < 0 {
				nb = r3.Scale(-1, nb)
			}
			planes[j].Normal = nb
			planes[i].Regularised |= model.FlagOrthogonal
			planes[j].Regularised |= model.FlagOrthogonal
		}
	}
}

// regulariseSymmetric makes pairs of slanted planes that face opposite
// horizontal directions with similar slopes exact mirror images about the
// vertical.
func regulariseSymmetric(planes []*model.Plane, maxAngle float64) {
	paired := make([]bool, len(planes))
	for i := range planes {
		if paired[i] {
			continue
		}
		for j := i + 1; j < len(planes); j++ {
			if paired[j] {
				continue
			}
			a, b := planes[i].Normal, planes[j].Normal
			ha := r3.Vec{X: a.X, Y: a.Y}
			hb := r3.Vec{X: b.X, Y: b.Y}
			if r3.Norm(ha) < 1e-6 || r3.Norm(hb) < 1e-6 {
				continue
			}
			slopeA, slopeB := math.Acos(math.Min(1, a.Z)), math.Acos(math.Min(1, b.Z))
			if math.Abs(slopeA-slopeB) >= maxAngle || math.Pi-angleBetween(ha, hb) >= maxAngle {
				continue
			}
			wa, wb := float64(len(planes[i].Inliers)), float64(len(planes[j].Inliers))
			slope := (wa*slopeA + wb*slopeB) / (wa + wb)
			dir := r3.Unit(r3.Sub(r3.Unit(ha), r3.Unit(hb)))
			sin, cos := math.Sin(slope), math.Cos(slope)
			planes[i].Normal = r3.Vec{X: dir.X * sin, Y: dir.Y * sin, Z: cos}
			planes[j].Normal = r3.Vec{X: -dir.X * sin, Y: -dir.Y * sin, Z: cos}
			planes[i].Regularised |= model.FlagAxisSymmetry
			planes[j].Regularised |= model.FlagAxisSymmetry
			paired[i], paired[j] = true, true
			break
		}
	}
}

// recentre moves the plane through the centroid of its inliers, keeping the
// normal.
func recentre(pc model.PointCloud, pl *model.Plane) {
	var m moments
	for _, idx := range pl.Inliers {
		m.add(pc.At(idx))
	}
	pl.Offset = -r3.Dot(pl.Normal, m.centroid())
}

// mergeCoplanar merges planes whose normals agree within maxAngle and whose
// inlier centroids lie within maxOffset of the better supported plane. The
// merged plane is refit through the union of inliers.
func mergeCoplanar(pc model.PointCloud, planes []*model.Plane, maxAngle, maxOffset float64) []*model.Plane {
	alive := make([]bool, len(planes))
	for i := range alive {
		alive[i] = true
	}
	for i := range planes {
		if !alive[i] {
			continue
		}
		for j := i + 1; j < len(planes); j++ {
			if !alive[j] || angleBetween(planes[i].Normal, planes[j].Normal) >= maxAngle {
				continue
			}
			var m moments
			for _, idx := range planes[j].Inliers {
				m.add(pc.At(idx))
			}
			if math.Abs(planes[i].SignedDistance(m.centroid())) >= maxOffset {
				continue
			}
			planes[i].Inliers = append(planes[i].Inliers, planes[j].Inliers...)
			planes[i].Regularised |= model.FlagCoplanar | planes[j].Regularised
			alive[j] = false

			var all moments
			for _, idx := range planes[i].Inliers {
				all.add(pc.At(idx))
			}
			if f, ok := all.fit(); ok {
				planes[i].Normal, planes[i].Offset = f.normal, f.offset
			}
		}
	}
	out := planes[:0]
	for i, pl := range planes {
		if alive[i] {
			out = append(out, pl)
		}
	}
	return out
}
