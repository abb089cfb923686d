package arrangement

import (
	"context"
	"sort"

	"github.com/banshee-data/rooftop/internal/roof/geom"
	"github.com/banshee-data/rooftop/internal/roof/model"
)

// Cleanup snaps near vertices, dissolves redundant and sliver edges, keeps
// the dominant interior region, restores footprint edges and drops
// collinear degree-2 vertices, repeating until nothing changes. Faces must
// be labelled beforehand. A second call on a clean arrangement is a no-op.
func (a *Arrangement) Cleanup(ctx context.Context) error {
	rounds, settled := 0, false
	for ; rounds < a.cfg.MaxCleanupRounds; rounds++ {
		if err := ctx.Err(); err != nil {
			return model.NewStageError("arrangement", model.ErrNonConvergence, "cleanup cancelled: %v", err)
		}
		changed := false
		steps := []struct {
			name string
			run  func() bool
		}{
			{"snap", a.snapVertices},
			{"dissolve", a.dissolveEdges},
			{"slivers", a.dissolveSlivers},
			{"dominant", a.keepDominant},
			{"constraints", a.restoreConstraints},
			{"collinear", a.removeCollinear},
		}
		for _, s := range steps {
			if s.run() {
				a.log.Tracef("arrangement: cleanup round %d step %s changed", rounds, s.name)
				changed = true
			}
		}
		if !changed {
			settled = true
			break
		}
	}
	if !settled {
		a.log.Opsf("arrangement: cleanup hit %d rounds without settling", rounds)
		return model.NewStageError("arrangement", model.ErrNonConvergence,
			"cleanup still changing after %d rounds", rounds)
	}
	if len(a.InteriorFaces()) == 0 {
		return model.NewStageError("arrangement", model.ErrArrangementInconsistency, "no interior face left after cleanup")
	}
	// the last round is the one that changed nothing
	a.log.Diagf("arrangement: cleanup settled in %d rounds, %d interior faces", rounds+1, len(a.InteriorFaces()))
	return nil
}

// snapVertices merges vertices within SnapTol, preferring fixed vertices as
// the survivor, pulls edges onto vertices lying within SnapTol of them and
// removes the loops and duplicates this creates.
func (a *Arrangement) snapVertices() bool {
	var live []VertexID
	for _, v := range a.vertices {
		if v.alive {
			live = append(live, v.ID)
		}
	}
	parent := map[VertexID]VertexID{}
	var find func(VertexID) VertexID
	find = func(x VertexID) VertexID {
		if _, ok := parent[x]; !ok {
			parent[x] = x
		}
		for parent[x] != x {
			x = parent[x]
		}
		return x
	}
	better := func(x, y VertexID) bool {
		vx, vy := a.vertices[x], a.vertices[y]
		if vx.Fixed != vy.Fixed {
			return vx.Fixed
		}
		return x < y
	}
	for i, u := range live {
		for _, v := range live[i+1:] {
			if geom.Dist(a.vertices[u].P, a.vertices[v].P) >= a.cfg.SnapTol {
				continue
			}
			ru, rv := find(u), find(v)
			if ru == rv {
				continue
			}
			if better(rv, ru) {
				ru, rv = rv, ru
			}
			parent[rv] = ru
		}
	}

	changed := false
	for _, v := range live {
		into := find(v)
		if into == v {
			continue
		}
		for i := range a.edges {
			if !a.edges[i].alive {
				continue
			}
			if a.edges[i].A == v {
				a.edges[i].A = into
			}
			if a.edges[i].B == v {
				a.edges[i].B = into
			}
		}
		a.vertices[v].alive = false
		a.emit(VerticesMerged{From: v, Into: into})
		changed = true
	}

	// Vertex on edge.
	for _, v := range a.vertices {
		if !v.alive || a.degree(v.ID) == 0 {
			continue
		}
		for i := range a.edges {
			e := a.edges[i]
			if !e.alive || e.A == v.ID || e.B == v.ID {
				continue
			}
			d, t := geom.PointSegmentDistance(v.P, a.vertices[e.A].P, a.vertices[e.B].P)
			if d < a.cfg.SnapTol && t > 0 && t < 1 {
				a.splitEdge(e.ID, v.ID)
				changed = true
			}
		}
	}

	if a.dedupeEdges() {
		changed = true
	}
	if changed {
		a.rebuild()
	}
	return changed
}

// dedupeEdges removes loops and folds parallel edges into the lowest id.
func (a *Arrangement) dedupeEdges() bool {
	changed := false
	seen := map[[2]VertexID]EdgeID{}
	for i := range a.edges {
		e := a.edges[i]
		if !e.alive {
			continue
		}
		if e.A == e.B {
			a.removeEdge(e.ID)
			changed = true
			continue
		}
		key := [2]VertexID{e.A, e.B}
		if key[0] > key[1] {
			key[0], key[1] = key[1], key[0]
		}
		if keep, ok := seen[key]; ok {
			a.edges[keep].Constraint = a.edges[keep].Constraint || e.Constraint
			a.edges[keep].PlaneIDs = model.MergePlaneIDs(a.edges[keep].PlaneIDs, e.PlaneIDs)
			a.removeEdge(e.ID)
			changed = true
			continue
		}
		seen[key] = e.ID
	}
	return changed
}

// dissolveEdges removes free edges that separate nothing: both sides
// outside the roof, both sides carrying the same label, or the same face on
// both sides (dangling and bridge edges).
func (a *Arrangement) dissolveEdges() bool {
	var drop []EdgeID
	for _, e := range a.edges {
		if !e.alive || e.Constraint {
			continue
		}
		l, r := a.EdgeFaces(e.ID)
		fl, fr := a.faces[l], a.faces[r]
		switch {
		case l == r:
		case !fl.Interior() && !fr.Interior():
		case fl.Interior() && fr.Interior() && fl.Label == fr.Label:
		default:
			continue
		}
		drop = append(drop, e.ID)
	}
	if len(drop) == 0 {
		return false
	}
	for _, id := range drop {
		a.removeEdge(id)
	}
	a.dropIsolated()
	a.rebuild()
	a.log.Tracef("arrangement: dissolved %d edges", len(drop))
	return true
}

// dissolveSlivers merges small or thin interior faces into the interior
// neighbour sharing the longest free boundary with them.
func (a *Arrangement) dissolveSlivers() bool {
	var slivers []*Face
	for _, f := range a.InteriorFaces() {
		if f.Area < a.cfg.SliverArea || f.Compactness() < a.cfg.SliverCompactness {
			slivers = append(slivers, f)
		}
	}
	sort.SliceStable(slivers, func(i, j int) bool { return slivers[i].Area < slivers[j].Area })

	touched := map[FaceID]bool{}
	var drop []EdgeID
	for _, s := range slivers {
		if touched[s.ID] {
			continue
		}
		shared := map[FaceID]float64{}
		for _, eid := range s.Edges {
			if a.edges[eid].Constraint {
				continue
			}
			l, r := a.EdgeFaces(eid)
			other := l
			if l == s.ID {
				other = r
			}
			if other != s.ID && a.faces[other].Interior() {
				shared[other] += a.edgeLength(eid)
			}
		}
		best, bestLen := Unbounded, 0.0
		for id, l := range shared {
			if touched[id] {
				continue
			}
			if l > bestLen || (l == bestLen && id < best) {
				best, bestLen = id, l
			}
		}
		if best == Unbounded {
			continue
		}
		a.log.Tracef("arrangement: sliver face %d (area %.3f) merged into %d", s.ID, s.Area, best)
		s.Label = a.faces[best].Label
		touched[s.ID], touched[best] = true, true
		for _, eid := range s.Edges {
			if a.edges[eid].Constraint {
				continue
			}
			l, r := a.EdgeFaces(eid)
			if (l == s.ID && r == best) || (l == best && r == s.ID) {
				drop = append(drop, eid)
			}
		}
	}
	if len(drop) == 0 {
		return false
	}
	for _, id := range drop {
		a.removeEdge(id)
	}
	a.dropIsolated()
	a.rebuild()
	return true
}

// keepDominant excludes every interior face outside the connected interior
// region of largest area.
func (a *Arrangement) keepDominant() bool {
	faces := a.Faces()
	index := map[FaceID]int{}
	for i, f := range faces {
		index[f.ID] = i
	}
	parent := make([]int, len(faces))
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for _, e := range a.edges {
		if !e.alive {
			continue
		}
		l, r := a.EdgeFaces(e.ID)
		fl, fr := a.faces[l], a.faces[r]
		if fl == nil || fr == nil || !fl.InFootprint || !fr.InFootprint {
			continue
		}
		rl, rr := find(index[l]), find(index[r])
		if rl != rr {
			parent[rr] = rl
		}
	}
	area := map[int]float64{}
	for i, f := range faces {
		if f.InFootprint {
			area[find(i)] += f.Area
		}
	}
	best, bestArea := -1, -1.0
	for i := range faces {
		root := find(i)
		if sum, ok := area[root]; ok && sum > bestArea {
			best, bestArea = root, sum
		}
	}
	changed := false
	for i, f := range faces {
		excluded := f.InFootprint && find(i) != best
		if f.Excluded != excluded {
			f.Excluded = excluded
			changed = true
		}
	}
	if changed {
		a.log.Diagf("arrangement: dominant interior region %.2f m²", bestArea)
	}
	return changed
}

// restoreConstraints reinserts footprint edges that snapping or dissolving
// left uncovered by constraint edges.
func (a *Arrangement) restoreConstraints() bool {
	changed := false
	for _, s := range a.footprint.Edges() {
		length := s.Length()
		if length == 0 {
			continue
		}
		type interval struct{ lo, hi float64 }
		var cover []interval
		for _, e := range a.edges {
			if !e.alive || !e.Constraint {
				continue
			}
			pa, pb := a.vertices[e.A].P, a.vertices[e.B].P
			if geom.PointLineDistance(pa, s.Start, s.End) > a.cfg.SnapTol ||
				geom.PointLineDistance(pb, s.Start, s.End) > a.cfg.SnapTol {
				continue
			}
			ta, tb := geom.Project(pa, s.Start, s.End)*length, geom.Project(pb, s.Start, s.End)*length
			if ta > tb {
				ta, tb = tb, ta
			}
			cover = append(cover, interval{ta, tb})
		}
		sort.Slice(cover, func(i, j int) bool { return cover[i].lo < cover[j].lo })
		reach := 0.0
		gap := false
		for _, c := range cover {
			if c.lo > reach+a.cfg.SnapTol {
				gap = true
				break
			}
			if c.hi > reach {
				reach = c.hi
			}
		}
		if gap || reach < length-a.cfg.SnapTol {
			a.log.Diagf("arrangement: restoring footprint edge %v-%v", s.Start, s.End)
			va := a.snapPoint(s.Start, true)
			vb := a.snapPoint(s.End, true)
			a.insertBetween(va, vb, true, nil)
			changed = true
		}
	}
	if changed {
		a.rebuild()
	}
	return changed
}

// removeCollinear replaces u-v-w chains through degree-2 vertices by u-w
// when v lies within CollinearTol of the line u-w.
func (a *Arrangement) removeCollinear() bool {
	changed := false
	for _, v := range a.vertices {
		if !v.alive {
			continue
		}
		var inc []EdgeID
		for _, e := range a.edges {
			if e.alive && (e.A == v.ID || e.B == v.ID) {
				inc = append(inc, e.ID)
			}
		}
		if len(inc) != 2 {
			continue
		}
		e1, e2 := a.edges[inc[0]], a.edges[inc[1]]
		if e1.Constraint != e2.Constraint {
			continue
		}
		u, w := other(e1, v.ID), other(e2, v.ID)
		if u == w {
			continue
		}
		if _, exists := a.findEdge(u, w); exists {
			continue
		}
		pu, pw := a.vertices[u].P, a.vertices[w].P
		t := geom.Project(v.P, pu, pw)
		if t <= 0 || t >= 1 || geom.PointLineDistance(v.P, pu, pw) > a.cfg.CollinearTol {
			continue
		}
		a.removeEdge(e1.ID)
		a.removeEdge(e2.ID)
		a.addEdge(u, w, e1.Constraint, model.MergePlaneIDs(e1.PlaneIDs, e2.PlaneIDs))
		a.vertices[v.ID].alive = false
		changed = true
	}
	if changed {
		a.rebuild()
	}
	return changed
}

func other(e Edge, v VertexID) VertexID {
	if e.A == v {
		return e.B
	}
	return e.A
}

// dropIsolated retires vertices no live edge uses.
func (a *Arrangement) dropIsolated() {
	used := map[VertexID]bool{}
	for _, e := range a.edges {
		if e.alive {
			used[e.A], used[e.B] = true, true
		}
	}
	for i := range a.vertices {
		if a.vertices[i].alive && !used[a.vertices[i].ID] {
			a.vertices[i].alive = false
		}
	}
}
