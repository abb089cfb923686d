package arrangement

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/banshee-data/rooftop/internal/roof/geom"
	"github.com/banshee-data/rooftop/internal/roof/model"
)

// InsertFootprint adds every footprint ring edge as a constraint edge.
func (a *Arrangement) InsertFootprint() error {
	for _, s := range a.footprint.Edges() {
		va := a.snapPoint(s.Start, true)
		vb := a.snapPoint(s.End, true)
		a.insertBetween(va, vb, true, nil)
	}
	a.rebuild()
	if len(a.faces) == 0 {
		return model.NewStageError("arrangement", model.ErrArrangementInconsistency, "footprint produced no bounded face")
	}
	a.log.Diagf("arrangement: footprint inserted, %d vertices %d edges %d faces", a.liveVertices(), len(a.Edges()), len(a.faces))
	return nil
}

// Insert adds one non-constraint segment and updates the faces. It returns
// false when the segment was skipped as degenerate or over the complexity
// budget.
func (a *Arrangement) Insert(s model.Segment) bool {
	if a.inserted >= a.cfg.MaxComplexity {
		return false
	}
	if s.Length() <= a.cfg.VertexTol {
		a.log.Tracef("arrangement: skip degenerate segment %v-%v", s.Start, s.End)
		return false
	}
	va := a.snapPoint(s.Start, false)
	vb := a.snapPoint(s.End, false)
	if va == vb {
		return false
	}
	a.insertBetween(va, vb, s.Kind == model.KindFootprint, s.PlaneIDs)
	a.inserted++
	a.rebuild()
	return true
}

// InsertAll inserts segments in order until MaxComplexity is reached and
// returns the number inserted. Callers pass segments ranked by priority so
// the budget drops the least trusted ones.
func (a *Arrangement) InsertAll(segs []model.Segment) int {
	n := 0
	for i, s := range segs {
		if a.inserted >= a.cfg.MaxComplexity {
			a.log.Opsf("arrangement: complexity budget %d reached, dropped %d segments", a.cfg.MaxComplexity, len(segs)-i)
			break
		}
		if a.Insert(s) {
			n++
		}
	}
	return n
}

func (a *Arrangement) liveVertices() int {
	n := 0
	for _, v := range a.vertices {
		if v.alive {
			n++
		}
	}
	return n
}

func (a *Arrangement) addVertex(p orb.Point, fixed bool) VertexID {
	id := VertexID(len(a.vertices))
	a.vertices = append(a.vertices, Vertex{ID: id, P: p, Fixed: fixed, alive: true})
	return id
}

// snapPoint returns a vertex for p, reusing a vertex within VertexTol or
// splitting an edge passing within VertexTol.
func (a *Arrangement) snapPoint(p orb.Point, fixed bool) VertexID {
	if v, ok := a.nearestVertex(p, a.cfg.VertexTol); ok {
		if fixed {
			a.vertices[v].Fixed = true
		}
		return v
	}
	for i := range a.edges {
		e := a.edges[i]
		if !e.alive {
			continue
		}
		pa, pb := a.vertices[e.A].P, a.vertices[e.B].P
		d, t := geom.PointSegmentDistance(p, pa, pb)
		if d <= a.cfg.VertexTol && t > 0 && t < 1 {
			v := a.addVertex(geom.Lerp(pa, pb, t), fixed)
			a.splitEdge(e.ID, v)
			return v
		}
	}
	return a.addVertex(p, fixed)
}

func (a *Arrangement) nearestVertex(p orb.Point, tol float64) (VertexID, bool) {
	best, bestD := VertexID(-1), tol
	for _, v := range a.vertices {
		if !v.alive {
			continue
		}
		if d := geom.Dist(v.P, p); d <= bestD {
			best, bestD = v.ID, d
		}
	}
	return best, best >= 0
}

// splitEdge shortens e to end at v and adds the remainder v-B.
func (a *Arrangement) splitEdge(id EdgeID, v VertexID) EdgeID {
	e := a.edges[id]
	a.edges[id].B = v
	return a.addEdge(v, e.B, e.Constraint, e.PlaneIDs)
}

// addEdge adds u-v, folding it into an existing edge between the same
// vertices.
func (a *Arrangement) addEdge(u, v VertexID, constraint bool, planes []int) EdgeID {
	if u == v {
		return -1
	}
	if id, ok := a.findEdge(u, v); ok {
		a.edges[id].Constraint = a.edges[id].Constraint || constraint
		a.edges[id].PlaneIDs = model.MergePlaneIDs(a.edges[id].PlaneIDs, planes)
		return id
	}
	id := EdgeID(len(a.edges))
	a.edges = append(a.edges, Edge{
		ID:         id,
		A:          u,
		B:          v,
		Constraint: constraint,
		PlaneIDs:   append([]int(nil), planes...),
		alive:      true,
	})
	return id
}

func (a *Arrangement) findEdge(u, v VertexID) (EdgeID, bool) {
	for _, e := range a.edges {
		if e.alive && ((e.A == u && e.B == v) || (e.A == v && e.B == u)) {
			return e.ID, true
		}
	}
	return -1, false
}

func (a *Arrangement) removeEdge(id EdgeID) {
	if !a.edges[id].alive {
		return
	}
	a.edges[id].alive = false
	a.emit(EdgeRemoved{Edge: id})
}

// insertBetween adds the polyline from va to vb through every vertex and
// crossing it meets, splitting the crossed edges.
func (a *Arrangement) insertBetween(va, vb VertexID, constraint bool, planes []int) {
	type hit struct {
		t float64
		v VertexID
	}
	pa, pb := a.vertices[va].P, a.vertices[vb].P
	hits := []hit{{0, va}, {1, vb}}

	n := len(a.edges)
	for i := 0; i < n; i++ {
		e := a.edges[i]
		if !e.alive {
			continue
		}
		pc, pd := a.vertices[e.A].P, a.vertices[e.B].P
		nearC, nearD := false, false
		for _, w := range []VertexID{e.A, e.B} {
			if w == va || w == vb {
				continue
			}
			d, t := geom.PointSegmentDistance(a.vertices[w].P, pa, pb)
			if d <= a.cfg.VertexTol && t > 0 && t < 1 {
				hits = append(hits, hit{t, w})
				if w == e.A {
					nearC = true
				} else {
					nearD = true
				}
			}
		}
		if nearC || nearD || e.A == va || e.A == vb || e.B == va || e.B == vb {
			continue
		}
		if !geom.ProperCrossing(pa, pb, pc, pd) {
			continue
		}
		t, _, ok := geom.LineIntersection(pa, pb, pc, pd)
		if !ok {
			continue
		}
		x := geom.Lerp(pa, pb, t)
		v, found := a.nearestVertex(x, a.cfg.VertexTol)
		if !found {
			v = a.addVertex(x, false)
		}
		if v != e.A && v != e.B {
			a.splitEdge(e.ID, v)
		}
		hits = append(hits, hit{t, v})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].t < hits[j].t })
	prev := hits[0].v
	for _, h := range hits[1:] {
		if h.v == prev {
			continue
		}
		a.addEdge(prev, h.v, constraint, planes)
		prev = h.v
	}
}
