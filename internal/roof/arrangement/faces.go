package arrangement

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/banshee-data/rooftop/internal/roof/geom"
)

// minFaceArea separates face cycles from the zero-area cycles around trees.
const minFaceArea = 1e-12

// halfEdge is edge e traversed from A to B (rev false) or B to A.
type halfEdge struct {
	e   EdgeID
	rev bool
}

type cycle struct {
	halves []halfEdge
	ring   orb.Ring
	area   float64
	comp   int
}

func (a *Arrangement) tail(h halfEdge) VertexID {
	if h.rev {
		return a.edges[h.e].B
	}
	return a.edges[h.e].A
}

func (a *Arrangement) head(h halfEdge) VertexID {
	if h.rev {
		return a.edges[h.e].A
	}
	return a.edges[h.e].B
}

// rebuild recomputes the bounded faces from the current edges and
// reconciles them with the previous faces.
func (a *Arrangement) rebuild() {
	out := map[VertexID][]halfEdge{}
	for _, e := range a.edges {
		if !e.alive {
			continue
		}
		out[e.A] = append(out[e.A], halfEdge{e.ID, false})
		out[e.B] = append(out[e.B], halfEdge{e.ID, true})
	}
	angle := func(h halfEdge) float64 {
		p, q := a.vertices[a.tail(h)].P, a.vertices[a.head(h)].P
		return math.Atan2(q[1]-p[1], q[0]-p[0])
	}
	for v, hs := range out {
		sort.SliceStable(hs, func(i, j int) bool { return angle(hs[i]) < angle(hs[j]) })
		out[v] = hs
	}
	// next follows u->v with the first half-edge clockwise from v->u.
	next := func(h halfEdge) halfEdge {
		v := a.head(h)
		twin := halfEdge{h.e, !h.rev}
		hs := out[v]
		for i, c := range hs {
			if c == twin {
				return hs[(i-1+len(hs))%len(hs)]
			}
		}
		return twin
	}

	comp := a.edgeComponents()
	visited := map[halfEdge]bool{}
	var cycles []cycle
	for _, e := range a.edges {
		if !e.alive {
			continue
		}
		for _, start := range []halfEdge{{e.ID, false}, {e.ID, true}} {
			if visited[start] {
				continue
			}
			var c cycle
			h := start
			for !visited[h] {
				visited[h] = true
				c.halves = append(c.halves, h)
				c.ring = append(c.ring, a.vertices[a.tail(h)].P)
				h = next(h)
			}
			c.area = geom.RingSignedArea(c.ring)
			c.comp = comp[e.ID]
			cycles = append(cycles, c)
		}
	}

	// Positive cycles bound faces; the rest are holes of the smallest face
	// of another component that contains them.
	type draft struct {
		outer cycle
		holes []cycle
	}
	var drafts []*draft
	for _, c := range cycles {
		if c.area > minFaceArea {
			drafts = append(drafts, &draft{outer: c})
		}
	}
	for _, c := range cycles {
		if c.area > minFaceArea {
			continue
		}
		var host *draft
		for _, d := range drafts {
			if d.outer.comp == c.comp {
				continue
			}
			if geom.LocateInRing(c.ring[0], d.outer.ring) != geom.Inside {
				continue
			}
			if host == nil || d.outer.area < host.outer.area {
				host = d
			}
		}
		if host != nil {
			host.holes = append(host.holes, c)
		}
	}

	fresh := make([]*Face, 0, len(drafts))
	owner := map[halfEdge]int{}
	for i, d := range drafts {
		f := &Face{Outer: d.outer.ring}
		area := d.outer.area
		perim := geom.Perimeter(geom.Close(d.outer.ring))
		edges := map[EdgeID]bool{}
		for _, h := range d.outer.halves {
			owner[h] = i
			edges[h.e] = true
		}
		for _, hc := range d.holes {
			f.Holes = append(f.Holes, hc.ring)
			area += hc.area
			perim += geom.Perimeter(geom.Close(hc.ring))
			for _, h := range hc.halves {
				owner[h] = i
				edges[h.e] = true
			}
		}
		f.Area = area
		f.Perimeter = perim
		for id := range edges {
			f.Edges = append(f.Edges, id)
		}
		sort.Slice(f.Edges, func(x, y int) bool { return f.Edges[x] < f.Edges[y] })
		f.bound = geom.Close(f.Outer).Bound()
		if p, ok := geom.InteriorPoint(f.Outer, f.Holes); ok {
			f.Sample = p
		} else {
			f.Sample = f.bound.Center()
		}
		f.InFootprint = a.footprint.Contains(f.Sample)
		fresh = append(fresh, f)
	}

	ids := a.reconcile(fresh)

	a.faces = make(map[FaceID]*Face, len(fresh))
	for i, f := range fresh {
		f.ID = ids[i]
		a.faces[f.ID] = f
	}
	a.edgeFaces = map[EdgeID][2]FaceID{}
	for _, e := range a.edges {
		if !e.alive {
			continue
		}
		var sides [2]FaceID
		for k, h := range []halfEdge{{e.ID, false}, {e.ID, true}} {
			if i, ok := owner[h]; ok {
				sides[k] = ids[i]
			}
		}
		a.edgeFaces[e.ID] = sides
	}
	a.flushEvents()
}

// edgeComponents labels edges by connected component.
func (a *Arrangement) edgeComponents() map[EdgeID]int {
	parent := make([]int, len(a.vertices))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for _, e := range a.edges {
		if e.alive {
			ra, rb := find(int(e.A)), find(int(e.B))
			if ra != rb {
				parent[rb] = ra
			}
		}
	}
	out := map[EdgeID]int{}
	for _, e := range a.edges {
		if e.alive {
			out[e.ID] = find(int(e.A))
		}
	}
	return out
}

// locateIn returns the face in faces containing p, or Unbounded.
func locateIn(faces []*Face, ids []FaceID, p orb.Point) FaceID {
	for i, f := range faces {
		if f.Locate(p) != geom.Outside {
			return ids[i]
		}
	}
	return Unbounded
}

// reconcile assigns ids to freshly built faces. Old and new faces are linked
// when one's sample lies in the other; each linked group keeps, splits or
// merges identities and the matching events are queued.
func (a *Arrangement) reconcile(fresh []*Face) []FaceID {
	olds := a.Faces()
	oldIDs := make([]FaceID, len(olds))
	for i, f := range olds {
		oldIDs[i] = f.ID
	}
	// Temporary ids for new faces are negative so both sides share one
	// union-find keyed by FaceID.
	tmp := make([]FaceID, len(fresh))
	for i := range fresh {
		tmp[i] = FaceID(-(i + 1))
	}
	const newUnbounded = FaceID(math.MinInt32)

	parent := map[FaceID]FaceID{}
	var find func(FaceID) FaceID
	find = func(x FaceID) FaceID {
		if _, ok := parent[x]; !ok {
			parent[x] = x
		}
		for parent[x] != x {
			x = parent[x]
		}
		return x
	}
	union := func(x, y FaceID) {
		rx, ry := find(x), find(y)
		if rx != ry {
			parent[ry] = rx
		}
	}
	union(Unbounded, newUnbounded)
	for i, f := range fresh {
		find(tmp[i])
		union(tmp[i], locateIn(olds, oldIDs, f.Sample))
	}
	for _, f := range olds {
		host := locateIn(fresh, tmp, f.Sample)
		if host == Unbounded {
			host = newUnbounded
		}
		union(f.ID, host)
	}

	type group struct {
		olds      []*Face
		news      []int
		unbounded bool
	}
	groups := map[FaceID]*group{}
	var order []FaceID
	get := func(root FaceID) *group {
		g, ok := groups[root]
		if !ok {
			g = &group{}
			groups[root] = g
			order = append(order, root)
		}
		return g
	}
	get(find(Unbounded)).unbounded = true
	for _, f := range olds {
		g := get(find(f.ID))
		g.olds = append(g.olds, f)
	}
	for i := range fresh {
		g := get(find(tmp[i]))
		g.news = append(g.news, i)
	}

	ids := make([]FaceID, len(fresh))
	allocate := func(news []int, label int) []FaceID {
		var out []FaceID
		for _, i := range news {
			ids[i] = a.nextFace
			fresh[i].Label = label
			out = append(out, a.nextFace)
			a.nextFace++
		}
		return out
	}
	for _, root := range order {
		g := groups[root]
		sort.SliceStable(g.olds, func(i, j int) bool {
			if g.olds[i].Area != g.olds[j].Area {
				return g.olds[i].Area > g.olds[j].Area
			}
			return g.olds[i].ID < g.olds[j].ID
		})
		var members []FaceID
		for _, f := range g.olds {
			members = append(members, f.ID)
		}
		label := 0
		if len(g.olds) > 0 {
			label = g.olds[0].Label
		}

		switch {
		case g.unbounded:
			if len(members) > 0 {
				a.queue(FacesMerged{Into: Unbounded, From: members})
			}
			if len(g.news) > 0 {
				a.queue(FaceSplit{Old: Unbounded, New: allocate(g.news, label)})
			}
		case len(g.olds) == 1 && len(g.news) == 1:
			ids[g.news[0]] = g.olds[0].ID
			fresh[g.news[0]].Label = g.olds[0].Label
			fresh[g.news[0]].Excluded = g.olds[0].Excluded
		case len(g.news) == 1:
			into := g.olds[0]
			a.queue(FacesMerged{Into: into.ID, From: members[1:]})
			ids[g.news[0]] = into.ID
			fresh[g.news[0]].Label = label
		case len(g.olds) == 1:
			a.queue(FaceSplit{Old: g.olds[0].ID, New: allocate(g.news, label)})
		default:
			into := g.olds[0]
			a.queue(FacesMerged{Into: into.ID, From: members[1:]})
			a.queue(FaceSplit{Old: into.ID, New: allocate(g.news, label)})
		}
	}
	return ids
}

func (a *Arrangement) queue(e Event) {
	a.pending = append(a.pending, e)
}

// flushEvents publishes the face events of the last rebuild once the new
// faces are in place.
func (a *Arrangement) flushEvents() {
	pending := a.pending
	a.pending = nil
	for _, e := range pending {
		a.emit(e)
	}
}
