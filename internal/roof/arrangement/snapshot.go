package arrangement

import "github.com/paulmach/orb"

// Snapshot is a value copy of the arrangement state, comparable with
// cmp.Diff.
type Snapshot struct {
	Faces []FaceSnapshot
	Edges []EdgeSnapshot
}

// FaceSnapshot captures one bounded face.
type FaceSnapshot struct {
	ID       FaceID
	Outer    orb.Ring
	Holes    []orb.Ring
	Label    int
	Interior bool
}

// EdgeSnapshot captures one live edge.
type EdgeSnapshot struct {
	A, B       orb.Point
	Constraint bool
	PlaneIDs   []int
}

// Snapshot copies the current faces and edges in id order.
func (a *Arrangement) Snapshot() Snapshot {
	var s Snapshot
	for _, f := range a.Faces() {
		fs := FaceSnapshot{
			ID:       f.ID,
			Outer:    append(orb.Ring(nil), f.Outer...),
			Label:    f.Label,
			Interior: f.Interior(),
		}
		for _, h := range f.Holes {
			fs.Holes = append(fs.Holes, append(orb.Ring(nil), h...))
		}
		s.Faces = append(s.Faces, fs)
	}
	for _, e := range a.Edges() {
		s.Edges = append(s.Edges, EdgeSnapshot{
			A:          a.vertices[e.A].P,
			B:          a.vertices[e.B].P,
			Constraint: e.Constraint,
			PlaneIDs:   append([]int(nil), e.PlaneIDs...),
		})
	}
	return s
}
