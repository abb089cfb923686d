package facelabel

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/banshee-data/rooftop/internal/roof/arrangement"
	"github.com/banshee-data/rooftop/internal/roof/geom"
	"github.com/banshee-data/rooftop/internal/roof/model"
)

// Ground is the label of faces dominated by ground points.
const Ground = -1

// boundPad keeps degenerate face bounds searchable.
const boundPad = 1e-6

// Accumulator buckets points into arrangement faces. Roof point i keeps
// index i; ground point j is stored as nRoof+j.
type Accumulator struct {
	arr     *arrangement.Arrangement
	xy      []orb.Point
	plane   []int
	nRoof   int
	buckets map[arrangement.FaceID][]int
}

// NewAccumulator projects the roof points (labelled with their plane ids)
// and the optional ground points to the plane. labels must have one entry
// per roof point.
func NewAccumulator(roof model.PointCloud, labels []int, ground model.PointCloud) *Accumulator {
	acc := &Accumulator{buckets: map[arrangement.FaceID][]int{}}
	if roof != nil {
		acc.nRoof = roof.Len()
		for i := 0; i < roof.Len(); i++ {
			v := roof.At(i)
			acc.xy = append(acc.xy, orb.Point{v.X, v.Y})
			acc.plane = append(acc.plane, labels[i])
		}
	}
	if ground != nil {
		for i := 0; i < ground.Len(); i++ {
			v := ground.At(i)
			acc.xy = append(acc.xy, orb.Point{v.X, v.Y})
			acc.plane = append(acc.plane, Ground)
		}
	}
	return acc
}

// Attach buckets every point into the current faces of arr and subscribes
// to its events.
func (acc *Accumulator) Attach(arr *arrangement.Arrangement) {
	acc.arr = arr
	all := make([]int, len(acc.xy))
	for i := range all {
		all[i] = i
	}
	acc.buckets = map[arrangement.FaceID][]int{}
	acc.distribute(all, arr.Faces())
	arr.Subscribe(acc.handle)
}

func (acc *Accumulator) handle(e arrangement.Event) {
	switch ev := e.(type) {
	case arrangement.FaceSplit:
		pts := acc.buckets[ev.Old]
		delete(acc.buckets, ev.Old)
		var faces []*arrangement.Face
		for _, id := range ev.New {
			if f := acc.arr.Face(id); f != nil {
				faces = append(faces, f)
			}
		}
		acc.distribute(pts, faces)
	case arrangement.FacesMerged:
		for _, id := range ev.From {
			acc.buckets[ev.Into] = append(acc.buckets[ev.Into], acc.buckets[id]...)
			delete(acc.buckets, id)
		}
		sort.Ints(acc.buckets[ev.Into])
	}
}

// faceItem adapts a face to rtreego.Spatial.
type faceItem struct {
	face *arrangement.Face
	rect rtreego.Rect
}

func (f *faceItem) Bounds() rtreego.Rect { return f.rect }

func boundRect(b orb.Bound) rtreego.Rect {
	r, err := rtreego.NewRect(
		rtreego.Point{b.Min[0] - boundPad, b.Min[1] - boundPad},
		[]float64{b.Max[0] - b.Min[0] + 2*boundPad, b.Max[1] - b.Min[1] + 2*boundPad},
	)
	if err != nil {
		return rtreego.Point{b.Min[0], b.Min[1]}.ToRect(boundPad)
	}
	return r
}

// distribute moves pts into the first face containing them, boundary
// included, or into the unbounded bucket.
func (acc *Accumulator) distribute(pts []int, faces []*arrangement.Face) {
	if len(pts) == 0 {
		return
	}
	items := make([]rtreego.Spatial, 0, len(faces))
	for _, f := range faces {
		items = append(items, &faceItem{face: f, rect: boundRect(f.Bound())})
	}
	tree := rtreego.NewTree(2, 4, 16, items...)
	for _, i := range pts {
		p := acc.xy[i]
		hits := tree.SearchIntersect(rtreego.Point{p[0], p[1]}.ToRect(boundPad))
		sort.Slice(hits, func(a, b int) bool {
			return hits[a].(*faceItem).face.ID < hits[b].(*faceItem).face.ID
		})
		target := arrangement.Unbounded
		for _, h := range hits {
			if f := h.(*faceItem).face; f.Locate(p) != geom.Outside {
				target = f.ID
				break
			}
		}
		acc.buckets[target] = append(acc.buckets[target], i)
	}
}

// Roof returns the roof point indices inside a face.
func (acc *Accumulator) Roof(id arrangement.FaceID) []int {
	var out []int
	for _, i := range acc.buckets[id] {
		if i < acc.nRoof {
			out = append(out, i)
		}
	}
	return out
}

// Counts returns the number of points per plane id in a face. Ground points
// are counted under Ground and unsegmented roof points under
// model.Unassigned.
func (acc *Accumulator) Counts(id arrangement.FaceID) map[int]int {
	out := map[int]int{}
	for _, i := range acc.buckets[id] {
		out[acc.plane[i]]++
	}
	return out
}

// Len returns the number of points bucketed into a face.
func (acc *Accumulator) Len(id arrangement.FaceID) int { return len(acc.buckets[id]) }

// Total returns the number of points across all buckets.
func (acc *Accumulator) Total() int {
	n := 0
	for _, b := range acc.buckets {
		n += len(b)
	}
	return n
}
