package arrangement

// Event is one of FaceSplit, FacesMerged, VerticesMerged or EdgeRemoved.
type Event interface {
	isEvent()
}

// FaceSplit reports that Old no longer exists and its area is now covered
// by the New faces. Old may be Unbounded.
type FaceSplit struct {
	Old FaceID
	New []FaceID
}

// FacesMerged reports that the From faces were absorbed into Into. Into
// may be Unbounded.
type FacesMerged struct {
	Into FaceID
	From []FaceID
}

// VerticesMerged reports that vertex From was snapped onto Into.
type VerticesMerged struct {
	From, Into VertexID
}

// EdgeRemoved reports that an edge left the arrangement.
type EdgeRemoved struct {
	Edge EdgeID
}

func (FaceSplit) isEvent()      {}
func (FacesMerged) isEvent()    {}
func (VerticesMerged) isEvent() {}
func (EdgeRemoved) isEvent()    {}

// Listener receives events after the arrangement reflects them.
type Listener func(Event)

// Subscribe registers a listener.
func (a *Arrangement) Subscribe(l Listener) {
	a.listeners = append(a.listeners, l)
}

func (a *Arrangement) emit(e Event) {
	for _, l := range a.listeners {
		l(e)
	}
}
