// Package arrangement maintains the planar subdivision induced by the
// footprint and the regularised segments.
//
// Edits (insertion, vertex snapping, edge removal) change vertices and edges
// only; faces are recomputed from half-edge cycles after each edit and
// matched to the previous faces through interior sample points. The
// matching is published to listeners as typed events (FaceSplit,
// FacesMerged, VerticesMerged, EdgeRemoved) so per-face bookkeeping can
// follow along.
//
// Dependency rule: arrangement may depend on geom and model only.
package arrangement
