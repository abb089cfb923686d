// Package mesh lifts labelled arrangement faces to 3D triangles.
//
// Each face is ear-clipped after its holes are bridged into the outer ring,
// its vertices are raised onto the face's plane and per-face quality
// attributes (RMS of the supporting points, elevation percentiles, slope,
// azimuth) are collected.
package mesh
