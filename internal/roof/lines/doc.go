// Package lines extracts 2D line segments for the arrangement: boundary
// lines fitted along each plane's outline rings, and ridge or valley lines
// where two adjacent planes intersect.
//
// Dependency rule: lines may depend on model, regiongrow and planes.
package lines
