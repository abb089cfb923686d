// Package geom holds the 2D predicates the roof pipeline relies on for
// topological consistency: orientation, point-in-ring, segment
// intersection and interior sample points.
//
// Orientation is evaluated in floating point first and falls back to exact
// rational arithmetic when the result lies inside the rounding error bound,
// so two calls with the same inputs always agree on the sign.
//
// Dependency rule: geom depends only on orb types. It must not import any
// other roof package.
package geom
