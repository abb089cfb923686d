// Package roof reconstructs the polygonal roof of one building from LIDAR
// points and a 2D footprint.
//
// Responsibilities:
//   - Run the stages in order: plane detection, alpha-shape outlines and
//     boundary lines, plane intersections, regularisation, arrangement
//     build and cleanup, face labelling, triangulation.
//   - Report a typed failure (see model) scoped to the single call.
//
// Key types:
//   - Input: roof points, optional ground points and the footprint.
//   - Config: one block per stage, see DefaultConfig.
//   - Result: planes, mesh, per-face attributes and stage timings.
//
// Dependency rule: stage packages never import roof. Reconstruct shares no
// mutable state, so callers may run one goroutine per building.
package roof
