// Package model owns the data shared by every stage of the roof pipeline:
// the point cloud accessor, the footprint, detected planes, 2D segments,
// the error kinds and the per-invocation logger.
//
// Key types: PointCloud, Footprint, Plane, Segment, StageError, Logger.
//
// Dependency rule: model may depend on geom, but never on a stage package.
package model
