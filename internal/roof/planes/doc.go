// Package planes segments a roof point cloud into planar patches.
//
// Responsibilities: k-nearest-neighbour graph construction, PCA normal
// estimation, seed-and-grow plane detection with a running least-squares
// fit, wall rejection, optional plane regularisation and building-level
// roof type classification.
// Key types: Config, Detector, Result.
//
// Dependency rule: planes may depend on model and regiongrow, never on the
// later 2D stages.
package planes
