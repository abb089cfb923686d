package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/rooftop/internal/roof"
	"github.com/banshee-data/rooftop/internal/roof/mesh"
)

// DefaultConfigPath is the path to the canonical reconstruction defaults file.
const DefaultConfigPath = "config/reconstruction.defaults.json"

// ReconstructionConfig is the on-disk form of roof.Config. Every field is
// optional; unset fields fall back to the stage defaults, so partial files
// are safe.
type ReconstructionConfig struct {
	// Plane detection
	K                       *int     `json:"k,omitempty"`
	DistanceTol             *float64 `json:"distance_tol,omitempty"`
	NormalAngleTol          *float64 `json:"normal_angle_tol,omitempty"`
	MinInliers              *int     `json:"min_inliers,omitempty"`
	MaxPlanes               *int     `json:"max_planes,omitempty"`
	RefitEvery              *int     `json:"refit_every,omitempty"`
	HorizontalThreshold     *float64 `json:"horizontal_threshold,omitempty"`
	HorizontalMinShare      *float64 `json:"horizontal_min_share,omitempty"`
	WallThreshold           *float64 `json:"wall_threshold,omitempty"`
	RegularizeParallelism   *bool    `json:"regularize_parallelism,omitempty"`
	RegularizeOrthogonality *bool    `json:"regularize_orthogonality,omitempty"`
	RegularizeAxisSymmetry  *bool    `json:"regularize_axis_symmetry,omitempty"`
	RegularizeCoplanarity   *bool    `json:"regularize_coplanarity,omitempty"`
	MaxAngleDeg             *float64 `json:"max_angle_deg,omitempty"`
	MaxOffset               *float64 `json:"max_offset,omitempty"`

	// Outline and boundary lines
	Alpha               *float64 `json:"alpha,omitempty"`
	OptimalAlpha        *bool    `json:"optimal_alpha,omitempty"`
	AlphaMaxGrowthSteps *int     `json:"alpha_max_growth_steps,omitempty"`
	AlphaGrowthFactor   *float64 `json:"alpha_growth_factor,omitempty"`
	LineDistThreshold   *float64 `json:"line_dist_threshold,omitempty"`
	LineK               *int     `json:"line_k,omitempty"`
	LineMinCountLo      *int     `json:"line_min_count_lo,omitempty"`
	LineMinCountHi      *int     `json:"line_min_count_hi,omitempty"`
	SnapThreshold       *float64 `json:"snap_threshold,omitempty"`
	LineExtend          *float64 `json:"line_extend,omitempty"`
	PerformChaining     *bool    `json:"perform_chaining,omitempty"`
	RemoveOverlap       *bool    `json:"remove_overlap,omitempty"`
	MinSegmentLength    *float64 `json:"min_segment_length,omitempty"`

	// Plane intersections
	MinNeighbourPoints *int     `json:"min_neighbour_points,omitempty"`
	MinDistToLine      *float64 `json:"min_dist_to_line,omitempty"`
	IntersectMinLength *float64 `json:"intersect_min_length,omitempty"`

	// Regularisation
	AngleTol  *float64 `json:"angle_tol,omitempty"`
	DistTol   *float64 `json:"dist_tol,omitempty"`
	Extension *float64 `json:"extension,omitempty"`

	// Arrangement
	VertexTol         *float64 `json:"vertex_tol,omitempty"`
	SnapTol           *float64 `json:"snap_tol,omitempty"`
	SliverArea        *float64 `json:"sliver_area,omitempty"`
	SliverCompactness *float64 `json:"sliver_compactness,omitempty"`
	CollinearTol      *float64 `json:"collinear_tol,omitempty"`
	MaxComplexity     *int     `json:"max_complexity,omitempty"`
	MaxCleanupRounds  *int     `json:"max_cleanup_rounds,omitempty"`

	// Labelling and mesh
	ClipGround         *bool   `json:"clip_ground,omitempty"`
	DupeThresholdExp   *int    `json:"dupe_threshold_exp,omitempty"`
	OutputAllTriangles *bool   `json:"output_all_triangles,omitempty"`
	Fallback           *string `json:"fallback,omitempty"` // "omit" or "flat"

	Timeout *string `json:"timeout,omitempty"` // duration string like "30s"
}

var defaults = roof.DefaultConfig()

// LoadReconstructionConfig loads a ReconstructionConfig from a JSON file.
// The file must have a .json extension and be under 1MB.
func LoadReconstructionConfig(path string) (*ReconstructionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ReconstructionConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded, intended for
// test setup.
func MustLoadDefaultConfig() *ReconstructionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/roof/*
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadReconstructionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the set fields, then the assembled roof.Config.
func (c *ReconstructionConfig) Validate() error {
	if c.NormalAngleTol != nil && (*c.NormalAngleTol < 0 || *c.NormalAngleTol > 1) {
		return fmt.Errorf("normal_angle_tol must be between 0 and 1, got %f", *c.NormalAngleTol)
	}
	if c.Timeout != nil && *c.Timeout != "" {
		if _, err := time.ParseDuration(*c.Timeout); err != nil {
			return fmt.Errorf("invalid timeout '%s': %w", *c.Timeout, err)
		}
	}
	if c.Fallback != nil {
		switch mesh.Fallback(*c.Fallback) {
		case mesh.FallbackOmit, mesh.FallbackFlat:
		default:
			return fmt.Errorf("fallback must be %q or %q, got %q", mesh.FallbackOmit, mesh.FallbackFlat, *c.Fallback)
		}
	}
	return c.ToRoofConfig().Validate()
}

// ToRoofConfig assembles the stage configuration.
func (c *ReconstructionConfig) ToRoofConfig() roof.Config {
	out := roof.DefaultConfig()

	out.Planes.K = c.GetK()
	out.Planes.DistanceTol = c.GetDistanceTol()
	out.Planes.NormalAngleTol = c.GetNormalAngleTol()
	out.Planes.MinInliers = c.GetMinInliers()
	out.Planes.MaxPlanes = c.GetMaxPlanes()
	out.Planes.RefitEvery = c.GetRefitEvery()
	out.Planes.HorizontalThreshold = c.GetHorizontalThreshold()
	out.Planes.HorizontalMinShare = c.GetHorizontalMinShare()
	out.Planes.WallThreshold = c.GetWallThreshold()
	out.Planes.RegularizeParallelism = getBool(c.RegularizeParallelism, defaults.Planes.RegularizeParallelism)
	out.Planes.RegularizeOrthogonality = getBool(c.RegularizeOrthogonality, defaults.Planes.RegularizeOrthogonality)
	out.Planes.RegularizeAxisSymmetry = getBool(c.RegularizeAxisSymmetry, defaults.Planes.RegularizeAxisSymmetry)
	out.Planes.RegularizeCoplanarity = getBool(c.RegularizeCoplanarity, defaults.Planes.RegularizeCoplanarity)
	out.Planes.MaxAngleDeg = getFloat(c.MaxAngleDeg, defaults.Planes.MaxAngleDeg)
	out.Planes.MaxOffset = getFloat(c.MaxOffset, defaults.Planes.MaxOffset)

	out.Alpha.Alpha = c.GetAlpha()
	out.Alpha.OptimalAlpha = getBool(c.OptimalAlpha, defaults.Alpha.OptimalAlpha)
	out.Alpha.MaxGrowthSteps = c.GetAlphaMaxGrowthSteps()
	out.Alpha.GrowthFactor = getFloat(c.AlphaGrowthFactor, defaults.Alpha.GrowthFactor)
	out.Lines.DistThreshold = getFloat(c.LineDistThreshold, defaults.Lines.DistThreshold)
	out.Lines.K = getInt(c.LineK, defaults.Lines.K)
	out.Lines.MinCountLo, out.Lines.MinCountHi = c.GetLineMinCount()
	out.Lines.SnapThreshold = getFloat(c.SnapThreshold, defaults.Lines.SnapThreshold)
	out.Lines.LineExtend = getFloat(c.LineExtend, defaults.Lines.LineExtend)
	out.Lines.PerformChaining = getBool(c.PerformChaining, defaults.Lines.PerformChaining)
	out.Lines.RemoveOverlap = getBool(c.RemoveOverlap, defaults.Lines.RemoveOverlap)
	out.Lines.MinSegmentLength = getFloat(c.MinSegmentLength, defaults.Lines.MinSegmentLength)
	out.Intersect.MinNeighbourPoints = getInt(c.MinNeighbourPoints, defaults.Intersect.MinNeighbourPoints)
	out.Intersect.MinDistToLine = getFloat(c.MinDistToLine, defaults.Intersect.MinDistToLine)
	out.Intersect.MinLength = c.GetIntersectMinLength()

	out.Regularise.AngleTol = c.GetAngleTol()
	out.Regularise.DistTol = c.GetDistTol()
	out.Regularise.Extension = getFloat(c.Extension, defaults.Regularise.Extension)

	out.Arrangement.VertexTol = getFloat(c.VertexTol, defaults.Arrangement.VertexTol)
	out.Arrangement.SnapTol = getFloat(c.SnapTol, defaults.Arrangement.SnapTol)
	out.Arrangement.SliverArea = getFloat(c.SliverArea, defaults.Arrangement.SliverArea)
	out.Arrangement.SliverCompactness = getFloat(c.SliverCompactness, defaults.Arrangement.SliverCompactness)
	out.Arrangement.CollinearTol = c.GetCollinearTol()
	out.Arrangement.MaxComplexity = c.GetMaxComplexity()
	out.Arrangement.MaxCleanupRounds = c.GetMaxCleanupRounds()

	out.Label.ClipGround = getBool(c.ClipGround, defaults.Label.ClipGround)
	out.Mesh.DupeThresholdExp = getInt(c.DupeThresholdExp, defaults.Mesh.DupeThresholdExp)
	out.Mesh.OutputAllTriangles = getBool(c.OutputAllTriangles, defaults.Mesh.OutputAllTriangles)
	out.Mesh.Fallback = c.GetFallback()
	out.Timeout = c.GetTimeout()
	return out
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func getBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// GetK returns the k value or the default.
func (c *ReconstructionConfig) GetK() int { return getInt(c.K, defaults.Planes.K) }

// GetDistanceTol returns the distance_tol value or the default.
func (c *ReconstructionConfig) GetDistanceTol() float64 {
	return getFloat(c.DistanceTol, defaults.Planes.DistanceTol)
}

// GetNormalAngleTol returns the normal_angle_tol value or the default.
func (c *ReconstructionConfig) GetNormalAngleTol() float64 {
	return getFloat(c.NormalAngleTol, defaults.Planes.NormalAngleTol)
}

// GetMinInliers returns the min_inliers value or the default.
func (c *ReconstructionConfig) GetMinInliers() int {
	return getInt(c.MinInliers, defaults.Planes.MinInliers)
}

// GetMaxPlanes returns the max_planes value or the default (no cap).
func (c *ReconstructionConfig) GetMaxPlanes() int {
	return getInt(c.MaxPlanes, defaults.Planes.MaxPlanes)
}

// GetRefitEvery returns the refit_every value or the default.
func (c *ReconstructionConfig) GetRefitEvery() int {
	return getInt(c.RefitEvery, defaults.Planes.RefitEvery)
}

// GetHorizontalThreshold returns the horizontal_threshold value or the default.
func (c *ReconstructionConfig) GetHorizontalThreshold() float64 {
	return getFloat(c.HorizontalThreshold, defaults.Planes.HorizontalThreshold)
}

// GetHorizontalMinShare returns the horizontal_min_share value or the default.
func (c *ReconstructionConfig) GetHorizontalMinShare() float64 {
	return getFloat(c.HorizontalMinShare, defaults.Planes.HorizontalMinShare)
}

// GetWallThreshold returns the wall_threshold value or the default.
func (c *ReconstructionConfig) GetWallThreshold() float64 {
	return getFloat(c.WallThreshold, defaults.Planes.WallThreshold)
}

// GetAlpha returns the alpha value or the default.
func (c *ReconstructionConfig) GetAlpha() float64 {
	return getFloat(c.Alpha, defaults.Alpha.Alpha)
}

// GetAlphaMaxGrowthSteps returns the alpha_max_growth_steps value or the default.
func (c *ReconstructionConfig) GetAlphaMaxGrowthSteps() int {
	return getInt(c.AlphaMaxGrowthSteps, defaults.Alpha.MaxGrowthSteps)
}

// GetLineMinCount returns the line_min_count_lo and line_min_count_hi
// values, each falling back to its default.
func (c *ReconstructionConfig) GetLineMinCount() (lo, hi int) {
	return getInt(c.LineMinCountLo, defaults.Lines.MinCountLo), getInt(c.LineMinCountHi, defaults.Lines.MinCountHi)
}

// GetIntersectMinLength returns the intersect_min_length value or the default.
func (c *ReconstructionConfig) GetIntersectMinLength() float64 {
	return getFloat(c.IntersectMinLength, defaults.Intersect.MinLength)
}

// GetAngleTol returns the angle_tol value or the default.
func (c *ReconstructionConfig) GetAngleTol() float64 {
	return getFloat(c.AngleTol, defaults.Regularise.AngleTol)
}

// GetDistTol returns the dist_tol value or the default.
func (c *ReconstructionConfig) GetDistTol() float64 {
	return getFloat(c.DistTol, defaults.Regularise.DistTol)
}

// GetMaxComplexity returns the max_complexity value or the default.
func (c *ReconstructionConfig) GetMaxComplexity() int {
	return getInt(c.MaxComplexity, defaults.Arrangement.MaxComplexity)
}

// GetCollinearTol returns the collinear_tol value or the default.
func (c *ReconstructionConfig) GetCollinearTol() float64 {
	return getFloat(c.CollinearTol, defaults.Arrangement.CollinearTol)
}

// GetMaxCleanupRounds returns the max_cleanup_rounds value or the default.
func (c *ReconstructionConfig) GetMaxCleanupRounds() int {
	return getInt(c.MaxCleanupRounds, defaults.Arrangement.MaxCleanupRounds)
}

// GetFallback returns the fallback value or the default.
func (c *ReconstructionConfig) GetFallback() mesh.Fallback {
	if c.Fallback == nil || *c.Fallback == "" {
		return defaults.Mesh.Fallback
	}
	return mesh.Fallback(*c.Fallback)
}

// GetTimeout parses and returns the Timeout as a time.Duration.
func (c *ReconstructionConfig) GetTimeout() time.Duration {
	if c.Timeout == nil || *c.Timeout == "" {
		return defaults.Timeout
	}
	d, err := time.ParseDuration(*c.Timeout)
	if err != nil {
		return defaults.Timeout // default on parse error
	}
	return d
}
