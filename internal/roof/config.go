package roof

import (
	"fmt"
	"time"

	"github.com/banshee-data/rooftop/internal/roof/alphashape"
	"github.com/banshee-data/rooftop/internal/roof/arrangement"
	"github.com/banshee-data/rooftop/internal/roof/facelabel"
	"github.com/banshee-data/rooftop/internal/roof/lines"
	"github.com/banshee-data/rooftop/internal/roof/mesh"
	"github.com/banshee-data/rooftop/internal/roof/planes"
	"github.com/banshee-data/rooftop/internal/roof/regularise"
)

// Config holds the parameters of every stage.
type Config struct {
	Planes      planes.Config
	Alpha       alphashape.Config
	Lines       lines.Config
	Intersect   lines.IntersectConfig
	Regularise  regularise.Config
	Arrangement arrangement.Config
	Label       facelabel.Config
	Mesh        mesh.Config
	// Timeout bounds a single reconstruction. Zero means no limit.
	Timeout time.Duration
}

// DefaultConfig returns the defaults of every stage.
func DefaultConfig() Config {
	return Config{
		Planes:      planes.DefaultConfig(),
		Alpha:       alphashape.DefaultConfig(),
		Lines:       lines.DefaultConfig(),
		Intersect:   lines.DefaultIntersectConfig(),
		Regularise:  regularise.DefaultConfig(),
		Arrangement: arrangement.DefaultConfig(),
		Mesh:        mesh.DefaultConfig(),
	}
}

// Validate checks every stage configuration.
func (c Config) Validate() error {
	if err := c.Planes.Validate(); err != nil {
		return fmt.Errorf("planes: %w", err)
	}
	if c.Alpha.Alpha <= 0 {
		return fmt.Errorf("alpha: alpha must be positive, got %g", c.Alpha.Alpha)
	}
	if err := c.Lines.Validate(); err != nil {
		return fmt.Errorf("lines: %w", err)
	}
	if err := c.Regularise.Validate(); err != nil {
		return fmt.Errorf("regularise: %w", err)
	}
	if err := c.Arrangement.Validate(); err != nil {
		return fmt.Errorf("arrangement: %w", err)
	}
	if err := c.Mesh.Validate(); err != nil {
		return fmt.Errorf("mesh: %w", err)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative, got %s", c.Timeout)
	}
	return nil
}
