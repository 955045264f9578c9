package pixelgrasp

import "github.com/pkg/errors"

// Config holds the depth-localization parameters.
type Config struct {
	// NeighborhoodHalfWidth is half the side length, in pixels, of the square
	// patch averaged around the grasp pixel.
	NeighborhoodHalfWidth int `json:"neighborhood_half_width"`

	// MinDepth is the closest reading, in meters, still counted toward the
	// neighborhood mean. Readings at or below it are ignored.
	MinDepth float64 `json:"min_depth_m"`

	// MaxDepth is the farthest trusted reading in meters. Anything beyond it
	// is zeroed out before averaging.
	MaxDepth float64 `json:"max_depth_m"`
}

// DefaultConfig returns the localization parameters tuned for the RGBD camera
// at tabletop grasping distances.
func DefaultConfig() Config {
	return Config{
		NeighborhoodHalfWidth: 5,
		MinDepth:              0.1,
		MaxDepth:              3.0,
	}
}

// Validate checks the config for values the localizer cannot work with.
func (c Config) Validate() error {
	if c.NeighborhoodHalfWidth <= 0 {
		return errors.New("neighborhood half-width must be positive")
	}
	if c.MinDepth < 0 {
		return errors.New("min depth cannot be negative")
	}
	if c.MaxDepth <= c.MinDepth {
		return errors.Errorf("max depth %.2f must exceed min depth %.2f", c.MaxDepth, c.MinDepth)
	}
	return nil
}
