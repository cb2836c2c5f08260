package mangle

import (
	"fmt"
)

// Config is the tuning consumed by the mangling core.
type Config struct {
	// Intensity is the probability of a non-structural split at a legal
	// boundary. Higher values yield more, smaller fragments.
	Intensity float64

	// DebugMode recomputes max stack eagerly, before branch optimization,
	// and checks that every block kept its original instructions.
	DebugMode bool
}

// DefaultConfig contains the default mangling settings.
var DefaultConfig = Config{
	Intensity: 0.3,
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.Intensity < 0 || c.Intensity >= 1 {
		return fmt.Errorf("%w: %v", ErrIntensityRange, c.Intensity)
	}
	return nil
}
