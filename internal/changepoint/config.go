package changepoint

import (
	"fmt"

	"github.com/creasty/defaults"
)

// Config controls one detection run. Zero fields are filled from the
// `default` tags by Detect.
//
// Reproducibility: chain c draws from a generator seeded with
// Seed + c*1000003. With Seed == 0 the base seed is taken from the wall
// clock and runs are NOT bit-reproducible.
type Config struct {
	// Segments is K: the series is partitioned into K contiguous regimes
	// separated by K-1 change points. K is fixed per run; model-order
	// selection is a caller decision made by comparing runs.
	Segments int `yaml:"segments" default:"2"`

	// MinSegmentLength keeps per-segment variance estimable.
	MinSegmentLength int `yaml:"min_segment_length" default:"30"`

	Chains int   `yaml:"chains" default:"4"`
	Draws  int   `yaml:"draws" default:"2000"`
	Warmup int   `yaml:"warmup" default:"1000"`
	Seed   int64 `yaml:"seed"`

	// Convergence thresholds for the diagnostic gate.
	MaxRHat float64 `yaml:"max_rhat" default:"1.01"`
	MinESS  float64 `yaml:"min_ess" default:"400"`

	// Healthy post-warmup acceptance band for the continuous updates; a
	// rate outside it fails the run with ErrSamplerDivergence. Boundary
	// acceptance is reported but not banded: it hits zero legitimately
	// when a boundary is sharply identified.
	AcceptMin float64 `yaml:"accept_min" default:"0.05"`
	AcceptMax float64 `yaml:"accept_max" default:"0.95"`
}

func (c *Config) applyDefaults() error {
	return defaults.Set(c)
}

// validate checks the configuration against a series of n observations.
func (c Config) validate(n int) error {
	if c.Segments < 2 {
		return fmt.Errorf("%w: segments must be >= 2, got %d", ErrInvalidConfiguration, c.Segments)
	}
	if c.MinSegmentLength < 2 {
		return fmt.Errorf("%w: min_segment_length must be >= 2, got %d", ErrInvalidConfiguration, c.MinSegmentLength)
	}
	if n < c.Segments*c.MinSegmentLength {
		return fmt.Errorf("%w: %d segments of at least %d observations need %d points, series has %d",
			ErrInvalidConfiguration, c.Segments, c.MinSegmentLength, c.Segments*c.MinSegmentLength, n)
	}
	if c.Chains < 2 {
		return fmt.Errorf("%w: at least 2 chains are required for convergence diagnostics, got %d",
			ErrInvalidConfiguration, c.Chains)
	}
	if c.Draws < 1 {
		return fmt.Errorf("%w: draws must be >= 1, got %d", ErrInvalidConfiguration, c.Draws)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("%w: warmup must be >= 0, got %d", ErrInvalidConfiguration, c.Warmup)
	}
	if c.AcceptMin < 0 || c.AcceptMax > 1 || c.AcceptMin >= c.AcceptMax {
		return fmt.Errorf("%w: acceptance band [%v, %v] is not a valid sub-interval of [0, 1]",
			ErrInvalidConfiguration, c.AcceptMin, c.AcceptMax)
	}
	return nil
}

const chainSeedStride = 1000003

func (c Config) chainSeed(base int64, chain int) int64 {
	return base + int64(chain)*chainSeedStride
}
