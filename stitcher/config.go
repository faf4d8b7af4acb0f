package stitcher

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config holds the tunable constants of a stitcher
type Config struct {
	// Overlaps smaller than this fraction of the smaller face are dropped
	IntersectionTolerance float64 `validate:"gt=0,lt=1"`
	// Original faces left with less than this fraction of their area are stabilised
	StabilisationThreshold float64 `validate:"gt=0,lt=1"`
	// Fraction of the original area given to a stabilised face
	StabilisationPerturbation float64 `validate:"gt=0,ltfield=StabilisationThreshold"`
	// Mesh motion strategy tag, see RegisterMotion
	Motion string `validate:"required"`
	// Goroutines sharing the owner faces of an intersection, 1 runs it serially
	IntersectionWorkers int `validate:"gte=1"`
}

func DefaultConfig() Config {
	return Config{
		IntersectionTolerance:     1.e-8,
		StabilisationThreshold:    1.e-6,
		StabilisationPerturbation: 1.e-9,
		Motion:                    StaticMotion,
		IntersectionWorkers:       1,
	}
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid stitcher configuration: %w", err)
	}
	return nil
}
