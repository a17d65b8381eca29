package pipeline

import (
	"errors"
	"fmt"

	"github.com/OCAP2/routemonitor/pkg/core"
)

const (
	DefaultCapacity       = 10000
	DefaultTraceAltitude  = 10000.0
	DefaultMarkerAltitude = 2000.0

	PlanePort  = 6665
	TargetPort = 6666
)

// DefaultFixedFocal is the focal point used by FocusFixed.
var DefaultFixedFocal = core.GeoPoint{Longitude: -80, Latitude: -179}

// OverflowPolicy decides what happens when a full trace receives a point.
type OverflowPolicy string

const (
	// OverflowReset clears the whole trace, then appends.
	OverflowReset OverflowPolicy = "reset"
	// OverflowSlide evicts only the oldest point.
	OverflowSlide OverflowPolicy = "slide"
)

// FocusStrategy decides where the follow camera looks.
type FocusStrategy string

const (
	FocusLive  FocusStrategy = "live"
	FocusFixed FocusStrategy = "fixed"
)

var ErrInvalidConfig = errors.New("invalid pipeline config")

// Config parametrizes one track pipeline.
type Config struct {
	Port          int
	Role          core.Role
	FollowsCamera bool

	Capacity       int
	TraceAltitude  float64
	MarkerAltitude float64
	Overflow       OverflowPolicy
	Focus          FocusStrategy
	FixedFocal     core.GeoPoint
}

// DefaultConfig returns the configuration used for the given entity.
func DefaultConfig(role core.Role, port int, followsCamera bool) Config {
	return Config{
		Port:           port,
		Role:           role,
		FollowsCamera:  followsCamera,
		Capacity:       DefaultCapacity,
		TraceAltitude:  DefaultTraceAltitude,
		MarkerAltitude: DefaultMarkerAltitude,
		Overflow:       OverflowReset,
		Focus:          FocusLive,
		FixedFocal:     DefaultFixedFocal,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Role == "" {
		return fmt.Errorf("%w: role is required", ErrInvalidConfig)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	}
	switch c.Overflow {
	case OverflowReset, OverflowSlide:
	default:
		return fmt.Errorf("%w: unknown overflow policy %q", ErrInvalidConfig, c.Overflow)
	}
	switch c.Focus {
	case FocusLive, FocusFixed:
	default:
		return fmt.Errorf("%w: unknown focus strategy %q", ErrInvalidConfig, c.Focus)
	}
	return nil
}
