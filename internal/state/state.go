// Package state holds the dead-reckoned rotor position and its movement
// configuration. The rotor has no position sensor, so this store is the
// single source of truth read by every presentation layer.
package state

import (
	"fmt"
	"sync"
)

// Limits bound the rotor's travel in degrees.
type Limits struct {
	AzMin, AzMax float64
	ElMin, ElMax float64
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ClampAz clamps an azimuth target into the limits.
func (l Limits) ClampAz(az float64) float64 {
	return clamp(az, l.AzMin, l.AzMax)
}

// ClampEl clamps an elevation target into the limits.
func (l Limits) ClampEl(el float64) float64 {
	return clamp(el, l.ElMin, l.ElMax)
}

// Speeds are the configured angular speeds in degrees/second, used to
// convert an angular delta into a drive duration.
type Speeds struct {
	Azimuth   float64
	Elevation float64
}

// Store is the shared position state. Readers never observe a torn
// azimuth/elevation pair: both are read and written under one lock.
type Store struct {
	mu     sync.RWMutex
	az, el float64
	limits Limits
	speeds Speeds
}

// New creates a store with the given starting position, clamped into the
// limits.
func New(az, el float64, limits Limits, speeds Speeds) *Store {
	return &Store{
		az:     limits.ClampAz(az),
		el:     limits.ClampEl(el),
		limits: limits,
		speeds: speeds,
	}
}

// Position returns the current tracked position.
func (s *Store) Position() (az, el float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.az, s.el
}

// SetPosition commits a new tracked position, clamped into the limits.
func (s *Store) SetPosition(az, el float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.az = s.limits.ClampAz(az)
	s.el = s.limits.ClampEl(el)
}

// Limits returns the current travel limits.
func (s *Store) Limits() Limits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits
}

// Speeds returns the configured axis speeds.
func (s *Store) Speeds() Speeds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speeds
}

// SetElevationFloor moves the lower elevation limit, capturing a physical
// horizon reference. The tracked elevation is raised if it now falls
// below the floor.
func (s *Store) SetElevationFloor(el float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits.ElMin = el
	if s.el < el {
		s.el = el
	}
}

// Config exposes named settings to the presentation layer.
func (s *Store) Config(key string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch key {
	case "AZIMUTH_SPEED_DPS":
		return s.speeds.Azimuth, nil
	case "ELEVATION_SPEED_DPS":
		return s.speeds.Elevation, nil
	}
	return 0, fmt.Errorf("unknown config key %q", key)
}
