// Package rotator defines the motion surface shared by every command
// source: the web control layer, the TCP protocol server, and scripted
// sequences all drive the rotor through Controller.
package rotator

import "context"

// Axis identifies one of the two rotor axes.
type Axis int

const (
	Azimuth Axis = iota
	Elevation
)

func (a Axis) String() string {
	switch a {
	case Azimuth:
		return "azimuth"
	case Elevation:
		return "elevation"
	}
	return "unknown"
}

// PositionCallback is invoked after every committed position update.
// Implementations must tolerate it being slow or a no-op; the controller
// assumes nothing about what it does.
type PositionCallback func(az, el float64)

// Controller moves the rotor. Implementations serialize concurrent
// requests: at most one move is in flight, and a competing move request
// first cancels the current one.
type Controller interface {
	// MoveTo drives both axes toward the target, clamped to the
	// configured limits, and returns a human-readable status.
	MoveTo(ctx context.Context, az, el float64) (string, error)
	// Nudge offsets one axis by direction*degrees.
	Nudge(ctx context.Context, axis Axis, direction int, degrees float64) (string, error)
	// Stop halts any in-flight move. Idempotent, callable at any time.
	Stop()
	// Calibrate drives to the physical reference mark and resets the
	// tracked position to it.
	Calibrate(ctx context.Context) (string, error)
	// SetHorizon captures the current elevation as the new elevation
	// floor. The rotor does not move.
	SetHorizon() (string, error)
}
