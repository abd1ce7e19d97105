// Package planner is the open-loop motion controller. The rotor reports
// no position, so every move is a timed drive: direction and duration are
// derived from the configured axis speeds, and the tracked position is
// interpolated at a fixed tick while the move is in flight.
package planner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/w1xm/peltrack/internal/state"
	"github.com/w1xm/peltrack/pelco"
	"github.com/w1xm/peltrack/rotator"
)

// ErrStopped is returned by a move that was cancelled before reaching its
// target, either by Stop or by a competing move request.
var ErrStopped = errors.New("move stopped")

// Reference position committed by Calibrate: true north, zenith.
const (
	referenceAz = 0.0
	referenceEl = 90.0
)

// Config tunes the move loop.
type Config struct {
	// Tick is the interpolation interval. Defaults to 100ms.
	Tick time.Duration
	// Speed is the Pelco-D speed byte used for timed drives.
	Speed byte
	// Address is the drive head address.
	Address byte
	// Simultaneous drives both axes in one frame when true; otherwise
	// the longer-duration axis is driven to completion first.
	Simultaneous bool
}

// Planner owns the serial link. It enforces a single-flight discipline:
// at most one move is driving at any instant, and a competing request
// cancels the current move and waits for it to settle before starting.
type Planner struct {
	port   pelco.FrameWriter
	store  *state.Store
	notify rotator.PositionCallback
	cfg    Config

	mu      sync.Mutex
	current *flight
}

// flight is one in-progress move. cancel is closed to request
// cooperative cancellation; done is closed when the move loop has
// settled back to idle.
type flight struct {
	cancelOnce sync.Once
	cancel     chan struct{}
	done       chan struct{}
}

func (f *flight) requestCancel() {
	f.cancelOnce.Do(func() { close(f.cancel) })
}

// New creates a planner. notify may be nil.
func New(port pelco.FrameWriter, store *state.Store, notify rotator.PositionCallback, cfg Config) *Planner {
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	if cfg.Speed == 0 {
		cfg.Speed = 0x20
	}
	if cfg.Address == 0 {
		cfg.Address = pelco.DefaultAddress
	}
	return &Planner{port: port, store: store, notify: notify, cfg: cfg}
}

// begin cancels any move in flight, waits for it to settle, and registers
// a new one.
func (p *Planner) begin() *flight {
	p.mu.Lock()
	for p.current != nil {
		cur := p.current
		cur.requestCancel()
		p.mu.Unlock()
		<-cur.done
		p.mu.Lock()
	}
	f := &flight{cancel: make(chan struct{}), done: make(chan struct{})}
	p.current = f
	p.mu.Unlock()
	return f
}

func (p *Planner) end(f *flight) {
	p.mu.Lock()
	if p.current == f {
		p.current = nil
	}
	p.mu.Unlock()
	close(f.done)
}

// MoveTo drives both axes toward the target. Targets are re-clamped to
// the limits here regardless of what the caller did. The call blocks for
// the duration of the drive; it returns early with ErrStopped on
// cancellation or with a transport error if a frame write failed, in
// which case the last interpolated position has been committed.
func (p *Planner) MoveTo(ctx context.Context, az, el float64) (string, error) {
	limits := p.store.Limits()
	az, el = limits.ClampAz(az), limits.ClampEl(el)

	f := p.begin()
	defer p.end(f)

	startAz, startEl := p.store.Position()
	speeds := p.store.Speeds()
	azDur := driveDuration(az-startAz, speeds.Azimuth)
	elDur := driveDuration(el-startEl, speeds.Elevation)
	if azDur == 0 && elDur == 0 {
		return fmt.Sprintf("Already at azimuth %.1f°, elevation %.1f°.", az, el), nil
	}

	if p.cfg.Simultaneous || azDur == 0 || elDur == 0 {
		if err := p.drive(ctx, f, startAz, startEl, az, el); err != nil {
			return "", err
		}
		return fmt.Sprintf("Moved to azimuth %.1f°, elevation %.1f°.", az, el), nil
	}

	// Single-axis head: longer-duration axis first.
	legs := [][4]float64{
		{startAz, startEl, az, startEl},
		{az, startEl, az, el},
	}
	if elDur > azDur {
		legs = [][4]float64{
			{startAz, startEl, startAz, el},
			{startAz, el, az, el},
		}
	}
	for _, leg := range legs {
		if err := p.drive(ctx, f, leg[0], leg[1], leg[2], leg[3]); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Moved to azimuth %.1f°, elevation %.1f°.", az, el), nil
}

// drive runs one timed drive from (fromAz, fromEl) to (toAz, toEl),
// interpolating the tracked position at every tick.
func (p *Planner) drive(ctx context.Context, f *flight, fromAz, fromEl, toAz, toEl float64) error {
	speeds := p.store.Speeds()
	azDur := driveDuration(toAz-fromAz, speeds.Azimuth)
	elDur := driveDuration(toEl-fromEl, speeds.Elevation)
	total := azDur
	if elDur > total {
		total = elDur
	}
	if total == 0 {
		return nil
	}
	azDir := sign(toAz - fromAz)
	elDir := sign(toEl - fromEl)

	if err := p.port.Send(pelco.Drive(p.cfg.Address, azDir, elDir, p.cfg.Speed, p.cfg.Speed)); err != nil {
		return err
	}

	start := time.Now()
	t := time.NewTicker(p.cfg.Tick)
	defer t.Stop()
	azDone, elDone := azDur == 0, elDur == 0
	for {
		cancelled := false
		select {
		case <-ctx.Done():
			cancelled = true
		case <-f.cancel:
			cancelled = true
		case <-t.C:
		}

		elapsed := time.Since(start)
		curAz := interpolate(fromAz, toAz, elapsed, azDur)
		curEl := interpolate(fromEl, toEl, elapsed, elDur)
		p.commit(curAz, curEl)

		if cancelled {
			p.sendStop()
			return ErrStopped
		}
		if elapsed >= total {
			if err := p.port.Send(pelco.Stop(p.cfg.Address)); err != nil {
				return err
			}
			p.commit(toAz, toEl)
			return nil
		}
		// One axis may finish before the other; re-issue the drive
		// with only the remaining axis so the finished one holds.
		if !azDone && elapsed >= azDur {
			azDone = true
			if err := p.port.Send(pelco.Drive(p.cfg.Address, 0, elDir, 0, p.cfg.Speed)); err != nil {
				return err
			}
		}
		if !elDone && elapsed >= elDur {
			elDone = true
			if err := p.port.Send(pelco.Drive(p.cfg.Address, azDir, 0, p.cfg.Speed, 0)); err != nil {
				return err
			}
		}
	}
}

// Nudge offsets one axis by direction*degrees, clamped to the limits.
func (p *Planner) Nudge(ctx context.Context, axis rotator.Axis, direction int, degrees float64) (string, error) {
	az, el := p.store.Position()
	switch axis {
	case rotator.Azimuth:
		az += float64(direction) * degrees
	case rotator.Elevation:
		el += float64(direction) * degrees
	default:
		return "", fmt.Errorf("unknown axis %v", axis)
	}
	return p.MoveTo(ctx, az, el)
}

// Stop cancels any in-flight move and writes an immediate stop frame
// whether or not one is active. Idempotent, never blocks on the move loop.
func (p *Planner) Stop() {
	p.mu.Lock()
	cur := p.current
	p.mu.Unlock()
	if cur != nil {
		cur.requestCancel()
	}
	p.sendStop()
}

// sendStop writes a stop frame, best effort. The port's own lock keeps
// it from interleaving a drive frame from the move loop.
func (p *Planner) sendStop() {
	p.port.Send(pelco.Stop(p.cfg.Address))
}

// Calibrate drives to the physical reference mark and commits the
// reference as the current position, discarding accumulated dead
// reckoning error.
func (p *Planner) Calibrate(ctx context.Context) (string, error) {
	if _, err := p.MoveTo(ctx, referenceAz, referenceEl); err != nil {
		return "", err
	}
	p.commit(referenceAz, referenceEl)
	return fmt.Sprintf("Calibrated: azimuth %.1f°, elevation %.1f° (zenith).", referenceAz, referenceEl), nil
}

// SetHorizon captures the current elevation as the new elevation floor.
func (p *Planner) SetHorizon() (string, error) {
	_, el := p.store.Position()
	p.store.SetElevationFloor(el)
	return fmt.Sprintf("Horizon set: elevation floor is now %.1f°.", el), nil
}

func (p *Planner) commit(az, el float64) {
	p.store.SetPosition(az, el)
	if p.notify != nil {
		p.notify(p.store.Position())
	}
}

// driveDuration converts an angular delta into a drive time at the
// given speed.
func driveDuration(delta, dps float64) time.Duration {
	if delta == 0 || dps <= 0 {
		return 0
	}
	return time.Duration(math.Abs(delta) / dps * float64(time.Second))
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// interpolate returns the dead-reckoned position along one axis after
// elapsed time of a drive lasting dur.
func interpolate(from, to float64, elapsed, dur time.Duration) float64 {
	if dur <= 0 || elapsed >= dur {
		return to
	}
	return from + (to-from)*(elapsed.Seconds()/dur.Seconds())
}

var _ rotator.Controller = (*Planner)(nil)
