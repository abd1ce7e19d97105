// Package sequencer runs pre-scripted motion sequences, homing runs and
// range-of-motion demonstrations, on their own goroutine so that a long
// script never blocks incoming commands.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/w1xm/peltrack/internal/state"
	"github.com/w1xm/peltrack/rotator"
)

// ErrBusy is returned when a sequence is already running.
var ErrBusy = errors.New("sequence already running")

// Step is one scripted move followed by a settling pause.
type Step struct {
	Azimuth   float64
	Elevation float64
	Pause     time.Duration
}

// StepCallback receives the status line of each completed step.
type StepCallback func(msg string)

// Sequencer drives a Controller through ordered step lists. A concurrent
// Stop on the controller preempts the in-flight step and aborts the
// remainder of the sequence.
type Sequencer struct {
	ctrl rotator.Controller

	mu      sync.Mutex
	running bool
}

func New(ctrl rotator.Controller) *Sequencer {
	return &Sequencer{ctrl: ctrl}
}

// Running reports whether a sequence is in progress.
func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the steps on a new goroutine. The returned channel
// reports the sequence outcome: nil on completion, the step error
// otherwise. notify may be nil.
func (s *Sequencer) Start(ctx context.Context, steps []Step, notify StepCallback) (<-chan error, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.running = true
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.run(ctx, steps, notify)
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()
	return done, nil
}

func (s *Sequencer) run(ctx context.Context, steps []Step, notify StepCallback) error {
	for i, step := range steps {
		msg, err := s.ctrl.MoveTo(ctx, step.Azimuth, step.Elevation)
		if err != nil {
			log.Printf("sequence aborted at step %d: %v", i+1, err)
			return err
		}
		if notify != nil {
			notify(fmt.Sprintf("Step %d/%d: %s", i+1, len(steps), msg))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step.Pause):
		}
	}
	return nil
}

// Demo sweeps the corners of the configured travel envelope and returns
// to the middle, demonstrating the full range of motion.
func Demo(l state.Limits) []Step {
	return []Step{
		{Azimuth: l.AzMin, Elevation: l.ElMax, Pause: 2 * time.Second},
		{Azimuth: l.AzMax, Elevation: l.ElMax, Pause: 2 * time.Second},
		{Azimuth: l.AzMax, Elevation: l.ElMin, Pause: 2 * time.Second},
		{Azimuth: l.AzMin, Elevation: l.ElMin, Pause: 2 * time.Second},
		{Azimuth: (l.AzMin + l.AzMax) / 2, Elevation: (l.ElMin + l.ElMax) / 2, Pause: time.Second},
	}
}
