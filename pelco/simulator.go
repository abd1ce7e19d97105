package pelco

import (
	"fmt"
	"sync"
)

// Simulator is an in-memory stand-in for a drive head. It validates and
// decodes every frame it receives, tracking the commanded motion, so
// higher layers can be tested against the real codec without hardware.
type Simulator struct {
	mu      sync.Mutex
	frames  []Frame
	pan     int
	tilt    int
	stopped bool
	err     error
}

func NewSimulator() *Simulator {
	return &Simulator{stopped: true}
}

// Send implements FrameWriter. Malformed frames are rejected so codec
// bugs surface in tests.
func (s *Simulator) Send(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if !f.Valid() {
		return fmt.Errorf("invalid frame % x", f[:])
	}
	s.frames = append(s.frames, f)
	s.pan, s.tilt = f.Pan(), f.Tilt()
	s.stopped = f.IsStop()
	return nil
}

// FailWith makes every subsequent Send return err. Pass nil to heal.
func (s *Simulator) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Frames returns a copy of every frame received so far.
func (s *Simulator) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Driving returns the currently commanded direction per axis.
func (s *Simulator) Driving() (pan, tilt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pan, s.tilt
}

// Stopped reports whether the last frame commanded no motion.
func (s *Simulator) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
