package pelco

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tarm/serial"
)

var (
	// ErrLinkUnavailable is returned by Open when the serial device
	// cannot be opened. No motion is possible without the link.
	ErrLinkUnavailable = errors.New("serial link unavailable")
	// ErrTransport is returned by Send when a frame write fails after
	// the link was open.
	ErrTransport = errors.New("serial transport failure")
)

// FrameWriter accepts frames for transmission to the drive head.
type FrameWriter interface {
	Send(f Frame) error
}

// Port owns the physical serial connection. It is the single writer: Send
// holds a mutex for the duration of the write so frames never interleave
// on the wire.
type Port struct {
	mu sync.Mutex
	s  *serial.Port
}

// Open opens the serial device once. There is no reconnect logic: a rotor
// that cannot be reached at startup is fatal to the process.
func Open(name string, baud int) (*Port, error) {
	c := &serial.Config{Name: name, Baud: baud}
	s, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %q: %v", ErrLinkUnavailable, name, err)
	}
	return &Port{s: s}, nil
}

// Send writes one frame. A failed write is surfaced to the caller and
// never retried here: a half-sent motion command must not be repeated.
func (p *Port) Send(f Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.s == nil {
		return fmt.Errorf("%w: port closed", ErrTransport)
	}
	if _, err := p.s.Write(f[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.s == nil {
		return nil
	}
	err := p.s.Close()
	p.s = nil
	return err
}
