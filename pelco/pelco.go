// Package pelco implements the Pelco-D command protocol for a pan/tilt
// drive head: the 7-byte wire frame and the serial port that carries it.
//
// Frame layout: sync (0xFF), address, command 1, command 2, data 1 (pan
// speed), data 2 (tilt speed), checksum. The checksum is the unsigned sum
// of the five payload bytes modulo 256.
package pelco

// DefaultAddress is the drive head address used when none is configured.
const DefaultAddress = 0x01

// MaxSpeed is the largest speed byte the protocol allows.
const MaxSpeed = 0x3F

const syncByte = 0xFF

// Command 2 direction bits.
const (
	panRight = 0x02
	panLeft  = 0x04
	tiltUp   = 0x08
	tiltDown = 0x10
)

// Frame is a complete Pelco-D command frame, checksum included.
type Frame [7]byte

func checksum(addr, cmd1, cmd2, data1, data2 byte) byte {
	return addr + cmd1 + cmd2 + data1 + data2
}

// NewFrame builds a frame from raw payload bytes and fills in the sync
// byte and checksum.
func NewFrame(addr, cmd1, cmd2, data1, data2 byte) Frame {
	return Frame{syncByte, addr, cmd1, cmd2, data1, data2, checksum(addr, cmd1, cmd2, data1, data2)}
}

// Valid reports whether the frame has the sync byte and a correct checksum.
func (f Frame) Valid() bool {
	return f[0] == syncByte && f[6] == checksum(f[1], f[2], f[3], f[4], f[5])
}

// Address returns the drive head address the frame is addressed to.
func (f Frame) Address() byte { return f[1] }

// PanSpeed returns the data 1 byte.
func (f Frame) PanSpeed() byte { return f[4] }

// TiltSpeed returns the data 2 byte.
func (f Frame) TiltSpeed() byte { return f[5] }

// Pan returns the commanded pan direction: +1 right, -1 left, 0 none.
func (f Frame) Pan() int {
	switch {
	case f[3]&panRight != 0:
		return 1
	case f[3]&panLeft != 0:
		return -1
	}
	return 0
}

// Tilt returns the commanded tilt direction: +1 up, -1 down, 0 none.
func (f Frame) Tilt() int {
	switch {
	case f[3]&tiltUp != 0:
		return 1
	case f[3]&tiltDown != 0:
		return -1
	}
	return 0
}

// IsStop reports whether the frame commands no motion.
func (f Frame) IsStop() bool {
	return f[2] == 0 && f[3] == 0 && f[4] == 0 && f[5] == 0
}

func clampSpeed(s byte) byte {
	if s > MaxSpeed {
		return MaxSpeed
	}
	return s
}

// Stop builds the all-stop frame for the given address.
func Stop(addr byte) Frame {
	return NewFrame(addr, 0, 0, 0, 0)
}

// Drive builds a drive frame. pan and tilt select the direction on each
// axis (+1 right/up, -1 left/down, 0 idle); the speed byte for an idle
// axis is zeroed. Speeds above MaxSpeed are clamped, not rejected.
func Drive(addr byte, pan, tilt int, panSpeed, tiltSpeed byte) Frame {
	var cmd2 byte
	switch {
	case pan > 0:
		cmd2 |= panRight
	case pan < 0:
		cmd2 |= panLeft
	default:
		panSpeed = 0
	}
	switch {
	case tilt > 0:
		cmd2 |= tiltUp
	case tilt < 0:
		cmd2 |= tiltDown
	default:
		tiltSpeed = 0
	}
	return NewFrame(addr, 0, cmd2, clampSpeed(panSpeed), clampSpeed(tiltSpeed))
}
