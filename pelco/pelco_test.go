package pelco

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDriveFrames(t *testing.T) {
	for _, test := range []struct {
		name      string
		pan, tilt int
		ps, ts    byte
		want      Frame
	}{
		{"right", 1, 0, 0x20, 0, Frame{0xFF, 0x01, 0x00, 0x02, 0x20, 0x00, 0x23}},
		{"left", -1, 0, 0x20, 0, Frame{0xFF, 0x01, 0x00, 0x04, 0x20, 0x00, 0x25}},
		{"up", 0, 1, 0, 0x20, Frame{0xFF, 0x01, 0x00, 0x08, 0x00, 0x20, 0x29}},
		{"down", 0, -1, 0, 0x20, Frame{0xFF, 0x01, 0x00, 0x10, 0x00, 0x20, 0x31}},
		{"right+up", 1, 1, 0x10, 0x15, Frame{0xFF, 0x01, 0x00, 0x0A, 0x10, 0x15, 0x30}},
		// Speed bytes above 0x3F are clamped, not rejected.
		{"clamped", 1, 0, 0xFF, 0, Frame{0xFF, 0x01, 0x00, 0x02, 0x3F, 0x00, 0x42}},
		// Idle axes carry no speed.
		{"idle tilt speed dropped", 1, 0, 0x20, 0x20, Frame{0xFF, 0x01, 0x00, 0x02, 0x20, 0x00, 0x23}},
	} {
		t.Run(test.name, func(t *testing.T) {
			got := Drive(DefaultAddress, test.pan, test.tilt, test.ps, test.ts)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("unexpected frame: got(-)/want(+):\n%s", diff)
			}
			if !got.Valid() {
				t.Errorf("frame % x fails its own checksum", got[:])
			}
		})
	}
}

func TestStopFrame(t *testing.T) {
	f := Stop(DefaultAddress)
	if !f.IsStop() {
		t.Errorf("Stop() = % x, not a stop frame", f[:])
	}
	if !f.Valid() {
		t.Errorf("stop frame % x fails checksum", f[:])
	}
	if pan, tilt := f.Pan(), f.Tilt(); pan != 0 || tilt != 0 {
		t.Errorf("stop frame commands motion: pan=%d tilt=%d", pan, tilt)
	}
}

func TestEncodingDeterministic(t *testing.T) {
	a := Drive(DefaultAddress, 1, -1, 0x18, 0x22)
	b := Drive(DefaultAddress, 1, -1, 0x18, 0x22)
	if a != b {
		t.Errorf("re-encoding differs: % x vs % x", a[:], b[:])
	}
}

func TestChecksumDetectsCorruption(t *testing.T) {
	f := Drive(DefaultAddress, 1, 1, 0x3F, 0x3F)
	for i := 1; i <= 5; i++ {
		g := f
		g[i]++
		if g.Valid() {
			t.Errorf("mutating byte %d left frame valid: % x", i, g[:])
		}
	}
}

func TestFrameDecode(t *testing.T) {
	f := Drive(0x02, -1, 1, 0x05, 0x3F)
	if got := f.Address(); got != 0x02 {
		t.Errorf("Address() = %#x, want 0x02", got)
	}
	if pan, tilt := f.Pan(), f.Tilt(); pan != -1 || tilt != 1 {
		t.Errorf("decoded pan=%d tilt=%d, want -1, 1", pan, tilt)
	}
	if ps, ts := f.PanSpeed(), f.TiltSpeed(); ps != 0x05 || ts != 0x3F {
		t.Errorf("decoded speeds %#x/%#x, want 0x05/0x3f", ps, ts)
	}
}

func TestSimulatorRejectsCorruptFrame(t *testing.T) {
	sim := NewSimulator()
	f := Drive(DefaultAddress, 1, 0, 0x20, 0)
	f[6]++
	if err := sim.Send(f); err == nil {
		t.Error("Send accepted a frame with a bad checksum")
	}
	if err := sim.Send(Drive(DefaultAddress, 1, 0, 0x20, 0)); err != nil {
		t.Errorf("Send rejected a valid frame: %v", err)
	}
	if pan, _ := sim.Driving(); pan != 1 {
		t.Errorf("simulator pan = %d, want 1", pan)
	}
}
