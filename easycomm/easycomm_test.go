package easycomm

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/w1xm/peltrack/internal/state"
	"github.com/w1xm/peltrack/rotator"
)

type fakeController struct {
	moves chan [2]float64
	stops chan struct{}
	store *state.Store
}

func (f *fakeController) MoveTo(ctx context.Context, az, el float64) (string, error) {
	f.store.SetPosition(az, el)
	f.moves <- [2]float64{az, el}
	return fmt.Sprintf("at %.1f/%.1f", az, el), nil
}

func (f *fakeController) Nudge(ctx context.Context, axis rotator.Axis, dir int, deg float64) (string, error) {
	return "", nil
}
func (f *fakeController) Stop()                                         { f.stops <- struct{}{} }
func (f *fakeController) Calibrate(ctx context.Context) (string, error) { return "", nil }
func (f *fakeController) SetHorizon() (string, error)                   { return "", nil }

func newTestConn(t *testing.T) (*fakeController, *bufio.Reader, net.Conn) {
	t.Helper()
	store := state.New(0, 90, state.Limits{AzMin: 0, AzMax: 360, ElMin: 45, ElMax: 135},
		state.Speeds{Azimuth: 6, Elevation: 4})
	ctrl := &fakeController{
		moves: make(chan [2]float64, 8),
		stops: make(chan struct{}, 8),
		store: store,
	}
	s := New(store, ctrl)
	server, client := net.Pipe()
	go func() {
		defer server.Close()
		s.handle(server)
	}()
	t.Cleanup(func() { client.Close() })
	return ctrl, bufio.NewReader(client), client
}

func sendLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		t.Fatalf("writing %q: %v", line, err)
	}
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	return strings.TrimRight(line, "\n")
}

func TestQueryReturnsInitialPosition(t *testing.T) {
	_, r, conn := newTestConn(t)
	sendLine(t, conn, "AZ EL")
	if got := readLine(t, r); got != "AZ0.0 EL90.0" {
		t.Errorf("query reply = %q, want %q", got, "AZ0.0 EL90.0")
	}
}

func TestSingleAxisQuery(t *testing.T) {
	_, r, conn := newTestConn(t)
	sendLine(t, conn, "AZ")
	if got := readLine(t, r); got != "AZ0.0 EL90.0" {
		t.Errorf("query reply = %q, want %q", got, "AZ0.0 EL90.0")
	}
}

func TestSetClampsToLimits(t *testing.T) {
	ctrl, r, conn := newTestConn(t)
	sendLine(t, conn, "AZ400.0 EL50.0")
	if got := readLine(t, r); got != "AZ360.0 EL50.0" {
		t.Errorf("ack = %q, want %q", got, "AZ360.0 EL50.0")
	}
	select {
	case move := <-ctrl.moves:
		if move != [2]float64{360, 50} {
			t.Errorf("MoveTo(%v), want MoveTo(360, 50)", move)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("controller never received the move")
	}
}

func TestSetSingleAxisKeepsOther(t *testing.T) {
	ctrl, r, conn := newTestConn(t)
	sendLine(t, conn, "EL100.0")
	if got := readLine(t, r); got != "AZ0.0 EL100.0" {
		t.Errorf("ack = %q, want %q", got, "AZ0.0 EL100.0")
	}
	select {
	case move := <-ctrl.moves:
		if move != [2]float64{0, 100} {
			t.Errorf("MoveTo(%v), want MoveTo(0, 100)", move)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("controller never received the move")
	}
}

func TestStopCommand(t *testing.T) {
	ctrl, r, conn := newTestConn(t)
	sendLine(t, conn, "SA SE")
	if got := readLine(t, r); got != "AZ0.0 EL90.0" {
		t.Errorf("stop reply = %q, want position report", got)
	}
	select {
	case <-ctrl.stops:
	case <-time.After(2 * time.Second):
		t.Fatal("controller never received the stop")
	}
}

func TestUnknownCommandKeepsConnectionOpen(t *testing.T) {
	_, r, conn := newTestConn(t)
	sendLine(t, conn, "PARK NOW")
	if got := readLine(t, r); !strings.HasPrefix(got, "ERR") {
		t.Errorf("reply = %q, want an ERR line", got)
	}
	// The connection survives the error.
	sendLine(t, conn, "AZ EL")
	if got := readLine(t, r); got != "AZ0.0 EL90.0" {
		t.Errorf("query after error = %q, want %q", got, "AZ0.0 EL90.0")
	}
}

func TestMalformedNumber(t *testing.T) {
	_, r, conn := newTestConn(t)
	sendLine(t, conn, "AZ12x.4")
	if got := readLine(t, r); !strings.HasPrefix(got, "ERR") {
		t.Errorf("reply = %q, want an ERR line", got)
	}
}

func TestVersion(t *testing.T) {
	_, r, conn := newTestConn(t)
	sendLine(t, conn, "VE")
	if got := readLine(t, r); got != "VE"+Version {
		t.Errorf("reply = %q, want %q", got, "VE"+Version)
	}
}

func TestServeAcceptsAndShutsDown(t *testing.T) {
	store := state.New(0, 90, state.Limits{AzMin: 0, AzMax: 360, ElMin: 45, ElMax: 135},
		state.Speeds{Azimuth: 6, Elevation: 4})
	ctrl := &fakeController{
		moves: make(chan [2]float64, 8),
		stops: make(chan struct{}, 8),
		store: store,
	}
	s := New(store, ctrl)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	sendLine(t, conn, "AZ EL")
	if got := readLine(t, bufio.NewReader(conn)); got != "AZ0.0 EL90.0" {
		t.Errorf("query reply = %q", got)
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not shut down")
	}
}
