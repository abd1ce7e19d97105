// Package easycomm serves the line-oriented TCP protocol spoken by
// satellite-tracking clients such as Gpredict.
//
// Commands are newline-terminated ASCII. "AZ EL" (no arguments) queries
// the tracked position; "AZ123.4 EL56.7" (either or both) requests a
// move, clamped to the travel limits; "SA SE" stops the rotor. Each
// connection is parsed independently and an unrecognized command only
// produces an error line on that connection.
package easycomm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/w1xm/peltrack/internal/state"
	"github.com/w1xm/peltrack/planner"
	"github.com/w1xm/peltrack/rotator"
)

// Version is reported in response to the VE command.
const Version = "peltrack-1.0"

// Server accepts tracking-client connections and delegates every request
// to the position store and the motion controller; it holds no position
// state of its own.
type Server struct {
	store *state.Store
	ctrl  rotator.Controller

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func New(store *state.Store, ctrl rotator.Controller) *Server {
	return &Server{store: store, ctrl: ctrl, conns: make(map[net.Conn]struct{})}
}

// ListenAndServe listens on addr until ctx is cancelled, then stops
// accepting and closes open connections. An in-flight rotor move is
// never aborted by shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("easycomm server listening on %s", addr)
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln. See ListenAndServe.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		log.Print("shutdown; closing easycomm socket")
		ln.Close()
		s.closeConns()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("failed to accept: %v", err)
			continue
		}
		s.addConn(conn)
		go func() {
			defer s.removeConn(conn)
			s.handle(conn)
		}()
	}
}

func (s *Server) addConn(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

var cmdRE = regexp.MustCompile(`^([A-Z]{2})(-?[0-9][0-9.]*)?$`)

// handle parses one connection's command stream.
func (s *Server) handle(conn net.Conn) {
	log.Printf("accepted connection from %v", conn.RemoteAddr())
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if err := s.handleLine(conn, line); err != nil {
			fmt.Fprintf(conn, "ERR %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("reading from %v: %v", conn.RemoteAddr(), err)
	}
}

type request struct {
	azTarget, elTarget *float64
	query              bool
	stop               bool
	version            bool
}

func parseLine(line string) (request, error) {
	var req request
	for _, tok := range strings.Fields(line) {
		m := cmdRE.FindStringSubmatch(tok)
		if m == nil {
			return req, fmt.Errorf("malformed command %q", tok)
		}
		cmd, arg := m[1], m[2]
		switch cmd {
		case "AZ", "EL":
			if arg == "" {
				req.query = true
				continue
			}
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return req, fmt.Errorf("bad number in %q", tok)
			}
			if cmd == "AZ" {
				req.azTarget = &v
			} else {
				req.elTarget = &v
			}
		case "SA", "SE":
			req.stop = true
		case "VE":
			req.version = true
		default:
			return req, fmt.Errorf("unknown command %q", tok)
		}
	}
	return req, nil
}

func (s *Server) handleLine(conn net.Conn, line string) error {
	req, err := parseLine(line)
	if err != nil {
		return err
	}
	if req.version {
		fmt.Fprintf(conn, "VE%s\n", Version)
	}
	if req.stop {
		s.ctrl.Stop()
		s.writePosition(conn)
		return nil
	}
	if req.azTarget != nil || req.elTarget != nil {
		s.startMove(conn, req.azTarget, req.elTarget)
		return nil
	}
	if req.query {
		s.writePosition(conn)
	}
	return nil
}

// writePosition reports the tracked position, one decimal of precision.
func (s *Server) writePosition(conn net.Conn) {
	az, el := s.store.Position()
	fmt.Fprintf(conn, "AZ%.1f EL%.1f\n", az, el)
}

// startMove clamps the requested target, acknowledges it, and runs the
// move in the background so the connection stays responsive. Serializing
// overlapping requests is the controller's job.
func (s *Server) startMove(conn net.Conn, azTarget, elTarget *float64) {
	az, el := s.store.Position()
	limits := s.store.Limits()
	if azTarget != nil {
		az = limits.ClampAz(*azTarget)
	}
	if elTarget != nil {
		el = limits.ClampEl(*elTarget)
	}
	fmt.Fprintf(conn, "AZ%.1f EL%.1f\n", az, el)
	go func() {
		if _, err := s.ctrl.MoveTo(context.Background(), az, el); err != nil && !errors.Is(err, planner.ErrStopped) {
			log.Printf("move to %.1f/%.1f: %v", az, el, err)
		}
	}()
}
