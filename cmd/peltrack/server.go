package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/w1xm/peltrack/internal/state"
	"github.com/w1xm/peltrack/planner"
	"github.com/w1xm/peltrack/rotator"
	"github.com/w1xm/peltrack/sequencer"
)

// Status is the position payload pushed to web clients.
type Status struct {
	Azimuth   float64 `json:"az"`
	Elevation float64 `json:"el"`
	Msg       string  `json:"msg,omitempty"`
}

// Server is the browser-facing control surface. It holds no position
// state of its own beyond the last broadcast snapshot; every action
// delegates to the store, the controller, or the sequencer.
type Server struct {
	store *state.Store
	ctrl  rotator.Controller
	seq   *sequencer.Sequencer

	statusMu   sync.RWMutex
	statusCond *sync.Cond
	status     Status
}

func NewServer(store *state.Store) *Server {
	s := &Server{store: store}
	s.statusCond = sync.NewCond(s.statusMu.RLocker())
	az, el := store.Position()
	s.status = Status{Azimuth: az, Elevation: el}
	return s
}

// PositionChanged is the planner's position-change notification.
func (s *Server) PositionChanged(az, el float64) {
	s.setStatus(az, el, "")
}

func (s *Server) setStatus(az, el float64, msg string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status = Status{Azimuth: az, Elevation: el, Msg: msg}
	s.statusCond.Broadcast()
}

// announce broadcasts a message alongside the current position.
func (s *Server) announce(msg string) {
	az, el := s.store.Position()
	s.setStatus(az, el, msg)
}

func (s *Server) Router(staticDir string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.StatusHandler).Methods("GET")
	r.HandleFunc("/api/ws", s.StatusSocketHandler)
	r.HandleFunc("/api/control", s.ControlHandler).Methods("POST")
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	return r
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Print(err)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// StatusSocketHandler pushes a Status frame to the client after every
// committed position update.
func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer conn.Close()

	// Drain incoming messages so pings are answered; close on error.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	send := func(status Status) error {
		data, err := json.Marshal(status)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	if err := send(status); err != nil {
		return
	}

	for ctx.Err() == nil {
		s.statusMu.RLock()
		s.statusCond.Wait()
		status := s.status
		s.statusMu.RUnlock()
		if err := send(status); err != nil {
			return
		}
	}
}

// ControlHandler executes one web-form action. Motion actions run in the
// background so the handler replies promptly; their outcome is broadcast
// over the status socket.
func (s *Server) ControlHandler(w http.ResponseWriter, r *http.Request) {
	action := r.FormValue("action")
	var msg string
	switch action {
	case "calibrate":
		msg = "Calibration started."
		s.background(func() (string, error) {
			return s.ctrl.Calibrate(context.Background())
		})
	case "reset":
		s.store.SetPosition(0, 90)
		msg = "Position reset to 0° azimuth and 90° elevation (zenith)."
		s.announce(msg)
	case "demo":
		limits := s.store.Limits()
		done, err := s.seq.Start(context.Background(), sequencer.Demo(limits), s.announce)
		if err != nil {
			msg = "Error: " + err.Error()
			break
		}
		msg = "Demo started."
		go func() {
			switch err := <-done; {
			case errors.Is(err, planner.ErrStopped):
				s.announce("Demo stopped.")
			case err != nil:
				s.announce("Demo failed: " + err.Error())
			default:
				s.announce("Demo complete.")
			}
		}()
	case "set":
		az, errAz := strconv.ParseFloat(r.FormValue("azimuth"), 64)
		el, errEl := strconv.ParseFloat(r.FormValue("elevation"), 64)
		if errAz != nil || errEl != nil {
			http.Error(w, "azimuth and elevation must be numbers", http.StatusBadRequest)
			return
		}
		limits := s.store.Limits()
		az, el = limits.ClampAz(az), limits.ClampEl(el)
		msg = "Moving."
		s.background(func() (string, error) {
			return s.ctrl.MoveTo(context.Background(), az, el)
		})
	case "nudge_up", "nudge_down", "nudge_up_big", "nudge_down_big":
		dir := 1
		if action == "nudge_down" || action == "nudge_down_big" {
			dir = -1
		}
		degrees := 1.0
		if action == "nudge_up_big" || action == "nudge_down_big" {
			degrees = 2.0
		}
		msg = "Nudging."
		s.background(func() (string, error) {
			return s.ctrl.Nudge(context.Background(), rotator.Elevation, dir, degrees)
		})
	case "horizon":
		result, err := s.ctrl.SetHorizon()
		if err != nil {
			msg = "Error: " + err.Error()
		} else {
			msg = result
		}
		s.announce(msg)
	case "stop":
		s.ctrl.Stop()
		msg = "Rotor stopped."
		s.announce(msg)
	default:
		http.Error(w, "unknown action "+strconv.Quote(action), http.StatusBadRequest)
		return
	}

	az, el := s.store.Position()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Status{Azimuth: az, Elevation: el, Msg: msg})
}

// background runs a motion action on its own goroutine and broadcasts
// its result.
func (s *Server) background(run func() (string, error)) {
	go func() {
		msg, err := run()
		switch {
		case errors.Is(err, planner.ErrStopped):
			msg = "Rotor stopped."
		case err != nil:
			msg = "Error: " + err.Error()
		}
		s.announce(msg)
	}()
}
