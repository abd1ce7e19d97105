// Command peltrack drives an azimuth/elevation rotor over a Pelco-D
// serial link, with a web control page and an EasyComm-style TCP server
// for satellite-tracking clients.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/w1xm/peltrack/easycomm"
	"github.com/w1xm/peltrack/internal/config"
	"github.com/w1xm/peltrack/internal/state"
	"github.com/w1xm/peltrack/pelco"
	"github.com/w1xm/peltrack/planner"
	"github.com/w1xm/peltrack/sequencer"
)

var (
	configPath   = flag.String("config", "configs/peltrack.yaml", "path to config file")
	serialPort   = flag.String("serial", "", "serial port name (overrides config)")
	baud         = flag.Int("baud", 0, "baud rate (overrides config)")
	httpAddr     = flag.String("http_addr", "", "web listen address (overrides config)")
	easycommAddr = flag.String("easycomm_addr", "", "easycomm listen address (overrides config)")
	staticDir    = flag.String("static_dir", "static", "directory containing static files")
)

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("config %q not found; using defaults", *configPath)
		cfg = config.Default()
	} else if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *serialPort != "" {
		cfg.Serial.Port = *serialPort
	}
	if *baud > 0 {
		cfg.Serial.Baud = *baud
	}
	if *httpAddr != "" {
		cfg.Listen.HTTP = *httpAddr
	}
	if *easycommAddr != "" {
		cfg.Listen.EasyComm = *easycommAddr
	}
	if cfg.Serial.Port == "" {
		log.Fatal("no serial port configured; pass -serial or set serial.port")
	}

	port, err := pelco.Open(cfg.Serial.Port, cfg.Serial.Baud)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer port.Close()
	log.Printf("opened %q at %d baud", cfg.Serial.Port, cfg.Serial.Baud)

	store := state.New(cfg.Initial.Azimuth, cfg.Initial.Elevation,
		state.Limits{
			AzMin: cfg.Limits.AzMin, AzMax: cfg.Limits.AzMax,
			ElMin: cfg.Limits.ElMin, ElMax: cfg.Limits.ElMax,
		},
		state.Speeds{Azimuth: cfg.Speeds.AzimuthDPS, Elevation: cfg.Speeds.ElevationDPS})

	srv := NewServer(store)
	pl := planner.New(port, store, srv.PositionChanged, planner.Config{
		Tick:         cfg.Tick(),
		Speed:        byte(cfg.Drive.Speed),
		Address:      byte(cfg.Drive.Address),
		Simultaneous: cfg.SimultaneousDrive(),
	})
	srv.ctrl = pl
	srv.seq = sequencer.New(pl)

	g, ctx := errgroup.WithContext(ctx)

	es := easycomm.New(store, pl)
	g.Go(func() error {
		return es.ListenAndServe(ctx, cfg.Listen.EasyComm)
	})

	// No read/write timeouts: the status socket is long-lived.
	httpSrv := &http.Server{
		Addr:              cfg.Listen.HTTP,
		Handler:           srv.Router(*staticDir),
		ReadHeaderTimeout: 15 * time.Second,
	}
	g.Go(func() error {
		log.Printf("web server listening on %s", cfg.Listen.HTTP)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("shutting down: %v", err)
	}
	// Leave the rotor halted on the way out.
	pl.Stop()
}
