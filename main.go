// pose.report is the host-side daemon for the UART pose radar deck. It runs
// the startup handshake, frames and validates the 18-byte pose protocol,
// feeds fixes to the estimator, and serves the observability API.
package main

import (
	"context"
	"flag"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/pose.report/api"
	"github.com/banshee-data/pose.report/internal/deck"
	"github.com/banshee-data/pose.report/internal/frame"
	"github.com/banshee-data/pose.report/internal/gpio"
	"github.com/banshee-data/pose.report/internal/handshake"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/posedb"
	"github.com/banshee-data/pose.report/internal/serialio"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode with a synthetic sensor")
	listen     = flag.String("listen", ":8080", "Listen address")
	portPath   = flag.String("port", "/dev/ttyAMA1", "Serial port for the pose deck")
	gpioPin    = flag.Int("gpio", 8, "GPIO number of the sensor ready line")
	invertLine = flag.Bool("invert-ready", false, "Invert ready line polarity (hold=low)")
	dbFile     = flag.String("db", "pose_data.db", "Fix database path (empty disables recording)")
)

// logEstimator stands in for the host state estimator. Fixes are logged at a
// sampled cadence so a 1 MBd stream does not flood the log.
type logEstimator struct {
	n uint64
}

func (e *logEstimator) SubmitPositionFix(f pose.Fix) {
	e.n++
	if e.n%100 == 1 {
		log.Printf("fix #%d: x=%.3f y=%.3f z=%.3f stdDev=%.4f", e.n, f.X, f.Y, f.Z, f.StdDev)
	}
}

// sensorBurst returns the ith burst of the synthetic sensor: usually one
// valid frame on a slow circle, every fifth preceded by line noise, every
// seventeenth with a corrupted payload byte the framer must drop.
func sensorBurst(i int) []byte {
	theta := float64(i) / 20
	f := frame.Encode(
		float32(2*math.Cos(theta)),
		float32(2*math.Sin(theta)),
		1.0,
		0.02,
	)
	switch {
	case i%17 == 0:
		f[5] ^= 0x55
		return f[:]
	case i%5 == 0:
		return append([]byte{0x00, 0x13, 0x37}, f[:]...)
	default:
		return f[:]
	}
}

// syntheticSensor feeds a mock stream the way the radar MCU would.
func syntheticSensor(ctx context.Context, m *serialio.MockStream) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var i int
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			i++
			m.Feed(sensorBurst(i))
		}
	}
}

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Host readiness barrier: the deck worker must not enable its receiver
	// before the daemon's services are up. The channel is closed once the
	// HTTP listener is running.
	servicesUp := make(chan struct{})
	barrier := handshake.BarrierFunc(func(ctx context.Context) error {
		select {
		case <-servicesUp:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	var (
		stream handshake.ByteStream
		line   handshake.ReadyLine
	)
	if *devMode {
		mock := serialio.NewMockStream()
		go syntheticSensor(ctx, mock)
		stream = mock
		line = gpio.NewFakeLine()
	} else {
		serialStream := serialio.NewStream(*portPath, serialio.PortOptions{})
		defer serialStream.Close()
		stream = serialStream

		polarity := gpio.HoldHigh
		if *invertLine {
			polarity = gpio.HoldLow
		}
		line = gpio.NewSysfsLine(*gpioPin, polarity)
	}

	snapshot := pose.NewSnapshot()
	estimator := &logEstimator{}

	var db *posedb.DB
	var store api.FixStore
	if *dbFile != "" {
		var err error
		db, err = posedb.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("failed to open fix database: %v", err)
		}
		defer db.Close()
		store = db
		log.Printf("recording fixes to %s (session %s)", *dbFile, db.SessionID())
	}

	coordinator := handshake.NewCoordinator(barrier, line, stream, frame.Baud)

	var worker *deck.Worker
	server := api.NewServer(snapshot, store, func() frame.Stats {
		return worker.Stats()
	})

	recorders := []pose.Recorder{server.Tail()}
	if db != nil {
		recorders = append(recorders, db)
	}
	publisher := pose.NewPublisher(estimator, snapshot, recorders...)
	worker = deck.NewWorker(coordinator, stream, publisher)
	driver := deck.NewDriver(worker)

	mux := server.ServeMux()
	if db != nil {
		db.AttachAdminRoutes(mux)
	}

	httpServer := &http.Server{Addr: *listen, Handler: mux}
	go func() {
		log.Printf("listening on %s", *listen)
		close(servicesUp)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	workerDone := make(chan error, 1)
	go func() {
		log.Printf("starting deck driver %q (vid=0x%02X pid=0x%02X)", driver.Name, driver.VID, driver.PID)
		workerDone <- driver.Init(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Print("shutting down")
	case err := <-workerDone:
		if err != nil && ctx.Err() == nil {
			log.Printf("deck worker stopped: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
}
