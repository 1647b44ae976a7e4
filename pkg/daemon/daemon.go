package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/h3ct1cl3o/weighgrind/pkg/config"
	"github.com/h3ct1cl3o/weighgrind/pkg/controller"
	"github.com/h3ct1cl3o/weighgrind/pkg/display"
	"github.com/h3ct1cl3o/weighgrind/pkg/events"
	"github.com/h3ct1cl3o/weighgrind/pkg/hal"
	"github.com/h3ct1cl3o/weighgrind/pkg/nvram"
	"github.com/h3ct1cl3o/weighgrind/pkg/scale"
	"github.com/h3ct1cl3o/weighgrind/pkg/settings"
)

// ErrNotSimulated is returned by the simulation endpoints when the daemon
// drives real hardware.
var ErrNotSimulated = errors.New("board is not simulated")

const (
	passRecordCount = 600
	// a pass that takes this many loop intervals is a stall
	stallFactor = 50
)

// Daemon owns the board and the control loop, and serves the API.
type Daemon struct {
	conf     *config.File
	board    hal.Board
	sim      *hal.Simulator
	store    *settings.Store
	scale    *scale.Scale
	canvas   *display.Canvas
	hub      *events.EventHub
	ctrl     *controller.Controller
	recorder *PassRecorder

	lastStatus loopStatus
	closers    []func() error
	wg         sync.WaitGroup

	// closed when the HTTP server shuts down, ending event streams
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New opens the board and storage named by conf and builds the controller.
func New(conf *config.File) (*Daemon, error) {
	dev, err := nvram.OpenFile(conf.StoragePath(), nvram.DefaultSize)
	if err != nil {
		return nil, err
	}

	board, err := openBoard(conf)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}

	d, err := newDaemon(conf, board, dev)
	if err != nil {
		_ = board.Close()
		_ = dev.Close()
		return nil, err
	}
	d.closers = append(d.closers, dev.Close)
	return d, nil
}

func openBoard(conf config.Config) (hal.Board, error) {
	switch conf.Backend() {
	case hal.BackendSerial:
		s, err := hal.OpenSerial(hal.SerialOptions{
			Port:          conf.SerialPort(),
			BaudRate:      conf.BaudRate(),
			SampleTimeout: conf.SampleTimeout(),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case hal.BackendSim:
		opts := hal.DefaultSimOptions
		opts.GrindRate = conf.SimGrindRate()
		opts.Noise = int32(conf.SimNoise())
		return hal.NewSimulator(opts), nil
	default:
		return nil, pkgerrors.Errorf("unknown backend %q", conf.Backend())
	}
}

func newDaemon(conf *config.File, board hal.Board, dev nvram.Device) (*Daemon, error) {
	d := &Daemon{
		conf:     conf,
		board:    board,
		hub:      events.NewEventHub(),
		shutdown: make(chan struct{}),
		recorder: NewPassRecorder(passRecordCount, stallFactor*conf.LoopInterval()),
	}
	if sim, ok := board.(*hal.Simulator); ok {
		d.sim = sim
	}

	d.store = settings.New(dev, settings.Defaults{
		Dose:              conf.DefaultDose(),
		CalibrationFactor: conf.DefaultCalibrationFactor(),
		MaxDose:           conf.MaxDose(),
	})
	values, err := d.store.Load()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load settings")
	}
	logrus.WithFields(logrus.Fields{
		"dose":              values.Dose,
		"doseStored":        values.DoseStored,
		"calibrationFactor": values.CalibrationFactor,
		"calibrationStored": values.CalibrationStored,
	}).Info("settings loaded")

	d.scale = scale.New(board, scale.Options{
		Samples:  conf.AveragingFactor(),
		MinGrams: conf.MinPlausibleGrams(),
		MaxGrams: conf.MaxPlausibleGrams(),
	})
	d.scale.SetFactor(values.CalibrationFactor)

	var sinks []display.Sink
	if conf.TerminalDisplay() {
		sinks = append(sinks, display.NewTerminal(os.Stdout))
	}
	d.canvas = display.NewCanvas(sinks...)

	d.ctrl = controller.New(controller.Deps{
		Scale:    d.scale,
		IO:       board,
		Encoder:  board.Encoder(),
		Display:  d.canvas,
		Settings: d.store,
		Events:   d.hub,
	}, controllerOptions(conf), values.Dose)

	return d, nil
}

func controllerOptions(conf config.Config) controller.Options {
	return controller.Options{
		AveragingFactor:          conf.AveragingFactor(),
		CalibrationSamples:       conf.CalibrationSamples(),
		DefaultCalibrationFactor: conf.DefaultCalibrationFactor(),
		MaxDose:                  conf.MaxDose(),
		Tolerance:                conf.DoseTolerance(),
		OverloadMargin:           conf.OverloadMargin(),
		PulseOn:                  conf.PulseOn(),
		PulseOff:                 conf.PulseOff(),
		TareSettle:               conf.TareSettle(),
		ActuatorKeepalive:        conf.ActuatorKeepalive(),
		AdjustStep:               conf.AdjustStep(),
		AdjustTimeout:            conf.AdjustTimeoutIterations(),
		CalibrationTimeout:       conf.CalibrationTimeoutIterations(),
	}
}

// Start tares the scale and starts the encoder task, the actuator task and
// the control loop.
func (d *Daemon) Start(ctx context.Context) {
	if err := d.scale.Tare(ctx, d.conf.AveragingFactor()); err != nil {
		logrus.WithError(err).Warn("failed to tare at startup")
	}

	if s, ok := d.board.(hal.EncoderServicer); ok {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			serviceEncoder(ctx, s, d.conf.EncoderServiceInterval())
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		serviceActuator(ctx, d.ctrl, d.conf.ActuatorServiceInterval())
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runLoop(ctx, d.conf.LoopInterval())
	}()
}

// Close waits for the loop to stop, turns the actuator off and releases
// the board and storage. The context passed to Start must be done.
func (d *Daemon) Close() error {
	d.wg.Wait()

	var errs []error
	if err := d.ctrl.Shutdown(); err != nil {
		errs = append(errs, pkgerrors.Wrap(err, "failed to turn actuator off"))
	}
	if err := d.board.Close(); err != nil {
		errs = append(errs, pkgerrors.Wrap(err, "failed to close board"))
	}
	for _, c := range d.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	d, err := New(conf)
	if err != nil {
		return err
	}

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded, controller options apply after restart")
		}
	}()

	srv := &http.Server{
		Handler: d.Router(),
	}
	srv.RegisterOnShutdown(d.stopStreams)

	// Remove a stale socket left by a crash.
	if _, err := os.Stat(unixSocketPath); err == nil {
		if err := os.Remove(unixSocketPath); err != nil {
			return pkgerrors.Wrapf(err, "failed to remove stale socket %s", unixSocketPath)
		}
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	d.Start(ctx)

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping control loop")
	stop()
	if err := d.Close(); err != nil {
		logrus.Errorf("failed to close cleanly: %v", err)
	}

	logrus.Info("exiting")
	return nil
}

func setupRoutes(d *Daemon) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/status", d.getStatus)
	router.GET("/display", d.getDisplay)
	router.GET("/config", d.getConfig)
	router.GET("/version", getVersion)
	router.GET("/events", d.streamEvents)
	router.GET("/dose", d.getDose)
	router.PUT("/dose", d.setDose)
	router.POST("/tare", d.tare)
	router.GET("/calibration", d.getCalibration)
	router.GET("/loop-stats", d.getLoopStats)

	sim := router.Group("/sim", d.requireSim)
	sim.PUT("/handle", d.setSimHandle)
	sim.PUT("/manual", d.setSimManual)
	sim.PUT("/fault", d.setSimFault)
	sim.PUT("/mass", d.setSimMass)
	sim.POST("/encoder/rotate", d.simRotate)
	sim.POST("/encoder/click", d.simClick)
	sim.POST("/encoder/double-click", d.simDoubleClick)

	return router
}

func (d *Daemon) stopStreams() {
	d.shutdownOnce.Do(func() {
		close(d.shutdown)
		d.hub.Close()
	})
}

// Router returns the API handler.
func (d *Daemon) Router() *gin.Engine {
	return setupRoutes(d)
}
