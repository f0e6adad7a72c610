package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/rgbdcapture/components/rgbd"
	"go.viam.com/rgbdcapture/components/rgbd/fake"
	"go.viam.com/rgbdcapture/components/rgbd/registration"
	"go.viam.com/rgbdcapture/config"
	"go.viam.com/rgbdcapture/display"
	"go.viam.com/rgbdcapture/display/terminal"
	"go.viam.com/rgbdcapture/display/window"
	"go.viam.com/rgbdcapture/logging"
	"go.viam.com/rgbdcapture/pipeline"
	"go.viam.com/rgbdcapture/recorder"
)

const (
	// Flags.
	flagConfig      = "config"
	flagHeadless    = "headless"
	flagDebug       = "debug"
	flagLogFile     = "log-file"
	flagMaxDistance = "max-distance"
	flagFrames      = "frames"
	flagFake        = "fake"

	logFileMaxSizeMB  = 64
	logFileMaxBackups = 3
)

// deps are the process level collaborators, swapped out in tests.
type deps struct {
	stdin     io.Reader
	logger    logging.Logger
	newDriver func(cfg *config.Config, logger logging.Logger) rgbd.Driver
}

func defaultDeps() deps {
	return deps{
		stdin:     os.Stdin,
		logger:    logging.NewLogger("rgbdcapture"),
		newDriver: newDriver,
	}
}

func newDriver(cfg *config.Config, logger logging.Logger) rgbd.Driver {
	if cfg.UseFake() {
		return fake.NewDriver(fake.Config{}, logger.Sublogger("fake"))
	}
	return hardwareDriver{}
}

// hardwareDriver stands in for a USB backend, none of which is linked into this build.
type hardwareDriver struct{}

func (hardwareDriver) EnumerateDevices() int {
	return 0
}

func (hardwareDriver) DefaultSerialNumber() string {
	return ""
}

func (hardwareDriver) OpenDevice(ctx context.Context, serial string) (rgbd.Device, error) {
	return nil, rgbd.ErrNoDevice
}

func newApp(d deps) *cli.App {
	return &cli.App{
		Name:  "rgbdcapture",
		Usage: "stream registered depth and color from an RGB-D sensor and record frame pairs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:  flagHeadless,
				Usage: "read keys from the terminal instead of opening a window",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to `FILE`, rotated by size",
			},
			&cli.Int64Flag{
				Name:  flagMaxDistance,
				Usage: "initial maximum distance in millimeters",
			},
			&cli.Uint64Flag{
				Name:  flagFrames,
				Usage: "stop after this many frame sets, 0 runs until quit",
			},
			&cli.BoolFlag{
				Name:  flagFake,
				Usage: "stream from the synthetic device",
			},
		},
		Action: func(c *cli.Context) error {
			return runCapture(c, d)
		},
	}
}

// loadConfig reads the config file, if any, and applies flags on top of it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Defaults()
	if fn := c.String(flagConfig); fn != "" {
		var err error
		if cfg, err = config.Read(fn); err != nil {
			return nil, errors.Wrapf(err, "failed to read config %q", fn)
		}
	}
	if c.IsSet(flagHeadless) {
		cfg.Headless = c.Bool(flagHeadless)
	}
	if c.IsSet(flagDebug) {
		cfg.Debug = c.Bool(flagDebug)
	}
	if c.IsSet(flagLogFile) {
		cfg.LogFile = c.String(flagLogFile)
	}
	if c.IsSet(flagMaxDistance) {
		cfg.MaxDistanceMM = c.Int64(flagMaxDistance)
	}
	if c.IsSet(flagFake) {
		useFake := c.Bool(flagFake)
		cfg.Fake = &useFake
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runCapture(c *cli.Context, d deps) (err error) {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := d.logger
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.Debug {
		logger.SetLevel(logging.DEBUG)
	}
	if cfg.LogFile != "" {
		fileAppender := logging.NewFileAppender(cfg.LogFile, logFileMaxSizeMB, logFileMaxBackups)
		logger.AddAppender(fileAppender)
		defer goutils.UncheckedErrorFunc(fileAppender.Close)
	}
	defer goutils.UncheckedErrorFunc(logger.Sync)

	if err := recorder.ResetDirs(cfg.OutputDir, cfg.DepthPath(), cfg.ColorPath()); err != nil {
		return err
	}

	dev, err := rgbd.OpenDefault(ctx, d.newDriver(cfg, logger), logger)
	if err != nil {
		return err
	}
	listener := rgbd.NewSyncMultiFrameListener(rgbd.AllFrameTypes)
	dev.SetListener(listener)
	lifecycle := rgbd.NewLifecycle(dev, logger)
	defer func() {
		// the capture context may already be cancelled
		err = multierr.Combine(err, lifecycle.Shutdown(context.Background()))
	}()
	if err := lifecycle.Start(ctx); err != nil {
		return err
	}

	irParams, colorParams := dev.IRCameraParams(), dev.ColorCameraParams()
	logger.Infow("ir camera", "params", irParams.String())
	logger.Infow("color camera", "params", colorParams.String())

	cpu, err := registration.NewCPURegisterer(irParams, colorParams)
	if err != nil {
		return err
	}
	regCfg := registration.DefaultConfig()
	regCfg.EnableFilter = cfg.FilterEnabled()
	reg, err := registration.NewRegistration(cpu, regCfg)
	if err != nil {
		return err
	}
	proc, err := pipeline.NewProcessor(reg, cfg.FarDepthMM, cfg.DepthScale, cfg.MirrorEnabled())
	if err != nil {
		return err
	}
	sink, err := recorder.NewFileSink(cfg.DepthPath(), cfg.ColorPath(), cfg.DepthFormat, cfg.ColorFormat)
	if err != nil {
		return err
	}

	interval, err := cfg.StatsIntervalDuration()
	if err != nil {
		return err
	}
	stats := pipeline.NewStats(nil, interval, logger.Sublogger("stats"))

	manifest := recorder.NewManifest(stats.Clock().Now())
	manifest.SerialNumber = dev.SerialNumber()
	manifest.FirmwareVersion = dev.FirmwareVersion()
	manifest.IR = irParams
	manifest.Color = colorParams
	manifest.DepthScale = cfg.DepthScale
	manifest.MaxDistanceMM = cfg.MaxDistanceMM
	manifest.FarDepthMM = cfg.FarDepthMM
	manifest.DepthDir = cfg.DepthPath()
	manifest.ColorDir = cfg.ColorPath()
	manifest.DepthFormat = cfg.DepthFormat
	manifest.ColorFormat = cfg.ColorFormat
	manifest.LogLevel = logger.GetLevel()
	if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
		return errors.Wrapf(err, "failed to create %q", cfg.OutputDir)
	}
	if err := recorder.WriteManifest(cfg.OutputDir, manifest); err != nil {
		return err
	}
	logger.Infow("session", "id", manifest.SessionID, "output_dir", cfg.OutputDir)

	session := pipeline.NewSession()
	session.Threshold = cfg.MaxDistanceMM
	pipeCfg := pipeline.Config{
		Listener:      listener,
		Processor:     proc,
		Sink:          sink,
		Session:       session,
		Token:         &pipeline.ShutdownToken{},
		Stats:         stats,
		MaxIterations: c.Uint64(flagFrames),
	}

	stats.Start()
	defer stats.Close()

	if cfg.Headless {
		return runHeadless(ctx, d, pipeCfg, logger)
	}
	return runWindowed(ctx, pipeCfg, logger)
}

func runHeadless(ctx context.Context, d deps, pipeCfg pipeline.Config, logger logging.Logger) error {
	var term *terminal.Terminal
	if f, ok := d.stdin.(*os.File); ok {
		var err error
		if term, err = terminal.New(f, logger); err != nil {
			return err
		}
	} else {
		term = terminal.NewFromReader(d.stdin, logger)
	}
	defer goutils.UncheckedErrorFunc(term.Close)

	pipeCfg.Display = term
	p, err := pipeline.New(pipeCfg, logger)
	if err != nil {
		return err
	}
	return p.Run(ctx)
}

// runWindowed drives the UI event loop on the calling goroutine, which must be main, and the capture loop
// beside it. Closing the window triggers the same shutdown as the quit key.
func runWindowed(ctx context.Context, pipeCfg pipeline.Config, logger logging.Logger) error {
	win := window.New("rgbdcapture", []string{display.StreamDepth, display.StreamColor}, logger)
	pipeCfg.Display = win
	p, err := pipeline.New(pipeCfg, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	goutils.PanicCapturingGo(func() {
		defer goutils.UncheckedErrorFunc(win.Close)
		errCh <- p.Run(ctx)
	})
	win.Run(pipeCfg.Token.Trigger)
	// the window can go away before the loop notices
	pipeCfg.Token.Trigger()
	return <-errCh
}
