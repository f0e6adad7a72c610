package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"go.viam.com/rgbdcapture/components/rgbd"
	"go.viam.com/rgbdcapture/display"
	"go.viam.com/rgbdcapture/logging"
	"go.viam.com/rgbdcapture/recorder"
	"go.viam.com/rgbdcapture/rimage"
)

const (
	// DefaultKeyTimeout bounds how long an iteration waits for a key press.
	DefaultKeyTimeout = time.Millisecond
	dropLogInterval   = time.Second
)

// Config wires a Pipeline.
type Config struct {
	Listener  rgbd.Listener
	Processor *Processor
	Display   display.Display
	Sink      recorder.Sink
	Session   *Session
	Token     *ShutdownToken
	// Stats is optional.
	Stats *Stats
	// KeyTimeout defaults to DefaultKeyTimeout.
	KeyTimeout time.Duration
	// MaxIterations stops the loop after that many acquired frame sets; 0 runs until shutdown.
	MaxIterations uint64
}

// Pipeline is the capture loop.
type Pipeline struct {
	cfg    Config
	logger logging.Logger

	iterations uint64
	// throttles the per-frame drop warning
	dropLog rate.Sometimes
}

// New validates cfg and returns a pipeline.
func New(cfg Config, logger logging.Logger) (*Pipeline, error) {
	switch {
	case cfg.Listener == nil:
		return nil, errors.New("pipeline needs a listener")
	case cfg.Processor == nil:
		return nil, errors.New("pipeline needs a processor")
	case cfg.Display == nil:
		return nil, errors.New("pipeline needs a display")
	case cfg.Sink == nil:
		return nil, errors.New("pipeline needs a sink")
	case cfg.Session == nil:
		return nil, errors.New("pipeline needs a session")
	case cfg.Token == nil:
		return nil, errors.New("pipeline needs a shutdown token")
	}
	if cfg.KeyTimeout <= 0 {
		cfg.KeyTimeout = DefaultKeyTimeout
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStats(nil, 0, logger)
	}
	return &Pipeline{
		cfg:     cfg,
		logger:  logger,
		dropLog: rate.Sometimes{First: 1, Interval: dropLogInterval},
	}, nil
}

// Iterations is the number of frame sets acquired so far.
func (p *Pipeline) Iterations() uint64 {
	return p.iterations
}

// Run processes frame sets until the shutdown token is triggered, ctx is done or MaxIterations is reached.
// Both shutdown paths are only observed between iterations: an acquired frame set is always processed
// and released. Cancelling ctx while waiting for frames ends the run without an error.
func (p *Pipeline) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, p.cfg.Token.Trigger)
	defer stop()

	p.logger.Infow("streaming started", "max_distance_mm", p.cfg.Session.Threshold)
	for !p.cfg.Token.Triggered() && ctx.Err() == nil {
		if p.cfg.MaxIterations > 0 && p.iterations >= p.cfg.MaxIterations {
			p.logger.Infow("frame limit reached", "frames", p.iterations)
			break
		}
		if err := p.iterate(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return err
		}
	}
	p.logger.Infow("streaming ended", "frames", p.iterations, "saved", p.cfg.Session.FrameCount)
	return nil
}

// iterate runs one acquire, process, show, save, poll cycle. The frame set is released on every path.
func (p *Pipeline) iterate(ctx context.Context) error {
	set, err := p.cfg.Listener.WaitForNewFrame(ctx)
	if err != nil {
		return err
	}
	defer p.cfg.Listener.Release(set)
	p.iterations++

	clk := p.cfg.Stats.Clock()
	start := clk.Now()
	if res, err := p.cfg.Processor.Process(set, p.cfg.Session); err != nil {
		p.cfg.Stats.Drop()
		p.dropLog.Do(func() {
			p.logger.Warnw("dropping frame set", "iteration", p.iterations, "error", err)
		})
	} else {
		p.show(res)
		p.persist(res)
		p.cfg.Stats.Observe(clk.Since(start))
	}

	if key, ok := p.cfg.Display.PollKey(ctx, p.cfg.KeyTimeout); ok {
		p.handleKey(key)
	}
	return nil
}

func (p *Pipeline) show(res *Result) {
	p.cfg.Display.Show(display.StreamDepth, res.Depth.ToGray(rimage.Depth(clampDepth(p.cfg.Session.Threshold))))
	p.cfg.Display.Show(display.StreamColor, res.Color)
}

func (p *Pipeline) persist(res *Result) {
	s := p.cfg.Session
	if !s.Recording {
		return
	}
	if err := p.cfg.Sink.Save(res.Depth, res.Color, s.FrameCount); err != nil {
		p.logger.Errorw("failed to save frame pair", "index", s.FrameCount, "error", err)
		return
	}
	p.cfg.Stats.Save()
	s.FrameCount++
}

func (p *Pipeline) handleKey(key rune) {
	s := p.cfg.Session
	switch action := HandleKey(s, p.cfg.Token, key); action {
	case ActionQuit:
		p.logger.Info("quit requested")
	case ActionToggleRecording:
		p.logger.Infow("recording toggled", "recording", s.Recording, "next_index", s.FrameCount)
	case ActionThresholdDown, ActionThresholdUp:
		p.logger.Infow("max distance changed", "max_distance_mm", s.Threshold)
	case ActionNone:
	}
}

func clampDepth(v int64) int64 {
	if v < 1 {
		return 1
	}
	if v > int64(rimage.MaxDepth) {
		return int64(rimage.MaxDepth)
	}
	return v
}
