package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/montanaflynn/stats"
	goutils "go.viam.com/utils"

	"go.viam.com/rgbdcapture/logging"
)

// Summary describes the iterations since the previous report.
type Summary struct {
	Frames    int
	Dropped   uint64
	Saved     uint64
	FPS       float64
	P50Millis float64
	P95Millis float64
	MaxMillis float64
}

// Stats collects per-iteration latencies and periodically logs a summary.
type Stats struct {
	clock    clock.Clock
	interval time.Duration
	logger   logging.Logger

	mu        sync.Mutex
	latencies []float64
	dropped   uint64
	saved     uint64
	since     time.Time

	workers *goutils.StoppableWorkers
}

// NewStats returns a collector that reports every interval once started.
func NewStats(clk clock.Clock, interval time.Duration, logger logging.Logger) *Stats {
	if clk == nil {
		clk = clock.New()
	}
	return &Stats{
		clock:    clk,
		interval: interval,
		logger:   logger,
		since:    clk.Now(),
	}
}

// Clock is the clock latencies are measured with.
func (s *Stats) Clock() clock.Clock {
	return s.clock
}

// Start begins periodic reporting. A non-positive interval disables it.
func (s *Stats) Start() {
	if s.interval <= 0 {
		return
	}
	ticker := s.clock.Ticker(s.interval)
	s.workers = goutils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		defer ticker.Stop()
		for {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.log(s.Report())
			}
		}
	})
}

// Close stops periodic reporting.
func (s *Stats) Close() {
	if s.workers != nil {
		s.workers.Stop()
	}
}

// Observe records the latency of one processed iteration.
func (s *Stats) Observe(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, float64(d)/float64(time.Millisecond))
}

// Drop records an iteration whose frame set could not be processed.
func (s *Stats) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped++
}

// Save records a persisted pair.
func (s *Stats) Save() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved++
}

// Report summarizes and resets the samples collected since the last report.
func (s *Stats) Report() Summary {
	s.mu.Lock()
	latencies := s.latencies
	sum := Summary{Frames: len(latencies), Dropped: s.dropped, Saved: s.saved}
	s.latencies = nil
	s.dropped = 0
	s.saved = 0
	now := s.clock.Now()
	elapsed := now.Sub(s.since)
	s.since = now
	s.mu.Unlock()

	if elapsed > 0 {
		sum.FPS = float64(sum.Frames) / elapsed.Seconds()
	}
	if len(latencies) == 0 {
		return sum
	}
	data := stats.Float64Data(latencies)
	// errors only happen on empty input
	sum.P50Millis, _ = stats.Percentile(data, 50)
	sum.P95Millis, _ = stats.Percentile(data, 95)
	sum.MaxMillis, _ = stats.Max(data)
	return sum
}

func (s *Stats) log(sum Summary) {
	s.logger.Infow("capture stats",
		"frames", sum.Frames,
		"fps", sum.FPS,
		"p50_ms", sum.P50Millis,
		"p95_ms", sum.P95Millis,
		"max_ms", sum.MaxMillis,
		"dropped", sum.Dropped,
		"saved", sum.Saved,
	)
}
