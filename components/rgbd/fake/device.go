// Package fake implements a depth camera that renders a synthetic scene: a tilted floor plane with a sphere
// floating in front of it that drifts from side to side.
package fake

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/rgbdcapture/components/rgbd"
	"go.viam.com/rgbdcapture/components/rgbd/registration"
	"go.viam.com/rgbdcapture/logging"
	"go.viam.com/rgbdcapture/rimage/transform"
)

// DefaultSerialNumber is the serial of the only device the fake driver reports.
const DefaultSerialNumber = "FAKE00000001"

const firmwareVersion = "2.3.3913.0.7"

// Config tunes the fake device.
type Config struct {
	// FPS is the rate at which frame sets are produced.
	FPS float64
	// Clock drives production; a mock clock makes frame delivery deterministic.
	Clock clock.Clock
}

func (cfg Config) withDefaults() Config {
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return cfg
}

var fakeIRParams = &transform.IRCameraParams{
	Intrinsics: &transform.PinholeCameraIntrinsics{
		Width:  registration.DepthWidth,
		Height: registration.DepthHeight,
		Fx:     365.4566,
		Fy:     365.4566,
		Ppx:    254.8781,
		Ppy:    205.3955,
	},
	Distortion: &transform.BrownConrady{
		RadialK1: 0.0905474,
		RadialK2: -0.26819,
		RadialK3: 0.0950862,
	},
}

var fakeColorParams = &transform.ColorCameraParams{
	Intrinsics: &transform.PinholeCameraIntrinsics{
		Width:  registration.ColorWidth,
		Height: registration.ColorHeight,
		Fx:     1081.3720,
		Fy:     1081.3720,
		Ppx:    959.5,
		Ppy:    539.5,
	},
	Extrinsics: &transform.Extrinsics{
		RotationMatrix:    []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		TranslationVector: []float64{-52, 0, 0},
	},
}

// Driver reports a single fake device.
type Driver struct {
	cfg    Config
	logger logging.Logger
}

// NewDriver returns a driver whose devices use cfg.
func NewDriver(cfg Config, logger logging.Logger) *Driver {
	return &Driver{cfg: cfg.withDefaults(), logger: logger}
}

// EnumerateDevices always finds one device.
func (d *Driver) EnumerateDevices() int {
	return 1
}

// DefaultSerialNumber returns the fake device's serial.
func (d *Driver) DefaultSerialNumber() string {
	return DefaultSerialNumber
}

// OpenDevice opens the fake device.
func (d *Driver) OpenDevice(ctx context.Context, serial string) (rgbd.Device, error) {
	if serial != DefaultSerialNumber {
		return nil, errors.Errorf("no fake device with serial %q", serial)
	}
	return &Device{cfg: d.cfg, logger: d.logger.Sublogger("fake")}, nil
}

// Device renders frame sets on a ticker and hands them to its listener, standing in for a driver's
// transfer threads.
type Device struct {
	cfg    Config
	logger logging.Logger

	mu       sync.Mutex
	listener rgbd.FrameListener
	workers  *goutils.StoppableWorkers
	closed   bool
	seq      uint32
	dropped  uint64
}

// SetListener attaches the listener frames are delivered to.
func (d *Device) SetListener(l rgbd.FrameListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = l
}

// Start begins producing frames.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("device is closed")
	}
	if d.listener == nil {
		return errors.New("no listener set")
	}
	if d.workers != nil {
		return errors.New("device already started")
	}
	period := time.Duration(float64(time.Second) / d.cfg.FPS)
	// the ticker is created here so that a mock clock advanced right after Start is observed
	ticker := d.cfg.Clock.Ticker(period)
	listener := d.listener
	d.workers = goutils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		defer ticker.Stop()
		for {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.emit(listener)
			}
		}
	})
	return nil
}

// Stop stops producing frames and waits for the producer to exit.
func (d *Device) Stop(ctx context.Context) error {
	d.mu.Lock()
	workers := d.workers
	d.workers = nil
	d.mu.Unlock()
	if workers == nil {
		return errors.New("device not started")
	}
	workers.Stop()
	d.logger.Debugw("stopped producing", "frames", d.Sequence(), "dropped", d.Dropped())
	return nil
}

// Close stops the device if needed.
func (d *Device) Close(ctx context.Context) error {
	d.mu.Lock()
	workers := d.workers
	d.workers = nil
	d.closed = true
	d.mu.Unlock()
	if workers != nil {
		workers.Stop()
	}
	return nil
}

// SerialNumber returns the fake serial.
func (d *Device) SerialNumber() string {
	return DefaultSerialNumber
}

// FirmwareVersion returns a plausible firmware string.
func (d *Device) FirmwareVersion() string {
	return firmwareVersion
}

// IRCameraParams returns plausible depth sensor calibration.
func (d *Device) IRCameraParams() *transform.IRCameraParams {
	p := *fakeIRParams
	return &p
}

// ColorCameraParams returns plausible color sensor calibration.
func (d *Device) ColorCameraParams() *transform.ColorCameraParams {
	p := *fakeColorParams
	return &p
}

// Sequence is the number of frame sets produced so far.
func (d *Device) Sequence() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq
}

// Dropped is the number of frames the listener refused.
func (d *Device) Dropped() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Device) emit(listener rgbd.FrameListener) {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	now := d.cfg.Clock.Now()
	frames := []struct {
		t rgbd.FrameType
		f *rgbd.Frame
	}{
		{rgbd.FrameColor, renderColor(seq)},
		{rgbd.FrameIr, renderIr(seq)},
		{rgbd.FrameDepth, renderDepth(seq)},
	}
	var dropped uint64
	for _, fr := range frames {
		fr.f.Sequence = seq
		fr.f.Timestamp = now
		if !listener.OnNewFrame(fr.t, fr.f) {
			dropped++
		}
	}
	if dropped > 0 {
		d.mu.Lock()
		d.dropped += dropped
		d.mu.Unlock()
	}
}

// sceneDepth is the depth in millimeters at depth pixel (x, y) of frame seq, or 0 where the sensor
// sees nothing.
func sceneDepth(x, y int, seq uint32) float32 {
	w, h := registration.DepthWidth, registration.DepthHeight
	// the outermost columns are outside the emitter's field
	if x < 8 || x >= w-8 {
		return 0
	}
	// sphere of radius 60px drifting horizontally
	cx := float64(w)/2 + 120*math.Sin(float64(seq)/30)
	cy := float64(h) / 2
	dx, dy := float64(x)-cx, float64(y)-cy
	if r2 := dx*dx + dy*dy; r2 < 60*60 {
		return float32(900 - 200*math.Sqrt(1-r2/(60*60)))
	}
	// floor rising toward the top of the image
	return float32(1200 + 8*(h-y))
}

func putFloat(data []byte, i int, v float32) {
	binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
}

func renderDepth(seq uint32) *rgbd.Frame {
	w, h := registration.DepthWidth, registration.DepthHeight
	f := rgbd.NewFrame(w, h, 4, rgbd.FormatFloat)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			putFloat(f.Data, y*w+x, sceneDepth(x, y, seq))
		}
	}
	return f
}

func renderIr(seq uint32) *rgbd.Frame {
	w, h := registration.DepthWidth, registration.DepthHeight
	f := rgbd.NewFrame(w, h, 4, rgbd.FormatFloat)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var v float32
			if z := sceneDepth(x, y, seq); z > 0 {
				// returned intensity falls off with the square of distance
				v = 65535 * (500 * 500) / (z * z)
			}
			putFloat(f.Data, y*w+x, v)
		}
	}
	return f
}

func renderColor(seq uint32) *rgbd.Frame {
	w, h := registration.ColorWidth, registration.ColorHeight
	f := rgbd.NewFrame(w, h, 4, rgbd.FormatBGRX)
	shift := int(seq) * 4
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			// the bottom rows are blanked as if the sensor delivered no data there
			if y >= h-40 {
				continue
			}
			checker := uint8(0)
			if ((x+shift)/64+y/64)%2 == 0 {
				checker = 64
			}
			f.Data[i] = uint8(255*y/h) | 1
			f.Data[i+1] = checker + 32
			f.Data[i+2] = uint8(255 * x / w)
			f.Data[i+3] = 0xff
		}
	}
	return f
}
