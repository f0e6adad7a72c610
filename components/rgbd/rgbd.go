// Package rgbd defines a structured-light depth camera that delivers synchronized color, infrared and depth
// frames, and the driver that finds and opens one.
package rgbd

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rgbdcapture/logging"
	"go.viam.com/rgbdcapture/rimage/transform"
)

var (
	// ErrNoDevice is returned when the driver finds no connected device.
	ErrNoDevice = errors.New("no device connected")
	// ErrOpenDevice is returned when a device was found but could not be opened.
	ErrOpenDevice = errors.New("failure opening device")
)

// A Device is an opened depth camera. Start, Stop and Close must be called in that order and only once;
// see Lifecycle.
type Device interface {
	// SetListener attaches the listener frames are delivered to. It must be called before Start.
	SetListener(l FrameListener)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Close(ctx context.Context) error

	SerialNumber() string
	FirmwareVersion() string
	// IRCameraParams and ColorCameraParams are the factory calibration. They are valid after Start.
	IRCameraParams() *transform.IRCameraParams
	ColorCameraParams() *transform.ColorCameraParams
}

// A Driver enumerates and opens devices.
type Driver interface {
	EnumerateDevices() int
	DefaultSerialNumber() string
	OpenDevice(ctx context.Context, serial string) (Device, error)
}

// OpenDefault opens the driver's default device.
func OpenDefault(ctx context.Context, driver Driver, logger logging.Logger) (Device, error) {
	if driver.EnumerateDevices() == 0 {
		return nil, ErrNoDevice
	}
	serial := driver.DefaultSerialNumber()
	dev, err := driver.OpenDevice(ctx, serial)
	if err != nil {
		return nil, errors.Wrapf(ErrOpenDevice, "serial %q: %v", serial, err)
	}
	if dev == nil {
		return nil, errors.Wrapf(ErrOpenDevice, "serial %q", serial)
	}
	logger.Infow("opened device", "serial", serial)
	return dev, nil
}

// Lifecycle enforces Start, Stop and Close being called in order and at most once on a Device.
type Lifecycle struct {
	dev    Device
	logger logging.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	closed  bool
}

// NewLifecycle wraps dev.
func NewLifecycle(dev Device, logger logging.Logger) *Lifecycle {
	return &Lifecycle{dev: dev, logger: logger}
}

// Start starts streaming and logs the device identity.
func (lc *Lifecycle) Start(ctx context.Context) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.closed {
		return errors.New("device already closed")
	}
	if lc.started {
		return errors.New("device already started")
	}
	if err := lc.dev.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start device")
	}
	lc.started = true
	lc.logger.Infow("device started",
		"serial", lc.dev.SerialNumber(),
		"firmware", lc.dev.FirmwareVersion())
	return nil
}

// Shutdown stops a started device and closes it. Calling it more than once is a no-op.
func (lc *Lifecycle) Shutdown(ctx context.Context) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	var err error
	if lc.started && !lc.stopped {
		lc.stopped = true
		err = multierr.Combine(err, errors.Wrap(lc.dev.Stop(ctx), "failed to stop device"))
	}
	if !lc.closed {
		lc.closed = true
		err = multierr.Combine(err, errors.Wrap(lc.dev.Close(ctx), "failed to close device"))
	}
	return err
}
