package inject

import (
	"context"

	"go.viam.com/rgbdcapture/components/rgbd"
	"go.viam.com/rgbdcapture/rimage/transform"
)

// Device is an injected depth camera.
type Device struct {
	rgbd.Device
	SetListenerFunc       func(l rgbd.FrameListener)
	StartFunc             func(ctx context.Context) error
	StopFunc              func(ctx context.Context) error
	CloseFunc             func(ctx context.Context) error
	SerialNumberFunc      func() string
	FirmwareVersionFunc   func() string
	IRCameraParamsFunc    func() *transform.IRCameraParams
	ColorCameraParamsFunc func() *transform.ColorCameraParams
}

// SetListener calls the injected SetListener or the real version.
func (d *Device) SetListener(l rgbd.FrameListener) {
	if d.SetListenerFunc == nil {
		d.Device.SetListener(l)
		return
	}
	d.SetListenerFunc(l)
}

// Start calls the injected Start or the real version.
func (d *Device) Start(ctx context.Context) error {
	if d.StartFunc == nil {
		return d.Device.Start(ctx)
	}
	return d.StartFunc(ctx)
}

// Stop calls the injected Stop or the real version.
func (d *Device) Stop(ctx context.Context) error {
	if d.StopFunc == nil {
		return d.Device.Stop(ctx)
	}
	return d.StopFunc(ctx)
}

// Close calls the injected Close or the real version.
func (d *Device) Close(ctx context.Context) error {
	if d.CloseFunc == nil {
		if d.Device == nil {
			return nil
		}
		return d.Device.Close(ctx)
	}
	return d.CloseFunc(ctx)
}

// SerialNumber calls the injected SerialNumber or the real version.
func (d *Device) SerialNumber() string {
	if d.SerialNumberFunc == nil {
		return d.Device.SerialNumber()
	}
	return d.SerialNumberFunc()
}

// FirmwareVersion calls the injected FirmwareVersion or the real version.
func (d *Device) FirmwareVersion() string {
	if d.FirmwareVersionFunc == nil {
		return d.Device.FirmwareVersion()
	}
	return d.FirmwareVersionFunc()
}

// IRCameraParams calls the injected IRCameraParams or the real version.
func (d *Device) IRCameraParams() *transform.IRCameraParams {
	if d.IRCameraParamsFunc == nil {
		return d.Device.IRCameraParams()
	}
	return d.IRCameraParamsFunc()
}

// ColorCameraParams calls the injected ColorCameraParams or the real version.
func (d *Device) ColorCameraParams() *transform.ColorCameraParams {
	if d.ColorCameraParamsFunc == nil {
		return d.Device.ColorCameraParams()
	}
	return d.ColorCameraParamsFunc()
}

// Driver is an injected driver.
type Driver struct {
	rgbd.Driver
	EnumerateDevicesFunc    func() int
	DefaultSerialNumberFunc func() string
	OpenDeviceFunc          func(ctx context.Context, serial string) (rgbd.Device, error)
}

// EnumerateDevices calls the injected EnumerateDevices or the real version.
func (d *Driver) EnumerateDevices() int {
	if d.EnumerateDevicesFunc == nil {
		return d.Driver.EnumerateDevices()
	}
	return d.EnumerateDevicesFunc()
}

// DefaultSerialNumber calls the injected DefaultSerialNumber or the real version.
func (d *Driver) DefaultSerialNumber() string {
	if d.DefaultSerialNumberFunc == nil {
		return d.Driver.DefaultSerialNumber()
	}
	return d.DefaultSerialNumberFunc()
}

// OpenDevice calls the injected OpenDevice or the real version.
func (d *Driver) OpenDevice(ctx context.Context, serial string) (rgbd.Device, error) {
	if d.OpenDeviceFunc == nil {
		return d.Driver.OpenDevice(ctx, serial)
	}
	return d.OpenDeviceFunc(ctx, serial)
}
