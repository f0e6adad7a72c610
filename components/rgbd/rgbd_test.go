package rgbd_test

import (
	"context"
	"errors"
	"testing"

	"go.viam.com/test"

	"go.viam.com/rgbdcapture/components/rgbd"
	"go.viam.com/rgbdcapture/logging"
	"go.viam.com/rgbdcapture/testutils/inject"
)

func TestOpenDefault(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dev := &inject.Device{}

	driver := &inject.Driver{
		EnumerateDevicesFunc:    func() int { return 0 },
		DefaultSerialNumberFunc: func() string { return "001" },
		OpenDeviceFunc: func(ctx context.Context, serial string) (rgbd.Device, error) {
			return dev, nil
		},
	}
	_, err := rgbd.OpenDefault(context.Background(), driver, logger)
	test.That(t, errors.Is(err, rgbd.ErrNoDevice), test.ShouldBeTrue)

	driver.EnumerateDevicesFunc = func() int { return 1 }
	got, err := rgbd.OpenDefault(context.Background(), driver, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, dev)

	driver.OpenDeviceFunc = func(ctx context.Context, serial string) (rgbd.Device, error) {
		return nil, errors.New("usb busy")
	}
	_, err = rgbd.OpenDefault(context.Background(), driver, logger)
	test.That(t, errors.Is(err, rgbd.ErrOpenDevice), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "usb busy")
	test.That(t, err.Error(), test.ShouldContainSubstring, "001")
}

func TestLifecycle(t *testing.T) {
	logger := logging.NewTestLogger(t)
	var calls []string
	dev := &inject.Device{
		StartFunc:           func(ctx context.Context) error { calls = append(calls, "start"); return nil },
		StopFunc:            func(ctx context.Context) error { calls = append(calls, "stop"); return nil },
		CloseFunc:           func(ctx context.Context) error { calls = append(calls, "close"); return nil },
		SerialNumberFunc:    func() string { return "001" },
		FirmwareVersionFunc: func() string { return "2.3.3913.0" },
	}
	lc := rgbd.NewLifecycle(dev, logger)
	test.That(t, lc.Start(context.Background()), test.ShouldBeNil)
	test.That(t, lc.Start(context.Background()), test.ShouldBeError)
	test.That(t, lc.Shutdown(context.Background()), test.ShouldBeNil)
	test.That(t, lc.Shutdown(context.Background()), test.ShouldBeNil)
	test.That(t, calls, test.ShouldResemble, []string{"start", "stop", "close"})
	test.That(t, lc.Start(context.Background()), test.ShouldBeError)
}

func TestLifecycleNeverStarted(t *testing.T) {
	var calls []string
	dev := &inject.Device{
		StartFunc: func(ctx context.Context) error { return errors.New("no bandwidth") },
		StopFunc:  func(ctx context.Context) error { calls = append(calls, "stop"); return nil },
		CloseFunc: func(ctx context.Context) error { calls = append(calls, "close"); return errors.New("close failed") },
	}
	lc := rgbd.NewLifecycle(dev, logging.NewTestLogger(t))
	err := lc.Start(context.Background())
	test.That(t, err, test.ShouldBeError)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no bandwidth")

	err = lc.Shutdown(context.Background())
	test.That(t, err, test.ShouldBeError)
	test.That(t, err.Error(), test.ShouldContainSubstring, "close failed")
	test.That(t, calls, test.ShouldResemble, []string{"close"})
}
