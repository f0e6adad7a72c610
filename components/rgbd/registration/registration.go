// Package registration aligns a depth frame with a color frame using the driver's registration routine
// and owns the scratch images that routine writes into.
package registration

import (
	"image"

	"github.com/pkg/errors"

	"go.viam.com/rgbdcapture/components/rgbd"
	"go.viam.com/rgbdcapture/rimage"
)

// Native Kinect v2 stream sizes.
const (
	DepthWidth  = 512
	DepthHeight = 424
	ColorWidth  = 1920
	ColorHeight = 1080
)

// MinBigDepthOverscan is how many rows taller than the color frame the big depth scratch image must be.
// Registerers write one row above and one row below the color grid.
const MinBigDepthOverscan = 2

// A Registerer is the driver's alignment routine. It fills undistorted with depth corrected for lens
// distortion, registered with color resampled into the undistorted depth grid (all four bytes zero where no
// color maps) and bigDepth with depth resampled into the color grid, offset down by one row.
type Registerer interface {
	Apply(
		color, depth *rgbd.Frame,
		undistorted *rimage.FloatDepthMap,
		registered *image.NRGBA,
		bigDepth *rimage.FloatDepthMap,
		enableFilter bool,
	) error
}

// Config sizes the scratch images.
type Config struct {
	DepthWidth     int
	DepthHeight    int
	ColorWidth     int
	ColorHeight    int
	BigDepthHeight int
	// EnableFilter drops color samples that are occluded from the depth camera's point of view.
	EnableFilter bool
}

// DefaultConfig is sized for the native streams.
func DefaultConfig() Config {
	return Config{
		DepthWidth:     DepthWidth,
		DepthHeight:    DepthHeight,
		ColorWidth:     ColorWidth,
		ColorHeight:    ColorHeight,
		BigDepthHeight: ColorHeight + MinBigDepthOverscan,
		EnableFilter:   true,
	}
}

// Validate ensures the scratch sizes are usable.
func (cfg Config) Validate() error {
	if cfg.DepthWidth <= 0 || cfg.DepthHeight <= 0 {
		return errors.Errorf("invalid depth size (%d,%d)", cfg.DepthWidth, cfg.DepthHeight)
	}
	if cfg.ColorWidth <= 0 || cfg.ColorHeight <= 0 {
		return errors.Errorf("invalid color size (%d,%d)", cfg.ColorWidth, cfg.ColorHeight)
	}
	if cfg.BigDepthHeight < cfg.ColorHeight+MinBigDepthOverscan {
		return errors.Errorf("big depth height %d must be at least color height %d plus %d rows of overscan",
			cfg.BigDepthHeight, cfg.ColorHeight, MinBigDepthOverscan)
	}
	return nil
}

// Registration owns the long-lived scratch images passed to a Registerer on every call.
type Registration struct {
	registerer Registerer
	cfg        Config

	undistorted *rimage.FloatDepthMap
	registered  *image.NRGBA
	bigDepth    *rimage.FloatDepthMap
}

// NewRegistration allocates the scratch images once.
func NewRegistration(registerer Registerer, cfg Config) (*Registration, error) {
	if registerer == nil {
		return nil, errors.New("registerer is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Registration{
		registerer:  registerer,
		cfg:         cfg,
		undistorted: rimage.NewFloatDepthMap(cfg.DepthWidth, cfg.DepthHeight),
		registered:  image.NewNRGBA(image.Rect(0, 0, cfg.DepthWidth, cfg.DepthHeight)),
		bigDepth:    rimage.NewFloatDepthMap(cfg.ColorWidth, cfg.BigDepthHeight),
	}, nil
}

// Apply registers one frame pair. The returned images are owned by r and are overwritten by the next call;
// callers that keep them must copy them first.
func (r *Registration) Apply(color, depth *rgbd.Frame) (*rimage.FloatDepthMap, *image.NRGBA, error) {
	if err := color.CheckValid(); err != nil {
		return nil, nil, errors.Wrap(err, "bad color frame")
	}
	if err := depth.CheckValid(); err != nil {
		return nil, nil, errors.Wrap(err, "bad depth frame")
	}
	if color.Width != r.cfg.ColorWidth || color.Height != r.cfg.ColorHeight {
		return nil, nil, errors.Errorf("color frame is (%d,%d), registration expects (%d,%d)",
			color.Width, color.Height, r.cfg.ColorWidth, r.cfg.ColorHeight)
	}
	if depth.Width != r.cfg.DepthWidth || depth.Height != r.cfg.DepthHeight {
		return nil, nil, errors.Errorf("depth frame is (%d,%d), registration expects (%d,%d)",
			depth.Width, depth.Height, r.cfg.DepthWidth, r.cfg.DepthHeight)
	}
	if err := r.registerer.Apply(color, depth, r.undistorted, r.registered, r.bigDepth, r.cfg.EnableFilter); err != nil {
		return nil, nil, errors.Wrap(err, "registration failed")
	}
	return r.undistorted, r.registered, nil
}

// BigDepth is the depth image in the color grid from the last Apply.
func (r *Registration) BigDepth() *rimage.FloatDepthMap {
	return r.bigDepth
}
