package registration

import (
	"encoding/binary"
	"errors"
	"image"
	"math"
	"testing"

	"go.viam.com/test"

	"go.viam.com/rgbdcapture/components/rgbd"
	"go.viam.com/rgbdcapture/rimage"
	"go.viam.com/rgbdcapture/rimage/transform"
)

func testParams(colorFx, colorPpx, colorPpy float64, cw, ch int) (*transform.IRCameraParams, *transform.ColorCameraParams) {
	ir := &transform.IRCameraParams{
		Intrinsics: &transform.PinholeCameraIntrinsics{Width: 8, Height: 6, Fx: 10, Fy: 10, Ppx: 4, Ppy: 3},
		Distortion: &transform.BrownConrady{},
	}
	color := &transform.ColorCameraParams{
		Intrinsics: &transform.PinholeCameraIntrinsics{
			Width: cw, Height: ch, Fx: colorFx, Fy: colorFx, Ppx: colorPpx, Ppy: colorPpy,
		},
		Extrinsics: transform.IdentityExtrinsics(),
	}
	return ir, color
}

func depthFrame(w, h int, depth func(x, y int) float32) *rgbd.Frame {
	f := rgbd.NewFrame(w, h, 4, rgbd.FormatFloat)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			binary.LittleEndian.PutUint32(f.Data[(y*w+x)*4:], math.Float32bits(depth(x, y)))
		}
	}
	return f
}

// colorFrame encodes each pixel's coordinates into its color so lookups can be checked.
func colorFrame(w, h int) *rgbd.Frame {
	f := rgbd.NewFrame(w, h, 4, rgbd.FormatBGRX)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			f.Data[i] = 1          // b
			f.Data[i+1] = uint8(y) // g
			f.Data[i+2] = uint8(x) // r
		}
	}
	return f
}

func smallConfig(cw, ch int) Config {
	return Config{
		DepthWidth:     8,
		DepthHeight:    6,
		ColorWidth:     cw,
		ColorHeight:    ch,
		BigDepthHeight: ch + MinBigDepthOverscan,
		EnableFilter:   true,
	}
}

func TestConfigValidate(t *testing.T) {
	test.That(t, DefaultConfig().Validate(), test.ShouldBeNil)
	test.That(t, DefaultConfig().BigDepthHeight, test.ShouldEqual, 1082)

	cfg := DefaultConfig()
	cfg.BigDepthHeight = ColorHeight
	err := cfg.Validate()
	test.That(t, err, test.ShouldBeError)
	test.That(t, err.Error(), test.ShouldContainSubstring, "overscan")

	cfg.BigDepthHeight = ColorHeight + 1
	test.That(t, cfg.Validate(), test.ShouldBeError)

	cfg = DefaultConfig()
	cfg.DepthWidth = 0
	test.That(t, cfg.Validate(), test.ShouldBeError)

	_, err = NewRegistration(&fakeRegisterer{}, Config{DepthWidth: 8, DepthHeight: 6, ColorWidth: 16, ColorHeight: 12, BigDepthHeight: 12})
	test.That(t, err, test.ShouldBeError)
	_, err = NewRegistration(nil, DefaultConfig())
	test.That(t, err, test.ShouldBeError)
}

type fakeRegisterer struct {
	calls int
	err   error
}

func (f *fakeRegisterer) Apply(
	color, depth *rgbd.Frame,
	undistorted *rimage.FloatDepthMap,
	registered *image.NRGBA,
	bigDepth *rimage.FloatDepthMap,
	enableFilter bool,
) error {
	f.calls++
	undistorted.Set(0, 0, float32(f.calls))
	return f.err
}

func TestRegistrationReusesScratch(t *testing.T) {
	fr := &fakeRegisterer{}
	reg, err := NewRegistration(fr, smallConfig(16, 12))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reg.BigDepth().Height(), test.ShouldEqual, 14)

	color := colorFrame(16, 12)
	depth := depthFrame(8, 6, func(x, y int) float32 { return 1000 })

	u1, r1, err := reg.Apply(color, depth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, u1.GetDepth(0, 0), test.ShouldEqual, 1)

	u2, r2, err := reg.Apply(color, depth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, u2, test.ShouldEqual, u1)
	test.That(t, r2, test.ShouldEqual, r1)
	// the first result was overwritten in place
	test.That(t, u1.GetDepth(0, 0), test.ShouldEqual, 2)
}

func TestRegistrationRejectsMismatchedFrames(t *testing.T) {
	fr := &fakeRegisterer{}
	reg, err := NewRegistration(fr, smallConfig(16, 12))
	test.That(t, err, test.ShouldBeNil)

	_, _, err = reg.Apply(colorFrame(8, 6), depthFrame(8, 6, func(x, y int) float32 { return 1 }))
	test.That(t, err, test.ShouldBeError)
	_, _, err = reg.Apply(colorFrame(16, 12), depthFrame(4, 4, func(x, y int) float32 { return 1 }))
	test.That(t, err, test.ShouldBeError)
	short := colorFrame(16, 12)
	short.Data = short.Data[:100]
	_, _, err = reg.Apply(short, depthFrame(8, 6, func(x, y int) float32 { return 1 }))
	test.That(t, err, test.ShouldBeError)
	test.That(t, fr.calls, test.ShouldEqual, 0)

	fr.err = errors.New("kernel failed")
	_, _, err = reg.Apply(colorFrame(16, 12), depthFrame(8, 6, func(x, y int) float32 { return 1 }))
	test.That(t, err, test.ShouldBeError)
	test.That(t, err.Error(), test.ShouldContainSubstring, "kernel failed")
}

func TestCPURegistererProjection(t *testing.T) {
	// the color camera has twice the focal length so depth pixel (u, v) lands on color pixel (2u, 2v)
	ir, col := testParams(20, 8, 6, 16, 12)
	cpu, err := NewCPURegisterer(ir, col)
	test.That(t, err, test.ShouldBeNil)
	reg, err := NewRegistration(cpu, smallConfig(16, 12))
	test.That(t, err, test.ShouldBeNil)

	depth := depthFrame(8, 6, func(x, y int) float32 {
		if x == 0 {
			return 0
		}
		if x == 1 {
			return float32(math.Inf(1))
		}
		return 1000 + float32(y)
	})
	undistorted, registered, err := reg.Apply(colorFrame(16, 12), depth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, undistorted.GetDepth(3, 2), test.ShouldEqual, 1002)

	for v := 0; v < 6; v++ {
		for u := 0; u < 8; u++ {
			p := registered.NRGBAAt(u, v)
			if u < 2 {
				test.That(t, p.A, test.ShouldEqual, 0)
				test.That(t, p.R, test.ShouldEqual, 0)
				continue
			}
			test.That(t, p.R, test.ShouldEqual, 2*u)
			test.That(t, p.G, test.ShouldEqual, 2*v)
			test.That(t, p.B, test.ShouldEqual, 1)
			test.That(t, p.A, test.ShouldEqual, 255)
			// big depth is offset down by one row
			test.That(t, reg.BigDepth().GetDepth(2*u, 2*v+1), test.ShouldEqual, 1000+float32(v))
		}
	}
	test.That(t, math.IsInf(float64(reg.BigDepth().GetDepth(1, 0)), 1), test.ShouldBeTrue)
}

func TestCPURegistererOcclusionFilter(t *testing.T) {
	// a 100mm baseline shifts a point at 1m by one color pixel and a point at 0.5m by two, so depth
	// pixels (4, 3) at 0.5m and (5, 3) at 1m both land on color pixel (6, 3)
	ir, col := testParams(10, 4, 3, 8, 6)
	col.Extrinsics.TranslationVector = []float64{100, 0, 0}
	cpu, err := NewCPURegisterer(ir, col)
	test.That(t, err, test.ShouldBeNil)

	depth := depthFrame(8, 6, func(x, y int) float32 {
		if y != 3 {
			return 0
		}
		switch x {
		case 4:
			return 500
		case 5:
			return 1000
		default:
			return 0
		}
	})
	color := colorFrame(8, 6)

	cfg := smallConfig(8, 6)
	reg, err := NewRegistration(cpu, cfg)
	test.That(t, err, test.ShouldBeNil)
	_, registered, err := reg.Apply(color, depth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, registered.NRGBAAt(4, 3).A, test.ShouldEqual, 255)
	test.That(t, registered.NRGBAAt(4, 3).R, test.ShouldEqual, 6)
	test.That(t, registered.NRGBAAt(5, 3).A, test.ShouldEqual, 0)
	test.That(t, reg.BigDepth().GetDepth(6, 4), test.ShouldEqual, 500)

	cfg.EnableFilter = false
	reg, err = NewRegistration(cpu, cfg)
	test.That(t, err, test.ShouldBeNil)
	_, registered, err = reg.Apply(color, depth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, registered.NRGBAAt(5, 3).A, test.ShouldEqual, 255)
	test.That(t, registered.NRGBAAt(5, 3), test.ShouldResemble, registered.NRGBAAt(4, 3))
}

func TestNewCPURegistererValidates(t *testing.T) {
	ir, col := testParams(20, 8, 6, 16, 12)
	col.Extrinsics = nil
	_, err := NewCPURegisterer(ir, col)
	test.That(t, err, test.ShouldBeError)

	ir.Intrinsics = nil
	_, err = NewCPURegisterer(ir, col)
	test.That(t, err, test.ShouldBeError)
}
