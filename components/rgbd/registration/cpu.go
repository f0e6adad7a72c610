package registration

import (
	"encoding/binary"
	"image"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rgbdcapture/components/rgbd"
	"go.viam.com/rgbdcapture/rimage"
	"go.viam.com/rgbdcapture/rimage/transform"
)

// filterTolerance is the relative depth difference past which a color sample is treated as occluded.
const filterTolerance = 0.01

// CPURegisterer aligns frames with a per-pixel pinhole projection. It is used when the driver offers no
// registration routine of its own.
type CPURegisterer struct {
	ir    *transform.IRCameraParams
	color *transform.ColorCameraParams

	raw        *rimage.FloatDepthMap
	colorIndex []int
	colorDepth []float32
}

// NewCPURegisterer returns a registerer for the given calibration.
func NewCPURegisterer(ir *transform.IRCameraParams, color *transform.ColorCameraParams) (*CPURegisterer, error) {
	if err := ir.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "invalid ir camera parameters")
	}
	if err := color.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "invalid color camera parameters")
	}
	return &CPURegisterer{ir: ir, color: color}, nil
}

// Apply implements Registerer.
func (c *CPURegisterer) Apply(
	color, depth *rgbd.Frame,
	undistorted *rimage.FloatDepthMap,
	registered *image.NRGBA,
	bigDepth *rimage.FloatDepthMap,
	enableFilter bool,
) error {
	if err := multierr.Combine(color.CheckValid(), depth.CheckValid()); err != nil {
		return err
	}
	dw, dh := depth.Width, depth.Height
	cw, ch := color.Width, color.Height
	if undistorted.Width() != dw || undistorted.Height() != dh {
		return errors.Errorf("undistorted image is (%d,%d), depth frame is (%d,%d)",
			undistorted.Width(), undistorted.Height(), dw, dh)
	}
	if registered.Rect.Dx() != dw || registered.Rect.Dy() != dh {
		return errors.Errorf("registered image is (%d,%d), depth frame is (%d,%d)",
			registered.Rect.Dx(), registered.Rect.Dy(), dw, dh)
	}
	if bigDepth.Width() != cw || bigDepth.Height() < ch+MinBigDepthOverscan {
		return errors.Errorf("big depth image (%d,%d) is too small for color frame (%d,%d)",
			bigDepth.Width(), bigDepth.Height(), cw, ch)
	}
	if err := c.decodeDepth(depth); err != nil {
		return err
	}
	if err := c.ir.UndistortDepthMap(c.raw, undistorted); err != nil {
		return err
	}

	far := float32(math.Inf(1))
	big := bigDepth.Data()
	for i := range big {
		big[i] = far
	}

	n := dw * dh
	if len(c.colorIndex) != n {
		c.colorIndex = make([]int, n)
		c.colorDepth = make([]float32, n)
	}

	// depth into the color grid, keeping the nearest sample per color pixel
	for v := 0; v < dh; v++ {
		for u := 0; u < dw; u++ {
			k := v*dw + u
			c.colorIndex[k] = -1
			z := undistorted.GetDepth(u, v)
			if !(z > 0 && z < rimage.InvalidDepthSentinel) {
				continue
			}
			fx, fy, fz := transform.ProjectDepthPixel(c.ir, c.color, u, v, float64(z))
			x, y := int(fx), int(fy)
			if fx < 0 || fy < 0 || x >= cw || y >= ch || fz <= 0 {
				continue
			}
			cz := float32(fz)
			c.colorIndex[k] = y*cw + x
			c.colorDepth[k] = cz
			bi := (y+1)*cw + x
			if cz < big[bi] {
				big[bi] = cz
			}
		}
	}

	// color into the depth grid
	for v := 0; v < dh; v++ {
		for u := 0; u < dw; u++ {
			k := v*dw + u
			p := registered.PixOffset(u, v)
			pix := registered.Pix[p : p+4 : p+4]
			ci := c.colorIndex[k]
			if ci < 0 {
				pix[0], pix[1], pix[2], pix[3] = 0, 0, 0, 0
				continue
			}
			x, y := ci%cw, ci/cw
			if enableFilter {
				cz := c.colorDepth[k]
				if nearest := big[(y+1)*cw+x]; (cz-nearest)/cz > filterTolerance {
					pix[0], pix[1], pix[2], pix[3] = 0, 0, 0, 0
					continue
				}
			}
			pix[0], pix[1], pix[2], pix[3] = color.RGBA(x, y)
		}
	}
	return nil
}

func (c *CPURegisterer) decodeDepth(depth *rgbd.Frame) error {
	if depth.Format != rgbd.FormatFloat {
		return errors.Errorf("cannot register a %s depth frame", depth.Format)
	}
	if c.raw == nil || c.raw.Width() != depth.Width || c.raw.Height() != depth.Height {
		c.raw = rimage.NewFloatDepthMap(depth.Width, depth.Height)
	}
	data := c.raw.Data()
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(depth.Data[i*4:]))
	}
	return nil
}
