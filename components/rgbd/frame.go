package rgbd

import (
	"image"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/rgbdcapture/rimage"
)

// FrameType is a bit in the set of streams a listener subscribes to.
type FrameType int

// The streams a device delivers.
const (
	FrameColor FrameType = 1 << iota
	FrameIr
	FrameDepth
)

// AllFrameTypes subscribes to every stream.
const AllFrameTypes = FrameColor | FrameIr | FrameDepth

type frameTypeName struct {
	t    FrameType
	name string
}

var frameTypeNames = []frameTypeName{
	{FrameColor, "color"},
	{FrameIr, "ir"},
	{FrameDepth, "depth"},
}

func (t FrameType) String() string {
	names := lo.FilterMap(frameTypeNames, func(n frameTypeName, _ int) (string, bool) {
		return n.name, t&n.t != 0
	})
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Format is the pixel layout of a frame's data.
type Format int

// Supported pixel layouts.
const (
	FormatInvalid Format = iota
	// FormatFloat is one little-endian float32 per pixel, in millimeters for depth.
	FormatFloat
	// FormatBGRX is four bytes per pixel, blue first, the fourth byte unused.
	FormatBGRX
	// FormatRGBX is four bytes per pixel, red first, the fourth byte unused.
	FormatRGBX
)

func (f Format) String() string {
	switch f {
	case FormatFloat:
		return "float"
	case FormatBGRX:
		return "bgrx"
	case FormatRGBX:
		return "rgbx"
	case FormatInvalid:
		fallthrough
	default:
		return "invalid"
	}
}

// Frame is one image delivered by the driver. It is borrowed for one iteration and must not be retained
// after its FrameSet is released.
type Frame struct {
	Width         int
	Height        int
	BytesPerPixel int
	Format        Format
	Data          []byte
	Sequence      uint32
	Timestamp     time.Time
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height, bytesPerPixel int, format Format) *Frame {
	return &Frame{
		Width:         width,
		Height:        height,
		BytesPerPixel: bytesPerPixel,
		Format:        format,
		Data:          make([]byte, width*height*bytesPerPixel),
	}
}

// CheckValid verifies the frame's data matches its declared shape.
func (f *Frame) CheckValid() error {
	if f == nil {
		return errors.New("frame is nil")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return errors.Errorf("invalid frame size (%d,%d)", f.Width, f.Height)
	}
	if f.BytesPerPixel != 4 {
		return errors.Errorf("unsupported bytes per pixel %d", f.BytesPerPixel)
	}
	if len(f.Data) != f.Width*f.Height*f.BytesPerPixel {
		return errors.Errorf("frame data is %d bytes, expected %d", len(f.Data), f.Width*f.Height*f.BytesPerPixel)
	}
	return nil
}

// FloatDepthMap copies a float frame into a depth map.
func (f *Frame) FloatDepthMap() (*rimage.FloatDepthMap, error) {
	if err := f.CheckValid(); err != nil {
		return nil, err
	}
	if f.Format != FormatFloat {
		return nil, errors.Errorf("cannot read depth from a %s frame", f.Format)
	}
	return rimage.FloatDepthMapFromBytes(f.Width, f.Height, f.Data)
}

// RGBA returns the color of pixel (x, y). The unused fourth byte is not reported: valid pixels are opaque
// and a pixel whose color bytes are all zero is reported as fully transparent black so that it reads as
// "no color data" downstream.
func (f *Frame) RGBA(x, y int) (r, g, b, a uint8) {
	i := (y*f.Width + x) * f.BytesPerPixel
	p := f.Data[i : i+4 : i+4]
	switch f.Format {
	case FormatBGRX:
		r, g, b = p[2], p[1], p[0]
	case FormatRGBX:
		r, g, b = p[0], p[1], p[2]
	case FormatInvalid, FormatFloat:
		return 0, 0, 0, 0
	}
	if r == 0 && g == 0 && b == 0 {
		return 0, 0, 0, 0
	}
	return r, g, b, 255
}

// NRGBA converts a color frame to an image.
func (f *Frame) NRGBA() (*image.NRGBA, error) {
	if err := f.CheckValid(); err != nil {
		return nil, err
	}
	if f.Format != FormatBGRX && f.Format != FormatRGBX {
		return nil, errors.Errorf("cannot read color from a %s frame", f.Format)
	}
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = f.RGBA(x, y)
		}
	}
	return img, nil
}

// FrameSet is one synchronized capture, keyed by stream.
type FrameSet map[FrameType]*Frame

// Get returns the frame for t or an error if the set does not carry it.
func (fs FrameSet) Get(t FrameType) (*Frame, error) {
	f, ok := fs[t]
	if !ok || f == nil {
		return nil, errors.Errorf("frame set has no %s frame", t)
	}
	return f, nil
}
