package rimage

import (
	"encoding/binary"
	"image"
	"math"

	"github.com/pkg/errors"
)

// DefaultFarDepth is the value, in millimeters, that out of range pixels saturate to. It encodes to
// a large but valid fixed-point depth, distinct from 0 ("invalid").
const DefaultFarDepth = float32(6000)

// FloatDepthMap is a single channel float32 depth image in the sensor's native representation,
// in millimeters. Values at or above InvalidDepthSentinel (and NaN) mean "no depth".
type FloatDepthMap struct {
	width  int
	height int

	data []float32
}

// NewFloatDepthMap returns a zeroed float depth map of the given size.
func NewFloatDepthMap(width, height int) *FloatDepthMap {
	return &FloatDepthMap{width: width, height: height, data: make([]float32, width*height)}
}

// NewFloatDepthMapFromData wraps data, without copying, as a width x height float depth map.
func NewFloatDepthMapFromData(width, height int, data []float32) (*FloatDepthMap, error) {
	if len(data) != width*height {
		return nil, errors.Errorf("float depth data has %d samples, expected %dx%d=%d",
			len(data), width, height, width*height)
	}
	return &FloatDepthMap{width: width, height: height, data: data}, nil
}

// FloatDepthMapFromBytes decodes little endian float32 samples, as delivered by the driver, into
// a freshly allocated float depth map.
func FloatDepthMapFromBytes(width, height int, raw []byte) (*FloatDepthMap, error) {
	const bytesPerSample = 4
	if len(raw) < width*height*bytesPerSample {
		return nil, errors.Errorf("depth frame has %d bytes, expected at least %d for %dx%d",
			len(raw), width*height*bytesPerSample, width, height)
	}
	fdm := NewFloatDepthMap(width, height)
	for i := range fdm.data {
		fdm.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*bytesPerSample:]))
	}
	return fdm, nil
}

// Width returns the width of the map.
func (fdm *FloatDepthMap) Width() int {
	return fdm.width
}

// Height returns the height of the map.
func (fdm *FloatDepthMap) Height() int {
	return fdm.height
}

// Bounds returns the rectangle dimensions of the map.
func (fdm *FloatDepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, fdm.width, fdm.height)
}

// GetDepth returns the depth at (x, y).
func (fdm *FloatDepthMap) GetDepth(x, y int) float32 {
	return fdm.data[y*fdm.width+x]
}

// Set sets the depth at (x, y).
func (fdm *FloatDepthMap) Set(x, y int, val float32) {
	fdm.data[y*fdm.width+x] = val
}

// Data returns the backing samples in row-major order.
func (fdm *FloatDepthMap) Data() []float32 {
	return fdm.data
}

// Clone returns a deep copy.
func (fdm *FloatDepthMap) Clone() *FloatDepthMap {
	ret := NewFloatDepthMap(fdm.width, fdm.height)
	copy(ret.data, fdm.data)
	return ret
}

// LimitRange rewrites, in place, every valid sample greater than maxDistance to far. Samples at or below
// maxDistance, samples at or below zero (no reading) and invalid samples (at or above
// InvalidDepthSentinel, or NaN) are untouched, so "far", "missing" and "invalid" stay distinguishable
// after encoding. Applying it twice with the same arguments is the same as once.
func (fdm *FloatDepthMap) LimitRange(maxDistance, far float32) {
	for i, z := range fdm.data {
		if z > 0 && z > maxDistance && z < InvalidDepthSentinel {
			fdm.data[i] = far
		}
	}
}
