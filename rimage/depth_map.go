package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
)

// Depth is the fixed-point depth of a pixel, in millimeters when encoded with a scale of 1.0.
// 0 means there is no valid depth at the pixel.
type Depth uint16

// MaxDepth is the largest representable depth.
const MaxDepth = Depth(math.MaxUint16)

// DepthMap is a 16-bit fixed-point depth image. It implements image.Image with a Gray16 color
// model so it can be displayed and encoded directly.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns a zeroed depth map of the given size.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// Width returns the width of the depth map.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the height of the depth map.
func (dm *DepthMap) Height() int {
	return dm.height
}

func (dm *DepthMap) kxy(x, y int) int {
	return (y * dm.width) + x
}

// GetDepth returns the depth at (x, y).
func (dm *DepthMap) GetDepth(x, y int) Depth {
	return dm.data[dm.kxy(x, y)]
}

// Set sets the depth at (x, y).
func (dm *DepthMap) Set(x, y int, val Depth) {
	dm.data[dm.kxy(x, y)] = val
}

// Contains returns whether (x, y) lies inside the map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// Bounds returns the rectangle dimensions of the image.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// ColorModel for DepthMap so that it implements image.Image.
func (dm *DepthMap) ColorModel() color.Model {
	return color.Gray16Model
}

// At returns the depth at (x, y) as a Gray16 color so that DepthMap implements image.Image.
func (dm *DepthMap) At(x, y int) color.Color {
	return color.Gray16{uint16(dm.GetDepth(x, y))}
}

// Clone returns a deep copy.
func (dm *DepthMap) Clone() *DepthMap {
	ret := &DepthMap{width: dm.width, height: dm.height, data: make([]Depth, len(dm.data))}
	copy(ret.data, dm.data)
	return ret
}

// MinMax returns the smallest and largest valid (non-zero) depth.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	min := MaxDepth
	max := Depth(0)
	for _, z := range dm.data {
		if z == 0 {
			continue
		}
		if z < min {
			min = z
		}
		if z > max {
			max = z
		}
	}
	if max == 0 {
		return 0, 0
	}
	return min, max
}

// ValidCount returns the number of pixels holding valid depth.
func (dm *DepthMap) ValidCount() int {
	n := 0
	for _, z := range dm.data {
		if z != 0 {
			n++
		}
	}
	return n
}

// MirrorHorizontally flips the map left to right in place.
func (dm *DepthMap) MirrorHorizontally() {
	for y := 0; y < dm.height; y++ {
		row := dm.data[y*dm.width : (y+1)*dm.width]
		for i, j := 0, len(row)-1; i < j; i, j = i+1, j-1 {
			row[i], row[j] = row[j], row[i]
		}
	}
}

// ToGray16 returns a standard library 16-bit grayscale copy, suitable for lossless encoders.
func (dm *DepthMap) ToGray16() *image.Gray16 {
	img := image.NewGray16(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			z := dm.data[dm.kxy(x, y)]
			i := img.PixOffset(x, y)
			img.Pix[i] = uint8(z >> 8)
			img.Pix[i+1] = uint8(z)
		}
	}
	return img
}

// ToGray maps depth linearly onto 8-bit gray with maxDepth at white. Invalid pixels stay black.
func (dm *DepthMap) ToGray(maxDepth Depth) *image.Gray {
	img := image.NewGray(dm.Bounds())
	if maxDepth == 0 {
		return img
	}
	for i, z := range dm.data {
		if z > maxDepth {
			z = maxDepth
		}
		img.Pix[i] = uint8(uint32(z) * math.MaxUint8 / uint32(maxDepth))
	}
	return img
}

// ConvertImageToDepthMap takes a 16-bit grayscale image (e.g. a persisted depth frame) and
// returns the depth map it encodes.
func ConvertImageToDepthMap(img image.Image) (*DepthMap, error) {
	switch ii := img.(type) {
	case *DepthMap:
		return ii, nil
	case *image.Gray16:
		bounds := ii.Bounds()
		dm := NewEmptyDepthMap(bounds.Dx(), bounds.Dy())
		for y := 0; y < dm.height; y++ {
			for x := 0; x < dm.width; x++ {
				dm.Set(x, y, Depth(ii.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
		return dm, nil
	default:
		return nil, errors.Errorf("don't know how to convert image type %T to a depth map", img)
	}
}
