package rimage

import (
	"encoding/binary"
	"image"

	"github.com/pkg/errors"
)

// MaskDepthWithColor zeroes, in place, every depth pixel whose co-located color pixel is entirely
// zero (all four channels, compared as one 32-bit word). The color image is not modified.
func MaskDepthWithColor(dm *DepthMap, col *image.NRGBA) error {
	if col == nil {
		return errors.New("color image to mask depth with is nil")
	}
	bounds := col.Bounds()
	if bounds.Dx() != dm.width || bounds.Dy() != dm.height {
		return errors.Errorf("depth map and color dimensions don't match Depth(%d,%d) != Color(%d,%d)",
			dm.width, dm.height, bounds.Dx(), bounds.Dy())
	}
	for y := 0; y < dm.height; y++ {
		rowStart := col.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		depthRow := dm.data[y*dm.width : (y+1)*dm.width]
		for x := range depthRow {
			off := rowStart + 4*x
			if binary.LittleEndian.Uint32(col.Pix[off:off+4]) == 0 {
				depthRow[x] = 0
			}
		}
	}
	return nil
}
