package rimage

import (
	"image"

	"github.com/disintegration/imaging"
)

// MirrorColor returns a left-right flipped copy of img. Pixels are copied byte for byte, so fully
// zero pixels stay fully zero.
func MirrorColor(img *image.NRGBA) *image.NRGBA {
	return imaging.FlipH(img)
}

// CloneColor returns a copy of img that shares no memory with it.
func CloneColor(img *image.NRGBA) *image.NRGBA {
	return imaging.Clone(img)
}
