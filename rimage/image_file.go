package rimage

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/image/tiff"
)

// Lossless file formats frames can be persisted as.
const (
	FormatPNG  = "png"
	FormatTIFF = "tiff"
	FormatQOI  = "qoi"
	FormatPPM  = "ppm"
)

// SupportsDepth returns whether the format keeps all 16 bits of a depth map.
func SupportsDepth(format string) bool {
	switch format {
	case FormatPNG, FormatTIFF:
		return true
	default:
		return false
	}
}

// SupportsColor returns whether the format can hold a color frame.
func SupportsColor(format string) bool {
	switch format {
	case FormatPNG, FormatTIFF, FormatQOI, FormatPPM:
		return true
	default:
		return false
	}
}

func formatFromPath(fn string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fn)), ".")
	if ext == "tif" {
		return FormatTIFF
	}
	return ext
}

// WriteImageToFile encodes img into fn, picking the encoder from the file extension.
// Depth maps are written as 16-bit grayscale.
func WriteImageToFile(fn string, img image.Image) (err error) {
	format := formatFromPath(fn)
	if dm, ok := img.(*DepthMap); ok {
		if !SupportsDepth(format) {
			return errors.Errorf("format %q cannot hold 16-bit depth, writing %s", format, fn)
		}
		img = dm.ToGray16()
	} else if !SupportsColor(format) {
		return errors.Errorf("unsupported image format %q for %s", format, fn)
	}

	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	switch format {
	case FormatPNG:
		err = png.Encode(f, img)
	case FormatTIFF:
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	case FormatQOI:
		err = qoi.Encode(f, img)
	case FormatPPM:
		err = ppm.Encode(f, img)
	}
	return errors.Wrapf(err, "error encoding %s", fn)
}

// ReadImageFromFile decodes a png, tiff, qoi or ppm image from disk.
func ReadImageFromFile(fn string) (image.Image, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	var img image.Image
	switch formatFromPath(fn) {
	case FormatPNG:
		img, err = png.Decode(f)
	case FormatTIFF:
		img, err = tiff.Decode(f)
	case FormatQOI:
		img, err = qoi.Decode(f)
	case FormatPPM:
		img, err = ppm.Decode(f)
	default:
		img, _, err = image.Decode(f)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding %s", fn)
	}
	return img, nil
}
