// Package recorder persists processed depth and color frames as numbered image sequences.
package recorder

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rgbdcapture/rimage"
)

// IndexFormat renders a frame index into a file name stem.
const IndexFormat = "%07d"

// A Sink saves one depth/color pair under index.
type Sink interface {
	Save(depth *rimage.DepthMap, color *image.NRGBA, index uint64) error
}

// FileSink writes each pair to two sibling directories with a shared, zero-padded index as the name.
type FileSink struct {
	DepthDir string
	ColorDir string
	// DepthFormat and ColorFormat are file extensions without the dot, e.g. "png".
	DepthFormat string
	ColorFormat string
}

// NewFileSink validates the formats and returns a sink.
func NewFileSink(depthDir, colorDir, depthFormat, colorFormat string) (*FileSink, error) {
	if !rimage.SupportsDepth(depthFormat) {
		return nil, errors.Errorf("format %q cannot hold 16-bit depth", depthFormat)
	}
	if !rimage.SupportsColor(colorFormat) {
		return nil, errors.Errorf("unsupported color format %q", colorFormat)
	}
	return &FileSink{
		DepthDir:    depthDir,
		ColorDir:    colorDir,
		DepthFormat: depthFormat,
		ColorFormat: colorFormat,
	}, nil
}

// DepthPath is where the depth image of index is written.
func (fs *FileSink) DepthPath(index uint64) string {
	return filepath.Join(fs.DepthDir, fmt.Sprintf(IndexFormat, index)+"."+fs.DepthFormat)
}

// ColorPath is where the color image of index is written.
func (fs *FileSink) ColorPath(index uint64) string {
	return filepath.Join(fs.ColorDir, fmt.Sprintf(IndexFormat, index)+"."+fs.ColorFormat)
}

// Save writes both images. Both writes are attempted even if the first fails.
func (fs *FileSink) Save(depth *rimage.DepthMap, color *image.NRGBA, index uint64) error {
	return multierr.Combine(
		rimage.WriteImageToFile(fs.DepthPath(index), depth),
		rimage.WriteImageToFile(fs.ColorPath(index), color),
	)
}

// ResetDirs removes each directory with everything in it and creates it again empty. Every directory
// must lie strictly inside root, so a misconfigured path cannot wipe anything outside the session.
func ResetDirs(root string, dirs ...string) error {
	if root == "" || filepath.Clean(root) == string(filepath.Separator) {
		return errors.Errorf("refusing to reset directories under %q", root)
	}
	for _, dir := range dirs {
		if !Within(root, dir) {
			return errors.Errorf("refusing to reset directory %q outside %q", dir, root)
		}
		if err := os.RemoveAll(dir); err != nil {
			return errors.Wrapf(err, "failed to remove %q", dir)
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.Wrapf(err, "failed to create %q", dir)
		}
	}
	return nil
}

// Within reports whether dir is a strict descendant of root.
func Within(root, dir string) bool {
	if root == "" || dir == "" {
		return false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absDir)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
