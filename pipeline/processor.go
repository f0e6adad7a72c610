// Package pipeline turns synchronized frame sets into aligned, range-limited, masked and mirrored depth
// and color images, and runs the interactive capture loop around that.
package pipeline

import (
	"image"

	"github.com/pkg/errors"

	"go.viam.com/rgbdcapture/components/rgbd"
	"go.viam.com/rgbdcapture/rimage"
)

// An Aligner registers depth to color. The returned images may be reused by the next call.
type Aligner interface {
	Apply(color, depth *rgbd.Frame) (*rimage.FloatDepthMap, *image.NRGBA, error)
}

// Result is the processed pair of one iteration.
type Result struct {
	Depth *rimage.DepthMap
	Color *image.NRGBA
}

// Processor is the per-frame transformation chain.
type Processor struct {
	aligner    Aligner
	farDepth   float32
	depthScale float32
	mirror     bool
}

// NewProcessor returns a processor. farDepth is what beyond-threshold samples become and must encode
// to a valid, non-zero value.
func NewProcessor(aligner Aligner, farDepth, depthScale float32, mirror bool) (*Processor, error) {
	if aligner == nil {
		return nil, errors.New("aligner is nil")
	}
	if depthScale <= 0 {
		return nil, errors.Errorf("depth scale must be positive, got %v", depthScale)
	}
	if encoded := farDepth * depthScale; !(encoded >= 1 && encoded <= float32(rimage.MaxDepth)) {
		return nil, errors.Errorf("far depth %v does not encode to a valid depth at scale %v", farDepth, depthScale)
	}
	return &Processor{
		aligner:    aligner,
		farDepth:   farDepth,
		depthScale: depthScale,
		mirror:     mirror,
	}, nil
}

// Process registers the set's color and depth frames, copies the aligned images out of the aligner,
// saturates depth beyond the session threshold, encodes it to 16 bits, zeroes depth where there is no
// color and mirrors both images.
func (p *Processor) Process(set rgbd.FrameSet, s *Session) (*Result, error) {
	color, err := set.Get(rgbd.FrameColor)
	if err != nil {
		return nil, err
	}
	depth, err := set.Get(rgbd.FrameDepth)
	if err != nil {
		return nil, err
	}

	undistorted, registered, err := p.aligner.Apply(color, depth)
	if err != nil {
		return nil, err
	}
	dist := undistorted.Clone()
	col := rimage.CloneColor(registered)

	dist.LimitRange(float32(s.Threshold), p.farDepth)
	dm := rimage.EncodeDepth(dist, p.depthScale)
	if err := rimage.MaskDepthWithColor(dm, col); err != nil {
		return nil, err
	}

	if p.mirror {
		dm.MirrorHorizontally()
		col = rimage.MirrorColor(col)
	}
	return &Result{Depth: dm, Color: col}, nil
}
