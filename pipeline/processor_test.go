package pipeline

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"

	"go.viam.com/rgbdcapture/components/rgbd"
	"go.viam.com/rgbdcapture/rimage"
)

func depthRow(dm *rimage.DepthMap, y int) []rimage.Depth {
	row := make([]rimage.Depth, dm.Width())
	for x := range row {
		row[x] = dm.GetDepth(x, y)
	}
	return row
}

func TestProcessorChain(t *testing.T) {
	aligner := newFakeAligner()
	p, err := NewProcessor(aligner, 6000, 1, false)
	test.That(t, err, test.ShouldBeNil)

	res, err := p.Process(testFrameSet(), NewSession())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, aligner.calls, test.ShouldEqual, 1)

	test.That(t, depthRow(res.Depth, 0), test.ShouldResemble, []rimage.Depth{1500, 6000, 0, 0})
	// 1999.6 is within range and rounds up; (2,1) has no color.
	test.That(t, depthRow(res.Depth, 1), test.ShouldResemble, []rimage.Depth{2000, 6000, 0, 2000})
	test.That(t, res.Color.NRGBAAt(0, 0), test.ShouldResemble, color.NRGBA{10, 1, 7, 255})
	test.That(t, res.Color.NRGBAAt(2, 1), test.ShouldResemble, color.NRGBA{})

	// the aligner's buffers are left as they were
	test.That(t, aligner.undistorted.GetDepth(1, 0), test.ShouldEqual, 2500)
	test.That(t, res.Color, test.ShouldNotEqual, aligner.registered)
	res.Color.SetNRGBA(0, 0, color.NRGBA{})
	test.That(t, aligner.registered.NRGBAAt(0, 0).A, test.ShouldEqual, 255)
}

func TestProcessorFollowsThreshold(t *testing.T) {
	p, err := NewProcessor(newFakeAligner(), 6000, 1, false)
	test.That(t, err, test.ShouldBeNil)

	s := NewSession()
	s.Threshold = 1000
	res, err := p.Process(testFrameSet(), s)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depthRow(res.Depth, 0), test.ShouldResemble, []rimage.Depth{6000, 6000, 0, 0})
	test.That(t, depthRow(res.Depth, 1), test.ShouldResemble, []rimage.Depth{6000, 6000, 0, 6000})
}

func TestProcessorNegativeThresholdKeepsMissingDepth(t *testing.T) {
	p, err := NewProcessor(newFakeAligner(), 6000, 1, false)
	test.That(t, err, test.ShouldBeNil)

	s := NewSession()
	s.Threshold = -10
	res, err := p.Process(testFrameSet(), s)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depthRow(res.Depth, 0), test.ShouldResemble, []rimage.Depth{6000, 6000, 0, 0})
	test.That(t, depthRow(res.Depth, 1), test.ShouldResemble, []rimage.Depth{6000, 6000, 0, 6000})
}

func TestProcessorMirror(t *testing.T) {
	p, err := NewProcessor(newFakeAligner(), 6000, 1, true)
	test.That(t, err, test.ShouldBeNil)

	res, err := p.Process(testFrameSet(), NewSession())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depthRow(res.Depth, 0), test.ShouldResemble, []rimage.Depth{0, 0, 6000, 1500})
	test.That(t, depthRow(res.Depth, 1), test.ShouldResemble, []rimage.Depth{2000, 0, 6000, 2000})
	test.That(t, res.Color.NRGBAAt(0, 0), test.ShouldResemble, color.NRGBA{40, 1, 7, 255})
	test.That(t, res.Color.NRGBAAt(1, 1), test.ShouldResemble, color.NRGBA{})
}

func TestProcessorScale(t *testing.T) {
	p, err := NewProcessor(newFakeAligner(), 6000, 0.5, false)
	test.That(t, err, test.ShouldBeNil)

	res, err := p.Process(testFrameSet(), NewSession())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depthRow(res.Depth, 0), test.ShouldResemble, []rimage.Depth{750, 3000, 0, 0})
}

func TestProcessorErrors(t *testing.T) {
	_, err := NewProcessor(nil, 6000, 1, false)
	test.That(t, err, test.ShouldBeError)
	_, err = NewProcessor(newFakeAligner(), 6000, 0, false)
	test.That(t, err, test.ShouldBeError)
	_, err = NewProcessor(newFakeAligner(), 0, 1, false)
	test.That(t, err, test.ShouldBeError)
	_, err = NewProcessor(newFakeAligner(), 70000, 1, false)
	test.That(t, err, test.ShouldBeError)

	aligner := newFakeAligner()
	p, err := NewProcessor(aligner, 6000, 1, false)
	test.That(t, err, test.ShouldBeNil)

	set := testFrameSet()
	delete(set, rgbd.FrameColor)
	_, err = p.Process(set, NewSession())
	test.That(t, err, test.ShouldBeError)
	test.That(t, aligner.calls, test.ShouldEqual, 0)

	aligner.failOn[1] = true
	_, err = p.Process(testFrameSet(), NewSession())
	test.That(t, err, test.ShouldBeError)

	aligner.registered = image.NewNRGBA(image.Rect(0, 0, 3, 2))
	_, err = p.Process(testFrameSet(), NewSession())
	test.That(t, err, test.ShouldBeError)
}
