package rimage

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
)

func makeTestDepthMap(width, height int) *DepthMap {
	dm := NewEmptyDepthMap(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dm.Set(x, y, Depth(1+x+y*width))
		}
	}
	return dm
}

func TestDepthMapBasics(t *testing.T) {
	dm := makeTestDepthMap(4, 3)
	test.That(t, dm.Width(), test.ShouldEqual, 4)
	test.That(t, dm.Height(), test.ShouldEqual, 3)
	test.That(t, dm.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 3))
	test.That(t, dm.GetDepth(2, 1), test.ShouldEqual, Depth(7))
	test.That(t, dm.At(2, 1), test.ShouldResemble, color.Gray16{7})
	test.That(t, dm.Contains(3, 2), test.ShouldBeTrue)
	test.That(t, dm.Contains(4, 2), test.ShouldBeFalse)

	min, max := dm.MinMax()
	test.That(t, min, test.ShouldEqual, Depth(1))
	test.That(t, max, test.ShouldEqual, Depth(12))
	test.That(t, dm.ValidCount(), test.ShouldEqual, 12)

	empty := NewEmptyDepthMap(2, 2)
	min, max = empty.MinMax()
	test.That(t, min, test.ShouldEqual, Depth(0))
	test.That(t, max, test.ShouldEqual, Depth(0))
}

func TestDepthMapMirrorInvolution(t *testing.T) {
	for _, size := range []image.Point{{4, 3}, {5, 2}, {1, 1}} {
		dm := makeTestDepthMap(size.X, size.Y)
		orig := dm.Clone()

		dm.MirrorHorizontally()
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				test.That(t, dm.GetDepth(x, y), test.ShouldEqual, orig.GetDepth(size.X-1-x, y))
			}
		}

		dm.MirrorHorizontally()
		test.That(t, dm, test.ShouldResemble, orig)
	}
}

func TestDepthMapGrayConversions(t *testing.T) {
	dm := NewEmptyDepthMap(3, 1)
	dm.Set(0, 0, 0)
	dm.Set(1, 0, 1000)
	dm.Set(2, 0, 60000)

	gray16 := dm.ToGray16()
	test.That(t, gray16.Gray16At(2, 0).Y, test.ShouldEqual, uint16(60000))
	back, err := ConvertImageToDepthMap(gray16)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back, test.ShouldResemble, dm)

	gray := dm.ToGray(2000)
	test.That(t, gray.GrayAt(0, 0).Y, test.ShouldEqual, uint8(0))
	test.That(t, gray.GrayAt(1, 0).Y, test.ShouldEqual, uint8(127))
	test.That(t, gray.GrayAt(2, 0).Y, test.ShouldEqual, uint8(255))

	_, err = ConvertImageToDepthMap(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFloatDepthMapFromBytes(t *testing.T) {
	raw := []byte{
		0x00, 0x00, 0x80, 0x3f, // 1.0
		0x00, 0x00, 0xfa, 0x44, // 2000.0
	}
	fdm, err := FloatDepthMapFromBytes(2, 1, raw)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fdm.GetDepth(0, 0), test.ShouldEqual, float32(1))
	test.That(t, fdm.GetDepth(1, 0), test.ShouldEqual, float32(2000))

	_, err = FloatDepthMapFromBytes(3, 1, raw)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewFloatDepthMapFromData(2, 2, []float32{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
}
