package rimage

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	fdm := NewFloatDepthMap(4, 2)
	copy(fdm.Data(), []float32{0, 1, 499, 500, 1234, 2000, 4500, 65535})

	decoded := DecodeDepth(EncodeDepth(fdm, 1), 1)
	test.That(t, decoded.Data(), test.ShouldResemble, fdm.Data())

	// non-integer scale round trips to within one quantization step
	fdm = NewFloatDepthMap(3, 1)
	copy(fdm.Data(), []float32{0.5, 1.234, 3.999})
	const scale = 1000
	decoded = DecodeDepth(EncodeDepth(fdm, scale), 1.0/scale)
	for i, z := range fdm.Data() {
		test.That(t, decoded.Data()[i], test.ShouldAlmostEqual, z, 1.0/scale)
	}
}

func TestEncodeInvalid(t *testing.T) {
	fdm := NewFloatDepthMap(6, 1)
	copy(fdm.Data(), []float32{
		float32(math.Inf(1)),
		InvalidDepthSentinel,
		float32(math.NaN()),
		-5,
		0.2,
		1e9,
	})
	dm := EncodeDepth(fdm, 1)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, Depth(0))
	test.That(t, dm.GetDepth(1, 0), test.ShouldEqual, Depth(0))
	test.That(t, dm.GetDepth(2, 0), test.ShouldEqual, Depth(0))
	test.That(t, dm.GetDepth(3, 0), test.ShouldEqual, Depth(0))
	test.That(t, dm.GetDepth(4, 0), test.ShouldEqual, Depth(0))
	// valid but beyond 16 bits saturates instead of wrapping
	test.That(t, dm.GetDepth(5, 0), test.ShouldEqual, MaxDepth)
}

func TestEncodeRounds(t *testing.T) {
	fdm := NewFloatDepthMap(2, 1)
	copy(fdm.Data(), []float32{1000.4, 1000.6})
	dm := EncodeDepth(fdm, 1)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, Depth(1000))
	test.That(t, dm.GetDepth(1, 0), test.ShouldEqual, Depth(1001))
}

func TestDecodeZeroStaysZero(t *testing.T) {
	dm := NewEmptyDepthMap(2, 1)
	dm.Set(1, 0, 7)
	fdm := DecodeDepth(dm, 2)
	test.That(t, fdm.GetDepth(0, 0), test.ShouldEqual, float32(0))
	test.That(t, fdm.GetDepth(1, 0), test.ShouldEqual, float32(14))
}

func TestLimitRange(t *testing.T) {
	fdm := NewFloatDepthMap(5, 1)
	copy(fdm.Data(), []float32{0, 1999, 2000, 2500, float32(math.Inf(1))})

	fdm.LimitRange(2000, DefaultFarDepth)
	test.That(t, fdm.Data()[:4], test.ShouldResemble, []float32{0, 1999, 2000, DefaultFarDepth})
	test.That(t, math.IsInf(float64(fdm.GetDepth(4, 0)), 1), test.ShouldBeTrue)

	once := fdm.Clone()
	fdm.LimitRange(2000, DefaultFarDepth)
	test.That(t, fdm.Data(), test.ShouldResemble, once.Data())

	// invalid samples still encode as invalid
	dm := EncodeDepth(fdm, 1)
	test.That(t, dm.GetDepth(4, 0), test.ShouldEqual, 0)
	test.That(t, dm.GetDepth(3, 0), test.ShouldEqual, 6000)
}

func TestLimitRangeKeepsMissingSamples(t *testing.T) {
	for _, maxDistance := range []float32{0, -10} {
		fdm := NewFloatDepthMap(3, 1)
		copy(fdm.Data(), []float32{0, 5, 2500})

		fdm.LimitRange(maxDistance, DefaultFarDepth)
		test.That(t, fdm.Data(), test.ShouldResemble, []float32{0, DefaultFarDepth, DefaultFarDepth})

		dm := EncodeDepth(fdm, 1)
		test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, 0)
	}
}

func TestFarIsNotInvalid(t *testing.T) {
	fdm := NewFloatDepthMap(1, 1)
	fdm.Set(0, 0, 2500)
	fdm.LimitRange(2000, DefaultFarDepth)
	test.That(t, fdm.GetDepth(0, 0), test.ShouldEqual, DefaultFarDepth)

	dm := EncodeDepth(fdm, 1)
	test.That(t, dm.GetDepth(0, 0), test.ShouldEqual, Depth(6000))
	test.That(t, dm.GetDepth(0, 0), test.ShouldNotEqual, Depth(0))
}
