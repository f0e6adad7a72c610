package rimage

import (
	"math"
)

// InvalidDepthSentinel is the driver's "no depth" marker. Any float sample that is not strictly
// less than it (including +Inf and NaN) encodes to 0.
const InvalidDepthSentinel = float32(math.MaxFloat32)

// EncodeDepth converts float depth into the 16-bit fixed-point storage encoding. Each valid sample
// becomes round(scale*sample), saturated to MaxDepth; invalid samples and samples that round to
// zero or below become 0. The destination is freshly allocated and zeroed.
func EncodeDepth(src *FloatDepthMap, scale float32) *DepthMap {
	dst := NewEmptyDepthMap(src.width, src.height)
	for i, z := range src.data {
		if !(z < InvalidDepthSentinel) {
			continue
		}
		scaled := math.Round(float64(scale) * float64(z))
		switch {
		case scaled <= 0:
		case scaled >= float64(MaxDepth):
			dst.data[i] = MaxDepth
		default:
			dst.data[i] = Depth(scaled)
		}
	}
	return dst
}

// DecodeDepth converts fixed-point depth back to float depth: scale*sample for non-zero samples,
// 0 otherwise. The destination is freshly allocated and zeroed.
func DecodeDepth(src *DepthMap, scale float32) *FloatDepthMap {
	dst := NewFloatDepthMap(src.width, src.height)
	for i, z := range src.data {
		if z != 0 {
			dst.data[i] = scale * float32(z)
		}
	}
	return dst
}
