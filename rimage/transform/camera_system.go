package transform

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rgbdcapture/rimage"
)

// IRCameraParams are the factory parameters of the depth sensor: its intrinsics and its lens distortion.
type IRCameraParams struct {
	Intrinsics *PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Distortion *BrownConrady            `json:"distortion_parameters"`
}

// CheckValid checks that the intrinsics are usable.
func (p *IRCameraParams) CheckValid() error {
	if p == nil {
		return NewNoIntrinsicsError("IR camera parameters do not exist")
	}
	return p.Intrinsics.CheckValid()
}

// String is used when logging the calibration at startup.
func (p *IRCameraParams) String() string {
	if p == nil || p.Intrinsics == nil {
		return "ir{<nil>}"
	}
	i := p.Intrinsics
	return fmt.Sprintf("ir{%dx%d fx=%.3f fy=%.3f cx=%.3f cy=%.3f dist=%v}",
		i.Width, i.Height, i.Fx, i.Fy, i.Ppx, i.Ppy, p.Distortion.Parameters())
}

// DistortedPixel returns the location in the raw depth image of the undistorted pixel (u, v).
func (p *IRCameraParams) DistortedPixel(u, v float64) (float64, float64) {
	i := p.Intrinsics
	xu := (u - i.Ppx) / i.Fx
	yu := (v - i.Ppy) / i.Fy
	xd, yd := p.Distortion.Transform(xu, yu)
	return xd*i.Fx + i.Ppx, yd*i.Fy + i.Ppy
}

// UndistortDepthMap fills dst with raw resampled onto an ideal pinhole grid, using nearest-neighbor lookups
// so depth values are never blended across edges. Pixels whose source falls outside raw are zero.
func (p *IRCameraParams) UndistortDepthMap(raw, dst *rimage.FloatDepthMap) error {
	if err := p.CheckValid(); err != nil {
		return err
	}
	if raw.Width() != dst.Width() || raw.Height() != dst.Height() {
		return errors.Errorf("raw depth (%d,%d) and destination (%d,%d) dimensions don't match",
			raw.Width(), raw.Height(), dst.Width(), dst.Height())
	}
	w, h := raw.Width(), raw.Height()
	for v := 0; v < h; v++ {
		for u := 0; u < w; u++ {
			xd, yd := p.DistortedPixel(float64(u), float64(v))
			x, y := int(math.Round(xd)), int(math.Round(yd))
			if x < 0 || y < 0 || x >= w || y >= h {
				dst.Set(u, v, 0)
				continue
			}
			dst.Set(u, v, raw.GetDepth(x, y))
		}
	}
	return nil
}

// Extrinsics is the rigid transform from the depth camera frame to the color camera frame.
type Extrinsics struct {
	RotationMatrix    []float64 `json:"rotation_rads"`
	TranslationVector []float64 `json:"translation_mm"`
}

// IdentityExtrinsics returns a transform that leaves points unchanged.
func IdentityExtrinsics() *Extrinsics {
	return &Extrinsics{
		RotationMatrix:    []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		TranslationVector: []float64{0, 0, 0},
	}
}

// CheckValid checks the shape of the transform and that the rotation is a proper rotation.
func (e *Extrinsics) CheckValid() error {
	if e == nil {
		return errors.New("pointer to extrinsics is nil")
	}
	if len(e.RotationMatrix) != 9 {
		return errors.Errorf("rotation matrix must have 9 elements, got %d", len(e.RotationMatrix))
	}
	if len(e.TranslationVector) != 3 {
		return errors.Errorf("translation vector must have 3 elements, got %d", len(e.TranslationVector))
	}
	det := mat.Det(mat.NewDense(3, 3, e.RotationMatrix))
	if math.Abs(det-1) > 1e-3 {
		return errors.Errorf("rotation matrix determinant must be 1, got %.4f", det)
	}
	return nil
}

// TransformPoint moves a point from the depth camera frame to the color camera frame.
func (e *Extrinsics) TransformPoint(pt r3.Vector) r3.Vector {
	r := e.RotationMatrix
	t := e.TranslationVector
	return r3.Vector{
		X: r[0]*pt.X + r[1]*pt.Y + r[2]*pt.Z + t[0],
		Y: r[3]*pt.X + r[4]*pt.Y + r[5]*pt.Z + t[1],
		Z: r[6]*pt.X + r[7]*pt.Y + r[8]*pt.Z + t[2],
	}
}

// ColorCameraParams are the factory parameters of the color sensor and its pose relative to the depth sensor.
type ColorCameraParams struct {
	Intrinsics *PinholeCameraIntrinsics `json:"intrinsic_parameters"`
	Extrinsics *Extrinsics              `json:"extrinsics_depth_to_color"`
}

// CheckValid checks that both the intrinsics and the extrinsics are usable.
func (p *ColorCameraParams) CheckValid() error {
	if p == nil {
		return NewNoIntrinsicsError("color camera parameters do not exist")
	}
	if err := p.Intrinsics.CheckValid(); err != nil {
		return err
	}
	return p.Extrinsics.CheckValid()
}

func (p *ColorCameraParams) String() string {
	if p == nil || p.Intrinsics == nil {
		return "color{<nil>}"
	}
	i := p.Intrinsics
	s := fmt.Sprintf("color{%dx%d fx=%.3f fy=%.3f cx=%.3f cy=%.3f", i.Width, i.Height, i.Fx, i.Fy, i.Ppx, i.Ppy)
	if p.Extrinsics != nil {
		s += fmt.Sprintf(" t=%v", p.Extrinsics.TranslationVector)
	}
	return s + "}"
}

// ProjectDepthPixel maps the undistorted depth pixel (u, v) at depth z into color image coordinates.
// The returned depth is the point's distance along the color camera's axis.
func ProjectDepthPixel(ir *IRCameraParams, color *ColorCameraParams, u, v int, z float64) (float64, float64, float64) {
	pt := ir.Intrinsics.ImagePointTo3DPoint(u, v, z)
	pt = color.Extrinsics.TransformPoint(pt)
	cx, cy := color.Intrinsics.PointToPixel(pt.X, pt.Y, pt.Z)
	return cx, cy, pt.Z
}
