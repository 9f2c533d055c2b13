package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Transform places an object in the world. Rotation holds Tait-Bryan
// angles in radians, applied in Y, X, Z order.
type Transform struct {
	Translation mgl32.Vec3
	Scale       mgl32.Vec3
	Rotation    mgl32.Vec3
}

func NewTransform() Transform {
	return Transform{Scale: mgl32.Vec3{1, 1, 1}}
}

func TransformFromTranslation(translation mgl32.Vec3) Transform {
	t := NewTransform()
	t.Translation = translation
	return t
}

func (t *Transform) Translate(delta mgl32.Vec3) {
	t.Translation = t.Translation.Add(delta)
}

func (t *Transform) Rotate(delta mgl32.Vec3) {
	t.Rotation = t.Rotation.Add(delta)
}

func (t *Transform) SetScale(scale mgl32.Vec3) {
	t.Scale = scale
}

// yxz returns the sines and cosines used by both matrices:
// 1 is the Y angle, 2 the X angle, 3 the Z angle.
func (t *Transform) yxz() (c1, s1, c2, s2, c3, s3 float32) {
	c3 = float32(math.Cos(float64(t.Rotation.Z())))
	s3 = float32(math.Sin(float64(t.Rotation.Z())))
	c2 = float32(math.Cos(float64(t.Rotation.X())))
	s2 = float32(math.Sin(float64(t.Rotation.X())))
	c1 = float32(math.Cos(float64(t.Rotation.Y())))
	s1 = float32(math.Sin(float64(t.Rotation.Y())))
	return
}

// Matrix is translate * Ry * Rx * Rz * scale.
func (t *Transform) Matrix() mgl32.Mat4 {
	c1, s1, c2, s2, c3, s3 := t.yxz()
	sx, sy, sz := t.Scale.X(), t.Scale.Y(), t.Scale.Z()
	return mgl32.Mat4{
		sx * (c1*c3 + s1*s2*s3), sx * (c2 * s3), sx * (c1*s2*s3 - c3*s1), 0,
		sy * (c3*s1*s2 - c1*s3), sy * (c2 * c3), sy * (c1*c3*s2 + s1*s3), 0,
		sz * (c2 * s1), sz * (-s2), sz * (c1 * c2), 0,
		t.Translation.X(), t.Translation.Y(), t.Translation.Z(), 1,
	}
}

// NormalMatrix is the inverse transpose of the upper 3x3 of Matrix, built
// directly from the rotation and the inverse scale.
func (t *Transform) NormalMatrix() mgl32.Mat3 {
	c1, s1, c2, s2, c3, s3 := t.yxz()
	ix, iy, iz := 1/t.Scale.X(), 1/t.Scale.Y(), 1/t.Scale.Z()
	return mgl32.Mat3{
		ix * (c1*c3 + s1*s2*s3), ix * (c2 * s3), ix * (c1*s2*s3 - c3*s1),
		iy * (c3*s1*s2 - c1*s3), iy * (c2 * c3), iy * (c1*c3*s2 + s1*s3),
		iz * (c2 * s1), iz * (-s2), iz * (c1 * c2),
	}
}
