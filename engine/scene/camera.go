package scene

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/curen/engine/core"
)

// Camera holds a projection with a zero to one depth range and a view
// matrix. Y points down in view space.
type Camera struct {
	projection mgl32.Mat4
	view       mgl32.Mat4
}

func NewCamera() *Camera {
	return &Camera{
		projection: mgl32.Ident4(),
		view:       mgl32.Ident4(),
	}
}

func (c *Camera) SetOrthographicProjection(left, right, top, bottom, near, far float32) {
	p := mgl32.Ident4()
	p[0] = 2 / (right - left)
	p[5] = 2 / (bottom - top)
	p[10] = 1 / (far - near)
	p[12] = -(right + left) / (right - left)
	p[13] = -(bottom + top) / (bottom - top)
	p[14] = -near / (far - near)
	c.projection = p
}

// SetPerspectiveProjection takes the vertical field of view in radians.
func (c *Camera) SetPerspectiveProjection(fovy, aspect, near, far float32) error {
	if float32(math.Abs(float64(aspect))) < mgl32.Epsilon {
		return fmt.Errorf("%w: perspective aspect ratio is zero", core.ErrInvalidConfig)
	}
	tanHalf := float32(math.Tan(float64(fovy) / 2))
	var p mgl32.Mat4
	p[0] = 1 / (aspect * tanHalf)
	p[5] = 1 / tanHalf
	p[10] = far / (far - near)
	p[11] = 1
	p[14] = -(far * near) / (far - near)
	c.projection = p
	return nil
}

func (c *Camera) SetViewDirection(position, direction, up mgl32.Vec3) {
	w := direction.Normalize()
	u := w.Cross(up).Normalize()
	v := w.Cross(u)
	c.setBasis(position, u, v, w)
}

func (c *Camera) SetViewTarget(position, target, up mgl32.Vec3) {
	c.SetViewDirection(position, target.Sub(position), up)
}

// SetViewYXZ builds the view from a position and Tait-Bryan angles, the
// inverse of an object's transform with the same values.
func (c *Camera) SetViewYXZ(position, rotation mgl32.Vec3) {
	t := Transform{Rotation: rotation}
	c1, s1, c2, s2, c3, s3 := t.yxz()
	u := mgl32.Vec3{c1*c3 + s1*s2*s3, c2 * s3, c1*s2*s3 - c3*s1}
	v := mgl32.Vec3{c3*s1*s2 - c1*s3, c2 * c3, c1*c3*s2 + s1*s3}
	w := mgl32.Vec3{c2 * s1, -s2, c1 * c2}
	c.setBasis(position, u, v, w)
}

func (c *Camera) setBasis(position, u, v, w mgl32.Vec3) {
	view := mgl32.Ident4()
	view[0], view[4], view[8] = u.X(), u.Y(), u.Z()
	view[1], view[5], view[9] = v.X(), v.Y(), v.Z()
	view[2], view[6], view[10] = w.X(), w.Y(), w.Z()
	view[12] = -u.Dot(position)
	view[13] = -v.Dot(position)
	view[14] = -w.Dot(position)
	c.view = view
}

func (c *Camera) Projection() mgl32.Mat4 {
	return c.projection
}

func (c *Camera) View() mgl32.Mat4 {
	return c.view
}
