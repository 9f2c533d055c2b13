package scene

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/curen/engine/math"
)

// PointLight lights the scene from Position with a strength that falls off
// with the squared distance.
type PointLight struct {
	Position  mgl32.Vec3
	Color     mgl32.Vec3
	Intensity float32
}

// ColorIntensity packs the color with the intensity in w, the way the
// shaders read it.
func (l *PointLight) ColorIntensity() mgl32.Vec4 {
	return l.Color.Vec4(l.Intensity)
}

// Orbit rotates the light around the Y axis through center by angle
// radians.
func (l *PointLight) Orbit(center mgl32.Vec3, angle float32) {
	rot := mgl32.HomogRotate3DY(angle)
	offset := l.Position.Sub(center)
	l.Position = center.Add(rot.Mul4x1(offset.Vec4(1)).Vec3())
}

// Ambient is the light every surface receives regardless of direction.
type Ambient struct {
	Color     mgl32.Vec3
	Intensity float32
}

func (a *Ambient) ColorIntensity() mgl32.Vec4 {
	return a.Color.Vec4(math.Clamp(a.Intensity, 0, 1))
}
