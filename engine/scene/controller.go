package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/curen/engine/core"
	emath "github.com/spaghettifunk/curen/engine/math"
)

// Pitch is kept inside this range so the view never flips.
const maxPitch float32 = 1.5

type KeyState interface {
	IsKeyDown(key core.KeyCode) bool
}

type KeyMappings struct {
	MoveLeft     core.KeyCode
	MoveRight    core.KeyCode
	MoveForward  core.KeyCode
	MoveBackward core.KeyCode
	MoveUp       core.KeyCode
	MoveDown     core.KeyCode
	LookLeft     core.KeyCode
	LookRight    core.KeyCode
	LookUp       core.KeyCode
	LookDown     core.KeyCode
	Focus        core.KeyCode
}

func DefaultKeyMappings() KeyMappings {
	return KeyMappings{
		MoveLeft:     core.KEY_A,
		MoveRight:    core.KEY_D,
		MoveForward:  core.KEY_W,
		MoveBackward: core.KEY_S,
		MoveUp:       core.KEY_E,
		MoveDown:     core.KEY_Q,
		LookLeft:     core.KEY_LEFT,
		LookRight:    core.KEY_RIGHT,
		LookUp:       core.KEY_UP,
		LookDown:     core.KEY_DOWN,
		Focus:        core.KEY_F,
	}
}

type KeyboardController struct {
	Keys      KeyMappings
	MoveSpeed float32
	LookSpeed float32
}

func NewKeyboardController(moveSpeed, lookSpeed float32) *KeyboardController {
	return &KeyboardController{
		Keys:      DefaultKeyMappings(),
		MoveSpeed: moveSpeed,
		LookSpeed: lookSpeed,
	}
}

// MoveInPlaneXZ turns and moves obj from the held keys. Movement follows
// the yaw only, so looking up or down never changes the height.
func (kc *KeyboardController) MoveInPlaneXZ(keys KeyState, dt float32, obj *Object) {
	var rotate mgl32.Vec3
	if keys.IsKeyDown(kc.Keys.LookRight) {
		rotate[1] += 1
	}
	if keys.IsKeyDown(kc.Keys.LookLeft) {
		rotate[1] -= 1
	}
	if keys.IsKeyDown(kc.Keys.LookUp) {
		rotate[0] += 1
	}
	if keys.IsKeyDown(kc.Keys.LookDown) {
		rotate[0] -= 1
	}
	if rotate.Dot(rotate) > mgl32.Epsilon {
		obj.Transform.Rotate(rotate.Normalize().Mul(kc.LookSpeed * dt))
	}

	obj.Transform.Rotation[0] = emath.Clamp(obj.Transform.Rotation[0], -maxPitch, maxPitch)
	obj.Transform.Rotation[1] = wrapAngle(obj.Transform.Rotation[1])

	yaw := float64(obj.Transform.Rotation[1])
	forward := mgl32.Vec3{float32(math.Sin(yaw)), 0, float32(math.Cos(yaw))}
	right := mgl32.Vec3{forward.Z(), 0, -forward.X()}
	up := mgl32.Vec3{0, -1, 0}

	var move mgl32.Vec3
	if keys.IsKeyDown(kc.Keys.MoveRight) {
		move = move.Add(right)
	}
	if keys.IsKeyDown(kc.Keys.MoveLeft) {
		move = move.Sub(right)
	}
	if keys.IsKeyDown(kc.Keys.MoveUp) {
		move = move.Add(up)
	}
	if keys.IsKeyDown(kc.Keys.MoveDown) {
		move = move.Sub(up)
	}
	if keys.IsKeyDown(kc.Keys.MoveForward) {
		move = move.Add(forward)
	}
	if keys.IsKeyDown(kc.Keys.MoveBackward) {
		move = move.Sub(forward)
	}

	if keys.IsKeyDown(kc.Keys.Focus) {
		obj.Transform.Translation = mgl32.Vec3{}
		obj.Transform.Rotation = mgl32.Vec3{}
	}

	if move.Dot(move) > mgl32.Epsilon {
		obj.Transform.Translate(move.Normalize().Mul(kc.MoveSpeed * dt))
	}
}

// wrapAngle maps a into [0, 2π).
func wrapAngle(a float32) float32 {
	r := float32(math.Mod(float64(a), 2*math.Pi))
	if r < 0 {
		r += 2 * math.Pi
	}
	return r
}
