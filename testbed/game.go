package testbed

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/curen/engine"
	"github.com/spaghettifunk/curen/engine/core"
)

type gameState struct {
	spin float32
	// Radians per second the light circles the models.
	orbit float32
}

// NewTestGame places every loaded model in a row in front of the viewer and
// slowly turns them.
func NewTestGame(config *core.ApplicationConfig) *engine.Game {
	state := &gameState{spin: 0.5, orbit: 1.0}
	g := &engine.Game{
		Config: config,
		State:  state,
	}
	g.FnInitialize = func(e *engine.Engine) error {
		core.LogDebug("TestGame Initialize fn....")
		spacing := float32(1.5)
		start := -spacing * float32(len(e.Models)-1) / 2
		for i, m := range e.Models {
			obj := e.Scene.CreateObject()
			obj.Model = m
			obj.Transform.Translation = mgl32.Vec3{start + spacing*float32(i), 0, 0.5}
			obj.Transform.Scale = mgl32.Vec3{0.5, 0.5, 0.5}
		}
		return nil
	}
	g.FnUpdate = func(e *engine.Engine, dt float64) error {
		for _, obj := range e.Scene.Objects() {
			obj.Transform.Rotate(mgl32.Vec3{0, state.spin * float32(dt), 0})
		}
		e.Light.Orbit(mgl32.Vec3{0, 0, 0.5}, state.orbit*float32(dt))
		return nil
	}
	g.FnOnResize = func(width, height uint32) error {
		core.LogDebug("TestGame resized to %dx%d", width, height)
		return nil
	}
	return g
}
