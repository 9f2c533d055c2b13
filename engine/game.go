package engine

import "github.com/spaghettifunk/curen/engine/core"

// Game hooks into the engine lifecycle. Every hook is optional.
type Game struct {
	Config *core.ApplicationConfig
	State  interface{}

	// FnInitialize runs once the renderer and the configured models are
	// ready; it usually fills the scene.
	FnInitialize Initialize
	// FnUpdate runs once per frame before anything is recorded.
	FnUpdate   Update
	FnOnResize OnResize
	FnShutdown Shutdown
}

type Initialize func(e *Engine) error
type Update func(e *Engine, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
