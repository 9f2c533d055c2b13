package engine

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/spaghettifunk/curen/engine/assets/loaders"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/platform"
	"github.com/spaghettifunk/curen/engine/renderer"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
	"github.com/spaghettifunk/curen/engine/renderer/vulkan"
	"github.com/spaghettifunk/curen/engine/scene"
	"github.com/spaghettifunk/curen/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	RunID string

	currentStage Stage
	gameInstance *Game
	config       *core.ApplicationConfig
	isRunning    bool

	events   *core.EventSystem
	input    *core.InputState
	platform *platform.Platform

	backend       renderer.Backend
	backendUp     bool
	renderer      *renderer.Renderer
	systemManager *systems.SystemManager

	Scene      *scene.Store
	Camera     *scene.Camera
	Viewer     *scene.Object
	Controller *scene.KeyboardController
	Light      *scene.PointLight
	Ambient    scene.Ambient
	// Models holds the configured models in order, or the built-in cube.
	Models []metadata.Model

	clock   *core.Clock
	metrics *core.Metrics
}

func New(g *Game) (*Engine, error) {
	if g.Config == nil {
		g.Config = core.DefaultConfig()
	}
	if err := g.Config.Validate(); err != nil {
		return nil, err
	}
	if err := core.SetLogLevel(g.Config.LogLevel); err != nil {
		return nil, fmt.Errorf("%w: log_level: %w", core.ErrInvalidConfig, err)
	}

	runID := uuid.NewString()
	core.WithRunID(runID)

	events := core.NewEventSystem()
	input := core.NewInputState(events)
	p, err := platform.New(events, input)
	if err != nil {
		return nil, err
	}

	return &Engine{
		RunID:        runID,
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       g.Config,
		events:       events,
		input:        input,
		platform:     p,
		Scene:        scene.NewStore(),
		Camera:       scene.NewCamera(),
		Controller:   scene.NewKeyboardController(g.Config.Camera.MoveSpeed, g.Config.Camera.LookSpeed),
		Light: &scene.PointLight{
			Position:  g.Config.Light.Position,
			Color:     g.Config.Light.Color,
			Intensity: g.Config.Light.Intensity,
		},
		Ambient: scene.Ambient{
			Color:     g.Config.Light.AmbientColor,
			Intensity: g.Config.Light.AmbientIntensity,
		},
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	cfg := e.config

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	if err := e.platform.Startup(cfg.Window.Title,
		uint32(cfg.Window.PosX), uint32(cfg.Window.PosY),
		cfg.Window.Width, cfg.Window.Height); err != nil {
		return err
	}

	e.backend = vulkan.New(e.platform, cfg.Renderer.Validation)
	if err := e.backend.Initialize(cfg.Window.Title); err != nil {
		return err
	}
	e.backendUp = true

	r, err := renderer.NewRenderer(e.platform, e.backend, renderer.SwapchainOptions{
		FramesInFlight: cfg.Renderer.FramesInFlight,
		FenceTimeout:   cfg.Renderer.FenceTimeout.Duration,
		PreferVsync:    cfg.Renderer.PreferVsync,
	})
	if err != nil {
		return err
	}
	e.renderer = r

	sm, err := systems.NewSystemManager(cfg, e.backend, r.RenderPass())
	if err != nil {
		return err
	}
	e.systemManager = sm

	if err := e.loadModels(); err != nil {
		return err
	}

	e.Viewer = &scene.Object{Transform: scene.NewTransform()}
	e.Viewer.Transform.Translation = mgl32.Vec3{0, 0, -2.5}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e); err != nil {
			return err
		}
	}

	e.currentStage = EngineStageInitialized
	core.LogInfo("Engine initialized (run %s).", e.RunID)
	return nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) loadModels() error {
	paths := e.config.ModelPaths()
	if len(paths) == 0 {
		cube, err := e.systemManager.Models.Acquire(loaders.Cube(mgl32.Vec3{}))
		if err != nil {
			return err
		}
		e.Models = []metadata.Model{cube}
		return nil
	}
	models, err := e.systemManager.Models.LoadAll(paths)
	if err != nil {
		return err
	}
	e.Models = models
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning = true

	e.clock.Start()
	lastTime := e.clock.Elapsed()

	for e.isRunning && !e.platform.ShouldClose() {
		e.platform.PollEvents()

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - lastTime
		lastTime = currentTime

		e.Controller.MoveInPlaneXZ(e.input, float32(delta), e.Viewer)
		e.Camera.SetViewYXZ(e.Viewer.Transform.Translation, e.Viewer.Transform.Rotation)
		cam := e.config.Camera
		if err := e.Camera.SetPerspectiveProjection(mgl32.DegToRad(cam.FovY), e.renderer.AspectRatio(), cam.Near, cam.Far); err != nil {
			return err
		}

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(e, delta); err != nil {
				core.LogError("Game update failed, shutting down.")
				return err
			}
		}

		if e.systemManager.ReloadShaders(e.renderer.RenderPass()) {
			e.events.Fire(core.EVENT_CODE_SHADERS_CHANGED, e, core.EventContext{})
		}

		if err := e.drawFrame(delta); err != nil {
			return err
		}

		if e.metrics.Update(delta) {
			core.LogDebug("%.0f fps, %.2f ms/frame", e.metrics.FPS(), e.metrics.FrameTime())
		}
		e.input.Update()
	}
	return nil
}

func (e *Engine) drawFrame(delta float64) error {
	cb, err := e.renderer.BeginFrame()
	if err != nil {
		return err
	}
	if cb == nil {
		// The swapchain was rebuilt; nothing to record this time.
		return nil
	}

	frame := &metadata.FrameInfo{
		FrameIndex:    e.renderer.FrameIndex(),
		FrameTime:     float32(delta),
		CommandBuffer: cb,
		Camera:        e.Camera,
	}
	// BeginFrame waited on this slot's fence, so its uniform buffer is free.
	if err := e.systemManager.Globals.Update(frame, &systems.GlobalUbo{
		Projection:    e.Camera.Projection(),
		View:          e.Camera.View(),
		AmbientLight:  e.Ambient.ColorIntensity(),
		LightPosition: e.Light.Position,
		LightColor:    e.Light.ColorIntensity(),
	}); err != nil {
		return err
	}

	if err := e.renderer.BeginSwapchainRenderPass(cb); err != nil {
		return err
	}
	e.systemManager.Render.RenderObjects(frame, e.Scene.Objects())
	e.systemManager.Lights.Render(frame)
	if err := e.renderer.EndSwapchainRenderPass(cb); err != nil {
		return err
	}
	return e.renderer.EndFrame()
}

// Shutdown releases everything Initialize created, in reverse order. It is
// safe to call after a failed Initialize.
func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var errs []error

	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.backendUp {
		errs = append(errs, e.backend.WaitIdle())
	}
	if e.systemManager != nil {
		errs = append(errs, e.systemManager.Shutdown())
	}
	e.Scene.Reset()
	if e.renderer != nil {
		errs = append(errs, e.renderer.Destroy())
	}
	if e.backend != nil {
		errs = append(errs, e.backend.Shutdown())
	}
	errs = append(errs, e.platform.Shutdown())
	e.events.Shutdown()

	e.currentStage = EngineStageUninitialized
	return errors.Join(errs...)
}

func (e *Engine) onEvent(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	if core.KeyCode(data.Data.U16[0]) == core.KEY_ESCAPE {
		e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	}
	return false
}

// onResized only informs the game; the renderer notices the resize through
// the platform's resized flag at the end of the frame.
func (e *Engine) onResized(code core.SystemEventCode, sender interface{}, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	core.LogDebug("Window resize: %d, %d", width, height)
	if e.gameInstance.FnOnResize != nil && width != 0 && height != 0 {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}
