package systems

import (
	"errors"
	"runtime"

	"github.com/spaghettifunk/curen/engine/assets"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

// GPU is what the systems need from the backend.
type GPU interface {
	metadata.ModelFactory
	metadata.PipelineFactory
	metadata.UniformFactory
	WaitIdle() error
}

type SystemManager struct {
	Assets       *assets.AssetManager
	Jobs         *JobSystem
	Shaders      *ShaderSystem
	LightShaders *ShaderSystem
	Models       *ModelSystem
	Globals      *GlobalSystem
	Render       *RenderSystem
	Lights       *PointLightSystem

	gpu       GPU
	hotReload bool
}

func NewSystemManager(config *core.ApplicationConfig, gpu GPU, pass metadata.RenderPass) (*SystemManager, error) {
	am := assets.NewAssetManager()

	js, err := NewJobSystem(runtime.NumCPU(), len(config.Assets.Models))
	if err != nil {
		return nil, err
	}

	sm := &SystemManager{
		Assets: am,
		Jobs:   js,
		Shaders: NewShaderSystem(ShaderSystemConfig{
			VertexPath:   config.ShaderPath(config.Assets.VertexShader),
			FragmentPath: config.ShaderPath(config.Assets.FragmentShader),
		}, am),
		LightShaders: NewShaderSystem(ShaderSystemConfig{
			VertexPath:   config.ShaderPath(config.Assets.LightVertexShader),
			FragmentPath: config.ShaderPath(config.Assets.LightFragmentShader),
		}, am),
		Models:    NewModelSystem(gpu, am, js),
		gpu:       gpu,
		hotReload: config.Assets.HotReload,
	}

	gs, err := NewGlobalSystem(gpu, config.Renderer.FramesInFlight)
	if err != nil {
		sm.Shutdown()
		return nil, err
	}
	sm.Globals = gs

	vertex, fragment, err := sm.Shaders.Load()
	if err != nil {
		sm.Shutdown()
		return nil, err
	}
	rs, err := NewRenderSystem(RenderSystemConfig{}, gpu, pass, gs.Layout(), vertex, fragment)
	if err != nil {
		sm.Shutdown()
		return nil, err
	}
	sm.Render = rs

	vertex, fragment, err = sm.LightShaders.Load()
	if err != nil {
		sm.Shutdown()
		return nil, err
	}
	ls, err := NewPointLightSystem(gpu, pass, gs.Layout(), vertex, fragment)
	if err != nil {
		sm.Shutdown()
		return nil, err
	}
	sm.Lights = ls

	if sm.hotReload {
		if err := am.Watch(config.ShaderPath("")); err != nil {
			// Rendering works without it.
			core.LogWarn("shader hot reload disabled: %s", err)
			sm.hotReload = false
		}
	}
	return sm, nil
}

// ReloadShaders rebuilds the pipelines whose shader files changed since the
// last call and reports whether any was rebuilt. It must run between frames.
// A shader that fails to load or link leaves its current pipeline in place.
func (sm *SystemManager) ReloadShaders(pass metadata.RenderPass) bool {
	if !sm.hotReload {
		return false
	}
	changed := sm.Assets.ShaderChanges()
	objects := sm.Shaders.Affected(changed)
	lights := sm.LightShaders.Affected(changed)
	if !objects && !lights {
		return false
	}

	core.LogInfo("Shaders changed, rebuilding pipelines...")
	if err := sm.gpu.WaitIdle(); err != nil {
		core.LogError("failed to wait for device idle: %s", err)
		return false
	}
	rebuilt := false
	if objects && sm.rebuild(sm.Shaders, func(v, f []uint32) error { return sm.Render.Rebuild(pass, v, f) }) {
		rebuilt = true
	}
	if lights && sm.rebuild(sm.LightShaders, func(v, f []uint32) error { return sm.Lights.Rebuild(pass, v, f) }) {
		rebuilt = true
	}
	return rebuilt
}

func (sm *SystemManager) rebuild(shaders *ShaderSystem, apply func(vertex, fragment []uint32) error) bool {
	vertex, fragment, err := shaders.Load()
	if err != nil {
		core.LogError("shader reload skipped: %s", err)
		return false
	}
	if err := apply(vertex, fragment); err != nil {
		return false
	}
	core.LogInfo("Pipeline rebuilt from %s.", shaders)
	return true
}

// Shutdown releases GPU objects before the asset watcher and workers.
func (sm *SystemManager) Shutdown() error {
	var errs []error
	if sm.Lights != nil {
		errs = append(errs, sm.Lights.Shutdown())
	}
	if sm.Render != nil {
		errs = append(errs, sm.Render.Shutdown())
	}
	if sm.Globals != nil {
		errs = append(errs, sm.Globals.Shutdown())
	}
	errs = append(errs,
		sm.Models.Shutdown(),
		sm.Jobs.Shutdown(),
		sm.Assets.Shutdown(),
	)
	return errors.Join(errs...)
}
