package platform

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the GLFW window and forwards its input and resize
// notifications into the engine.
type Platform struct {
	Window *glfw.Window

	events  *core.EventSystem
	input   *core.InputState
	resized bool
}

func New(events *core.EventSystem, input *core.InputState) (*Platform, error) {
	return &Platform{
		events: events,
		input:  input,
	}, nil
}

func (p *Platform) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		core.LogFatal("glfw reports no Vulkan loader")
		return core.ErrFatal
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		core.LogFatal("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.Window.SetKeyCallback(p.keyCallback)
	p.Window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.Window.SetCloseCallback(p.closeCallback)
	p.Window.SetPos(int(x), int(y))
	p.Window.Show()

	return nil
}

func (p *Platform) Shutdown() error {
	if p.Window != nil {
		p.Window.Destroy()
		p.Window = nil
	}
	glfw.Terminate()
	return nil
}

// RequiredExtensions lists the instance extensions the window surface needs.
func (p *Platform) RequiredExtensions() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// CreateSurface creates a VkSurfaceKHR for the window and returns its raw
// handle.
func (p *Platform) CreateSurface(instance interface{}) (uintptr, error) {
	return p.Window.CreateWindowSurface(instance, nil)
}

func (p *Platform) FramebufferSize() metadata.Extent2D {
	w, h := p.Window.GetFramebufferSize()
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return metadata.Extent2D{Width: uint32(w), Height: uint32(h)}
}

func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

func (p *Platform) WasResized() bool {
	return p.resized
}

func (p *Platform) ResetResized() {
	p.resized = false
}

func (p *Platform) PollEvents() {
	glfw.PollEvents()
}

func (p *Platform) WaitEvents() {
	glfw.WaitEvents()
}

func (p *Platform) Time() float64 {
	return glfw.GetTime()
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	code, ok := translateKey(key)
	if !ok || p.input == nil {
		return
	}
	p.input.ProcessKey(code, action == glfw.Press)
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.resized = true
	if p.events == nil {
		return
	}
	ctx := core.EventContext{}
	ctx.Data.U32[0] = uint32(width)
	ctx.Data.U32[1] = uint32(height)
	p.events.Fire(core.EVENT_CODE_RESIZED, p, ctx)
}

func (p *Platform) closeCallback(w *glfw.Window) {
	if p.events != nil {
		p.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, p, core.EventContext{})
	}
}
