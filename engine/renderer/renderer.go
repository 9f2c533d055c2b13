package renderer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

type FrameState uint8

const (
	FrameStateIdle FrameState = iota
	FrameStateRecording
	FrameStateInRenderPass
)

func (s FrameState) String() string {
	switch s {
	case FrameStateIdle:
		return "idle"
	case FrameStateRecording:
		return "recording"
	case FrameStateInRenderPass:
		return "in render pass"
	}
	return "unknown"
}

var DefaultClearColor = metadata.ClearColor{0.1, 0.1, 0.1, 1.0}

// Renderer drives the per-frame protocol on top of a SwapchainManager:
// acquire, record, submit, present, and recreation of the chain whenever the
// surface goes stale or the window is resized.
type Renderer struct {
	window Window
	device metadata.Device
	opts   SwapchainOptions

	swapchain *SwapchainManager
	// One primary buffer per frame-in-flight slot.
	commandBuffers []metadata.CommandBuffer
	// Image count the command buffers were allocated against.
	allocatedFor int

	currentImageIndex uint32
	currentFrameIndex int
	state             FrameState
	// Set when the acquire for the current frame reported suboptimal.
	acquireSuboptimal bool

	ClearColor metadata.ClearColor
}

func NewRenderer(window Window, device metadata.Device, opts SwapchainOptions) (*Renderer, error) {
	r := &Renderer{
		window:     window,
		device:     device,
		opts:       opts,
		ClearColor: DefaultClearColor,
	}
	if err := r.recreate(); err != nil {
		return nil, err
	}
	return r, nil
}

// RecreateSwapchain blocks while the window has no drawable area, then
// rebuilds the swapchain for the current framebuffer size. A rebuild that
// selects different attachment formats is fatal. It is only legal between
// frames.
func (r *Renderer) RecreateSwapchain() error {
	if r.state != FrameStateIdle {
		return r.violation("RecreateSwapchain")
	}
	return r.recreate()
}

func (r *Renderer) recreate() error {
	for {
		extent := r.window.FramebufferSize()
		for extent.IsZero() {
			r.window.WaitEvents()
			extent = r.window.FramebufferSize()
		}

		if err := r.device.WaitIdle(); err != nil {
			return fatal(err, "failed to wait for device idle")
		}

		err := r.rebuild(extent)
		if errors.Is(err, core.ErrSurfaceStale) {
			// The surface went away again between the size query and the
			// rebuild; wait for the next event and retry.
			r.window.WaitEvents()
			continue
		}
		if err != nil {
			return err
		}
		break
	}

	if r.commandBuffersStale() {
		return r.reallocateCommandBuffers()
	}
	return nil
}

func (r *Renderer) rebuild(extent metadata.Extent2D) error {
	if r.swapchain == nil {
		sc, err := NewSwapchainManager(r.device, extent, r.opts)
		if err != nil {
			return err
		}
		r.swapchain = sc
		return nil
	}

	oldImage, oldDepth := r.swapchain.ImageFormat(), r.swapchain.DepthFormat()
	if err := r.swapchain.Build(extent); err != nil {
		return err
	}
	if oldImage != r.swapchain.ImageFormat() || oldDepth != r.swapchain.DepthFormat() {
		err := fmt.Errorf("%w: %w: color %s -> %s, depth %s -> %s", core.ErrFatal, core.ErrSwapchainFormatChanged,
			oldImage, r.swapchain.ImageFormat(), oldDepth, r.swapchain.DepthFormat())
		core.LogError(err.Error())
		return err
	}
	return nil
}

// commandBuffersStale reports whether the command buffers have to be
// reallocated after a rebuild. They are tied to frame slots, not images, so
// this only happens when none exist yet or the image count changed.
func (r *Renderer) commandBuffersStale() bool {
	return r.commandBuffers == nil || r.allocatedFor != r.swapchain.ImageCount()
}

func (r *Renderer) reallocateCommandBuffers() error {
	if r.commandBuffers != nil {
		r.device.FreeCommandBuffers(r.commandBuffers)
		r.commandBuffers = nil
	}
	buffers, err := r.device.AllocateCommandBuffers(r.swapchain.FramesInFlight())
	if err != nil {
		return fatal(err, "failed to allocate command buffers")
	}
	r.commandBuffers = buffers
	r.allocatedFor = r.swapchain.ImageCount()
	core.LogDebug("Allocated %d command buffers.", len(buffers))
	return nil
}

// BeginFrame acquires the next image and starts recording. It returns a nil
// buffer and no error when the swapchain was out of date and had to be
// recreated; the caller skips the frame.
func (r *Renderer) BeginFrame() (metadata.CommandBuffer, error) {
	if r.state != FrameStateIdle {
		return nil, r.violation("BeginFrame")
	}

	idx, status, err := r.swapchain.AcquireNextImage()
	if err != nil {
		return nil, err
	}
	if status == metadata.StatusOutOfDate {
		core.LogDebug("Swapchain out of date on acquire, recreating.")
		if err := r.recreate(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	// Suboptimal images are still presentable; EndFrame recreates afterwards.
	r.acquireSuboptimal = status == metadata.StatusSuboptimal
	r.currentImageIndex = idx

	cb := r.commandBuffers[r.currentFrameIndex]
	if err := cb.Begin(); err != nil {
		return nil, fatal(err, "failed to begin recording command buffer")
	}
	r.state = FrameStateRecording
	return cb, nil
}

// EndFrame finishes recording, submits and presents. The frame index
// advances only when this returns without error.
func (r *Renderer) EndFrame() error {
	if r.state != FrameStateRecording {
		return r.violation("EndFrame")
	}

	cb := r.commandBuffers[r.currentFrameIndex]
	if err := cb.End(); err != nil {
		r.state = FrameStateIdle
		return fatal(err, "failed to record command buffer")
	}

	status, err := r.swapchain.SubmitCommandBuffer(cb, r.currentImageIndex)
	r.state = FrameStateIdle
	if err != nil {
		return err
	}

	stale := r.acquireSuboptimal
	r.acquireSuboptimal = false
	if stale || status != metadata.StatusSuccess || r.window.WasResized() {
		core.LogDebug("Recreating swapchain after present (%s, acquire suboptimal %t, resized %t).", status, stale, r.window.WasResized())
		r.window.ResetResized()
		if err := r.recreate(); err != nil {
			return err
		}
	}

	r.currentFrameIndex = (r.currentFrameIndex + 1) % r.swapchain.FramesInFlight()
	return nil
}

// BeginSwapchainRenderPass begins the swapchain render pass on the frame's
// command buffer and sets a full-extent viewport and scissor.
func (r *Renderer) BeginSwapchainRenderPass(cb metadata.CommandBuffer) error {
	if r.state != FrameStateRecording {
		return r.violation("BeginSwapchainRenderPass")
	}
	if !r.isCurrent(cb) {
		return r.foreignBuffer("BeginSwapchainRenderPass")
	}

	extent := r.swapchain.Extent()
	area := metadata.Rect2D{Extent: extent}
	cb.BeginRenderPass(metadata.RenderPassBegin{
		RenderPass:  r.swapchain.RenderPass(),
		Framebuffer: r.swapchain.Framebuffer(int(r.currentImageIndex)),
		Area:        area,
		Color:       r.ClearColor,
		Depth:       1.0,
		Stencil:     0,
	})
	cb.SetViewport(metadata.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	})
	cb.SetScissor(area)

	r.state = FrameStateInRenderPass
	return nil
}

func (r *Renderer) EndSwapchainRenderPass(cb metadata.CommandBuffer) error {
	if r.state != FrameStateInRenderPass {
		return r.violation("EndSwapchainRenderPass")
	}
	if !r.isCurrent(cb) {
		return r.foreignBuffer("EndSwapchainRenderPass")
	}
	cb.EndRenderPass()
	r.state = FrameStateRecording
	return nil
}

func (r *Renderer) isCurrent(cb metadata.CommandBuffer) bool {
	return cb != nil && cb == r.commandBuffers[r.currentFrameIndex]
}

func (r *Renderer) violation(op string) error {
	err := fmt.Errorf("%w: %s called while %s", core.ErrProtocolViolation, op, r.state)
	core.LogError(err.Error())
	return err
}

func (r *Renderer) foreignBuffer(op string) error {
	err := fmt.Errorf("%w: %s called with a command buffer from a different frame", core.ErrProtocolViolation, op)
	core.LogError(err.Error())
	return err
}

// Destroy waits for the device and releases the command buffers and the
// swapchain.
func (r *Renderer) Destroy() error {
	if r.state != FrameStateIdle {
		core.LogWarn("Renderer destroyed while %s.", r.state)
	}
	if err := r.device.WaitIdle(); err != nil {
		core.LogError("failed to wait for device idle: %s", err)
	}
	if r.commandBuffers != nil {
		r.device.FreeCommandBuffers(r.commandBuffers)
		r.commandBuffers = nil
	}
	if r.swapchain != nil {
		err := r.swapchain.Destroy()
		r.swapchain = nil
		return err
	}
	return nil
}

func (r *Renderer) IsFrameInProgress() bool {
	return r.state != FrameStateIdle
}

func (r *Renderer) State() FrameState {
	return r.state
}

// CurrentCommandBuffer is only valid while a frame is in progress.
func (r *Renderer) CurrentCommandBuffer() (metadata.CommandBuffer, error) {
	if r.state == FrameStateIdle {
		return nil, r.violation("CurrentCommandBuffer")
	}
	return r.commandBuffers[r.currentFrameIndex], nil
}

func (r *Renderer) FrameIndex() int {
	return r.currentFrameIndex
}

func (r *Renderer) ImageIndex() uint32 {
	return r.currentImageIndex
}

func (r *Renderer) AspectRatio() float32 {
	return r.swapchain.AspectRatio()
}

func (r *Renderer) RenderPass() metadata.RenderPass {
	return r.swapchain.RenderPass()
}

func (r *Renderer) Extent() metadata.Extent2D {
	return r.swapchain.Extent()
}

func (r *Renderer) Swapchain() *SwapchainManager {
	return r.swapchain
}
