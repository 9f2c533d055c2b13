package renderer

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/curen/engine/core"
	emath "github.com/spaghettifunk/curen/engine/math"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

// Depth formats tried in order of preference.
var depthFormatCandidates = []metadata.Format{
	metadata.FormatD32Sfloat,
	metadata.FormatD32SfloatS8Uint,
	metadata.FormatD24UnormS8Uint,
}

type SwapchainOptions struct {
	FramesInFlight int
	// FenceTimeout bounds fence waits. Zero blocks until signaled.
	FenceTimeout time.Duration
	// PreferVsync keeps FIFO even when MAILBOX is available.
	PreferVsync bool
}

// frameSync is the synchronization set of one frame-in-flight slot.
type frameSync struct {
	imageAvailable metadata.Semaphore
	renderFinished metadata.Semaphore
	inFlight       metadata.Fence
}

// chain groups everything that lives and dies with one swapchain.
type chain struct {
	swapchain    metadata.Swapchain
	images       []metadata.Image
	views        []metadata.ImageView
	depth        []metadata.DepthImage
	renderPass   metadata.RenderPass
	framebuffers []metadata.Framebuffer
	extent       metadata.Extent2D
	imageFormat  metadata.SurfaceFormat
	depthFormat  metadata.Format
	presentMode  metadata.PresentMode
}

func (c *chain) destroy() {
	for _, fb := range c.framebuffers {
		fb.Destroy()
	}
	c.framebuffers = nil
	if c.renderPass != nil {
		c.renderPass.Destroy()
		c.renderPass = nil
	}
	for _, d := range c.depth {
		d.Destroy()
	}
	c.depth = nil
	// Only destroy the views, not the images, since those are owned by the
	// swapchain and are thus destroyed when it is.
	for _, v := range c.views {
		v.Destroy()
	}
	c.views = nil
	if c.swapchain != nil {
		c.swapchain.Destroy()
		c.swapchain = nil
	}
	c.images = nil
}

// SwapchainManager owns the presentable images, their depth buffers and
// framebuffers, the render pass, and the per-frame synchronization objects.
// The synchronization objects live as long as the manager; everything else
// is replaced on Build.
type SwapchainManager struct {
	device metadata.Device
	opts   SwapchainOptions

	frames []frameSync
	// Fence of the frame currently using each image, nil when unused.
	// The fences are owned by frames.
	imagesInFlight []metadata.Fence
	currentFrame   int

	chain *chain
}

func NewSwapchainManager(device metadata.Device, windowExtent metadata.Extent2D, opts SwapchainOptions) (*SwapchainManager, error) {
	if opts.FramesInFlight < core.MinFramesInFlight || opts.FramesInFlight > core.MaxFramesInFlight {
		err := fmt.Errorf("%w: frames in flight must be in [%d, %d], got %d", core.ErrFatal, core.MinFramesInFlight, core.MaxFramesInFlight, opts.FramesInFlight)
		core.LogError(err.Error())
		return nil, err
	}
	m := &SwapchainManager{
		device: device,
		opts:   opts,
	}
	if err := m.createSyncObjects(); err != nil {
		return nil, err
	}
	if err := m.Build(windowExtent); err != nil {
		m.destroySyncObjects()
		return nil, err
	}
	return m, nil
}

func (m *SwapchainManager) createSyncObjects() error {
	m.frames = make([]frameSync, 0, m.opts.FramesInFlight)
	for i := 0; i < m.opts.FramesInFlight; i++ {
		var fs frameSync
		var err error
		if fs.imageAvailable, err = m.device.CreateSemaphore(); err != nil {
			m.destroySyncObjects()
			return fatal(err, "failed to create image available semaphore")
		}
		if fs.renderFinished, err = m.device.CreateSemaphore(); err != nil {
			fs.imageAvailable.Destroy()
			m.destroySyncObjects()
			return fatal(err, "failed to create render finished semaphore")
		}
		// Created signaled so the first wait on each slot returns at once.
		if fs.inFlight, err = m.device.CreateFence(true); err != nil {
			fs.imageAvailable.Destroy()
			fs.renderFinished.Destroy()
			m.destroySyncObjects()
			return fatal(err, "failed to create in-flight fence")
		}
		m.frames = append(m.frames, fs)
	}
	return nil
}

func (m *SwapchainManager) destroySyncObjects() {
	for _, fs := range m.frames {
		fs.imageAvailable.Destroy()
		fs.renderFinished.Destroy()
		fs.inFlight.Destroy()
	}
	m.frames = nil
	m.imagesInFlight = nil
}

// Build creates a complete new chain for windowExtent. The current chain, if
// any, is handed to the driver as the predecessor and destroyed only once the
// new chain is fully constructed. On failure the new resources are released
// and the current chain stays installed. If the failure comes after the
// driver accepted the new swapchain, the predecessor has already been retired:
// its resources are still valid to destroy, but its next acquire reports out
// of date, so the caller has to Build again before rendering.
func (m *SwapchainManager) Build(windowExtent metadata.Extent2D) error {
	support, err := m.device.SurfaceSupport()
	if err != nil {
		return fatal(err, "failed to query surface support")
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		err := fmt.Errorf("%w: surface reports no formats or present modes", core.ErrFatal)
		core.LogError(err.Error())
		return err
	}

	depthFormat, err := m.chooseDepthFormat()
	if err != nil {
		return err
	}

	prev := m.chain
	next := &chain{
		imageFormat: chooseSurfaceFormat(support.Formats),
		presentMode: choosePresentMode(support.PresentModes, m.opts.PreferVsync),
		extent:      chooseExtent(support.Capabilities, windowExtent),
		depthFormat: depthFormat,
	}
	if next.extent.IsZero() {
		err := fmt.Errorf("%w: surface extent is %dx%d", core.ErrSurfaceStale, next.extent.Width, next.extent.Height)
		core.LogWarn(err.Error())
		return err
	}

	reusedPass := false
	if err := m.buildChain(next, prev, support.Capabilities, &reusedPass); err != nil {
		// The predecessor's render pass must survive the cleanup.
		if reusedPass {
			next.renderPass = nil
		}
		next.destroy()
		return err
	}

	if prev != nil {
		if reusedPass {
			prev.renderPass = nil
		}
		prev.destroy()
	}
	m.chain = next
	m.imagesInFlight = make([]metadata.Fence, len(next.images))

	core.LogInfo("Swapchain created: %dx%d, %d images, color %s, depth %s, present mode %s.",
		next.extent.Width, next.extent.Height, len(next.images), next.imageFormat.Format, next.depthFormat, next.presentMode)
	return nil
}

func (m *SwapchainManager) buildChain(next, prev *chain, caps metadata.SurfaceCapabilities, reusedPass *bool) error {
	var previous metadata.Swapchain
	if prev != nil {
		previous = prev.swapchain
	}

	sc, err := m.device.CreateSwapchain(metadata.SwapchainConfig{
		Format:      next.imageFormat,
		PresentMode: next.presentMode,
		Extent:      next.extent,
		ImageCount:  chooseImageCount(caps),
	}, previous)
	if err != nil {
		return fatal(err, "failed to create swapchain")
	}
	next.swapchain = sc
	next.images = sc.Images()
	if len(next.images) == 0 {
		err := fmt.Errorf("%w: swapchain returned no images", core.ErrFatal)
		core.LogError(err.Error())
		return err
	}

	// Views
	next.views = make([]metadata.ImageView, 0, len(next.images))
	for i, img := range next.images {
		view, err := m.device.CreateImageView(img, next.imageFormat.Format)
		if err != nil {
			return fatal(err, fmt.Sprintf("failed to create image view %d", i))
		}
		next.views = append(next.views, view)
	}

	// Depth resources, one per image.
	next.depth = make([]metadata.DepthImage, 0, len(next.images))
	for i := range next.images {
		d, err := m.device.CreateDepthImage(next.extent, next.depthFormat)
		if err != nil {
			return fatal(err, fmt.Sprintf("failed to create depth image %d", i))
		}
		next.depth = append(next.depth, d)
	}

	// The render pass only depends on the attachment formats.
	if prev != nil && prev.renderPass != nil && prev.imageFormat.Format == next.imageFormat.Format && prev.depthFormat == next.depthFormat {
		next.renderPass = prev.renderPass
		*reusedPass = true
	} else {
		rp, err := m.device.CreateRenderPass(next.imageFormat.Format, next.depthFormat)
		if err != nil {
			return fatal(err, "failed to create render pass")
		}
		next.renderPass = rp
	}

	next.framebuffers = make([]metadata.Framebuffer, 0, len(next.images))
	for i := range next.images {
		fb, err := m.device.CreateFramebuffer(next.renderPass, []metadata.ImageView{next.views[i], next.depth[i].View()}, next.extent)
		if err != nil {
			return fatal(err, fmt.Sprintf("failed to create framebuffer %d", i))
		}
		next.framebuffers = append(next.framebuffers, fb)
	}
	return nil
}

// AcquireNextImage waits until the current frame slot is free, then asks the
// presentation engine for the next image.
func (m *SwapchainManager) AcquireNextImage() (uint32, metadata.Status, error) {
	fs := m.frames[m.currentFrame]
	if err := fs.inFlight.Wait(m.opts.FenceTimeout); err != nil {
		return 0, metadata.StatusSuccess, fatal(err, "in-flight fence wait failed")
	}

	idx, status, err := m.chain.swapchain.AcquireNextImage(fs.imageAvailable)
	if err != nil {
		return 0, status, fatal(err, "failed to acquire swapchain image")
	}
	return idx, status, nil
}

// SubmitCommandBuffer submits buffer for the image at imageIndex and queues
// the image for presentation. The frame slot advances even when the
// presentation engine reports a stale surface.
func (m *SwapchainManager) SubmitCommandBuffer(buffer metadata.CommandBuffer, imageIndex uint32) (metadata.Status, error) {
	if int(imageIndex) >= len(m.imagesInFlight) {
		err := fmt.Errorf("%w: image index %d out of range (%d images)", core.ErrProtocolViolation, imageIndex, len(m.imagesInFlight))
		core.LogError(err.Error())
		return metadata.StatusSuccess, err
	}

	// Make sure the previous frame is not using this image.
	if f := m.imagesInFlight[imageIndex]; f != nil {
		if err := f.Wait(m.opts.FenceTimeout); err != nil {
			return metadata.StatusSuccess, fatal(err, "image fence wait failed")
		}
	}

	fs := m.frames[m.currentFrame]
	// Mark the image as in use by this frame.
	m.imagesInFlight[imageIndex] = fs.inFlight

	if err := fs.inFlight.Reset(); err != nil {
		return metadata.StatusSuccess, fatal(err, "failed to reset in-flight fence")
	}
	if err := m.device.Submit(buffer, fs.imageAvailable, fs.renderFinished, fs.inFlight); err != nil {
		return metadata.StatusSuccess, fatal(err, "failed to submit draw command buffer")
	}

	status, err := m.device.Present(m.chain.swapchain, imageIndex, fs.renderFinished)

	m.currentFrame = (m.currentFrame + 1) % len(m.frames)

	if err != nil {
		return status, fatal(err, "failed to present swapchain image")
	}
	return status, nil
}

// Destroy waits for the device and releases every resource the manager owns.
func (m *SwapchainManager) Destroy() error {
	err := m.device.WaitIdle()
	if m.chain != nil {
		m.chain.destroy()
		m.chain = nil
	}
	m.destroySyncObjects()
	return err
}

func (m *SwapchainManager) RenderPass() metadata.RenderPass {
	return m.chain.renderPass
}

func (m *SwapchainManager) Framebuffer(index int) metadata.Framebuffer {
	return m.chain.framebuffers[index]
}

func (m *SwapchainManager) ImageFormat() metadata.Format {
	return m.chain.imageFormat.Format
}

func (m *SwapchainManager) DepthFormat() metadata.Format {
	return m.chain.depthFormat
}

func (m *SwapchainManager) PresentMode() metadata.PresentMode {
	return m.chain.presentMode
}

func (m *SwapchainManager) ImageCount() int {
	return len(m.chain.images)
}

func (m *SwapchainManager) Extent() metadata.Extent2D {
	return m.chain.extent
}

func (m *SwapchainManager) Width() uint32 {
	return m.chain.extent.Width
}

func (m *SwapchainManager) Height() uint32 {
	return m.chain.extent.Height
}

func (m *SwapchainManager) AspectRatio() float32 {
	return float32(m.chain.extent.Width) / float32(m.chain.extent.Height)
}

func (m *SwapchainManager) FramesInFlight() int {
	return len(m.frames)
}

// CompareFormats reports whether other selected the same color and depth formats.
func (m *SwapchainManager) CompareFormats(other *SwapchainManager) bool {
	return m.ImageFormat() == other.ImageFormat() && m.DepthFormat() == other.DepthFormat()
}

func (m *SwapchainManager) chooseDepthFormat() (metadata.Format, error) {
	for _, f := range depthFormatCandidates {
		if m.device.DepthFormatSupported(f) {
			return f, nil
		}
	}
	err := fmt.Errorf("%w: failed to find a supported depth format", core.ErrFatal)
	core.LogError(err.Error())
	return metadata.FormatUndefined, err
}

func chooseSurfaceFormat(formats []metadata.SurfaceFormat) metadata.SurfaceFormat {
	for _, f := range formats {
		if f.Format == metadata.FormatB8G8R8A8Srgb && f.ColorSpace == metadata.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

func choosePresentMode(modes []metadata.PresentMode, preferVsync bool) metadata.PresentMode {
	if !preferVsync {
		for _, mode := range modes {
			if mode == metadata.PresentModeMailbox {
				return mode
			}
		}
	}
	// FIFO is always supported.
	return metadata.PresentModeFifo
}

func chooseExtent(caps metadata.SurfaceCapabilities, window metadata.Extent2D) metadata.Extent2D {
	if caps.CurrentExtent.Width != metadata.UndefinedExtent {
		return caps.CurrentExtent
	}
	return metadata.Extent2D{
		Width:  emath.Clamp(window.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: emath.Clamp(window.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseImageCount(caps metadata.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func fatal(err error, msg string) error {
	wrapped := fmt.Errorf("%w: %s: %w", core.ErrFatal, msg, err)
	core.LogError(wrapped.Error())
	return wrapped
}
