package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

// mockDevice simulates a GPU with a tick clock. Every submission completes
// `latency` ticks after it was queued; a fence wait advances the clock to the
// completion tick. Misuse of the synchronization primitives is recorded in
// violations instead of failing immediately so tests can assert on it.
type mockDevice struct {
	support        metadata.SwapchainSupport
	depthSupported map[metadata.Format]bool

	tick    int
	latency int
	// Ticks the CPU spent blocked on fences.
	blocked int
	// Fences never signal; waits with a timeout fail.
	hang bool

	acquireScript []metadata.Status
	presentScript []metadata.Status
	// Fail the n-th (1-based) creation of the given kind, counted from when it is set.
	failAt map[string]int
	made   map[string]int

	live       map[string]int
	violations []string

	swapchains       []*mockSwapchain
	swapchainConfigs []metadata.SwapchainConfig
	renderPasses     int
	allocations      int
	frees            int
	waitIdles        int
	presents         []mockPresent
	submits          []*mockCommandBuffer
}

type mockPresent struct {
	swapchain int
	image     uint32
}

func newMockDevice() *mockDevice {
	return &mockDevice{
		support: metadata.SwapchainSupport{
			Capabilities: metadata.SurfaceCapabilities{
				MinImageCount:  2,
				MaxImageCount:  8,
				CurrentExtent:  metadata.Extent2D{Width: metadata.UndefinedExtent, Height: metadata.UndefinedExtent},
				MinImageExtent: metadata.Extent2D{Width: 1, Height: 1},
				MaxImageExtent: metadata.Extent2D{Width: 4096, Height: 4096},
			},
			Formats: []metadata.SurfaceFormat{
				{Format: metadata.FormatB8G8R8A8Unorm, ColorSpace: metadata.ColorSpaceSrgbNonlinear},
				{Format: metadata.FormatB8G8R8A8Srgb, ColorSpace: metadata.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []metadata.PresentMode{metadata.PresentModeFifo, metadata.PresentModeMailbox},
		},
		depthSupported: map[metadata.Format]bool{metadata.FormatD32Sfloat: true},
		latency:        3,
		failAt:         map[string]int{},
		made:           map[string]int{},
		live:           map[string]int{},
	}
}

func (d *mockDevice) violate(format string, args ...interface{}) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *mockDevice) create(kind string) error {
	d.made[kind]++
	if n, ok := d.failAt[kind]; ok && d.made[kind] == n {
		return fmt.Errorf("injected %s failure", kind)
	}
	d.live[kind]++
	return nil
}

func (d *mockDevice) release(kind string, destroyed *bool) {
	if *destroyed {
		d.violate("%s destroyed twice", kind)
		return
	}
	*destroyed = true
	d.live[kind]--
}

// failNext makes the next creation of kind fail.
func (d *mockDevice) failNext(kind string) {
	d.failAt[kind] = d.made[kind] + 1
}

func (d *mockDevice) liveObjects() int {
	n := 0
	for _, c := range d.live {
		n += c
	}
	return n
}

func (d *mockDevice) SurfaceSupport() (metadata.SwapchainSupport, error) {
	return d.support, nil
}

func (d *mockDevice) DepthFormatSupported(format metadata.Format) bool {
	return d.depthSupported[format]
}

func (d *mockDevice) CreateSwapchain(cfg metadata.SwapchainConfig, previous metadata.Swapchain) (metadata.Swapchain, error) {
	if previous != nil && previous.(*mockSwapchain).destroyed {
		d.violate("predecessor swapchain destroyed before its replacement was created")
	}
	if err := d.create("swapchain"); err != nil {
		return nil, err
	}
	if previous != nil {
		previous.(*mockSwapchain).retired = true
	}
	sc := &mockSwapchain{dev: d, id: len(d.swapchains)}
	for i := uint32(0); i < cfg.ImageCount; i++ {
		sc.images = append(sc.images, &mockImage{index: i})
	}
	d.swapchains = append(d.swapchains, sc)
	d.swapchainConfigs = append(d.swapchainConfigs, cfg)
	return sc, nil
}

func (d *mockDevice) CreateImageView(image metadata.Image, format metadata.Format) (metadata.ImageView, error) {
	if err := d.create("view"); err != nil {
		return nil, err
	}
	return &mockObject{dev: d, kind: "view"}, nil
}

func (d *mockDevice) CreateDepthImage(extent metadata.Extent2D, format metadata.Format) (metadata.DepthImage, error) {
	if err := d.create("depth"); err != nil {
		return nil, err
	}
	return &mockDepth{mockObject: mockObject{dev: d, kind: "depth"}, view: &mockObject{dev: d, kind: "depth view"}}, nil
}

func (d *mockDevice) CreateRenderPass(color metadata.Format, depth metadata.Format) (metadata.RenderPass, error) {
	if err := d.create("renderpass"); err != nil {
		return nil, err
	}
	d.renderPasses++
	return &mockObject{dev: d, kind: "renderpass"}, nil
}

func (d *mockDevice) CreateFramebuffer(pass metadata.RenderPass, attachments []metadata.ImageView, extent metadata.Extent2D) (metadata.Framebuffer, error) {
	if pass.(*mockObject).destroyed {
		d.violate("framebuffer created against a destroyed render pass")
	}
	if len(attachments) != 2 {
		d.violate("framebuffer with %d attachments", len(attachments))
	}
	if err := d.create("framebuffer"); err != nil {
		return nil, err
	}
	return &mockFramebuffer{mockObject: mockObject{dev: d, kind: "framebuffer"}, extent: extent}, nil
}

func (d *mockDevice) CreateSemaphore() (metadata.Semaphore, error) {
	if err := d.create("semaphore"); err != nil {
		return nil, err
	}
	return &mockSemaphore{mockObject: mockObject{dev: d, kind: "semaphore"}}, nil
}

func (d *mockDevice) CreateFence(signaled bool) (metadata.Fence, error) {
	if err := d.create("fence"); err != nil {
		return nil, err
	}
	return &mockFence{dev: d, signaled: signaled}, nil
}

func (d *mockDevice) AllocateCommandBuffers(count int) ([]metadata.CommandBuffer, error) {
	d.allocations++
	out := make([]metadata.CommandBuffer, count)
	for i := range out {
		d.live["commandbuffer"]++
		out[i] = &mockCommandBuffer{dev: d, slot: i}
	}
	return out, nil
}

func (d *mockDevice) FreeCommandBuffers(buffers []metadata.CommandBuffer) {
	d.frees++
	for _, b := range buffers {
		cb := b.(*mockCommandBuffer)
		if cb.pendingFence != nil && !cb.pendingFence.done() {
			d.violate("command buffer freed while in flight")
		}
		d.release("commandbuffer", &cb.freed)
	}
}

func (d *mockDevice) Submit(buffer metadata.CommandBuffer, wait metadata.Semaphore, signal metadata.Semaphore, fence metadata.Fence) error {
	cb := buffer.(*mockCommandBuffer)
	if cb.recording {
		d.violate("submitted a command buffer that is still recording")
	}
	ws := wait.(*mockSemaphore)
	if !ws.signaled {
		d.violate("submit waits on an unsignaled semaphore")
	}
	ws.signaled = false
	ss := signal.(*mockSemaphore)
	if ss.signaled {
		d.violate("submit signals a semaphore that is already signaled")
	}
	ss.signaled = true

	f := fence.(*mockFence)
	if f.signaled || f.pending {
		d.violate("submit with a fence that was not reset")
	}
	f.pending = true
	f.signalAt = d.tick + d.latency
	cb.pendingFence = f

	d.submits = append(d.submits, cb)
	d.tick++
	return nil
}

func (d *mockDevice) Present(swapchain metadata.Swapchain, imageIndex uint32, wait metadata.Semaphore) (metadata.Status, error) {
	sc := swapchain.(*mockSwapchain)
	if sc.destroyed {
		d.violate("present on a destroyed swapchain")
	}
	ws := wait.(*mockSemaphore)
	if !ws.signaled {
		d.violate("present waits on an unsignaled semaphore")
	}
	ws.signaled = false
	d.presents = append(d.presents, mockPresent{swapchain: sc.id, image: imageIndex})

	if len(d.presentScript) > 0 {
		s := d.presentScript[0]
		d.presentScript = d.presentScript[1:]
		return s, nil
	}
	return metadata.StatusSuccess, nil
}

func (d *mockDevice) WaitIdle() error {
	d.waitIdles++
	for _, cb := range d.submits {
		if f := cb.pendingFence; f != nil && f.pending && f.signalAt > d.tick {
			d.tick = f.signalAt
		}
	}
	return nil
}

type mockObject struct {
	dev       *mockDevice
	kind      string
	destroyed bool
}

func (o *mockObject) Destroy() {
	o.dev.release(o.kind, &o.destroyed)
}

type mockImage struct {
	index uint32
}

type mockDepth struct {
	mockObject
	view *mockObject
}

func (d *mockDepth) View() metadata.ImageView {
	return d.view
}

type mockFramebuffer struct {
	mockObject
	extent metadata.Extent2D
}

type mockSemaphore struct {
	mockObject
	signaled bool
}

type mockSwapchain struct {
	dev       *mockDevice
	id        int
	images    []metadata.Image
	next      uint32
	destroyed bool
	// Handed to CreateSwapchain as a predecessor; it can no longer present.
	retired bool
}

func (s *mockSwapchain) Images() []metadata.Image {
	return s.images
}

func (s *mockSwapchain) AcquireNextImage(signal metadata.Semaphore) (uint32, metadata.Status, error) {
	if s.destroyed {
		s.dev.violate("acquire on a destroyed swapchain")
	}
	status := metadata.StatusSuccess
	if len(s.dev.acquireScript) > 0 {
		status = s.dev.acquireScript[0]
		s.dev.acquireScript = s.dev.acquireScript[1:]
	}
	if s.retired {
		status = metadata.StatusOutOfDate
	}
	if status == metadata.StatusOutOfDate {
		return 0, status, nil
	}
	sem := signal.(*mockSemaphore)
	if sem.signaled {
		s.dev.violate("acquire signals a semaphore that is already signaled")
	}
	sem.signaled = true
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return idx, status, nil
}

func (s *mockSwapchain) Destroy() {
	s.dev.release("swapchain", &s.destroyed)
}

type mockFence struct {
	dev       *mockDevice
	signaled  bool
	pending   bool
	signalAt  int
	destroyed bool
}

func (f *mockFence) done() bool {
	return f.signaled || (f.pending && f.dev.tick >= f.signalAt)
}

func (f *mockFence) Wait(timeout time.Duration) error {
	if f.signaled {
		return nil
	}
	if !f.pending {
		f.dev.violate("wait on a fence that will never be signaled")
		return fmt.Errorf("%w: fence never submitted", core.ErrDeviceTimeout)
	}
	if f.dev.hang {
		if timeout > 0 {
			return fmt.Errorf("%w: fence not signaled after %s", core.ErrDeviceTimeout, timeout)
		}
		return errors.New("hung device waited without a timeout")
	}
	if f.signalAt > f.dev.tick {
		f.dev.blocked += f.signalAt - f.dev.tick
		f.dev.tick = f.signalAt
	}
	f.pending = false
	f.signaled = true
	return nil
}

func (f *mockFence) Reset() error {
	if f.pending && !f.done() {
		f.dev.violate("reset of a fence that is still in flight")
	}
	f.pending = false
	f.signaled = false
	return nil
}

func (f *mockFence) Destroy() {
	f.dev.release("fence", &f.destroyed)
}

type mockCommandBuffer struct {
	dev          *mockDevice
	slot         int
	recording    bool
	inPass       bool
	pendingFence *mockFence
	freed        bool

	passes    []metadata.RenderPassBegin
	viewports []metadata.Viewport
	scissors  []metadata.Rect2D
}

func (c *mockCommandBuffer) Begin() error {
	if c.pendingFence != nil && !c.pendingFence.done() {
		c.dev.violate("command buffer %d re-recorded while in flight", c.slot)
	}
	if c.recording {
		c.dev.violate("command buffer %d begun twice", c.slot)
	}
	c.recording = true
	return nil
}

func (c *mockCommandBuffer) End() error {
	if c.inPass {
		c.dev.violate("command buffer %d ended inside a render pass", c.slot)
	}
	c.recording = false
	return nil
}

func (c *mockCommandBuffer) BeginRenderPass(info metadata.RenderPassBegin) {
	if fb := info.Framebuffer.(*mockFramebuffer); fb.destroyed {
		c.dev.violate("render pass begun on a destroyed framebuffer")
	}
	c.inPass = true
	c.passes = append(c.passes, info)
}

func (c *mockCommandBuffer) EndRenderPass() {
	c.inPass = false
}

func (c *mockCommandBuffer) SetViewport(viewport metadata.Viewport) {
	c.viewports = append(c.viewports, viewport)
}

func (c *mockCommandBuffer) SetScissor(scissor metadata.Rect2D) {
	c.scissors = append(c.scissors, scissor)
}

func (c *mockCommandBuffer) Draw(vertexCount uint32) {
	if !c.inPass {
		c.dev.violate("command buffer %d drew outside a render pass", c.slot)
	}
}

// mockWindow reports a zero framebuffer while zeroPolls is positive; every
// WaitEvents call consumes one.
type mockWindow struct {
	extent     metadata.Extent2D
	zeroPolls  int
	zeroExtent metadata.Extent2D
	resized    bool
	resets     int
	waits      int
}

func newMockWindow(w, h uint32) *mockWindow {
	return &mockWindow{extent: metadata.Extent2D{Width: w, Height: h}}
}

func (w *mockWindow) FramebufferSize() metadata.Extent2D {
	if w.zeroPolls > 0 {
		return w.zeroExtent
	}
	return w.extent
}

func (w *mockWindow) ShouldClose() bool { return false }
func (w *mockWindow) WasResized() bool  { return w.resized }
func (w *mockWindow) PollEvents()       {}

func (w *mockWindow) ResetResized() {
	w.resized = false
	w.resets++
}

func (w *mockWindow) WaitEvents() {
	w.waits++
	if w.zeroPolls > 0 {
		w.zeroPolls--
	}
}
