package metadata

import "time"

// Format values match VkFormat so backends can convert with a cast.
type Format int32

const (
	FormatUndefined       Format = 0
	FormatB8G8R8A8Unorm   Format = 44
	FormatB8G8R8A8Srgb    Format = 50
	FormatR8G8B8A8Unorm   Format = 37
	FormatR8G8B8A8Srgb    Format = 43
	FormatD32Sfloat       Format = 126
	FormatD24UnormS8Uint  Format = 129
	FormatD32SfloatS8Uint Format = 130
)

func (f Format) String() string {
	switch f {
	case FormatB8G8R8A8Unorm:
		return "B8G8R8A8_UNORM"
	case FormatB8G8R8A8Srgb:
		return "B8G8R8A8_SRGB"
	case FormatR8G8B8A8Unorm:
		return "R8G8B8A8_UNORM"
	case FormatR8G8B8A8Srgb:
		return "R8G8B8A8_SRGB"
	case FormatD32Sfloat:
		return "D32_SFLOAT"
	case FormatD24UnormS8Uint:
		return "D24_UNORM_S8_UINT"
	case FormatD32SfloatS8Uint:
		return "D32_SFLOAT_S8_UINT"
	case FormatUndefined:
		return "UNDEFINED"
	}
	return "UNKNOWN"
}

// ColorSpace values match VkColorSpaceKHR.
type ColorSpace int32

const ColorSpaceSrgbNonlinear ColorSpace = 0

// PresentMode values match VkPresentModeKHR.
type PresentMode int32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

func (p PresentMode) String() string {
	switch p {
	case PresentModeImmediate:
		return "IMMEDIATE"
	case PresentModeMailbox:
		return "MAILBOX"
	case PresentModeFifo:
		return "FIFO"
	case PresentModeFifoRelaxed:
		return "FIFO_RELAXED"
	}
	return "UNKNOWN"
}

// UndefinedExtent is the surface current-extent sentinel meaning the
// swapchain decides the size.
const UndefinedExtent uint32 = 0xFFFFFFFF

type Extent2D struct {
	Width  uint32
	Height uint32
}

func (e Extent2D) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type SurfaceCapabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

type SwapchainSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

// Status is the recoverable outcome of acquire and present. Fatal
// outcomes are returned as errors instead.
type Status int

const (
	StatusSuccess Status = iota
	StatusSuboptimal
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out of date"
	}
	return "unknown"
}

type SwapchainConfig struct {
	Format      SurfaceFormat
	PresentMode PresentMode
	Extent      Extent2D
	ImageCount  uint32
}

// Device is the slice of the GPU the swapchain and frame loop need.
type Device interface {
	SurfaceSupport() (SwapchainSupport, error)
	DepthFormatSupported(format Format) bool

	// CreateSwapchain builds a new chain. previous, when not nil, is handed
	// to the driver as the chain being replaced; it is not destroyed.
	CreateSwapchain(cfg SwapchainConfig, previous Swapchain) (Swapchain, error)
	CreateImageView(image Image, format Format) (ImageView, error)
	CreateDepthImage(extent Extent2D, format Format) (DepthImage, error)
	CreateRenderPass(color Format, depth Format) (RenderPass, error)
	CreateFramebuffer(pass RenderPass, attachments []ImageView, extent Extent2D) (Framebuffer, error)

	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)

	AllocateCommandBuffers(count int) ([]CommandBuffer, error)
	FreeCommandBuffers(buffers []CommandBuffer)

	Submit(buffer CommandBuffer, wait Semaphore, signal Semaphore, fence Fence) error
	Present(swapchain Swapchain, imageIndex uint32, wait Semaphore) (Status, error)
	WaitIdle() error
}

type Swapchain interface {
	Images() []Image
	AcquireNextImage(signal Semaphore) (uint32, Status, error)
	Destroy()
}

// Image is owned by whoever created it; swapchain images are never
// destroyed individually.
type Image interface{}

type ImageView interface {
	Destroy()
}

type DepthImage interface {
	View() ImageView
	Destroy()
}

type RenderPass interface {
	Destroy()
}

type Framebuffer interface {
	Destroy()
}

type Semaphore interface {
	Destroy()
}

// Fence.Wait with timeout zero blocks until signaled.
type Fence interface {
	Wait(timeout time.Duration) error
	Reset() error
	Destroy()
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type Rect2D struct {
	X, Y   int32
	Extent Extent2D
}

type ClearColor [4]float32

type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Area        Rect2D
	Color       ClearColor
	Depth       float32
	Stencil     uint32
}

type CommandBuffer interface {
	Begin() error
	End() error
	BeginRenderPass(info RenderPassBegin)
	EndRenderPass()
	SetViewport(viewport Viewport)
	SetScissor(scissor Rect2D)
	// Draw issues a non-indexed draw with whatever is bound.
	Draw(vertexCount uint32)
}

// Pipeline is consumed while recording inside a render pass.
type Pipeline interface {
	Bind(cb CommandBuffer)
	// BindDescriptorSet binds set at index 0 of the pipeline's layout.
	BindDescriptorSet(cb CommandBuffer, set DescriptorSet)
	PushConstants(cb CommandBuffer, data []float32)
	Destroy()
}

type Model interface {
	Bind(cb CommandBuffer)
	Draw(cb CommandBuffer)
	Destroy()
}
