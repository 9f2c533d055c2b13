package metadata

import "github.com/go-gl/mathgl/mgl32"

type Camera interface {
	Projection() mgl32.Mat4
	View() mgl32.Mat4
}

// FrameInfo is what systems get while the swapchain render pass is open.
type FrameInfo struct {
	FrameIndex    int
	FrameTime     float32
	CommandBuffer CommandBuffer
	Camera        Camera
	// GlobalSet points at the uniform buffer of this frame slot.
	GlobalSet DescriptorSet
}
