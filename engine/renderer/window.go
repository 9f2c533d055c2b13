package renderer

import "github.com/spaghettifunk/curen/engine/renderer/metadata"

// Window is the part of the platform window the frame loop depends on.
type Window interface {
	// FramebufferSize is the drawable size in pixels, zero while minimized.
	FramebufferSize() metadata.Extent2D
	ShouldClose() bool
	WasResized() bool
	ResetResized()
	PollEvents()
	// WaitEvents blocks until at least one event is available.
	WaitEvents()
}
