package core

import (
	"errors"
)

var (
	// ErrFatal marks failures the engine cannot recover from: resource
	// creation, queue submission or presentation, device loss.
	ErrFatal = errors.New("fatal renderer failure")
	// ErrSurfaceStale is reported when the swapchain no longer matches the
	// surface. The renderer absorbs it by recreating the swapchain.
	ErrSurfaceStale = errors.New("swapchain out of date")
	// ErrProtocolViolation is returned for frame calls made out of order.
	ErrProtocolViolation = errors.New("frame protocol violation")

	ErrSwapchainFormatChanged = errors.New("swapchain image or depth format has changed")
	ErrDeviceTimeout          = errors.New("timed out waiting on the device")
	ErrDeviceLost             = errors.New("device lost")
	ErrInvalidConfig          = errors.New("invalid configuration")
	ErrUnknown                = errors.New("unknown")
)
