package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

var (
	_ metadata.Device          = (*VulkanContext)(nil)
	_ metadata.ModelFactory    = (*VulkanContext)(nil)
	_ metadata.PipelineFactory = (*VulkanContext)(nil)
)

// VulkanContext owns the instance level handles and implements the device
// interface the swapchain manager and the frame loop are written against.
type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	locks *VulkanLockPool
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) (uint32, error) {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return i, nil
		}
	}
	err := fmt.Errorf("unable to find suitable memory type (filter %#x, flags %#x)", typeFilter, propertyFlags)
	core.LogWarn(err.Error())
	return 0, err
}

func (vc *VulkanContext) SurfaceSupport() (metadata.SwapchainSupport, error) {
	info, err := querySwapchainSupport(vc.Device.PhysicalDevice, vc.Surface)
	if err != nil {
		return metadata.SwapchainSupport{}, err
	}
	vc.Device.SwapchainSupport = info

	caps := info.Capabilities
	out := metadata.SwapchainSupport{
		Capabilities: metadata.SurfaceCapabilities{
			MinImageCount:  caps.MinImageCount,
			MaxImageCount:  caps.MaxImageCount,
			CurrentExtent:  metadata.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
			MinImageExtent: metadata.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
			MaxImageExtent: metadata.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
		},
		Formats:      make([]metadata.SurfaceFormat, 0, len(info.Formats)),
		PresentModes: make([]metadata.PresentMode, 0, len(info.PresentModes)),
	}
	for _, f := range info.Formats {
		out.Formats = append(out.Formats, metadata.SurfaceFormat{
			Format:     metadata.Format(f.Format),
			ColorSpace: metadata.ColorSpace(f.ColorSpace),
		})
	}
	for _, m := range info.PresentModes {
		out.PresentModes = append(out.PresentModes, metadata.PresentMode(m))
	}
	return out, nil
}

// Submit queues buffer on the graphics queue. Execution waits for wait at
// the color attachment output stage, then signals signal and fence.
func (vc *VulkanContext) Submit(buffer metadata.CommandBuffer, wait metadata.Semaphore, signal metadata.Semaphore, fence metadata.Fence) error {
	cb := buffer.(*VulkanCommandBuffer)
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{wait.(*VulkanSemaphore).Handle},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signal.(*VulkanSemaphore).Handle},
	}

	f := fence.(*VulkanFence)
	err := vc.locks.SafeQueueCall(vc.Device.GraphicsQueueIndex, func() error {
		return resultError(vk.QueueSubmit(vc.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, f.Handle), "vkQueueSubmit")
	})
	if err != nil {
		return err
	}
	cb.UpdateSubmitted()
	return nil
}

// Present hands the image back to the presentation engine once wait is
// signaled. Out of date and suboptimal come back as a status.
func (vc *VulkanContext) Present(swapchain metadata.Swapchain, imageIndex uint32, wait metadata.Semaphore) (metadata.Status, error) {
	sc := swapchain.(*VulkanSwapchain)
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.(*VulkanSemaphore).Handle},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{imageIndex},
	}

	var result vk.Result
	_ = vc.locks.SafeQueueCall(vc.Device.PresentQueueIndex, func() error {
		result = vk.QueuePresent(vc.Device.PresentQueue, &presentInfo)
		return nil
	})
	switch result {
	case vk.Success:
		return metadata.StatusSuccess, nil
	case vk.Suboptimal:
		return metadata.StatusSuboptimal, nil
	case vk.ErrorOutOfDate:
		return metadata.StatusOutOfDate, nil
	}
	return metadata.StatusSuccess, resultError(result, "vkQueuePresentKHR")
}

func (vc *VulkanContext) WaitIdle() error {
	return resultError(vk.DeviceWaitIdle(vc.Device.LogicalDevice), "vkDeviceWaitIdle")
}
