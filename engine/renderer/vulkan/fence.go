package vulkan

import (
	"fmt"
	"math"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool

	context *VulkanContext
}

func (vc *VulkanContext) CreateFence(signaled bool) (metadata.Fence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: signaled,
		context:    vc,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var handle vk.Fence
	if err := resultError(vk.CreateFence(vc.Device.LogicalDevice, &fenceCreateInfo, vc.Allocator, &handle), "vkCreateFence"); err != nil {
		return nil, err
	}
	fence.Handle = handle
	return fence, nil
}

func (vf *VulkanFence) Destroy() {
	if vf.Handle != vk.NullFence {
		vk.DestroyFence(vf.context.Device.LogicalDevice, vf.Handle, vf.context.Allocator)
		vf.Handle = vk.NullFence
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence signals. A zero timeout waits forever.
func (vf *VulkanFence) Wait(timeout time.Duration) error {
	if vf.IsSignaled {
		// If already signaled, do not wait.
		return nil
	}
	ns := uint64(math.MaxUint64)
	if timeout > 0 {
		ns = uint64(timeout.Nanoseconds())
	}
	result := vk.WaitForFences(vf.context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, ns)
	if result == vk.Success {
		vf.IsSignaled = true
		return nil
	}
	if result == vk.Timeout {
		return fmt.Errorf("%w: fence not signaled after %s", core.ErrDeviceTimeout, timeout)
	}
	return resultError(result, "vkWaitForFences")
}

func (vf *VulkanFence) Reset() error {
	if !vf.IsSignaled {
		return nil
	}
	if err := resultError(vk.ResetFences(vf.context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}), "vkResetFences"); err != nil {
		return err
	}
	vf.IsSignaled = false
	return nil
}

type VulkanSemaphore struct {
	Handle vk.Semaphore

	context *VulkanContext
}

func (vc *VulkanContext) CreateSemaphore() (metadata.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var handle vk.Semaphore
	if err := resultError(vk.CreateSemaphore(vc.Device.LogicalDevice, &info, vc.Allocator, &handle), "vkCreateSemaphore"); err != nil {
		return nil, err
	}
	return &VulkanSemaphore{Handle: handle, context: vc}, nil
}

func (vs *VulkanSemaphore) Destroy() {
	if vs.Handle != nil {
		vk.DestroySemaphore(vs.context.Device.LogicalDevice, vs.Handle, vs.context.Allocator)
		vs.Handle = nil
	}
}
