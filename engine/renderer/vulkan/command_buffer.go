package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

type VulkanCommandBufferState int

const (
	CommandBufferStateReady VulkanCommandBufferState = iota
	CommandBufferStateRecording
	CommandBufferStateInRenderPass
	CommandBufferStateRecordingEnded
	CommandBufferStateSubmitted
	CommandBufferStateNotAllocated
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	State  VulkanCommandBufferState

	singleUse bool
}

func (vc *VulkanContext) AllocateCommandBuffers(count int) ([]metadata.CommandBuffer, error) {
	handles, err := vc.allocateCommandBuffers(vc.Device.GraphicsCommandPool, count, true)
	if err != nil {
		return nil, err
	}
	out := make([]metadata.CommandBuffer, count)
	for i, h := range handles {
		out[i] = &VulkanCommandBuffer{Handle: h, State: CommandBufferStateReady}
	}
	return out, nil
}

func (vc *VulkanContext) FreeCommandBuffers(buffers []metadata.CommandBuffer) {
	handles := make([]vk.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		cb := b.(*VulkanCommandBuffer)
		if cb.Handle == nil {
			continue
		}
		handles = append(handles, cb.Handle)
		cb.Handle = nil
		cb.State = CommandBufferStateNotAllocated
	}
	if len(handles) == 0 {
		return
	}
	_ = vc.locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(vc.Device.LogicalDevice, vc.Device.GraphicsCommandPool, uint32(len(handles)), handles)
		return nil
	})
}

func (vc *VulkanContext) allocateCommandBuffers(pool vk.CommandPool, count int, primary bool) ([]vk.CommandBuffer, error) {
	level := vk.CommandBufferLevelSecondary
	if primary {
		level = vk.CommandBufferLevelPrimary
	}
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: uint32(count),
		Level:              level,
	}

	handles := make([]vk.CommandBuffer, count)
	err := vc.locks.SafeCall(CommandBufferManagement, func() error {
		return resultError(vk.AllocateCommandBuffers(vc.Device.LogicalDevice, &allocateInfo, handles), "vkAllocateCommandBuffers")
	})
	if err != nil {
		return nil, err
	}
	return handles, nil
}

func (v *VulkanCommandBuffer) Begin() error {
	flags := vk.CommandBufferUsageFlags(0)
	if v.singleUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	}
	if err := resultError(vk.BeginCommandBuffer(v.Handle, &beginInfo), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	v.State = CommandBufferStateRecording
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := resultError(vk.EndCommandBuffer(v.Handle), "vkEndCommandBuffer"); err != nil {
		return err
	}
	v.State = CommandBufferStateRecordingEnded
	return nil
}

func (v *VulkanCommandBuffer) BeginRenderPass(info metadata.RenderPassBegin) {
	var color, depth vk.ClearValue
	color.SetColor(info.Color[:])
	depth.SetDepthStencil(info.Depth, info.Stencil)

	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  info.RenderPass.(*VulkanRenderPass).Handle,
		Framebuffer: info.Framebuffer.(*VulkanFramebuffer).Handle,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: info.Area.X, Y: info.Area.Y},
			Extent: vk.Extent2D{Width: info.Area.Extent.Width, Height: info.Area.Extent.Height},
		},
		ClearValueCount: 2,
		PClearValues:    []vk.ClearValue{color, depth},
	}
	vk.CmdBeginRenderPass(v.Handle, &beginInfo, vk.SubpassContentsInline)
	v.State = CommandBufferStateInRenderPass
}

func (v *VulkanCommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(v.Handle)
	v.State = CommandBufferStateRecording
}

func (v *VulkanCommandBuffer) SetViewport(viewport metadata.Viewport) {
	vk.CmdSetViewport(v.Handle, 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

func (v *VulkanCommandBuffer) SetScissor(scissor metadata.Rect2D) {
	vk.CmdSetScissor(v.Handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: scissor.X, Y: scissor.Y},
		Extent: vk.Extent2D{Width: scissor.Extent.Width, Height: scissor.Extent.Height},
	}})
}

func (v *VulkanCommandBuffer) Draw(vertexCount uint32) {
	vk.CmdDraw(v.Handle, vertexCount, 1, 0, 0)
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = CommandBufferStateSubmitted
}

// AllocateAndBeginSingleUse allocates a primary buffer from pool and begins
// recording with the one-time-submit flag.
func (vc *VulkanContext) AllocateAndBeginSingleUse(pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	handles, err := vc.allocateCommandBuffers(pool, 1, true)
	if err != nil {
		return nil, err
	}
	cb := &VulkanCommandBuffer{Handle: handles[0], State: CommandBufferStateReady, singleUse: true}
	if err := cb.Begin(); err != nil {
		vc.freeSingleUse(pool, cb)
		return nil, err
	}
	return cb, nil
}

// EndSingleUse ends recording, submits to queue, waits for the queue to
// drain and frees the buffer.
func (vc *VulkanContext) EndSingleUse(cb *VulkanCommandBuffer, pool vk.CommandPool, queue vk.Queue, queueIndex uint32) error {
	defer vc.freeSingleUse(pool, cb)

	if err := cb.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}
	err := vc.locks.SafeQueueCall(queueIndex, func() error {
		if err := resultError(vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, vk.NullFence), "vkQueueSubmit"); err != nil {
			return err
		}
		return resultError(vk.QueueWaitIdle(queue), "vkQueueWaitIdle")
	})
	if err != nil {
		return fmt.Errorf("single use command buffer: %w", err)
	}
	cb.UpdateSubmitted()
	return nil
}

func (vc *VulkanContext) freeSingleUse(pool vk.CommandPool, cb *VulkanCommandBuffer) {
	if cb.Handle == nil {
		return
	}
	_ = vc.locks.SafeCall(CommandBufferManagement, func() error {
		vk.FreeCommandBuffers(vc.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{cb.Handle})
		return nil
	})
	cb.Handle = nil
	cb.State = CommandBufferStateNotAllocated
	core.LogDebug("Single use command buffer freed.")
}
