package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	RenderPass  *VulkanRenderPass

	context *VulkanContext
}

func (vc *VulkanContext) CreateFramebuffer(pass metadata.RenderPass, attachments []metadata.ImageView, extent metadata.Extent2D) (metadata.Framebuffer, error) {
	rp := pass.(*VulkanRenderPass)
	fb := &VulkanFramebuffer{
		Attachments: make([]vk.ImageView, len(attachments)),
		RenderPass:  rp,
		context:     vc,
	}
	for i, a := range attachments {
		fb.Attachments[i] = a.(*VulkanImageView).Handle
	}

	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.Handle,
		AttachmentCount: uint32(len(fb.Attachments)),
		PAttachments:    fb.Attachments,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}

	var handle vk.Framebuffer
	if err := resultError(vk.CreateFramebuffer(vc.Device.LogicalDevice, &createInfo, vc.Allocator, &handle), "vkCreateFramebuffer"); err != nil {
		return nil, err
	}
	fb.Handle = handle
	return fb, nil
}

func (vfb *VulkanFramebuffer) Destroy() {
	if vfb.Handle != nil {
		vk.DestroyFramebuffer(vfb.context.Device.LogicalDevice, vfb.Handle, vfb.context.Allocator)
		vfb.Handle = nil
	}
	vfb.Attachments = nil
	vfb.RenderPass = nil
}
