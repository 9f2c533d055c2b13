package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

type VulkanRenderPass struct {
	Handle      vk.RenderPass
	ColorFormat vk.Format
	DepthFormat vk.Format

	context *VulkanContext
}

// CreateRenderPass builds the single subpass pass used for on-screen
// rendering: a cleared color attachment that ends up presentable and a
// cleared depth attachment whose contents are discarded.
func (vc *VulkanContext) CreateRenderPass(color metadata.Format, depth metadata.Format) (metadata.RenderPass, error) {
	attachments := []vk.AttachmentDescription{
		{
			Format:         vk.Format(color),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutPresentSrc,
		},
		{
			Format:         vk.Format(depth),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	colorRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	depthRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       colorRef,
		PDepthStencilAttachment: &depthRef,
	}

	// Wait for the previous use of both attachments before writing them.
	stages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit) | vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		SrcAccessMask: 0,
		DstStageMask:  stages,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit) | vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var handle vk.RenderPass
	if err := resultError(vk.CreateRenderPass(vc.Device.LogicalDevice, &createInfo, vc.Allocator, &handle), "vkCreateRenderPass"); err != nil {
		return nil, err
	}
	core.LogDebug("Render pass created (%s, %s).", color, depth)
	return &VulkanRenderPass{
		Handle:      handle,
		ColorFormat: vk.Format(color),
		DepthFormat: vk.Format(depth),
		context:     vc,
	}, nil
}

func (vr *VulkanRenderPass) Destroy() {
	if vr.Handle != nil {
		vk.DestroyRenderPass(vr.context.Device.LogicalDevice, vr.Handle, vr.context.Allocator)
		vr.Handle = nil
	}
}
