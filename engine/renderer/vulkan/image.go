package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

type VulkanImageView struct {
	Handle vk.ImageView

	context *VulkanContext
}

func (v *VulkanImageView) Destroy() {
	if v.Handle != nil {
		vk.DestroyImageView(v.context.Device.LogicalDevice, v.Handle, v.context.Allocator)
		v.Handle = nil
	}
}

// VulkanImage is a device local image that owns its memory and view.
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	Width  uint32
	Height uint32

	view    *VulkanImageView
	context *VulkanContext
}

func (vi *VulkanImage) View() metadata.ImageView {
	return vi.view
}

func (vi *VulkanImage) Destroy() {
	if vi.view != nil {
		vi.view.Destroy()
		vi.view = nil
	}
	device := vi.context.Device.LogicalDevice
	if vi.Memory != nil {
		vk.FreeMemory(device, vi.Memory, vi.context.Allocator)
		vi.Memory = nil
	}
	if vi.Handle != nil {
		vk.DestroyImage(device, vi.Handle, vi.context.Allocator)
		vi.Handle = nil
	}
}

// CreateImageView wraps a swapchain image in a color view.
func (vc *VulkanContext) CreateImageView(image metadata.Image, format metadata.Format) (metadata.ImageView, error) {
	return vc.createImageView(image.(vk.Image), vk.Format(format), vk.ImageAspectFlags(vk.ImageAspectColorBit))
}

func (vc *VulkanContext) createImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (*VulkanImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var handle vk.ImageView
	if err := resultError(vk.CreateImageView(vc.Device.LogicalDevice, &viewInfo, vc.Allocator, &handle), "vkCreateImageView"); err != nil {
		return nil, err
	}
	return &VulkanImageView{Handle: handle, context: vc}, nil
}

// CreateDepthImage allocates an optimally tiled depth attachment with its
// own device local memory and view.
func (vc *VulkanContext) CreateDepthImage(extent metadata.Extent2D, format metadata.Format) (metadata.DepthImage, error) {
	img := &VulkanImage{Width: extent.Width, Height: extent.Height, context: vc}

	imageInfo := vk.ImageCreateInfo{}
	imageInfo.SType = vk.StructureTypeImageCreateInfo
	imageInfo.ImageType = vk.ImageType2d
	imageInfo.Extent.Width = extent.Width
	imageInfo.Extent.Height = extent.Height
	imageInfo.Extent.Depth = 1
	imageInfo.MipLevels = 1
	imageInfo.ArrayLayers = 1
	imageInfo.Format = vk.Format(format)
	imageInfo.Tiling = vk.ImageTilingOptimal
	imageInfo.InitialLayout = vk.ImageLayoutUndefined
	imageInfo.Usage = vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	imageInfo.Samples = vk.SampleCount1Bit
	imageInfo.SharingMode = vk.SharingModeExclusive

	var handle vk.Image
	if err := resultError(vk.CreateImage(vc.Device.LogicalDevice, &imageInfo, vc.Allocator, &handle), "vkCreateImage"); err != nil {
		return nil, err
	}
	img.Handle = handle

	var memReqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(vc.Device.LogicalDevice, handle, &memReqs)
	memReqs.Deref()

	memoryType, err := vc.FindMemoryIndex(memReqs.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.Destroy()
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryType,
	}
	var memory vk.DeviceMemory
	if err := resultError(vk.AllocateMemory(vc.Device.LogicalDevice, &allocInfo, vc.Allocator, &memory), "vkAllocateMemory"); err != nil {
		img.Destroy()
		return nil, err
	}
	img.Memory = memory

	if err := resultError(vk.BindImageMemory(vc.Device.LogicalDevice, handle, memory, 0), "vkBindImageMemory"); err != nil {
		img.Destroy()
		return nil, err
	}

	aspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if format == metadata.FormatD32SfloatS8Uint || format == metadata.FormatD24UnormS8Uint {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	view, err := vc.createImageView(handle, vk.Format(format), aspect)
	if err != nil {
		img.Destroy()
		return nil, err
	}
	img.view = view

	core.LogDebug("Depth image created %dx%d (%s).", extent.Width, extent.Height, format)
	return img, nil
}
