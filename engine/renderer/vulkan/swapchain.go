package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

type VulkanSwapchain struct {
	Handle     vk.Swapchain
	Format     vk.SurfaceFormat
	Extent     vk.Extent2D
	ImageCount uint32
	images     []vk.Image

	context *VulkanContext
}

// CreateSwapchain creates a chain for the surface using the choices made by
// the swapchain manager. previous is passed as the old swapchain so the
// driver can recycle its resources; the caller still destroys it.
func (vc *VulkanContext) CreateSwapchain(cfg metadata.SwapchainConfig, previous metadata.Swapchain) (metadata.Swapchain, error) {
	sc := &VulkanSwapchain{
		Format: vk.SurfaceFormat{
			Format:     vk.Format(cfg.Format.Format),
			ColorSpace: vk.ColorSpace(cfg.Format.ColorSpace),
		},
		Extent:  vk.Extent2D{Width: cfg.Extent.Width, Height: cfg.Extent.Height},
		context: vc,
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          vc.Surface,
		MinImageCount:    cfg.ImageCount,
		ImageFormat:      sc.Format.Format,
		ImageColorSpace:  sc.Format.ColorSpace,
		ImageExtent:      sc.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     vc.Device.SwapchainSupport.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentMode(cfg.PresentMode),
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	if previous != nil {
		createInfo.OldSwapchain = previous.(*VulkanSwapchain).Handle
	}

	if vc.Device.GraphicsQueueIndex != vc.Device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{vc.Device.GraphicsQueueIndex, vc.Device.PresentQueueIndex}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	err := vc.locks.SafeCall(SwapchainManagement, func() error {
		return resultError(vk.CreateSwapchain(vc.Device.LogicalDevice, &createInfo, vc.Allocator, &handle), "vkCreateSwapchainKHR")
	})
	if err != nil {
		return nil, err
	}
	sc.Handle = handle

	if err := resultError(vk.GetSwapchainImages(vc.Device.LogicalDevice, handle, &sc.ImageCount, nil), "vkGetSwapchainImagesKHR"); err != nil {
		sc.Destroy()
		return nil, err
	}
	sc.images = make([]vk.Image, sc.ImageCount)
	if err := resultError(vk.GetSwapchainImages(vc.Device.LogicalDevice, handle, &sc.ImageCount, sc.images), "vkGetSwapchainImagesKHR"); err != nil {
		sc.Destroy()
		return nil, err
	}

	core.LogDebug("Swapchain created with %d images.", sc.ImageCount)
	return sc, nil
}

// Images are owned by the swapchain and destroyed with it.
func (vs *VulkanSwapchain) Images() []metadata.Image {
	out := make([]metadata.Image, len(vs.images))
	for i, img := range vs.images {
		out[i] = img
	}
	return out
}

func (vs *VulkanSwapchain) AcquireNextImage(signal metadata.Semaphore) (uint32, metadata.Status, error) {
	var idx uint32
	result := vk.AcquireNextImage(vs.context.Device.LogicalDevice, vs.Handle, math.MaxUint64,
		signal.(*VulkanSemaphore).Handle, vk.NullFence, &idx)
	switch result {
	case vk.Success:
		return idx, metadata.StatusSuccess, nil
	case vk.Suboptimal:
		return idx, metadata.StatusSuboptimal, nil
	case vk.ErrorOutOfDate:
		return 0, metadata.StatusOutOfDate, nil
	}
	return 0, metadata.StatusSuccess, resultError(result, "vkAcquireNextImageKHR")
}

func (vs *VulkanSwapchain) Destroy() {
	if vs.Handle == vk.NullSwapchain {
		return
	}
	_ = vs.context.locks.SafeCall(SwapchainManagement, func() error {
		vk.DestroySwapchain(vs.context.Device.LogicalDevice, vs.Handle, vs.context.Allocator)
		return nil
	})
	vs.Handle = vk.NullSwapchain
	vs.images = nil
}
