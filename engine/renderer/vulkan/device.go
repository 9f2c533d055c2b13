package vulkan

import (
	"fmt"
	"runtime"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

const portabilitySubsetExtension = "VK_KHR_portability_subset"

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32
	TransferQueueIndex uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	TransferQueue vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties
}

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	Transfer             bool
	DeviceExtensionNames []string
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
	TransferFamilyIndex int32
}

func (vc *VulkanContext) DeviceCreate() error {
	if err := vc.selectPhysicalDevice(); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	indices := []uint32{vc.Device.GraphicsQueueIndex}
	if vc.Device.PresentQueueIndex != vc.Device.GraphicsQueueIndex {
		indices = append(indices, vc.Device.PresentQueueIndex)
	}
	if vc.Device.TransferQueueIndex != vc.Device.GraphicsQueueIndex && vc.Device.TransferQueueIndex != vc.Device.PresentQueueIndex {
		indices = append(indices, vc.Device.TransferQueueIndex)
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, idx := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: idx,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
		vc.locks.SetQueueFamily(idx)
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if vc.Device.Features.FillModeNonSolid == vk.True {
		// wireframe pipelines
		deviceFeatures.FillModeNonSolid = vk.True
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	available, err := deviceExtensions(vc.Device.PhysicalDevice)
	if err != nil {
		return err
	}
	if _, ok := available[portabilitySubsetExtension]; ok {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtension)
		extensionNames = append(extensionNames, portabilitySubsetExtension)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	var device vk.Device
	if err := resultError(vk.CreateDevice(vc.Device.PhysicalDevice, &deviceCreateInfo, vc.Allocator, &device), "vkCreateDevice"); err != nil {
		return err
	}
	vc.Device.LogicalDevice = device
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(device, vc.Device.GraphicsQueueIndex, 0, &queue)
	vc.Device.GraphicsQueue = queue
	vk.GetDeviceQueue(device, vc.Device.PresentQueueIndex, 0, &queue)
	vc.Device.PresentQueue = queue
	vk.GetDeviceQueue(device, vc.Device.TransferQueueIndex, 0, &queue)
	vc.Device.TransferQueue = queue
	core.LogInfo("Queues obtained.")

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: vc.Device.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := resultError(vk.CreateCommandPool(device, &poolCreateInfo, vc.Allocator, &pool), "vkCreateCommandPool"); err != nil {
		return err
	}
	vc.Device.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	return nil
}

func (vc *VulkanContext) DeviceDestroy() {
	if vc.Device == nil {
		return
	}
	vc.Device.GraphicsQueue = nil
	vc.Device.PresentQueue = nil
	vc.Device.TransferQueue = nil

	if vc.Device.LogicalDevice != nil {
		core.LogInfo("Destroying command pools...")
		vk.DestroyCommandPool(vc.Device.LogicalDevice, vc.Device.GraphicsCommandPool, vc.Allocator)

		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(vc.Device.LogicalDevice, vc.Allocator)
		vc.Device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	vc.Device.PhysicalDevice = nil
	vc.Device.SwapchainSupport = VulkanSwapchainSupportInfo{}
}

// DepthFormatSupported reports whether format can back an optimally tiled
// depth attachment.
func (vc *VulkanContext) DepthFormatSupported(format metadata.Format) bool {
	var properties vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(vc.Device.PhysicalDevice, vk.Format(format), &properties)
	properties.Deref()
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	return properties.OptimalTilingFeatures&flags == flags
}

func querySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface) (VulkanSwapchainSupportInfo, error) {
	info := VulkanSwapchainSupportInfo{}

	if err := resultError(vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &info.Capabilities), "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"); err != nil {
		return info, err
	}
	info.Capabilities.Deref()
	info.Capabilities.CurrentExtent.Deref()
	info.Capabilities.MinImageExtent.Deref()
	info.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if err := resultError(vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return info, err
	}
	if formatCount != 0 {
		info.Formats = make([]vk.SurfaceFormat, formatCount)
		if err := resultError(vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, info.Formats), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
			return info, err
		}
		for i := range info.Formats {
			info.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if err := resultError(vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, nil), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		return info, err
	}
	if modeCount != 0 {
		info.PresentModes = make([]vk.PresentMode, modeCount)
		if err := resultError(vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, info.PresentModes), "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
			return info, err
		}
	}
	return info, nil
}

func deviceExtensions(device vk.PhysicalDevice) (map[string]struct{}, error) {
	var count uint32
	if err := resultError(vk.EnumerateDeviceExtensionProperties(device, "", &count, nil), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, count)
	if count == 0 {
		return out, nil
	}
	props := make([]vk.ExtensionProperties, count)
	if err := resultError(vk.EnumerateDeviceExtensionProperties(device, "", &count, props), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return nil, err
	}
	for i := range props {
		props[i].Deref()
		out[cString(props[i].ExtensionName[:])] = struct{}{}
	}
	return out, nil
}

func (vc *VulkanContext) selectPhysicalDevice() error {
	var physicalDeviceCount uint32
	if err := resultError(vk.EnumeratePhysicalDevices(vc.Instance, &physicalDeviceCount, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if physicalDeviceCount == 0 {
		return fmt.Errorf("%w: no devices which support Vulkan were found", core.ErrFatal)
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if err := resultError(vk.EnumeratePhysicalDevices(vc.Instance, &physicalDeviceCount, physicalDevices), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		Transfer:             true,
		DiscreteGPU:          runtime.GOOS != "darwin",
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
	}

	// Prefer a discrete GPU, fall back to anything that can present.
	for _, discrete := range []bool{requirements.DiscreteGPU, false} {
		requirements.DiscreteGPU = discrete
		for _, pd := range physicalDevices {
			if vc.tryPhysicalDevice(pd, &requirements) {
				core.LogInfo("Physical device selected.")
				return nil
			}
		}
	}

	err := fmt.Errorf("%w: no physical devices were found which meet the requirements", core.ErrFatal)
	core.LogError(err.Error())
	return err
}

func (vc *VulkanContext) tryPhysicalDevice(pd vk.PhysicalDevice, requirements *VulkanPhysicalDeviceRequirements) bool {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &properties)
	properties.Deref()

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &features)
	features.Deref()

	var memory vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(pd, &memory)
	memory.Deref()

	queueInfo, ok := physicalDeviceMeetsRequirements(pd, vc.Surface, &properties, requirements)
	if !ok {
		return false
	}

	name := cString(properties.DeviceName[:])
	core.LogInfo("Selected device: '%s'.", name)
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}

	core.LogInfo("GPU Driver version: %d.%d.%d",
		vk.Version(properties.DriverVersion).Major(),
		vk.Version(properties.DriverVersion).Minor(),
		vk.Version(properties.DriverVersion).Patch())
	core.LogInfo("Vulkan API version: %d.%d.%d",
		vk.Version(properties.ApiVersion).Major(),
		vk.Version(properties.ApiVersion).Minor(),
		vk.Version(properties.ApiVersion).Patch())

	for j := uint32(0); j < memory.MemoryHeapCount; j++ {
		heap := memory.MemoryHeaps[j]
		heap.Deref()
		sizeGib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlags(heap.Flags)&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", sizeGib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", sizeGib)
		}
	}

	vc.Device.PhysicalDevice = pd
	vc.Device.GraphicsQueueIndex = uint32(queueInfo.GraphicsFamilyIndex)
	vc.Device.PresentQueueIndex = uint32(queueInfo.PresentFamilyIndex)
	vc.Device.TransferQueueIndex = uint32(queueInfo.TransferFamilyIndex)
	vc.Device.Properties = properties
	vc.Device.Features = features
	vc.Device.Memory = memory
	return true
}

func physicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, requirements *VulkanPhysicalDeviceRequirements) (VulkanPhysicalDeviceQueueFamilyInfo, bool) {
	info := VulkanPhysicalDeviceQueueFamilyInfo{
		GraphicsFamilyIndex: -1,
		PresentFamilyIndex:  -1,
		TransferFamilyIndex: -1,
	}
	name := cString(properties.DeviceName[:])

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device '%s' is not a discrete GPU, and one is required. Skipping.", name)
		return info, false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	minTransferScore := 255
	for i := range queueFamilies {
		queueFamilies[i].Deref()
		flags := queueFamilies[i].QueueFlags
		transferScore := 0

		if flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			if info.GraphicsFamilyIndex < 0 {
				info.GraphicsFamilyIndex = int32(i)
			}
			transferScore++
		}
		if flags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			transferScore++
		}
		// The lowest score is the most likely dedicated transfer queue.
		if flags&vk.QueueFlags(vk.QueueTransferBit) != 0 && transferScore <= minTransferScore {
			minTransferScore = transferScore
			info.TransferFamilyIndex = int32(i)
		}

		var supportsPresent vk.Bool32
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
			return info, false
		}
		// Prefer presenting from the graphics family.
		if supportsPresent == vk.True && (info.PresentFamilyIndex < 0 || int32(i) == info.GraphicsFamilyIndex) {
			info.PresentFamilyIndex = int32(i)
		}
	}

	core.LogDebug("%s: graphics %d | present %d | transfer %d", name,
		info.GraphicsFamilyIndex, info.PresentFamilyIndex, info.TransferFamilyIndex)

	if (requirements.Graphics && info.GraphicsFamilyIndex < 0) ||
		(requirements.Present && info.PresentFamilyIndex < 0) ||
		(requirements.Transfer && info.TransferFamilyIndex < 0) {
		return info, false
	}

	support, err := querySwapchainSupport(device, surface)
	if err != nil || len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return info, false
	}

	available, err := deviceExtensions(device)
	if err != nil {
		return info, false
	}
	for _, ext := range requirements.DeviceExtensionNames {
		if _, ok := available[ext]; !ok {
			core.LogInfo("Required extension not found: '%s', skipping device.", ext)
			return info, false
		}
	}
	return info, true
}
