package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/platform"
	"github.com/spaghettifunk/curen/engine/renderer"
)

var _ renderer.Backend = (*VulkanRenderer)(nil)

// VulkanRenderer brings up the instance, surface and device for a platform
// window and exposes them through the embedded context.
type VulkanRenderer struct {
	*VulkanContext

	platform *platform.Platform
	debug    bool
}

func New(p *platform.Platform, validation bool) *VulkanRenderer {
	return &VulkanRenderer{
		VulkanContext: &VulkanContext{
			Device: &VulkanDevice{},
			locks:  NewVulkanLockPool(),
		},
		platform: p,
		debug:    validation,
	}
}

func (vr *VulkanRenderer) Initialize(appName string) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return fmt.Errorf("%w: GetInstanceProcAddress is nil", core.ErrFatal)
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return fmt.Errorf("%w: failed to initialize vk: %w", core.ErrFatal, err)
	}

	if err := vr.createInstance(appName); err != nil {
		return err
	}

	if vr.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := resultError(vk.CreateDebugReportCallback(vr.Instance, &debugCreateInfo, nil, &dbg), "vkCreateDebugReportCallbackEXT"); err != nil {
			return err
		}
		vr.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.CreateSurface(vr.Instance)
	if err != nil {
		return fmt.Errorf("%w: vulkan surface creation failed: %w", core.ErrFatal, err)
	}
	vr.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	if err := vr.DeviceCreate(); err != nil {
		return fmt.Errorf("%w: failed to create device: %w", core.ErrFatal, err)
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString(engineName),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := vr.platform.RequiredExtensions()
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	if vr.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}
	core.LogDebug("Required extensions: %v", requiredExtensions)

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	if vr.debug {
		if err := validationLayerAvailable(); err != nil {
			return err
		}
		createInfo.EnabledLayerCount = 1
		createInfo.PpEnabledLayerNames = VulkanSafeStrings([]string{validationLayerName})
	}

	var instance vk.Instance
	if err := resultError(vk.CreateInstance(&createInfo, vr.Allocator, &instance), "vkCreateInstance"); err != nil {
		return fmt.Errorf("%w: %w", core.ErrFatal, err)
	}
	vr.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return fmt.Errorf("%w: %w", core.ErrFatal, err)
	}
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func validationLayerAvailable() error {
	core.LogInfo("Validation layers enabled. Enumerating...")

	var count uint32
	if err := resultError(vk.EnumerateInstanceLayerProperties(&count, nil), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	layers := make([]vk.LayerProperties, count)
	if err := resultError(vk.EnumerateInstanceLayerProperties(&count, layers), "vkEnumerateInstanceLayerProperties"); err != nil {
		return err
	}
	for i := range layers {
		layers[i].Deref()
		if cString(layers[i].LayerName[:]) == validationLayerName {
			core.LogInfo("All required validation layers are present.")
			return nil
		}
	}
	return fmt.Errorf("%w: required validation layer is missing: %s", core.ErrFatal, validationLayerName)
}

// Shutdown destroys the device level objects in reverse creation order.
// Swapchain resources must already be released by their owner.
func (vr *VulkanRenderer) Shutdown() error {
	if vr.Device.LogicalDevice != nil {
		if err := vr.WaitIdle(); err != nil {
			core.LogError("failed to wait for device idle: %s", err)
		}
	}

	vr.DeviceDestroy()

	if vr.Surface != vk.NullSurface {
		vk.DestroySurface(vr.Instance, vr.Surface, vr.Allocator)
		vr.Surface = vk.NullSurface
	}

	if vr.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vr.Instance, vr.debugMessenger, vr.Allocator)
		vr.debugMessenger = vk.NullDebugReportCallback
	}

	if vr.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(vr.Instance, vr.Allocator)
		vr.Instance = nil
	}
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
