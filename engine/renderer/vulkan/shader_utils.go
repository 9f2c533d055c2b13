package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

type VulkanShaderStage struct {
	Handle                vk.ShaderModule
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// newShaderStage builds a module from SPIR-V words and the stage info
// pointing at its main entry point.
func (vc *VulkanContext) newShaderStage(code []uint32, stage vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	if len(code) == 0 {
		return nil, fmt.Errorf("empty SPIR-V module for stage %d", stage)
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}

	var handle vk.ShaderModule
	if err := resultError(vk.CreateShaderModule(vc.Device.LogicalDevice, &createInfo, vc.Allocator, &handle), "vkCreateShaderModule"); err != nil {
		return nil, err
	}

	return &VulkanShaderStage{
		Handle: handle,
		ShaderStageCreateInfo: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stage,
			Module: handle,
			PName:  VulkanSafeString("main"),
		},
	}, nil
}

func (s *VulkanShaderStage) destroy(vc *VulkanContext) {
	if s.Handle != nil {
		vk.DestroyShaderModule(vc.Device.LogicalDevice, s.Handle, vc.Allocator)
		s.Handle = nil
	}
}
