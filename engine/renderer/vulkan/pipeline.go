package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

// VulkanPipeline holds a graphics pipeline and its layout.
type VulkanPipeline struct {
	Handle           vk.Pipeline
	PipelineLayout   vk.PipelineLayout
	pushConstantSize uint32

	context *VulkanContext
}

var pushConstantStages = vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit)

// vertexAttributes mirrors metadata.Vertex: position, color, normal, uv.
func vertexAttributes() []vk.VertexInputAttributeDescription {
	formats := []vk.Format{vk.FormatR32g32b32Sfloat, vk.FormatR32g32b32Sfloat, vk.FormatR32g32b32Sfloat, vk.FormatR32g32Sfloat}
	sizes := []uint32{12, 12, 12, 8}

	out := make([]vk.VertexInputAttributeDescription, len(formats))
	var offset uint32
	for i := range formats {
		out[i] = vk.VertexInputAttributeDescription{
			Location: uint32(i),
			Binding:  0,
			Format:   formats[i],
			Offset:   offset,
		}
		offset += sizes[i]
	}
	return out
}

func (vc *VulkanContext) CreatePipeline(cfg metadata.PipelineConfig) (metadata.Pipeline, error) {
	if cfg.PushConstantSize > maxPushConstantSize || cfg.PushConstantSize%4 != 0 {
		return nil, fmt.Errorf("%w: push constant size %d must be a multiple of 4 no larger than %d", core.ErrInvalidConfig, cfg.PushConstantSize, maxPushConstantSize)
	}

	vert, err := vc.newShaderStage(cfg.VertexShader, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, err
	}
	defer vert.destroy(vc)
	frag, err := vc.newShaderStage(cfg.FragmentShader, vk.ShaderStageFragmentBit)
	if err != nil {
		return nil, err
	}
	defer frag.destroy(vc)

	pipeline := &VulkanPipeline{pushConstantSize: cfg.PushConstantSize, context: vc}

	// Viewport and scissor are dynamic; only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(vk.CullModeNone),
		FrontFace:               vk.FrontFaceClockwise,
		DepthBiasEnable:         vk.False,
	}
	if cfg.Wireframe {
		rasterizer.PolygonMode = vk.PolygonModeLine
	}
	if cfg.CullBackFaces {
		rasterizer.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
	}

	multisampling := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:             vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:   vk.False,
		DepthWriteEnable:  vk.False,
		StencilTestEnable: vk.False,
		MaxDepthBounds:    1.0,
	}
	if cfg.DepthTest {
		depthStencil.DepthTestEnable = vk.True
		depthStencil.DepthWriteEnable = vk.True
		depthStencil.DepthCompareOp = vk.CompareOpLess
	}

	colorBlendAttachment := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachment},
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}
	if !cfg.NoVertexInput {
		attributes := vertexAttributes()
		vertexInput.VertexBindingDescriptionCount = 1
		vertexInput.PVertexBindingDescriptions = []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    metadata.VertexStride,
			InputRate: vk.VertexInputRateVertex,
		}}
		vertexInput.VertexAttributeDescriptionCount = uint32(len(attributes))
		vertexInput.PVertexAttributeDescriptions = attributes
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo,
	}
	if len(cfg.SetLayouts) > 0 {
		layouts := make([]vk.DescriptorSetLayout, len(cfg.SetLayouts))
		for i, l := range cfg.SetLayouts {
			layouts[i] = l.(*VulkanDescriptorSetLayout).Handle
		}
		layoutInfo.SetLayoutCount = uint32(len(layouts))
		layoutInfo.PSetLayouts = layouts
	}
	if cfg.PushConstantSize > 0 {
		layoutInfo.PushConstantRangeCount = 1
		layoutInfo.PPushConstantRanges = []vk.PushConstantRange{{
			StageFlags: pushConstantStages,
			Offset:     0,
			Size:       cfg.PushConstantSize,
		}}
	}

	err = vc.locks.SafeCall(PipelineManagement, func() error {
		var layout vk.PipelineLayout
		if err := resultError(vk.CreatePipelineLayout(vc.Device.LogicalDevice, &layoutInfo, vc.Allocator, &layout), "vkCreatePipelineLayout"); err != nil {
			return err
		}
		pipeline.PipelineLayout = layout

		createInfo := vk.GraphicsPipelineCreateInfo{
			SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
			StageCount:          2,
			PStages:             []vk.PipelineShaderStageCreateInfo{vert.ShaderStageCreateInfo, frag.ShaderStageCreateInfo},
			PVertexInputState:   &vertexInput,
			PInputAssemblyState: &inputAssembly,
			PViewportState:      &viewportState,
			PRasterizationState: &rasterizer,
			PMultisampleState:   &multisampling,
			PDepthStencilState:  &depthStencil,
			PColorBlendState:    &colorBlend,
			PDynamicState:       &dynamicState,
			Layout:              layout,
			RenderPass:          cfg.RenderPass.(*VulkanRenderPass).Handle,
			Subpass:             0,
			BasePipelineHandle:  vk.NullPipeline,
			BasePipelineIndex:   -1,
		}
		pipelines := make([]vk.Pipeline, 1)
		if err := resultError(vk.CreateGraphicsPipelines(vc.Device.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{createInfo}, vc.Allocator, pipelines), "vkCreateGraphicsPipelines"); err != nil {
			return err
		}
		pipeline.Handle = pipelines[0]
		return nil
	})
	if err != nil {
		pipeline.Destroy()
		return nil, err
	}

	core.LogDebug("Graphics pipeline created.")
	return pipeline, nil
}

func (p *VulkanPipeline) Bind(cb metadata.CommandBuffer) {
	vk.CmdBindPipeline(cb.(*VulkanCommandBuffer).Handle, vk.PipelineBindPointGraphics, p.Handle)
}

func (p *VulkanPipeline) BindDescriptorSet(cb metadata.CommandBuffer, set metadata.DescriptorSet) {
	vk.CmdBindDescriptorSets(cb.(*VulkanCommandBuffer).Handle, vk.PipelineBindPointGraphics, p.PipelineLayout,
		0, 1, []vk.DescriptorSet{set.(*VulkanDescriptorSet).Handle}, 0, nil)
}

// PushConstants writes data at offset zero, truncated to the range the
// layout declared.
func (p *VulkanPipeline) PushConstants(cb metadata.CommandBuffer, data []float32) {
	size := uint32(len(data) * 4)
	if size > p.pushConstantSize {
		size = p.pushConstantSize
	}
	if size == 0 {
		return
	}
	vk.CmdPushConstants(cb.(*VulkanCommandBuffer).Handle, p.PipelineLayout, pushConstantStages, 0, size, unsafe.Pointer(&data[0]))
}

func (p *VulkanPipeline) Destroy() {
	_ = p.context.locks.SafeCall(PipelineManagement, func() error {
		if p.Handle != nil {
			vk.DestroyPipeline(p.context.Device.LogicalDevice, p.Handle, p.context.Allocator)
			p.Handle = nil
		}
		if p.PipelineLayout != nil {
			vk.DestroyPipelineLayout(p.context.Device.LogicalDevice, p.PipelineLayout, p.context.Allocator)
			p.PipelineLayout = nil
		}
		return nil
	})
}
