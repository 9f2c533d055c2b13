package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

// VulkanModel is geometry uploaded to device local vertex and index
// buffers. Models without indices draw their vertices in order.
type VulkanModel struct {
	Name              string
	VertexCount       uint32
	VertexElementSize uint32
	IndexCount        uint32
	IndexElementSize  uint32

	vertices *VulkanBuffer
	indices  *VulkanBuffer
}

func (vc *VulkanContext) CreateModel(data *metadata.ModelData) (metadata.Model, error) {
	if len(data.Vertices) < 3 {
		return nil, fmt.Errorf("%w: model %q needs at least 3 vertices, got %d", core.ErrInvalidConfig, data.Name, len(data.Vertices))
	}

	model := &VulkanModel{
		Name:              data.Name,
		VertexCount:       uint32(len(data.Vertices)),
		VertexElementSize: metadata.VertexStride,
		IndexCount:        uint32(len(data.Indices)),
		IndexElementSize:  4,
	}

	vertices, err := vc.uploadBuffer(float32Bytes(data.VertexData()), vk.BufferUsageVertexBufferBit)
	if err != nil {
		return nil, fmt.Errorf("model %q vertex buffer: %w", data.Name, err)
	}
	model.vertices = vertices

	if model.IndexCount > 0 {
		indices, err := vc.uploadBuffer(uint32Bytes(data.Indices), vk.BufferUsageIndexBufferBit)
		if err != nil {
			model.Destroy()
			return nil, fmt.Errorf("model %q index buffer: %w", data.Name, err)
		}
		model.indices = indices
	}

	core.LogDebug("Uploaded model %q: %d vertices, %d indices.", data.Name, model.VertexCount, model.IndexCount)
	return model, nil
}

func (m *VulkanModel) Bind(cb metadata.CommandBuffer) {
	handle := cb.(*VulkanCommandBuffer).Handle
	vk.CmdBindVertexBuffers(handle, 0, 1, []vk.Buffer{m.vertices.Handle}, []vk.DeviceSize{0})
	if m.indices != nil {
		vk.CmdBindIndexBuffer(handle, m.indices.Handle, 0, vk.IndexTypeUint32)
	}
}

func (m *VulkanModel) Draw(cb metadata.CommandBuffer) {
	handle := cb.(*VulkanCommandBuffer).Handle
	if m.indices != nil {
		vk.CmdDrawIndexed(handle, m.IndexCount, 1, 0, 0, 0)
		return
	}
	vk.CmdDraw(handle, m.VertexCount, 1, 0, 0)
}

func (m *VulkanModel) Destroy() {
	if m.indices != nil {
		m.indices.Destroy()
		m.indices = nil
	}
	if m.vertices != nil {
		m.vertices.Destroy()
		m.vertices = nil
	}
}
