package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

var _ metadata.UniformFactory = (*VulkanContext)(nil)

type VulkanDescriptorSetLayout struct {
	Handle vk.DescriptorSetLayout
}

type VulkanDescriptorSet struct {
	Handle vk.DescriptorSet
}

// VulkanUniformSet is a host visible uniform buffer per frame slot, each
// with a descriptor set pointing at it. The sets come from a pool sized
// exactly for them.
type VulkanUniformSet struct {
	layout  *VulkanDescriptorSetLayout
	pool    vk.DescriptorPool
	buffers []*VulkanBuffer
	sets    []*VulkanDescriptorSet
	size    uint32

	context *VulkanContext
}

var uniformStages = vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit)

func (vc *VulkanContext) CreateUniformSet(slots int, size uint32) (metadata.UniformSet, error) {
	if slots <= 0 || size == 0 || size%4 != 0 {
		return nil, fmt.Errorf("%w: uniform set needs at least one slot and a size that is a multiple of 4, got %d slots of %d bytes",
			core.ErrInvalidConfig, slots, size)
	}
	us := &VulkanUniformSet{size: size, context: vc}

	err := vc.locks.SafeCall(DescriptorManagement, func() error {
		layoutInfo := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: 1,
			PBindings: []vk.DescriptorSetLayoutBinding{{
				Binding:         0,
				DescriptorType:  vk.DescriptorTypeUniformBuffer,
				DescriptorCount: 1,
				StageFlags:      uniformStages,
			}},
		}
		var layout vk.DescriptorSetLayout
		if err := resultError(vk.CreateDescriptorSetLayout(vc.Device.LogicalDevice, &layoutInfo, vc.Allocator, &layout), "vkCreateDescriptorSetLayout"); err != nil {
			return err
		}
		us.layout = &VulkanDescriptorSetLayout{Handle: layout}

		poolInfo := vk.DescriptorPoolCreateInfo{
			SType:         vk.StructureTypeDescriptorPoolCreateInfo,
			MaxSets:       uint32(slots),
			PoolSizeCount: 1,
			PPoolSizes: []vk.DescriptorPoolSize{{
				Type:            vk.DescriptorTypeUniformBuffer,
				DescriptorCount: uint32(slots),
			}},
		}
		var pool vk.DescriptorPool
		if err := resultError(vk.CreateDescriptorPool(vc.Device.LogicalDevice, &poolInfo, vc.Allocator, &pool), "vkCreateDescriptorPool"); err != nil {
			return err
		}
		us.pool = pool
		return nil
	})
	if err != nil {
		us.Destroy()
		return nil, err
	}

	for i := 0; i < slots; i++ {
		buf, err := vc.createBuffer(uint64(size), vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
		if err != nil {
			us.Destroy()
			return nil, fmt.Errorf("uniform buffer %d: %w", i, err)
		}
		us.buffers = append(us.buffers, buf)

		set, err := us.allocateSet(buf)
		if err != nil {
			us.Destroy()
			return nil, fmt.Errorf("descriptor set %d: %w", i, err)
		}
		us.sets = append(us.sets, set)
	}

	core.LogDebug("Uniform set created: %d slots of %d bytes.", slots, size)
	return us, nil
}

func (us *VulkanUniformSet) allocateSet(buf *VulkanBuffer) (*VulkanDescriptorSet, error) {
	vc := us.context
	var handle vk.DescriptorSet
	err := vc.locks.SafeCall(DescriptorManagement, func() error {
		allocInfo := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     us.pool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{us.layout.Handle},
		}
		if err := resultError(vk.AllocateDescriptorSets(vc.Device.LogicalDevice, &allocInfo, &handle), "vkAllocateDescriptorSets"); err != nil {
			return err
		}

		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          handle,
			DstBinding:      0,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: buf.Handle,
				Offset: 0,
				Range:  vk.DeviceSize(us.size),
			}},
		}
		vk.UpdateDescriptorSets(vc.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &VulkanDescriptorSet{Handle: handle}, nil
}

func (us *VulkanUniformSet) Layout() metadata.DescriptorSetLayout {
	return us.layout
}

func (us *VulkanUniformSet) Slots() int {
	return len(us.sets)
}

func (us *VulkanUniformSet) Write(slot int, data []float32) error {
	if slot < 0 || slot >= len(us.buffers) {
		return fmt.Errorf("%w: uniform slot %d out of range [0, %d)", core.ErrProtocolViolation, slot, len(us.buffers))
	}
	if uint32(len(data)*4) > us.size {
		return fmt.Errorf("%w: %d bytes do not fit a %d byte uniform buffer", core.ErrInvalidConfig, len(data)*4, us.size)
	}
	if len(data) == 0 {
		return nil
	}
	return us.buffers[slot].write(float32Bytes(data))
}

func (us *VulkanUniformSet) DescriptorSet(slot int) metadata.DescriptorSet {
	return us.sets[slot]
}

// Destroy releases the pool, which frees its sets, then the buffers and the
// layout.
func (us *VulkanUniformSet) Destroy() {
	vc := us.context
	_ = vc.locks.SafeCall(DescriptorManagement, func() error {
		if us.pool != nil {
			vk.DestroyDescriptorPool(vc.Device.LogicalDevice, us.pool, vc.Allocator)
			us.pool = nil
		}
		if us.layout != nil && us.layout.Handle != nil {
			vk.DestroyDescriptorSetLayout(vc.Device.LogicalDevice, us.layout.Handle, vc.Allocator)
			us.layout.Handle = nil
		}
		return nil
	})
	us.sets = nil
	for _, b := range us.buffers {
		b.Destroy()
	}
	us.buffers = nil
}
