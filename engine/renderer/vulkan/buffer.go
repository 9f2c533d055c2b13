package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	Usage  vk.BufferUsageFlags

	context *VulkanContext
}

func (vc *VulkanContext) createBuffer(size uint64, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlagBits) (*VulkanBuffer, error) {
	buf := &VulkanBuffer{Size: size, Usage: usage, context: vc}

	err := vc.locks.SafeCall(BufferManagement, func() error {
		createInfo := vk.BufferCreateInfo{
			SType:       vk.StructureTypeBufferCreateInfo,
			Size:        vk.DeviceSize(size),
			Usage:       usage,
			SharingMode: vk.SharingModeExclusive,
		}
		var handle vk.Buffer
		if err := resultError(vk.CreateBuffer(vc.Device.LogicalDevice, &createInfo, vc.Allocator, &handle), "vkCreateBuffer"); err != nil {
			return err
		}
		buf.Handle = handle

		var memReqs vk.MemoryRequirements
		vk.GetBufferMemoryRequirements(vc.Device.LogicalDevice, handle, &memReqs)
		memReqs.Deref()

		memoryType, err := vc.FindMemoryIndex(memReqs.MemoryTypeBits, uint32(properties))
		if err != nil {
			return err
		}
		allocInfo := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  memReqs.Size,
			MemoryTypeIndex: memoryType,
		}
		var memory vk.DeviceMemory
		if err := resultError(vk.AllocateMemory(vc.Device.LogicalDevice, &allocInfo, vc.Allocator, &memory), "vkAllocateMemory"); err != nil {
			return err
		}
		buf.Memory = memory
		return resultError(vk.BindBufferMemory(vc.Device.LogicalDevice, handle, memory, 0), "vkBindBufferMemory")
	})
	if err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

// uploadBuffer creates a device local buffer holding data, going through a
// host visible staging buffer and a single use copy on the graphics queue.
func (vc *VulkanContext) uploadBuffer(data []byte, usage vk.BufferUsageFlagBits) (*VulkanBuffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot upload an empty buffer")
	}
	size := uint64(len(data))

	staging, err := vc.createBuffer(size, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	if err := staging.write(data); err != nil {
		return nil, err
	}

	buf, err := vc.createBuffer(size, vk.BufferUsageFlags(usage|vk.BufferUsageTransferDstBit), vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return nil, err
	}

	pool := vc.Device.GraphicsCommandPool
	cb, err := vc.AllocateAndBeginSingleUse(pool)
	if err != nil {
		buf.Destroy()
		return nil, err
	}
	vk.CmdCopyBuffer(cb.Handle, staging.Handle, buf.Handle, 1, []vk.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}})
	if err := vc.EndSingleUse(cb, pool, vc.Device.GraphicsQueue, vc.Device.GraphicsQueueIndex); err != nil {
		buf.Destroy()
		return nil, err
	}
	return buf, nil
}

func (b *VulkanBuffer) write(data []byte) error {
	device := b.context.Device.LogicalDevice
	var ptr unsafe.Pointer
	if err := resultError(vk.MapMemory(device, b.Memory, 0, vk.DeviceSize(len(data)), 0, &ptr), "vkMapMemory"); err != nil {
		return err
	}
	n := vk.Memcopy(ptr, data)
	vk.UnmapMemory(device, b.Memory)
	if n != len(data) {
		return fmt.Errorf("copied %d of %d bytes to buffer", n, len(data))
	}
	return nil
}

func (b *VulkanBuffer) Destroy() {
	device := b.context.Device.LogicalDevice
	if b.Handle != nil {
		vk.DestroyBuffer(device, b.Handle, b.context.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(device, b.Memory, b.context.Allocator)
		b.Memory = nil
	}
}

func float32Bytes(data []float32) []byte {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
}

func uint32Bytes(data []uint32) []byte {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
}
