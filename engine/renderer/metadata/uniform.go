package metadata

// DescriptorSetLayout is the shape of the resources a pipeline reads at one
// set index.
type DescriptorSetLayout interface{}

type DescriptorSet interface{}

// UniformSet holds one host visible uniform buffer per frame slot. Each
// buffer is reachable through its own descriptor set at binding 0, visible
// to the vertex and fragment stages.
type UniformSet interface {
	Layout() DescriptorSetLayout
	Slots() int
	// Write copies data to the start of slot's buffer. The GPU must be done
	// with that slot.
	Write(slot int, data []float32) error
	DescriptorSet(slot int) DescriptorSet
	Destroy()
}

type UniformFactory interface {
	CreateUniformSet(slots int, size uint32) (UniformSet, error)
}
