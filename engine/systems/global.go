package systems

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

// GlobalUbo is the per-frame data every pipeline reads at set 0, binding 0.
// Flatten lays it out with std140 rules.
type GlobalUbo struct {
	Projection mgl32.Mat4
	View       mgl32.Mat4
	// w is the intensity.
	AmbientLight  mgl32.Vec4
	LightPosition mgl32.Vec3
	// w is the intensity.
	LightColor mgl32.Vec4
}

// The vec3 light position takes a full vec4 slot.
const globalUboFloats = 16 + 16 + 4 + 4 + 4

const GlobalUboSize = globalUboFloats * 4

func (u *GlobalUbo) Flatten(out []float32) []float32 {
	out = append(out, u.Projection[:]...)
	out = append(out, u.View[:]...)
	out = append(out, u.AmbientLight[:]...)
	out = append(out, u.LightPosition[:]...)
	out = append(out, 0)
	return append(out, u.LightColor[:]...)
}

// GlobalSystem owns one uniform buffer per frame in flight. Each frame
// writes only its own slot, so a buffer is never changed while an earlier
// frame still reads it.
type GlobalSystem struct {
	uniforms metadata.UniformSet
	data     []float32
}

func NewGlobalSystem(factory metadata.UniformFactory, framesInFlight int) (*GlobalSystem, error) {
	us, err := factory.CreateUniformSet(framesInFlight, GlobalUboSize)
	if err != nil {
		core.LogError("failed to create global uniform buffers: %s", err)
		return nil, err
	}
	return &GlobalSystem{
		uniforms: us,
		data:     make([]float32, 0, globalUboFloats),
	}, nil
}

func (gs *GlobalSystem) Layout() metadata.DescriptorSetLayout {
	return gs.uniforms.Layout()
}

// Update writes ubo into the slot of frame.FrameIndex and points
// frame.GlobalSet at it. Call it after BeginFrame, once the slot's fence has
// been waited on.
func (gs *GlobalSystem) Update(frame *metadata.FrameInfo, ubo *GlobalUbo) error {
	slot := frame.FrameIndex
	if slot < 0 || slot >= gs.uniforms.Slots() {
		return fmt.Errorf("%w: frame index %d has no uniform slot (%d slots)", core.ErrProtocolViolation, slot, gs.uniforms.Slots())
	}
	gs.data = ubo.Flatten(gs.data[:0])
	if err := gs.uniforms.Write(slot, gs.data); err != nil {
		return fmt.Errorf("global uniform slot %d: %w", slot, err)
	}
	frame.GlobalSet = gs.uniforms.DescriptorSet(slot)
	return nil
}

func (gs *GlobalSystem) Shutdown() error {
	if gs.uniforms != nil {
		gs.uniforms.Destroy()
		gs.uniforms = nil
	}
	return nil
}
