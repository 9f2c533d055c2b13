package systems

import (
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

// The billboard is two triangles generated in the vertex shader.
const billboardVertices = 6

// PointLightSystem draws the point light as a camera facing disc. Its
// position and color come from the global uniform buffer only.
type PointLightSystem struct {
	factory      metadata.PipelineFactory
	globalLayout metadata.DescriptorSetLayout
	pipeline     metadata.Pipeline
}

func NewPointLightSystem(factory metadata.PipelineFactory, pass metadata.RenderPass, globalLayout metadata.DescriptorSetLayout, vertex, fragment []uint32) (*PointLightSystem, error) {
	ps := &PointLightSystem{factory: factory, globalLayout: globalLayout}
	if err := ps.Rebuild(pass, vertex, fragment); err != nil {
		return nil, err
	}
	return ps, nil
}

// Rebuild follows the same rules as RenderSystem.Rebuild.
func (ps *PointLightSystem) Rebuild(pass metadata.RenderPass, vertex, fragment []uint32) error {
	p, err := ps.factory.CreatePipeline(metadata.PipelineConfig{
		RenderPass:     pass,
		VertexShader:   vertex,
		FragmentShader: fragment,
		SetLayouts:     []metadata.DescriptorSetLayout{ps.globalLayout},
		NoVertexInput:  true,
		DepthTest:      true,
	})
	if err != nil {
		core.LogError("failed to create point light pipeline: %s", err)
		return err
	}
	if ps.pipeline != nil {
		ps.pipeline.Destroy()
	}
	ps.pipeline = p
	return nil
}

func (ps *PointLightSystem) Render(frame *metadata.FrameInfo) {
	cb := frame.CommandBuffer
	ps.pipeline.Bind(cb)
	ps.pipeline.BindDescriptorSet(cb, frame.GlobalSet)
	cb.Draw(billboardVertices)
}

func (ps *PointLightSystem) Shutdown() error {
	if ps.pipeline != nil {
		ps.pipeline.Destroy()
		ps.pipeline = nil
	}
	return nil
}
