package systems

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
	"github.com/spaghettifunk/curen/engine/scene"
)

// Two column-major mat4: the model matrix and the normal matrix.
const pushConstantFloats = 32

const PushConstantSize = pushConstantFloats * 4

type RenderSystemConfig struct {
	CullBackFaces bool
	Wireframe     bool
}

// RenderSystem draws scene objects with a single pipeline. Camera and
// lights come from the global uniform buffer, each object's matrices from
// push constants.
type RenderSystem struct {
	config       RenderSystemConfig
	factory      metadata.PipelineFactory
	globalLayout metadata.DescriptorSetLayout
	pipeline     metadata.Pipeline

	push []float32
}

func NewRenderSystem(config RenderSystemConfig, factory metadata.PipelineFactory, pass metadata.RenderPass, globalLayout metadata.DescriptorSetLayout, vertex, fragment []uint32) (*RenderSystem, error) {
	rs := &RenderSystem{
		config:       config,
		factory:      factory,
		globalLayout: globalLayout,
		push:         make([]float32, 0, pushConstantFloats),
	}
	if err := rs.Rebuild(pass, vertex, fragment); err != nil {
		return nil, err
	}
	return rs, nil
}

// Rebuild swaps in a pipeline made from new shader code. The old pipeline
// is kept when creation fails. The caller makes sure the GPU is no longer
// using the old one.
func (rs *RenderSystem) Rebuild(pass metadata.RenderPass, vertex, fragment []uint32) error {
	p, err := rs.factory.CreatePipeline(metadata.PipelineConfig{
		RenderPass:       pass,
		VertexShader:     vertex,
		FragmentShader:   fragment,
		PushConstantSize: PushConstantSize,
		SetLayouts:       []metadata.DescriptorSetLayout{rs.globalLayout},
		DepthTest:        true,
		CullBackFaces:    rs.config.CullBackFaces,
		Wireframe:        rs.config.Wireframe,
	})
	if err != nil {
		core.LogError("failed to create render pipeline: %s", err)
		return err
	}
	if rs.pipeline != nil {
		rs.pipeline.Destroy()
	}
	rs.pipeline = p
	return nil
}

// RenderObjects records draws for objects into the frame's command buffer.
// Objects without a model are skipped.
func (rs *RenderSystem) RenderObjects(frame *metadata.FrameInfo, objects []*scene.Object) {
	cb := frame.CommandBuffer
	rs.pipeline.Bind(cb)
	rs.pipeline.BindDescriptorSet(cb, frame.GlobalSet)

	for _, obj := range objects {
		if obj.Model == nil {
			continue
		}
		model := obj.Transform.Matrix()
		normal := normalMat4(obj.Transform.NormalMatrix())

		rs.push = append(rs.push[:0], model[:]...)
		rs.push = append(rs.push, normal[:]...)
		rs.pipeline.PushConstants(cb, rs.push)

		obj.Model.Bind(cb)
		obj.Model.Draw(cb)
	}
}

func (rs *RenderSystem) Shutdown() error {
	if rs.pipeline != nil {
		rs.pipeline.Destroy()
		rs.pipeline = nil
	}
	return nil
}

// normalMat4 widens m the way the shader reads it: a mat4 with m in the
// upper left and 1 in the last diagonal slot.
func normalMat4(m mgl32.Mat3) mgl32.Mat4 {
	return mgl32.Mat4{
		m[0], m[1], m[2], 0,
		m[3], m[4], m[5], 0,
		m[6], m[7], m[8], 0,
		0, 0, 0, 1,
	}
}
