package metadata

import "github.com/go-gl/mathgl/mgl32"

// Vertex is laid out as four tightly packed attributes:
// position (location 0), color (1), normal (2), uv (3).
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// VertexStride is the size of a Vertex in bytes.
const VertexStride = (3 + 3 + 3 + 2) * 4

// Flatten appends the vertex attributes in upload order.
func (v Vertex) Flatten(out []float32) []float32 {
	return append(out,
		v.Position[0], v.Position[1], v.Position[2],
		v.Color[0], v.Color[1], v.Color[2],
		v.Normal[0], v.Normal[1], v.Normal[2],
		v.UV[0], v.UV[1],
	)
}

// ModelData is CPU side geometry ready to upload. Indices may be empty,
// in which case the vertices are drawn in order.
type ModelData struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32
}

func (m *ModelData) VertexData() []float32 {
	out := make([]float32, 0, len(m.Vertices)*VertexStride/4)
	for _, v := range m.Vertices {
		out = v.Flatten(out)
	}
	return out
}

// ModelFactory uploads geometry to the GPU.
type ModelFactory interface {
	CreateModel(data *ModelData) (Model, error)
}

// PipelineConfig describes the graphics pipeline the render system needs.
type PipelineConfig struct {
	RenderPass RenderPass
	// SPIR-V words.
	VertexShader     []uint32
	FragmentShader   []uint32
	PushConstantSize uint32
	// Bound at set 0 upwards, in order.
	SetLayouts []DescriptorSetLayout
	// NoVertexInput is for pipelines that generate their vertices in the
	// shader from gl_VertexIndex.
	NoVertexInput bool
	DepthTest     bool
	CullBackFaces bool
	Wireframe     bool
}

type PipelineFactory interface {
	CreatePipeline(cfg PipelineConfig) (Pipeline, error)
}
