package systems

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/curen/engine/assets"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
	"github.com/spaghettifunk/curen/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
}

func (r *recorder) add(s string) { r.calls = append(r.calls, s) }

type fakeCommandBuffer struct {
	metadata.CommandBuffer
	rec *recorder
}

func (c *fakeCommandBuffer) Draw(vertexCount uint32) { c.rec.add(fmt.Sprintf("draw %d", vertexCount)) }

type fakePipeline struct {
	rec       *recorder
	name      string
	pushes    [][]float32
	destroyed bool
}

func (p *fakePipeline) Bind(metadata.CommandBuffer) { p.rec.add("bind " + p.name) }
func (p *fakePipeline) BindDescriptorSet(_ metadata.CommandBuffer, set metadata.DescriptorSet) {
	p.rec.add(fmt.Sprintf("bind set %d", set.(*fakeSet).slot))
}
func (p *fakePipeline) PushConstants(_ metadata.CommandBuffer, data []float32) {
	p.pushes = append(p.pushes, append([]float32(nil), data...))
	p.rec.add("push")
}
func (p *fakePipeline) Destroy() { p.destroyed = true }

type fakeModel struct {
	rec       *recorder
	name      string
	destroyed bool
}

func (m *fakeModel) Bind(metadata.CommandBuffer) { m.rec.add("bind model " + m.name) }
func (m *fakeModel) Draw(metadata.CommandBuffer) { m.rec.add("draw " + m.name) }
func (m *fakeModel) Destroy()                    { m.destroyed = true }

type fakeSet struct{ slot int }

type fakeLayout struct{ _ int }

type fakeUniforms struct {
	layout    *fakeLayout
	size      uint32
	writes    map[int][]float32
	sets      []*fakeSet
	destroyed bool
}

func (u *fakeUniforms) Layout() metadata.DescriptorSetLayout { return u.layout }
func (u *fakeUniforms) Slots() int                           { return len(u.sets) }
func (u *fakeUniforms) Write(slot int, data []float32) error {
	if uint32(len(data)*4) > u.size {
		return core.ErrInvalidConfig
	}
	u.writes[slot] = append([]float32(nil), data...)
	return nil
}
func (u *fakeUniforms) DescriptorSet(slot int) metadata.DescriptorSet { return u.sets[slot] }
func (u *fakeUniforms) Destroy()                                      { u.destroyed = true }

type fakeGPU struct {
	rec       *recorder
	pipelines []*fakePipeline
	configs   []metadata.PipelineConfig
	models    []*fakeModel
	uniforms  []*fakeUniforms
	failNext  bool
	waitIdles int
}

func newFakeGPU() *fakeGPU {
	return &fakeGPU{rec: &recorder{}}
}

func (g *fakeGPU) CreatePipeline(cfg metadata.PipelineConfig) (metadata.Pipeline, error) {
	if g.failNext {
		g.failNext = false
		return nil, errors.New("shader module rejected")
	}
	g.configs = append(g.configs, cfg)
	p := &fakePipeline{rec: g.rec, name: string(rune('a' + len(g.pipelines)))}
	g.pipelines = append(g.pipelines, p)
	return p, nil
}

func (g *fakeGPU) CreateModel(data *metadata.ModelData) (metadata.Model, error) {
	if len(data.Vertices) < 3 {
		return nil, core.ErrInvalidConfig
	}
	m := &fakeModel{rec: g.rec, name: data.Name}
	g.models = append(g.models, m)
	return m, nil
}

func (g *fakeGPU) CreateUniformSet(slots int, size uint32) (metadata.UniformSet, error) {
	u := &fakeUniforms{layout: &fakeLayout{}, size: size, writes: map[int][]float32{}}
	for i := 0; i < slots; i++ {
		u.sets = append(u.sets, &fakeSet{slot: i})
	}
	g.uniforms = append(g.uniforms, u)
	return u, nil
}

func (g *fakeGPU) WaitIdle() error {
	g.waitIdles++
	return nil
}

func TestJobSystemRunsCallbacks(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)

	js, err := NewJobSystem(4, 8)
	require.NoError(t, err)

	var ok, failed atomic.Int32
	for i := 0; i < 20; i++ {
		i := i
		js.Submit(JobTask{
			Run: func() (interface{}, error) {
				if i%5 == 0 {
					return nil, errors.New("boom")
				}
				return i, nil
			},
			OnComplete: func(interface{}) { ok.Add(1) },
			OnFailure:  func(error) { failed.Add(1) },
		})
	}
	require.NoError(t, js.Shutdown())
	assert.Equal(t, int32(16), ok.Load())
	assert.Equal(t, int32(4), failed.Load())
}

func TestRenderSystemPipelineConfig(t *testing.T) {
	gpu := newFakeGPU()
	layout := &fakeLayout{}
	rs, err := NewRenderSystem(RenderSystemConfig{CullBackFaces: true}, gpu, nil, layout, []uint32{1}, []uint32{2})
	require.NoError(t, err)
	defer rs.Shutdown()

	require.Len(t, gpu.configs, 1)
	cfg := gpu.configs[0]
	assert.Equal(t, uint32(128), cfg.PushConstantSize)
	assert.Equal(t, []metadata.DescriptorSetLayout{layout}, cfg.SetLayouts)
	assert.False(t, cfg.NoVertexInput)
	assert.True(t, cfg.DepthTest)
	assert.True(t, cfg.CullBackFaces)
	assert.Equal(t, []uint32{1}, cfg.VertexShader)
	assert.Equal(t, []uint32{2}, cfg.FragmentShader)
}

func TestRenderObjectsPushesModelAndNormalMatrix(t *testing.T) {
	gpu := newFakeGPU()
	rs, err := NewRenderSystem(RenderSystemConfig{}, gpu, nil, &fakeLayout{}, nil, nil)
	require.NoError(t, err)

	store := scene.NewStore()
	cube := store.CreateObject()
	cube.Model = &fakeModel{rec: gpu.rec, name: "cube"}
	cube.Transform.Translation = mgl32.Vec3{0, 0, 2.5}
	cube.Transform.Scale = mgl32.Vec3{2, 2, 2}
	store.CreateObject() // no model
	other := store.CreateObject()
	other.Model = &fakeModel{rec: gpu.rec, name: "other"}

	frame := &metadata.FrameInfo{
		FrameIndex:    1,
		CommandBuffer: &fakeCommandBuffer{rec: gpu.rec},
		GlobalSet:     &fakeSet{slot: 1},
	}
	rs.RenderObjects(frame, store.Objects())

	assert.Equal(t, []string{
		"bind a", "bind set 1",
		"push", "bind model cube", "draw cube",
		"push", "bind model other", "draw other",
	}, gpu.rec.calls)

	p := gpu.pipelines[0]
	require.Len(t, p.pushes, 2)
	push := p.pushes[0]
	require.Len(t, push, 32)

	want := cube.Transform.Matrix()
	var got mgl32.Mat4
	copy(got[:], push[:16])
	assert.Equal(t, want, got)

	var normal mgl32.Mat4
	copy(normal[:], push[16:])
	n := cube.Transform.NormalMatrix()
	assert.Equal(t, n.Col(0), normal.Col(0).Vec3())
	assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, normal.Col(3))
}

func TestRebuildKeepsPipelineOnFailure(t *testing.T) {
	gpu := newFakeGPU()
	rs, err := NewRenderSystem(RenderSystemConfig{}, gpu, nil, &fakeLayout{}, nil, nil)
	require.NoError(t, err)
	first := gpu.pipelines[0]

	gpu.failNext = true
	assert.Error(t, rs.Rebuild(nil, nil, nil))
	assert.False(t, first.destroyed)
	assert.Same(t, first, rs.pipeline)

	require.NoError(t, rs.Rebuild(nil, nil, nil))
	assert.True(t, first.destroyed)
	assert.Same(t, gpu.pipelines[1], rs.pipeline)

	require.NoError(t, rs.Shutdown())
	assert.True(t, gpu.pipelines[1].destroyed)
}

func TestGlobalSystemWritesOwnSlot(t *testing.T) {
	gpu := newFakeGPU()
	gs, err := NewGlobalSystem(gpu, 3)
	require.NoError(t, err)
	require.Len(t, gpu.uniforms, 1)
	u := gpu.uniforms[0]
	assert.Equal(t, uint32(176), u.size)
	assert.Same(t, u.layout, gs.Layout())

	ubo := &GlobalUbo{
		Projection:    mgl32.Perspective(1, 1.5, 0.1, 10),
		View:          mgl32.Translate3D(0, 0, 2.5),
		AmbientLight:  mgl32.Vec4{1, 1, 1, 0.02},
		LightPosition: mgl32.Vec3{-1, -2, -3},
		LightColor:    mgl32.Vec4{1, 0.5, 0.25, 2},
	}
	for slot := 0; slot < 3; slot++ {
		frame := &metadata.FrameInfo{FrameIndex: slot}
		ubo.LightPosition[0] = float32(slot)
		require.NoError(t, gs.Update(frame, ubo))
		assert.Same(t, u.sets[slot], frame.GlobalSet)
	}

	require.Len(t, u.writes, 3)
	data := u.writes[1]
	require.Len(t, data, 44)
	assert.Equal(t, ubo.Projection[:], data[:16])
	assert.Equal(t, ubo.View[:], data[16:32])
	assert.Equal(t, []float32{1, 1, 1, 0.02}, data[32:36])
	// vec3 padded to a vec4 slot
	assert.Equal(t, []float32{1, -2, -3, 0}, data[36:40])
	assert.Equal(t, []float32{1, 0.5, 0.25, 2}, data[40:44])
	assert.Equal(t, float32(0), u.writes[0][36])
	assert.Equal(t, float32(2), u.writes[2][36])

	err = gs.Update(&metadata.FrameInfo{FrameIndex: 3}, ubo)
	assert.ErrorIs(t, err, core.ErrProtocolViolation)

	require.NoError(t, gs.Shutdown())
	assert.True(t, u.destroyed)
}

func TestPointLightSystemDrawsBillboard(t *testing.T) {
	gpu := newFakeGPU()
	layout := &fakeLayout{}
	ps, err := NewPointLightSystem(gpu, nil, layout, []uint32{3}, []uint32{4})
	require.NoError(t, err)

	require.Len(t, gpu.configs, 1)
	cfg := gpu.configs[0]
	assert.True(t, cfg.NoVertexInput)
	assert.Zero(t, cfg.PushConstantSize)
	assert.Equal(t, []metadata.DescriptorSetLayout{layout}, cfg.SetLayouts)
	assert.True(t, cfg.DepthTest)

	ps.Render(&metadata.FrameInfo{
		CommandBuffer: &fakeCommandBuffer{rec: gpu.rec},
		GlobalSet:     &fakeSet{slot: 2},
	})
	assert.Equal(t, []string{"bind a", "bind set 2", "draw 6"}, gpu.rec.calls)

	require.NoError(t, ps.Shutdown())
	assert.True(t, gpu.pipelines[0].destroyed)
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func spirv() string {
	b := make([]byte, 0, 20)
	for _, w := range []uint32{0x07230203, 0x00010000, 0, 1, 0} {
		b = binary.LittleEndian.AppendUint32(b, w)
	}
	return string(b)
}

const triangle = "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"

func TestModelSystemLoadAll(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.obj")
	b := filepath.Join(dir, "b.obj")
	writeFile(t, a, triangle)
	writeFile(t, b, triangle+"v 1 1 0\nf 2 4 3\n")

	gpu := newFakeGPU()
	am := assets.NewAssetManager()
	defer am.Shutdown()
	js, err := NewJobSystem(2, 2)
	require.NoError(t, err)
	defer js.Shutdown()

	ms := NewModelSystem(gpu, am, js)
	models, err := ms.LoadAll([]string{a, b})
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "a", models[0].(*fakeModel).name)
	assert.Equal(t, "b", models[1].(*fakeModel).name)

	// same name is served from the cache
	again, err := ms.Acquire(&metadata.ModelData{Name: "a"})
	require.NoError(t, err)
	assert.Same(t, models[0], again)

	_, err = ms.LoadAll([]string{a, filepath.Join(dir, "missing.obj")})
	assert.Error(t, err)

	require.NoError(t, ms.Shutdown())
	for _, m := range gpu.models {
		assert.True(t, m.destroyed)
	}
}

func testConfig(t *testing.T, hotReload bool) *core.ApplicationConfig {
	cfg := core.DefaultConfig()
	cfg.Assets.Dir = t.TempDir()
	cfg.Assets.HotReload = hotReload
	for _, name := range []string{
		cfg.Assets.VertexShader, cfg.Assets.FragmentShader,
		cfg.Assets.LightVertexShader, cfg.Assets.LightFragmentShader,
	} {
		writeFile(t, cfg.ShaderPath(name), spirv())
	}
	return cfg
}

func TestSystemManagerBuildsPipelines(t *testing.T) {
	cfg := testConfig(t, false)
	cfg.Renderer.FramesInFlight = 3
	gpu := newFakeGPU()
	sm, err := NewSystemManager(cfg, gpu, nil)
	require.NoError(t, err)

	require.Len(t, gpu.uniforms, 1)
	assert.Len(t, gpu.uniforms[0].sets, 3)
	require.Len(t, gpu.configs, 2)
	for _, c := range gpu.configs {
		assert.Equal(t, []metadata.DescriptorSetLayout{gpu.uniforms[0].layout}, c.SetLayouts)
	}
	assert.False(t, gpu.configs[0].NoVertexInput)
	assert.True(t, gpu.configs[1].NoVertexInput)

	require.NoError(t, sm.Shutdown())
	assert.True(t, gpu.pipelines[0].destroyed)
	assert.True(t, gpu.pipelines[1].destroyed)
	assert.True(t, gpu.uniforms[0].destroyed)
}

func TestSystemManagerHotReload(t *testing.T) {
	cfg := testConfig(t, true)
	gpu := newFakeGPU()
	sm, err := NewSystemManager(cfg, gpu, nil)
	require.NoError(t, err)
	defer sm.Shutdown()
	objects, lights := gpu.pipelines[0], gpu.pipelines[1]

	assert.False(t, sm.ReloadShaders(nil))

	writeFile(t, cfg.ShaderPath(cfg.Assets.FragmentShader), spirv())
	require.Eventually(t, func() bool {
		return sm.ReloadShaders(nil)
	}, 2*time.Second, 10*time.Millisecond)

	assert.GreaterOrEqual(t, gpu.waitIdles, 1)
	assert.True(t, objects.destroyed)
	assert.False(t, lights.destroyed)
}

func TestSystemManagerHotReloadLightShader(t *testing.T) {
	cfg := testConfig(t, true)
	gpu := newFakeGPU()
	sm, err := NewSystemManager(cfg, gpu, nil)
	require.NoError(t, err)
	defer sm.Shutdown()
	objects, lights := gpu.pipelines[0], gpu.pipelines[1]

	writeFile(t, cfg.ShaderPath(cfg.Assets.LightVertexShader), spirv())
	require.Eventually(t, func() bool {
		return sm.ReloadShaders(nil)
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, lights.destroyed)
	assert.False(t, objects.destroyed)
	assert.Same(t, gpu.pipelines[len(gpu.pipelines)-1], sm.Lights.pipeline)
}

func TestSystemManagerWithoutHotReload(t *testing.T) {
	cfg := testConfig(t, false)
	gpu := newFakeGPU()
	sm, err := NewSystemManager(cfg, gpu, nil)
	require.NoError(t, err)

	writeFile(t, cfg.ShaderPath(cfg.Assets.VertexShader), spirv())
	assert.False(t, sm.ReloadShaders(nil))
	require.NoError(t, sm.Shutdown())
	assert.True(t, gpu.pipelines[0].destroyed)
}

func TestSystemManagerMissingShader(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.Assets.Dir = t.TempDir()
	_, err := NewSystemManager(cfg, newFakeGPU(), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
