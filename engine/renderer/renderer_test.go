package renderer

import (
	"fmt"
	"testing"
	"time"

	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, frames int) (*Renderer, *mockDevice, *mockWindow) {
	t.Helper()
	dev := newMockDevice()
	win := newMockWindow(800, 600)
	r, err := NewRenderer(win, dev, SwapchainOptions{FramesInFlight: frames})
	require.NoError(t, err)
	return r, dev, win
}

// runFrame drives one full frame and reports whether it was rendered.
func runFrame(t *testing.T, r *Renderer) bool {
	t.Helper()
	cb, err := r.BeginFrame()
	require.NoError(t, err)
	if cb == nil {
		return false
	}
	require.NoError(t, r.BeginSwapchainRenderPass(cb))
	require.NoError(t, r.EndSwapchainRenderPass(cb))
	require.NoError(t, r.EndFrame())
	return true
}

func TestFrameIndexCycles(t *testing.T) {
	for frames := core.MinFramesInFlight; frames <= core.MaxFramesInFlight; frames++ {
		t.Run(fmt.Sprintf("%d frames", frames), func(t *testing.T) {
			r, dev, _ := newTestRenderer(t, frames)
			assert.Equal(t, 0, r.FrameIndex())
			for n := 1; n <= 10; n++ {
				require.True(t, runFrame(t, r))
				assert.Equal(t, n%frames, r.FrameIndex())
			}
			assert.Len(t, dev.presents, 10)
			assert.Empty(t, dev.violations)
		})
	}
}

func TestCommandBufferNeverRecordedWhileInFlight(t *testing.T) {
	for frames := core.MinFramesInFlight; frames <= core.MaxFramesInFlight; frames++ {
		for _, latency := range []int{1, 3, 7} {
			t.Run(fmt.Sprintf("%d frames latency %d", frames, latency), func(t *testing.T) {
				dev := newMockDevice()
				dev.latency = latency
				r, err := NewRenderer(newMockWindow(800, 600), dev, SwapchainOptions{FramesInFlight: frames})
				require.NoError(t, err)

				for i := 0; i < 30; i++ {
					require.True(t, runFrame(t, r))
				}
				assert.Empty(t, dev.violations)
				if latency > frames {
					// the GPU is slower than the CPU, so the CPU must have waited
					assert.Positive(t, dev.blocked)
				}
			})
		}
	}
}

func TestSlotsUseTheirOwnCommandBuffer(t *testing.T) {
	r, dev, _ := newTestRenderer(t, 3)
	for i := 0; i < 9; i++ {
		require.True(t, runFrame(t, r))
	}
	for i, cb := range dev.submits {
		assert.Equal(t, i%3, cb.slot)
	}
}

func TestOutOfDateAcquireRecreatesOnce(t *testing.T) {
	r, dev, _ := newTestRenderer(t, 2)
	for i := 0; i < 3; i++ {
		require.True(t, runFrame(t, r))
	}
	presents, chains, index := len(dev.presents), len(dev.swapchains), r.FrameIndex()

	dev.acquireScript = []metadata.Status{metadata.StatusOutOfDate}
	cb, err := r.BeginFrame()
	require.NoError(t, err)
	assert.Nil(t, cb)
	assert.False(t, r.IsFrameInProgress())
	assert.Equal(t, index, r.FrameIndex())
	assert.Len(t, dev.swapchains, chains+1)
	assert.Len(t, dev.presents, presents)

	for i := 0; i < 4; i++ {
		require.True(t, runFrame(t, r))
	}
	// one present per rendered frame, all on the new chain
	require.Len(t, dev.presents, presents+4)
	for _, p := range dev.presents[presents:] {
		assert.Equal(t, chains, p.swapchain)
	}
	assert.Len(t, dev.swapchains, chains+1)
	assert.Empty(t, dev.violations)
}

func TestEndFrameRecreatesOnStaleOrResize(t *testing.T) {
	cases := map[string]func(dev *mockDevice, win *mockWindow){
		"present out of date": func(dev *mockDevice, win *mockWindow) {
			dev.presentScript = []metadata.Status{metadata.StatusOutOfDate}
		},
		"present suboptimal": func(dev *mockDevice, win *mockWindow) {
			dev.presentScript = []metadata.Status{metadata.StatusSuboptimal}
		},
		"window resized": func(dev *mockDevice, win *mockWindow) {
			win.resized = true
			win.extent = metadata.Extent2D{Width: 1280, Height: 720}
		},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			r, dev, win := newTestRenderer(t, 2)
			require.True(t, runFrame(t, r))

			setup(dev, win)
			require.True(t, runFrame(t, r))
			assert.Len(t, dev.swapchains, 2)
			assert.Equal(t, 0, r.FrameIndex())
			assert.False(t, win.resized)
			assert.Equal(t, win.extent, r.Extent())

			require.True(t, runFrame(t, r))
			assert.Len(t, dev.swapchains, 2)
			assert.Len(t, dev.presents, 3)
			assert.Empty(t, dev.violations)
		})
	}
}

func TestSuboptimalAcquireStillRenders(t *testing.T) {
	r, dev, _ := newTestRenderer(t, 2)
	dev.acquireScript = []metadata.Status{metadata.StatusSuboptimal}
	require.True(t, runFrame(t, r))
	assert.Len(t, dev.presents, 1)
	// the frame is presented on the old chain, then the chain is rebuilt
	assert.Len(t, dev.swapchains, 2)
	assert.Equal(t, 0, dev.presents[0].swapchain)

	require.True(t, runFrame(t, r))
	assert.Len(t, dev.swapchains, 2)
	assert.Empty(t, dev.violations)
}

func TestRecreateMidFrameLeavesRecordingIntact(t *testing.T) {
	r, dev, _ := newTestRenderer(t, 2)
	cb, err := r.BeginFrame()
	require.NoError(t, err)
	require.NoError(t, r.BeginSwapchainRenderPass(cb))
	chains, allocations := len(dev.swapchains), dev.allocations

	dev.support.Capabilities.MinImageCount = 3
	err = r.RecreateSwapchain()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProtocolViolation)
	assert.Equal(t, FrameStateInRenderPass, r.State())
	assert.Len(t, dev.swapchains, chains)
	assert.Equal(t, allocations, dev.allocations)
	assert.Equal(t, 0, dev.frees)

	require.NoError(t, r.EndSwapchainRenderPass(cb))
	require.NoError(t, r.EndFrame())
	assert.Equal(t, FrameStateIdle, r.State())

	require.NoError(t, r.RecreateSwapchain())
	assert.Equal(t, allocations+1, dev.allocations)
	assert.Empty(t, dev.violations)
}

func TestZeroExtentStallsUntilDrawable(t *testing.T) {
	zeros := []metadata.Extent2D{
		{Width: 0, Height: 0},
		{Width: 0, Height: 600},
		{Width: 800, Height: 0},
	}
	for _, zero := range zeros {
		t.Run(fmt.Sprintf("%dx%d", zero.Width, zero.Height), func(t *testing.T) {
			const k = 4
			r, dev, win := newTestRenderer(t, 2)
			require.True(t, runFrame(t, r))

			win.resized = true
			win.zeroPolls = k
			win.zeroExtent = zero
			win.extent = metadata.Extent2D{Width: 1024, Height: 768}
			require.True(t, runFrame(t, r))

			assert.Equal(t, k, win.waits)
			require.Len(t, dev.swapchains, 2)
			assert.Equal(t, win.extent, dev.swapchainConfigs[1].Extent)
			assert.Empty(t, dev.violations)
		})
	}
}

func TestStateMachineTable(t *testing.T) {
	type op struct {
		name string
		call func(r *Renderer, cb metadata.CommandBuffer) error
	}
	ops := []op{
		{"BeginFrame", func(r *Renderer, cb metadata.CommandBuffer) error { _, err := r.BeginFrame(); return err }},
		{"BeginSwapchainRenderPass", func(r *Renderer, cb metadata.CommandBuffer) error { return r.BeginSwapchainRenderPass(cb) }},
		{"EndSwapchainRenderPass", func(r *Renderer, cb metadata.CommandBuffer) error { return r.EndSwapchainRenderPass(cb) }},
		{"EndFrame", func(r *Renderer, cb metadata.CommandBuffer) error { return r.EndFrame() }},
		{"RecreateSwapchain", func(r *Renderer, cb metadata.CommandBuffer) error { return r.RecreateSwapchain() }},
	}
	// legal[state] is the set of operations accepted in that state
	legal := map[FrameState]map[string]FrameState{
		FrameStateIdle:         {"BeginFrame": FrameStateRecording, "RecreateSwapchain": FrameStateIdle},
		FrameStateRecording:    {"BeginSwapchainRenderPass": FrameStateInRenderPass, "EndFrame": FrameStateIdle},
		FrameStateInRenderPass: {"EndSwapchainRenderPass": FrameStateRecording},
	}
	enter := func(t *testing.T, r *Renderer, state FrameState) metadata.CommandBuffer {
		if state == FrameStateIdle {
			return r.commandBuffers[r.FrameIndex()]
		}
		cb, err := r.BeginFrame()
		require.NoError(t, err)
		if state == FrameStateInRenderPass {
			require.NoError(t, r.BeginSwapchainRenderPass(cb))
		}
		return cb
	}

	for _, state := range []FrameState{FrameStateIdle, FrameStateRecording, FrameStateInRenderPass} {
		for _, o := range ops {
			t.Run(fmt.Sprintf("%s/%s", state, o.name), func(t *testing.T) {
				r, dev, _ := newTestRenderer(t, 2)
				cb := enter(t, r, state)
				presents := len(dev.presents)

				err := o.call(r, cb)
				if next, ok := legal[state][o.name]; ok {
					require.NoError(t, err)
					assert.Equal(t, next, r.State())
					return
				}
				require.Error(t, err)
				assert.ErrorIs(t, err, core.ErrProtocolViolation)
				assert.Equal(t, state, r.State())
				assert.Len(t, dev.presents, presents)
			})
		}
	}
}

func TestRenderPassRejectsForeignCommandBuffer(t *testing.T) {
	r, _, _ := newTestRenderer(t, 2)
	cb, err := r.BeginFrame()
	require.NoError(t, err)

	other := r.commandBuffers[1]
	assert.ErrorIs(t, r.BeginSwapchainRenderPass(other), core.ErrProtocolViolation)
	assert.ErrorIs(t, r.BeginSwapchainRenderPass(nil), core.ErrProtocolViolation)
	assert.Equal(t, FrameStateRecording, r.State())

	require.NoError(t, r.BeginSwapchainRenderPass(cb))
	assert.ErrorIs(t, r.EndSwapchainRenderPass(other), core.ErrProtocolViolation)
	assert.Equal(t, FrameStateInRenderPass, r.State())
}

func TestBeginSwapchainRenderPassState(t *testing.T) {
	r, _, _ := newTestRenderer(t, 2)
	cb, err := r.BeginFrame()
	require.NoError(t, err)
	require.NoError(t, r.BeginSwapchainRenderPass(cb))

	mcb := cb.(*mockCommandBuffer)
	require.Len(t, mcb.passes, 1)
	pass := mcb.passes[0]
	assert.Equal(t, metadata.ClearColor{0.1, 0.1, 0.1, 1.0}, pass.Color)
	assert.Equal(t, float32(1.0), pass.Depth)
	assert.Equal(t, uint32(0), pass.Stencil)
	assert.Equal(t, metadata.Rect2D{Extent: testExtent}, pass.Area)
	assert.Same(t, r.RenderPass(), pass.RenderPass)
	assert.Same(t, r.Swapchain().Framebuffer(int(r.ImageIndex())), pass.Framebuffer)

	assert.Equal(t, []metadata.Viewport{{Width: 800, Height: 600, MaxDepth: 1}}, mcb.viewports)
	assert.Equal(t, []metadata.Rect2D{{Extent: testExtent}}, mcb.scissors)
}

func TestRecreateKeepsFormats(t *testing.T) {
	r, dev, win := newTestRenderer(t, 2)
	color, depth := r.Swapchain().ImageFormat(), r.Swapchain().DepthFormat()

	for i := 0; i < 5; i++ {
		win.extent = metadata.Extent2D{Width: uint32(640 + 100*i), Height: 480}
		require.NoError(t, r.RecreateSwapchain())
		assert.Equal(t, color, r.Swapchain().ImageFormat())
		assert.Equal(t, depth, r.Swapchain().DepthFormat())
	}
	assert.Equal(t, 1, dev.renderPasses)
	assert.Equal(t, 1, dev.allocations)
	assert.Empty(t, dev.violations)
}

func TestFailedRebuildRecoversOnNextFrame(t *testing.T) {
	r, dev, _ := newTestRenderer(t, 2)
	require.True(t, runFrame(t, r))

	// the driver accepted the new chain, so the old one is retired
	dev.failNext("view")
	require.Error(t, r.RecreateSwapchain())
	require.Len(t, dev.swapchains, 2)
	assert.True(t, dev.swapchains[0].retired)

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	assert.Nil(t, cb)
	require.Len(t, dev.swapchains, 3)

	require.True(t, runFrame(t, r))
	assert.Equal(t, 2, dev.presents[len(dev.presents)-1].swapchain)
	assert.Empty(t, dev.violations)
}

func TestRecreateWithChangedFormatIsFatal(t *testing.T) {
	r, dev, _ := newTestRenderer(t, 2)
	dev.support.Formats = []metadata.SurfaceFormat{{Format: metadata.FormatR8G8B8A8Unorm}}

	err := r.RecreateSwapchain()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSwapchainFormatChanged)
	assert.ErrorIs(t, err, core.ErrFatal)
}

func TestCommandBuffersReallocatedOnImageCountChange(t *testing.T) {
	r, dev, _ := newTestRenderer(t, 2)
	require.Equal(t, 1, dev.allocations)

	require.NoError(t, r.RecreateSwapchain())
	assert.Equal(t, 1, dev.allocations)
	assert.Equal(t, 0, dev.frees)

	dev.support.Capabilities.MinImageCount = 3
	require.NoError(t, r.RecreateSwapchain())
	assert.Equal(t, 4, r.Swapchain().ImageCount())
	assert.Equal(t, 2, dev.allocations)
	assert.Equal(t, 1, dev.frees)
	assert.Equal(t, 2, dev.live["commandbuffer"])

	require.True(t, runFrame(t, r))
	assert.Empty(t, dev.violations)
}

func TestFenceTimeoutIsFatal(t *testing.T) {
	dev := newMockDevice()
	r, err := NewRenderer(newMockWindow(800, 600), dev, SwapchainOptions{
		FramesInFlight: 1,
		FenceTimeout:   10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.True(t, runFrame(t, r))

	dev.hang = true
	cb, err := r.BeginFrame()
	assert.Nil(t, cb)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrFatal)
	assert.ErrorIs(t, err, core.ErrDeviceTimeout)
	assert.False(t, r.IsFrameInProgress())
}

func TestCurrentCommandBuffer(t *testing.T) {
	r, _, _ := newTestRenderer(t, 2)
	_, err := r.CurrentCommandBuffer()
	assert.ErrorIs(t, err, core.ErrProtocolViolation)

	cb, err := r.BeginFrame()
	require.NoError(t, err)
	current, err := r.CurrentCommandBuffer()
	require.NoError(t, err)
	assert.Same(t, cb, current)
	assert.True(t, r.IsFrameInProgress())
	assert.InDelta(t, 800.0/600.0, r.AspectRatio(), 1e-6)
}

func TestRendererDestroyReleasesEverything(t *testing.T) {
	r, dev, _ := newTestRenderer(t, 3)
	for i := 0; i < 5; i++ {
		require.True(t, runFrame(t, r))
	}
	require.NoError(t, r.Destroy())
	assert.Zero(t, dev.liveObjects())
	assert.Empty(t, dev.violations)
}
