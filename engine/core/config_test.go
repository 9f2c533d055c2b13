package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigAppliesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`log_level = "debug"`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DefaultFramesInFlight, cfg.Renderer.FramesInFlight)
	assert.Equal(t, uint32(800), cfg.Window.Width)
	assert.Equal(t, time.Duration(0), cfg.Renderer.FenceTimeout.Duration)
	assert.Equal(t, float32(3.0), cfg.Camera.MoveSpeed)
}

func TestParseConfigOverrides(t *testing.T) {
	data := []byte(`
[window]
width = 1280
height = 720
title = "demo"

[renderer]
frames_in_flight = 3
fence_timeout = "2s"
prefer_vsync = true

[assets]
models = ["cube.obj", "vase.obj"]
hot_reload = true

[light]
position = [0.5, -2.0, 1.0]
intensity = 3.5
`)
	cfg, err := ParseConfig(data)
	require.NoError(t, err)

	assert.Equal(t, uint32(1280), cfg.Window.Width)
	assert.Equal(t, "demo", cfg.Window.Title)
	assert.Equal(t, 3, cfg.Renderer.FramesInFlight)
	assert.Equal(t, 2*time.Second, cfg.Renderer.FenceTimeout.Duration)
	assert.True(t, cfg.Renderer.PreferVsync)
	assert.True(t, cfg.Assets.HotReload)
	assert.Equal(t, []string{
		filepath.Join("assets", "models", "cube.obj"),
		filepath.Join("assets", "models", "vase.obj"),
	}, cfg.ModelPaths())
	assert.Equal(t, [3]float32{0.5, -2, 1}, cfg.Light.Position)
	assert.Equal(t, float32(3.5), cfg.Light.Intensity)
	// untouched keys keep their defaults
	assert.Equal(t, "simple_shader.vert.spv", cfg.Assets.VertexShader)
	assert.Equal(t, "point_light.frag.spv", cfg.Assets.LightFragmentShader)
	assert.Equal(t, [3]float32{1, 1, 1}, cfg.Light.Color)
	assert.Equal(t, float32(0.02), cfg.Light.AmbientIntensity)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"frames in flight too high": "[renderer]\nframes_in_flight = 4",
		"frames in flight zero":     "[renderer]\nframes_in_flight = 0",
		"zero width":                "[window]\nwidth = 0",
		"negative timeout":          "[renderer]\nfence_timeout = \"-1s\"",
		"bad duration":              "[renderer]\nfence_timeout = \"soon\"",
		"unknown key":               "[renderer]\nbogus = 1",
		"far before near":           "[camera]\nnear = 10.0\nfar = 1.0",
		"negative light":            "[light]\nintensity = -1.0",
		"no light shader":           "[assets]\nlight_vertex_shader = \"\"",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curen.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nframes_in_flight = 1\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Renderer.FramesInFlight)
	assert.Equal(t, filepath.Join("assets", "shaders", "simple_shader.frag.spv"), cfg.ShaderPath(cfg.Assets.FragmentShader))
}
