package core

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	MinFramesInFlight     = 1
	MaxFramesInFlight     = 3
	DefaultFramesInFlight = 2
)

// Duration decodes TOML strings such as "2s" or "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type WindowConfig struct {
	// Window starting position, if applicable.
	PosX int `toml:"pos_x"`
	PosY int `toml:"pos_y"`
	// Window starting size, if applicable.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	// The title used in windowing, if applicable.
	Title string `toml:"title"`
}

type RendererConfig struct {
	FramesInFlight int `toml:"frames_in_flight"`
	// FenceTimeout bounds every fence wait. Zero waits forever.
	FenceTimeout Duration `toml:"fence_timeout"`
	// PreferVsync skips the mailbox present mode even when available.
	PreferVsync bool `toml:"prefer_vsync"`
	Validation  bool `toml:"validation"`
}

type AssetsConfig struct {
	Dir            string `toml:"dir"`
	ShaderDir      string `toml:"shader_dir"`
	VertexShader   string `toml:"vertex_shader"`
	FragmentShader string `toml:"fragment_shader"`
	// Shaders for the point light billboard.
	LightVertexShader   string   `toml:"light_vertex_shader"`
	LightFragmentShader string   `toml:"light_fragment_shader"`
	Models              []string `toml:"models"`
	HotReload           bool     `toml:"hot_reload"`
}

type LightConfig struct {
	Position  [3]float32 `toml:"position"`
	Color     [3]float32 `toml:"color"`
	Intensity float32    `toml:"intensity"`

	AmbientColor     [3]float32 `toml:"ambient_color"`
	AmbientIntensity float32    `toml:"ambient_intensity"`
}

type CameraConfig struct {
	MoveSpeed float32 `toml:"move_speed"`
	LookSpeed float32 `toml:"look_speed"`
	// FovY is in degrees.
	FovY float32 `toml:"fov_y"`
	Near float32 `toml:"near"`
	Far  float32 `toml:"far"`
}

type ApplicationConfig struct {
	LogLevel string         `toml:"log_level"`
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	Camera   CameraConfig   `toml:"camera"`
	Light    LightConfig    `toml:"light"`
}

func DefaultConfig() *ApplicationConfig {
	return &ApplicationConfig{
		LogLevel: "info",
		Window: WindowConfig{
			PosX:   100,
			PosY:   100,
			Width:  800,
			Height: 600,
			Title:  "Curen",
		},
		Renderer: RendererConfig{
			FramesInFlight: DefaultFramesInFlight,
		},
		Assets: AssetsConfig{
			Dir:            "assets",
			ShaderDir:      "shaders",
			VertexShader:        "simple_shader.vert.spv",
			FragmentShader:      "simple_shader.frag.spv",
			LightVertexShader:   "point_light.vert.spv",
			LightFragmentShader: "point_light.frag.spv",
		},
		Camera: CameraConfig{
			MoveSpeed: 3.0,
			LookSpeed: 1.5,
			FovY:      50.0,
			Near:      0.1,
			Far:       100.0,
		},
		Light: LightConfig{
			Position:         [3]float32{-1, -1, -1},
			Color:            [3]float32{1, 1, 1},
			Intensity:        1.0,
			AmbientColor:     [3]float32{1, 1, 1},
			AmbientIntensity: 0.02,
		},
	}
}

// LoadConfig reads path on top of the defaults. A missing file is not an
// error; the defaults are returned as they are.
func LoadConfig(path string) (*ApplicationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			LogInfo("configuration file '%s' not found, using defaults", path)
			return DefaultConfig(), nil
		}
		return nil, err
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*ApplicationConfig, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("%w: window size must be non-zero, got %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}
	if c.Renderer.FramesInFlight < MinFramesInFlight || c.Renderer.FramesInFlight > MaxFramesInFlight {
		return fmt.Errorf("%w: frames_in_flight must be in [%d, %d], got %d", ErrInvalidConfig, MinFramesInFlight, MaxFramesInFlight, c.Renderer.FramesInFlight)
	}
	if c.Renderer.FenceTimeout.Duration < 0 {
		return fmt.Errorf("%w: fence_timeout cannot be negative", ErrInvalidConfig)
	}
	if c.Assets.VertexShader == "" || c.Assets.FragmentShader == "" {
		return fmt.Errorf("%w: both vertex_shader and fragment_shader are required", ErrInvalidConfig)
	}
	if c.Assets.LightVertexShader == "" || c.Assets.LightFragmentShader == "" {
		return fmt.Errorf("%w: both light_vertex_shader and light_fragment_shader are required", ErrInvalidConfig)
	}
	if c.Light.Intensity < 0 || c.Light.AmbientIntensity < 0 {
		return fmt.Errorf("%w: light intensities cannot be negative", ErrInvalidConfig)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		return fmt.Errorf("%w: camera planes must satisfy 0 < near < far", ErrInvalidConfig)
	}
	return nil
}

func (c *ApplicationConfig) ShaderPath(name string) string {
	return filepath.Join(c.Assets.Dir, c.Assets.ShaderDir, name)
}

func (c *ApplicationConfig) ModelPaths() []string {
	paths := make([]string, 0, len(c.Assets.Models))
	for _, m := range c.Assets.Models {
		paths = append(paths, filepath.Join(c.Assets.Dir, "models", m))
	}
	return paths
}
