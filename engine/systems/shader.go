package systems

import (
	"path/filepath"

	"github.com/spaghettifunk/curen/engine/assets"
)

type ShaderSystemConfig struct {
	VertexPath   string
	FragmentPath string
}

// ShaderSystem knows which SPIR-V files make up the render pipeline.
type ShaderSystem struct {
	config ShaderSystemConfig
	assets *assets.AssetManager
}

func NewShaderSystem(config ShaderSystemConfig, am *assets.AssetManager) *ShaderSystem {
	config.VertexPath = filepath.Clean(config.VertexPath)
	config.FragmentPath = filepath.Clean(config.FragmentPath)
	return &ShaderSystem{config: config, assets: am}
}

func (ss *ShaderSystem) Load() (vertex, fragment []uint32, err error) {
	if vertex, err = ss.assets.LoadShader(ss.config.VertexPath); err != nil {
		return nil, nil, err
	}
	if fragment, err = ss.assets.LoadShader(ss.config.FragmentPath); err != nil {
		return nil, nil, err
	}
	return vertex, fragment, nil
}

// Affected reports whether any of the changed paths is one of ours.
func (ss *ShaderSystem) Affected(changed []string) bool {
	for _, p := range changed {
		p = filepath.Clean(p)
		if p == ss.config.VertexPath || p == ss.config.FragmentPath {
			return true
		}
	}
	return false
}

func (ss *ShaderSystem) String() string {
	return filepath.Base(ss.config.VertexPath) + " + " + filepath.Base(ss.config.FragmentPath)
}
