package loaders

import (
	"path/filepath"
	"strings"
)

type ResourceType uint8

const (
	ResourceTypeNone ResourceType = iota
	ResourceTypeShader
	ResourceTypeModel
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeModel:
		return "model"
	}
	return "none"
}

// Resource is a loaded asset. Data holds []uint32 for shaders and
// *metadata.ModelData for models.
type Resource struct {
	Name     string
	FullPath string
	Type     ResourceType
	Data     interface{}
}

// TypeOf picks the resource type from the file extension.
func TypeOf(path string) ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		return ResourceTypeShader
	case ".obj":
		return ResourceTypeModel
	default:
		return ResourceTypeNone
	}
}

func resourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
