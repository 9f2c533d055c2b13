package loaders

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
	"github.com/udhos/gwob"
)

var ErrInvalidModel = errors.New("invalid OBJ model")

// OBJ carries no vertex colors; everything is lit as white.
var defaultVertexColor = mgl32.Vec3{1, 1, 1}

// ObjLoader reads Wavefront OBJ files. Only geometry is read: positions,
// normals and texture coordinates. Materials and groups are ignored.
type ObjLoader struct{}

func (ol *ObjLoader) Load(path string) (*Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := ParseOBJ(f, resourceName(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Resource{
		Name:     data.Name,
		FullPath: path,
		Type:     ResourceTypeModel,
		Data:     data,
	}, nil
}

// ParseOBJ decodes r into indexed geometry. Polygons come back as
// triangles and corners that repeat the same v/vt/vn triple share one
// index.
func ParseOBJ(r io.Reader, name string) (*metadata.ModelData, error) {
	options := &gwob.ObjParserOptions{
		Logger: func(msg string) {
			core.LogDebug("obj %s: %s", name, msg)
		},
	}
	obj, err := gwob.NewObjFromReader(name, bufio.NewReader(r), options)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}
	return modelFromObj(name, obj)
}

// modelFromObj converts gwob's interleaved float stream into vertices.
// Strides and offsets are reported in bytes.
func modelFromObj(name string, obj *gwob.Obj) (*metadata.ModelData, error) {
	if len(obj.Indices) == 0 || obj.StrideSize == 0 {
		return nil, fmt.Errorf("%w: no faces", ErrInvalidModel)
	}
	stride := obj.StrideSize / 4
	position := obj.StrideOffsetPosition / 4
	uv := obj.StrideOffsetTexture / 4
	normal := obj.StrideOffsetNormal / 4

	count := len(obj.Coord) / stride
	data := &metadata.ModelData{
		Name:     name,
		Vertices: make([]metadata.Vertex, count),
		Indices:  make([]uint32, len(obj.Indices)),
	}
	for i := 0; i < count; i++ {
		c := obj.Coord[i*stride : (i+1)*stride]
		v := metadata.Vertex{
			Position: mgl32.Vec3{c[position], c[position+1], c[position+2]},
			Color:    defaultVertexColor,
		}
		if obj.TextCoordFound {
			v.UV = mgl32.Vec2{c[uv], c[uv+1]}
		}
		if obj.NormCoordFound {
			v.Normal = mgl32.Vec3{c[normal], c[normal+1], c[normal+2]}
		}
		data.Vertices[i] = v
	}
	for i, idx := range obj.Indices {
		if idx < 0 || idx >= count {
			return nil, fmt.Errorf("%w: index %d out of range [0, %d)", ErrInvalidModel, idx, count)
		}
		data.Indices[i] = uint32(idx)
	}
	return data, nil
}
