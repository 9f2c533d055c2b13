package loaders

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

type cubeFace struct {
	color   mgl32.Vec3
	normal  mgl32.Vec3
	corners [4]mgl32.Vec3
}

var cubeFaces = [6]cubeFace{
	// left
	{mgl32.Vec3{.9, .9, .9}, mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{-.5, -.5, -.5}, {-.5, .5, .5}, {-.5, -.5, .5}, {-.5, .5, -.5}}},
	// right
	{mgl32.Vec3{.8, .8, .1}, mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{.5, -.5, -.5}, {.5, .5, .5}, {.5, -.5, .5}, {.5, .5, -.5}}},
	// top, y points down
	{mgl32.Vec3{.9, .6, .1}, mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{-.5, -.5, -.5}, {.5, -.5, .5}, {-.5, -.5, .5}, {.5, -.5, -.5}}},
	// bottom
	{mgl32.Vec3{.8, .1, .1}, mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{-.5, .5, -.5}, {.5, .5, .5}, {-.5, .5, .5}, {.5, .5, -.5}}},
	// nose
	{mgl32.Vec3{.1, .1, .8}, mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{-.5, -.5, .5}, {.5, .5, .5}, {-.5, .5, .5}, {.5, -.5, .5}}},
	// tail
	{mgl32.Vec3{.1, .8, .1}, mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{-.5, -.5, -.5}, {.5, .5, -.5}, {-.5, .5, -.5}, {.5, -.5, -.5}}},
}

// Cube builds a unit cube centered on offset with one flat color per face.
func Cube(offset mgl32.Vec3) *metadata.ModelData {
	data := &metadata.ModelData{
		Name:     "cube",
		Vertices: make([]metadata.Vertex, 0, 24),
		Indices:  make([]uint32, 0, 36),
	}
	for _, f := range cubeFaces {
		base := uint32(len(data.Vertices))
		for _, c := range f.corners {
			data.Vertices = append(data.Vertices, metadata.Vertex{
				Position: c.Add(offset),
				Color:    f.color,
				Normal:   f.normal,
			})
		}
		data.Indices = append(data.Indices, base, base+1, base+2, base, base+3, base+1)
	}
	return data
}
