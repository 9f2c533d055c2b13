package renderer

import "github.com/spaghettifunk/curen/engine/renderer/metadata"

// Backend is everything the engine needs from a graphics API.
type Backend interface {
	metadata.Device
	metadata.ModelFactory
	metadata.PipelineFactory
	metadata.UniformFactory
	Initialize(appName string) error
	Shutdown() error
}
