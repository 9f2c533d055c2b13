package assets

import "github.com/spaghettifunk/curen/engine/assets/loaders"

type Loader interface {
	Load(path string) (*loaders.Resource, error)
}
