package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/curen/engine/assets"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

// ModelSystem uploads geometry and keeps one GPU model per name.
type ModelSystem struct {
	factory metadata.ModelFactory
	assets  *assets.AssetManager
	jobs    *JobSystem

	models map[string]metadata.Model
}

func NewModelSystem(factory metadata.ModelFactory, am *assets.AssetManager, jobs *JobSystem) *ModelSystem {
	return &ModelSystem{
		factory: factory,
		assets:  am,
		jobs:    jobs,
		models:  make(map[string]metadata.Model),
	}
}

// Acquire uploads data unless a model with the same name already exists.
func (ms *ModelSystem) Acquire(data *metadata.ModelData) (metadata.Model, error) {
	if m, ok := ms.models[data.Name]; ok {
		return m, nil
	}
	m, err := ms.factory.CreateModel(data)
	if err != nil {
		return nil, fmt.Errorf("model '%s': %w", data.Name, err)
	}
	ms.models[data.Name] = m
	core.LogDebug("Model '%s' cached.", data.Name)
	return m, nil
}

func (ms *ModelSystem) Get(name string) (metadata.Model, bool) {
	m, ok := ms.models[name]
	return m, ok
}

// LoadAll parses the files on the job workers and uploads the results on
// the calling goroutine, in the order of paths. Every parse error is
// reported; nothing is uploaded if any file fails.
func (ms *ModelSystem) LoadAll(paths []string) ([]metadata.Model, error) {
	parsed := make([]*metadata.ModelData, len(paths))
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		i, path := i, path
		wg.Add(1)
		ms.jobs.Submit(JobTask{
			Run: func() (interface{}, error) {
				return ms.assets.LoadModel(path)
			},
			OnComplete: func(result interface{}) {
				parsed[i] = result.(*metadata.ModelData)
				wg.Done()
			},
			OnFailure: func(err error) {
				errs[i] = err
				wg.Done()
			},
		})
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	out := make([]metadata.Model, 0, len(parsed))
	for _, data := range parsed {
		m, err := ms.Acquire(data)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (ms *ModelSystem) Shutdown() error {
	for name, m := range ms.models {
		m.Destroy()
		delete(ms.models, name)
	}
	return nil
}
