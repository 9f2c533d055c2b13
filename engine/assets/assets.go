package assets

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/curen/engine/assets/loaders"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

// Changes past this many are dropped until the next drain; one pending
// entry is enough to trigger a reload.
const pendingChanges = 64

var ErrWatcherClosed = errors.New("asset watcher already closed")

type AssetInfo struct {
	Path       string
	Type       loaders.ResourceType
	LastLoaded time.Time
}

// AssetManager loads shaders and models through registered loaders and,
// when watching, reports shader files that changed on disk.
type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[loaders.ResourceType]Loader

	mutex sync.RWMutex

	watcher  *fsnotify.Watcher
	changes  chan string
	done     chan struct{}
	wg       sync.WaitGroup
	isClosed bool
}

func NewAssetManager() *AssetManager {
	am := &AssetManager{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[loaders.ResourceType]Loader),
		changes: make(chan string, pendingChanges),
		done:    make(chan struct{}),
	}
	am.registerLoader(loaders.ResourceTypeShader, &loaders.ShaderLoader{})
	am.registerLoader(loaders.ResourceTypeModel, &loaders.ObjLoader{})
	return am
}

func (am *AssetManager) registerLoader(assetType loaders.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Load picks a loader from the file extension.
func (am *AssetManager) Load(path string) (*loaders.Resource, error) {
	assetType := loaders.TypeOf(path)
	loader, ok := am.loaders[assetType]
	if !ok {
		return nil, fmt.Errorf("no loader registered for asset '%s'", path)
	}
	res, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	am.mutex.Lock()
	am.assets[path] = AssetInfo{Path: path, Type: assetType, LastLoaded: time.Now()}
	am.mutex.Unlock()

	core.LogDebug("Loaded %s '%s'.", assetType, path)
	return res, nil
}

func (am *AssetManager) LoadShader(path string) ([]uint32, error) {
	res, err := am.Load(path)
	if err != nil {
		return nil, err
	}
	code, ok := res.Data.([]uint32)
	if !ok {
		return nil, fmt.Errorf("asset '%s' is a %s, not a shader", path, res.Type)
	}
	return code, nil
}

func (am *AssetManager) LoadModel(path string) (*metadata.ModelData, error) {
	res, err := am.Load(path)
	if err != nil {
		return nil, err
	}
	data, ok := res.Data.(*metadata.ModelData)
	if !ok {
		return nil, fmt.Errorf("asset '%s' is a %s, not a model", path, res.Type)
	}
	return data, nil
}

// Info returns when path was last loaded.
func (am *AssetManager) Info(path string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	info, ok := am.assets[path]
	return info, ok
}

// Watch starts reporting shader writes inside dir (non-recursively).
func (am *AssetManager) Watch(dir string) error {
	if am.isClosed {
		return ErrWatcherClosed
	}
	if am.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		am.watcher = w
		am.wg.Add(1)
		go am.start()
	}
	if err := am.watcher.Add(dir); err != nil {
		return err
	}
	core.LogInfo("Watching '%s' for shader changes.", dir)
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.watcher.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if loaders.TypeOf(e.Name) != loaders.ResourceTypeShader {
				continue
			}
			select {
			case am.changes <- filepath.Clean(e.Name):
			default:
			}

		case err, ok := <-am.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

// ShaderChanges drains the shader paths written since the last call
// without blocking. Each path appears once.
func (am *AssetManager) ShaderChanges() []string {
	var out []string
	seen := make(map[string]struct{})
	for {
		select {
		case p := <-am.changes:
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		default:
			return out
		}
	}
}

func (am *AssetManager) Shutdown() error {
	if am.isClosed {
		return nil
	}
	am.isClosed = true
	close(am.done)
	am.wg.Wait()
	if am.watcher != nil {
		return am.watcher.Close()
	}
	return nil
}
