package scene

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/curen/engine/core"
	"github.com/spaghettifunk/curen/engine/renderer/metadata"
)

type Object struct {
	ID        uint32
	Model     metadata.Model
	Color     mgl32.Vec3
	Transform Transform
}

// Store owns the objects of a scene and the allocator their ids come from.
type Store struct {
	ids     *core.IDAllocator
	objects map[uint32]*Object
}

func NewStore() *Store {
	return &Store{
		ids:     core.NewIDAllocator(),
		objects: make(map[uint32]*Object),
	}
}

func (s *Store) CreateObject() *Object {
	obj := &Object{Transform: NewTransform()}
	obj.ID = s.ids.Acquire(obj)
	s.objects[obj.ID] = obj
	return obj
}

func (s *Store) Get(id uint32) (*Object, bool) {
	obj, ok := s.objects[id]
	return obj, ok
}

// Remove forgets the object; its id may be handed out again. The model is
// not destroyed since models can be shared between objects.
func (s *Store) Remove(id uint32) error {
	if err := s.ids.Release(id); err != nil {
		return err
	}
	delete(s.objects, id)
	return nil
}

// Objects returns the objects ordered by id.
func (s *Store) Objects() []*Object {
	out := make([]*Object, 0, len(s.objects))
	for _, o := range s.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Len() int {
	return len(s.objects)
}

// Reset drops every object and restarts id allocation at zero.
func (s *Store) Reset() {
	s.ids.Reset()
	s.objects = make(map[uint32]*Object)
}
