package core

import "fmt"

// IDAllocator hands out object identifiers. Released ids are reused
// before new ones are minted. The zero value is ready to use.
type IDAllocator struct {
	owners []interface{}
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{}
}

func (a *IDAllocator) Acquire(owner interface{}) uint32 {
	for i := range a.owners {
		// Existing free spot. Take it.
		if a.owners[i] == nil {
			a.owners[i] = owner
			return uint32(i)
		}
	}
	a.owners = append(a.owners, owner)
	return uint32(len(a.owners) - 1)
}

func (a *IDAllocator) Release(id uint32) error {
	if int(id) >= len(a.owners) {
		return fmt.Errorf("identifier release: id '%d' out of range (max=%d). Nothing was done", id, len(a.owners))
	}
	if a.owners[id] == nil {
		return fmt.Errorf("identifier release: id '%d' is not in use", id)
	}
	a.owners[id] = nil
	return nil
}

// Owner returns whatever acquired id, or nil.
func (a *IDAllocator) Owner(id uint32) interface{} {
	if int(id) >= len(a.owners) {
		return nil
	}
	return a.owners[id]
}

// Reset forgets every issued id; the next Acquire returns 0.
func (a *IDAllocator) Reset() {
	a.owners = nil
}

func (a *IDAllocator) Count() int {
	n := 0
	for _, o := range a.owners {
		if o != nil {
			n++
		}
	}
	return n
}
