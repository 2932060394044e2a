/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: models.go
Description: Models is the registry of loaded models. Registering a model also registers
its variables and sets in the handle table so any of them can be addressed by handle.
*/

package fuzzy

import (
	"sort"
	"sync"
)

// Models is a concurrency-safe registry of named models
type Models struct {
	mu      sync.RWMutex
	models  []*Model
	objects *Objects
}

// NewModels creates a registry backed by objects; nil gets a private handle table
func NewModels(objects *Objects) *Models {
	if objects == nil {
		objects = NewObjects()
	}
	return &Models{objects: objects}
}

// Objects returns the handle table the registry writes to
func (ms *Models) Objects() *Objects {
	return ms.objects
}

// Add registers m and returns its handle. Names must be unique.
func (ms *Models) Add(m *Model) (Handle, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, existing := range ms.models {
		if existing.name == m.name {
			return 0, newError("add model", m.name, ErrDuplicate)
		}
	}
	ms.models = append(ms.models, m)
	for _, obj := range m.Objects() {
		ms.objects.Register(obj)
	}
	return m.handle, nil
}

// Replace swaps the registered model with the same name for m, or adds m
func (ms *Models) Replace(m *Model) *Model {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i, existing := range ms.models {
		if existing.name == m.name {
			ms.unregister(existing)
			ms.models[i] = m
			for _, obj := range m.Objects() {
				ms.objects.Register(obj)
			}
			return existing
		}
	}
	ms.models = append(ms.models, m)
	for _, obj := range m.Objects() {
		ms.objects.Register(obj)
	}
	return nil
}

// Remove unregisters the model with handle h
func (ms *Models) Remove(h Handle) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i, m := range ms.models {
		if m.handle == h {
			ms.unregister(m)
			ms.models = append(ms.models[:i], ms.models[i+1:]...)
			return nil
		}
	}
	return newError("remove model", "", ErrNotFound)
}

func (ms *Models) unregister(m *Model) {
	for _, obj := range m.Objects() {
		ms.objects.Unregister(obj.Handle())
	}
}

// Get returns the model with handle h
func (ms *Models) Get(h Handle) (*Model, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	for _, m := range ms.models {
		if m.handle == h {
			return m, nil
		}
	}
	return nil, newError("get model", "", ErrNotFound)
}

// ByName returns the named model
func (ms *Models) ByName(name string) (*Model, error) {
	key := normalizeName(name)
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	for _, m := range ms.models {
		if m.name == key {
			return m, nil
		}
	}
	return nil, newError("get model", name, ErrNotFound)
}

// At returns the i-th model in registration order
func (ms *Models) At(i int) (*Model, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if i < 0 || i >= len(ms.models) {
		return nil, newError("model at", "", ErrNotFound)
	}
	return ms.models[i], nil
}

// Owner returns the model that contains the variable or set with handle h
func (ms *Models) Owner(h Handle) (*Model, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	for _, m := range ms.models {
		if m.handle == h {
			return m, nil
		}
		for _, v := range m.variables {
			if v.handle == h || v.SetByHandle(h) != nil {
				return m, nil
			}
		}
	}
	return nil, newError("owner", "", ErrNotFound)
}

func (ms *Models) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.models)
}

// All returns the models in registration order
func (ms *Models) All() []*Model {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return append([]*Model(nil), ms.models...)
}

// Names returns the registered model names sorted alphabetically
func (ms *Models) Names() []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	names := make([]string, len(ms.models))
	for i, m := range ms.models {
		names[i] = m.name
	}
	sort.Strings(names)
	return names
}

// Clear unregisters every model
func (ms *Models) Clear() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, m := range ms.models {
		ms.unregister(m)
	}
	ms.models = nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
