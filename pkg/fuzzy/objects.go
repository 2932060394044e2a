/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: objects.go
Description: Process-wide handles for models, variables and sets, and a handle table
that lets callers address any registered object by its number.
*/

package fuzzy

import (
	"strings"
	"sync"
	"sync/atomic"
)

// Handle identifies a fuzzy object for the lifetime of the process. Zero is never issued.
type Handle uint32

var lastHandle atomic.Uint32

func nextHandle() Handle {
	return Handle(lastHandle.Add(1))
}

// Kind tells which type of object a handle points at
type Kind string

const (
	KindModel    Kind = "model"
	KindVariable Kind = "variable"
	KindSet      Kind = "set"
)

// Object is anything addressable through the handle table
type Object interface {
	Handle() Handle
	Name() string
	Kind() Kind
}

// Objects maps handles to registered objects. Safe for concurrent use.
type Objects struct {
	mu      sync.RWMutex
	objects map[Handle]Object
}

// NewObjects creates an empty handle table
func NewObjects() *Objects {
	return &Objects{objects: make(map[Handle]Object)}
}

// Register adds obj to the table
func (o *Objects) Register(obj Object) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[obj.Handle()] = obj
}

// Unregister removes h and reports whether it was present
func (o *Objects) Unregister(h Handle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.objects[h]
	delete(o.objects, h)
	return ok
}

// Lookup returns the object registered under h
func (o *Objects) Lookup(h Handle) (Object, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	obj, ok := o.objects[h]
	return obj, ok
}

// Len returns the number of registered objects
func (o *Objects) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.objects)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
