package stub

import (
	"fmt"
	"reflect"
	"sync"

	"mercator-hq/interpose/pkg/dispatch"
)

// DefaultFunc is a default method body. It runs as the base implementation
// of methods registered with RegisterDefault.
type DefaultFunc func(receiver any, args []any) (any, error)

type methodKey struct {
	contract reflect.Type
	name     string
}

// Catalog caches descriptors per (contract, method) and holds default
// method bodies. A Catalog is safe for concurrent use and is normally
// shared by every stub of a composition root.
type Catalog struct {
	mu          sync.RWMutex
	descriptors map[methodKey]dispatch.Descriptor
	defaults    map[methodKey]DefaultFunc
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		descriptors: make(map[methodKey]dispatch.Descriptor),
		defaults:    make(map[methodKey]DefaultFunc),
	}
}

// RegisterDefault registers a default body for a contract method.
// Descriptors for that method built afterwards report HasDefault.
func (c *Catalog) RegisterDefault(contract reflect.Type, method string, fn DefaultFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: nil default body for %s.%s", dispatch.ErrInvalidDescriptor, contract, method)
	}
	if _, err := dispatch.DescriptorOf(contract, method); err != nil {
		return err
	}

	k := methodKey{contract: contract, name: method}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults[k] = fn
	delete(c.descriptors, k)
	return nil
}

// Descriptor returns the cached descriptor for a contract method.
func (c *Catalog) Descriptor(contract reflect.Type, method string) (dispatch.Descriptor, error) {
	k := methodKey{contract: contract, name: method}

	c.mu.RLock()
	d, ok := c.descriptors[k]
	c.mu.RUnlock()
	if ok {
		return d, nil
	}

	d, err := dispatch.DescriptorOf(contract, method)
	if err != nil {
		return dispatch.Descriptor{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.defaults[k]; ok {
		d = d.WithDefault()
	}
	c.descriptors[k] = d
	return d, nil
}

// Default returns the registered default body for a contract method.
func (c *Catalog) Default(contract reflect.Type, method string) (DefaultFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn, ok := c.defaults[methodKey{contract: contract, name: method}]
	return fn, ok
}

// Len returns the number of cached descriptors.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.descriptors)
}

// ClearTypeCache drops every cached descriptor. Registered defaults stay.
func (c *Catalog) ClearTypeCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.descriptors = make(map[methodKey]dispatch.Descriptor)
}
