// Package state provides ready-made state objects for dispatchers.
package state

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"mercator-hq/interpose/pkg/traits/localdata"
)

// Bucket is an in-memory property map with a local data table. It
// satisfies beanstore.Store and localdata.Provider and is safe for
// concurrent use.
type Bucket struct {
	mu    sync.RWMutex
	props map[string]any
	local localdata.Table
}

// NewBucket creates a bucket holding the given properties.
func NewBucket(props map[string]any) *Bucket {
	b := &Bucket{props: make(map[string]any, len(props))}
	for k, v := range props {
		b.props[k] = v
	}
	return b
}

// Property returns the stored value for name. The error is always nil.
func (b *Bucket) Property(name string) (any, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.props[name]
	return v, ok, nil
}

// SetProperty stores value under name. The error is always nil.
func (b *Bucket) SetProperty(name string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.props == nil {
		b.props = make(map[string]any)
	}
	b.props[name] = value
	return nil
}

// Snapshot returns a copy of the properties.
func (b *Bucket) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.props))
	for k, v := range b.props {
		out[k] = v
	}
	return out
}

// LocalTable returns the bucket's local data table.
func (b *Bucket) LocalTable() *localdata.Table { return &b.local }

// String renders the properties in key order.
func (b *Bucket) String() string {
	snap := b.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, snap[k])
	}
	return "Bucket{" + strings.Join(parts, ", ") + "}"
}
