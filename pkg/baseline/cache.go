// Package baseline holds the last observed value of every watched field.
//
// A Cache is owned by one running engine and injected into the dispatcher.
// Entries are never deleted: values for removed documents simply stop being
// looked up.
package baseline

import (
	"sync"

	"github.com/aretw0/introspection"
)

// Key identifies a cache entry. It is a two-part key so that no separator
// can collide with document IDs or field names.
type Key struct {
	DocumentID string
	Field      string
}

// Cache maps (document, field) pairs to their last observed value.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]any
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]any)}
}

// Get returns the baseline for the pair and whether one exists.
func (c *Cache) Get(documentID, field string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.entries[Key{DocumentID: documentID, Field: field}]
	return v, ok
}

// Set overwrites the baseline for the pair.
func (c *Cache) Set(documentID, field string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[Key{DocumentID: documentID, Field: field}] = value
}

// SetIfAbsent stores value only when the pair has no baseline yet.
// It reports whether the value was stored.
func (c *Cache) SetIfAbsent(documentID, field string, value any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := Key{DocumentID: documentID, Field: field}
	if _, ok := c.entries[k]; ok {
		return false
	}
	c.entries[k] = value
	return true
}

// Range iterates over all entries in the cache.
// callback returns true to continue, false to stop.
func (c *Cache) Range(callback func(k Key, value any) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for k, v := range c.entries {
		if !callback(k, v) {
			break
		}
	}
}

// Len returns the number of entries in the cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CacheState exposes internal state for observability.
type CacheState struct {
	Entries   int `json:"entries"`
	Documents int `json:"documents"`
}

// State implements introspection.Introspectable.
func (c *Cache) State() any {
	var state CacheState
	docs := make(map[string]struct{})
	c.Range(func(k Key, _ any) bool {
		state.Entries++
		docs[k.DocumentID] = struct{}{}
		return true
	})
	state.Documents = len(docs)
	return state
}

// ComponentType implements introspection.Component.
func (c *Cache) ComponentType() string {
	return "baseline-cache"
}

var _ introspection.Introspectable = (*Cache)(nil)
var _ introspection.Component = (*Cache)(nil)
