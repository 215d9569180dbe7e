// Package symbols provides ordered registries keyed by reference signatures.
package symbols

import (
	"errors"
	"fmt"
)

// ErrDuplicate is returned when a key is registered twice.
var ErrDuplicate = errors.New("duplicate registration")

// Manager maps signature keys to items and remembers the registration order.
// T is the type of item being managed (e.g., *module.MethodReference).
type Manager[T any] struct {
	keys  []string
	items map[string]T
}

// New creates a new symbol manager.
func New[T any]() *Manager[T] {
	return &Manager[T]{
		items: make(map[string]T),
	}
}

// Add registers the item under the given key. Registering a key twice
// returns an error wrapping ErrDuplicate and keeps the first item.
func (m *Manager[T]) Add(key string, item T) error {
	if _, ok := m.items[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, key)
	}
	m.items[key] = item
	m.keys = append(m.keys, key)
	return nil
}

// Get returns the item registered under the key.
func (m *Manager[T]) Get(key string) (T, bool) {
	item, ok := m.items[key]
	return item, ok
}

// Has returns whether an item exists for the key.
func (m *Manager[T]) Has(key string) bool {
	_, ok := m.items[key]
	return ok
}

// Keys returns all keys in registration order.
func (m *Manager[T]) Keys() []string {
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Len returns the number of items in the manager.
func (m *Manager[T]) Len() int {
	return len(m.keys)
}
