package symbols

import "github.com/retroenv/retrogolib/set"

// OrderedSet is a set that keeps the order in which items were first added.
type OrderedSet[T comparable] struct {
	items []T
	seen  set.Set[T]
}

// NewOrderedSet creates a new ordered set.
func NewOrderedSet[T comparable]() *OrderedSet[T] {
	return &OrderedSet[T]{
		seen: set.New[T](),
	}
}

// Add adds the item if it is not part of the set yet and returns whether it was added.
func (s *OrderedSet[T]) Add(item T) bool {
	if s.seen.Contains(item) {
		return false
	}
	s.seen.Add(item)
	s.items = append(s.items, item)
	return true
}

// Contains returns whether the item is part of the set.
func (s *OrderedSet[T]) Contains(item T) bool {
	return s.seen.Contains(item)
}

// Items returns a copy of all items in insertion order.
func (s *OrderedSet[T]) Items() []T {
	items := make([]T, len(s.items))
	copy(items, s.items)
	return items
}

// Len returns the number of items.
func (s *OrderedSet[T]) Len() int {
	return len(s.items)
}
