// Package events provides typed topics that notify subscribers about mod
// load results.
package events

import (
	"fmt"
	"sync"

	"github.com/retroenv/retrogolib/log"
)

// ModRewritten is published when a mod was changed and all its references
// resolve.
type ModRewritten struct {
	Mod      string
	Platform string
	Phrases  []string
}

// ModRejected is published when a mod still has broken references after
// rewriting or a rule flagged it as not compatible.
type ModRejected struct {
	Mod      string
	Platform string
	Reasons  []string
}

// ModLoaded is published when a mod was handed to the process loader.
type ModLoaded struct {
	Mod     string
	Changed bool
	Cached  bool
}

// Bus holds the topics of all event types.
type Bus struct {
	Rewritten *Topic[ModRewritten]
	Rejected  *Topic[ModRejected]
	Loaded    *Topic[ModLoaded]
}

// NewBus returns a bus with empty topics.
func NewBus(logger *log.Logger) *Bus {
	return &Bus{
		Rewritten: NewTopic[ModRewritten](logger, "mod-rewritten"),
		Rejected:  NewTopic[ModRejected](logger, "mod-rejected"),
		Loaded:    NewTopic[ModLoaded](logger, "mod-loaded"),
	}
}

type subscriber[T any] struct {
	id      int
	handler func(T)
}

// Topic delivers events of one type to its subscribers in subscription order.
type Topic[T any] struct {
	logger *log.Logger
	name   string

	mu          sync.RWMutex
	nextID      int
	subscribers []subscriber[T]
}

// NewTopic returns a topic with the given name.
func NewTopic[T any](logger *log.Logger, name string) *Topic[T] {
	return &Topic[T]{
		logger: logger,
		name:   name,
	}
}

// Name returns the name of the topic.
func (t *Topic[T]) Name() string {
	return t.name
}

// Subscribe adds a handler and returns its id for Unsubscribe.
func (t *Topic[T]) Subscribe(handler func(T)) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	t.subscribers = append(t.subscribers, subscriber[T]{id: t.nextID, handler: handler})
	return t.nextID
}

// Unsubscribe removes the handler with the given id. It returns whether a
// handler was removed.
func (t *Topic[T]) Unsubscribe(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, sub := range t.subscribers {
		if sub.id != id {
			continue
		}
		t.subscribers = append(t.subscribers[:i:i], t.subscribers[i+1:]...)
		return true
	}
	return false
}

// Publish calls every handler with the event. A panicking handler is logged
// and does not stop the delivery to the remaining handlers.
func (t *Topic[T]) Publish(event T) {
	t.mu.RLock()
	subscribers := make([]subscriber[T], len(t.subscribers))
	copy(subscribers, t.subscribers)
	t.mu.RUnlock()

	for _, sub := range subscribers {
		t.deliver(sub, event)
	}
}

func (t *Topic[T]) deliver(sub subscriber[T], event T) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Event subscriber failed",
				log.String("topic", t.name),
				log.Int("subscriber", sub.id),
				log.String("panic", fmt.Sprint(r)))
		}
	}()
	sub.handler(event)
}
