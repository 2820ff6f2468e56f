// Package session implements the client side of the session lifecycle:
// an idle-timeout timer with a warning stage, a cross-tab broadcaster
// over a shared key-value channel, a server session validator, and the
// auto-logout controller that composes them.
package session

import "sync"

// Handler receives change notifications for a published key.
type Handler func(key, value string)

// Channel is the broadcast medium between same-origin tabs. A browser
// frontend backs this with localStorage plus storage events; other
// clients can substitute any shared key-value store whose writes
// notify subscribers.
type Channel interface {
	// Publish writes value under key and notifies subscribers.
	Publish(key, value string) error
	// Remove deletes key without notifying. Used to erase pulse
	// messages so late joiners never see them as initial state.
	Remove(key string) error
	// Subscribe registers a handler for publish notifications and
	// returns an unsubscribe function.
	Subscribe(handler Handler) func()
}

// MemoryChannel is an in-process Channel for tests and single-process
// multi-window clients. Notifications are delivered synchronously on
// the publishing goroutine.
type MemoryChannel struct {
	mu       sync.Mutex
	values   map[string]string
	handlers map[int]Handler
	nextID   int
}

func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{
		values:   make(map[string]string),
		handlers: make(map[int]Handler),
	}
}

func (c *MemoryChannel) Publish(key, value string) error {
	c.mu.Lock()
	c.values[key] = value
	notify := make([]Handler, 0, len(c.handlers))
	for _, h := range c.handlers {
		notify = append(notify, h)
	}
	c.mu.Unlock()

	for _, h := range notify {
		h(key, value)
	}
	return nil
}

func (c *MemoryChannel) Remove(key string) error {
	c.mu.Lock()
	delete(c.values, key)
	c.mu.Unlock()
	return nil
}

// Get returns the current value under key. Test helper, not part of
// the Channel interface.
func (c *MemoryChannel) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *MemoryChannel) Subscribe(handler Handler) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = handler
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}
