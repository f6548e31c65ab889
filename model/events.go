package model

import "sync"

// Handler observes a lifecycle event. For *ing events a false return
// cancels the operation, which then silently returns the unchanged
// model; returns from *ed events are ignored.
type Handler func(*Instance) bool

// ClassHandler observes the once-per-class booting/booted events.
type ClassHandler func(*Class)

// Observer bundles one handler per event name. Nil fields are skipped.
type Observer struct {
	Booting   ClassHandler
	Booted    ClassHandler
	Hydrating Handler
	Hydrated  Handler
	Creating  Handler
	Created   Handler
	Updating  Handler
	Updated   Handler
	Saving    Handler
	Saved     Handler
	Deleting  Handler
	Deleted   Handler
}

// bus dispatches lifecycle events for one class.
type bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	class    map[string][]ClassHandler
}

func newBus() *bus {
	return &bus{
		handlers: make(map[string][]Handler),
		class:    make(map[string][]ClassHandler),
	}
}

func (b *bus) on(event string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], h)
}

func (b *bus) onClass(event string, h ClassHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.class[event] = append(b.class[event], h)
}

// fire dispatches event and reports whether the operation proceeds.
func (b *bus) fire(event string, m *Instance) bool {
	b.mu.RLock()
	hs := b.handlers[event]
	b.mu.RUnlock()
	for _, h := range hs {
		if !h(m) {
			return false
		}
	}
	return true
}

func (b *bus) fireClass(event string, c *Class) {
	b.mu.RLock()
	hs := b.class[event]
	b.mu.RUnlock()
	for _, h := range hs {
		h(c)
	}
}

// On registers a handler for a lifecycle event name (creating, created,
// updating, updated, saving, saved, deleting, deleted, hydrating,
// hydrated).
func (c *Class) On(event string, h Handler) *Class {
	c.events.on(event, h)
	return c
}

// OnClass registers a handler for booting or booted.
func (c *Class) OnClass(event string, h ClassHandler) *Class {
	c.events.onClass(event, h)
	return c
}

// Observe registers every non-nil handler of the observer.
func (c *Class) Observe(o Observer) *Class {
	if o.Booting != nil {
		c.events.onClass("booting", o.Booting)
	}
	if o.Booted != nil {
		c.events.onClass("booted", o.Booted)
	}
	pairs := map[string]Handler{
		"hydrating": o.Hydrating, "hydrated": o.Hydrated,
		"creating": o.Creating, "created": o.Created,
		"updating": o.Updating, "updated": o.Updated,
		"saving": o.Saving, "saved": o.Saved,
		"deleting": o.Deleting, "deleted": o.Deleted,
	}
	for event, h := range pairs {
		if h != nil {
			c.events.on(event, h)
		}
	}
	return c
}
