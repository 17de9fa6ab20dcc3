package event

import (
	"slices"
	"sync"

	"github.com/assetaudit/backend/internal/domain/shared"
)

// HandlerRegistry keeps handlers per event type in registration order.
// A handler registered without types receives every event.
type HandlerRegistry struct {
	mu       sync.RWMutex
	byType   map[string][]shared.EventHandler
	wildcard []shared.EventHandler
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{byType: make(map[string][]shared.EventHandler)}
}

// Register adds h for the given types. Registering the same handler twice for a type is a no-op.
func (r *HandlerRegistry) Register(h shared.EventHandler, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(eventTypes) == 0 {
		r.wildcard = appendUnique(r.wildcard, h)
		return
	}
	for _, t := range eventTypes {
		r.byType[t] = appendUnique(r.byType[t], h)
	}
}

// Unregister removes h from every type and from the wildcard list
func (r *HandlerRegistry) Unregister(h shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = slices.DeleteFunc(r.wildcard, func(x shared.EventHandler) bool { return x == h })
	for t, hs := range r.byType {
		hs = slices.DeleteFunc(hs, func(x shared.EventHandler) bool { return x == h })
		if len(hs) == 0 {
			delete(r.byType, t)
			continue
		}
		r.byType[t] = hs
	}
}

// Handlers returns the handlers for eventType followed by the wildcard handlers
func (r *HandlerRegistry) Handlers(eventType string) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := slices.Clone(r.byType[eventType])
	for _, h := range r.wildcard {
		out = appendUnique(out, h)
	}
	return out
}

// Len counts distinct registered handlers
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []shared.EventHandler
	for _, hs := range r.byType {
		for _, h := range hs {
			all = appendUnique(all, h)
		}
	}
	for _, h := range r.wildcard {
		all = appendUnique(all, h)
	}
	return len(all)
}

func appendUnique(hs []shared.EventHandler, h shared.EventHandler) []shared.EventHandler {
	if slices.Contains(hs, h) {
		return hs
	}
	return append(hs, h)
}
