// Package events carries session-state notifications from the chat services
// to rendering collaborators. It replaces the web UI's window-scoped custom
// event dispatch with an explicit, typed subscription interface.
package events

import "sync"

// Kind identifies what part of the session changed.
type Kind string

const (
	KindMessagesUpdated      Kind = "messages_updated"
	KindConversationsUpdated Kind = "conversations_updated"
	KindSessionReset         Kind = "session_reset"
)

// Event is one notification. ConversationID is the conversation concerned,
// when there is one.
type Event struct {
	Kind           Kind
	ConversationID string
}

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(Event)

// Bus is a minimal in-process publish/subscribe fan-out.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all subsequent events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers evt to every subscriber. A nil Bus drops events, so
// wiring a bus is optional for callers that do not need notifications.
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}
