package events

import (
	"sync"
)

// Bus is a lightweight channel-based pub/sub broker. Publishers never block:
// payloads for slow subscribers are dropped rather than stalling execution.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[Event]map[int]chan any
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event]map[int]chan any)}
}

// Subscribe registers a listener for an event and returns the channel plus
// an unsubscribe function. The channel is closed on unsubscribe.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[e] == nil {
		b.subs[e] = make(map[int]chan any)
	}
	id := b.nextID
	b.nextID++
	ch := make(chan any, buffer)
	b.subs[e][id] = ch

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[e][id]; ok {
				delete(b.subs[e], id)
				close(c)
			}
		})
	}
	return ch, unsub
}

// Publish fans the payload out to current subscribers without blocking.
func (b *Bus) Publish(e Event, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e] {
		select {
		case ch <- payload:
		default:
			// slow subscriber, drop
		}
	}
}
