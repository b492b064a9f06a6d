package events

import "sync"

// Bus fans events out to any number of subscribers. Each subscriber gets a
// buffered channel; when a subscriber falls behind, events for it are dropped
// rather than blocking the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buf    int
	// optional downstream publisher (e.g. a logger)
	tee Publisher
}

// NewBus creates a bus whose subscriber channels hold up to buf events.
func NewBus(buf int, tee Publisher) *Bus {
	if buf <= 0 {
		buf = 64
	}
	return &Bus{subs: make(map[int]chan Event), buf: buf, tee: OrNoop(tee)}
}

// Subscribe registers a new subscriber. The returned cancel func closes the
// channel and must be called when the subscriber is done.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buf)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Bus) Publish(e Event) {
	b.tee.Publish(e)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers reports the number of active subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
