package repository

import (
	"context"
	"sync"
)

// subscriberBuffer bounds how far a subscriber may lag before events are dropped.
const subscriberBuffer = 16

// Broker fans store change events out to subscribers. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type Broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan ItemEvent
	closed bool
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan ItemEvent)}
}

// Subscribe registers a subscriber. The returned channel is closed when ctx
// is done or the broker is closed.
func (b *Broker) Subscribe(ctx context.Context) <-chan ItemEvent {
	ch := make(chan ItemEvent, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(id)
	}()

	return ch
}

func (b *Broker) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers ev to every subscriber with room in its buffer
func (b *Broker) Publish(ev ItemEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscription and rejects new ones
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
