package events

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

// Broker is the in-process Bus used when no Redis backend is configured.
// Each subscriber gets its own buffered channel drained by a dedicated
// goroutine, so publishing never blocks on a slow consumer. A subscriber
// whose buffer is full has envelopes dropped; the merge-based consumers
// tolerate gaps the same way they tolerate duplicates.
type Broker struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Envelope
	closed bool
}

// NewBroker creates an in-process broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan Envelope)}
}

// Publish fans the envelope out to every live subscriber.
func (b *Broker) Publish(ctx context.Context, eventType string, payload interface{}) error {
	env, err := newEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	b.publish(env)
	eventsPublished.Inc()
	return nil
}

func (b *Broker) publish(env Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- env:
		default:
			eventsDropped.Inc()
		}
	}
}

// Subscribe registers handler and returns a cancel func that detaches it.
func (b *Broker) Subscribe(handler func(Envelope)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Envelope, subscriberBuffer)
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		for env := range ch {
			handler(env)
		}
	}()

	// Close may already have detached this subscriber and closed its channel,
	// so only close when the id is still registered
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

// Close detaches all subscribers and stops delivery.
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

var _ Bus = (*Broker)(nil)
