package pubsub

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// InMemoryBus is a synchronous in-process Bus. Publish delivers to every
// subscriber of the topic before returning. It is used in tests and by the
// in-memory devstack.
type InMemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*inMemorySubscription
	closed bool
}

type inMemorySubscription struct {
	topic      string
	subscriber Subscriber[[]byte]
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		subs: make(map[string][]*inMemorySubscription),
	}
}

func (b *InMemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	// copy so handlers can publish or (un)subscribe without deadlocking
	subs := append([]*inMemorySubscription(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		// each subscriber gets its own copy of the payload
		msg := append([]byte(nil), payload...)
		if err := sub.subscriber.Handle(ctx, msg); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("Topic", topic).Msg("in-memory subscriber failed to handle message")
		}
	}
	return nil
}

func (b *InMemoryBus) Subscribe(ctx context.Context, topic string, subscriber Subscriber[[]byte]) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	sub := &inMemorySubscription{topic: topic, subscriber: subscriber}
	b.subs[topic] = append(b.subs[topic], sub)
	return SubscriptionFunc(func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs[topic] = lo.Without(b.subs[topic], sub)
		return nil
	}), nil
}

// SubscriberCount returns the number of active subscriptions on a topic.
func (b *InMemoryBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *InMemoryBus) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string][]*inMemorySubscription)
	return nil
}

// InMemorySubscriber is a simple in-memory subscriber implementation used for testing
type InMemorySubscriber[T any] struct {
	mu            sync.Mutex
	events        []T
	badSubscriber bool
}

func NewInMemorySubscriber[T any]() *InMemorySubscriber[T] {
	return &InMemorySubscriber[T]{
		events: make([]T, 0),
	}
}

// NewBadInMemorySubscriber returns a subscriber that fails to handle every message.
func NewBadInMemorySubscriber[T any]() *InMemorySubscriber[T] {
	return &InMemorySubscriber[T]{badSubscriber: true}
}

func (s *InMemorySubscriber[T]) Handle(ctx context.Context, message T) error {
	if s.badSubscriber {
		return NewTransportError("failed to handle message as I am a bad subscriber")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, message)
	return nil
}

// Events returns and clears the messages received so far.
func (s *InMemorySubscriber[T]) Events() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.events
	s.events = make([]T, 0)
	return res
}

// Peek returns the messages received so far without clearing them.
func (s *InMemorySubscriber[T]) Peek() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.events...)
}

// compile-time interface assertions
var _ Bus = (*InMemoryBus)(nil)
var _ Subscriber[string] = (*InMemorySubscriber[string])(nil)
