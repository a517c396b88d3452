package pubsub

import "context"

// Bus is a topic addressed publish/subscribe transport with at-least-once delivery.
// Topics are slash separated names such as "jobs/cfp" or "jobs/bid/supervisor_001".
type Bus interface {
	// Publish a payload on a topic
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe to payloads published on a topic
	Subscribe(ctx context.Context, topic string, subscriber Subscriber[[]byte]) (Subscription, error)
	// Close the Bus and release resources, if any
	Close(ctx context.Context) error
}

// Subscriber handles messages published on a Bus
type Subscriber[T any] interface {
	Handle(ctx context.Context, message T) error
}

// SubscriberFunc is a helper function that implements Subscriber interface
type SubscriberFunc[T any] func(ctx context.Context, message T) error

func (f SubscriberFunc[T]) Handle(ctx context.Context, message T) error {
	return f(ctx, message)
}

// Subscription is returned by Bus.Subscribe and stops delivery when unsubscribed.
type Subscription interface {
	Unsubscribe() error
}

// SubscriptionFunc is a helper function that implements Subscription interface
type SubscriptionFunc func() error

func (f SubscriptionFunc) Unsubscribe() error {
	return f()
}
