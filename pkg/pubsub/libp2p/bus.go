package libp2p

import (
	"context"
	"errors"
	"sync"

	libp2p_pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/contractnet/pkg/pubsub"
	"github.com/bacalhau-project/contractnet/pkg/system"
)

type BusParams struct {
	// Address and Port the host listens on. Port 0 picks a random free port.
	Address string
	Port    int
	// Peers to connect to and keep reconnecting to.
	Peers []multiaddr.Multiaddr
	// IgnoreLocal drops messages published by this same host.
	IgnoreLocal bool
}

// Bus is a pubsub.Bus backed by a libp2p host and gossipsub. Every bus topic is a
// gossipsub topic, joined the first time it is published or subscribed to.
type Bus struct {
	host        host.Host
	gossipSub   *libp2p_pubsub.PubSub
	hostID      string
	ignoreLocal bool
	cleanup     *system.CleanupManager
	cancel      context.CancelFunc

	mu     sync.Mutex
	topics map[string]*libp2p_pubsub.Topic
	closed bool
}

func NewBus(ctx context.Context, params BusParams) (*Bus, error) {
	h, err := NewHost(params.Address, params.Port)
	if err != nil {
		return nil, err
	}
	// the bus outlives the context it was created with
	busCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	gossipSub, err := libp2p_pubsub.NewGossipSub(busCtx, h)
	if err != nil {
		cancel()
		_ = h.Close()
		return nil, NewTransportWrappedError(err, "failed to start gossipsub")
	}

	b := &Bus{
		host:        h,
		gossipSub:   gossipSub,
		hostID:      h.ID().String(),
		ignoreLocal: params.IgnoreLocal,
		cleanup:     system.NewCleanupManager(),
		cancel:      cancel,
		topics:      make(map[string]*libp2p_pubsub.Topic),
	}
	ConnectToPeersContinuously(busCtx, b.cleanup, h, params.Peers)
	return b, nil
}

// Host returns the underlying libp2p host.
func (b *Bus) Host() host.Host {
	return b.host
}

// Addresses returns the addresses other agents can use as peers.
func (b *Bus) Addresses() ([]multiaddr.Multiaddr, error) {
	return P2PAddresses(b.host)
}

func (b *Bus) topic(name string) (*libp2p_pubsub.Topic, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, pubsub.ErrBusClosed
	}
	if t, ok := b.topics[name]; ok {
		return t, nil
	}
	t, err := b.gossipSub.Join(name)
	if err != nil {
		return nil, NewTransportWrappedError(err, "failed to join topic %s", name)
	}
	b.topics[name] = t
	return t, nil
}

func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	t, err := b.topic(topic)
	if err != nil {
		return err
	}
	log.Ctx(ctx).Trace().Str("Topic", topic).Msgf("Sending %d bytes", len(payload))
	if err = t.Publish(ctx, payload); err != nil {
		return NewTransportWrappedError(err, "failed to publish on %s", topic)
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, topic string, subscriber pubsub.Subscriber[[]byte]) (pubsub.Subscription, error) {
	t, err := b.topic(topic)
	if err != nil {
		return nil, err
	}
	subscription, err := t.Subscribe()
	if err != nil {
		return nil, NewTransportWrappedError(err, "failed to subscribe to %s", topic)
	}

	listenCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.listenForEvents(listenCtx, topic, subscription, subscriber)
	}()

	var once sync.Once
	unsubscribe := func() error {
		once.Do(func() {
			subscription.Cancel()
			cancel()
			<-done
		})
		return nil
	}
	b.cleanup.RegisterCallback(unsubscribe)
	return pubsub.SubscriptionFunc(unsubscribe), nil
}

func (b *Bus) listenForEvents(
	ctx context.Context, topic string, subscription *libp2p_pubsub.Subscription, subscriber pubsub.Subscriber[[]byte]) {
	for {
		msg, err := subscription.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, libp2p_pubsub.ErrSubscriptionCancelled) {
				log.Ctx(ctx).Trace().Str("Topic", topic).Msgf("libp2p subscription shutting down: %v", err)
			} else {
				log.Ctx(ctx).Error().Str("Topic", topic).Msgf(
					"libp2p encountered an unexpected error, shutting down: %v", err)
			}
			return
		}
		if b.ignoreLocal && msg.GetFrom().String() == b.hostID {
			continue
		}
		if err = subscriber.Handle(ctx, msg.Data); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("Topic", topic).Msg("subscriber failed to handle message")
		}
	}
}

// Close cancels every subscription, leaves all topics and stops the host.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	topics := b.topics
	b.topics = make(map[string]*libp2p_pubsub.Topic)
	b.mu.Unlock()

	b.cleanup.Cleanup(ctx)
	for name, t := range topics {
		if err := t.Close(); err != nil {
			log.Ctx(ctx).Debug().Err(err).Str("Topic", name).Msg("failed to close topic")
		}
	}
	b.cancel()
	if err := b.host.Close(); err != nil {
		return NewTransportWrappedError(err, "failed to close libp2p host")
	}
	return nil
}

// compile-time interface assertions
var _ pubsub.Bus = (*Bus)(nil)
