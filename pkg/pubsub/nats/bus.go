package nats

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/contractnet/pkg/pubsub"
)

const (
	DefaultReconnectWait = 2 * time.Second
	flushTimeout         = 2 * time.Second
)

type BusParams struct {
	// Servers is a list of NATS urls, e.g. nats://127.0.0.1:4222
	Servers []string
	// Name identifies the client connection, usually the agent id
	Name string
	// ReconnectWait is the pause between reconnection attempts. The client reconnects forever.
	ReconnectWait time.Duration
}

// Bus is a pubsub.Bus backed by a NATS connection. Topics are mapped to subjects
// by replacing "/" with ".".
type Bus struct {
	conn *nats.Conn
	name string

	mu   sync.Mutex
	subs map[*nats.Subscription]struct{}
}

// NewBus connects to NATS. Connection failures at startup are returned as
// transport errors; disconnections afterwards are retried forever.
func NewBus(ctx context.Context, params BusParams) (*Bus, error) {
	if len(params.Servers) == 0 {
		return nil, NewConfigurationError("at least one NATS server is required")
	}
	if params.ReconnectWait <= 0 {
		params.ReconnectWait = DefaultReconnectWait
	}
	logger := log.Ctx(ctx).With().Str("Bus", params.Name).Logger()

	servers := strings.Join(params.Servers, ",")
	conn, err := nats.Connect(servers,
		nats.Name(params.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(params.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("disconnected from NATS, reconnecting")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Msgf("reconnected to NATS at %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Debug().Msg("NATS connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			event := logger.Error().Err(err)
			if sub != nil {
				event = event.Str("Subject", sub.Subject)
			}
			event.Msg("NATS async error")
		}),
	)
	if err != nil {
		return nil, NewTransportWrappedError(err, "failed to connect to NATS at %s", servers).
			WithHint("start a bus with `contractnet bus` or point --bus-address/--bus-port at a running NATS server")
	}
	logger.Debug().Msgf("connected to NATS at %s", conn.ConnectedUrl())
	return &Bus{
		conn: conn,
		name: params.Name,
		subs: make(map[*nats.Subscription]struct{}),
	}, nil
}

func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	subject, err := SubjectFromTopic(topic)
	if err != nil {
		return err
	}
	if err = b.conn.Publish(subject, payload); err != nil {
		return NewTransportWrappedError(err, "failed to publish on %s", subject)
	}
	log.Ctx(ctx).Trace().Str("Subject", subject).Msgf("published %d bytes", len(payload))
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, topic string, subscriber pubsub.Subscriber[[]byte]) (pubsub.Subscription, error) {
	subject, err := SubjectFromTopic(topic)
	if err != nil {
		return nil, err
	}
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		if err := subscriber.Handle(ctx, msg.Data); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("Subject", msg.Subject).Msg("subscriber failed to handle message")
		}
	})
	if err != nil {
		return nil, NewTransportWrappedError(err, "failed to subscribe to %s", subject)
	}
	// make sure the server knows about the subscription before anything is published to it
	if err = b.conn.FlushTimeout(flushTimeout); err != nil {
		log.Ctx(ctx).Debug().Err(err).Str("Subject", subject).Msg("failed to flush subscription")
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return pubsub.SubscriptionFunc(func() error {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		if err := sub.Unsubscribe(); err != nil && b.conn.IsConnected() {
			return NewTransportWrappedError(err, "failed to unsubscribe from %s", subject)
		}
		return nil
	}), nil
}

// Close unsubscribes every remaining subscription and closes the connection.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*nats.Subscription]struct{})
	b.mu.Unlock()

	var errs *multierror.Error
	if !b.conn.IsClosed() {
		for sub := range subs {
			if err := sub.Unsubscribe(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		if b.conn.IsConnected() {
			if err := b.conn.FlushTimeout(flushTimeout); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		b.conn.Close()
	}
	log.Ctx(ctx).Debug().Str("Bus", b.name).Msg("NATS bus closed")
	return errs.ErrorOrNil()
}

// IsConnected returns true if the underlying connection is currently connected.
func (b *Bus) IsConnected() bool {
	return b.conn.IsConnected()
}

// compile-time interface assertions
var _ pubsub.Bus = (*Bus)(nil)
