package pubsub

import (
	"context"
	"reflect"

	"github.com/rs/zerolog/log"
)

// DecodingSubscriber decodes raw payloads and hands valid messages to the next subscriber.
// Payloads that fail to decode are dropped with a debug log and never returned as errors.
type DecodingSubscriber[T any] struct {
	decode func([]byte) (T, error)
	next   Subscriber[T]
}

func NewDecodingSubscriber[T any](decode func([]byte) (T, error), next Subscriber[T]) *DecodingSubscriber[T] {
	return &DecodingSubscriber[T]{
		decode: decode,
		next:   next,
	}
}

func (s *DecodingSubscriber[T]) Handle(ctx context.Context, payload []byte) error {
	message, err := s.decode(payload)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).Msgf("dropping payload that is not a valid %s", reflect.TypeOf(message))
		return nil
	}
	return s.next.Handle(ctx, message)
}

// compile-time interface assertions
var _ Subscriber[[]byte] = (*DecodingSubscriber[string])(nil)
