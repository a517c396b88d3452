//go:build unit || !integration

package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
)

type InMemoryBusSuite struct {
	suite.Suite
	bus *InMemoryBus
	ctx context.Context
}

func TestInMemoryBusSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBusSuite))
}

func (s *InMemoryBusSuite) SetupTest() {
	s.bus = NewInMemoryBus()
	s.ctx = context.Background()
}

func (s *InMemoryBusSuite) TestPublishFansOutByTopic() {
	cfp1 := NewInMemorySubscriber[[]byte]()
	cfp2 := NewInMemorySubscriber[[]byte]()
	award := NewInMemorySubscriber[[]byte]()

	_, err := s.bus.Subscribe(s.ctx, "jobs/cfp", cfp1)
	s.Require().NoError(err)
	_, err = s.bus.Subscribe(s.ctx, "jobs/cfp", cfp2)
	s.Require().NoError(err)
	_, err = s.bus.Subscribe(s.ctx, "jobs/award/machine_001", award)
	s.Require().NoError(err)

	s.Require().NoError(s.bus.Publish(s.ctx, "jobs/cfp", []byte("hello")))

	s.Equal([][]byte{[]byte("hello")}, cfp1.Events())
	s.Equal([][]byte{[]byte("hello")}, cfp2.Events())
	s.Empty(award.Events())
}

func (s *InMemoryBusSuite) TestPublishWithoutSubscribers() {
	s.NoError(s.bus.Publish(s.ctx, "jobs/cfp", []byte("nobody listens")))
}

func (s *InMemoryBusSuite) TestUnsubscribe() {
	subscriber := NewInMemorySubscriber[[]byte]()
	sub, err := s.bus.Subscribe(s.ctx, "jobs/cfp", subscriber)
	s.Require().NoError(err)
	s.Equal(1, s.bus.SubscriberCount("jobs/cfp"))

	s.Require().NoError(sub.Unsubscribe())
	s.Equal(0, s.bus.SubscriberCount("jobs/cfp"))

	s.Require().NoError(s.bus.Publish(s.ctx, "jobs/cfp", []byte("hello")))
	s.Empty(subscriber.Events())
}

func (s *InMemoryBusSuite) TestBadSubscriberDoesNotBlockOthers() {
	good := NewInMemorySubscriber[[]byte]()
	_, err := s.bus.Subscribe(s.ctx, "t", NewBadInMemorySubscriber[[]byte]())
	s.Require().NoError(err)
	_, err = s.bus.Subscribe(s.ctx, "t", good)
	s.Require().NoError(err)

	s.NoError(s.bus.Publish(s.ctx, "t", []byte("x")))
	s.Len(good.Events(), 1)
}

func (s *InMemoryBusSuite) TestHandlerCanPublish() {
	echo := NewInMemorySubscriber[[]byte]()
	_, err := s.bus.Subscribe(s.ctx, "pong", echo)
	s.Require().NoError(err)
	_, err = s.bus.Subscribe(s.ctx, "ping", SubscriberFunc[[]byte](func(ctx context.Context, msg []byte) error {
		return s.bus.Publish(ctx, "pong", msg)
	}))
	s.Require().NoError(err)

	s.Require().NoError(s.bus.Publish(s.ctx, "ping", []byte("1")))
	s.Equal([][]byte{[]byte("1")}, echo.Events())
}

func (s *InMemoryBusSuite) TestPayloadIsCopied() {
	subscriber := NewInMemorySubscriber[[]byte]()
	_, err := s.bus.Subscribe(s.ctx, "t", subscriber)
	s.Require().NoError(err)

	payload := []byte("abc")
	s.Require().NoError(s.bus.Publish(s.ctx, "t", payload))
	payload[0] = 'z'
	s.Equal([]byte("abc"), subscriber.Events()[0])
}

func (s *InMemoryBusSuite) TestClosed() {
	s.Require().NoError(s.bus.Close(s.ctx))

	err := s.bus.Publish(s.ctx, "t", []byte("x"))
	s.True(cnerrors.IsCode(err, cnerrors.TransportError))
	_, err = s.bus.Subscribe(s.ctx, "t", NewInMemorySubscriber[[]byte]())
	s.ErrorIs(err, ErrBusClosed)
}
