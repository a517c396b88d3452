//go:build unit || !integration

package pubsub

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodingSubscriber(t *testing.T) {
	received := NewInMemorySubscriber[int]()
	subscriber := NewDecodingSubscriber[int](func(payload []byte) (int, error) {
		return strconv.Atoi(string(payload))
	}, received)

	ctx := context.Background()
	assert.NoError(t, subscriber.Handle(ctx, []byte("42")))
	assert.NoError(t, subscriber.Handle(ctx, []byte("not a number")))
	assert.Equal(t, []int{42}, received.Events())
}
