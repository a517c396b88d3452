package bidstrategy

import (
	"context"
)

// FixedBidStrategy is a bid strategy that always returns the same response, which is useful for testing
type FixedBidStrategy struct {
	response BidStrategyResponse
	err      error
}

// NewFixedBidStrategy creates a new FixedBidStrategy
func NewFixedBidStrategy(shouldBid bool, reason string) *FixedBidStrategy {
	return &FixedBidStrategy{
		response: NewBidResponse(shouldBid, reason),
	}
}

// NewFailingBidStrategy creates a strategy that always returns err
func NewFailingBidStrategy(err error) *FixedBidStrategy {
	return &FixedBidStrategy{err: err}
}

func (s *FixedBidStrategy) ShouldBid(_ context.Context, _ BidStrategyRequest) (BidStrategyResponse, error) {
	return s.response, s.err
}
