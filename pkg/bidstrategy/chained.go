package bidstrategy

import (
	"context"
	"reflect"

	"github.com/rs/zerolog/log"
)

type ChainedSemanticBidStrategy struct {
	Strategies []SemanticBidStrategy
}

func NewChainedSemanticBidStrategy(strategies ...SemanticBidStrategy) *ChainedSemanticBidStrategy {
	return &ChainedSemanticBidStrategy{Strategies: strategies}
}

// AddStrategy Add new strategy to the end of the chain
func (c *ChainedSemanticBidStrategy) AddStrategy(strategy SemanticBidStrategy) {
	c.Strategies = append(c.Strategies, strategy)
}

// ShouldBid Iterate over all strategies in order, and return the first response that
// says should not bid. The order of the chain decides which rejection reason wins.
func (c *ChainedSemanticBidStrategy) ShouldBid(ctx context.Context, request BidStrategyRequest) (BidStrategyResponse, error) {
	for _, strategy := range c.Strategies {
		response, err := strategy.ShouldBid(ctx, request)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msgf("error asking bidding strategy %s if we should bid",
				reflect.TypeOf(strategy).String())
			return BidStrategyResponse{}, err
		}
		if !response.ShouldBid {
			log.Ctx(ctx).Debug().Msgf("bidding strategy %s returned should not bid on %s due to: %s",
				reflect.TypeOf(strategy).String(), request.Job, response.Reason)
			return response, nil
		}
	}

	return NewShouldBidResponse(), nil
}

// compile-time interface check
var _ SemanticBidStrategy = (*ChainedSemanticBidStrategy)(nil)
