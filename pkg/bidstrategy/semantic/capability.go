package semantic

import (
	"context"

	"github.com/bacalhau-project/contractnet/pkg/bidstrategy"
	"github.com/bacalhau-project/contractnet/pkg/models"
)

type CapabilityStrategyParams struct {
	Capabilities models.CapabilityTable
}

// Compile-time check of interface implementation
var _ bidstrategy.SemanticBidStrategy = (*CapabilityStrategy)(nil)

// CapabilityStrategy only accepts job types present in the machine's capability table.
type CapabilityStrategy struct {
	capabilities models.CapabilityTable
}

func NewCapabilityStrategy(params CapabilityStrategyParams) *CapabilityStrategy {
	return &CapabilityStrategy{capabilities: params.Capabilities}
}

func (s *CapabilityStrategy) ShouldBid(
	_ context.Context, request bidstrategy.BidStrategyRequest) (bidstrategy.BidStrategyResponse, error) {
	if !s.capabilities.Supports(request.Job.Type) {
		return bidstrategy.NewBidResponse(false, models.ReasonCapabilityMismatch), nil
	}
	return bidstrategy.NewShouldBidResponse(), nil
}
