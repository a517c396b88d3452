package bidstrategy

import (
	"context"

	"github.com/bacalhau-project/contractnet/pkg/models"
)

// BidStrategyRequest describes a call for proposals received by a machine.
type BidStrategyRequest struct {
	MachineID    string
	SupervisorID string
	Job          models.Job
}

// BidStrategyResponse is the outcome of a strategy. Reason is sent to the
// supervisor as the rejection reason when ShouldBid is false.
type BidStrategyResponse struct {
	ShouldBid bool
	Reason    string
}

// NewShouldBidResponse returns a response that accepts the job.
func NewShouldBidResponse() BidStrategyResponse {
	return BidStrategyResponse{
		ShouldBid: true,
		Reason:    "this machine supports the job",
	}
}

// NewBidResponse returns a response with the given decision and reason.
func NewBidResponse(shouldBid bool, reason string) BidStrategyResponse {
	return BidStrategyResponse{
		ShouldBid: shouldBid,
		Reason:    reason,
	}
}

// SemanticBidStrategy decides whether a machine should bid on a job.
type SemanticBidStrategy interface {
	ShouldBid(ctx context.Context, request BidStrategyRequest) (BidStrategyResponse, error)
}
