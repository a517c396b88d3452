package semantic

import (
	"context"

	"github.com/bacalhau-project/contractnet/pkg/bidstrategy"
	"github.com/bacalhau-project/contractnet/pkg/models"
)

// BusyChecker reports whether a machine is currently executing a job.
type BusyChecker interface {
	Busy() bool
}

// BusyCheckerFunc is a helper function that implements BusyChecker interface
type BusyCheckerFunc func() bool

func (f BusyCheckerFunc) Busy() bool {
	return f()
}

type AvailabilityStrategyParams struct {
	Machine BusyChecker
}

// Compile-time check of interface implementation
var _ bidstrategy.SemanticBidStrategy = (*AvailabilityStrategy)(nil)

// AvailabilityStrategy rejects every job while the machine is busy.
type AvailabilityStrategy struct {
	machine BusyChecker
}

func NewAvailabilityStrategy(params AvailabilityStrategyParams) *AvailabilityStrategy {
	return &AvailabilityStrategy{machine: params.Machine}
}

func (s *AvailabilityStrategy) ShouldBid(
	_ context.Context, _ bidstrategy.BidStrategyRequest) (bidstrategy.BidStrategyResponse, error) {
	if s.machine.Busy() {
		return bidstrategy.NewBidResponse(false, models.ReasonMachineBusy), nil
	}
	return bidstrategy.NewShouldBidResponse(), nil
}
