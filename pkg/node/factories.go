package node

import (
	"github.com/benbjohnson/clock"

	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
	"github.com/bacalhau-project/contractnet/pkg/config/types"
	"github.com/bacalhau-project/contractnet/pkg/machine"
	"github.com/bacalhau-project/contractnet/pkg/models"
	"github.com/bacalhau-project/contractnet/pkg/pubsub"
	"github.com/bacalhau-project/contractnet/pkg/supervisor"
)

// NewSupervisor builds a supervisor from its configuration section.
// clk may be nil to use the system clock.
func NewSupervisor(cfg types.Supervisor, bus pubsub.Bus, clk clock.Clock) (*supervisor.Supervisor, error) {
	if err := ValidateSupervisor(cfg); err != nil {
		return nil, err
	}
	jobTypes, err := models.ParseJobTypes(cfg.JobTypes)
	if err != nil {
		return nil, newConfigError(err, "invalid supervisor job types")
	}
	return supervisor.NewSupervisor(supervisor.SupervisorParams{
		ID:          cfg.ID,
		Bus:         bus,
		Deadline:    cfg.Deadline.AsTimeDuration(),
		JobInterval: cfg.JobInterval.AsTimeDuration(),
		StartDelay:  cfg.StartDelay.AsTimeDuration(),
		JobTypes:    jobTypes,
		Clock:       clk,
	})
}

// NewMachine builds a machine from its configuration section.
// clk may be nil to use the system clock.
func NewMachine(cfg types.Machine, bus pubsub.Bus, clk clock.Clock) (*machine.Machine, error) {
	if err := ValidateMachine(cfg); err != nil {
		return nil, err
	}
	capabilities, err := cfg.CapabilityTable()
	if err != nil {
		return nil, newConfigError(err, "invalid machine capabilities")
	}
	return machine.NewMachine(machine.MachineParams{
		ID:           cfg.ID,
		Capabilities: capabilities,
		Bus:          bus,
		BidRetention: cfg.BidRetention.AsTimeDuration(),
		Clock:        clk,
	})
}

// ValidateSupervisor checks a supervisor configuration before anything is connected.
func ValidateSupervisor(cfg types.Supervisor) error {
	if err := cfg.Validate(); err != nil {
		return newConfigError(err, "invalid supervisor configuration")
	}
	return nil
}

// ValidateMachine checks a machine configuration before anything is connected.
func ValidateMachine(cfg types.Machine) error {
	if err := cfg.Validate(); err != nil {
		return newConfigError(err, "invalid machine configuration").
			WithHint("a machine needs --id and --capabilities, e.g. --capabilities job_A:3,job_B:5")
	}
	return nil
}

func newConfigError(err error, format string, args ...any) cnerrors.Error {
	return cnerrors.Wrap(err, format, args...).
		WithCode(cnerrors.ConfigurationError).
		WithComponent(component)
}
