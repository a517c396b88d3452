package devstack

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/bacalhau-project/contractnet/pkg/config"
	"github.com/bacalhau-project/contractnet/pkg/config/types"
	"github.com/bacalhau-project/contractnet/pkg/lib/validate"
)

// DefaultMachines are the machines of the classic five machine demo.
var DefaultMachines = []types.Machine{
	{ID: "machine_001", Capabilities: "job_A:3,job_B:5,job_C:7", BidRetention: types.Minute},
	{ID: "machine_002", Capabilities: "job_B:2,job_C:4,job_D:6", BidRetention: types.Minute},
	{ID: "machine_003", Capabilities: "job_A:6,job_C:3,job_E:4", BidRetention: types.Minute},
	{ID: "machine_004", Capabilities: "job_D:2,job_E:3", BidRetention: types.Minute},
	{ID: "machine_005", Capabilities: "job_A:4,job_B:4,job_C:4,job_D:4,job_E:4", BidRetention: types.Minute},
}

type DevStackConfig struct {
	// Transport is "nats", which starts an embedded server, or "inmemory".
	Transport string
	// BusPort is the port of the embedded NATS server. 0 picks a free port.
	BusPort    int
	Supervisor types.Supervisor
	Machines   []types.Machine
	// APIPort is the status API port of the supervisor, machines use the following ports.
	// 0 disables the status API.
	APIPort int
	// Clock is shared by every agent. Defaults to the system clock.
	Clock clock.Clock
}

func defaultDevStackConfig() *DevStackConfig {
	sup := config.Default.Supervisor
	sup.JobInterval = 8 * types.Second
	sup.Deadline = 3 * types.Second
	return &DevStackConfig{
		Transport:  types.TransportNATS,
		BusPort:    config.DefaultBusPort,
		Supervisor: sup,
		Machines:   append([]types.Machine(nil), DefaultMachines...),
	}
}

func (o *DevStackConfig) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Transport", o.Transport).
		Int("BusPort", o.BusPort).
		Str("Supervisor", o.Supervisor.ID).
		Int("Machines", len(o.Machines)).
		Int("APIPort", o.APIPort)
}

func (o *DevStackConfig) Validate() error {
	err := errors.Join(
		validate.OneOf(o.Transport, []string{types.TransportNATS, types.TransportInMemory},
			"devstack transport must be nats or inmemory, got %q", o.Transport),
		validate.IsGreaterOrEqualToZero(o.BusPort, "devstack bus port cannot be negative"),
		validate.IsGreaterOrEqualToZero(o.APIPort, "devstack API port cannot be negative"),
		validate.IsNotEmpty(o.Machines, "devstack needs at least one machine"),
		o.Supervisor.Validate(),
	)
	ids := map[string]struct{}{o.Supervisor.ID: {}}
	for _, m := range o.Machines {
		err = errors.Join(err, m.Validate())
		if _, ok := ids[m.ID]; ok {
			err = errors.Join(err, fmt.Errorf("duplicate agent id %q", m.ID))
		}
		ids[m.ID] = struct{}{}
	}
	return err
}

type ConfigOption = func(cfg *DevStackConfig)

func WithTransport(transport string) ConfigOption {
	return func(cfg *DevStackConfig) {
		cfg.Transport = transport
	}
}

func WithBusPort(port int) ConfigOption {
	return func(cfg *DevStackConfig) {
		cfg.BusPort = port
	}
}

func WithSupervisor(sup types.Supervisor) ConfigOption {
	return func(cfg *DevStackConfig) {
		cfg.Supervisor = sup
	}
}

func WithMachines(machines ...types.Machine) ConfigOption {
	return func(cfg *DevStackConfig) {
		cfg.Machines = machines
	}
}

func WithAPIPort(port int) ConfigOption {
	return func(cfg *DevStackConfig) {
		cfg.APIPort = port
	}
}

func WithClock(clk clock.Clock) ConfigOption {
	return func(cfg *DevStackConfig) {
		cfg.Clock = clk
	}
}
