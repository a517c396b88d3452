package devstack

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bacalhau-project/contractnet/pkg/config/types"
	"github.com/bacalhau-project/contractnet/pkg/lib/network"
	"github.com/bacalhau-project/contractnet/pkg/machine"
	"github.com/bacalhau-project/contractnet/pkg/models"
	"github.com/bacalhau-project/contractnet/pkg/node"
	"github.com/bacalhau-project/contractnet/pkg/pubsub"
	"github.com/bacalhau-project/contractnet/pkg/pubsub/nats"
	"github.com/bacalhau-project/contractnet/pkg/supervisor"
	"github.com/bacalhau-project/contractnet/pkg/system"
)

const busHost = "127.0.0.1"

// DevStack is a supervisor and its machines running in a single process
// around an embedded bus.
type DevStack struct {
	Supervisor *supervisor.Supervisor
	Machines   []*machine.Machine
	Nodes      []*node.Node
	// BusServer is nil for the in-memory transport.
	BusServer *nats.Server

	buses []pubsub.Bus
}

// Setup creates the bus and every agent. Nothing runs until Start is called.
// Resources are released by the cleanup manager.
func Setup(ctx context.Context, cm *system.CleanupManager, opts ...ConfigOption) (*DevStack, error) {
	stackConfig := defaultDevStackConfig()
	for _, opt := range opts {
		opt(stackConfig)
	}
	if err := stackConfig.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating devstack config")
	}
	log.Ctx(ctx).Info().Object("Config", stackConfig).Msg("Starting Devstack")

	stack := &DevStack{}
	newBus, err := stack.setupBus(ctx, cm, stackConfig)
	if err != nil {
		return nil, err
	}

	apiConfig := func(i int) types.API {
		if stackConfig.APIPort == 0 {
			return types.API{}
		}
		return types.API{Enabled: true, Host: busHost, Port: stackConfig.APIPort + i}
	}

	supBus, err := newBus(ctx, stackConfig.Supervisor.ID)
	if err != nil {
		return nil, err
	}
	stack.Supervisor, err = node.NewSupervisor(stackConfig.Supervisor, supBus, stackConfig.Clock)
	if err != nil {
		return nil, err
	}
	supNode, err := node.NewNode(node.NodeConfig{Agent: stack.Supervisor, API: apiConfig(0)})
	if err != nil {
		return nil, err
	}
	stack.Nodes = append(stack.Nodes, supNode)

	for i, machineConfig := range stackConfig.Machines {
		machineBus, err := newBus(ctx, machineConfig.ID)
		if err != nil {
			return nil, err
		}
		m, err := node.NewMachine(machineConfig, machineBus, stackConfig.Clock)
		if err != nil {
			return nil, err
		}
		n, err := node.NewNode(node.NodeConfig{Agent: m, API: apiConfig(i + 1)})
		if err != nil {
			return nil, err
		}
		stack.Machines = append(stack.Machines, m)
		stack.Nodes = append(stack.Nodes, n)
	}
	return stack, nil
}

type busFactory func(ctx context.Context, name string) (pubsub.Bus, error)

// setupBus starts the embedded bus and returns how agents connect to it.
// Every agent gets its own NATS connection, as it would in separate processes.
func (stack *DevStack) setupBus(ctx context.Context, cm *system.CleanupManager, cfg *DevStackConfig) (busFactory, error) {
	if cfg.Transport == types.TransportInMemory {
		bus := pubsub.NewInMemoryBus()
		stack.buses = append(stack.buses, bus)
		return func(context.Context, string) (pubsub.Bus, error) {
			return bus, nil
		}, nil
	}

	port := cfg.BusPort
	if port == 0 {
		var err error
		if port, err = network.GetFreePort(); err != nil {
			return nil, errors.Wrap(err, "failed to get free port for nats server")
		}
	}
	server, err := nats.NewServer(ctx, nats.ServerParams{
		Name: "devstack",
		Host: busHost,
		Port: port,
	})
	if err != nil {
		return nil, err
	}
	stack.BusServer = server
	cm.RegisterCallback(func() error {
		server.Stop()
		return nil
	})

	return func(ctx context.Context, name string) (pubsub.Bus, error) {
		bus, err := nats.NewBus(ctx, nats.BusParams{
			Servers: []string{server.ClientURL()},
			Name:    name,
		})
		if err != nil {
			return nil, err
		}
		stack.buses = append(stack.buses, bus)
		return bus, nil
	}, nil
}

// Start starts the machines and then the supervisor, so that every machine
// hears the first call for proposals.
func (stack *DevStack) Start(ctx context.Context) error {
	var g errgroup.Group
	for _, n := range stack.Nodes[1:] {
		n := n
		g.Go(func() error {
			return n.Start(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return stack.Nodes[0].Start(ctx)
}

// Stop stops the supervisor first so no auction is left waiting on stopped
// machines, then the machines and the buses.
func (stack *DevStack) Stop(ctx context.Context) error {
	var errs *multierror.Error
	errs = multierror.Append(errs, stack.Nodes[0].Stop(ctx))

	var g errgroup.Group
	machineErrs := make([]error, len(stack.Nodes)-1)
	for i, n := range stack.Nodes[1:] {
		i, n := i, n
		g.Go(func() error {
			machineErrs[i] = n.Stop(ctx)
			return nil
		})
	}
	_ = g.Wait()
	errs = multierror.Append(errs, machineErrs...)

	for _, bus := range stack.buses {
		errs = multierror.Append(errs, bus.Close(ctx))
	}
	stack.buses = nil
	return errs.ErrorOrNil()
}

// AgentInfos returns the state and counters of every agent, supervisor first.
func (stack *DevStack) AgentInfos(ctx context.Context) []models.AgentInfo {
	infos := make([]models.AgentInfo, 0, len(stack.Nodes))
	for _, n := range stack.Nodes {
		infos = append(infos, n.GetAgentInfo(ctx))
	}
	return infos
}

// GetNode returns the node running the agent with the given id.
func (stack *DevStack) GetNode(_ context.Context, agentID string) (*node.Node, error) {
	for _, n := range stack.Nodes {
		if n.ID == agentID {
			return n, nil
		}
	}
	return nil, fmt.Errorf("agent not found: %s", agentID)
}

// BusURL returns the URL of the embedded NATS server, or "" for the in-memory bus.
func (stack *DevStack) BusURL() string {
	if stack.BusServer == nil {
		return ""
	}
	return stack.BusServer.ClientURL()
}
