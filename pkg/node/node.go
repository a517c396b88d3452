package node

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/contractnet/pkg/config/types"
	"github.com/bacalhau-project/contractnet/pkg/lib/validate"
	"github.com/bacalhau-project/contractnet/pkg/models"
	"github.com/bacalhau-project/contractnet/pkg/publicapi"
	"github.com/bacalhau-project/contractnet/pkg/pubsub"
)

const component = "Node"

// Agent is a supervisor or a machine.
type Agent interface {
	models.AgentInfoProvider
	ID() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// NodeConfig describes a single agent process.
type NodeConfig struct {
	Agent Agent
	// Bus is closed when the node stops if OwnsBus is set.
	Bus     pubsub.Bus
	OwnsBus bool
	API     types.API
}

// Node runs an agent and its optional status API.
type Node struct {
	// Visible for testing
	ID        string
	Agent     Agent
	APIServer *publicapi.Server

	bus     pubsub.Bus
	ownsBus bool
}

func NewNode(config NodeConfig) (*Node, error) {
	if err := validate.NotNil(config.Agent, "node agent cannot be nil"); err != nil {
		return nil, newConfigError(err, "invalid node configuration")
	}
	n := &Node{
		ID:      config.Agent.ID(),
		Agent:   config.Agent,
		bus:     config.Bus,
		ownsBus: config.OwnsBus,
	}
	if config.API.Enabled {
		server, err := publicapi.NewAPIServer(publicapi.ServerParams{
			Address: config.API.Host,
			Port:    config.API.Port,
			Agent:   config.Agent,
		})
		if err != nil {
			return nil, err
		}
		n.APIServer = server
	}
	return n, nil
}

// Start starts the agent, then the status API if enabled.
func (n *Node) Start(ctx context.Context) error {
	if err := n.Agent.Start(ctx); err != nil {
		return err
	}
	if n.APIServer != nil {
		if err := n.APIServer.ListenAndServe(ctx); err != nil {
			_ = n.Agent.Stop(ctx)
			return err
		}
		log.Ctx(ctx).Info().Msgf("%s status API available at %s/api/v1/stats", n.ID, n.APIServer.GetURI())
	}
	return nil
}

// Stop stops the status API, the agent and the bus it owns.
func (n *Node) Stop(ctx context.Context) error {
	var errs *multierror.Error
	if n.APIServer != nil {
		errs = multierror.Append(errs, n.APIServer.Shutdown(ctx))
	}
	errs = multierror.Append(errs, n.Agent.Stop(ctx))
	if n.ownsBus && n.bus != nil {
		errs = multierror.Append(errs, n.bus.Close(ctx))
	}
	return errs.ErrorOrNil()
}

// GetAgentInfo returns the agent's state and counters.
func (n *Node) GetAgentInfo(ctx context.Context) models.AgentInfo {
	return n.Agent.GetAgentInfo(ctx)
}
