package node

import (
	"context"

	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
	"github.com/bacalhau-project/contractnet/pkg/config/types"
	"github.com/bacalhau-project/contractnet/pkg/pubsub"
	"github.com/bacalhau-project/contractnet/pkg/pubsub/libp2p"
	"github.com/bacalhau-project/contractnet/pkg/pubsub/nats"
)

// NewBus connects to the bus described by cfg. name identifies this client in logs.
// The in-memory transport only reaches agents of the same process.
func NewBus(ctx context.Context, cfg types.Bus, name string) (pubsub.Bus, error) {
	switch cfg.Transport {
	case types.TransportNATS:
		return nats.NewBus(ctx, nats.BusParams{
			Servers:       []string{nats.ServerURL(cfg.Address, cfg.Port)},
			Name:          name,
			ReconnectWait: cfg.ReconnectWait.AsTimeDuration(),
		})
	case types.TransportLibp2p:
		peers, err := libp2p.ParsePeers(cfg.Peers)
		if err != nil {
			return nil, err
		}
		return libp2p.NewBus(ctx, libp2p.BusParams{
			Address: cfg.Address,
			Port:    cfg.Port,
			Peers:   peers,
		})
	case types.TransportInMemory:
		return pubsub.NewInMemoryBus(), nil
	default:
		return nil, cnerrors.New("unknown bus transport %q", cfg.Transport).
			WithCode(cnerrors.ConfigurationError).
			WithComponent(component).
			WithHint("use one of %v", types.Transports)
	}
}
