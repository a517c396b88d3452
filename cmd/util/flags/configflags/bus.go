package configflags

import (
	"fmt"

	"github.com/bacalhau-project/contractnet/pkg/config/types"
)

var BusFlags = []Definition{
	{
		FlagName:     "transport",
		ConfigPath:   types.BusTransportKey,
		DefaultValue: Default.Bus.Transport,
		Description:  fmt.Sprintf("The bus transport, one of %v.", types.Transports),
	},
	{
		FlagName:     "bus-address",
		ConfigPath:   types.BusAddressKey,
		DefaultValue: Default.Bus.Address,
		Description:  `The host of the NATS server, or the address the libp2p host listens on.`,
	},
	{
		FlagName:     "bus-port",
		ConfigPath:   types.BusPortKey,
		DefaultValue: Default.Bus.Port,
		Description:  `The port of the NATS server, or the port the libp2p host listens on (0 picks a free port).`,
	},
	{
		FlagName:     "bus-reconnect-wait",
		ConfigPath:   types.BusReconnectWaitKey,
		DefaultValue: Default.Bus.ReconnectWait,
		Description:  `The pause between NATS reconnection attempts.`,
	},
	{
		FlagName:     "peer",
		ConfigPath:   types.BusPeersKey,
		DefaultValue: Default.Bus.Peers,
		Description: `A comma-separated list of libp2p multiaddresses to connect to, ` +
			`including their /p2p/ component. Only used by the libp2p transport.`,
	},
}
