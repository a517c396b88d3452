package configflags

import "github.com/bacalhau-project/contractnet/pkg/config/types"

var APIFlags = []Definition{
	{
		FlagName:     "api",
		ConfigPath:   types.APIEnabledKey,
		DefaultValue: Default.API.Enabled,
		Description:  `Serve the agent's state and counters over HTTP.`,
	},
	{
		FlagName:     "api-host",
		ConfigPath:   types.APIHostKey,
		DefaultValue: Default.API.Host,
		Description:  `The host the status API listens on.`,
	},
	{
		FlagName:     "api-port",
		ConfigPath:   types.APIPortKey,
		DefaultValue: Default.API.Port,
		Description:  `The port the status API listens on (0 picks a free port).`,
	},
}
