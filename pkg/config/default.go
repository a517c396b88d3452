package config

import (
	"github.com/samber/lo"

	"github.com/bacalhau-project/contractnet/pkg/config/types"
	"github.com/bacalhau-project/contractnet/pkg/models"
)

const (
	DefaultBusPort = 4222
	DefaultAPIPort = 1234
	// DefaultConfigDir holds config.yaml unless --config-dir says otherwise.
	DefaultConfigDir = "~/.contractnet"
	ConfigFileName   = "config.yaml"
)

// Default is the default configuration of every contractnet agent.
var Default = types.ContractNet{
	Bus: types.Bus{
		Transport:     types.TransportNATS,
		Address:       "127.0.0.1",
		Port:          DefaultBusPort,
		ReconnectWait: 2 * types.Second,
	},
	Supervisor: types.Supervisor{
		ID:          "supervisor_001",
		Deadline:    3 * types.Second,
		JobInterval: 10 * types.Second,
		StartDelay:  types.Second,
		JobTypes:    lo.Map(models.DefaultJobTypes, func(t models.JobType, _ int) string { return t.String() }),
	},
	Machine: types.Machine{
		BidRetention: types.Minute,
	},
	API: types.API{
		Enabled: false,
		Host:    "0.0.0.0",
		Port:    DefaultAPIPort,
	},
	Logging: types.Logging{
		Level: "info",
		Mode:  "default",
	},
}
