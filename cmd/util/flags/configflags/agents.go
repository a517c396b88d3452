package configflags

import (
	"github.com/bacalhau-project/contractnet/pkg/config/types"
)

var SupervisorFlags = []Definition{
	{
		FlagName:     "id",
		ConfigPath:   types.SupervisorIDKey,
		DefaultValue: Default.Supervisor.ID,
		Description:  `The id of the supervisor, e.g. supervisor_001.`,
	},
	{
		FlagName:     "deadline",
		ConfigPath:   types.SupervisorDeadlineKey,
		DefaultValue: Default.Supervisor.Deadline,
		Description:  `How long bids are collected for each job.`,
	},
	{
		FlagName:     "job-interval",
		ConfigPath:   types.SupervisorJobIntervalKey,
		DefaultValue: Default.Supervisor.JobInterval,
		Description:  `The pause between the end of an auction and the start of the next one.`,
	},
	{
		FlagName:     "start-delay",
		ConfigPath:   types.SupervisorStartDelayKey,
		DefaultValue: Default.Supervisor.StartDelay,
		Description:  `The pause before the first auction, giving machines time to subscribe.`,
	},
	{
		FlagName:     "job-types",
		ConfigPath:   types.SupervisorJobTypesKey,
		DefaultValue: Default.Supervisor.JobTypes,
		Description:  `The job types auctioned, picked at random for each auction.`,
	},
}

var MachineFlags = []Definition{
	{
		FlagName:     "id",
		ConfigPath:   types.MachineIDKey,
		DefaultValue: Default.Machine.ID,
		Description:  `The id of the machine, e.g. machine_001.`,
	},
	{
		FlagName:     "capabilities",
		ConfigPath:   types.MachineCapabilitiesKey,
		DefaultValue: Default.Machine.Capabilities,
		Description:  `The job types the machine can execute with their execution time in seconds, e.g. job_A:3,job_B:5.`,
	},
	{
		FlagName:     "bid-retention",
		ConfigPath:   types.MachineBidRetentionKey,
		DefaultValue: Default.Machine.BidRetention,
		Description:  `How long a bid can still be awarded after it was sent.`,
	},
}
