package models

import (
	"context"
)

type AgentKind string

const (
	AgentKindSupervisor AgentKind = "supervisor"
	AgentKindMachine    AgentKind = "machine"
)

// AgentInfo is a point in time view of a running agent.
type AgentInfo struct {
	Kind  AgentKind `json:"kind"`
	ID    string    `json:"id"`
	State string    `json:"state"`
	// CurrentJob is the job being auctioned by a supervisor or executed by a machine.
	CurrentJob   string `json:"current_job,omitempty"`
	Capabilities string `json:"capabilities,omitempty"`
	// Stats holds the agent's counters.
	Stats any `json:"stats"`
}

type AgentInfoProvider interface {
	GetAgentInfo(ctx context.Context) AgentInfo
}
