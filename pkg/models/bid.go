package models

import (
	"fmt"
	"time"
)

// Rejection reasons exchanged between supervisors and machines.
const (
	ReasonMachineBusy            = "machine is busy"
	ReasonCapabilityMismatch     = "capability mismatch"
	ReasonAnotherMachineSelected = "another machine was selected"
)

// Bid is a machine's offer to execute a job within ProposedTime.
type Bid struct {
	MachineID    string
	JobID        string
	ProposedTime time.Duration
	// Timestamp is when the machine submitted the bid.
	Timestamp time.Time
	// ReceivedAt is when the supervisor received the bid.
	ReceivedAt time.Time
}

func (b Bid) String() string {
	return fmt.Sprintf("bid[%s for %s: %s]", b.MachineID, b.JobID, b.ProposedTime)
}

// Rejection is a machine declining to bid on a job.
type Rejection struct {
	MachineID  string
	JobID      string
	Reason     string
	Timestamp  time.Time
	ReceivedAt time.Time
}

func (r Rejection) String() string {
	return fmt.Sprintf("rejection[%s for %s: %s]", r.MachineID, r.JobID, r.Reason)
}
