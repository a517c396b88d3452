package machine

import (
	"time"

	"github.com/bacalhau-project/contractnet/pkg/models"
)

// types of states a machine can be in
type machineState int

const (
	machineIdle machineState = iota // must be first

	// A bid has just been sent. This is a transient state, the machine
	// returns to idle as soon as the bid is published.
	machineBidding

	// An award was accepted and the execution is being started.
	machineWon

	// The machine is busy executing a job.
	machineExecuting

	machineStopped
)

func (s machineState) String() string {
	return [...]string{"Idle", "Bidding", "Won", "Executing", "Stopped"}[s]
}

// Execution is the job a machine is currently executing.
type Execution struct {
	JobID        string
	JobType      models.JobType
	SupervisorID string
	Duration     time.Duration
	StartedAt    time.Time
}

// Stats are the counters a machine keeps over its lifetime.
type Stats struct {
	BidsSent       uint64 `json:"bids_sent"`
	RejectionsSent uint64 `json:"rejections_sent"`
	JobsWon        uint64 `json:"jobs_won"`
	BidsLost       uint64 `json:"bids_lost"`
	JobsCompleted  uint64 `json:"jobs_completed"`
	AwardsIgnored  uint64 `json:"awards_ignored"`
}

// pendingBid is a bid this machine sent and has not heard back about yet.
type pendingBid struct {
	bid          models.Bid
	jobType      models.JobType
	supervisorID string
}

// types of events consumed by the machine's run loop
type eventKind int

const (
	eventCFP eventKind = iota
	eventAward
	eventReject
)

func (k eventKind) String() string {
	return [...]string{"CFP", "Award", "Reject"}[k]
}

type event struct {
	kind       eventKind
	cfp        models.CallForProposals
	award      models.Award
	reject     models.Reject
	receivedAt time.Time
}
