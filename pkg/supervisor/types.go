package supervisor

import (
	"time"

	"github.com/bacalhau-project/contractnet/pkg/models"
)

// types of states a supervisor can be in
type supervisorState int

const (
	supervisorIdle supervisorState = iota // must be first

	// A job was generated and its call for proposals is being published.
	supervisorBroadcasting

	// Bids and rejections for the current job are being admitted until the deadline.
	supervisorCollecting

	// The auction is sealed and the winner is being selected.
	supervisorEvaluating

	// The award and the rejections are being published.
	supervisorAwarding

	// The auction ended without an award.
	supervisorFailed

	supervisorStopped
)

func (s supervisorState) String() string {
	return [...]string{"Idle", "Broadcasting", "Collecting", "Evaluating", "Awarding", "Failed", "Stopped"}[s]
}

// Stats are the counters a supervisor keeps over its lifetime.
type Stats struct {
	AuctionsCreated    uint64 `json:"auctions_created"`
	JobsAllocated      uint64 `json:"jobs_allocated"`
	AuctionsFailed     uint64 `json:"auctions_failed"`
	JobsCompleted      uint64 `json:"jobs_completed"`
	BidsReceived       uint64 `json:"bids_received"`
	RejectionsReceived uint64 `json:"rejections_received"`
	MessagesDropped    uint64 `json:"messages_dropped"`
}

// AuctionResult describes a concluded auction.
type AuctionResult struct {
	Job        models.Job
	Bids       []models.Bid
	Rejections []models.Rejection
	// Winner is nil when the auction failed.
	Winner      *models.Bid
	ConcludedAt time.Time
}

// Allocated returns true if the job was awarded to a machine.
func (r AuctionResult) Allocated() bool {
	return r.Winner != nil
}

// types of events consumed by the supervisor's run loop
type eventKind int

const (
	eventBidReply eventKind = iota
	eventCompletion
)

type event struct {
	kind       eventKind
	reply      models.BidReply
	completion models.Completion
	receivedAt time.Time
}
