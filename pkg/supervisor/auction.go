package supervisor

import (
	"errors"
	"time"

	sync "github.com/bacalhau-project/golang-mutex-tracer"

	"github.com/bacalhau-project/contractnet/pkg/models"
)

var (
	ErrAuctionAlreadyOpen = errors.New("an auction is already open")
	ErrAuctionNotOpen     = errors.New("no auction is open")
	ErrAuctionSealed      = errors.New("auction is sealed")
	ErrWrongJob           = errors.New("reply is for another job")
	ErrLateReply          = errors.New("reply was received after the deadline")
	ErrDuplicateReply     = errors.New("machine already bid on the job")
)

// Auction holds the state of the auction for a single job.
// A bid set can only grow while the auction is open and not sealed, and sealing
// is atomic with reading it, so no bid is admitted once evaluation has started.
type Auction struct {
	mu         sync.Mutex
	job        models.Job
	deadline   time.Time
	open       bool
	sealed     bool
	bids       []models.Bid
	rejections []models.Rejection
	bidders    map[string]struct{}
	rejecters  map[string]struct{}
}

func NewAuction() *Auction {
	a := &Auction{}
	a.mu.EnableTracerWithOpts(sync.Opts{
		Threshold: 10 * time.Millisecond,
		Id:        "Auction.mu",
	})
	return a
}

// Open starts collecting replies for the job until the deadline.
func (a *Auction) Open(job models.Job, deadline time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open {
		return ErrAuctionAlreadyOpen
	}
	a.job = job
	a.deadline = deadline
	a.open = true
	a.sealed = false
	a.bids = nil
	a.rejections = nil
	a.bidders = make(map[string]struct{})
	a.rejecters = make(map[string]struct{})
	return nil
}

// Admit adds a bid to the bid set. The first bid from a machine wins over any later one.
func (a *Auction) Admit(bid models.Bid) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkAcceptingLocked(bid.JobID, bid.ReceivedAt); err != nil {
		return err
	}
	if _, ok := a.bidders[bid.MachineID]; ok {
		return ErrDuplicateReply
	}
	a.bidders[bid.MachineID] = struct{}{}
	a.bids = append(a.bids, bid)
	return nil
}

// Reject records a machine declining to bid. A rejection never removes a bid
// the same machine already placed.
func (a *Auction) Reject(rejection models.Rejection) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkAcceptingLocked(rejection.JobID, rejection.ReceivedAt); err != nil {
		return err
	}
	if _, ok := a.bidders[rejection.MachineID]; ok {
		return ErrDuplicateReply
	}
	if _, ok := a.rejecters[rejection.MachineID]; ok {
		return ErrDuplicateReply
	}
	a.rejecters[rejection.MachineID] = struct{}{}
	a.rejections = append(a.rejections, rejection)
	return nil
}

func (a *Auction) checkAcceptingLocked(jobID string, receivedAt time.Time) error {
	if !a.open {
		return ErrAuctionNotOpen
	}
	if a.sealed {
		return ErrAuctionSealed
	}
	if jobID != a.job.ID {
		return ErrWrongJob
	}
	if receivedAt.After(a.deadline) {
		return ErrLateReply
	}
	return nil
}

// Seal stops admitting replies and returns the bid set and rejections in arrival order.
func (a *Auction) Seal() ([]models.Bid, []models.Rejection, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return nil, nil, ErrAuctionNotOpen
	}
	if a.sealed {
		return nil, nil, ErrAuctionSealed
	}
	a.sealed = true
	return append([]models.Bid(nil), a.bids...), append([]models.Rejection(nil), a.rejections...), nil
}

// Conclude closes the auction and clears the job and its bid set.
func (a *Auction) Conclude() (models.Job, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.open {
		return models.Job{}, ErrAuctionNotOpen
	}
	job := a.job
	a.job = models.Job{}
	a.deadline = time.Time{}
	a.open = false
	a.sealed = false
	a.bids = nil
	a.rejections = nil
	a.bidders = nil
	a.rejecters = nil
	return job, nil
}

// Job returns the job being auctioned, if any.
func (a *Auction) Job() (models.Job, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.job, a.open
}

// Accepting returns true while replies can still be admitted.
func (a *Auction) Accepting() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open && !a.sealed
}

func (a *Auction) Deadline() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deadline
}

// BidCount returns the number of bids admitted so far.
func (a *Auction) BidCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.bids)
}
