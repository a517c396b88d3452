package models

import (
	"errors"
	"fmt"

	"github.com/bacalhau-project/contractnet/pkg/lib/validate"
)

// MessageType is the discriminator carried in the "type" field of every payload.
type MessageType string

const (
	MessageTypeCFP        MessageType = "cfp"
	MessageTypeBid        MessageType = "bid"
	MessageTypeRejection  MessageType = "rejection"
	MessageTypeAward      MessageType = "award"
	MessageTypeReject     MessageType = "reject"
	MessageTypeCompletion MessageType = "completion"
)

// Message is implemented by every payload exchanged on the bus.
type Message interface {
	MessageType() MessageType
	Validate() error
}

// CallForProposals is broadcast by a supervisor to invite bids for a job.
type CallForProposals struct {
	Type         MessageType `json:"type"`
	SupervisorID string      `json:"supervisor_id"`
	JobID        string      `json:"job_id"`
	JobType      JobType     `json:"job_type"`
	Description  string      `json:"description"`
	// Deadline is the bidding window relative to receipt, not an absolute time,
	// so agents do not need synchronized clocks.
	Deadline  Seconds   `json:"deadline"`
	Timestamp Timestamp `json:"timestamp"`
}

func (m CallForProposals) MessageType() MessageType { return MessageTypeCFP }

func (m CallForProposals) Validate() error {
	return errors.Join(
		expectType(m.Type, MessageTypeCFP),
		validate.NotBlank(m.SupervisorID, "supervisor_id is required"),
		validate.NotBlank(m.JobID, "job_id is required"),
		m.JobType.Validate(),
		validate.IsGreaterThanZero(m.Deadline, "deadline must be greater than zero"),
		m.Deadline.Validate("deadline"),
	)
}

// Job returns the job described by the call for proposals.
func (m CallForProposals) Job() Job {
	return Job{
		ID:          m.JobID,
		Type:        m.JobType,
		Description: m.Description,
		CreatedAt:   m.Timestamp.Time(),
	}
}

// BidReply is sent by a machine in response to a call for proposals.
// It is either a bid carrying ProposedTime or a rejection carrying Reason.
type BidReply struct {
	Type         MessageType `json:"type"`
	MachineID    string      `json:"machine_id"`
	JobID        string      `json:"job_id"`
	ProposedTime *Seconds    `json:"proposed_time,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	Timestamp    Timestamp   `json:"timestamp"`
}

func (m BidReply) MessageType() MessageType { return m.Type }

func (m BidReply) Validate() error {
	err := errors.Join(
		validate.NotBlank(m.MachineID, "machine_id is required"),
		validate.NotBlank(m.JobID, "job_id is required"),
	)
	switch m.Type {
	case MessageTypeBid:
		if m.ProposedTime == nil {
			return errors.Join(err, errors.New("proposed_time is required for a bid"))
		}
		return errors.Join(err, m.ProposedTime.Validate("proposed_time"))
	case MessageTypeRejection:
		return err
	default:
		return errors.Join(err, fmt.Errorf("unexpected message type %q on bid topic", m.Type))
	}
}

// IsBid returns true if the reply is a bid rather than a rejection.
func (m BidReply) IsBid() bool {
	return m.Type == MessageTypeBid
}

// NewBidReply creates the wire form of a bid.
func NewBidReply(bid Bid) BidReply {
	proposed := SecondsOf(bid.ProposedTime)
	return BidReply{
		Type:         MessageTypeBid,
		MachineID:    bid.MachineID,
		JobID:        bid.JobID,
		ProposedTime: &proposed,
		Timestamp:    TimestampOf(bid.Timestamp),
	}
}

// NewRejectionReply creates the wire form of a rejection.
func NewRejectionReply(rejection Rejection) BidReply {
	return BidReply{
		Type:      MessageTypeRejection,
		MachineID: rejection.MachineID,
		JobID:     rejection.JobID,
		Reason:    rejection.Reason,
		Timestamp: TimestampOf(rejection.Timestamp),
	}
}

// Bid converts a bid reply into a Bid. It must only be called on valid bid replies.
func (m BidReply) Bid() Bid {
	var proposed Seconds
	if m.ProposedTime != nil {
		proposed = *m.ProposedTime
	}
	return Bid{
		MachineID:    m.MachineID,
		JobID:        m.JobID,
		ProposedTime: proposed.Duration(),
		Timestamp:    m.Timestamp.Time(),
	}
}

// Rejection converts a rejection reply into a Rejection.
func (m BidReply) Rejection() Rejection {
	return Rejection{
		MachineID: m.MachineID,
		JobID:     m.JobID,
		Reason:    m.Reason,
		Timestamp: m.Timestamp.Time(),
	}
}

// Award notifies the winning machine that it has been selected to execute a job.
type Award struct {
	Type         MessageType `json:"type"`
	SupervisorID string      `json:"supervisor_id"`
	JobID        string      `json:"job_id"`
	JobType      JobType     `json:"job_type"`
	MachineID    string      `json:"machine_id"`
	Timestamp    Timestamp   `json:"timestamp"`
}

func (m Award) MessageType() MessageType { return MessageTypeAward }

func (m Award) Validate() error {
	return errors.Join(
		expectType(m.Type, MessageTypeAward),
		validate.NotBlank(m.SupervisorID, "supervisor_id is required"),
		validate.NotBlank(m.JobID, "job_id is required"),
		m.JobType.Validate(),
		validate.NotBlank(m.MachineID, "machine_id is required"),
	)
}

// Reject notifies a losing bidder that another machine won the auction.
type Reject struct {
	Type         MessageType `json:"type"`
	SupervisorID string      `json:"supervisor_id"`
	JobID        string      `json:"job_id"`
	Reason       string      `json:"reason"`
	Timestamp    Timestamp   `json:"timestamp"`
}

func (m Reject) MessageType() MessageType { return MessageTypeReject }

func (m Reject) Validate() error {
	return errors.Join(
		expectType(m.Type, MessageTypeReject),
		validate.NotBlank(m.SupervisorID, "supervisor_id is required"),
		validate.NotBlank(m.JobID, "job_id is required"),
	)
}

// Completion is an informational notice that a machine finished executing a job.
type Completion struct {
	Type          MessageType `json:"type"`
	MachineID     string      `json:"machine_id"`
	JobID         string      `json:"job_id"`
	JobType       JobType     `json:"job_type"`
	ExecutionTime Seconds     `json:"execution_time"`
	Timestamp     Timestamp   `json:"timestamp"`
}

func (m Completion) MessageType() MessageType { return MessageTypeCompletion }

func (m Completion) Validate() error {
	return errors.Join(
		expectType(m.Type, MessageTypeCompletion),
		validate.NotBlank(m.MachineID, "machine_id is required"),
		validate.NotBlank(m.JobID, "job_id is required"),
		m.JobType.Validate(),
		m.ExecutionTime.Validate("execution_time"),
	)
}

func expectType(actual, expected MessageType) error {
	if actual != expected {
		return fmt.Errorf("unexpected message type %q, expected %q", actual, expected)
	}
	return nil
}

// compile-time interface assertions
var _ Message = CallForProposals{}
var _ Message = BidReply{}
var _ Message = Award{}
var _ Message = Reject{}
var _ Message = Completion{}
