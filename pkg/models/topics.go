package models

import (
	"errors"
	"strings"

	"github.com/bacalhau-project/contractnet/pkg/lib/validate"
)

const (
	// TopicCFP is the broadcast topic every machine listens on.
	TopicCFP = "jobs/cfp"

	topicBidPrefix      = "jobs/bid/"
	topicAwardPrefix    = "jobs/award/"
	topicRejectPrefix   = "jobs/reject/"
	topicCompletePrefix = "jobs/complete/"

	// agent ids end up in topic names, and topic names end up in NATS subjects.
	reservedIDChars = "/.*> \t\r\n"
)

// BidTopic is where machines send bids and rejections for a supervisor.
func BidTopic(supervisorID string) string {
	return topicBidPrefix + supervisorID
}

// AwardTopic is where a supervisor notifies a machine it won an auction.
func AwardTopic(machineID string) string {
	return topicAwardPrefix + machineID
}

// RejectTopic is where a supervisor notifies a machine it lost an auction.
func RejectTopic(machineID string) string {
	return topicRejectPrefix + machineID
}

// CompletionTopic is where machines report completed jobs to the supervisor that awarded them.
func CompletionTopic(supervisorID string) string {
	return topicCompletePrefix + supervisorID
}

// ValidateAgentID checks that an agent id can be safely embedded in a topic name.
func ValidateAgentID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("agent id cannot be blank")
	}
	return validate.NoneOf(id, reservedIDChars, "agent id %q cannot contain any of %q", id, reservedIDChars)
}
