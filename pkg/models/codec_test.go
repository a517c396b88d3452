//go:build unit || !integration

package models

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type CodecSuite struct {
	suite.Suite
	now time.Time
}

func TestCodecSuite(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}

func (s *CodecSuite) SetupTest() {
	s.now = time.UnixMicro(1_700_000_000_123_456)
}

func (s *CodecSuite) TestDecodeOriginalAgentPayloads() {
	// payloads as produced by agents that speak the same protocol
	cfp, err := Decode[CallForProposals]([]byte(`{"type": "cfp", "supervisor_id": "supervisor_001",
		"job_id": "job_1a2b3c4d", "job_type": "job_A", "description": "Execute job_A operation",
		"deadline": 3.0, "timestamp": 1700000000.5}`))
	s.Require().NoError(err)
	s.Equal(3*time.Second, cfp.Deadline.Duration())
	s.Equal(JobTypeA, cfp.Job().Type)

	reply, err := Decode[BidReply]([]byte(`{"type": "bid", "machine_id": "machine_002",
		"job_id": "job_1a2b3c4d", "proposed_time": 2.0, "timestamp": 1700000001.25}`))
	s.Require().NoError(err)
	s.True(reply.IsBid())
	s.Equal(2*time.Second, reply.Bid().ProposedTime)
	s.Equal(time.UnixMilli(1700000001250), reply.Bid().Timestamp)

	reply, err = Decode[BidReply]([]byte(`{"type": "rejection", "machine_id": "machine_004",
		"job_id": "job_1a2b3c4d", "reason": "machine is busy", "timestamp": 1700000001.0}`))
	s.Require().NoError(err)
	s.False(reply.IsBid())
	s.Equal(ReasonMachineBusy, reply.Rejection().Reason)
}

func (s *CodecSuite) TestEncodeDecodeAward() {
	award := Award{
		Type:         MessageTypeAward,
		SupervisorID: "supervisor_001",
		JobID:        "job_1",
		JobType:      JobTypeC,
		MachineID:    "machine_003",
		Timestamp:    TimestampOf(s.now),
	}
	payload, err := Encode(award)
	s.Require().NoError(err)
	s.Contains(string(payload), `"machine_id":"machine_003"`)

	decoded, err := Decode[Award](payload)
	s.Require().NoError(err)
	s.Equal(award, decoded)
	s.Equal(s.now, decoded.Timestamp.Time())
}

func (s *CodecSuite) TestDecodeRejectsBadPayloads() {
	testCases := []struct {
		name    string
		payload string
	}{
		{"not json", `not json`},
		{"wrong type", `{"type": "award", "machine_id": "m", "job_id": "j", "proposed_time": 1}`},
		{"bid without proposed time", `{"type": "bid", "machine_id": "m", "job_id": "j"}`},
		{"negative proposed time", `{"type": "bid", "machine_id": "m", "job_id": "j", "proposed_time": -1}`},
		{"proposed time beyond duration range", `{"type": "bid", "machine_id": "m", "job_id": "j", "proposed_time": 1e10}`},
		{"huge proposed time", `{"type": "bid", "machine_id": "m", "job_id": "j", "proposed_time": 1e300}`},
		{"missing machine", `{"type": "rejection", "job_id": "j", "reason": "busy"}`},
		{"oversized", `{"type": "rejection", "machine_id": "` + strings.Repeat("m", MaxMessageSize) + `"}`},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := Decode[BidReply]([]byte(tc.payload))
			s.Error(err)
		})
	}
}

func (s *CodecSuite) TestDecodeCFPRequiresDeadline() {
	_, err := Decode[CallForProposals]([]byte(`{"type": "cfp", "supervisor_id": "s",
		"job_id": "j", "job_type": "job_A", "deadline": 0}`))
	s.ErrorContains(err, "deadline must be greater than zero")
}

func (s *CodecSuite) TestEncodeRefusesInvalidMessage() {
	_, err := Encode(Completion{Type: MessageTypeCompletion, MachineID: "m", JobType: JobTypeA})
	s.ErrorContains(err, "job_id is required")
}

func (s *CodecSuite) TestDecodeBoundsWireDurations() {
	_, err := Decode[CallForProposals]([]byte(`{"type": "cfp", "supervisor_id": "s",
		"job_id": "j", "job_type": "job_A", "deadline": 1e12}`))
	s.ErrorContains(err, "deadline cannot exceed")

	_, err = Decode[Completion]([]byte(`{"type": "completion", "machine_id": "m",
		"job_id": "j", "job_type": "job_A", "execution_time": 1e300}`))
	s.ErrorContains(err, "execution_time cannot exceed")

	reply, err := Decode[BidReply]([]byte(`{"type": "bid", "machine_id": "m", "job_id": "j",
		"proposed_time": 9e9}`))
	s.Require().NoError(err)
	s.Positive(reply.Bid().ProposedTime)
}

func (s *CodecSuite) TestDecodeKeepsSubMillisecondPrecision() {
	fast, err := Decode[BidReply]([]byte(`{"type": "bid", "machine_id": "m_fast", "job_id": "j",
		"proposed_time": 2.9996, "timestamp": 2}`))
	s.Require().NoError(err)
	slow, err := Decode[BidReply]([]byte(`{"type": "bid", "machine_id": "m_slow", "job_id": "j",
		"proposed_time": 3.0004, "timestamp": 1}`))
	s.Require().NoError(err)

	s.Equal(2999600*time.Microsecond, fast.Bid().ProposedTime)
	s.Equal(3000400*time.Microsecond, slow.Bid().ProposedTime)
	s.Less(fast.Bid().ProposedTime, slow.Bid().ProposedTime)
}

func (s *CodecSuite) TestSecondsDuration() {
	s.Equal(1500*time.Millisecond, Seconds(1.5).Duration())
	s.Equal(time.Duration(1), Seconds(1e-9).Duration())
	s.Equal(time.Duration(0), Seconds(-1).Duration())
	s.Equal(time.Duration(math.MaxInt64), MaxSeconds.Duration())
	s.Equal(time.Duration(math.MaxInt64), Seconds(1e300).Duration())

	s.NoError(MaxSeconds.Validate("d"))
	s.Error(Seconds(math.Inf(1)).Validate("d"))
	s.Error(Seconds(math.NaN()).Validate("d"))
	s.Error(Seconds(float64(MaxSeconds) * 2).Validate("d"))
}
