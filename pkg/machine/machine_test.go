//go:build unit || !integration

package machine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"

	"github.com/bacalhau-project/contractnet/pkg/bidstrategy"
	"github.com/bacalhau-project/contractnet/pkg/logger"
	"github.com/bacalhau-project/contractnet/pkg/models"
	"github.com/bacalhau-project/contractnet/pkg/pubsub"
)

const (
	testMachineID    = "machine_001"
	testSupervisorID = "supervisor_001"
)

type MachineSuite struct {
	suite.Suite
	ctx         context.Context
	clock       *clock.Mock
	bus         *pubsub.InMemoryBus
	machine     *Machine
	replies     *pubsub.InMemorySubscriber[models.BidReply]
	completions *pubsub.InMemorySubscriber[models.Completion]
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

func (s *MachineSuite) SetupTest() {
	logger.ConfigureTestLogging(s.T())
	s.ctx = context.Background()
	s.clock = clock.NewMock()
	s.clock.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s.bus = pubsub.NewInMemoryBus()

	s.replies = pubsub.NewInMemorySubscriber[models.BidReply]()
	_, err := s.bus.Subscribe(s.ctx, models.BidTopic(testSupervisorID), pubsub.NewDecodingSubscriber(
		models.Decode[models.BidReply, *models.BidReply], pubsub.Subscriber[models.BidReply](s.replies)))
	s.Require().NoError(err)

	s.completions = pubsub.NewInMemorySubscriber[models.Completion]()
	_, err = s.bus.Subscribe(s.ctx, models.CompletionTopic(testSupervisorID), pubsub.NewDecodingSubscriber(
		models.Decode[models.Completion, *models.Completion], pubsub.Subscriber[models.Completion](s.completions)))
	s.Require().NoError(err)

	s.machine = s.startMachine(nil)
}

func (s *MachineSuite) TearDownTest() {
	s.NoError(s.machine.Stop(s.ctx))
}

func (s *MachineSuite) startMachine(strategy bidstrategy.SemanticBidStrategy) *Machine {
	m, err := NewMachine(MachineParams{
		ID: testMachineID,
		Capabilities: models.CapabilityTable{
			models.JobTypeA: 5 * time.Second,
			models.JobTypeB: 3500 * time.Millisecond,
		},
		Bus:         s.bus,
		BidStrategy: strategy,
		Clock:       s.clock,
	})
	s.Require().NoError(err)
	s.Require().NoError(m.Start(s.ctx))
	return m
}

func (s *MachineSuite) publish(topic string, message models.Message) {
	payload, err := models.Encode(message)
	s.Require().NoError(err)
	s.Require().NoError(s.bus.Publish(s.ctx, topic, payload))
}

func (s *MachineSuite) sendCFP(jobID string, jobType models.JobType) {
	s.sendCFPFrom(testSupervisorID, jobID, jobType)
}

func (s *MachineSuite) sendCFPFrom(supervisorID, jobID string, jobType models.JobType) {
	s.publish(models.TopicCFP, models.CallForProposals{
		Type:         models.MessageTypeCFP,
		SupervisorID: supervisorID,
		JobID:        jobID,
		JobType:      jobType,
		Description:  "Execute " + jobType.String() + " operation",
		Deadline:     3,
		Timestamp:    models.TimestampOf(s.clock.Now()),
	})
}

func (s *MachineSuite) sendAward(supervisorID, jobID string, jobType models.JobType) {
	s.publish(models.AwardTopic(testMachineID), models.Award{
		Type:         models.MessageTypeAward,
		SupervisorID: supervisorID,
		JobID:        jobID,
		JobType:      jobType,
		MachineID:    testMachineID,
		Timestamp:    models.TimestampOf(s.clock.Now()),
	})
}

func (s *MachineSuite) sendReject(jobID string) {
	s.sendRejectFrom(testSupervisorID, jobID)
}

func (s *MachineSuite) sendRejectFrom(supervisorID, jobID string) {
	s.publish(models.RejectTopic(testMachineID), models.Reject{
		Type:         models.MessageTypeReject,
		SupervisorID: supervisorID,
		JobID:        jobID,
		Reason:       models.ReasonAnotherMachineSelected,
		Timestamp:    models.TimestampOf(s.clock.Now()),
	})
}

func (s *MachineSuite) waitForReplies(count int) []models.BidReply {
	s.Require().Eventually(func() bool {
		return len(s.replies.Peek()) >= count
	}, time.Second, 5*time.Millisecond, "expected %d bid replies", count)
	return s.replies.Events()
}

func (s *MachineSuite) waitForStats(check func(Stats) bool) {
	s.Require().Eventually(func() bool {
		return check(s.machine.Stats())
	}, time.Second, 5*time.Millisecond, "stats never matched, last seen %+v", s.machine.Stats())
}

// bids on the job and waits for the award to start the execution
func (s *MachineSuite) winJob(jobID string, jobType models.JobType) {
	s.sendCFP(jobID, jobType)
	s.waitForReplies(1)
	s.sendAward(testSupervisorID, jobID, jobType)
	s.Require().Eventually(s.machine.Busy, time.Second, 5*time.Millisecond)
}

func (s *MachineSuite) TestBidsOnSupportedJob() {
	s.sendCFP("job_1", models.JobTypeB)

	replies := s.waitForReplies(1)
	s.Require().Len(replies, 1)
	reply := replies[0]
	s.True(reply.IsBid())
	s.Equal(testMachineID, reply.MachineID)
	s.Equal("job_1", reply.JobID)
	s.Require().NotNil(reply.ProposedTime)
	s.Equal(models.Seconds(3.5), *reply.ProposedTime)
	s.Equal(s.clock.Now().UTC(), reply.Timestamp.Time().UTC())

	s.waitForStats(func(stats Stats) bool { return stats.BidsSent == 1 })
	s.Eventually(func() bool { return s.machine.State() == machineIdle.String() }, time.Second, 5*time.Millisecond)
	s.False(s.machine.Busy())
}

func (s *MachineSuite) TestRejectsUnsupportedJob() {
	s.sendCFP("job_1", models.JobTypeC)

	replies := s.waitForReplies(1)
	s.Require().Len(replies, 1)
	s.False(replies[0].IsBid())
	s.Nil(replies[0].ProposedTime)
	s.Equal(models.ReasonCapabilityMismatch, replies[0].Reason)
	s.waitForStats(func(stats Stats) bool { return stats.RejectionsSent == 1 && stats.BidsSent == 0 })
}

func (s *MachineSuite) TestRepliesToTheCallingSupervisor() {
	other := pubsub.NewInMemorySubscriber[[]byte]()
	_, err := s.bus.Subscribe(s.ctx, models.BidTopic("supervisor_002"), other)
	s.Require().NoError(err)

	s.sendCFPFrom("supervisor_002", "job_1", models.JobTypeA)

	s.Eventually(func() bool { return len(other.Peek()) == 1 }, time.Second, 5*time.Millisecond)
	s.Empty(s.replies.Peek())
}

func (s *MachineSuite) TestDuplicateCFPResendsTheSameBid() {
	s.sendCFP("job_1", models.JobTypeA)
	first := s.waitForReplies(1)

	s.clock.Add(time.Second)
	s.sendCFP("job_1", models.JobTypeA)
	second := s.waitForReplies(1)

	s.Equal(first, second)
	s.Equal(uint64(1), s.machine.Stats().BidsSent)
}

func (s *MachineSuite) TestAwardExecutesAndCompletes() {
	s.winJob("job_1", models.JobTypeA)

	exec, ok := s.machine.CurrentJob()
	s.Require().True(ok)
	s.Equal("job_1", exec.JobID)
	s.Equal(models.JobTypeA, exec.JobType)
	s.Equal(testSupervisorID, exec.SupervisorID)
	s.Equal(5*time.Second, exec.Duration)
	s.Eventually(func() bool { return s.machine.State() == machineExecuting.String() }, time.Second, 5*time.Millisecond)

	s.clock.Add(4 * time.Second)
	s.Never(func() bool { return len(s.completions.Peek()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	s.True(s.machine.Busy())

	s.clock.Add(time.Second)
	s.Require().Eventually(func() bool { return len(s.completions.Peek()) == 1 }, time.Second, 5*time.Millisecond)
	completion := s.completions.Events()[0]
	s.Equal(testMachineID, completion.MachineID)
	s.Equal("job_1", completion.JobID)
	s.Equal(models.JobTypeA, completion.JobType)
	s.Equal(models.Seconds(5), completion.ExecutionTime)

	s.Eventually(func() bool { return !s.machine.Busy() }, time.Second, 5*time.Millisecond)
	s.waitForStats(func(stats Stats) bool { return stats.JobsWon == 1 && stats.JobsCompleted == 1 })
	s.Eventually(func() bool { return s.machine.State() == machineIdle.String() }, time.Second, 5*time.Millisecond)
}

func (s *MachineSuite) TestRejectsWhileBusy() {
	s.winJob("job_1", models.JobTypeA)

	s.sendCFP("job_2", models.JobTypeB)
	replies := s.waitForReplies(1)
	s.Require().Len(replies, 1)
	s.False(replies[0].IsBid())
	s.Equal(models.ReasonMachineBusy, replies[0].Reason)

	// busy machines decline regardless of capability
	s.sendCFP("job_3", models.JobTypeC)
	replies = s.waitForReplies(1)
	s.Equal(models.ReasonMachineBusy, replies[0].Reason)
}

func (s *MachineSuite) TestBidsAgainAfterCompletion() {
	s.winJob("job_1", models.JobTypeB)
	s.clock.Add(3500 * time.Millisecond)
	s.Require().Eventually(func() bool { return !s.machine.Busy() }, time.Second, 5*time.Millisecond)

	s.sendCFP("job_2", models.JobTypeA)
	replies := s.waitForReplies(1)
	s.True(replies[0].IsBid())
}

func (s *MachineSuite) TestIgnoresAwardWithoutBid() {
	s.sendAward(testSupervisorID, "job_unknown", models.JobTypeA)

	s.waitForStats(func(stats Stats) bool { return stats.AwardsIgnored == 1 })
	s.False(s.machine.Busy())
	s.Equal(uint64(0), s.machine.Stats().JobsWon)
}

func (s *MachineSuite) TestIgnoresAwardFromAnotherSupervisor() {
	s.sendCFP("job_1", models.JobTypeA)
	s.waitForReplies(1)

	s.sendAward("supervisor_002", "job_1", models.JobTypeA)

	s.waitForStats(func(stats Stats) bool { return stats.AwardsIgnored == 1 })
	s.False(s.machine.Busy())
}

func (s *MachineSuite) TestIgnoresAwardForAnotherMachine() {
	s.sendCFP("job_1", models.JobTypeA)
	s.waitForReplies(1)

	// misrouted award published on this machine's topic
	s.publish(models.AwardTopic(testMachineID), models.Award{
		Type:         models.MessageTypeAward,
		SupervisorID: testSupervisorID,
		JobID:        "job_1",
		JobType:      models.JobTypeA,
		MachineID:    "machine_002",
	})

	s.waitForStats(func(stats Stats) bool { return stats.AwardsIgnored == 1 })
	s.False(s.machine.Busy())
}

func (s *MachineSuite) TestDropsSecondAwardWhileBusy() {
	s.sendCFP("job_1", models.JobTypeA)
	s.sendCFP("job_2", models.JobTypeB)
	s.waitForReplies(2)

	s.sendAward(testSupervisorID, "job_1", models.JobTypeA)
	s.Require().Eventually(s.machine.Busy, time.Second, 5*time.Millisecond)
	s.sendAward(testSupervisorID, "job_2", models.JobTypeB)

	s.waitForStats(func(stats Stats) bool { return stats.AwardsIgnored == 1 })
	exec, ok := s.machine.CurrentJob()
	s.Require().True(ok)
	s.Equal("job_1", exec.JobID)
	s.Equal(uint64(1), s.machine.Stats().JobsWon)
}

func (s *MachineSuite) TestDuplicateAwardIsANoop() {
	s.winJob("job_1", models.JobTypeA)
	s.sendAward(testSupervisorID, "job_1", models.JobTypeA)

	s.Never(func() bool { return s.machine.Stats().AwardsIgnored > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	s.Equal(uint64(1), s.machine.Stats().JobsWon)
}

func (s *MachineSuite) TestRejectCountsLostBid() {
	s.sendCFP("job_1", models.JobTypeA)
	s.waitForReplies(1)

	s.sendReject("job_1")
	s.waitForStats(func(stats Stats) bool { return stats.BidsLost == 1 })

	// the bid is forgotten, so a late award is ignored
	s.sendAward(testSupervisorID, "job_1", models.JobTypeA)
	s.waitForStats(func(stats Stats) bool { return stats.AwardsIgnored == 1 })
	s.False(s.machine.Busy())
}

func (s *MachineSuite) TestRejectForUnknownJobIsIgnored() {
	s.sendReject("job_unknown")
	s.Never(func() bool { return s.machine.Stats().BidsLost > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func (s *MachineSuite) TestIgnoresRejectFromAnotherSupervisor() {
	s.sendCFP("job_1", models.JobTypeA)
	s.waitForReplies(1)

	s.sendRejectFrom("supervisor_002", "job_1")
	s.Never(func() bool { return s.machine.Stats().BidsLost > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	// the bid is still pending, so the real award is accepted
	s.sendAward(testSupervisorID, "job_1", models.JobTypeA)
	s.waitForStats(func(stats Stats) bool { return stats.JobsWon == 1 })
	s.True(s.machine.Busy())
}

func (s *MachineSuite) TestForgetsStaleBids() {
	s.sendCFP("job_1", models.JobTypeA)
	s.waitForReplies(1)

	s.clock.Add(DefaultBidRetention + time.Second)
	s.sendAward(testSupervisorID, "job_1", models.JobTypeA)

	s.waitForStats(func(stats Stats) bool { return stats.AwardsIgnored == 1 })
	s.False(s.machine.Busy())
}

func (s *MachineSuite) TestDropsMalformedPayloads() {
	s.Require().NoError(s.bus.Publish(s.ctx, models.TopicCFP, []byte("not json")))
	s.Require().NoError(s.bus.Publish(s.ctx, models.TopicCFP, []byte(`{"type":"cfp","job_id":"job_1"}`)))
	s.Require().NoError(s.bus.Publish(s.ctx, models.AwardTopic(testMachineID), []byte(`{"type":"reject"}`)))
	s.sendCFP("job_2", models.JobTypeA)

	replies := s.waitForReplies(1)
	s.Require().Len(replies, 1)
	s.Equal("job_2", replies[0].JobID)
	s.waitForStats(func(stats Stats) bool { return stats == Stats{BidsSent: 1} })
}

func (s *MachineSuite) TestStopDoesNotPublishCompletion() {
	s.winJob("job_1", models.JobTypeA)

	s.Require().NoError(s.machine.Stop(s.ctx))
	s.clock.Add(10 * time.Second)

	s.Never(func() bool { return len(s.completions.Peek()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	s.Equal(machineStopped.String(), s.machine.State())
	s.False(s.machine.Busy())
	s.Zero(s.bus.SubscriberCount(models.TopicCFP))
}

func (s *MachineSuite) TestStopWinsOverFinishedExecution() {
	const machineID = "machine_002"
	for i := 0; i < 20; i++ {
		m, err := NewMachine(MachineParams{
			ID:           machineID,
			Capabilities: models.CapabilityTable{models.JobTypeA: time.Second},
			Bus:          s.bus,
			Clock:        s.clock,
		})
		s.Require().NoError(err)

		jobID := fmt.Sprintf("job_%d", i)
		m.handleCFP(s.ctx, models.CallForProposals{
			Type:         models.MessageTypeCFP,
			SupervisorID: testSupervisorID,
			JobID:        jobID,
			JobType:      models.JobTypeA,
			Deadline:     3,
		}, s.clock.Now())
		m.handleAward(s.ctx, models.Award{
			Type:         models.MessageTypeAward,
			SupervisorID: testSupervisorID,
			JobID:        jobID,
			JobType:      models.JobTypeA,
			MachineID:    machineID,
		}, s.clock.Now())
		s.Require().True(m.Busy())

		// the execution timer and the stop request are both ready when the loop runs
		s.clock.Add(time.Second)
		s.Require().NoError(m.Stop(s.ctx))
		m.run(s.ctx)

		s.Equal(machineStopped.String(), m.State())
		s.False(m.Busy())
		s.Zero(m.Stats().JobsCompleted)
	}
	s.Empty(s.completions.Peek())
}

func (s *MachineSuite) TestStartTwice() {
	s.Error(s.machine.Start(s.ctx))
}

func (s *MachineSuite) TestCustomStrategyRunsAfterBuiltInChecks() {
	s.Require().NoError(s.machine.Stop(s.ctx))
	s.machine = s.startMachine(bidstrategy.NewFixedBidStrategy(false, "under maintenance"))

	s.sendCFP("job_1", models.JobTypeA)
	replies := s.waitForReplies(1)
	s.Equal("under maintenance", replies[0].Reason)

	s.sendCFP("job_2", models.JobTypeC)
	replies = s.waitForReplies(1)
	s.Equal(models.ReasonCapabilityMismatch, replies[0].Reason)
}

func (s *MachineSuite) TestNewMachineValidation() {
	valid := func() MachineParams {
		return MachineParams{
			ID:           "machine_009",
			Capabilities: models.CapabilityTable{models.JobTypeA: time.Second},
			Bus:          s.bus,
		}
	}

	for _, tc := range []struct {
		name   string
		mutate func(*MachineParams)
	}{
		{name: "blank id", mutate: func(p *MachineParams) { p.ID = " " }},
		{name: "id with topic separator", mutate: func(p *MachineParams) { p.ID = "machine/1" }},
		{name: "no capabilities", mutate: func(p *MachineParams) { p.Capabilities = nil }},
		{name: "zero duration", mutate: func(p *MachineParams) { p.Capabilities[models.JobTypeA] = 0 }},
		{name: "no bus", mutate: func(p *MachineParams) { p.Bus = nil }},
		{name: "negative retention", mutate: func(p *MachineParams) { p.BidRetention = -time.Second }},
	} {
		s.Run(tc.name, func() {
			params := valid()
			tc.mutate(&params)
			_, err := NewMachine(params)
			s.Error(err)
		})
	}

	m, err := NewMachine(valid())
	s.Require().NoError(err)
	s.Equal("machine_009", m.ID())
	s.Equal(machineIdle.String(), m.State())
	s.NoError(m.Stop(s.ctx))
}
