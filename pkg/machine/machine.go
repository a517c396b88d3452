package machine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	realsync "sync"

	sync "github.com/bacalhau-project/golang-mutex-tracer"
	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/bacalhau-project/contractnet/pkg/bidstrategy"
	"github.com/bacalhau-project/contractnet/pkg/bidstrategy/semantic"
	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
	"github.com/bacalhau-project/contractnet/pkg/lib/validate"
	"github.com/bacalhau-project/contractnet/pkg/logger"
	"github.com/bacalhau-project/contractnet/pkg/models"
	"github.com/bacalhau-project/contractnet/pkg/pubsub"
	"github.com/bacalhau-project/contractnet/pkg/telemetry"
)

const (
	// DefaultBidRetention is how long a machine remembers a bid it sent.
	// Awards for bids older than this are ignored.
	DefaultBidRetention = time.Minute
	// DefaultInboxSize is the number of decoded messages buffered for the run loop.
	DefaultInboxSize = 1024

	component = "Machine"
)

type MachineParams struct {
	ID           string
	Capabilities models.CapabilityTable
	Bus          pubsub.Bus
	// BidRetention is how long pending bids are kept. Defaults to DefaultBidRetention.
	BidRetention time.Duration
	// BidStrategy is an optional strategy evaluated after the availability and capability checks.
	BidStrategy bidstrategy.SemanticBidStrategy
	// Clock is the clock used for timestamps and the execution timer.
	// If not provided, the system clock is used.
	Clock     clock.Clock
	InboxSize int
}

// Machine is a worker that bids on calls for proposals it can serve and
// executes the jobs it is awarded, one at a time.
type Machine struct {
	id           string
	capabilities models.CapabilityTable
	bus          pubsub.Bus
	strategy     bidstrategy.SemanticBidStrategy
	retention    time.Duration
	clock        clock.Clock
	inbox        chan event

	// guards the fields read by accessors
	mu            sync.RWMutex
	state         machineState
	current       *Execution
	stats         Stats
	started       bool
	subscriptions []pubsub.Subscription

	// owned by the run loop
	pendingBids   map[string]pendingBid
	execTimer     *clock.Timer
	execSpan      oteltrace.Span
	stopExecTimer func() time.Duration

	startOnce realsync.Once
	stopOnce  realsync.Once
	stopChan  chan struct{}
	done      chan struct{}
}

func NewMachine(params MachineParams) (*Machine, error) {
	if params.BidRetention == 0 {
		params.BidRetention = DefaultBidRetention
	}
	if params.InboxSize == 0 {
		params.InboxSize = DefaultInboxSize
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}

	err := errors.Join(
		models.ValidateAgentID(params.ID),
		params.Capabilities.Validate(),
		validate.NotNil(params.Bus, "bus cannot be nil"),
		validate.IsGreaterThanZero(params.BidRetention, "bid retention must be greater than zero"),
		validate.IsGreaterThanZero(params.InboxSize, "inbox size must be greater than zero"),
	)
	if err != nil {
		return nil, cnerrors.Wrap(err, "invalid machine configuration").
			WithCode(cnerrors.ConfigurationError).
			WithComponent(component)
	}

	m := &Machine{
		id:           params.ID,
		capabilities: params.Capabilities.Copy(),
		bus:          params.Bus,
		retention:    params.BidRetention,
		clock:        params.Clock,
		inbox:        make(chan event, params.InboxSize),
		state:        machineIdle,
		pendingBids:  make(map[string]pendingBid),
		stopChan:     make(chan struct{}),
		done:         make(chan struct{}),
	}
	m.mu.EnableTracerWithOpts(sync.Opts{
		Threshold: 10 * time.Millisecond,
		Id:        "Machine.mu",
	})

	// a busy machine must reject every call, so availability always goes first
	chain := bidstrategy.NewChainedSemanticBidStrategy(
		semantic.NewAvailabilityStrategy(semantic.AvailabilityStrategyParams{Machine: m}),
		semantic.NewCapabilityStrategy(semantic.CapabilityStrategyParams{Capabilities: m.capabilities}),
	)
	if params.BidStrategy != nil {
		chain.AddStrategy(params.BidStrategy)
	}
	m.strategy = chain
	return m, nil
}

// Start subscribes to the call for proposals, award and reject topics and starts the run loop.
func (m *Machine) Start(ctx context.Context) error {
	var err error
	first := false
	m.startOnce.Do(func() {
		first = true
		err = m.start(ctx)
	})
	if !first {
		return cnerrors.New("machine %s already started", m.id).WithComponent(component)
	}
	return err
}

func (m *Machine) start(ctx context.Context) error {
	ctx = logger.ContextWithAgentIDLogger(ctx, m.id)

	subscriptions := []struct {
		topic      string
		subscriber pubsub.Subscriber[[]byte]
	}{
		{
			topic: models.TopicCFP,
			subscriber: pubsub.NewDecodingSubscriber(
				models.Decode[models.CallForProposals, *models.CallForProposals],
				pubsub.SubscriberFunc[models.CallForProposals](func(ctx context.Context, cfp models.CallForProposals) error {
					m.enqueue(event{kind: eventCFP, cfp: cfp})
					return nil
				})),
		},
		{
			topic: models.AwardTopic(m.id),
			subscriber: pubsub.NewDecodingSubscriber(
				models.Decode[models.Award, *models.Award],
				pubsub.SubscriberFunc[models.Award](func(ctx context.Context, award models.Award) error {
					m.enqueue(event{kind: eventAward, award: award})
					return nil
				})),
		},
		{
			topic: models.RejectTopic(m.id),
			subscriber: pubsub.NewDecodingSubscriber(
				models.Decode[models.Reject, *models.Reject],
				pubsub.SubscriberFunc[models.Reject](func(ctx context.Context, reject models.Reject) error {
					m.enqueue(event{kind: eventReject, reject: reject})
					return nil
				})),
		},
	}

	subs := make([]pubsub.Subscription, 0, len(subscriptions))
	for _, s := range subscriptions {
		sub, err := m.bus.Subscribe(ctx, s.topic, s.subscriber)
		if err != nil {
			for _, subscribed := range subs {
				_ = subscribed.Unsubscribe()
			}
			return cnerrors.Wrap(err, "machine %s failed to subscribe to %s", m.id, s.topic).
				WithComponent(component)
		}
		subs = append(subs, sub)
	}

	m.mu.Lock()
	m.subscriptions = subs
	m.started = true
	m.mu.Unlock()

	log.Ctx(ctx).Info().Msgf("machine %s started with capabilities %s", m.id, m.capabilities)
	go m.run(ctx)
	return nil
}

// Stop stops the run loop and the execution timer without publishing anything else,
// and unsubscribes from the bus.
func (m *Machine) Stop(ctx context.Context) error {
	var err error
	m.stopOnce.Do(func() {
		close(m.stopChan)

		m.mu.RLock()
		subs := m.subscriptions
		started := m.started
		m.mu.RUnlock()

		var errs *multierror.Error
		for _, sub := range subs {
			errs = multierror.Append(errs, sub.Unsubscribe())
		}
		if started {
			select {
			case <-m.done:
			case <-ctx.Done():
				errs = multierror.Append(errs, ctx.Err())
			}
		}
		err = errs.ErrorOrNil()
	})
	return err
}

// enqueue hands a decoded message to the run loop. It is called from bus callbacks.
func (m *Machine) enqueue(ev event) {
	ev.receivedAt = m.clock.Now()
	select {
	case m.inbox <- ev:
	case <-m.stopChan:
	}
}

func (m *Machine) run(ctx context.Context) {
	defer close(m.done)
	for {
		var execC <-chan time.Time
		if m.execTimer != nil {
			execC = m.execTimer.C
		}

		select {
		case <-m.stopChan:
			m.shutdown(ctx)
			return
		case <-ctx.Done():
			m.shutdown(ctx)
			return
		case ev := <-m.inbox:
			switch ev.kind {
			case eventCFP:
				m.handleCFP(ctx, ev.cfp, ev.receivedAt)
			case eventAward:
				m.handleAward(ctx, ev.award, ev.receivedAt)
			case eventReject:
				m.handleReject(ctx, ev.reject)
			}
		case <-execC:
			if m.stopping(ctx) {
				m.shutdown(ctx)
				return
			}
			m.completeExecution(ctx)
		}
	}
}

// stopping reports whether a stop was requested, so that an execution timer firing
// at the same time as Stop does not publish a completion.
func (m *Machine) stopping(ctx context.Context) bool {
	select {
	case <-m.stopChan:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (m *Machine) handleCFP(ctx context.Context, cfp models.CallForProposals, receivedAt time.Time) {
	m.pruneBids(ctx, receivedAt)

	response, err := m.strategy.ShouldBid(ctx, bidstrategy.BidStrategyRequest{
		MachineID:    m.id,
		SupervisorID: cfp.SupervisorID,
		Job:          cfp.Job(),
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msgf("%s failed to evaluate call for proposals %s", m, cfp.JobID)
		return
	}

	topic := models.BidTopic(cfp.SupervisorID)
	if !response.ShouldBid {
		rejection := models.Rejection{
			MachineID: m.id,
			JobID:     cfp.JobID,
			Reason:    response.Reason,
			Timestamp: m.clock.Now(),
		}
		if err = m.publish(ctx, topic, models.NewRejectionReply(rejection)); err != nil {
			return
		}
		m.mu.Lock()
		m.stats.RejectionsSent++
		m.mu.Unlock()
		rejectionsSent.Add(ctx, 1, metric.WithAttributes(machineAttr(m.id), attribute.String(AttrReason, response.Reason)))
		log.Ctx(ctx).Debug().Msgf("%s declined job %s (%s): %s", m, cfp.JobID, cfp.JobType, response.Reason)
		return
	}

	if pending, ok := m.pendingBids[cfp.JobID]; ok {
		// duplicate delivery of a call we already bid on
		log.Ctx(ctx).Debug().Msgf("%s resending bid for job %s", m, cfp.JobID)
		_ = m.publish(ctx, topic, models.NewBidReply(pending.bid))
		return
	}

	duration, _ := m.capabilities.Duration(cfp.JobType)
	bid := models.Bid{
		MachineID:    m.id,
		JobID:        cfp.JobID,
		ProposedTime: duration,
		Timestamp:    m.clock.Now(),
	}

	m.transitionedTo(ctx, machineBidding, "call for proposals "+cfp.JobID)
	err = m.publish(ctx, topic, models.NewBidReply(bid))
	m.transitionedTo(ctx, machineIdle)
	if err != nil {
		return
	}

	m.pendingBids[cfp.JobID] = pendingBid{
		bid:          bid,
		jobType:      cfp.JobType,
		supervisorID: cfp.SupervisorID,
	}
	m.mu.Lock()
	m.stats.BidsSent++
	m.mu.Unlock()
	bidsSent.Add(ctx, 1, metric.WithAttributes(machineAttr(m.id), attribute.String(AttrJobType, cfp.JobType.String())))
	log.Ctx(ctx).Info().Msgf("%s bid on job %s (%s) with %s", m, cfp.JobID, cfp.JobType, duration)
}

func (m *Machine) handleAward(ctx context.Context, award models.Award, receivedAt time.Time) {
	m.pruneBids(ctx, receivedAt)

	if award.MachineID != m.id {
		m.ignoreAward(ctx, award, "award is addressed to "+award.MachineID)
		return
	}

	m.mu.RLock()
	current := m.current
	m.mu.RUnlock()

	if current != nil && current.JobID == award.JobID {
		log.Ctx(ctx).Debug().Msgf("%s ignoring duplicate award for job %s", m, award.JobID)
		return
	}

	pending, ok := m.pendingBids[award.JobID]
	if !ok {
		m.ignoreAward(ctx, award, "no pending bid for the job")
		return
	}
	if pending.supervisorID != award.SupervisorID {
		m.ignoreAward(ctx, award, fmt.Sprintf("bid was sent to %s, not %s", pending.supervisorID, award.SupervisorID))
		return
	}
	delete(m.pendingBids, award.JobID)

	if current != nil {
		log.Ctx(ctx).Warn().Msgf("%s is busy with job %s, dropping award for job %s", m, current.JobID, award.JobID)
		m.countIgnoredAward(ctx)
		return
	}

	exec := &Execution{
		JobID:        award.JobID,
		JobType:      pending.jobType,
		SupervisorID: award.SupervisorID,
		Duration:     pending.bid.ProposedTime,
		StartedAt:    m.clock.Now(),
	}
	attrs := []attribute.KeyValue{machineAttr(m.id), attribute.String(AttrJobType, exec.JobType.String())}
	_, m.execSpan = telemetry.NewSpan(ctx, "machine.execution", m.id,
		attribute.String("job.id", exec.JobID), attribute.String("job.type", exec.JobType.String()))
	m.stopExecTimer = telemetry.Timer(ctx, m.clock, executionDuration, attrs...)
	// the timer is armed before the machine reports itself busy
	m.execTimer = m.clock.Timer(exec.Duration)

	m.mu.Lock()
	m.current = exec
	m.stats.JobsWon++
	m.mu.Unlock()
	jobsWon.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.transitionedTo(ctx, machineWon, "award for job "+award.JobID)
	m.transitionedTo(ctx, machineExecuting)
	log.Ctx(ctx).Info().Msgf("%s won job %s (%s), executing for %s", m, exec.JobID, exec.JobType, exec.Duration)
}

func (m *Machine) ignoreAward(ctx context.Context, award models.Award, reason string) {
	log.Ctx(ctx).Debug().Msgf("%s ignoring award for job %s from %s: %s", m, award.JobID, award.SupervisorID, reason)
	m.countIgnoredAward(ctx)
}

func (m *Machine) countIgnoredAward(ctx context.Context) {
	m.mu.Lock()
	m.stats.AwardsIgnored++
	m.mu.Unlock()
	awardsIgnored.Add(ctx, 1, metric.WithAttributes(machineAttr(m.id)))
}

func (m *Machine) handleReject(ctx context.Context, reject models.Reject) {
	pending, ok := m.pendingBids[reject.JobID]
	if !ok {
		log.Ctx(ctx).Debug().Msgf("%s ignoring rejection for unknown job %s", m, reject.JobID)
		return
	}
	if pending.supervisorID != reject.SupervisorID {
		log.Ctx(ctx).Debug().Msgf("%s ignoring rejection for job %s from %s, bid was sent to %s",
			m, reject.JobID, reject.SupervisorID, pending.supervisorID)
		return
	}
	delete(m.pendingBids, reject.JobID)
	m.mu.Lock()
	m.stats.BidsLost++
	m.mu.Unlock()
	log.Ctx(ctx).Info().Msgf("%s lost job %s: %s", m, reject.JobID, reject.Reason)
}

func (m *Machine) completeExecution(ctx context.Context) {
	m.execTimer = nil
	m.mu.RLock()
	exec := m.current
	m.mu.RUnlock()
	if exec == nil {
		return
	}
	m.stopExecTimer()

	completion := models.Completion{
		Type:          models.MessageTypeCompletion,
		MachineID:     m.id,
		JobID:         exec.JobID,
		JobType:       exec.JobType,
		ExecutionTime: models.SecondsOf(exec.Duration),
		Timestamp:     models.TimestampOf(m.clock.Now()),
	}
	err := m.publish(ctx, models.CompletionTopic(exec.SupervisorID), completion)
	telemetry.RecordErrorOnSpan(m.execSpan, err)
	m.execSpan.End()

	m.mu.Lock()
	m.current = nil
	m.stats.JobsCompleted++
	m.mu.Unlock()
	jobsCompleted.Add(ctx, 1, metric.WithAttributes(machineAttr(m.id), attribute.String(AttrJobType, exec.JobType.String())))
	m.transitionedTo(ctx, machineIdle, "completed job "+exec.JobID)
	log.Ctx(ctx).Info().Msgf("%s completed job %s (%s) in %s", m, exec.JobID, exec.JobType, exec.Duration)
}

// pruneBids forgets bids whose auctions must have ended long ago.
func (m *Machine) pruneBids(ctx context.Context, now time.Time) {
	for jobID, pending := range m.pendingBids {
		if now.Sub(pending.bid.Timestamp) > m.retention {
			log.Ctx(ctx).Debug().Msgf("%s forgetting bid for job %s sent at %s", m, jobID, pending.bid.Timestamp)
			delete(m.pendingBids, jobID)
		}
	}
}

func (m *Machine) shutdown(ctx context.Context) {
	if m.execTimer != nil {
		m.execTimer.Stop()
		m.execTimer = nil
		m.execSpan.End()
	}
	m.mu.Lock()
	if m.current != nil {
		log.Ctx(ctx).Warn().Msgf("%s stopped while executing job %s", m.id, m.current.JobID)
		m.current = nil
	}
	m.mu.Unlock()
	m.transitionedTo(ctx, machineStopped)
}

func (m *Machine) publish(ctx context.Context, topic string, message models.Message) error {
	payload, err := models.Encode(message)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msgf("%s failed to encode %s", m, message.MessageType())
		return err
	}
	if err = m.bus.Publish(ctx, topic, payload); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("Topic", topic).Msgf("%s failed to publish %s", m, message.MessageType())
		return err
	}
	return nil
}

func (m *Machine) transitionedTo(ctx context.Context, newState machineState, reasons ...string) {
	m.mu.Lock()
	previous := m.state
	m.state = newState
	m.mu.Unlock()

	reason := ""
	if reasons != nil {
		reason = " due to " + strings.Join(reasons, ", ")
	}
	log.Ctx(ctx).Debug().Msgf("machine %s transitioning from %s -> %s%s", m.id, previous, newState, reason)
}

func (m *Machine) String() string {
	return fmt.Sprintf("[%s]", m.id)
}

// ID returns the machine id.
func (m *Machine) ID() string {
	return m.id
}

// Capabilities returns a copy of the machine's capability table.
func (m *Machine) Capabilities() models.CapabilityTable {
	return m.capabilities.Copy()
}

// Busy returns true while the machine is executing a job.
func (m *Machine) Busy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// CurrentJob returns the job being executed, if any.
func (m *Machine) CurrentJob() (Execution, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Execution{}, false
	}
	return *m.current, true
}

// State returns the name of the current state.
func (m *Machine) State() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.String()
}

// Stats returns a snapshot of the machine's counters.
func (m *Machine) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// compile-time interface check
var _ semantic.BusyChecker = (*Machine)(nil)

// GetAgentInfo returns the machine's state and counters for the status API.
func (m *Machine) GetAgentInfo(ctx context.Context) models.AgentInfo {
	info := models.AgentInfo{
		Kind:         models.AgentKindMachine,
		ID:           m.id,
		State:        m.State(),
		Capabilities: m.capabilities.String(),
		Stats:        m.Stats(),
	}
	if exec, ok := m.CurrentJob(); ok {
		info.CurrentJob = exec.JobID
	}
	return info
}

var _ models.AgentInfoProvider = (*Machine)(nil)
