package supervisor

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

	"github.com/bacalhau-project/contractnet/pkg/cnerrors"
	"github.com/bacalhau-project/contractnet/pkg/lib/validate"
	"github.com/bacalhau-project/contractnet/pkg/logger"
	"github.com/bacalhau-project/contractnet/pkg/models"
	"github.com/bacalhau-project/contractnet/pkg/pubsub"
	"github.com/bacalhau-project/contractnet/pkg/telemetry"
)

const (
	DefaultDeadline    = 3 * time.Second
	DefaultJobInterval = 10 * time.Second
	DefaultStartDelay  = time.Second
	// DefaultInboxSize is the number of decoded replies buffered for the run loop.
	DefaultInboxSize = 1024

	component = "Supervisor"
)

type SupervisorParams struct {
	ID  string
	Bus pubsub.Bus
	// Deadline is how long bids are collected after the call for proposals is published.
	Deadline time.Duration
	// JobInterval is the pause between the end of an auction and the start of the next one.
	JobInterval time.Duration
	// StartDelay is the pause before the first auction.
	StartDelay time.Duration
	// JobGenerator creates the job for each auction.
	// If not provided, jobs of a random type from JobTypes are generated.
	JobGenerator JobGenerator
	JobTypes     []models.JobType
	// Clock is the clock used for deadlines, intervals and timestamps.
	// If not provided, the system clock is used.
	Clock     clock.Clock
	InboxSize int
}

// Supervisor periodically auctions jobs to the machines listening on the bus.
type Supervisor struct {
	id          string
	bus         pubsub.Bus
	deadline    time.Duration
	jobInterval time.Duration
	startDelay  time.Duration
	generator   JobGenerator
	clock       clock.Clock
	inbox       chan event
	auction     *Auction

	// guards the fields read by accessors
	mu            sync.RWMutex
	state         supervisorState
	stats         Stats
	lastAuction   *AuctionResult
	started       bool
	subscriptions []pubsub.Subscription

	// owned by the run loop
	nextAuction   *clock.Timer
	deadlineTimer *clock.Timer
	auctionSpan   oteltrace.Span

	startOnce realsync.Once
	stopOnce  realsync.Once
	stopChan  chan struct{}
	done      chan struct{}
}

func NewSupervisor(params SupervisorParams) (*Supervisor, error) {
	if params.Deadline == 0 {
		params.Deadline = DefaultDeadline
	}
	if params.JobInterval == 0 {
		params.JobInterval = DefaultJobInterval
	}
	if params.InboxSize == 0 {
		params.InboxSize = DefaultInboxSize
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	if len(params.JobTypes) == 0 {
		params.JobTypes = models.DefaultJobTypes
	}

	err := errors.Join(
		models.ValidateAgentID(params.ID),
		validate.NotNil(params.Bus, "bus cannot be nil"),
		validate.IsGreaterThanZero(params.Deadline, "deadline must be greater than zero"),
		validate.IsGreaterThanZero(params.JobInterval, "job interval must be greater than zero"),
		validate.IsGreaterOrEqualToZero(params.StartDelay, "start delay cannot be negative"),
		validate.IsGreaterThanZero(params.InboxSize, "inbox size must be greater than zero"),
	)
	if err == nil && params.JobGenerator == nil {
		params.JobGenerator, err = NewRandomJobGenerator(params.JobTypes)
	}
	if err != nil {
		return nil, cnerrors.Wrap(err, "invalid supervisor configuration").
			WithCode(cnerrors.ConfigurationError).
			WithComponent(component)
	}

	s := &Supervisor{
		id:          params.ID,
		bus:         params.Bus,
		deadline:    params.Deadline,
		jobInterval: params.JobInterval,
		startDelay:  params.StartDelay,
		generator:   params.JobGenerator,
		clock:       params.Clock,
		inbox:       make(chan event, params.InboxSize),
		auction:     NewAuction(),
		state:       supervisorIdle,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	s.mu.EnableTracerWithOpts(sync.Opts{
		Threshold: 10 * time.Millisecond,
		Id:        "Supervisor.mu",
	})
	return s, nil
}

// Start subscribes to the bid and completion topics and starts the auction loop.
// The first auction starts after the configured start delay.
func (s *Supervisor) Start(ctx context.Context) error {
	var err error
	first := false
	s.startOnce.Do(func() {
		first = true
		err = s.start(ctx)
	})
	if !first {
		return cnerrors.New("supervisor %s already started", s.id).WithComponent(component)
	}
	return err
}

func (s *Supervisor) start(ctx context.Context) error {
	ctx = logger.ContextWithAgentIDLogger(ctx, s.id)

	bids, err := s.bus.Subscribe(ctx, models.BidTopic(s.id), pubsub.NewDecodingSubscriber(
		models.Decode[models.BidReply, *models.BidReply],
		pubsub.SubscriberFunc[models.BidReply](func(ctx context.Context, reply models.BidReply) error {
			s.enqueue(event{kind: eventBidReply, reply: reply})
			return nil
		})))
	if err != nil {
		return cnerrors.Wrap(err, "supervisor %s failed to subscribe to bids", s.id).WithComponent(component)
	}

	completions, err := s.bus.Subscribe(ctx, models.CompletionTopic(s.id), pubsub.NewDecodingSubscriber(
		models.Decode[models.Completion, *models.Completion],
		pubsub.SubscriberFunc[models.Completion](func(ctx context.Context, completion models.Completion) error {
			s.enqueue(event{kind: eventCompletion, completion: completion})
			return nil
		})))
	if err != nil {
		_ = bids.Unsubscribe()
		return cnerrors.Wrap(err, "supervisor %s failed to subscribe to completions", s.id).WithComponent(component)
	}

	s.mu.Lock()
	s.subscriptions = []pubsub.Subscription{bids, completions}
	s.started = true
	s.mu.Unlock()

	log.Ctx(ctx).Info().Msgf("supervisor %s started with job interval %s and deadline %s", s.id, s.jobInterval, s.deadline)
	s.nextAuction = s.clock.Timer(s.startDelay)
	go s.run(ctx)
	return nil
}

// Stop stops the auction loop and its timers without publishing anything else,
// and unsubscribes from the bus. An auction in progress is abandoned.
func (s *Supervisor) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopChan)

		s.mu.RLock()
		subs := s.subscriptions
		started := s.started
		s.mu.RUnlock()

		var errs *multierror.Error
		for _, sub := range subs {
			errs = multierror.Append(errs, sub.Unsubscribe())
		}
		if started {
			select {
			case <-s.done:
			case <-ctx.Done():
				errs = multierror.Append(errs, ctx.Err())
			}
		}
		err = errs.ErrorOrNil()
	})
	return err
}

// enqueue hands a decoded message to the run loop. It is called from bus callbacks,
// and stamps the message with its receipt time.
func (s *Supervisor) enqueue(ev event) {
	ev.receivedAt = s.clock.Now()
	select {
	case s.inbox <- ev:
	case <-s.stopChan:
	}
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)
	for {
		var nextC, deadlineC <-chan time.Time
		if s.nextAuction != nil {
			nextC = s.nextAuction.C
		}
		if s.deadlineTimer != nil {
			deadlineC = s.deadlineTimer.C
		}

		select {
		case <-s.stopChan:
			s.shutdown(ctx)
			return
		case <-ctx.Done():
			s.shutdown(ctx)
			return
		case ev := <-s.inbox:
			s.handleEvent(ctx, ev)
		case <-nextC:
			s.nextAuction = nil
			if s.stopping(ctx) {
				s.shutdown(ctx)
				return
			}
			s.startAuction(ctx)
		case <-deadlineC:
			s.deadlineTimer = nil
			if s.stopping(ctx) {
				s.shutdown(ctx)
				return
			}
			s.closeBidding(ctx)
		}
	}
}

// closeBidding runs when the deadline elapses. Replies still queued are drained first,
// and the ones stamped after the deadline are dropped by the auction.
func (s *Supervisor) closeBidding(ctx context.Context) {
	s.drainInbox(ctx)
	s.evaluate(ctx)
}

// stopping reports whether a stop was requested. select picks randomly among ready
// cases, so timer branches check it before publishing anything.
func (s *Supervisor) stopping(ctx context.Context) bool {
	select {
	case <-s.stopChan:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (s *Supervisor) handleEvent(ctx context.Context, ev event) {
	switch ev.kind {
	case eventBidReply:
		s.handleReply(ctx, ev.reply, ev.receivedAt)
	case eventCompletion:
		s.handleCompletion(ctx, ev.completion)
	}
}

// drainInbox admits the replies that were received before the deadline but not processed yet.
func (s *Supervisor) drainInbox(ctx context.Context) {
	for {
		select {
		case ev := <-s.inbox:
			s.handleEvent(ctx, ev)
		default:
			return
		}
	}
}

func (s *Supervisor) startAuction(ctx context.Context) {
	now := s.clock.Now()
	job, err := s.generator.Generate(ctx, now)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msgf("%s failed to generate a job", s)
		s.scheduleNextAuction(ctx)
		return
	}

	deadline := now.Add(s.deadline)
	if err = s.auction.Open(job, deadline); err != nil {
		log.Ctx(ctx).Error().Err(err).Msgf("%s failed to open auction for job %s", s, job)
		s.scheduleNextAuction(ctx)
		return
	}

	s.mu.Lock()
	s.stats.AuctionsCreated++
	s.mu.Unlock()
	auctionsCreated.Add(ctx, 1, metric.WithAttributes(supervisorAttr(s.id), attribute.String(AttrJobType, job.Type.String())))
	_, s.auctionSpan = telemetry.NewSpan(ctx, "supervisor.auction", s.id,
		attribute.String("job.id", job.ID), attribute.String("job.type", job.Type.String()))

	s.transitionedTo(ctx, supervisorBroadcasting, "new job "+job.String())
	cfp := models.CallForProposals{
		Type:         models.MessageTypeCFP,
		SupervisorID: s.id,
		JobID:        job.ID,
		JobType:      job.Type,
		Description:  job.Description,
		Deadline:     models.SecondsOf(s.deadline),
		Timestamp:    models.TimestampOf(now),
	}
	if err = s.publish(ctx, models.TopicCFP, cfp); err != nil {
		telemetry.RecordErrorOnSpan(s.auctionSpan, err)
		s.transitionedTo(ctx, supervisorFailed, "call for proposals could not be published")
		s.fail(ctx, job)
		s.conclude(ctx, AuctionResult{Job: job, ConcludedAt: s.clock.Now()})
		return
	}

	s.deadlineTimer = s.clock.Timer(deadline.Sub(s.clock.Now()))
	s.transitionedTo(ctx, supervisorCollecting)
	log.Ctx(ctx).Info().Msgf("%s sent call for proposals for %s, deadline %s", s, job, s.deadline)
}

func (s *Supervisor) handleReply(ctx context.Context, reply models.BidReply, receivedAt time.Time) {
	var err error
	if reply.IsBid() {
		bid := reply.Bid()
		bid.ReceivedAt = receivedAt
		err = s.auction.Admit(bid)
		if err == nil {
			s.mu.Lock()
			s.stats.BidsReceived++
			s.mu.Unlock()
			log.Ctx(ctx).Info().Msgf("%s received bid from %s for job %s: %s", s, bid.MachineID, bid.JobID, bid.ProposedTime)
		}
	} else {
		rejection := reply.Rejection()
		rejection.ReceivedAt = receivedAt
		err = s.auction.Reject(rejection)
		if err == nil {
			s.mu.Lock()
			s.stats.RejectionsReceived++
			s.mu.Unlock()
			log.Ctx(ctx).Info().Msgf("%s received rejection from %s for job %s: %s",
				s, rejection.MachineID, rejection.JobID, rejection.Reason)
		}
	}

	if err == nil {
		bidsReceived.Add(ctx, 1, metric.WithAttributes(supervisorAttr(s.id), attribute.String(AttrReplyType, string(reply.Type))))
		return
	}

	s.mu.Lock()
	s.stats.MessagesDropped++
	s.mu.Unlock()
	messagesDropped.Add(ctx, 1, metric.WithAttributes(supervisorAttr(s.id), attribute.String(AttrDropReason, dropReason(err))))
	log.Ctx(ctx).Debug().Err(err).Msgf("%s dropped %s from %s for job %s", s, reply.Type, reply.MachineID, reply.JobID)
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrLateReply), errors.Is(err, ErrAuctionSealed):
		return "late"
	case errors.Is(err, ErrWrongJob), errors.Is(err, ErrAuctionNotOpen):
		return "stale"
	case errors.Is(err, ErrDuplicateReply):
		return "duplicate"
	default:
		return "unknown"
	}
}

func (s *Supervisor) handleCompletion(ctx context.Context, completion models.Completion) {
	s.mu.Lock()
	s.stats.JobsCompleted++
	s.mu.Unlock()
	jobsCompleted.Add(ctx, 1, metric.WithAttributes(supervisorAttr(s.id), attribute.String(AttrJobType, completion.JobType.String())))
	log.Ctx(ctx).Info().Msgf("%s was told by %s that job %s (%s) completed in %s",
		s, completion.MachineID, completion.JobID, completion.JobType, completion.ExecutionTime.Duration())
}

func (s *Supervisor) evaluate(ctx context.Context) {
	job, _ := s.auction.Job()
	bids, rejections, err := s.auction.Seal()
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msgf("%s failed to seal auction for job %s", s, job)
		return
	}
	s.transitionedTo(ctx, supervisorEvaluating, "deadline reached")
	auctionBids.Record(ctx, int64(len(bids)), metric.WithAttributes(supervisorAttr(s.id)))
	log.Ctx(ctx).Info().Msgf("%s deadline reached for job %s: %d bids, %d rejections", s, job, len(bids), len(rejections))

	result := AuctionResult{
		Job:        job,
		Bids:       bids,
		Rejections: rejections,
	}

	winner, ok := SelectWinner(bids)
	if !ok {
		s.transitionedTo(ctx, supervisorFailed, "no bids")
		s.fail(ctx, job)
		result.ConcludedAt = s.clock.Now()
		s.conclude(ctx, result)
		return
	}

	s.transitionedTo(ctx, supervisorAwarding, "winner "+winner.MachineID)
	if err = s.award(ctx, job, winner, bids); err != nil {
		telemetry.RecordErrorOnSpan(s.auctionSpan, err)
		s.transitionedTo(ctx, supervisorFailed, "award could not be published")
		s.fail(ctx, job)
		result.ConcludedAt = s.clock.Now()
		s.conclude(ctx, result)
		return
	}

	s.mu.Lock()
	s.stats.JobsAllocated++
	s.mu.Unlock()
	auctionsAllocated.Add(ctx, 1, metric.WithAttributes(supervisorAttr(s.id), attribute.String(AttrJobType, job.Type.String())))
	log.Ctx(ctx).Info().Msgf("%s awarded job %s to %s (%s)", s, job, winner.MachineID, winner.ProposedTime)

	result.Winner = &winner
	result.ConcludedAt = s.clock.Now()
	s.conclude(ctx, result)
}

// award publishes the award to the winner and a rejection to every other bidder.
// Failing to notify a losing bidder does not undo the award.
func (s *Supervisor) award(ctx context.Context, job models.Job, winner models.Bid, bids []models.Bid) error {
	now := models.TimestampOf(s.clock.Now())
	err := s.publish(ctx, models.AwardTopic(winner.MachineID), models.Award{
		Type:         models.MessageTypeAward,
		SupervisorID: s.id,
		JobID:        job.ID,
		JobType:      job.Type,
		MachineID:    winner.MachineID,
		Timestamp:    now,
	})
	if err != nil {
		return err
	}

	for _, bid := range bids {
		if bid.MachineID == winner.MachineID {
			continue
		}
		_ = s.publish(ctx, models.RejectTopic(bid.MachineID), models.Reject{
			Type:         models.MessageTypeReject,
			SupervisorID: s.id,
			JobID:        job.ID,
			Reason:       models.ReasonAnotherMachineSelected,
			Timestamp:    now,
		})
	}
	return nil
}

func (s *Supervisor) fail(ctx context.Context, job models.Job) {
	s.mu.Lock()
	s.stats.AuctionsFailed++
	s.mu.Unlock()
	auctionsFailed.Add(ctx, 1, metric.WithAttributes(supervisorAttr(s.id), attribute.String(AttrJobType, job.Type.String())))
	log.Ctx(ctx).Warn().Msgf("%s failed to allocate job %s", s, job)
}

// conclude closes the auction, records its result and schedules the next one.
func (s *Supervisor) conclude(ctx context.Context, result AuctionResult) {
	if _, err := s.auction.Conclude(); err != nil {
		log.Ctx(ctx).Error().Err(err).Msgf("%s failed to conclude auction for job %s", s, result.Job)
	}
	if s.auctionSpan != nil {
		s.auctionSpan.SetAttributes(attribute.Int("auction.bids", len(result.Bids)), attribute.Bool("auction.allocated", result.Allocated()))
		s.auctionSpan.End()
		s.auctionSpan = nil
	}

	s.mu.Lock()
	s.lastAuction = &result
	s.mu.Unlock()

	// the next auction is scheduled before the supervisor reports itself idle
	s.scheduleNextAuction(ctx)
	s.transitionedTo(ctx, supervisorIdle)
}

func (s *Supervisor) scheduleNextAuction(ctx context.Context) {
	log.Ctx(ctx).Debug().Msgf("%s waiting %s before the next job", s, s.jobInterval)
	s.nextAuction = s.clock.Timer(s.jobInterval)
}

func (s *Supervisor) shutdown(ctx context.Context) {
	if s.nextAuction != nil {
		s.nextAuction.Stop()
		s.nextAuction = nil
	}
	if s.deadlineTimer != nil {
		s.deadlineTimer.Stop()
		s.deadlineTimer = nil
	}
	if job, err := s.auction.Conclude(); err == nil {
		log.Ctx(ctx).Warn().Msgf("%s stopped during the auction for job %s", s, job)
	}
	if s.auctionSpan != nil {
		s.auctionSpan.End()
		s.auctionSpan = nil
	}
	s.transitionedTo(ctx, supervisorStopped)

	stats := s.Stats()
	log.Ctx(ctx).Info().Msgf("%s stopped: %d/%d jobs allocated, %d failed, %d completed",
		s, stats.JobsAllocated, stats.AuctionsCreated, stats.AuctionsFailed, stats.JobsCompleted)
}

func (s *Supervisor) publish(ctx context.Context, topic string, message models.Message) error {
	payload, err := models.Encode(message)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msgf("%s failed to encode %s", s, message.MessageType())
		return err
	}
	if err = s.bus.Publish(ctx, topic, payload); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("Topic", topic).Msgf("%s failed to publish %s", s, message.MessageType())
		return err
	}
	return nil
}

func (s *Supervisor) transitionedTo(ctx context.Context, newState supervisorState, reasons ...string) {
	s.mu.Lock()
	previous := s.state
	s.state = newState
	s.mu.Unlock()

	reason := ""
	if reasons != nil {
		reason = " due to " + strings.Join(reasons, ", ")
	}
	log.Ctx(ctx).Debug().Msgf("supervisor %s transitioning from %s -> %s%s", s.id, previous, newState, reason)
}

func (s *Supervisor) String() string {
	return fmt.Sprintf("[%s]", s.id)
}

// ID returns the supervisor id.
func (s *Supervisor) ID() string {
	return s.id
}

// State returns the name of the current state.
func (s *Supervisor) State() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.String()
}

// CurrentJob returns the job being auctioned, if any.
func (s *Supervisor) CurrentJob() (models.Job, bool) {
	return s.auction.Job()
}

// LastAuction returns the result of the most recently concluded auction, if any.
func (s *Supervisor) LastAuction() (AuctionResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastAuction == nil {
		return AuctionResult{}, false
	}
	return *s.lastAuction, true
}

// Stats returns a snapshot of the supervisor's counters.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// GetAgentInfo returns the supervisor's state and counters for the status API.
func (s *Supervisor) GetAgentInfo(ctx context.Context) models.AgentInfo {
	info := models.AgentInfo{
		Kind:  models.AgentKindSupervisor,
		ID:    s.id,
		State: s.State(),
		Stats: s.Stats(),
	}
	if job, ok := s.CurrentJob(); ok {
		info.CurrentJob = job.ID
	}
	return info
}

var _ models.AgentInfoProvider = (*Supervisor)(nil)
