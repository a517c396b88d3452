package supervisor

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bacalhau-project/contractnet/pkg/telemetry"
)

var (
	Meter = otel.GetMeterProvider().Meter("supervisor")

	auctionsCreated = telemetry.Must(Meter.Int64Counter(
		"supervisor.auctions.created",
		metric.WithDescription("Number of auctions opened"),
		metric.WithUnit("1"),
	))

	auctionsAllocated = telemetry.Must(Meter.Int64Counter(
		"supervisor.auctions.allocated",
		metric.WithDescription("Number of auctions that awarded the job to a machine"),
		metric.WithUnit("1"),
	))

	auctionsFailed = telemetry.Must(Meter.Int64Counter(
		"supervisor.auctions.failed",
		metric.WithDescription("Number of auctions that ended without an award"),
		metric.WithUnit("1"),
	))

	bidsReceived = telemetry.Must(Meter.Int64Counter(
		"supervisor.bids.received",
		metric.WithDescription("Number of bids and rejections admitted into an auction"),
		metric.WithUnit("1"),
	))

	messagesDropped = telemetry.Must(Meter.Int64Counter(
		"supervisor.messages.dropped",
		metric.WithDescription("Number of replies dropped because they were late, stale or duplicated"),
		metric.WithUnit("1"),
	))

	jobsCompleted = telemetry.Must(Meter.Int64Counter(
		"supervisor.jobs.completed",
		metric.WithDescription("Number of completion notices received"),
		metric.WithUnit("1"),
	))

	auctionBids = telemetry.Must(Meter.Int64Histogram(
		"supervisor.auction.bids",
		metric.WithDescription("Number of bids in a sealed auction"),
		metric.WithUnit("1"),
	))
)

// Attributes
const (
	AttrSupervisorID = "supervisor_id"
	AttrJobType      = "job_type"
	AttrReplyType    = "reply_type"
	AttrDropReason   = "drop_reason"
)

func supervisorAttr(id string) attribute.KeyValue {
	return attribute.String(AttrSupervisorID, id)
}
