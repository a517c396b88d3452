package machine

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bacalhau-project/contractnet/pkg/telemetry"
)

var (
	Meter = otel.GetMeterProvider().Meter("machine")

	bidsSent = telemetry.Must(Meter.Int64Counter(
		"machine.bids.sent",
		metric.WithDescription("Number of bids sent in reply to a call for proposals"),
		metric.WithUnit("1"),
	))

	rejectionsSent = telemetry.Must(Meter.Int64Counter(
		"machine.rejections.sent",
		metric.WithDescription("Number of calls for proposals declined"),
		metric.WithUnit("1"),
	))

	jobsWon = telemetry.Must(Meter.Int64Counter(
		"machine.jobs.won",
		metric.WithDescription("Number of awards accepted"),
		metric.WithUnit("1"),
	))

	jobsCompleted = telemetry.Must(Meter.Int64Counter(
		"machine.jobs.completed",
		metric.WithDescription("Number of jobs executed to completion"),
		metric.WithUnit("1"),
	))

	awardsIgnored = telemetry.Must(Meter.Int64Counter(
		"machine.awards.ignored",
		metric.WithDescription("Number of awards dropped because they were not addressed to a pending bid or the machine was busy"),
		metric.WithUnit("1"),
	))

	executionDuration = telemetry.Must(Meter.Float64Histogram(
		"machine.execution.duration",
		metric.WithDescription("Time spent executing a job"),
		metric.WithUnit("s"),
	))
)

// Attributes
const (
	AttrMachineID = "machine_id"
	AttrJobType   = "job_type"
	AttrReason    = "reason"
)

func machineAttr(id string) attribute.KeyValue {
	return attribute.String(AttrMachineID, id)
}
