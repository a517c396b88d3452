package telemetry

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Cleanup flushes and releases the providers installed by SetupMetrics and SetupTracing.
func Cleanup(ctx context.Context) error {
	var result error
	if err := cleanupMeterProvider(ctx); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "meter cleanup error"))
	}
	if err := cleanupTracerProvider(ctx); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "tracer cleanup error"))
	}
	return result
}
