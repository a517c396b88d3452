package telemetry

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var (
	meterProvider *sdkmetric.MeterProvider
	metricsReader *sdkmetric.ManualReader
)

// Must panics if err is not nil. It is used to create instruments at package init.
func Must[T any](instrument T, err error) T {
	if err != nil {
		panic(err)
	}
	return instrument
}

// SetupMetrics installs an SDK meter provider whose metrics are kept in memory and
// read on demand with Collect. Instruments created before the call are picked up too.
func SetupMetrics() {
	if meterProvider != nil {
		return
	}
	metricsReader = sdkmetric.NewManualReader()
	meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricsReader))
	otel.SetMeterProvider(meterProvider)
	log.Debug().Msg("in-memory metrics enabled")
}

// MetricsEnabled returns true if SetupMetrics was called.
func MetricsEnabled() bool {
	return metricsReader != nil
}

// Collect reads the current value of every instrument.
func Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if metricsReader == nil {
		return rm, nil
	}
	err := metricsReader.Collect(ctx, &rm)
	return rm, err
}

// Snapshot flattens collected metrics into a map of instrument name to value.
// Counters are summed across attributes, histograms report their count.
func Snapshot(rm metricdata.ResourceMetrics) map[string]int64 {
	values := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					values[m.Name] += dp.Value
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					values[m.Name] += int64(dp.Count)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					values[m.Name] += int64(dp.Count)
				}
			default:
			}
		}
	}
	return values
}

func cleanupMeterProvider(ctx context.Context) error {
	if meterProvider == nil {
		return nil
	}
	return meterProvider.Shutdown(ctx)
}
