package models

import (
	"fmt"
	"math"
	"time"
)

// Seconds is a duration expressed as fractional seconds on the wire.
type Seconds float64

// MaxSeconds is the largest wire duration that fits in a time.Duration.
const MaxSeconds Seconds = Seconds(math.MaxInt64 / float64(time.Second))

// SecondsOf converts a duration into wire seconds.
func SecondsOf(d time.Duration) Seconds {
	return Seconds(d.Seconds())
}

// Duration converts wire seconds back into a duration with nanosecond precision.
// Values outside [0, MaxSeconds] saturate to the nearest bound.
func (s Seconds) Duration() time.Duration {
	if math.IsNaN(float64(s)) || s <= 0 {
		return 0
	}
	nanos := math.Round(float64(s) * float64(time.Second))
	if nanos >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(nanos)
}

// Validate checks the value is finite, not negative and representable as a time.Duration.
func (s Seconds) Validate(field string) error {
	if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
		return fmt.Errorf("%s must be a finite number", field)
	}
	if s < 0 {
		return fmt.Errorf("%s cannot be negative", field)
	}
	if s > MaxSeconds {
		return fmt.Errorf("%s cannot exceed %g seconds", field, float64(MaxSeconds))
	}
	return nil
}

// Timestamp is a point in time expressed as fractional Unix seconds on the wire.
type Timestamp float64

// TimestampOf converts a time into a wire timestamp.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(float64(t.UnixNano()) / float64(time.Second))
}

// Time converts the wire timestamp back into a time with microsecond precision.
func (t Timestamp) Time() time.Time {
	return time.UnixMicro(int64(math.Round(float64(t) * 1e6)))
}
