package types

import (
	"fmt"
	"time"
)

// Duration is a time.Duration that is written as a Go duration string such as "3s" in
// configuration files, environment variables and flags.
type Duration time.Duration

const (
	Second = Duration(time.Second)
	Minute = Duration(time.Minute)
)

func (d Duration) AsTimeDuration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}
