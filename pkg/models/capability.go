package models

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// CapabilityTable maps the job types a machine can execute to the time it takes to execute them.
// It is fixed at machine startup and read-only afterwards.
type CapabilityTable map[JobType]time.Duration

// ParseCapabilities parses a capability list such as "job_A:5,job_B:3.5", where each
// duration is expressed in seconds. Go duration strings such as "job_A:1500ms" are also accepted.
func ParseCapabilities(value string) (CapabilityTable, error) {
	table := make(CapabilityTable)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, rawDuration, found := strings.Cut(item, ":")
		if !found {
			return nil, fmt.Errorf("invalid capability %q: expected <job_type>:<seconds>", item)
		}
		jobType := JobType(strings.TrimSpace(name))
		duration, err := parseCapabilityDuration(strings.TrimSpace(rawDuration))
		if err != nil {
			return nil, fmt.Errorf("invalid capability %q: %w", item, err)
		}
		if _, ok := table[jobType]; ok {
			return nil, fmt.Errorf("duplicate capability for job type %q", jobType)
		}
		table[jobType] = duration
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func parseCapabilityDuration(raw string) (time.Duration, error) {
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		if err = Seconds(seconds).Validate("duration"); err != nil {
			return 0, err
		}
		return Seconds(seconds).Duration(), nil
	}
	return time.ParseDuration(raw)
}

// Validate checks the table is not empty and that every entry has a valid type and a positive duration.
func (c CapabilityTable) Validate() error {
	if len(c) == 0 {
		return errors.New("capability table cannot be empty")
	}
	var errs error
	for _, jobType := range c.JobTypes() {
		if err := jobType.Validate(); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if c[jobType] <= 0 {
			errs = errors.Join(errs, fmt.Errorf("capability %s must have a positive duration, got %s", jobType, c[jobType]))
		}
	}
	return errs
}

// Duration returns the execution duration for the job type, and whether the job type is supported.
func (c CapabilityTable) Duration(jobType JobType) (time.Duration, bool) {
	d, ok := c[jobType]
	return d, ok
}

// Supports returns true if the job type is present in the table.
func (c CapabilityTable) Supports(jobType JobType) bool {
	_, ok := c[jobType]
	return ok
}

// JobTypes returns the supported job types in lexical order.
func (c CapabilityTable) JobTypes() []JobType {
	types := lo.Keys(c)
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Copy returns an independent copy of the table.
func (c CapabilityTable) Copy() CapabilityTable {
	if c == nil {
		return nil
	}
	return lo.Assign(map[JobType]time.Duration{}, c)
}

// String renders the table in the same format accepted by ParseCapabilities.
func (c CapabilityTable) String() string {
	return strings.Join(lo.Map(c.JobTypes(), func(t JobType, _ int) string {
		return fmt.Sprintf("%s:%s", t, strconv.FormatFloat(c[t].Seconds(), 'f', -1, 64))
	}), ",")
}
