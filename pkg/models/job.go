package models

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/bacalhau-project/contractnet/pkg/lib/validate"
)

// JobType identifies the kind of work a job represents.
// Machines advertise the job types they can execute through their CapabilityTable.
type JobType string

const (
	JobTypeA JobType = "job_A"
	JobTypeB JobType = "job_B"
	JobTypeC JobType = "job_C"
	JobTypeD JobType = "job_D"
	JobTypeE JobType = "job_E"
)

// DefaultJobTypes is the enumeration a supervisor draws jobs from unless configured otherwise.
var DefaultJobTypes = []JobType{JobTypeA, JobTypeB, JobTypeC, JobTypeD, JobTypeE}

var jobTypePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

func (t JobType) String() string {
	return string(t)
}

// Validate checks the job type is usable as a capability key and on the wire.
func (t JobType) Validate() error {
	if !jobTypePattern.MatchString(string(t)) {
		return fmt.Errorf("invalid job type %q: must be non-empty and contain only letters, digits, '_' or '-'", t)
	}
	return nil
}

// ParseJobTypes converts and validates a list of job type names.
func ParseJobTypes(names []string) ([]JobType, error) {
	if len(names) == 0 {
		return nil, errors.New("at least one job type is required")
	}
	seen := make(map[JobType]struct{}, len(names))
	types := make([]JobType, 0, len(names))
	for _, name := range names {
		t := JobType(name)
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[t]; ok {
			return nil, fmt.Errorf("duplicate job type %q", t)
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	return types, nil
}

// Job is a unit of work auctioned by a supervisor.
// Jobs are immutable once created and only live for the duration of their auction.
type Job struct {
	ID          string
	Type        JobType
	Description string
	CreatedAt   time.Time
}

// NewJob creates a job with the default description for its type.
func NewJob(id string, jobType JobType, createdAt time.Time) Job {
	return Job{
		ID:          id,
		Type:        jobType,
		Description: fmt.Sprintf("Execute %s operation", jobType),
		CreatedAt:   createdAt,
	}
}

func (j Job) String() string {
	return fmt.Sprintf("%s(%s)", j.ID, j.Type)
}

// Validate returns an error if the job is missing its identity or type.
func (j Job) Validate() error {
	return errors.Join(
		validate.NotBlank(j.ID, "job id cannot be blank"),
		j.Type.Validate(),
	)
}
