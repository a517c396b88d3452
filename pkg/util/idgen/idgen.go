package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	// JobIDPrefix is prepended to every generated job id.
	JobIDPrefix = "job_"

	shortIDLength = 8
)

// IDGenerator generates unique ids.
type IDGenerator interface {
	NewID() (string, error)
}

// IDGeneratorFunc is an adapter to allow the use of ordinary functions as IDGenerator.
type IDGeneratorFunc func() (string, error)

func (f IDGeneratorFunc) NewID() (string, error) {
	return f()
}

// JobIDGenerator generates ids such as job_1a2b3c4d from random UUIDs.
type JobIDGenerator struct{}

func (JobIDGenerator) NewID() (string, error) {
	r, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating UUID: %w", err)
	}
	return JobIDPrefix + ShortID(r.String()), nil
}

// SequenceIDGenerator generates predictable ids with a prefix and an increasing counter.
// It is not safe for concurrent use.
type SequenceIDGenerator struct {
	prefix string
	next   int
}

func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	return &SequenceIDGenerator{prefix: prefix, next: 1}
}

func (g *SequenceIDGenerator) NewID() (string, error) {
	id := fmt.Sprintf("%s%d", g.prefix, g.next)
	g.next++
	return id, nil
}

// ShortID returns the first characters of an id with any dashes removed.
func ShortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

// compile time check for IDGenerator interface
var _ IDGenerator = IDGeneratorFunc(nil)
var _ IDGenerator = JobIDGenerator{}
var _ IDGenerator = &SequenceIDGenerator{}
