package supervisor

import (
	"context"
	"errors"
	"time"

	realsync "sync"

	"github.com/samber/lo"

	"github.com/bacalhau-project/contractnet/pkg/lib/validate"
	"github.com/bacalhau-project/contractnet/pkg/models"
	"github.com/bacalhau-project/contractnet/pkg/util/idgen"
)

// JobGenerator creates the job for the next auction.
type JobGenerator interface {
	Generate(ctx context.Context, now time.Time) (models.Job, error)
}

// JobGeneratorFunc is a helper function that implements JobGenerator interface
type JobGeneratorFunc func(ctx context.Context, now time.Time) (models.Job, error)

func (f JobGeneratorFunc) Generate(ctx context.Context, now time.Time) (models.Job, error) {
	return f(ctx, now)
}

// RandomJobGenerator picks a random job type for each job.
type RandomJobGenerator struct {
	types []models.JobType
	ids   idgen.IDGenerator
}

func NewRandomJobGenerator(types []models.JobType) (*RandomJobGenerator, error) {
	if err := validate.IsNotEmpty(types, "job types cannot be empty"); err != nil {
		return nil, err
	}
	return &RandomJobGenerator{
		types: append([]models.JobType(nil), types...),
		ids:   idgen.JobIDGenerator{},
	}, nil
}

func (g *RandomJobGenerator) Generate(_ context.Context, now time.Time) (models.Job, error) {
	id, err := g.ids.NewID()
	if err != nil {
		return models.Job{}, err
	}
	return models.NewJob(id, lo.Sample(g.types), now), nil
}

// SequenceJobGenerator cycles through job types in order and numbers jobs job_1, job_2...
// It makes auctions predictable in tests and demos.
type SequenceJobGenerator struct {
	mu    realsync.Mutex
	types []models.JobType
	ids   *idgen.SequenceIDGenerator
	next  int
}

func NewSequenceJobGenerator(types ...models.JobType) *SequenceJobGenerator {
	return &SequenceJobGenerator{
		types: types,
		ids:   idgen.NewSequenceIDGenerator(idgen.JobIDPrefix),
	}
}

func (g *SequenceJobGenerator) Generate(_ context.Context, now time.Time) (models.Job, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.types) == 0 {
		return models.Job{}, errors.New("sequence job generator has no job types")
	}
	jobType := g.types[g.next%len(g.types)]
	g.next++
	id, err := g.ids.NewID()
	if err != nil {
		return models.Job{}, err
	}
	return models.NewJob(id, jobType, now), nil
}

// compile-time interface assertions
var _ JobGenerator = JobGeneratorFunc(nil)
var _ JobGenerator = (*RandomJobGenerator)(nil)
var _ JobGenerator = (*SequenceJobGenerator)(nil)
