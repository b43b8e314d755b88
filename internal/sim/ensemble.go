package sim

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/san-kum/numode/internal/dynamo"
	"github.com/san-kum/numode/internal/integrators"
)

// Job is one independent run. Jobs must not share a Stepper.
type Job struct {
	Name    string
	System  dynamo.System
	Stepper integrators.Stepper
	Y0      dynamo.State
	Config  Config
}

// Ensemble runs jobs concurrently, at most Workers at a time.
type Ensemble struct {
	Workers int
	jobs    []Job
}

func NewEnsemble(workers int) *Ensemble {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Ensemble{Workers: workers}
}

func (e *Ensemble) Add(job Job) { e.jobs = append(e.jobs, job) }

func (e *Ensemble) Len() int { return len(e.jobs) }

// Run returns one result per job in the order added. The first error, if
// any, is returned after every job has finished.
func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, len(e.jobs))
	errs := make([]error, len(e.jobs))
	sem := make(chan struct{}, max(e.Workers, 1))

	var wg sync.WaitGroup
	for i, job := range e.jobs {
		wg.Add(1)
		go func(idx int, job Job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx], errs[idx] = New(job.System, job.Stepper).Run(ctx, job.Y0, job.Config)
		}(i, job)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return results, fmt.Errorf("job %s: %w", e.jobs[i].Name, err)
		}
	}
	return results, nil
}
