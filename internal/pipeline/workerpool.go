// Package pipeline runs per-file corpus work on a bounded pool of
// goroutines.
package pipeline

import (
	"context"
	"runtime"
	"sync"
)

// DefaultWorkers is used when a pool is asked for zero workers.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// WorkerPool distributes jobs across a fixed number of workers and
// collects their results.
type WorkerPool[Job any, Result any] struct {
	numWorkers int
	jobs       chan Job
	results    chan Result
	wg         sync.WaitGroup
}

// NewWorkerPool creates a pool. A non-positive numWorkers selects
// DefaultWorkers; the pool never has more workers than jobs.
func NewWorkerPool[Job any, Result any](numWorkers, numJobs int) *WorkerPool[Job, Result] {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers()
	}
	if numJobs > 0 {
		numWorkers = min(numWorkers, numJobs)
	}

	return &WorkerPool[Job, Result]{
		numWorkers: numWorkers,
		jobs:       make(chan Job, numJobs),
		results:    make(chan Result, numJobs),
	}
}

// Workers returns the number of goroutines the pool runs.
func (p *WorkerPool[Job, Result]) Workers() int {
	return p.numWorkers
}

// Start launches the workers.
func (p *WorkerPool[Job, Result]) Start(workerFn func(Job) Result) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.results <- workerFn(job)
			}
		}()
	}
}

// Submit queues a job.
func (p *WorkerPool[Job, Result]) Submit(job Job) {
	p.jobs <- job
}

// Close stops accepting jobs. Results is closed once every worker is done.
func (p *WorkerPool[Job, Result]) Close() {
	close(p.jobs)
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// Results returns the results channel.
func (p *WorkerPool[Job, Result]) Results() <-chan Result {
	return p.results
}

type indexed[T any] struct {
	i int
	v T
}

// Map applies fn to every input on a pool of workers and returns the
// outputs in input order. Inputs not yet started when ctx is done are
// skipped and left as the zero value; Map then returns ctx.Err().
func Map[In any, Out any](ctx context.Context, workers int, inputs []In, fn func(context.Context, In) Out) ([]Out, error) {
	out := make([]Out, len(inputs))
	if len(inputs) == 0 {
		return out, nil
	}

	pool := NewWorkerPool[indexed[In], indexed[Out]](workers, len(inputs))
	pool.Start(func(job indexed[In]) indexed[Out] {
		if ctx.Err() != nil {
			return indexed[Out]{i: -1}
		}
		return indexed[Out]{i: job.i, v: fn(ctx, job.v)}
	})
	for i, in := range inputs {
		pool.Submit(indexed[In]{i: i, v: in})
	}
	pool.Close()

	for r := range pool.Results() {
		if r.i >= 0 {
			out[r.i] = r.v
		}
	}
	return out, ctx.Err()
}
