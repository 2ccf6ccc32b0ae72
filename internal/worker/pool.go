package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Pool is a fixed-size worker pool fed by a bounded channel. It caps the
// number of simultaneously in-flight submission jobs, which in turn bounds
// concurrent AI-provider calls and remote downloads.
type Pool struct {
	size    int
	jobChan chan func(context.Context)
	wg      sync.WaitGroup
	logger  zerolog.Logger
}

// NewPool constructs a pool with the given number of workers.
func NewPool(size int, logger zerolog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}

	return &Pool{
		size:    size,
		jobChan: make(chan func(context.Context), size*2),
		logger:  logger.With().Str("component", "worker_pool").Logger(),
	}
}

// Start launches the workers. They run until the pool is stopped;
// cancellation reaches running jobs through the context they receive.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info().Int("worker_count", p.size).Msg("starting worker pool")

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop closes the job channel and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	close(p.jobChan)
	p.wg.Wait()
	p.logger.Info().Msg("worker pool stopped")
}

// Submit blocks until a worker slot is available or the context is cancelled.
// Jobs are never silently dropped.
func (p *Pool) Submit(ctx context.Context, job func(context.Context)) error {
	select {
	case p.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.logger.With().Int("worker_id", id).Logger()
	log.Debug().Msg("worker started")

	// Accepted jobs were already popped from the queue, so the worker drains
	// the channel even after cancellation rather than dropping them.
	for job := range p.jobChan {
		job(ctx)
	}

	log.Debug().Msg("worker stopping, job channel closed")
}
