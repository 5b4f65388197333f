// Package runner schedules multiple independent backtests across a fixed
// worker budget. Grounded on ThreadPoolOptions in original_source's
// forge.hpp, implemented with golang.org/x/sync's errgroup and semaphore as
// used elsewhere in the retrieved corpus for bounded-concurrency fan-out.
package runner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/web3guy0/polyforge/engine"
	"github.com/web3guy0/polyforge/models"
	"github.com/web3guy0/polyforge/plugin"
)

// Job is one backtest to run: a host configuration, the strategy to drive
// it, and the pre-batched bar stream to feed it.
type Job struct {
	Name     string
	Host     plugin.HostParams
	Strategy plugin.Strategy
	Batches  [][]models.Bar
}

// Outcome pairs a Job's name with its finished report, or the error that
// stopped it.
type Outcome struct {
	Name   string
	Report *engine.Report
	Err    error
}

// Pool runs jobs with at most Concurrency running at once. Concurrency <= 0
// means unbounded (every job starts immediately).
type Pool struct {
	Concurrency int
}

// NewPool returns a Pool bounded to the given concurrency.
func NewPool(concurrency int) *Pool {
	return &Pool{Concurrency: concurrency}
}

// Run executes every job, returning one Outcome per job in submission
// order. The first job whose Engine.Run returns a fatal error cancels ctx,
// matching errgroup's standard fail-fast semantics: jobs still waiting for
// a worker slot stop with the context error, while jobs already running
// finish and, like jobs that had already completed, keep their results.
func (p *Pool) Run(ctx context.Context, jobs []Job) ([]Outcome, error) {
	outcomes := make([]Outcome, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	limit := int64(p.Concurrency)
	if limit <= 0 {
		limit = int64(len(jobs))
		if limit == 0 {
			limit = 1
		}
	}
	sem := semaphore.NewWeighted(limit)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				outcomes[i] = Outcome{Name: job.Name, Err: err}
				return err
			}
			defer sem.Release(1)

			log.Info().Str("job", job.Name).Msg("runner: starting backtest")
			e := engine.New(job.Host, job.Strategy)
			report, err := e.Run(job.Batches)
			outcomes[i] = Outcome{Name: job.Name, Report: report, Err: err}
			if err != nil {
				log.Error().Str("job", job.Name).Err(err).Msg("runner: backtest failed")
				return err
			}
			log.Info().Str("job", job.Name).Msg("runner: backtest finished")
			return nil
		})
	}

	err := g.Wait()
	return outcomes, err
}

// MonteCarloStub stands in for a Monte Carlo resampling engine. The
// original's monte_carlo_engine.hpp ships only a placeholder report shape
// with no resampling logic implemented; this mirrors that boundary rather
// than inventing sampling behavior the spec never describes.
type MonteCarloStub struct{}

// Run always returns an error: Monte Carlo resampling is not implemented.
func (MonteCarloStub) Run(context.Context, Job, int) error {
	return fmt.Errorf("runner: monte carlo simulation is not implemented")
}
