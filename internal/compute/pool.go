package compute

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
)

// Outcome is the result of one task.
type Outcome[A any] struct {
	Index    int
	Run      params.Params
	Artifact A
	Err      error
	Duration time.Duration
}

// Pool runs a computation over many run params with bounded parallelism.
type Pool[A any] struct {
	comp     Computation[A]
	parallel int
	logger   *slog.Logger
}

// NewPool returns a pool running at most parallel computations at once.
// parallel <= 0 means runtime.NumCPU().
func NewPool[A any](comp Computation[A], parallel int, logger *slog.Logger) *Pool[A] {
	if parallel <= 0 {
		parallel = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool[A]{comp: comp, parallel: parallel, logger: logger}
}

// Parallel returns the worker limit.
func (p *Pool[A]) Parallel() int { return p.parallel }

// Run computes every task and returns the outcomes in task order.
//
// A failing task does not stop the others; its error is kept in its Outcome.
// Tasks that have not started when ctx is cancelled fail with ctx.Err().
func (p *Pool[A]) Run(ctx context.Context, sys params.Params, tasks []params.Params) []Outcome[A] {
	outcomes := make([]Outcome[A], len(tasks))

	g := new(errgroup.Group)
	g.SetLimit(p.parallel)
	for i, run := range tasks {
		outcomes[i] = Outcome[A]{Index: i, Run: run}
		g.Go(func() error {
			out := &outcomes[i]
			if err := ctx.Err(); err != nil {
				out.Err = err
				return nil
			}
			start := time.Now()
			out.Artifact, out.Err = p.comp.Compute(ctx, run, sys)
			out.Duration = time.Since(start)
			if out.Err != nil {
				p.logger.Warn("computation failed", "task", i, "error", out.Err)
			} else {
				p.logger.Debug("computation finished", "task", i, "duration", out.Duration)
			}
			return nil
		})
	}
	_ = g.Wait() // errors captured in Outcome.Err

	return outcomes
}
