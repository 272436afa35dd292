package compute

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/store"
)

// Saver is the write side of a store.
type Saver[A any] interface {
	Save(ctx context.Context, artifact A, sys, run params.Params, opts store.SaveOptions) (store.SaveResult, error)
}

// Result is one computed task and, if it succeeded, where it was saved.
type Result[A any] struct {
	Outcome[A]
	Saved *store.SaveResult
}

// Coordinator computes on a pool and saves every successful result from a
// single goroutine, in task order.
type Coordinator[A any] struct {
	pool   *Pool[A]
	saver  Saver[A]
	opts   store.SaveOptions
	logger *slog.Logger
}

// NewCoordinator returns a coordinator saving through saver with opts.
func NewCoordinator[A any](pool *Pool[A], saver Saver[A], opts store.SaveOptions, logger *slog.Logger) *Coordinator[A] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator[A]{pool: pool, saver: saver, opts: opts, logger: logger}
}

// Run computes all tasks, then saves the successes one after another.
//
// Failed computations are left unsaved with their error in the result. A
// save error stops the run; the results up to and including the failing
// task are returned with it.
func (c *Coordinator[A]) Run(ctx context.Context, sys params.Params, tasks []params.Params) ([]Result[A], error) {
	outcomes := c.pool.Run(ctx, sys, tasks)

	results := make([]Result[A], 0, len(outcomes))
	for _, out := range outcomes {
		res := Result[A]{Outcome: out}
		if out.Err != nil {
			results = append(results, res)
			continue
		}

		saved, err := c.saver.Save(ctx, out.Artifact, sys, out.Run, c.opts)
		if err != nil {
			results = append(results, res)
			return results, fmt.Errorf("save task %d: %w", out.Index, err)
		}
		res.Saved = &saved
		results = append(results, res)
		c.logger.Debug("task saved", "task", out.Index, "run_id", saved.RunID, "instance_id", saved.InstanceID)
	}
	return results, nil
}

// Failed counts the results whose computation failed.
func Failed[A any](results []Result[A]) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
