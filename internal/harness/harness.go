package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/container"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/store"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/testutil"
)

// Epoch is the first instance timestamp of every scenario. Each save that
// writes an instance advances the clock by one second.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Harness executes scenario steps against one store file.
type Harness struct {
	path     string
	store    *store.Store[any]
	recorder *store.Recorder
	system   params.Params
	logger   *slog.Logger
}

// Run executes a scenario against a fresh store and returns the result.
//
// Execution flow:
// 1. Create a store file in a temporary directory
// 2. Execute flow steps, checking each expect clause
// 3. Evaluate assertions against the final store
// 4. Remove the temporary directory
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "qestore-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in scenarios
	path := filepath.Join(dir, "store.qes")
	rec := &store.Recorder{}
	clock := testutil.NewFixedClock(Epoch, time.Second)

	h := &Harness{
		path: path,
		store: store.New[any](path,
			store.WithLogger(logger),
			store.WithDiagnostics(rec),
			store.WithCodec(store.JSONCodec{}),
			store.WithClock(clock.Now),
		),
		recorder: rec,
		system:   params.FromMap(scenario.System),
		logger:   logger,
	}

	ctx := context.Background()
	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	// Assertions read the store too; only flow diagnostics are reported.
	flowDiags := rec.Diagnostics()
	for _, d := range flowDiags {
		result.Diagnostics = append(result.Diagnostics, string(d.Kind)+" "+d.Path)
	}

	actx := &AssertionContext{Ctx: ctx, Store: h.store, Diagnostics: flowDiags}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// executeFlow runs all flow steps and validates expect clauses.
// Store errors are recorded in the trace; only harness failures are returned.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) error {
	for i, step := range flow {
		event := TraceEvent{Step: i + 1, Op: step.Op}

		outcome, err := h.executeStep(ctx, step)
		var harnessErr *harnessError
		if errors.As(err, &harnessErr) {
			return fmt.Errorf("flow step %d: %w", i+1, harnessErr.err)
		}
		if err != nil {
			event.Error = errorKind(err)
		} else {
			event.Outcome = outcome
		}
		result.AddTrace(event)

		for _, msg := range checkExpect(step, outcome, err) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
		}

		h.logger.Info("flow step completed", "step", i+1, "op", step.Op, "error", event.Error)
	}
	return nil
}

// harnessError marks failures of the harness itself, as opposed to store
// errors that scenarios may expect.
type harnessError struct{ err error }

func (e *harnessError) Error() string { return e.err.Error() }

func (h *Harness) executeStep(ctx context.Context, step Step) (map[string]any, error) {
	switch step.Op {
	case OpSave:
		sys := h.system
		if step.System != nil {
			sys = params.FromMap(step.System)
		}
		res, err := h.store.Save(ctx, step.Artifact, sys, params.FromMap(step.Run), store.SaveOptions{
			RunID:              step.RunID,
			DisableParamSafety: step.NoParamSafety,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"run_id":      res.RunID,
			"instance_id": res.InstanceID,
			"created":     res.Created,
		}, nil

	case OpLoad:
		loaded, err := h.store.Load(ctx, step.RunID)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"run_id":      loaded.RunID,
			"instance_id": loaded.InstanceID,
			"artifact":    loaded.Artifact,
			"run_params":  params.ToMap(loaded.RunParams),
			"timestamp":   loaded.Timestamp,
		}, nil

	case OpLoadAll:
		sys, entries, err := h.store.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.RunID + "/" + e.InstanceID
		}
		return map[string]any{
			"entries":       ids,
			"system_params": params.ToMap(sys),
		}, nil

	case OpSysParam:
		sys, ok, err := h.store.SystemParams(ctx)
		if err != nil {
			return nil, err
		}
		out := map[string]any{"present": ok}
		if ok {
			out["system_params"] = params.ToMap(sys)
		}
		return out, nil

	case OpLegacy:
		if err := h.writeLegacyRun(ctx, step); err != nil {
			return nil, &harnessError{err: err}
		}
		return map[string]any{"run_id": step.RunID}, nil

	default:
		return nil, &harnessError{err: fmt.Errorf("unknown op %q", step.Op)}
	}
}

// writeLegacyRun writes a run that lacks its params or its instances group.
// Array and other values are written as strings.
func (h *Harness) writeLegacyRun(ctx context.Context, step Step) error {
	f, err := container.Open(ctx, h.path, container.ModeReadWriteCreate)
	if err != nil {
		return err
	}
	defer f.Close()

	runs, err := f.Root().RequireGroup(ctx, "runs")
	if err != nil {
		return err
	}
	run, err := runs.CreateGroup(ctx, step.RunID)
	if err != nil {
		return err
	}

	if step.Missing == "params" {
		_, err := run.CreateGroup(ctx, "instances")
		return err
	}

	g, err := run.CreateGroup(ctx, "params")
	if err != nil {
		return err
	}
	p := params.FromMap(step.Run)
	for _, key := range p.Keys() {
		var value any
		switch v := p[key].(type) {
		case params.Int:
			value = int64(v)
		case params.Float:
			value = float64(v)
		case params.Bool:
			value = bool(v)
		default:
			value = v.String()
		}
		if err := g.Write(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// errorKind names a step error for the trace.
func errorKind(err error) string {
	var se *store.Error
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	return "ERROR"
}
