package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/compute"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/store"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	StoreOptions
	Grid          string
	System        ParamFlags
	Parallel      int
	NoParamSafety bool
}

// SweepTask is the outcome of one grid point.
type SweepTask struct {
	Index      int            `json:"index"`
	Run        map[string]any `json:"run"`
	RunID      string         `json:"run_id,omitempty"`
	InstanceID string         `json:"instance_id,omitempty"`
	Created    bool           `json:"created,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// SweepResult holds the overall sweep result.
type SweepResult struct {
	Tasks  []SweepTask `json:"tasks"`
	Saved  int         `json:"saved"`
	Failed int         `json:"failed"`
	Total  int         `json:"total"`
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "sweep --grid <grid.yaml> -- <program> [args...]",
		Short: "Run a program over a parameter grid and save every result",
		Long: `Run an external program once per point of a parameter grid and save each
result as an instance of the run matching that point.

The program receives {"run": {...}, "system": {...}} as JSON on stdin and
must write the artifact to stdout. Programs run in parallel; saves happen one
at a time, in grid order. A failing program is reported and skipped.

Grid file:
  N: [4, 8, 16]
  sigma: [0.001, 0.01]
  periodic: true

Exit codes:
  0 - Every point was computed and saved
  1 - One or more points failed, or a save failed
  2 - Command error (bad grid, missing program, etc.)

Examples:
  qestore sweep --db results.qes --grid grid.yaml -- ./solver --tol 1e-9
  qestore sweep --db results.qes --grid grid.yaml --system J=1.0 --parallel 4 -- python solve.py`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, args, cmd)
		},
	}

	opts.addStoreFlags(cmd)
	cmd.Flags().StringVar(&opts.Grid, "grid", "", "grid file (YAML) (required)")
	cmd.Flags().StringArrayVar(&opts.System.Assignments, "system", nil, "system parameter key=value (repeatable)")
	cmd.Flags().StringVar(&opts.System.File, "system-file", "", "system parameters file (.yaml, .json, .cue)")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "programs run at once (default: parallel in --config, else CPU count)")
	cmd.Flags().BoolVar(&opts.NoParamSafety, "no-param-safety", false, "allow system parameter keys the store lacks")
	_ = cmd.MarkFlagRequired("grid")

	return cmd
}

func runSweep(opts *SweepOptions, argv []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	db, err := opts.database()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, err)
	}
	grid, err := params.LoadGrid(opts.Grid)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, err)
	}
	tasks := grid.Expand()
	if len(tasks) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, fmt.Errorf("grid %s has no points", opts.Grid))
	}
	sys, err := opts.System.Build()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, fmt.Errorf("system params: %w", err))
	}

	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = opts.config().Parallel
	}

	logger := opts.logger(cmd.ErrOrStderr())
	rec := &store.Recorder{}
	st := store.New[[]byte](db, append(opts.storeOptions(cmd, rec), store.WithCodec(store.RawCodec{}))...)
	program := compute.Memoize[[]byte](compute.Command{Path: argv[0], Args: argv[1:]}, &compute.Cache[string, []byte]{})
	pool := compute.NewPool[[]byte](program, parallel, logger)
	coord := compute.NewCoordinator[[]byte](pool, st, store.SaveOptions{
		DisableParamSafety: opts.NoParamSafety || !opts.config().paramSafety(),
	}, logger)

	formatter.VerboseLog("Sweeping %d point(s) with %d worker(s): %v", len(tasks), pool.Parallel(), argv)
	results, saveErr := coord.Run(commandContext(cmd), sys, tasks)
	result := sweepResult(results, len(tasks))

	if formatter.Format == "json" {
		return outputSweepJSON(formatter, result, saveErr)
	}
	return outputSweepText(formatter, result, tasks, saveErr)
}

// sweepResult summarizes coordinator results. When a save failed, results
// stop at the failing point, which has neither an error nor a save.
func sweepResult(results []compute.Result[[]byte], total int) SweepResult {
	result := SweepResult{Tasks: make([]SweepTask, 0, len(results)), Total: total}
	for _, r := range results {
		task := SweepTask{
			Index:      r.Index + 1,
			Run:        params.ToMap(r.Run),
			DurationMS: r.Duration.Milliseconds(),
		}
		switch {
		case r.Err != nil:
			task.Error = r.Err.Error()
			result.Failed++
		case r.Saved != nil:
			task.RunID = r.Saved.RunID
			task.InstanceID = r.Saved.InstanceID
			task.Created = r.Saved.Created
			result.Saved++
		default:
			task.Error = "save failed"
			result.Failed++
		}
		result.Tasks = append(result.Tasks, task)
	}
	return result
}

// outputSweepJSON outputs the sweep result as JSON. A store error takes
// precedence over failed tasks.
func outputSweepJSON(formatter *OutputFormatter, result SweepResult, saveErr error) error {
	if saveErr != nil {
		code := storeErrorCode(saveErr)
		if err := formatter.encodeJSON(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: code, Message: saveErr.Error()},
		}); err != nil {
			return err
		}
		exitErr := WrapExitError(ExitFailure, code, saveErr)
		exitErr.Reported = true
		return exitErr
	}

	if result.Failed == 0 {
		return formatter.Success(result)
	}

	msg := fmt.Sprintf("%d task(s) failed", result.Failed)
	if err := formatter.encodeJSON(CLIResponse{
		Status: "error",
		Data:   result,
		Error:  &CLIError{Code: "E_SWEEP_FAILED", Message: msg},
	}); err != nil {
		return err
	}
	return reportedExitError(ExitFailure, msg)
}

// outputSweepText outputs the sweep result as text.
func outputSweepText(formatter *OutputFormatter, result SweepResult, points []params.Params, saveErr error) error {
	w := formatter.Writer
	for _, task := range result.Tasks {
		point := paramsLine(points[task.Index-1])
		if task.Error != "" {
			fmt.Fprintf(w, "✗ task %d %s\n", task.Index, point)
			fmt.Fprintf(w, "  %s\n", task.Error)
			continue
		}
		fmt.Fprintf(w, "✓ task %d %s → run %s, instance %s\n", task.Index, point, task.RunID, task.InstanceID)
	}

	fmt.Fprintln(w)
	if saveErr != nil {
		fmt.Fprintf(w, "Sweep aborted: %d saved, %d failed, %d skipped, %d total\n",
			result.Saved, result.Failed, result.Total-len(result.Tasks), result.Total)
		return formatter.StoreFailure(saveErr)
	}
	fmt.Fprintf(w, "Sweep Summary: %d saved, %d failed, %d total\n", result.Saved, result.Failed, result.Total)

	if result.Failed > 0 {
		return reportedExitError(ExitFailure, fmt.Sprintf("%d task(s) failed", result.Failed))
	}
	return nil
}
