package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/store"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	StoreOptions
	RunID         string
	Run           ParamFlags
	System        ParamFlags
	NoParamSafety bool
	Codec         string
}

// SaveOutput is the result of a save.
type SaveOutput struct {
	RunID       string   `json:"run_id"`
	InstanceID  string   `json:"instance_id"`
	Created     bool     `json:"created"`
	Bytes       int      `json:"bytes"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "save <artifact-file|->",
		Short: "Save an artifact as a new instance",
		Long: `Save an artifact file (or stdin with "-") into the store.

The artifact is filed under the run whose parameters equal the given run
parameters, or under a new run. --run-id always creates a new run; a taken
name is suffixed with _1, _2, ...

System parameters are written on the first save. Later saves fail when they
carry a system parameter key the store does not have, unless
--no-param-safety is set.

With --codec json the artifact must be a JSON document and is stored so that
programs reading the store with the JSON codec can decode it.

Examples:
  qestore save --db results.qes --param N=8 --param sigma=1e-3 state.bin
  qestore save --db results.qes --params-file run.yaml --system-file system.cue state.bin
  solver | qestore save --db results.qes --run-id baseline --param N=4 -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	opts.addStoreFlags(cmd)
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "explicit run id (always creates a run)")
	cmd.Flags().StringArrayVarP(&opts.Run.Assignments, "param", "p", nil, "run parameter key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Run.File, "params-file", "", "run parameters file (.yaml, .json, .cue)")
	cmd.Flags().StringArrayVar(&opts.System.Assignments, "system", nil, "system parameter key=value (repeatable)")
	cmd.Flags().StringVar(&opts.System.File, "system-file", "", "system parameters file (.yaml, .json, .cue)")
	cmd.Flags().BoolVar(&opts.NoParamSafety, "no-param-safety", false, "allow system parameter keys the store lacks")
	cmd.Flags().StringVar(&opts.Codec, "codec", "", "artifact codec (raw|json, default raw or codec in --config)")

	return cmd
}

func runSave(opts *SaveOptions, artifactPath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	db, err := opts.database()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, err)
	}
	codec := opts.Codec
	if codec == "" {
		codec = opts.config().Codec
	}
	if codec == "" {
		codec = "raw"
	}
	if !isValidCodec(codec) {
		return formatter.Fail(ExitCommandError, ErrCodeUsage,
			fmt.Errorf("invalid codec %q: must be one of %v", codec, ValidCodecs))
	}

	run, err := opts.Run.Build()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, fmt.Errorf("run params: %w", err))
	}
	sys, err := opts.System.Build()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, fmt.Errorf("system params: %w", err))
	}
	data, err := readInput(cmd, artifactPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeIO, fmt.Errorf("read artifact: %w", err))
	}

	saveOpts := store.SaveOptions{
		RunID:              opts.RunID,
		DisableParamSafety: opts.NoParamSafety || !opts.config().paramSafety(),
	}
	rec := &store.Recorder{}
	stOpts := opts.storeOptions(cmd, rec)
	formatter.VerboseLog("Saving %d byte(s) to %s with the %s codec", len(data), db, codec)

	var res store.SaveResult
	switch codec {
	case "json":
		if !json.Valid(data) {
			return formatter.Fail(ExitCommandError, ErrCodeUsage, fmt.Errorf("artifact is not valid JSON"))
		}
		st := store.New[json.RawMessage](db, append(stOpts, store.WithCodec(store.JSONCodec{}))...)
		res, err = st.Save(commandContext(cmd), json.RawMessage(data), sys, run, saveOpts)
	default:
		st := store.New[[]byte](db, append(stOpts, store.WithCodec(store.RawCodec{}))...)
		res, err = st.Save(commandContext(cmd), data, sys, run, saveOpts)
	}
	if err != nil {
		return formatter.StoreFailure(err)
	}

	out := SaveOutput{
		RunID:       res.RunID,
		InstanceID:  res.InstanceID,
		Created:     res.Created,
		Bytes:       len(data),
		Diagnostics: diagnosticStrings(rec),
	}
	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	runState := "existing run"
	if out.Created {
		runState = "new run"
	}
	fmt.Fprintf(formatter.Writer, "✓ Saved run %s, instance %s (%s)\n", out.RunID, out.InstanceID, runState)
	return nil
}
