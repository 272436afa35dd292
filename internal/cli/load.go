package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/store"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	StoreOptions
	RunID  string
	Output string
}

// LoadOutput is the result of a load.
type LoadOutput struct {
	RunID        string         `json:"run_id"`
	InstanceID   string         `json:"instance_id"`
	Timestamp    string         `json:"timestamp,omitempty"`
	SystemParams map[string]any `json:"system_params"`
	RunParams    map[string]any `json:"run_params"`
	Bytes        int            `json:"bytes"`
	Output       string         `json:"output,omitempty"`
	Artifact     []byte         `json:"artifact,omitempty"` // base64 in JSON; omitted with --out
	Diagnostics  []string       `json:"diagnostics,omitempty"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the latest instance of a run",
		Long: `Load the latest instance of a run. Without --run-id the latest run is used.

The stored artifact bytes are written verbatim, whatever codec wrote them.
With --out they go to a file and the run's parameters are printed; otherwise
the bytes are written to stdout (text format) or embedded as base64 (json
format).

Examples:
  qestore load --db results.qes > state.bin
  qestore load --db results.qes --run-id 3 --out state.bin
  qestore load --db results.qes --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, cmd)
		},
	}

	opts.addStoreFlags(cmd)
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run to load (default: latest run)")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "write the artifact to this file")

	return cmd
}

func runLoad(opts *LoadOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	db, err := opts.database()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, err)
	}

	rec := &store.Recorder{}
	st := store.New[[]byte](db, append(opts.storeOptions(cmd, rec), store.WithCodec(store.RawCodec{}))...)
	loaded, err := st.Load(commandContext(cmd), opts.RunID)
	if err != nil {
		return formatter.StoreFailure(err)
	}
	formatter.VerboseLog("Loaded run %s, instance %s from %s", loaded.RunID, loaded.InstanceID, db)

	out := LoadOutput{
		RunID:        loaded.RunID,
		InstanceID:   loaded.InstanceID,
		Timestamp:    loaded.Timestamp,
		SystemParams: params.ToMap(loaded.SystemParams),
		RunParams:    params.ToMap(loaded.RunParams),
		Bytes:        len(loaded.Artifact),
		Output:       opts.Output,
		Diagnostics:  diagnosticStrings(rec),
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, loaded.Artifact, 0644); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeIO, fmt.Errorf("write artifact: %w", err))
		}
	} else if formatter.Format == "json" {
		out.Artifact = loaded.Artifact
	} else {
		_, err := formatter.Writer.Write(loaded.Artifact)
		return err
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run %s, instance %s\n", out.RunID, out.InstanceID)
	if out.Timestamp != "" {
		fmt.Fprintf(w, "Timestamp: %s\n", out.Timestamp)
	}
	fmt.Fprintln(w, "System params:")
	formatParams(w, loaded.SystemParams)
	fmt.Fprintln(w, "Run params:")
	formatParams(w, loaded.RunParams)
	fmt.Fprintf(w, "Wrote %d byte(s) to %s\n", out.Bytes, out.Output)
	return nil
}
