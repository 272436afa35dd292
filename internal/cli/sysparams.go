package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/store"
)

// SysParamsOutput is the result of the sysparams command.
type SysParamsOutput struct {
	Present      bool           `json:"present"`
	SystemParams map[string]any `json:"system_params,omitempty"`
}

// NewSysParamsCommand creates the sysparams command.
func NewSysParamsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sysparams",
		Short: "Show the stored system parameters",
		Long: `Show the system parameters written by the first save.

A store that does not exist yet, or has no system parameters, is not an
error; a notice is printed instead.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSysParams(opts, cmd)
		},
	}

	opts.addStoreFlags(cmd)

	return cmd
}

func runSysParams(opts *StoreOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	db, err := opts.database()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, err)
	}

	rec := &store.Recorder{}
	st := store.New[[]byte](db, opts.storeOptions(cmd, rec)...)
	sys, ok, err := st.SystemParams(commandContext(cmd))
	if err != nil {
		return formatter.StoreFailure(err)
	}

	if formatter.Format == "json" {
		out := SysParamsOutput{Present: ok}
		if ok {
			out.SystemParams = params.ToMap(sys)
		}
		return formatter.Success(out)
	}

	if !ok {
		fmt.Fprintln(formatter.Writer, "No system params stored.")
		return nil
	}
	fmt.Fprintln(formatter.Writer, "System params:")
	formatParams(formatter.Writer, sys)
	return nil
}
