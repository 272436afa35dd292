package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/store"
)

// RunInfo describes one run in list output.
type RunInfo struct {
	RunID          string         `json:"run_id"`
	Layout         string         `json:"layout"`
	Missing        []string       `json:"missing,omitempty"`
	Instances      int            `json:"instances"`
	LatestInstance string         `json:"latest_instance,omitempty"`
	Fingerprint    string         `json:"fingerprint,omitempty"`
	Params         map[string]any `json:"params,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs in enumeration order",
		Long: `List every run with its parameters and instance count, in enumeration
order: numeric run ids by value, then the other ids by name.

Runs written before the current layout are listed as legacy with the groups
they lack. Artifacts are never decoded.

Examples:
  qestore list --db results.qes
  qestore list --db results.qes --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	opts.addStoreFlags(cmd)

	return cmd
}

func runList(opts *StoreOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	db, err := opts.database()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, err)
	}

	rec := &store.Recorder{}
	st := store.New[[]byte](db, opts.storeOptions(cmd, rec)...)
	summaries, err := st.Runs(commandContext(cmd))
	if err != nil {
		return formatter.StoreFailure(err)
	}

	runs := make([]RunInfo, len(summaries))
	for i, s := range summaries {
		runs[i] = RunInfo{
			RunID:          s.RunID,
			Layout:         string(s.Layout),
			Missing:        s.Missing,
			Instances:      s.Instances,
			LatestInstance: s.LatestInstance,
			Fingerprint:    s.Fingerprint,
		}
		if s.Params != nil {
			runs[i].Params = params.ToMap(s.Params)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"runs": runs})
	}

	if len(summaries) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tINSTANCES\tLATEST\tLAYOUT\tPARAMS")
	for _, s := range summaries {
		latest := s.LatestInstance
		if latest == "" {
			latest = "-"
		}
		layout := string(s.Layout)
		if len(s.Missing) > 0 {
			layout += " (no " + strings.Join(s.Missing, ", ") + ")"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", s.RunID, s.Instances, latest, layout, paramsLine(s.Params))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(formatter.Writer, "\n%d run(s)\n", len(summaries))
	return nil
}

// paramsLine renders params as "k=v" pairs in key order.
func paramsLine(p params.Params) string {
	if len(p) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(p))
	for _, k := range p.Keys() {
		parts = append(parts, k+"="+p[k].String())
	}
	return strings.Join(parts, " ")
}
