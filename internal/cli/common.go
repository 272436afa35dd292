package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/store"
)

// ValidCodecs lists the artifact codecs the CLI can write.
var ValidCodecs = []string{"raw", "json"}

func isValidCodec(name string) bool {
	return slices.Contains(ValidCodecs, name)
}

// StoreOptions holds the flags shared by commands that open a store.
type StoreOptions struct {
	*RootOptions
	Database string
}

func (o *StoreOptions) addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", "", "path to the store file (or db in --config)")
}

// database returns the store path from the flag or the config file.
func (o *StoreOptions) database() (string, error) {
	if o.Database != "" {
		return o.Database, nil
	}
	if db := o.config().DB; db != "" {
		return db, nil
	}
	return "", fmt.Errorf(`required flag "db" not set`)
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// logger writes text logs to the command's stderr. Verbose selects debug;
// otherwise the config's log_level applies.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := o.config().level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// storeOptions returns the options shared by every store the CLI opens.
func (o *RootOptions) storeOptions(cmd *cobra.Command, rec *store.Recorder) []store.Option {
	return []store.Option{
		store.WithLogger(o.logger(cmd.ErrOrStderr())),
		store.WithDiagnostics(rec),
	}
}

// ParamFlags collects params from an optional file plus key=value flags.
type ParamFlags struct {
	File        string
	Assignments []string
}

// Build loads File, then applies Assignments on top.
func (f ParamFlags) Build() (params.Params, error) {
	p := params.Params{}
	if f.File != "" {
		loaded, err := params.LoadFile(f.File)
		if err != nil {
			return nil, err
		}
		p = loaded
	}
	for _, a := range f.Assignments {
		key, value, err := params.ParseAssignment(a)
		if err != nil {
			return nil, err
		}
		p[key] = value
	}
	return p, nil
}

// diagnosticStrings renders recorded diagnostics for output.
func diagnosticStrings(rec *store.Recorder) []string {
	diags := rec.Diagnostics()
	if len(diags) == 0 {
		return nil
	}
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = d.String()
	}
	return out
}

// readInput reads a file, or stdin when name is "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

// formatParams writes one "  key = value" line per param in key order.
func formatParams(w io.Writer, p params.Params) {
	if len(p) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, k := range p.Keys() {
		fmt.Fprintf(w, "  %s = %s\n", k, p[k])
	}
}

// commandContext returns the command's context, or a background context when
// the command runs without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
