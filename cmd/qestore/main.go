// qestore is the command-line interface to a qestore artifact store.
//
// Usage:
//
//	qestore save --db <file> [--param k=v]... <artifact|->
//	qestore load --db <file> [--run-id <id>] [--out <file>]
//	qestore list --db <file>
//	qestore sysparams --db <file>
//	qestore sweep --db <file> --grid <grid.yaml> -- <program> [args...]
//	qestore check <scenarios-dir>
package main

import (
	"fmt"
	"os"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if !cli.WasReported(err) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
