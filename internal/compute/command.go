package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
)

// Command is a Computation that runs an external program.
//
// The program receives {"run": {...}, "system": {...}} as JSON on stdin and
// its stdout becomes the artifact. A non-zero exit fails the computation with
// the tail of stderr in the error.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string // nil inherits the environment
}

// commandInput is the document written to the program's stdin.
type commandInput struct {
	Run    map[string]any `json:"run"`
	System map[string]any `json:"system"`
}

// maxStderr bounds the stderr excerpt kept in errors.
const maxStderr = 2048

// Compute runs the program once.
func (c Command) Compute(ctx context.Context, run, sys params.Params) ([]byte, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("command: no program")
	}
	input, err := json.Marshal(commandInput{Run: params.ToMap(run), System: params.ToMap(sys)})
	if err != nil {
		return nil, fmt.Errorf("command: encode params: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = bytes.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > maxStderr {
			msg = "..." + msg[len(msg)-maxStderr:]
		}
		if msg != "" {
			return nil, fmt.Errorf("command %s: %w: %s", c.Path, err, msg)
		}
		return nil, fmt.Errorf("command %s: %w", c.Path, err)
	}
	return stdout.Bytes(), nil
}
