package compute

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
)

// helperCommand runs this test binary as the external program.
func helperCommand(mode string) Command {
	return Command{
		Path: os.Args[0],
		Args: []string{"-test.run=TestHelperProcess", "--", mode},
		Env:  append(os.Environ(), "QESTORE_HELPER_PROCESS=1"),
	}
}

// TestHelperProcess is not a real test; it is the program Command runs.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("QESTORE_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	mode := os.Args[len(os.Args)-1]
	switch mode {
	case "echo":
		if _, err := io.Copy(os.Stdout, os.Stdin); err != nil {
			os.Exit(2)
		}
	case "fail":
		fmt.Fprintln(os.Stderr, "solver diverged")
		os.Exit(3)
	}
}

func TestCommand_PassesParamsOnStdin(t *testing.T) {
	run := params.Params{"N": params.Int(4), "h": params.NewFloatArray(0.5, 1)}
	sys := params.Params{"J": params.Float(1)}

	out, err := helperCommand("echo").Compute(context.Background(), run, sys)
	require.NoError(t, err)

	var got struct {
		Run    map[string]any `json:"run"`
		System map[string]any `json:"system"`
	}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, float64(4), got.Run["N"])
	assert.Equal(t, []any{0.5, float64(1)}, got.Run["h"])
	assert.Equal(t, float64(1), got.System["J"])
}

func TestCommand_FailureIncludesStderr(t *testing.T) {
	_, err := helperCommand("fail").Compute(context.Background(), nil, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "solver diverged")
	assert.ErrorContains(t, err, "exit status 3")
}

func TestCommand_NoProgram(t *testing.T) {
	_, err := Command{}.Compute(context.Background(), nil, nil)
	assert.Error(t, err)
}
