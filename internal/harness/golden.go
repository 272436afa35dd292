package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result deterministically: a header line, one compact
// JSON line per trace event, then the diagnostics raised during the flow.
func Snapshot(name string, result *Result) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n", name)
	for _, event := range result.Trace {
		line, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", event.Step, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if len(result.Diagnostics) == 0 {
		buf.WriteString("diagnostics: none\n")
		return buf.Bytes(), nil
	}
	buf.WriteString("diagnostics:\n")
	for _, d := range result.Diagnostics {
		fmt.Fprintf(&buf, "  %s\n", d)
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
	return nil
}
