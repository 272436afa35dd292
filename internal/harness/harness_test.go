package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestRun_SaveAndLoad(t *testing.T) {
	scenario := &Scenario{
		Name:        "save_and_load",
		Description: "Save then load the latest instance",
		System:      map[string]any{"J": 1.0},
		Flow: []Step{
			{
				Op:       OpSave,
				Run:      map[string]any{"N": 4},
				Artifact: map[string]any{"energy": -1.5},
				Expect:   &Expect{RunID: "1", InstanceID: "1", Created: boolPtr(true)},
			},
			{
				Op:     OpLoad,
				Expect: &Expect{RunID: "1", Artifact: map[string]any{"energy": -1.5}},
			},
		},
		Assertions: []Assertion{
			{Type: AssertRunCount, Count: 1},
			{Type: AssertSystemParams, Expect: map[string]any{"J": 1.0}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Diagnostics)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, OpSave, result.Trace[0].Op)
	assert.Equal(t, 1, result.Trace[0].Step)
	assert.Equal(t, OpLoad, result.Trace[1].Op)
	assert.Equal(t, map[string]any{"N": int64(4)}, result.Trace[1].Outcome["run_params"])
	assert.Equal(t, "2026-01-01T00:00:00Z", result.Trace[1].Outcome["timestamp"])
}

func TestRun_ExpectationMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Wrong run id expectation",
		Flow: []Step{
			{
				Op:       OpSave,
				Run:      map[string]any{"N": 4},
				Artifact: 1,
				Expect:   &Expect{RunID: "2", Created: boolPtr(false)},
			},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "flow[0] save: run_id: expected 2, got 1", result.Errors[0])
	assert.Equal(t, "flow[0] save: created: expected false, got true", result.Errors[1])
}

func TestRun_UnexpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected_error",
		Description: "Load from a store that does not exist",
		Flow:        []Step{{Op: OpLoad}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[0] load: unexpected error")
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "STRUCTURAL", result.Trace[0].Error)
	assert.Nil(t, result.Trace[0].Outcome)
}

func TestRun_ExpectedErrorKind(t *testing.T) {
	scenario := &Scenario{
		Name:        "wrong_kind",
		Description: "Expect the wrong error kind",
		Flow: []Step{
			{Op: OpLoad, Expect: &Expect{Error: "PARAM_SAFETY"}},
			{Op: OpSysParam, Expect: &Expect{Error: "STRUCTURAL"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "expected PARAM_SAFETY error, got STRUCTURAL")
	assert.Equal(t, "flow[1] sysparams: expected STRUCTURAL error, got success", result.Errors[1])
}

func TestRun_ParamSafety(t *testing.T) {
	scenario := &Scenario{
		Name:        "param_safety_inline",
		Description: "Drift fails the save unless safety is off",
		System:      map[string]any{"J": 1.0},
		Flow: []Step{
			{Op: OpSave, Run: map[string]any{"N": 4}, Artifact: "a"},
			{
				Op:       OpSave,
				System:   map[string]any{"J": 1.0, "h": 0.5},
				Run:      map[string]any{"N": 4},
				Artifact: "b",
				Expect:   &Expect{Error: "PARAM_SAFETY"},
			},
			{
				Op:            OpSave,
				System:        map[string]any{"J": 1.0, "h": 0.5},
				Run:           map[string]any{"N": 4},
				Artifact:      "c",
				NoParamSafety: true,
				Expect:        &Expect{RunID: "1", InstanceID: "2"},
			},
		},
		Assertions: []Assertion{
			{Type: AssertInstanceCount, RunID: "1", Count: 2},
			{Type: AssertDiagnosticCount, Kind: "param_drift", Count: 2},
			{Type: AssertSystemParams, Expect: map[string]any{"J": 1.0}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{
		"param_drift /system_params/h",
		"param_drift /system_params/h",
	}, result.Diagnostics)
}

func TestRun_LegacyRun(t *testing.T) {
	scenario := &Scenario{
		Name:        "legacy_inline",
		Description: "Legacy runs are skipped",
		System:      map[string]any{"J": 1.0},
		Flow: []Step{
			{Op: OpLegacy, RunID: "5", Run: map[string]any{"N": 4, "tags": []any{"x"}}},
			{Op: OpSave, Run: map[string]any{"N": 6}, Artifact: 1, Expect: &Expect{RunID: "6"}},
			{Op: OpLoadAll, Expect: &Expect{Entries: []string{"6/1"}}},
		},
		Assertions: []Assertion{
			{Type: AssertRunOrder, Runs: []string{"5", "6"}},
			{Type: AssertDiagnosticCount, Kind: "skipped_run", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_AssertionFailures(t *testing.T) {
	scenario := &Scenario{
		Name:        "assertion_failures",
		Description: "Every assertion fails",
		System:      map[string]any{"J": 1.0},
		Flow: []Step{
			{Op: OpSave, Run: map[string]any{"N": 4}, Artifact: 1},
		},
		Assertions: []Assertion{
			{Type: AssertRunCount, Count: 2},
			{Type: AssertInstanceCount, RunID: "1", Count: 3},
			{Type: AssertInstanceCount, RunID: "9", Count: 1},
			{Type: AssertRunOrder, Runs: []string{"2"}},
			{Type: AssertDiagnosticCount, Kind: "skipped_run", Count: 1},
			{Type: AssertSystemParams, Expect: map[string]any{"J": 2.0}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	for i, msg := range result.Errors {
		assert.Contains(t, msg, "Assertion failed", "errors[%d]", i)
	}
	assert.Contains(t, result.Errors[2], "run not found")
}

func TestRun_UnknownOp(t *testing.T) {
	scenario := &Scenario{
		Name:        "unknown_op",
		Description: "Unvalidated scenario with an unknown op",
		Flow:        []Step{{Op: "drop"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown op "drop"`)
}

func TestSameJSON(t *testing.T) {
	assert.True(t, sameJSON(map[string]any{"a": 1}, map[string]any{"a": 1.0}))
	assert.True(t, sameJSON([]any{1, "x"}, []any{1.0, "x"}))
	assert.False(t, sameJSON(map[string]any{"a": 1}, map[string]any{"a": 2}))
	assert.False(t, sameJSON(func() {}, 1))
}
