package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/container"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
)

// addRun creates runs/<id> with the given params group.
func addRun(t *testing.T, runs *container.Group, id string, p params.Params) {
	t.Helper()
	ctx := context.Background()
	run, err := runs.CreateGroup(ctx, id)
	require.NoError(t, err)
	require.NoError(t, writeParamGroup(ctx, run, groupParams, p, testReporter(&Recorder{})))
}

func newRuns(t *testing.T) *container.Group {
	t.Helper()
	root, _ := openTestContainer(t)
	runs, err := root.CreateGroup(context.Background(), groupRuns)
	require.NoError(t, err)
	return runs
}

func TestResolveRun_EmptyStoreCreatesOne(t *testing.T) {
	runs := newRuns(t)

	res, err := resolveRun(context.Background(), runs, params.Params{"N": params.Int(4)}, "", testReporter(&Recorder{}))
	require.NoError(t, err)
	assert.Equal(t, Resolution{RunID: "1"}, res)
}

func TestResolveRun_ReusesEqualParams(t *testing.T) {
	runs := newRuns(t)
	addRun(t, runs, "1", params.Params{"N": params.Int(4)})
	addRun(t, runs, "2", params.Params{"N": params.Int(8), "sigma": params.Float(0.001)})

	res, err := resolveRun(context.Background(), runs,
		params.Params{"sigma": params.Float(0.001), "N": params.Int(8)}, "", testReporter(&Recorder{}))
	require.NoError(t, err)
	assert.Equal(t, Resolution{RunID: "2", Reuse: true}, res)
}

func TestResolveRun_KeySetMustMatch(t *testing.T) {
	runs := newRuns(t)
	addRun(t, runs, "1", params.Params{"N": params.Int(4), "sigma": params.Float(0.1)})

	res, err := resolveRun(context.Background(), runs, params.Params{"N": params.Int(4)}, "", testReporter(&Recorder{}))
	require.NoError(t, err)
	assert.Equal(t, Resolution{RunID: "2"}, res)
}

func TestResolveRun_FirstMatchWins(t *testing.T) {
	runs := newRuns(t)
	same := params.Params{"N": params.Int(4)}
	addRun(t, runs, "b", same)
	addRun(t, runs, "a", same)

	res, err := resolveRun(context.Background(), runs, same, "", testReporter(&Recorder{}))
	require.NoError(t, err)
	assert.Equal(t, Resolution{RunID: "b", Reuse: true}, res, "scan follows container order")
}

func TestResolveRun_ExplicitIDNeverReuses(t *testing.T) {
	runs := newRuns(t)
	p := params.Params{"N": params.Int(4)}
	addRun(t, runs, "a", p)

	res, err := resolveRun(context.Background(), runs, p, "a", testReporter(&Recorder{}))
	require.NoError(t, err)
	assert.Equal(t, Resolution{RunID: "a_1"}, res)

	res, err = resolveRun(context.Background(), runs, p, "fresh", testReporter(&Recorder{}))
	require.NoError(t, err)
	assert.Equal(t, Resolution{RunID: "fresh"}, res)
}

func TestResolveRun_SkipsRunsWithoutParams(t *testing.T) {
	ctx := context.Background()
	runs := newRuns(t)
	_, err := runs.CreateGroup(ctx, "1")
	require.NoError(t, err)
	require.NoError(t, runs.Write(ctx, "junk", "not a run"))

	res, err := resolveRun(ctx, runs, params.Params{}, "", testReporter(&Recorder{}))
	require.NoError(t, err)
	assert.Equal(t, Resolution{RunID: "2"}, res)
}

func TestResolveRun_DegradedValuesMatchThemselves(t *testing.T) {
	runs := newRuns(t)
	p := params.Params{"opts": params.Other{V: []string{"x", "y"}}}
	addRun(t, runs, "1", p)

	res, err := resolveRun(context.Background(), runs, p, "", testReporter(&Recorder{}))
	require.NoError(t, err)
	assert.Equal(t, Resolution{RunID: "1", Reuse: true}, res)
}

func TestResolveRun_DegradedValuesCanCollide(t *testing.T) {
	runs := newRuns(t)
	addRun(t, runs, "1", params.Params{"opts": params.String("[x y]")})

	// A different value whose string form is identical matches the first run.
	res, err := resolveRun(context.Background(), runs,
		params.Params{"opts": params.Other{V: []string{"x", "y"}}}, "", testReporter(&Recorder{}))
	require.NoError(t, err)
	assert.Equal(t, Resolution{RunID: "1", Reuse: true}, res)
}
