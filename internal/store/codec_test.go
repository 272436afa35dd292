package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/container"
	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/params"
)

func TestParamGroup_RoundTripNativeVariants(t *testing.T) {
	ctx := context.Background()
	root, _ := openTestContainer(t)
	rec := &Recorder{}
	rep := testReporter(rec)

	in := params.Params{
		"N":      params.Int(4),
		"sigma":  params.Float(0.001),
		"open":   params.Bool(true),
		"model":  params.String("ghz"),
		"coeffs": params.NewFloatArray(0.5, 0.25, 0.125),
		"sites":  params.NewIntArray(1, 2, 3),
		"grid":   params.IntArray{Shape: []int{2, 3}, Data: []int64{1, 2, 3, 4, 5, 6}},
	}
	require.NoError(t, writeParamGroup(ctx, root, "params", in, rep))

	g, err := root.Group(ctx, "params")
	require.NoError(t, err)
	out, err := readParamGroup(ctx, g, rep)
	require.NoError(t, err)

	assert.True(t, in.Equal(out), "round trip changed params: %v", out)
	assert.Empty(t, rec.Diagnostics())
}

func TestParamGroup_EmptyMapping(t *testing.T) {
	ctx := context.Background()
	root, _ := openTestContainer(t)
	rep := testReporter(&Recorder{})

	require.NoError(t, writeParamGroup(ctx, root, "params", params.Params{}, rep))
	g, err := root.Group(ctx, "params")
	require.NoError(t, err)

	out, err := readParamGroup(ctx, g, rep)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestWriteParam_OtherFallsBackToString(t *testing.T) {
	ctx := context.Background()
	root, _ := openTestContainer(t)
	rec := &Recorder{}
	rep := testReporter(rec)

	v := params.Other{V: map[string]int{"a": 1}}
	require.NoError(t, writeParam(ctx, root, "odd", v, rep))

	f, err := root.Read(ctx, "odd")
	require.NoError(t, err)
	assert.Equal(t, container.String, f.DType)
	text, err := f.Text()
	require.NoError(t, err)
	assert.Equal(t, "map[a:1]", text)

	diags := rec.OfKind(EncodingFallback)
	require.Len(t, diags, 1)
	assert.Equal(t, "/odd", diags[0].Path)
}

func TestWriteParam_MismatchedShapeFallsBackToString(t *testing.T) {
	ctx := context.Background()
	root, _ := openTestContainer(t)
	rec := &Recorder{}
	rep := testReporter(rec)

	v := params.FloatArray{Shape: []int{2, 2}, Data: []float64{1, 2, 3}}
	require.NoError(t, writeParam(ctx, root, "bad", v, rep))

	f, err := root.Read(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, container.String, f.DType)
	require.Len(t, rec.OfKind(EncodingFallback), 1)
	assert.ErrorIs(t, rec.OfKind(EncodingFallback)[0].Err, container.ErrUnsupported)
}

func TestWriteParam_OverflowingShapeFallsBackToString(t *testing.T) {
	ctx := context.Background()
	root, _ := openTestContainer(t)
	rec := &Recorder{}
	rep := testReporter(rec)

	// 2^32 * 2^32 wraps to 0 in int arithmetic, matching the empty data.
	v := params.FloatArray{Shape: []int{1 << 32, 1 << 32}, Data: []float64{}}
	require.NoError(t, writeParam(ctx, root, "a", v, rep))

	f, err := root.Read(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, container.String, f.DType)
	require.Len(t, rec.OfKind(EncodingFallback), 1)
	assert.ErrorIs(t, rec.OfKind(EncodingFallback)[0].Err, container.ErrUnsupported)

	assert.Equal(t, params.String(v.String()), roundTrip(params.Params{"a": v})["a"])
}

func TestWriteParam_ContainerErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	root, _ := openTestContainer(t)
	rep := testReporter(&Recorder{})

	require.NoError(t, writeParam(ctx, root, "N", params.Int(1), rep))
	err := writeParam(ctx, root, "N", params.Int(2), rep)
	assert.ErrorIs(t, err, container.ErrExist)
}

func TestReadParam_OpaqueFallsBackToString(t *testing.T) {
	ctx := context.Background()
	root, _ := openTestContainer(t)
	rec := &Recorder{}

	require.NoError(t, root.WriteOpaque(ctx, "blob", "gob", []byte{1, 2, 3}))
	f, err := root.Read(ctx, "blob")
	require.NoError(t, err)

	v := readParam(f, testReporter(rec))
	assert.Equal(t, params.String(`<opaque tag="gob" shape=[] 3 bytes>`), v)
	assert.Len(t, rec.OfKind(EncodingFallback), 1)
}

func TestReadParamGroup_NestedGroupBecomesPlaceholder(t *testing.T) {
	ctx := context.Background()
	root, _ := openTestContainer(t)
	rec := &Recorder{}

	g, err := root.CreateGroup(ctx, "params")
	require.NoError(t, err)
	require.NoError(t, g.Write(ctx, "N", int64(4)))
	_, err = g.CreateGroup(ctx, "nested")
	require.NoError(t, err)

	out, err := readParamGroup(ctx, g, testReporter(rec))
	require.NoError(t, err)
	assert.Equal(t, params.Params{
		"N":      params.Int(4),
		"nested": params.String("<group>"),
	}, out)
	assert.Len(t, rec.OfKind(EncodingFallback), 1)
}

func TestRoundTrip(t *testing.T) {
	in := params.Params{
		"N":     params.Int(4),
		"vec":   params.FloatArray{Data: []float64{1, 2}},
		"bad":   params.IntArray{Shape: []int{3}, Data: []int64{1}},
		"other": params.Other{V: []string{"x"}},
	}

	got := roundTrip(in)

	assert.Equal(t, params.Int(4), got["N"])
	assert.Equal(t, params.FloatArray{Shape: []int{2}, Data: []float64{1, 2}}, got["vec"])
	assert.Equal(t, params.String("[1]"), got["bad"])
	assert.Equal(t, params.String("[x]"), got["other"])
}

func TestRoundTrip_MatchesStoredParams(t *testing.T) {
	ctx := context.Background()
	root, _ := openTestContainer(t)
	rep := testReporter(&Recorder{})

	in := params.Params{
		"N":     params.Int(4),
		"other": params.Other{V: struct{ A, B int }{1, 2}},
		"bad":   params.FloatArray{Shape: []int{5}, Data: []float64{1}},
	}
	require.NoError(t, writeParamGroup(ctx, root, "params", in, rep))
	g, err := root.Group(ctx, "params")
	require.NoError(t, err)
	stored, err := readParamGroup(ctx, g, rep)
	require.NoError(t, err)

	assert.True(t, roundTrip(in).Equal(stored))
	assert.False(t, in.Equal(stored), "degraded values must not equal their originals")
}

func TestValidateParams(t *testing.T) {
	assert.NoError(t, validateParams("run", params.Params{"N": params.Int(1)}))
	assert.NoError(t, validateParams("run", nil))
	assert.Error(t, validateParams("run", params.Params{"N": nil}))
	assert.Error(t, validateParams("run", params.Params{"a/b": params.Int(1)}))
	assert.Error(t, validateParams("system", params.Params{"": params.Int(1)}))
	assert.Error(t, validateParams("system", params.Params{"..": params.Int(1)}))
}
