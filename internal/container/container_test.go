package container

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestFile creates a fresh writable container for testing.
func openTestFile(t *testing.T) (*File, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.qes")
	f, err := Open(context.Background(), path, ModeReadWriteCreate)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f, path
}

func TestOpen_CreatesFile(t *testing.T) {
	_, path := openTestFile(t)

	_, err := os.Stat(path)
	assert.NoError(t, err, "container file was not created")
}

func TestOpen_ReadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.qes")

	_, err := Open(context.Background(), path, ModeRead)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotExist)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "read mode must not create the file")
}

func TestOpen_ReadNonContainer(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plain.db")

	// An empty file is a valid SQLite database without our schema.
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := Open(ctx, path, ModeRead)
	assert.ErrorIs(t, err, ErrNotContainer)
}

func TestOpen_ReadGarbageFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "notes.txt")
	// Larger than one page, so SQLite checks the header and rejects it.
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("not a database "), 400), 0o644))

	_, err := Open(ctx, path, ModeRead)
	assert.ErrorIs(t, err, ErrNotContainer)
}

func TestOpen_ReadModeConnectionIsReadOnly(t *testing.T) {
	ctx := context.Background()
	_, path := openTestFile(t)

	f, err := Open(ctx, path, ModeRead)
	require.NoError(t, err)
	defer f.Close()

	// Lifting query_only still leaves a connection opened with mode=ro.
	_, err = f.db.ExecContext(ctx, "PRAGMA query_only = OFF")
	require.NoError(t, err)
	_, err = f.db.ExecContext(ctx, "INSERT INTO nodes (parent_id, name, kind) VALUES (1, 'x', 'group')")
	assert.ErrorContains(t, err, "readonly")
}

func TestDataSource(t *testing.T) {
	assert.Equal(t, "/tmp/a b.qes", dataSource("/tmp/a b.qes", ModeReadWriteCreate))
	assert.Equal(t, "file:///tmp/a%20b.qes?mode=ro", dataSource("/tmp/a b.qes", ModeRead))
	assert.Equal(t, "file:store.qes?mode=ro", dataSource("store.qes", ModeRead))
}

func TestOpen_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.qes")

	for i := 0; i < 3; i++ {
		f, err := Open(ctx, path, ModeReadWriteCreate)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, f.Close())
	}

	f, err := Open(ctx, path, ModeRead)
	require.NoError(t, err)
	defer f.Close()

	children, err := f.Root().Children(ctx)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestClose_MultipleCalls(t *testing.T) {
	f, _ := openTestFile(t)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	_, err := f.Root().Children(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestGroups_CreateLookupList(t *testing.T) {
	ctx := context.Background()
	f, _ := openTestFile(t)
	root := f.Root()

	runs, err := root.CreateGroup(ctx, "runs")
	require.NoError(t, err)
	assert.Equal(t, "/runs", runs.Path())
	assert.Equal(t, "runs", runs.Name())

	for _, name := range []string{"2", "10", "1"} {
		_, err := runs.CreateGroup(ctx, name)
		require.NoError(t, err)
	}

	children, err := runs.Children(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "10", "1"}, children, "children are listed in creation order")

	has, err := runs.Has(ctx, "10")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = runs.Has(ctx, "3")
	require.NoError(t, err)
	assert.False(t, has)

	g, err := root.Group(ctx, "runs")
	require.NoError(t, err)
	assert.Equal(t, runs.Path(), g.Path())
}

func TestGroups_CreateCollision(t *testing.T) {
	ctx := context.Background()
	f, _ := openTestFile(t)

	_, err := f.Root().CreateGroup(ctx, "runs")
	require.NoError(t, err)

	_, err = f.Root().CreateGroup(ctx, "runs")
	assert.ErrorIs(t, err, ErrExist)
}

func TestGroups_RequireGroup(t *testing.T) {
	ctx := context.Background()
	f, _ := openTestFile(t)

	a, err := f.Root().RequireGroup(ctx, "runs")
	require.NoError(t, err)
	b, err := f.Root().RequireGroup(ctx, "runs")
	require.NoError(t, err)
	assert.Equal(t, a.id, b.id)
}

func TestGroups_LookupErrors(t *testing.T) {
	ctx := context.Background()
	f, _ := openTestFile(t)
	root := f.Root()
	require.NoError(t, root.Write(ctx, "n", 1))

	_, err := root.Group(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotExist)

	_, err = root.Group(ctx, "n")
	assert.ErrorIs(t, err, ErrNotGroup)

	_, err = root.CreateGroup(ctx, "a/b")
	assert.ErrorIs(t, err, ErrUnsupported)

	g, err := root.CreateGroup(ctx, "g")
	require.NoError(t, err)
	_, err = root.Read(ctx, "g")
	assert.ErrorIs(t, err, ErrNotField)
	_ = g
}

func TestFields_ScalarRoundTrip(t *testing.T) {
	ctx := context.Background()
	f, path := openTestFile(t)
	root := f.Root()

	require.NoError(t, root.Write(ctx, "N", 4))
	require.NoError(t, root.Write(ctx, "sigma", 0.001))
	require.NoError(t, root.Write(ctx, "nan", math.NaN()))
	require.NoError(t, root.Write(ctx, "negzero", math.Copysign(0, -1)))
	require.NoError(t, root.Write(ctx, "periodic", true))
	require.NoError(t, root.Write(ctx, "label", "ghz"))
	require.NoError(t, f.Close())

	// Reopen read-only to make sure values survive the session.
	f, err := Open(ctx, path, ModeRead)
	require.NoError(t, err)
	defer f.Close()
	root = f.Root()

	field, err := root.Read(ctx, "N")
	require.NoError(t, err)
	n, err := field.Int()
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	field, err = root.Read(ctx, "sigma")
	require.NoError(t, err)
	x, err := field.Float()
	require.NoError(t, err)
	assert.Equal(t, 0.001, x)

	field, err = root.Read(ctx, "nan")
	require.NoError(t, err)
	x, err = field.Float()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(x))

	field, err = root.Read(ctx, "negzero")
	require.NoError(t, err)
	x, err = field.Float()
	require.NoError(t, err)
	assert.True(t, math.Signbit(x))

	field, err = root.Read(ctx, "periodic")
	require.NoError(t, err)
	b, err := field.Bool()
	require.NoError(t, err)
	assert.True(t, b)

	field, err = root.Read(ctx, "label")
	require.NoError(t, err)
	s, err := field.Text()
	require.NoError(t, err)
	assert.Equal(t, "ghz", s)
}

func TestFields_ArrayRoundTrip(t *testing.T) {
	ctx := context.Background()
	f, _ := openTestFile(t)
	root := f.Root()

	require.NoError(t, root.Write(ctx, "couplings", Float64s{Shape: []int{2, 2}, Data: []float64{1, 0.5, 0.5, 1}}))
	require.NoError(t, root.Write(ctx, "sites", []int64{0, 3, 7}))
	require.NoError(t, root.Write(ctx, "empty", []float64{}))

	field, err := root.Read(ctx, "couplings")
	require.NoError(t, err)
	assert.Equal(t, Float64Array, field.DType)
	assert.Equal(t, []int{2, 2}, field.Shape)
	data, err := field.Floats()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0.5, 0.5, 1}, data)

	field, err = root.Read(ctx, "sites")
	require.NoError(t, err)
	assert.Equal(t, []int{3}, field.Shape)
	ints, err := field.Ints()
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 3, 7}, ints)

	field, err = root.Read(ctx, "empty")
	require.NoError(t, err)
	data, err = field.Floats()
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFields_Opaque(t *testing.T) {
	ctx := context.Background()
	f, _ := openTestFile(t)
	root := f.Root()

	require.NoError(t, root.WriteOpaque(ctx, "artifact", "gob", []byte{1, 2, 3}))

	field, err := root.Read(ctx, "artifact")
	require.NoError(t, err)
	assert.Equal(t, Opaque, field.DType)
	assert.Equal(t, "gob", field.Tag)
	assert.Equal(t, 3, field.Size())

	data, err := field.Opaque()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, err = field.Text()
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Contains(t, field.Describe(), "opaque")
}

func TestFields_WriteRejectsUnsupported(t *testing.T) {
	ctx := context.Background()
	f, _ := openTestFile(t)
	root := f.Root()

	tests := []struct {
		name  string
		value any
	}{
		{"map", map[string]int{"a": 1}},
		{"struct", struct{ X int }{1}},
		{"nil", nil},
		{"shape_mismatch", Float64s{Shape: []int{2, 2}, Data: []float64{1, 2, 3}}},
		{"negative_dim", Int64s{Shape: []int{-1}, Data: nil}},
		{"no_shape", Int64s{Data: []int64{1}}},
		{"overflowing_shape", Float64s{Shape: []int{1 << 32, 1 << 32}, Data: []float64{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := root.Write(ctx, tt.name, tt.value)
			assert.ErrorIs(t, err, ErrUnsupported)

			has, err := root.Has(ctx, tt.name)
			require.NoError(t, err)
			assert.False(t, has, "failed write must not leave a node behind")
		})
	}
}

func TestShapeSize(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
		size  int
		ok    bool
	}{
		{"vector", []int{3}, 3, true},
		{"matrix", []int{2, 3}, 6, true},
		{"zero_dim", []int{4, 0}, 0, true},
		{"empty", nil, 0, false},
		{"negative", []int{2, -1}, 0, false},
		{"wraps_to_zero", []int{1 << 32, 1 << 32}, 0, false},
		{"exceeds_int", []int{math.MaxInt, 2}, 0, false},
		{"max_int", []int{math.MaxInt, 1}, math.MaxInt, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, ok := ShapeSize(tt.shape)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.size, size)
		})
	}
}

func TestFields_WriteOnce(t *testing.T) {
	ctx := context.Background()
	f, _ := openTestFile(t)

	require.NoError(t, f.Root().Write(ctx, "J", 1.0))
	err := f.Root().Write(ctx, "J", 2.0)
	assert.ErrorIs(t, err, ErrExist)
}

func TestReadMode_RejectsWrites(t *testing.T) {
	ctx := context.Background()
	f, path := openTestFile(t)
	_, err := f.Root().CreateGroup(ctx, "runs")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ro, err := Open(ctx, path, ModeRead)
	require.NoError(t, err)
	defer ro.Close()

	_, err = ro.Root().CreateGroup(ctx, "system_params")
	assert.ErrorIs(t, err, ErrReadOnly)

	err = ro.Root().Write(ctx, "x", 1)
	assert.ErrorIs(t, err, ErrReadOnly)

	runs, err := ro.Root().Group(ctx, "runs")
	require.NoError(t, err)
	assert.Equal(t, "/runs", runs.Path())
}

func TestField_Corrupt(t *testing.T) {
	field := Field{Path: "/x", DType: Float64Array, Shape: []int{3}, raw: []byte{1, 2, 3}}

	_, err := field.Floats()
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Contains(t, field.Describe(), "float64[]")
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "read", ModeRead.String())
	assert.Equal(t, "read-write-create", ModeReadWriteCreate.String())
}
