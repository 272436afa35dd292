package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jamesnrolfe/QuantumEntanglementProject/internal/container"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testReporter returns a reporter that records into rec and logs nowhere.
func testReporter(rec *Recorder) reporter {
	return reporter{logger: discardLogger(), sink: rec}
}

// openTestContainer creates a fresh writable container and returns its root.
func openTestContainer(t *testing.T) (*container.Group, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.qes")
	f, err := container.Open(context.Background(), path, container.ModeReadWriteCreate)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f.Root(), path
}

// editContainer opens path for writing, runs fn on the root and closes it.
func editContainer(t *testing.T, path string, fn func(ctx context.Context, root *container.Group)) {
	t.Helper()
	ctx := context.Background()
	f, err := container.Open(ctx, path, container.ModeReadWriteCreate)
	require.NoError(t, err)
	defer f.Close()
	fn(ctx, f.Root())
}
