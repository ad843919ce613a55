package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"llmrank/internal/storage"
)

func TestOpenEmptyURISelectsMemory(t *testing.T) {
	t.Parallel()

	store, closeFn, err := storage.Open(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { require.NoError(t, closeFn()) })

	uri, err := store.PutObject(context.Background(), "snap.html", "text/html", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, "memory://snap.html", uri)
}

func TestOpenMemoryScheme(t *testing.T) {
	t.Parallel()

	store, closeFn, err := storage.Open(context.Background(), "memory://")
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NoError(t, closeFn())
}

func TestOpenFileScheme(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, closeFn, err := storage.Open(context.Background(), "file://"+base)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, closeFn()) })

	uri, err := store.PutObject(context.Background(), "snapshots/site/insight.html", "text/html", []byte("<html></html>"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(base, "snapshots/site/insight.html"), uri)

	_, err = os.Stat(filepath.Join(base, "snapshots/site/insight.html"))
	require.NoError(t, err)
}

func TestOpenUnsupportedScheme(t *testing.T) {
	t.Parallel()

	_, _, err := storage.Open(context.Background(), "s3://bucket")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported storage scheme")
}
