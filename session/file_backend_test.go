package session

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	backend := NewFileBackend(path)
	ctx := context.Background()

	record, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, Record{}, record)

	require.NoError(t, backend.Store(ctx, Record{Token: "tok", Email: "a@b.c"}))

	record, err = backend.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, Record{Token: "tok", Email: "a@b.c"}, record)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	require.NoError(t, backend.Remove(ctx))
	require.NoError(t, backend.Remove(ctx))
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestFileBackendOverwriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	backend := NewFileBackend(filepath.Join(dir, "session.json"))
	ctx := context.Background()

	require.NoError(t, backend.Store(ctx, Record{Token: "one", Email: "a@b.c"}))
	require.NoError(t, backend.Store(ctx, Record{Token: "two", Email: "a@b.c"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	record, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "two", record.Token)
}

func TestFileBackendCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewStore(NewFileBackend(path), nil)
	_, err := store.Bootstrap(context.Background(), time.Now())
	require.ErrorIs(t, err, ErrStorageUnavailable)
	require.False(t, store.Authenticated())

	require.NoError(t, store.Save(context.Background(), "a@b.c", "tok"))
	record, err := NewFileBackend(path).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok", record.Token)
}
