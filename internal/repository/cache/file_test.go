package cache

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

const testURL = "https://nodejs.org/dist/index.json"

// TestFileRepository_NotFound verifies Lookup and Open report ErrNotFound for unknown URLs.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(t.TempDir())

	entry, err := repo.Lookup(context.Background(), testURL)
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, entry)

	_, err = repo.Open(context.Background(), testURL)
	require.ErrorIs(t, err, ErrNotFound)
}

// TestFileRepository_CommitRoundtrip ensures a committed body is returned with its validators.
func TestFileRepository_CommitRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewFileRepository(t.TempDir())

	w, err := repo.Begin(ctx, Entry{URL: testURL, ETag: `"abc"`})
	require.NoError(t, err)

	_, err = io.WriteString(w, `[{"version":"v18.2.0"}]`)
	require.NoError(t, err)
	require.NoError(t, w.Commit())
	require.NoError(t, w.Commit())

	entry, err := repo.Lookup(ctx, testURL)
	require.NoError(t, err)
	require.Equal(t, `"abc"`, entry.ETag)
	require.EqualValues(t, 23, entry.Size)
	require.False(t, entry.StoredAt.IsZero())

	body, err := repo.Open(ctx, testURL)
	require.NoError(t, err)

	defer func() {
		_ = body.Close()
	}()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.JSONEq(t, `[{"version":"v18.2.0"}]`, string(data))
}

// TestFileRepository_Abort leaves no entry and no partial file behind.
func TestFileRepository_Abort(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	repo := NewFileRepository(dir)

	w, err := repo.Begin(ctx, Entry{URL: testURL})
	require.NoError(t, err)

	_, err = io.WriteString(w, "partial")
	require.NoError(t, err)

	w.Abort()

	_, err = repo.Lookup(ctx, testURL)
	require.ErrorIs(t, err, ErrNotFound)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, files)
}
