package threshold

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

// TestFileRepository_SaveLoad_Roundtrip ensures Save followed by Load returns the same value.
func TestFileRepository_SaveLoad_Roundtrip(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "threshold.json")
	repo := NewFileRepository(file)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, 2.75))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	require.InDelta(t, 2.75, got, 1e-12)

	contents, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(contents), `"sensitivity"`)
}

// TestFileRepository_BadContents rejects files without a numeric sensitivity.
func TestFileRepository_BadContents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	cases := map[string]string{
		"garbage.json": "not json",
		"missing.json": `{"other": 1}`,
		"string.json":  `{"sensitivity": "high"}`,
	}

	for name, contents := range cases {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

		_, err := NewFileRepository(path).Load(ctx)
		require.Error(t, err, name)
		require.NotErrorIs(t, err, ErrNotFound, name)
	}
}

// TestFileRepository_Watch reloads the value after an external write.
func TestFileRepository_Watch(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "threshold.json")
	repo := NewFileRepository(file)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var latest atomic.Value

	require.NoError(t, repo.Watch(ctx, func(v float64) {
		latest.Store(v)
	}))

	// Another process edits the file.
	require.NoError(t, os.WriteFile(file, []byte(`{"sensitivity": 4.5}`), 0o600))

	require.Eventually(t, func() bool {
		v, ok := latest.Load().(float64)

		return ok && v == 4.5
	}, 5*time.Second, 20*time.Millisecond)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(file), "other.json"), []byte(`{"sensitivity": 9}`), 0o600))

	// Broken contents are skipped and the last good value stays.
	require.NoError(t, os.WriteFile(file, []byte(`{`), 0o600))
	time.Sleep(3 * reloadDelay)
	require.InDelta(t, 4.5, latest.Load().(float64), 1e-12)
}
