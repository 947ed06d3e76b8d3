package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case e := <-w.Events():
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for watch event")
		return Event{}
	}
}

func TestWatcher_ReportsSettledWrite(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "utils.go")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	w, err := NewWatcher(root, []string{"utils.go"}, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o600))

	e := waitForEvent(t, w)
	assert.Equal(t, "utils.go", e.FileID)
}

func TestWatcher_IgnoresUntrackedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "utils.go"), []byte("v1"), 0o600))

	w, err := NewWatcher(root, []string{"utils.go"}, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(root, "other.go"), []byte("x"), 0o600))

	select {
	case e := <-w.Events():
		t.Fatalf("unexpected event for %s", e.FileID)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "utils.go")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	w, err := NewWatcher(root, []string{"utils.go"}, 100*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(context.Background()))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("burst"), 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	waitForEvent(t, w)

	// The burst settled once; no second event should follow.
	select {
	case e := <-w.Events():
		t.Fatalf("unexpected second event for %s", e.FileID)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_DetectsRenameReplace(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "utils.go")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o600))

	w, err := NewWatcher(root, []string{"utils.go"}, 20*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()
	require.NoError(t, w.Start(context.Background()))

	// Editor-style save: write a temp file, rename it over the target.
	tmp := filepath.Join(root, ".utils.go.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("v2"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	e := waitForEvent(t, w)
	assert.Equal(t, "utils.go", e.FileID)
}

func TestNewWatcher_RequiresFiles(t *testing.T) {
	_, err := NewWatcher(t.TempDir(), nil, 0, nil)
	require.Error(t, err)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o600))

	w, err := NewWatcher(root, []string{"a.txt"}, 0, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()
}
