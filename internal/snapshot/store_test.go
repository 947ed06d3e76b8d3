package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNewFileStore_RequiresDir(t *testing.T) {
	_, err := NewFileStore("", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store directory is required")
}

func TestCreateVersion_NumbersAreSequential(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		v, err := s.CreateVersion(ctx, &CreateRequest{
			FileID:              "utils.go",
			Content:             fmt.Sprintf("content %d", i+1),
			ExpectedPredecessor: i,
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, v.Number)
	}

	versions, err := s.ListVersions(ctx, "utils.go")
	require.NoError(t, err)
	require.Len(t, versions, 5)
	for i, v := range versions {
		assert.Equal(t, i+1, v.Number)
		assert.Equal(t, fmt.Sprintf("content %d", i+1), v.Content)
	}
}

func TestCreateVersion_StalePredecessorConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateVersion(ctx, &CreateRequest{FileID: "utils.go", Content: "a", ExpectedPredecessor: 0})
	require.NoError(t, err)

	_, err = s.CreateVersion(ctx, &CreateRequest{FileID: "utils.go", Content: "b", ExpectedPredecessor: 0})
	require.ErrorIs(t, err, ErrVersionConflict)

	// The failed create leaves no partial version.
	versions, err := s.ListVersions(ctx, "utils.go")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestCreateVersion_ConcurrentSamePredecessor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.CreateVersion(ctx, &CreateRequest{
				FileID:              "racy.go",
				Content:             fmt.Sprintf("writer %d", i),
				ExpectedPredecessor: 0,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrVersionConflict)
		}
	}
	assert.Equal(t, 1, wins, "exactly one writer should win")

	versions, err := s.ListVersions(ctx, "racy.go")
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestCreateVersion_CrossStoreConflict(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	b, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = a.CreateVersion(ctx, &CreateRequest{FileID: "shared.go", Content: "a", ExpectedPredecessor: 0})
	require.NoError(t, err)

	// Store b re-reads the manifest, so the stale predecessor is rejected.
	_, err = b.CreateVersion(ctx, &CreateRequest{FileID: "shared.go", Content: "b", ExpectedPredecessor: 0})
	require.ErrorIs(t, err, ErrVersionConflict)

	v, err := b.CreateVersion(ctx, &CreateRequest{FileID: "shared.go", Content: "b", ExpectedPredecessor: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Number)
}

func TestCreateVersion_CrossStoreDistinctFiles(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	b, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	// Two stores appending versions of different files must not clobber
	// each other's manifest entries.
	const rounds = 20
	var wg sync.WaitGroup
	errA := make([]error, rounds)
	errB := make([]error, rounds)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, errA[i] = a.CreateVersion(ctx, &CreateRequest{
				FileID:              "alpha.go",
				Content:             fmt.Sprintf("alpha %d", i+1),
				ExpectedPredecessor: i,
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, errB[i] = b.CreateVersion(ctx, &CreateRequest{
				FileID:              "beta.go",
				Content:             fmt.Sprintf("beta %d", i+1),
				ExpectedPredecessor: i,
			})
		}
	}()
	wg.Wait()

	for i := 0; i < rounds; i++ {
		require.NoError(t, errA[i], "alpha round %d", i)
		require.NoError(t, errB[i], "beta round %d", i)
	}

	for _, fileID := range []string{"alpha.go", "beta.go"} {
		versions, err := a.ListVersions(ctx, fileID)
		require.NoError(t, err)
		assert.Len(t, versions, rounds, "%s lost manifest entries", fileID)
	}
}

func TestAcquireLock_ReclaimsStaleLock(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	lockPath := filepath.Join(dir, lockFileName)
	require.NoError(t, os.WriteFile(lockPath, []byte("9999\n"), 0o600))
	old := time.Now().Add(-2 * lockStaleAfter)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	v, err := s.CreateVersion(ctx, &CreateRequest{FileID: "a.go", Content: "x", ExpectedPredecessor: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, v.Number)

	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err), "lock should be released after create")
}

func TestGetVersion_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetVersion(ctx, "missing.go", 1)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.CreateVersion(ctx, &CreateRequest{FileID: "utils.go", Content: "a", ExpectedPredecessor: 0})
	require.NoError(t, err)

	_, err = s.GetVersion(ctx, "utils.go", 2)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetVersion(ctx, "utils.go", 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListVersions_NeverSnapshottedIsEmpty(t *testing.T) {
	s := newTestStore(t)

	versions, err := s.ListVersions(context.Background(), "never.go")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestBlobNaming(t *testing.T) {
	tests := []struct {
		fileID string
		number int
		want   string
	}{
		{"utils.go", 1, "utils-v1.go"},
		{"utils", 3, "utils-v3"},
		{"app.component.ts", 2, "app.component-v2.ts"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, blobName(tt.fileID, tt.number))
	}
}

func TestBlobsWrittenWithNamingConvention(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.CreateVersion(ctx, &CreateRequest{FileID: "utils.go", Content: "return a+b", ExpectedPredecessor: 0})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "utils-v1.go"))
	require.NoError(t, err)
	assert.Equal(t, "return a+b", string(data))
}

func TestValidateFileID(t *testing.T) {
	assert.NoError(t, validateFileID("utils.go"))
	assert.ErrorIs(t, validateFileID(""), ErrInvalidFileID)
	assert.ErrorIs(t, validateFileID("../escape"), ErrInvalidFileID)
	assert.ErrorIs(t, validateFileID("a/b.go"), ErrInvalidFileID)
	assert.ErrorIs(t, validateFileID(".."), ErrInvalidFileID)
}

func TestFiles_SortedManifest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"zeta.go", "alpha.go", "mid.go"} {
		_, err := s.CreateVersion(ctx, &CreateRequest{FileID: id, Content: "x", ExpectedPredecessor: 0})
		require.NoError(t, err)
	}
	_, err := s.CreateVersion(ctx, &CreateRequest{FileID: "alpha.go", Content: "y", ExpectedPredecessor: 1})
	require.NoError(t, err)

	entries, err := s.Files(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, FileEntry{FileID: "alpha.go", Versions: 2}, entries[0])
	assert.Equal(t, FileEntry{FileID: "mid.go", Versions: 1}, entries[1])
	assert.Equal(t, FileEntry{FileID: "zeta.go", Versions: 1}, entries[2])
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.CreateVersion(context.Background(), &CreateRequest{FileID: "utils.go", Content: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store is closed")
}
