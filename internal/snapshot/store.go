package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/fixd/internal/snapshot"

const manifestFile = "manifest.json"

const (
	lockFileName   = manifestFile + ".lock"
	lockRetry      = 10 * time.Millisecond
	lockTimeout    = 5 * time.Second
	lockStaleAfter = 30 * time.Second
)

// versionMeta is the manifest record for one version. Content lives in the
// blob file; the manifest keeps only what the blob name cannot carry.
type versionMeta struct {
	Number    int       `json:"number"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// manifest is the on-disk index of tracked files.
type manifest struct {
	Files map[string][]versionMeta `json:"files"`
}

// FileStore implements Store on a local directory. Blobs are named
// <base>-v<N><ext> (e.g. utils-v2.go for file id "utils.go") next to
// manifest.json. The blob is created with O_EXCL so that two processes
// racing on the same predecessor resolve to exactly one winner.
type FileStore struct {
	dir    string
	logger *zap.Logger

	tracer          trace.Tracer
	meter           metric.Meter
	createCounter   metric.Int64Counter
	conflictCounter metric.Int64Counter

	mu     sync.Mutex
	closed bool
}

// NewFileStore opens (or creates) a snapshot store rooted at dir.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("store directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &FileStore{
		dir:    dir,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	s.initMetrics()
	return s, nil
}

func (s *FileStore) initMetrics() {
	var err error

	s.createCounter, err = s.meter.Int64Counter(
		"fixd.snapshot.creates_total",
		metric.WithDescription("Total number of versions created"),
		metric.WithUnit("{version}"),
	)
	if err != nil {
		s.logger.Warn("failed to create version counter", zap.Error(err))
	}

	s.conflictCounter, err = s.meter.Int64Counter(
		"fixd.snapshot.conflicts_total",
		metric.WithDescription("Total number of optimistic concurrency conflicts"),
		metric.WithUnit("{conflict}"),
	)
	if err != nil {
		s.logger.Warn("failed to create conflict counter", zap.Error(err))
	}
}

// CreateVersion appends the next version for a file.
func (s *FileStore) CreateVersion(ctx context.Context, req *CreateRequest) (*Version, error) {
	_, span := s.tracer.Start(ctx, "snapshot.create_version")
	defer span.End()

	span.SetAttributes(
		attribute.String("file_id", req.FileID),
		attribute.Int("expected_predecessor", req.ExpectedPredecessor),
	)

	if err := validateFileID(req.FileID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if req.ExpectedPredecessor < 0 {
		return nil, fmt.Errorf("%w: negative predecessor %d", ErrVersionConflict, req.ExpectedPredecessor)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("store is closed")
	}

	// The manifest is rewritten whole-file, so the load-modify-save must
	// be exclusive across processes, not just across goroutines: two
	// stores appending versions of different files would otherwise
	// last-writer-win on manifest.json.
	release, err := s.acquireLock()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer release()

	// Re-read the manifest under the lock so another process's writes are
	// visible before the predecessor check.
	m, err := s.loadManifest()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	current := len(m.Files[req.FileID])
	if current != req.ExpectedPredecessor {
		if s.conflictCounter != nil {
			s.conflictCounter.Add(ctx, 1)
		}
		return nil, fmt.Errorf("%w: file %q is at version %d, expected predecessor %d",
			ErrVersionConflict, req.FileID, current, req.ExpectedPredecessor)
	}

	v := &Version{
		FileID:    req.FileID,
		Number:    current + 1,
		Content:   req.Content,
		Summary:   req.Summary,
		CreatedAt: time.Now().UTC(),
	}

	blob := filepath.Join(s.dir, blobName(req.FileID, v.Number))
	f, err := os.OpenFile(blob, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			// Another process won the race for this number.
			if s.conflictCounter != nil {
				s.conflictCounter.Add(ctx, 1)
			}
			return nil, fmt.Errorf("%w: version %d of %q already exists", ErrVersionConflict, v.Number, req.FileID)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create blob: %w", err)
	}
	if _, err := f.WriteString(req.Content); err != nil {
		f.Close()
		os.Remove(blob)
		span.RecordError(err)
		return nil, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(blob)
		return nil, fmt.Errorf("failed to close blob: %w", err)
	}

	if m.Files == nil {
		m.Files = make(map[string][]versionMeta)
	}
	m.Files[req.FileID] = append(m.Files[req.FileID], versionMeta{
		Number:    v.Number,
		Summary:   v.Summary,
		CreatedAt: v.CreatedAt,
	})

	if err := s.saveManifest(m); err != nil {
		// Roll the blob back so a failed create leaves nothing behind.
		os.Remove(blob)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if s.createCounter != nil {
		s.createCounter.Add(ctx, 1)
	}

	s.logger.Info("created version",
		zap.String("file_id", v.FileID),
		zap.Int("number", v.Number),
	)

	span.SetAttributes(attribute.Int("number", v.Number))
	return v, nil
}

// GetVersion retrieves one version of a file.
func (s *FileStore) GetVersion(ctx context.Context, fileID string, number int) (*Version, error) {
	_, span := s.tracer.Start(ctx, "snapshot.get_version")
	defer span.End()

	span.SetAttributes(
		attribute.String("file_id", fileID),
		attribute.Int("number", number),
	)

	if err := validateFileID(fileID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("store is closed")
	}

	m, err := s.loadManifest()
	if err != nil {
		return nil, err
	}

	metas := m.Files[fileID]
	if number < 1 || number > len(metas) {
		return nil, fmt.Errorf("%w: %s v%d", ErrNotFound, fileID, number)
	}

	content, err := os.ReadFile(filepath.Join(s.dir, blobName(fileID, number)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s v%d", ErrNotFound, fileID, number)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	meta := metas[number-1]
	return &Version{
		FileID:    fileID,
		Number:    number,
		Content:   string(content),
		Summary:   meta.Summary,
		CreatedAt: meta.CreatedAt,
	}, nil
}

// ListVersions returns all versions of a file, oldest first.
func (s *FileStore) ListVersions(ctx context.Context, fileID string) ([]*Version, error) {
	_, span := s.tracer.Start(ctx, "snapshot.list_versions")
	defer span.End()

	span.SetAttributes(attribute.String("file_id", fileID))

	if err := validateFileID(fileID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("store is closed")
	}

	m, err := s.loadManifest()
	if err != nil {
		return nil, err
	}

	metas := m.Files[fileID]
	versions := make([]*Version, 0, len(metas))
	for _, meta := range metas {
		content, err := os.ReadFile(filepath.Join(s.dir, blobName(fileID, meta.Number)))
		if err != nil {
			return nil, fmt.Errorf("failed to read blob %s v%d: %w", fileID, meta.Number, err)
		}
		versions = append(versions, &Version{
			FileID:    fileID,
			Number:    meta.Number,
			Content:   string(content),
			Summary:   meta.Summary,
			CreatedAt: meta.CreatedAt,
		})
	}

	span.SetAttributes(attribute.Int("result_count", len(versions)))
	return versions, nil
}

// Files returns the manifest entries sorted by file id.
func (s *FileStore) Files(ctx context.Context) ([]FileEntry, error) {
	_, span := s.tracer.Start(ctx, "snapshot.files")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.New("store is closed")
	}

	m, err := s.loadManifest()
	if err != nil {
		return nil, err
	}

	entries := make([]FileEntry, 0, len(m.Files))
	for id, metas := range m.Files {
		entries = append(entries, FileEntry{FileID: id, Versions: len(metas)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].FileID < entries[j].FileID })
	return entries, nil
}

// Close closes the store.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return nil
}

// loadManifest reads manifest.json, returning an empty manifest if absent.
// Caller must hold s.mu.
func (s *FileStore) loadManifest() (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &manifest{Files: make(map[string][]versionMeta)}, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Files == nil {
		m.Files = make(map[string][]versionMeta)
	}
	return &m, nil
}

// acquireLock takes the cross-process manifest lock via an exclusive
// lock file. A lock left behind by a crashed holder is reclaimed once
// its mtime passes the stale threshold. Caller must hold s.mu.
func (s *FileStore) acquireLock() (release func(), err error) {
	lockPath := filepath.Join(s.dir, lockFileName)
	deadline := time.Now().Add(lockTimeout)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire manifest lock: %w", err)
		}
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			s.logger.Warn("removing stale manifest lock", zap.String("path", lockPath))
			os.Remove(lockPath)
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("manifest lock %s still held after %s", lockPath, lockTimeout)
		}
		time.Sleep(lockRetry)
	}
}

// saveManifest writes manifest.json atomically via temp file and rename.
// Caller must hold s.mu.
func (s *FileStore) saveManifest(m *manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	tmp := filepath.Join(s.dir, manifestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, manifestFile)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// blobName maps a (file id, version) pair to the flat on-disk name,
// keeping the extension at the end: "utils.go" v2 -> "utils-v2.go".
func blobName(fileID string, number int) string {
	ext := path.Ext(fileID)
	base := strings.TrimSuffix(fileID, ext)
	return fmt.Sprintf("%s-v%d%s", base, number, ext)
}

// validateFileID rejects ids that are empty or would escape the store dir.
func validateFileID(fileID string) error {
	if fileID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFileID)
	}
	if strings.ContainsAny(fileID, `/\`) || fileID == "." || fileID == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidFileID, fileID)
	}
	return nil
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
