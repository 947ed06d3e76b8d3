package snapshot

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrVersionConflict indicates the expected predecessor is no longer the
	// current version. Retry with the now-current version number.
	ErrVersionConflict = errors.New("version conflict")

	// ErrNotFound indicates the requested file or version does not exist.
	ErrNotFound = errors.New("version not found")

	// ErrInvalidFileID indicates the file identifier is empty or would
	// escape the store directory.
	ErrInvalidFileID = errors.New("invalid file id")
)

// Version is an immutable snapshot of one file's content.
type Version struct {
	FileID    string    `json:"file_id"`
	Number    int       `json:"number"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateRequest describes a new version to append.
type CreateRequest struct {
	FileID  string
	Content string

	// ExpectedPredecessor is the version number the caller believes to be
	// current (0 for a file that has never been snapshotted). The create
	// fails with ErrVersionConflict if the store disagrees.
	ExpectedPredecessor int

	// Summary is an optional one-line description of the change.
	Summary string
}

// FileEntry is one manifest row: a tracked file and its version count.
type FileEntry struct {
	FileID   string `json:"file_id"`
	Versions int    `json:"versions"`
}

// Store provides versioned snapshot persistence.
type Store interface {
	// CreateVersion appends a new version numbered ExpectedPredecessor+1.
	// A failed create leaves no partial version behind.
	CreateVersion(ctx context.Context, req *CreateRequest) (*Version, error)

	// GetVersion retrieves one version of a file.
	GetVersion(ctx context.Context, fileID string, number int) (*Version, error)

	// ListVersions returns all versions of a file, oldest first. A file
	// that was never snapshotted yields an empty slice, not an error.
	ListVersions(ctx context.Context, fileID string) ([]*Version, error)

	// Files returns the manifest entries sorted by file id.
	Files(ctx context.Context) ([]FileEntry, error)

	// Close releases the store.
	Close() error
}
