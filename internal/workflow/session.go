package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const sessionFile = "session.json"

// Load reads the active session record from the store directory.
func Load(dir string) (*Session, error) {
	data, err := os.ReadFile(filepath.Join(dir, sessionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session record: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session record: %w", err)
	}
	return &s, nil
}

// Save writes the session record atomically via temp file and rename.
func (s *Session) Save(dir string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	path := filepath.Join(dir, sessionFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace session record: %w", err)
	}
	return nil
}

// Archive moves a terminal session's record into the archive directory so
// a new session can start while history is retained. Returns the archived
// path.
func Archive(dir string, s *Session) (string, error) {
	if !s.Phase.Terminal() {
		return "", fmt.Errorf("%w: cannot archive a session in phase %s", ErrInvalidTransition, s.Phase)
	}

	archiveDir := filepath.Join(dir, "archive")
	if err := os.MkdirAll(archiveDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	dst := filepath.Join(archiveDir, fmt.Sprintf("session-%s.json", s.ID))
	if err := os.Rename(filepath.Join(dir, sessionFile), dst); err != nil {
		return "", fmt.Errorf("failed to archive session record: %w", err)
	}
	return dst, nil
}
