package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := NewSession("/ws", "sum is wrong", nil, 5)
	m, err := NewMachine(s, nil)
	require.NoError(t, err)

	require.NoError(t, m.RecordNote("bad addition in utils"))
	_, err = m.Advance(context.Background())
	require.NoError(t, err)
	_, err = m.OpenChangeSet(KindFix, "Correct sum calculation in utils", "utils", false)
	require.NoError(t, err)
	require.NoError(t, m.AttachVersion(VersionRef{FileID: "utils.go", Number: 2, Summary: "add c"}))
	require.NoError(t, m.AddAspect(AspectLabel{FileID: "utils.go", StartLine: 1, EndLine: 1, Name: "calculation"}))
	require.NoError(t, m.MarkChecklist("root-cause-documented"))

	require.NoError(t, s.Save(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, PhaseImplementation, loaded.Phase)
	assert.Equal(t, 5, loaded.RetryBudget)
	require.Len(t, loaded.Notes, 1)
	require.Len(t, loaded.ChangeSets, 1)
	assert.Equal(t, KindFix, loaded.ChangeSets[0].Kind)
	require.Len(t, loaded.ChangeSets[0].Versions, 1)
	assert.Equal(t, "utils.go", loaded.ChangeSets[0].Versions[0].FileID)
	require.Len(t, loaded.ChangeSets[0].Aspects, 1)

	// The rebuilt machine picks up persisted checklist state.
	m2, err := NewMachine(loaded, nil)
	require.NoError(t, err)
	assert.Len(t, m2.Checklist().Pending(), 4)
}

func TestLoad_NoSession(t *testing.T) {
	_, err := Load(t.TempDir())
	require.ErrorIs(t, err, ErrNoSession)
}

func TestArchive_OnlyTerminalSessions(t *testing.T) {
	dir := t.TempDir()

	s := NewSession("/ws", "p", nil, 0)
	require.NoError(t, s.Save(dir))

	_, err := Archive(dir, s)
	require.ErrorIs(t, err, ErrInvalidTransition)

	m, err := NewMachine(s, nil)
	require.NoError(t, err)
	require.NoError(t, m.Abort("test"))
	require.NoError(t, s.Save(dir))

	dst, err := Archive(dir, s)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "archive", "session-"+s.ID+".json"), dst)

	_, err = os.Stat(filepath.Join(dir, "session.json"))
	assert.True(t, os.IsNotExist(err))

	_, err = Load(dir)
	require.ErrorIs(t, err, ErrNoSession)
}
