package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/fixd/internal/checklist"
	"github.com/fyrsmithlabs/fixd/internal/commitmsg"
	"github.com/fyrsmithlabs/fixd/internal/snapshot"
	"github.com/fyrsmithlabs/fixd/internal/verify"
	"github.com/fyrsmithlabs/fixd/internal/workflow"
)

func newTestComposer(t *testing.T) (*Composer, snapshot.Store) {
	t.Helper()

	store, err := snapshot.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	gen, err := commitmsg.NewGenerator(commitmsg.StrictnessLenient)
	require.NoError(t, err)

	c, err := NewComposer(store, gen, nil)
	require.NoError(t, err)
	return c, store
}

func seededSession(t *testing.T, store snapshot.Store) *workflow.Session {
	t.Helper()
	ctx := context.Background()

	_, err := store.CreateVersion(ctx, &snapshot.CreateRequest{
		FileID:  "utils.go",
		Content: "func sum(a, b int) int {\n\treturn a + b\n}\n",
	})
	require.NoError(t, err)
	_, err = store.CreateVersion(ctx, &snapshot.CreateRequest{
		FileID:              "utils.go",
		Content:             "func sum(a, b, c int) int {\n\treturn a + b + c\n}\n",
		ExpectedPredecessor: 1,
		Summary:             "include third operand",
	})
	require.NoError(t, err)

	s := workflow.NewSession("/tmp/ws", "sum drops the third operand", nil, 0)
	s.Phase = workflow.PhaseDocumentation
	s.Notes = []workflow.Note{
		{Text: "reproduced with sum(1, 2, 3)", RecordedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{Text: "sum ignores its third argument", RecordedAt: time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)},
	}
	s.ChangeSets = []*workflow.ChangeSet{{
		ID:      "cs-1",
		Kind:    workflow.KindFix,
		Subject: "Correct sum calculation in utils",
		Scope:   "utils",
		Versions: []workflow.VersionRef{
			{FileID: "utils.go", Number: 2, Summary: "include third operand"},
		},
		Aspects: []workflow.AspectLabel{
			{FileID: "utils.go", StartLine: 1, EndLine: 3, Name: "arithmetic"},
		},
		Fallback: "revert to two-operand sum if callers break",
	}}
	s.Verifications = []workflow.VerificationOutcome{{
		Success: true,
		Command: "go test ./...",
		RanAt:   time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}}
	return s
}

func TestCompose_SectionOrder(t *testing.T) {
	c, store := newTestComposer(t)
	s := seededSession(t, store)

	doc, err := c.Compose(context.Background(), s)
	require.NoError(t, err)

	sections := []string{
		"## Problem Summary",
		"## Investigation Steps",
		"## Change 1: Correct sum calculation in utils",
		"## Technical Explanation",
		"## Files Modified",
		"## Flow",
		"## Testing",
		"## Checklist",
		"## Commit Message",
	}
	last := -1
	for _, sec := range sections {
		idx := strings.Index(doc, sec)
		require.GreaterOrEqual(t, idx, 0, "missing section %q", sec)
		assert.Greater(t, idx, last, "section %q out of order", sec)
		last = idx
	}
}

func TestCompose_Deterministic(t *testing.T) {
	c, store := newTestComposer(t)
	s := seededSession(t, store)

	first, err := c.Compose(context.Background(), s)
	require.NoError(t, err)
	second, err := c.Compose(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCompose_AspectTableAndCommitMessage(t *testing.T) {
	c, store := newTestComposer(t)
	s := seededSession(t, store)

	doc, err := c.Compose(context.Background(), s)
	require.NoError(t, err)

	assert.Contains(t, doc, "arithmetic")
	assert.Contains(t, doc, "v1->v2")
	assert.Contains(t, doc, "fix(utils): Correct sum calculation in utils")
	assert.Contains(t, doc, "-> fallback: revert to two-operand sum if callers break")
}

func TestCompose_TimestampsNormalizedToUTC(t *testing.T) {
	c, store := newTestComposer(t)
	s := seededSession(t, store)

	loc := time.FixedZone("UTC+5", 5*3600)
	s.CreatedAt = time.Date(2026, 3, 1, 14, 30, 0, 0, loc)
	s.Notes[0].RecordedAt = time.Date(2026, 3, 1, 15, 0, 0, 0, loc)

	doc, err := c.Compose(context.Background(), s)
	require.NoError(t, err)

	assert.Contains(t, doc, "2026-03-01T09:30:00Z")
	assert.Contains(t, doc, "2026-03-01T10:00:00Z")
	assert.NotContains(t, doc, "+05:00")
}

func TestCompose_InvalidSubjectFailsComposition(t *testing.T) {
	c, store := newTestComposer(t)
	s := seededSession(t, store)
	s.ChangeSets[0].Subject = "fixed the bug."

	_, err := c.Compose(context.Background(), s)
	require.Error(t, err)
	assert.ErrorIs(t, err, commitmsg.ErrInvalidSubject)
}

func TestCompose_FailedVerificationListsDiagnostics(t *testing.T) {
	c, store := newTestComposer(t)
	s := seededSession(t, store)
	s.Verifications = append(s.Verifications, workflow.VerificationOutcome{
		Success: false,
		Command: "go test ./...",
		Diagnostics: []verify.Diagnostic{
			{File: "utils.go", Line: 2, Message: "expected 6, got 3"},
		},
		RanAt: time.Date(2026, 3, 1, 11, 30, 0, 0, time.UTC),
	})

	doc, err := c.Compose(context.Background(), s)
	require.NoError(t, err)

	assert.Contains(t, doc, "Most recent run failed")
	assert.Contains(t, doc, "`utils.go:2` expected 6, got 3")
}

func TestCompose_ChecklistRendering(t *testing.T) {
	c, store := newTestComposer(t)
	s := seededSession(t, store)
	s.Checklist = []checklist.Item{
		{ID: "root-cause-documented", Description: "Root cause is written down", Done: true},
		{ID: "fix-verified", Description: "Fix passes verification", Done: false},
	}

	doc, err := c.Compose(context.Background(), s)
	require.NoError(t, err)

	assert.Contains(t, doc, "- [x] root-cause-documented")
	assert.Contains(t, doc, "- [ ] fix-verified")
}

func TestCompose_EmptySession(t *testing.T) {
	c, _ := newTestComposer(t)
	s := workflow.NewSession("/tmp/ws", "", nil, 0)

	doc, err := c.Compose(context.Background(), s)
	require.NoError(t, err)

	assert.Contains(t, doc, "_No problem summary recorded._")
	assert.Contains(t, doc, "_No investigation notes recorded._")
	assert.Contains(t, doc, "_No change sets to describe._")
}
