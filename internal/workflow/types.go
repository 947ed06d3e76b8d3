package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/fixd/internal/checklist"
	"github.com/fyrsmithlabs/fixd/internal/verify"
)

// Phase is one stage of the session workflow.
type Phase string

const (
	PhaseInvestigation  Phase = "investigation"
	PhaseImplementation Phase = "implementation"
	PhaseDocumentation  Phase = "documentation"
	PhaseVerification   Phase = "verification"
	PhaseDone           Phase = "done"
	PhaseBlocked        Phase = "blocked"
)

// Terminal reports whether no further transitions are accepted.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseBlocked
}

// DefaultRetryBudget is the number of verification loop-backs allowed per
// session before it is blocked.
const DefaultRetryBudget = 3

// ChangeKind is the conventional-commit vocabulary for a change set.
type ChangeKind string

const (
	KindFeature  ChangeKind = "feature"
	KindFix      ChangeKind = "fix"
	KindRefactor ChangeKind = "refactor"
	KindPerf     ChangeKind = "perf"
	KindStyle    ChangeKind = "style"
	KindDocs     ChangeKind = "docs"
	KindTest     ChangeKind = "test"
	KindChore    ChangeKind = "chore"
)

// Valid reports whether k is in the controlled vocabulary.
func (k ChangeKind) Valid() bool {
	switch k {
	case KindFeature, KindFix, KindRefactor, KindPerf, KindStyle, KindDocs, KindTest, KindChore:
		return true
	}
	return false
}

// Note is one recorded investigation annotation.
type Note struct {
	Text       string    `json:"text"`
	RecordedAt time.Time `json:"recorded_at"`
}

// VersionRef points at a version owned by the snapshot store.
type VersionRef struct {
	FileID  string `json:"file_id"`
	Number  int    `json:"number"`
	Summary string `json:"summary,omitempty"`
}

// AspectLabel names what a line range of a file's newest version is about.
// The report composer feeds these to the diff annotation step.
type AspectLabel struct {
	FileID    string `json:"file_id"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Name      string `json:"name"`
}

// ChangeSet groups the versions created during one implementation
// iteration. It is created only while the session is in the
// implementation phase.
type ChangeSet struct {
	ID       string       `json:"id"`
	Kind     ChangeKind   `json:"kind"`
	Subject  string       `json:"subject"`
	Scope    string       `json:"scope,omitempty"`
	Breaking bool         `json:"breaking,omitempty"`
	Phase    Phase        `json:"phase"`
	Versions []VersionRef `json:"versions,omitempty"`

	// Aspects label line ranges touched by this change set.
	Aspects []AspectLabel `json:"aspects,omitempty"`

	// Fallback is an optional branch/fallback annotation rendered in the
	// report's flow diagram.
	Fallback string `json:"fallback,omitempty"`

	Open      bool      `json:"open"`
	CreatedAt time.Time `json:"created_at"`
	ClosedAt  time.Time `json:"closed_at,omitzero"`
}

// VerificationOutcome is one recorded gateway result.
type VerificationOutcome struct {
	Success     bool                `json:"success"`
	ToolFailure bool                `json:"tool_failure,omitempty"`
	TimedOut    bool                `json:"timed_out,omitempty"`
	Command     string              `json:"command,omitempty"`
	Diagnostics []verify.Diagnostic `json:"diagnostics,omitempty"`
	RanAt       time.Time           `json:"ran_at"`
}

// Session is the root aggregate: one workflow, one snapshot scope, one
// checklist, and the ordered history of change sets and verification
// results. It is persisted as the workspace session record.
type Session struct {
	ID            string `json:"id"`
	WorkspaceRoot string `json:"workspace_root"`
	Problem       string `json:"problem,omitempty"`

	Phase         Phase                 `json:"phase"`
	Notes         []Note                `json:"notes,omitempty"`
	ChangeSets    []*ChangeSet          `json:"change_sets,omitempty"`
	Verifications []VerificationOutcome `json:"verifications,omitempty"`
	Checklist     []checklist.Item      `json:"checklist"`

	RetryBudget  int `json:"retry_budget"`
	LoopBacks    int `json:"loop_backs"`
	ToolFailures int `json:"tool_failures"`

	// IterationChangeSets counts change sets created since implementation
	// was last entered; the documentation gate requires at least one.
	IterationChangeSets int `json:"iteration_change_sets"`

	ReportDrafted bool `json:"report_drafted"`

	// AbortReason is set when the session was explicitly aborted.
	AbortReason string `json:"abort_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a session in the investigation phase. A nil or empty
// item set falls back to the default closing-gate checklist.
func NewSession(workspaceRoot, problem string, items []checklist.Item, retryBudget int) *Session {
	if len(items) == 0 {
		items = checklist.DefaultItems()
	}
	if retryBudget <= 0 {
		retryBudget = DefaultRetryBudget
	}
	now := time.Now().UTC()
	return &Session{
		ID:            uuid.New().String(),
		WorkspaceRoot: workspaceRoot,
		Problem:       problem,
		Phase:         PhaseInvestigation,
		Checklist:     items,
		RetryBudget:   retryBudget,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// OpenChangeSet returns the currently open change set, or nil.
func (s *Session) OpenChangeSet() *ChangeSet {
	for i := len(s.ChangeSets) - 1; i >= 0; i-- {
		if s.ChangeSets[i].Open {
			return s.ChangeSets[i]
		}
	}
	return nil
}

// LatestVerification returns the most recent outcome, or nil.
func (s *Session) LatestVerification() *VerificationOutcome {
	if len(s.Verifications) == 0 {
		return nil
	}
	return &s.Verifications[len(s.Verifications)-1]
}

// RetryRemaining is the number of loop-backs left before the session
// blocks.
func (s *Session) RetryRemaining() int {
	remaining := s.RetryBudget - s.LoopBacks
	if remaining < 0 {
		return 0
	}
	return remaining
}
