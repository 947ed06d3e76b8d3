// Package report renders a debugging session into a Markdown document.
// Composition is a pure function of session state: two calls on an
// unchanged session produce byte-identical output (timestamps are
// normalized to UTC RFC3339), and composing never mutates the session.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/commitmsg"
	"github.com/fyrsmithlabs/fixd/internal/diffengine"
	"github.com/fyrsmithlabs/fixd/internal/snapshot"
	"github.com/fyrsmithlabs/fixd/internal/workflow"
)

// Composer assembles session reports.
type Composer struct {
	store     snapshot.Store
	engine    *diffengine.Engine
	generator *commitmsg.Generator
	logger    *zap.Logger
}

// NewComposer creates a composer over a snapshot store.
func NewComposer(store snapshot.Store, generator *commitmsg.Generator, logger *zap.Logger) (*Composer, error) {
	if store == nil {
		return nil, errors.New("snapshot store is required")
	}
	if generator == nil {
		return nil, errors.New("commit message generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{
		store:     store,
		engine:    diffengine.NewEngine(),
		generator: generator,
		logger:    logger,
	}, nil
}

// Compose renders the report. Section order is fixed: problem summary,
// investigation steps, change sets with before/after aspect tables,
// technical explanation, files modified, flow diagram, testing
// instructions, checklist status, commit message.
func (c *Composer) Compose(ctx context.Context, s *workflow.Session) (string, error) {
	if s == nil {
		return "", errors.New("session is required")
	}

	var sb strings.Builder

	sb.WriteString("# Debugging Session Report\n\n")
	sb.WriteString(fmt.Sprintf("**Session:** %s\n", s.ID))
	sb.WriteString(fmt.Sprintf("**Started:** %s\n", stamp(s.CreatedAt)))
	sb.WriteString(fmt.Sprintf("**Phase:** %s\n\n", s.Phase))

	c.writeProblem(&sb, s)
	c.writeInvestigation(&sb, s)

	aspects, err := c.writeChangeSets(ctx, &sb, s)
	if err != nil {
		return "", err
	}

	c.writeExplanation(&sb, s)
	c.writeFilesModified(&sb, s)
	c.writeFlowDiagram(&sb, s)
	c.writeTesting(&sb, s)
	c.writeChecklist(&sb, s)

	if err := c.writeCommitMessage(&sb, s, aspects); err != nil {
		return "", err
	}

	c.logger.Debug("composed report",
		zap.String("session_id", s.ID),
		zap.Int("change_sets", len(s.ChangeSets)),
	)
	return sb.String(), nil
}

func (c *Composer) writeProblem(sb *strings.Builder, s *workflow.Session) {
	sb.WriteString("## Problem Summary\n\n")
	if s.Problem == "" {
		sb.WriteString("_No problem summary recorded._\n\n")
		return
	}
	sb.WriteString(s.Problem + "\n\n")
}

func (c *Composer) writeInvestigation(sb *strings.Builder, s *workflow.Session) {
	sb.WriteString("## Investigation Steps\n\n")
	if len(s.Notes) == 0 {
		sb.WriteString("_No investigation notes recorded._\n\n")
		return
	}
	for i, note := range s.Notes {
		sb.WriteString(fmt.Sprintf("%d. %s _(%s)_\n", i+1, note.Text, stamp(note.RecordedAt)))
	}
	sb.WriteString("\n")
}

// writeChangeSets renders one section per change set and returns the
// aspect labels touched, in document order, for the commit message body.
func (c *Composer) writeChangeSets(ctx context.Context, sb *strings.Builder, s *workflow.Session) ([]string, error) {
	var touched []string

	for i, cs := range s.ChangeSets {
		sb.WriteString(fmt.Sprintf("## Change %d: %s\n\n", i+1, cs.Subject))
		sb.WriteString(fmt.Sprintf("**Kind:** %s", cs.Kind))
		if cs.Breaking {
			sb.WriteString(" (breaking)")
		}
		sb.WriteString("\n\n")

		if len(cs.Versions) == 0 {
			sb.WriteString("_No versions recorded._\n\n")
			continue
		}

		sb.WriteString("| File | Aspect | Before | After |\n")
		sb.WriteString("|------|--------|--------|-------|\n")

		for _, ref := range cs.Versions {
			if ref.Number < 2 {
				summary := ref.Summary
				if summary == "" {
					summary = "-"
				}
				sb.WriteString(fmt.Sprintf("| %s (v1) | initial snapshot | - | %s |\n",
					cell(ref.FileID), escapeCell(summary)))
				continue
			}

			oldV, err := c.store.GetVersion(ctx, ref.FileID, ref.Number-1)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s v%d: %w", ref.FileID, ref.Number-1, err)
			}
			newV, err := c.store.GetVersion(ctx, ref.FileID, ref.Number)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s v%d: %w", ref.FileID, ref.Number, err)
			}

			rec := c.engine.Compute(ref.FileID, oldV.Number, newV.Number, oldV.Content, newV.Content)
			annotated := diffengine.Annotate(rec, labelsFor(cs, ref.FileID))

			for _, h := range annotated {
				aspect := h.Aspect
				if aspect == "" {
					aspect = "-"
				} else {
					touched = append(touched, aspect)
				}
				sb.WriteString(fmt.Sprintf("| %s (v%d->v%d) | %s | %s | %s |\n",
					cell(ref.FileID), oldV.Number, newV.Number, escapeCell(aspect), cell(h.Before), cell(h.After)))
			}
			if len(annotated) == 0 {
				sb.WriteString(fmt.Sprintf("| %s (v%d->v%d) | - | _no changes_ | _no changes_ |\n",
					cell(ref.FileID), oldV.Number, newV.Number))
			}
		}
		sb.WriteString("\n")
	}

	return touched, nil
}

func (c *Composer) writeExplanation(sb *strings.Builder, s *workflow.Session) {
	sb.WriteString("## Technical Explanation\n\n")
	if len(s.ChangeSets) == 0 {
		sb.WriteString("_No changes made yet._\n\n")
		return
	}
	for i, cs := range s.ChangeSets {
		files := make([]string, 0, len(cs.Versions))
		seen := make(map[string]bool)
		for _, ref := range cs.Versions {
			if !seen[ref.FileID] {
				seen[ref.FileID] = true
				files = append(files, ref.FileID)
			}
		}
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s): touched %s.\n",
			i+1, cs.Subject, cs.Kind, humanFileList(files)))
	}
	sb.WriteString("\n")
}

func (c *Composer) writeFilesModified(sb *strings.Builder, s *workflow.Session) {
	sb.WriteString("## Files Modified\n\n")

	type fileState struct {
		id      string
		latest  int
		summary string
	}
	var order []string
	states := make(map[string]*fileState)

	for _, cs := range s.ChangeSets {
		for _, ref := range cs.Versions {
			st, ok := states[ref.FileID]
			if !ok {
				st = &fileState{id: ref.FileID}
				states[ref.FileID] = st
				order = append(order, ref.FileID)
			}
			if ref.Number > st.latest {
				st.latest = ref.Number
				st.summary = ref.Summary
			}
		}
	}

	if len(order) == 0 {
		sb.WriteString("_None._\n\n")
		return
	}
	for _, id := range order {
		st := states[id]
		sb.WriteString(fmt.Sprintf("- `%s` (latest: v%d)", st.id, st.latest))
		if st.summary != "" {
			sb.WriteString(" - " + st.summary)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

func (c *Composer) writeFlowDiagram(sb *strings.Builder, s *workflow.Session) {
	sb.WriteString("## Flow\n\n")

	step := 1
	sb.WriteString(fmt.Sprintf("%d. Investigation - %d note(s) recorded\n", step, len(s.Notes)))

	for _, cs := range s.ChangeSets {
		step++
		sb.WriteString(fmt.Sprintf("%d. Apply change set (%s): %s\n", step, cs.Kind, cs.Subject))
		if cs.Fallback != "" {
			sb.WriteString(fmt.Sprintf("   -> fallback: %s\n", cs.Fallback))
		}
	}

	for _, v := range s.Verifications {
		step++
		outcome := "success"
		switch {
		case v.ToolFailure:
			outcome = "external tool failure"
		case !v.Success:
			outcome = fmt.Sprintf("failed (%d diagnostic(s))", len(v.Diagnostics))
		}
		sb.WriteString(fmt.Sprintf("%d. Verify - %s\n", step, outcome))
		if !v.Success && !s.Phase.Terminal() {
			sb.WriteString("   -> branch: loop back to implementation\n")
		}
	}

	step++
	sb.WriteString(fmt.Sprintf("%d. Session state: %s", step, s.Phase))
	if s.AbortReason != "" {
		sb.WriteString(" (aborted: " + s.AbortReason + ")")
	}
	sb.WriteString("\n\n")
}

func (c *Composer) writeTesting(sb *strings.Builder, s *workflow.Session) {
	sb.WriteString("## Testing\n\n")

	var command string
	for _, v := range s.Verifications {
		if v.Command != "" {
			command = v.Command
		}
	}
	if command == "" {
		sb.WriteString("_No verification command recorded yet._\n\n")
		return
	}
	sb.WriteString("Re-run the verification check:\n\n")
	sb.WriteString("```sh\n" + command + "\n```\n\n")

	if latest := s.LatestVerification(); latest != nil && !latest.Success {
		sb.WriteString("Most recent run failed:\n\n")
		for _, d := range latest.Diagnostics {
			if d.File != "" {
				sb.WriteString(fmt.Sprintf("- `%s:%d` %s\n", d.File, d.Line, d.Message))
			} else {
				sb.WriteString(fmt.Sprintf("- %s\n", d.Message))
			}
		}
		sb.WriteString("\n")
	}
}

func (c *Composer) writeChecklist(sb *strings.Builder, s *workflow.Session) {
	sb.WriteString("## Checklist\n\n")
	for _, item := range s.Checklist {
		mark := " "
		if item.Done {
			mark = "x"
		}
		sb.WriteString(fmt.Sprintf("- [%s] %s - %s\n", mark, item.ID, item.Description))
	}
	sb.WriteString("\n")
}

func (c *Composer) writeCommitMessage(sb *strings.Builder, s *workflow.Session, aspects []string) error {
	sb.WriteString("## Commit Message\n\n")

	if len(s.ChangeSets) == 0 {
		sb.WriteString("_No change sets to describe._\n")
		return nil
	}

	cs := s.ChangeSets[len(s.ChangeSets)-1]
	msg, err := c.generator.Generate(commitmsg.Change{
		Kind:     string(cs.Kind),
		Scope:    cs.Scope,
		Subject:  cs.Subject,
		Breaking: cs.Breaking,
		Aspects:  aspects,
	})
	if err != nil {
		return fmt.Errorf("failed to generate commit message: %w", err)
	}

	sb.WriteString("```\n" + msg.Format() + "\n```\n")
	return nil
}

// labelsFor converts a change set's aspect labels for one file into the
// diff annotation form.
func labelsFor(cs *workflow.ChangeSet, fileID string) []diffengine.AspectLabel {
	var labels []diffengine.AspectLabel
	for _, a := range cs.Aspects {
		if a.FileID != fileID {
			continue
		}
		labels = append(labels, diffengine.AspectLabel{
			StartLine: a.StartLine,
			EndLine:   a.EndLine,
			Name:      a.Name,
		})
	}
	return labels
}

// cell escapes content for a Markdown table cell and renders it as code.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	return "`" + strings.ReplaceAll(escapeCell(s), "`", "'") + "`"
}

// escapeCell escapes plain text for a Markdown table cell.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", "<br>")
}

// stamp normalizes a timestamp for deterministic output.
func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// humanFileList joins file ids for prose.
func humanFileList(files []string) string {
	switch len(files) {
	case 0:
		return "no files"
	case 1:
		return "`" + files[0] + "`"
	default:
		quoted := make([]string, len(files))
		for i, f := range files {
			quoted[i] = "`" + f + "`"
		}
		return strings.Join(quoted[:len(quoted)-1], ", ") + " and " + quoted[len(quoted)-1]
	}
}
