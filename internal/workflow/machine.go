package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/checklist"
)

const instrumentationName = "github.com/fyrsmithlabs/fixd/internal/workflow"

// Machine enforces the phase transition table over one session. It is not
// safe for concurrent use; a session proceeds single-threadedly.
type Machine struct {
	session   *Session
	checklist *checklist.Tracker
	logger    *zap.Logger

	tracer             trace.Tracer
	meter              metric.Meter
	transitionsCounter metric.Int64Counter
}

// NewMachine wraps a session, rebuilding the checklist tracker from its
// persisted items.
func NewMachine(s *Session, logger *zap.Logger) (*Machine, error) {
	if s == nil {
		return nil, errors.New("session is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tracker, err := checklist.NewTracker(s.Checklist)
	if err != nil {
		return nil, fmt.Errorf("failed to build checklist tracker: %w", err)
	}

	m := &Machine{
		session:   s,
		checklist: tracker,
		logger:    logger,
		tracer:    otel.Tracer(instrumentationName),
		meter:     otel.Meter(instrumentationName),
	}
	m.initMetrics()
	return m, nil
}

func (m *Machine) initMetrics() {
	var err error
	m.transitionsCounter, err = m.meter.Int64Counter(
		"fixd.workflow.transitions_total",
		metric.WithDescription("Total number of phase transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		m.logger.Warn("failed to create transition counter", zap.Error(err))
	}
}

// Session exposes the wrapped aggregate.
func (m *Machine) Session() *Session { return m.session }

// Checklist exposes the live tracker.
func (m *Machine) Checklist() *checklist.Tracker { return m.checklist }

// RecordNote records an annotation. At least one note is required to
// leave the investigation phase.
func (m *Machine) RecordNote(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyNote
	}
	if m.session.Phase.Terminal() {
		return fmt.Errorf("%w: session is %s", ErrInvalidTransition, m.session.Phase)
	}
	m.session.Notes = append(m.session.Notes, Note{Text: text, RecordedAt: time.Now().UTC()})
	m.touch()
	return nil
}

// Advance attempts the next transition in the table. On a verification
// failure in the verification phase the session loops back to
// implementation (or blocks once the retry budget is spent); the new
// phase is returned together with the gate error that caused the
// loop-back.
func (m *Machine) Advance(ctx context.Context) (Phase, error) {
	_, span := m.tracer.Start(ctx, "workflow.advance")
	defer span.End()

	from := m.session.Phase
	span.SetAttributes(attribute.String("from", string(from)))

	to, err := m.advance(ctx)
	if err == nil || to != from {
		m.recordTransition(ctx, from, to)
	}
	if err != nil {
		span.RecordError(err)
	}
	span.SetAttributes(attribute.String("to", string(to)))
	return to, err
}

func (m *Machine) advance(ctx context.Context) (Phase, error) {
	s := m.session

	switch s.Phase {
	case PhaseInvestigation:
		if len(s.Notes) == 0 {
			return s.Phase, fmt.Errorf("%w: investigation -> implementation requires at least one recorded note", ErrInvalidTransition)
		}
		m.enterImplementation()
		return s.Phase, nil

	case PhaseImplementation:
		if cs := s.OpenChangeSet(); cs != nil {
			return s.Phase, fmt.Errorf("%w: change set %s is still open", ErrInvalidTransition, cs.ID)
		}
		if s.IterationChangeSets == 0 {
			return s.Phase, fmt.Errorf("%w: implementation -> documentation requires at least one change set", ErrInvalidTransition)
		}
		m.setPhase(PhaseDocumentation)
		return s.Phase, nil

	case PhaseDocumentation:
		if !s.ReportDrafted {
			return s.Phase, fmt.Errorf("%w: documentation -> verification requires a drafted report", ErrInvalidTransition)
		}
		m.setPhase(PhaseVerification)
		return s.Phase, nil

	case PhaseVerification:
		if !m.checklist.AllDone() {
			pending := m.checklist.Pending()
			ids := make([]string, len(pending))
			for i, item := range pending {
				ids[i] = item.ID
			}
			return s.Phase, fmt.Errorf("%w: unmet items: %s", ErrChecklistIncomplete, strings.Join(ids, ", "))
		}

		latest := s.LatestVerification()
		if latest != nil && latest.Success {
			m.setPhase(PhaseDone)
			return s.Phase, nil
		}

		// Loop back for another fix iteration, bounded by the budget.
		s.LoopBacks++
		if s.LoopBacks > s.RetryBudget {
			m.setPhase(PhaseBlocked)
			return s.Phase, fmt.Errorf("%w: %d loop-backs exceed budget of %d",
				ErrRetryBudgetExhausted, s.LoopBacks, s.RetryBudget)
		}
		m.enterImplementation()
		if latest == nil {
			return s.Phase, fmt.Errorf("%w: no verification has been run", ErrVerificationFailed)
		}
		return s.Phase, fmt.Errorf("%w: %d diagnostic(s)", ErrVerificationFailed, len(latest.Diagnostics))

	default:
		return s.Phase, fmt.Errorf("%w: session is %s", ErrInvalidTransition, s.Phase)
	}
}

// OpenChangeSet starts a new change set. Change sets exist only while the
// session is implementing.
func (m *Machine) OpenChangeSet(kind ChangeKind, subject, scope string, breaking bool) (*ChangeSet, error) {
	s := m.session

	if s.Phase != PhaseImplementation {
		return nil, fmt.Errorf("%w: change sets are created in the implementation phase, session is %s",
			ErrInvalidTransition, s.Phase)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	if cs := s.OpenChangeSet(); cs != nil {
		return nil, fmt.Errorf("%w: %s", ErrChangeSetAlreadyOpen, cs.ID)
	}

	cs := &ChangeSet{
		ID:        uuid.New().String(),
		Kind:      kind,
		Subject:   subject,
		Scope:     scope,
		Breaking:  breaking,
		Phase:     s.Phase,
		Open:      true,
		CreatedAt: time.Now().UTC(),
	}
	s.ChangeSets = append(s.ChangeSets, cs)
	s.IterationChangeSets++
	m.touch()

	m.logger.Info("opened change set",
		zap.String("id", cs.ID),
		zap.String("kind", string(kind)),
	)
	return cs, nil
}

// AttachVersion records a snapshot-store version in the open change set.
func (m *Machine) AttachVersion(ref VersionRef) error {
	cs := m.session.OpenChangeSet()
	if cs == nil {
		return ErrNoOpenChangeSet
	}
	cs.Versions = append(cs.Versions, ref)
	m.touch()
	return nil
}

// AddAspect records an aspect label on the open change set.
func (m *Machine) AddAspect(label AspectLabel) error {
	cs := m.session.OpenChangeSet()
	if cs == nil {
		return ErrNoOpenChangeSet
	}
	if label.Name == "" {
		return errors.New("aspect name is required")
	}
	cs.Aspects = append(cs.Aspects, label)
	m.touch()
	return nil
}

// CloseChangeSet closes the open change set. The fallback annotation, if
// any, surfaces in the report's flow diagram.
func (m *Machine) CloseChangeSet(fallback string) error {
	cs := m.session.OpenChangeSet()
	if cs == nil {
		return ErrNoOpenChangeSet
	}
	cs.Open = false
	cs.Fallback = fallback
	cs.ClosedAt = time.Now().UTC()
	m.touch()

	m.logger.Info("closed change set",
		zap.String("id", cs.ID),
		zap.Int("versions", len(cs.Versions)),
	)
	return nil
}

// RecordVerification appends a gateway outcome. Repeated external tool
// failures beyond the retry budget block the session.
func (m *Machine) RecordVerification(outcome VerificationOutcome) error {
	s := m.session
	if s.Phase.Terminal() {
		return fmt.Errorf("%w: session is %s", ErrInvalidTransition, s.Phase)
	}

	if outcome.RanAt.IsZero() {
		outcome.RanAt = time.Now().UTC()
	}
	s.Verifications = append(s.Verifications, outcome)

	if outcome.ToolFailure {
		s.ToolFailures++
		m.logger.Warn("external tool failure",
			zap.Int("count", s.ToolFailures),
			zap.Int("budget", s.RetryBudget),
		)
		if s.ToolFailures > s.RetryBudget {
			from := s.Phase
			m.setPhase(PhaseBlocked)
			m.recordTransition(context.Background(), from, PhaseBlocked)
			m.touch()
			return fmt.Errorf("%w: %d external tool failures exceed budget of %d",
				ErrRetryBudgetExhausted, s.ToolFailures, s.RetryBudget)
		}
	}
	m.touch()
	return nil
}

// MarkChecklist marks a closing-gate item done and mirrors the tracker
// state back into the session record.
func (m *Machine) MarkChecklist(id string) error {
	if err := m.checklist.Mark(id); err != nil {
		return err
	}
	m.session.Checklist = m.checklist.Items()
	m.touch()
	return nil
}

// MarkReportDrafted satisfies the documentation gate. Called by the
// report composer path after a successful compose.
func (m *Machine) MarkReportDrafted() {
	m.session.ReportDrafted = true
	m.touch()
}

// Abort drives the session to blocked from any non-terminal state.
func (m *Machine) Abort(reason string) error {
	s := m.session
	if s.Phase.Terminal() {
		return fmt.Errorf("%w: session is already %s", ErrInvalidTransition, s.Phase)
	}
	from := s.Phase
	s.AbortReason = reason
	m.setPhase(PhaseBlocked)
	m.recordTransition(context.Background(), from, PhaseBlocked)

	m.logger.Info("session aborted",
		zap.String("from", string(from)),
		zap.String("reason", reason),
	)
	return nil
}

// enterImplementation resets the per-iteration gate counter.
func (m *Machine) enterImplementation() {
	m.session.IterationChangeSets = 0
	m.setPhase(PhaseImplementation)
}

func (m *Machine) setPhase(p Phase) {
	m.session.Phase = p
	m.touch()
}

func (m *Machine) touch() {
	m.session.UpdatedAt = time.Now().UTC()
}

func (m *Machine) recordTransition(ctx context.Context, from, to Phase) {
	if from == to {
		return
	}
	if m.transitionsCounter != nil {
		m.transitionsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", string(from)),
			attribute.String("to", string(to)),
		))
	}
	m.logger.Info("phase transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
}
