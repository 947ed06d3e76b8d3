package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/fixd/internal/workflow"
)

var advancePhaseCmd = &cobra.Command{
	Use:   "advance-phase",
	Short: "Advance the session to the next phase",
	Long: `Advance the session through its workflow:

  investigation -> implementation -> documentation -> verification -> done

Each transition is gated: investigation requires at least one note,
implementation requires a closed change set, documentation requires a
composed report, and verification requires a complete checklist plus a
passing verification run. A failed verification loops the session back to
implementation until the retry budget is spent, after which it blocks.

Examples:
  fixd advance-phase`,
	RunE: runAdvancePhase,
}

func init() {
	rootCmd.AddCommand(advancePhaseCmd)
}

func runAdvancePhase(cmd *cobra.Command, args []string) error {
	m, err := loadMachine()
	if err != nil {
		return err
	}

	phase, advErr := m.Advance(cmd.Context())

	// Loop-backs and budget exhaustion change state and report an error;
	// the new state must be persisted either way.
	if err := saveSession(m.Session()); err != nil {
		return err
	}

	if advErr != nil {
		switch {
		case errors.Is(advErr, workflow.ErrVerificationFailed):
			cmd.Printf("Verification failed, looped back to %s (%d retr%s remaining)\n",
				phase, m.Session().RetryRemaining(), plural(m.Session().RetryRemaining(), "y", "ies"))
		case errors.Is(advErr, workflow.ErrRetryBudgetExhausted):
			cmd.Printf("Retry budget exhausted, session is %s\n", phase)
		}
		return advErr
	}

	cmd.Printf("Advanced to %s\n", phase)
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
