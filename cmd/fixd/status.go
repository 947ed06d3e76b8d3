package main

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active session's state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	m, err := loadMachine()
	if err != nil {
		return err
	}
	s := m.Session()

	cmd.Printf("Session:   %s\n", s.ID)
	cmd.Printf("Workspace: %s\n", s.WorkspaceRoot)
	if s.Problem != "" {
		cmd.Printf("Problem:   %s\n", s.Problem)
	}
	cmd.Printf("Phase:     %s\n", s.Phase)
	if s.AbortReason != "" {
		cmd.Printf("Aborted:   %s\n", s.AbortReason)
	}
	cmd.Printf("Notes:     %d\n", len(s.Notes))
	cmd.Printf("Changes:   %d", len(s.ChangeSets))
	if open := s.OpenChangeSet(); open != nil {
		cmd.Printf(" (open: %s)", open.Subject)
	}
	cmd.Println()
	cmd.Printf("Retries:   %d of %d used\n", s.LoopBacks, s.RetryBudget)

	if latest := s.LatestVerification(); latest != nil {
		outcome := "passed"
		switch {
		case latest.ToolFailure:
			outcome = "tool failure"
		case !latest.Success:
			outcome = "failed"
		}
		cmd.Printf("Verify:    %s (%s)\n", outcome, latest.RanAt.UTC().Format("2006-01-02 15:04:05"))
	}

	pending := m.Checklist().Pending()
	if len(pending) == 0 {
		cmd.Println("Checklist: complete")
	} else {
		cmd.Printf("Checklist: %d pending\n", len(pending))
		for _, item := range pending {
			cmd.Printf("  - %s\n", item.ID)
		}
	}
	return nil
}
