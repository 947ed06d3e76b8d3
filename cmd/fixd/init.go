package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/workflow"
)

var initCmd = &cobra.Command{
	Use:   "init [problem description]",
	Short: "Start a new debugging session in this workspace",
	Long: `Start a new debugging session. The session begins in the investigation
phase and is stored under .fixd/ in the workspace root.

Examples:
  # Start a session with a problem description
  fixd init "sum() returns wrong result for three operands"

  # Start without a description (can be inspected later with fixd status)
  fixd init`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := fixdDir()

	// Refuse to clobber an active session. Terminal sessions are archived
	// so their history survives.
	if existing, err := workflow.Load(dir); err == nil {
		if !existing.Phase.Terminal() {
			return fmt.Errorf("session %s is already active (phase %s)", existing.ID, existing.Phase)
		}
		archived, err := workflow.Archive(dir, existing)
		if err != nil {
			return err
		}
		logger.Info("archived finished session",
			zap.String("session_id", existing.ID),
			zap.String("path", archived),
		)
	} else if !errors.Is(err, workflow.ErrNoSession) {
		return err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	problem := strings.Join(args, " ")
	s := workflow.NewSession(cfg.Workspace.Root, problem, nil, cfg.Workspace.RetryBudget)
	if err := saveSession(s); err != nil {
		return err
	}

	cmd.Printf("Initialized session %s in %s\n", s.ID, dir)
	cmd.Printf("Phase: %s\n", s.Phase)
	return nil
}
