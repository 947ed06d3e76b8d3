package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/fixd/internal/verify"
	"github.com/fyrsmithlabs/fixd/internal/workflow"
)

var (
	verifyCommand string
	verifyTimeout time.Duration
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run the external verification check and record its outcome",
	Long: `Run the configured verification command and record the outcome on the
session. The command runs under a hard timeout; a timed-out or crashed run
is recorded as an external tool failure rather than a verification result.

Exit codes:
  0  check passed
  2  check ran and failed
  3  external tool failure (timeout, crash, or failure to start)

Examples:
  fixd verify --command "go test ./..."
  fixd verify --timeout 30s`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyCommand, "command", "", "check command (default: verify.command from config)")
	verifyCmd.Flags().DurationVar(&verifyTimeout, "timeout", 0, "hard deadline for the run (default: verify.timeout from config)")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	command := verifyCommand
	if command == "" {
		command = cfg.Verify.Command
	}
	if command == "" {
		return fmt.Errorf("no verification command: pass --command or set verify.command in config")
	}
	timeout := verifyTimeout
	if timeout <= 0 {
		timeout = cfg.Verify.Timeout
	}

	m, err := loadMachine()
	if err != nil {
		return err
	}

	gateway := verify.NewExecGateway(logger)
	result, err := gateway.RunCheck(cmd.Context(), verify.CommandSpec{
		Command: command,
		Dir:     cfg.Workspace.Root,
	}, timeout)
	if err != nil {
		return err
	}

	outcome := workflow.VerificationOutcome{
		Success:     result.Success,
		ToolFailure: result.ToolFailure,
		TimedOut:    result.TimedOut,
		Command:     command,
		Diagnostics: result.Diagnostics,
		RanAt:       time.Now().UTC(),
	}
	// Exhausting the tool-failure budget blocks the session and reports
	// an error; the new state must be persisted either way.
	recErr := m.RecordVerification(outcome)
	if err := saveSession(m.Session()); err != nil {
		return err
	}
	if recErr != nil {
		if errors.Is(recErr, workflow.ErrRetryBudgetExhausted) {
			cmd.PrintErrf("Retry budget exhausted, session is %s\n", m.Session().Phase)
			return &exitError{code: 3, err: recErr}
		}
		return recErr
	}

	switch {
	case result.ToolFailure:
		cmd.PrintErrf("External tool failure after %s\n", result.Duration.Round(time.Millisecond))
		for _, d := range result.Diagnostics {
			cmd.PrintErrf("  %s\n", d.Message)
		}
		return &exitError{code: 3, err: fmt.Errorf("external tool failure")}
	case !result.Success:
		cmd.PrintErrf("Check failed (exit %d) in %s\n", result.ExitCode, result.Duration.Round(time.Millisecond))
		for _, d := range result.Diagnostics {
			if d.File != "" {
				cmd.PrintErrf("  %s:%d: %s\n", d.File, d.Line, d.Message)
			} else {
				cmd.PrintErrf("  %s\n", d.Message)
			}
		}
		return &exitError{code: 2, err: fmt.Errorf("verification check failed")}
	}

	cmd.Printf("Check passed in %s\n", result.Duration.Round(time.Millisecond))
	return nil
}
