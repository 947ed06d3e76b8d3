package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/fixd/internal/workflow"
)

var (
	changesetKind     string
	changesetSubject  string
	changesetScope    string
	changesetBreaking bool
	changesetFallback string
)

var changesetCmd = &cobra.Command{
	Use:   "changeset",
	Short: "Manage change sets on the active session",
}

var changesetOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a change set to group upcoming snapshots",
	Long: `Open a change set. Change sets can only be opened while the session is
in the implementation phase, and only one may be open at a time. Snapshots
taken while a change set is open are attached to it.

The subject must follow the commit subject policy: capitalized, at most 72
characters, no trailing period, imperative mood.

Examples:
  fixd changeset open --kind fix --subject "Correct sum calculation in utils" --scope utils`,
	RunE: runChangesetOpen,
}

var changesetCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the open change set",
	Long: `Close the open change set. An optional fallback note records the plan
if this change turns out to be wrong; it is rendered as a branch in the
report's flow diagram.

Examples:
  fixd changeset close
  fixd changeset close --fallback "revert to two-operand sum if callers break"`,
	RunE: runChangesetClose,
}

func init() {
	changesetOpenCmd.Flags().StringVar(&changesetKind, "kind", "fix", "change kind (feature, fix, refactor, perf, style, docs, test, chore)")
	changesetOpenCmd.Flags().StringVar(&changesetSubject, "subject", "", "commit-style subject line (required)")
	changesetOpenCmd.Flags().StringVar(&changesetScope, "scope", "", "optional scope for the commit subject")
	changesetOpenCmd.Flags().BoolVar(&changesetBreaking, "breaking", false, "mark the change as breaking")
	_ = changesetOpenCmd.MarkFlagRequired("subject")

	changesetCloseCmd.Flags().StringVar(&changesetFallback, "fallback", "", "fallback plan if the change does not hold")

	changesetCmd.AddCommand(changesetOpenCmd)
	changesetCmd.AddCommand(changesetCloseCmd)
	rootCmd.AddCommand(changesetCmd)
}

func runChangesetOpen(cmd *cobra.Command, args []string) error {
	m, err := loadMachine()
	if err != nil {
		return err
	}

	cs, err := m.OpenChangeSet(workflow.ChangeKind(changesetKind), changesetSubject, changesetScope, changesetBreaking)
	if err != nil {
		return err
	}
	if err := saveSession(m.Session()); err != nil {
		return err
	}

	cmd.Printf("Opened change set %s (%s)\n", cs.ID, cs.Kind)
	return nil
}

func runChangesetClose(cmd *cobra.Command, args []string) error {
	m, err := loadMachine()
	if err != nil {
		return err
	}

	if err := m.CloseChangeSet(changesetFallback); err != nil {
		return err
	}
	if err := saveSession(m.Session()); err != nil {
		return err
	}

	cmd.Println("Closed change set")
	return nil
}
