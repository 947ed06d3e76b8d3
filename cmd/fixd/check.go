package main

import (
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check <item-id>",
	Short: "Mark a closing checklist item as done",
	Long: `Mark a closing checklist item as done. Marking is idempotent. All items
must be done before the session can leave the verification phase.

Examples:
  fixd check root-cause-documented`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

var checklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "Show the closing checklist",
	RunE:  runChecklist,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(checklistCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	m, err := loadMachine()
	if err != nil {
		return err
	}

	if err := m.MarkChecklist(args[0]); err != nil {
		return err
	}
	if err := saveSession(m.Session()); err != nil {
		return err
	}

	cmd.Printf("Marked %s done\n", args[0])
	return nil
}

func runChecklist(cmd *cobra.Command, args []string) error {
	m, err := loadMachine()
	if err != nil {
		return err
	}

	for _, item := range m.Checklist().Items() {
		mark := " "
		if item.Done {
			mark = "x"
		}
		cmd.Printf("[%s] %s  %s\n", mark, item.ID, item.Description)
	}
	return nil
}
