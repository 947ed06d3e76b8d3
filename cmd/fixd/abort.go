package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var abortCmd = &cobra.Command{
	Use:   "abort <reason>",
	Short: "Abort the active session",
	Long: `Abort the active session from any non-terminal phase. The session moves
to blocked and accepts no further transitions; versions already captured
are kept.

Examples:
  fixd abort "root cause is in a vendored dependency"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAbort,
}

func init() {
	rootCmd.AddCommand(abortCmd)
}

func runAbort(cmd *cobra.Command, args []string) error {
	m, err := loadMachine()
	if err != nil {
		return err
	}

	if err := m.Abort(strings.Join(args, " ")); err != nil {
		return err
	}
	if err := saveSession(m.Session()); err != nil {
		return err
	}

	cmd.Printf("Session %s aborted\n", m.Session().ID)
	return nil
}
