package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var noteCmd = &cobra.Command{
	Use:   "note <text>",
	Short: "Record an investigation note on the active session",
	Long: `Record an investigation note. At least one note is required before the
session can advance out of the investigation phase.

Examples:
  fixd note "reproduced with sum(1, 2, 3); expected 6, got 3"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNote,
}

func init() {
	rootCmd.AddCommand(noteCmd)
}

func runNote(cmd *cobra.Command, args []string) error {
	m, err := loadMachine()
	if err != nil {
		return err
	}

	if err := m.RecordNote(strings.Join(args, " ")); err != nil {
		return err
	}
	if err := saveSession(m.Session()); err != nil {
		return err
	}

	cmd.Printf("Recorded note %d\n", len(m.Session().Notes))
	return nil
}
