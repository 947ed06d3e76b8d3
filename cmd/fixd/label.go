package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/fixd/internal/workflow"
)

var labelCmd = &cobra.Command{
	Use:   "label <file-id> <start-line> <end-line> <aspect>",
	Short: "Label a line range of a file with an aspect name",
	Long: `Label a line range with the aspect it concerns, e.g. "error handling"
or "data source". Labels live on the open change set and drive the aspect
column of the report's before/after tables. Line numbers are 1-based and
refer to the file's newest version.

Examples:
  fixd label utils.go 1 3 "arithmetic"`,
	Args: cobra.ExactArgs(4),
	RunE: runLabel,
}

func init() {
	rootCmd.AddCommand(labelCmd)
}

func runLabel(cmd *cobra.Command, args []string) error {
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid start line %q: %w", args[1], err)
	}
	end, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid end line %q: %w", args[2], err)
	}
	if start < 1 || end < start {
		return fmt.Errorf("invalid line range %d-%d", start, end)
	}
	name := strings.TrimSpace(args[3])
	if name == "" {
		return fmt.Errorf("aspect name must not be empty")
	}

	m, err := loadMachine()
	if err != nil {
		return err
	}

	if err := m.AddAspect(workflow.AspectLabel{
		FileID:    args[0],
		StartLine: start,
		EndLine:   end,
		Name:      name,
	}); err != nil {
		return err
	}
	if err := saveSession(m.Session()); err != nil {
		return err
	}

	cmd.Printf("Labeled %s:%d-%d as %q\n", args[0], start, end, name)
	return nil
}
