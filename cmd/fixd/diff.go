package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/fixd/internal/diffengine"
)

var diffCmd = &cobra.Command{
	Use:   "diff <file-id> <old-version> <new-version>",
	Short: "Show the line diff between two versions of a file",
	Long: `Show the line diff between two stored versions of a file. Output is
deterministic: the same pair of versions always renders the same hunks.

Examples:
  # Compare the first two versions
  fixd diff utils.go 1 2`,
	Args: cobra.ExactArgs(3),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	fileID := args[0]
	oldNum, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid old version %q: %w", args[1], err)
	}
	newNum, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid new version %q: %w", args[2], err)
	}

	ctx := cmd.Context()
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	oldV, err := store.GetVersion(ctx, fileID, oldNum)
	if err != nil {
		return err
	}
	newV, err := store.GetVersion(ctx, fileID, newNum)
	if err != nil {
		return err
	}

	rec := diffengine.NewEngine().Compute(fileID, oldNum, newNum, oldV.Content, newV.Content)
	if len(rec.Hunks) == 0 {
		cmd.Printf("%s: v%d and v%d are identical\n", fileID, oldNum, newNum)
		return nil
	}

	cmd.Printf("%s: v%d -> v%d, %d hunk(s)\n", fileID, oldNum, newNum, len(rec.Hunks))
	for _, h := range rec.Hunks {
		cmd.Printf("@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
		for _, line := range splitLines(h.Before) {
			cmd.Printf("-%s\n", line)
		}
		for _, line := range splitLines(h.After) {
			cmd.Printf("+%s\n", line)
		}
	}
	return nil
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
