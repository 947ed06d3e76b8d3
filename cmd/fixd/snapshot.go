package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/fixd/internal/snapshot"
	"github.com/fyrsmithlabs/fixd/internal/workflow"
)

var (
	snapshotFrom    string
	snapshotSummary string
	snapshotExpect  int
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <file-id>",
	Short: "Capture a new version of a file",
	Long: `Capture a new version of a file. Version numbers are assigned
sequentially per file, starting at 1. The expected predecessor guards
against concurrent writers: if another snapshot landed first, the command
fails with a conflict and no version is created.

By default content is read from <workspace>/<file-id> and the predecessor
is the file's current latest version.

Examples:
  # Snapshot the working copy
  fixd snapshot utils.go --summary "include third operand"

  # Snapshot from stdin
  cat fixed.go | fixd snapshot utils.go --from -

  # Pin the expected predecessor explicitly
  fixd snapshot utils.go --expect 2`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotFrom, "from", "", "content source: a file path, or - for stdin (default: the workspace file)")
	snapshotCmd.Flags().StringVar(&snapshotSummary, "summary", "", "one-line summary of what changed")
	snapshotCmd.Flags().IntVar(&snapshotExpect, "expect", -1, "expected predecessor version (default: current latest)")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	fileID := args[0]
	ctx := cmd.Context()

	content, err := readSnapshotContent(fileID)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	expect := snapshotExpect
	if expect < 0 {
		versions, err := store.ListVersions(ctx, fileID)
		if err != nil {
			return err
		}
		expect = len(versions)
	}

	v, err := store.CreateVersion(ctx, &snapshot.CreateRequest{
		FileID:              fileID,
		Content:             content,
		ExpectedPredecessor: expect,
		Summary:             snapshotSummary,
	})
	if err != nil {
		return err
	}

	// A snapshot taken during implementation belongs to the open change
	// set. Without a session the snapshot stands alone; any other load
	// error must surface rather than silently skip the attachment.
	m, err := loadMachine()
	switch {
	case err == nil:
		if m.Session().OpenChangeSet() != nil {
			if err := m.AttachVersion(workflow.VersionRef{
				FileID:  v.FileID,
				Number:  v.Number,
				Summary: v.Summary,
			}); err != nil {
				return err
			}
			if err := saveSession(m.Session()); err != nil {
				return err
			}
		}
	case !errors.Is(err, workflow.ErrNoSession):
		return err
	}

	cmd.Printf("Created %s v%d\n", v.FileID, v.Number)
	return nil
}

func readSnapshotContent(fileID string) (string, error) {
	switch snapshotFrom {
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(data), nil
	case "":
		path := filepath.Join(cfg.Workspace.Root, fileID)
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(snapshotFrom)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", snapshotFrom, err)
		}
		return string(data), nil
	}
}
