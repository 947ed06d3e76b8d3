package main

import (
	"github.com/spf13/cobra"
)

var versionsCmd = &cobra.Command{
	Use:   "versions [file-id]",
	Short: "List stored versions",
	Long: `List stored versions. With a file id, lists that file's versions
oldest first; without one, lists every tracked file with its version
count.

Examples:
  fixd versions
  fixd versions utils.go`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVersions,
}

func init() {
	rootCmd.AddCommand(versionsCmd)
}

func runVersions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 0 {
		files, err := store.Files(ctx)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			cmd.Println("No tracked files")
			return nil
		}
		for _, f := range files {
			cmd.Printf("%s  %d version(s)\n", f.FileID, f.Versions)
		}
		return nil
	}

	versions, err := store.ListVersions(ctx, args[0])
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		cmd.Printf("No versions of %s\n", args[0])
		return nil
	}
	for _, v := range versions {
		cmd.Printf("v%-3d %s", v.Number, v.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		if v.Summary != "" {
			cmd.Printf("  %s", v.Summary)
		}
		cmd.Println()
	}
	return nil
}
