package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/snapshot"
	"github.com/fyrsmithlabs/fixd/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <file-id>...",
	Short: "Snapshot tracked files automatically as they change",
	Long: `Watch workspace files and take a snapshot whenever one settles after a
write. Each file's expected predecessor is its current latest version, so
a concurrent writer still loses cleanly with a conflict instead of
corrupting the history.

Runs until interrupted.

Examples:
  fixd watch utils.go main.go
  fixd watch --debounce 500ms utils.go`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "settle window after the last write")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	w, err := watch.NewWatcher(cfg.Workspace.Root, args, watchDebounce, logger)
	if err != nil {
		return err
	}
	defer w.Stop()

	ctx := cmd.Context()
	if err := w.Start(ctx); err != nil {
		return err
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	cmd.Printf("Watching %d file(s), press Ctrl-C to stop\n", len(args))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sig:
			cmd.Println("Stopping")
			return nil
		case e := <-w.Events():
			if err := snapshotOnChange(cmd, store, e.FileID); err != nil {
				logger.Warn("auto-snapshot failed",
					zap.String("file_id", e.FileID),
					zap.Error(err),
				)
			}
		}
	}
}

func snapshotOnChange(cmd *cobra.Command, store snapshot.Store, fileID string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(filepath.Join(cfg.Workspace.Root, fileID))
	if err != nil {
		return err
	}

	versions, err := store.ListVersions(ctx, fileID)
	if err != nil {
		return err
	}

	// An unchanged file settles too (e.g. a save without edits); skip the
	// redundant version.
	if n := len(versions); n > 0 && versions[n-1].Content == string(data) {
		return nil
	}

	v, err := store.CreateVersion(ctx, &snapshot.CreateRequest{
		FileID:              fileID,
		Content:             string(data),
		ExpectedPredecessor: len(versions),
		Summary:             "auto-snapshot on change",
	})
	if err != nil {
		return err
	}

	cmd.Printf("Created %s v%d\n", v.FileID, v.Number)
	return nil
}
