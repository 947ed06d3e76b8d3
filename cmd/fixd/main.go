// Package main implements the fixd CLI for tracking iterative debugging
// sessions: versioned file snapshots, a gated phase workflow, external
// verification, and deterministic session reports.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fixd/internal/config"
	"github.com/fyrsmithlabs/fixd/internal/logging"
	"github.com/fyrsmithlabs/fixd/internal/snapshot"
	"github.com/fyrsmithlabs/fixd/internal/workflow"
)

var (
	// cfgFile is the config file path, overriding .fixd/config.yaml
	cfgFile string
	// version information
	version = "dev"

	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	os.Exit(run())
}

func run() int {
	defer func() {
		if logger != nil {
			_ = logging.Sync(logger)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var exit *exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		return 1
	}
	return 0
}

var rootCmd = &cobra.Command{
	Use:   "fixd",
	Short: "Track debugging sessions with versioned snapshots and reports",
	Long: `fixd tracks an iterative debugging session: it versions the files you
touch, walks the session through gated phases, runs external verification
checks, and composes a deterministic Markdown report at the end.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .fixd/config.yaml)")
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
}

// exitError carries a specific process exit code through cobra's error
// return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// fixdDir is the session state directory under the workspace root.
func fixdDir() string {
	return filepath.Join(cfg.Workspace.Root, ".fixd")
}

// openStore opens the snapshot store for the current workspace.
func openStore() (*snapshot.FileStore, error) {
	return snapshot.NewFileStore(filepath.Join(fixdDir(), "snapshots"), logger)
}

// loadMachine loads the active session and wraps it in a workflow machine.
func loadMachine() (*workflow.Machine, error) {
	s, err := workflow.Load(fixdDir())
	if err != nil {
		if errors.Is(err, workflow.ErrNoSession) {
			return nil, fmt.Errorf("%w in %s, run `fixd init` first", workflow.ErrNoSession, cfg.Workspace.Root)
		}
		return nil, err
	}
	return workflow.NewMachine(s, logger)
}

// saveSession persists the session record.
func saveSession(s *workflow.Session) error {
	return s.Save(fixdDir())
}
