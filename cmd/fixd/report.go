package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/fixd/internal/commitmsg"
	"github.com/fyrsmithlabs/fixd/internal/report"
	"github.com/fyrsmithlabs/fixd/internal/workflow"
)

var reportOutput string

var composeReportCmd = &cobra.Command{
	Use:   "compose-report",
	Short: "Compose the session report",
	Long: `Compose the Markdown session report: problem summary, investigation
steps, per-change before/after aspect tables, flow diagram, checklist
status, and the generated commit message. Output is deterministic for an
unchanged session.

The report can only be composed once the session has reached the
documentation phase. Composing marks the report as drafted, which gates
the advance into verification.

Examples:
  # Print to stdout
  fixd compose-report

  # Write to a file
  fixd compose-report -o REPORT.md`,
	RunE: runComposeReport,
}

func init() {
	composeReportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "write the report to a file instead of stdout")
	rootCmd.AddCommand(composeReportCmd)
}

func runComposeReport(cmd *cobra.Command, args []string) error {
	m, err := loadMachine()
	if err != nil {
		return err
	}
	s := m.Session()

	switch s.Phase {
	case workflow.PhaseInvestigation, workflow.PhaseImplementation:
		return fmt.Errorf("cannot compose a report in phase %s, advance to %s first",
			s.Phase, workflow.PhaseDocumentation)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	gen, err := commitmsg.NewGenerator(commitmsg.Strictness(cfg.Commit.SubjectStrictness))
	if err != nil {
		return err
	}
	composer, err := report.NewComposer(store, gen, logger)
	if err != nil {
		return err
	}

	doc, err := composer.Compose(cmd.Context(), s)
	if err != nil {
		return err
	}

	m.MarkReportDrafted()
	if err := saveSession(s); err != nil {
		return err
	}

	if reportOutput == "" {
		cmd.Print(doc)
		return nil
	}
	if err := os.WriteFile(reportOutput, []byte(doc), 0o600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	cmd.Printf("Wrote report to %s\n", reportOutput)
	return nil
}
