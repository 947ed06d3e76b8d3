// Package verify adapts an external build or type-check tool into the
// session workflow. The tool is opaque: it is handed a command string and
// a hard timeout, and its exit status plus parsed diagnostics are the only
// things the workflow sees. Retry policy lives with the caller, not here.
package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrExternalToolFailure indicates the external tool timed out, could not
// be started, or crashed, as opposed to reporting a clean failure.
var ErrExternalToolFailure = errors.New("external tool failure")

// CommandSpec describes the external check to run.
type CommandSpec struct {
	// Command is a shell command line, executed via "sh -c".
	Command string `json:"command"`

	// Dir is the working directory; empty means the current directory.
	Dir string `json:"dir,omitempty"`
}

// Diagnostic is one parsed finding from the tool's output.
type Diagnostic struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// Result is the outcome of one check run.
type Result struct {
	Success     bool          `json:"success"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty"`
	Duration    time.Duration `json:"duration"`
	ExitCode    int           `json:"exit_code"`
	TimedOut    bool          `json:"timed_out"`

	// ToolFailure marks timeouts, start failures, and crashes. These
	// count against the session retry budget differently from ordinary
	// verification failures.
	ToolFailure bool `json:"tool_failure"`
}

// Gateway runs external verification checks.
type Gateway interface {
	RunCheck(ctx context.Context, spec CommandSpec, timeout time.Duration) (*Result, error)
}

// ExecGateway implements Gateway with os/exec.
type ExecGateway struct {
	logger *zap.Logger
}

// NewExecGateway creates a gateway. A nil logger is replaced with a nop.
func NewExecGateway(logger *zap.Logger) *ExecGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecGateway{logger: logger}
}

// diagnosticRe matches compiler-style "file:line: message" and
// "file:line:col: message" output lines.
var diagnosticRe = regexp.MustCompile(`^(\S+?):(\d+)(?::\d+)?:\s*(.+)$`)

// RunCheck runs the command under a hard timeout. Expiry is reported as an
// unsuccessful result with a synthetic tool-failure diagnostic, never as an
// indefinite block, and never as a Go error: the error return is reserved
// for invalid requests.
func (g *ExecGateway) RunCheck(ctx context.Context, spec CommandSpec, timeout time.Duration) (*Result, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, errors.New("command is required")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", timeout)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", spec.Command)
	cmd.Dir = spec.Dir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	runErr := cmd.Run()
	result := &Result{Duration: time.Since(start)}

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		result.TimedOut = true
		result.ToolFailure = true
		result.ExitCode = -1
		result.Diagnostics = []Diagnostic{{
			Message: fmt.Sprintf("%s: check %q exceeded timeout of %s", ErrExternalToolFailure, spec.Command, timeout),
		}}
		g.logger.Warn("verification check timed out",
			zap.String("command", spec.Command),
			zap.Duration("timeout", timeout),
		)

	case runErr == nil:
		result.Success = true

	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			// The tool ran and reported failure.
			result.ExitCode = exitErr.ExitCode()
			result.Diagnostics = parseDiagnostics(output.String())
			if len(result.Diagnostics) == 0 {
				result.Diagnostics = []Diagnostic{{Message: strings.TrimSpace(output.String())}}
			}
		} else {
			// The tool never ran.
			result.ToolFailure = true
			result.ExitCode = -1
			result.Diagnostics = []Diagnostic{{
				Message: fmt.Sprintf("%s: %v", ErrExternalToolFailure, runErr),
			}}
		}
		g.logger.Info("verification check failed",
			zap.String("command", spec.Command),
			zap.Int("exit_code", result.ExitCode),
			zap.Int("diagnostics", len(result.Diagnostics)),
		)
	}

	return result, nil
}

// parseDiagnostics extracts file:line findings from tool output. Lines
// that do not match the pattern are skipped; the raw output stays with
// the caller.
func parseDiagnostics(output string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(output, "\n") {
		m := diagnosticRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		diags = append(diags, Diagnostic{File: m[1], Line: n, Message: m[3]})
	}
	return diags
}

// Ensure ExecGateway implements Gateway.
var _ Gateway = (*ExecGateway)(nil)
