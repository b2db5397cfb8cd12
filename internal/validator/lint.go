package validator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrLintUnavailable is returned when the ruff binary is not on PATH.
// The pipeline treats this as a skip, not a failure.
var ErrLintUnavailable = errors.New("ruff binary not found on PATH")

// Linter runs ruff over generated code via a temporary file.
type Linter struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewLinter creates a ruff linter.
func NewLinter(binary string, timeout time.Duration, logger *zap.Logger) *Linter {
	if binary == "" {
		binary = "ruff"
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Linter{binary: binary, timeout: timeout, logger: logger}
}

// Run lints the code. Returns clean=true with no diagnostics when ruff finds
// nothing, clean=false with diagnostics text when it reports findings.
//
// Ruff exit codes: 0 = no issues, 1 = lint issues found, >1 = internal error.
func (l *Linter) Run(ctx context.Context, code string) (clean bool, diagnostics string, err error) {
	if _, lookErr := exec.LookPath(l.binary); lookErr != nil {
		return false, "", ErrLintUnavailable
	}

	tmp, err := os.CreateTemp("", "pipewright-*.py")
	if err != nil {
		return false, "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		return false, "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, "", fmt.Errorf("failed to close temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, l.binary, "check", tmpPath, "--quiet")
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr == nil {
		return true, "", nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) && exitErr.ExitCode() == 1 {
		// Lint findings. Strip the temp path so diagnostics are stable
		// enough to embed in a repair prompt.
		out := strings.ReplaceAll(stdout.String(), tmpPath, "generated.py")
		l.logger.Debug("Ruff reported findings", zap.Int("bytes", len(out)))
		return false, out, nil
	}

	if ctx.Err() != nil {
		return false, "", fmt.Errorf("ruff timed out: %w", ctx.Err())
	}

	return false, "", fmt.Errorf("ruff failed: %w: %s", runErr, stderr.String())
}
