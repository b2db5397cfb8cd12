// Package validator runs the validation pipeline over generated PySpark
// code: fenced-block extraction, Tree-sitter safety and syntax scans, Spark
// shape checks, and ruff linting.
package validator

import (
	"context"
	"errors"
	"sync"
	"time"

	"pipewright/internal/config"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Verdict is the outcome of a validation run.
type Verdict string

const (
	// VerdictAccepted means the code passed every check.
	VerdictAccepted Verdict = "accepted"

	// VerdictRejectedUnsafe means forbidden constructs were found.
	// Unsafe code is never sent back to the model for repair.
	VerdictRejectedUnsafe Verdict = "rejected_unsafe"

	// VerdictRejectedSyntax means the code does not parse.
	VerdictRejectedSyntax Verdict = "rejected_syntax"

	// VerdictRejectedShape means the code is not a Spark job.
	VerdictRejectedShape Verdict = "rejected_shape"

	// VerdictNeedsLintFix means only lint findings remain; the code is a
	// candidate for an LLM repair round.
	VerdictNeedsLintFix Verdict = "needs_lint_fix"
)

// Report is the result of running the pipeline over one piece of code.
type Report struct {
	Verdict      Verdict       `json:"verdict"`
	Violations   []Violation   `json:"violations,omitempty"`
	LintFindings string        `json:"lint_findings,omitempty"`
	LintSkipped  bool          `json:"lint_skipped,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Accepted reports whether the code passed.
func (r *Report) Accepted() bool {
	return r.Verdict == VerdictAccepted
}

// Repairable reports whether a repair round could help. Only lint findings
// qualify; safety, syntax and shape failures are terminal for the attempt.
func (r *Report) Repairable() bool {
	return r.Verdict == VerdictNeedsLintFix
}

// Pipeline runs all validation checks.
type Pipeline struct {
	safety      *SafetyChecker
	linter      *Linter
	disableLint bool
	logger      *zap.Logger
}

// NewPipeline builds the validation pipeline from config.
func NewPipeline(cfg config.ValidationConfig, ruffTimeout time.Duration, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		safety:      NewSafetyChecker(cfg.ExtraForbiddenModules),
		linter:      NewLinter(cfg.RuffBinary, ruffTimeout, logger),
		disableLint: cfg.DisableLint,
		logger:      logger,
	}
}

// Run validates the extracted Python code. The static checks (safety,
// syntax, Spark shape) run concurrently; lint only runs once they pass.
func (p *Pipeline) Run(ctx context.Context, code string) (*Report, error) {
	start := time.Now()
	report := &Report{}

	var (
		mu         sync.Mutex
		safetyErr  *UnsafeCodeError
		syntaxErr  *UnsafeCodeError
		shapeViols []Violation
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := p.safety.Check(gctx, code)
		if err == nil {
			return nil
		}
		var unsafeErr *UnsafeCodeError
		if errors.As(err, &unsafeErr) {
			mu.Lock()
			safetyErr = unsafeErr
			mu.Unlock()
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := CheckSyntax(gctx, code)
		if err == nil {
			return nil
		}
		var unsafeErr *UnsafeCodeError
		if errors.As(err, &unsafeErr) {
			mu.Lock()
			syntaxErr = unsafeErr
			mu.Unlock()
			return nil
		}
		return err
	})

	g.Go(func() error {
		viols := CheckSparkShape(code)
		if len(viols) > 0 {
			mu.Lock()
			shapeViols = viols
			mu.Unlock()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Verdict priority: unsafe beats syntax beats shape.
	switch {
	case safetyErr != nil:
		report.Verdict = VerdictRejectedUnsafe
		report.Violations = safetyErr.Violations
	case syntaxErr != nil:
		report.Verdict = VerdictRejectedSyntax
		report.Violations = syntaxErr.Violations
	case len(shapeViols) > 0:
		report.Verdict = VerdictRejectedShape
		report.Violations = shapeViols
	}
	if report.Verdict != "" {
		report.Duration = time.Since(start)
		p.logger.Info("Validation rejected code",
			zap.String("verdict", string(report.Verdict)),
			zap.Int("violations", len(report.Violations)))
		return report, nil
	}

	if p.disableLint {
		report.Verdict = VerdictAccepted
		report.LintSkipped = true
		report.Duration = time.Since(start)
		return report, nil
	}

	clean, diagnostics, err := p.linter.Run(ctx, code)
	if err != nil {
		if errors.Is(err, ErrLintUnavailable) {
			p.logger.Warn("Ruff not found on PATH, skipping lint")
			report.Verdict = VerdictAccepted
			report.LintSkipped = true
			report.Duration = time.Since(start)
			return report, nil
		}
		return nil, err
	}

	if clean {
		report.Verdict = VerdictAccepted
	} else {
		report.Verdict = VerdictNeedsLintFix
		report.LintFindings = diagnostics
	}
	report.Duration = time.Since(start)

	p.logger.Info("Validation completed",
		zap.String("verdict", string(report.Verdict)),
		zap.Duration("duration", report.Duration))
	return report, nil
}
