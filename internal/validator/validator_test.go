package validator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"pipewright/internal/config"
)

// fakeRuff writes an executable shell script standing in for the ruff binary
// and returns its path.
func fakeRuff(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ruff")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestPipeline(t *testing.T, cfg config.ValidationConfig) *Pipeline {
	t.Helper()
	if cfg.RuffBinary == "" {
		// Default to a binary that cannot exist so lint is skipped.
		cfg.RuffBinary = filepath.Join(t.TempDir(), "no-such-ruff")
	}
	return NewPipeline(cfg, 0, nil)
}

func TestPipeline_AcceptsCleanJob(t *testing.T) {
	p := newTestPipeline(t, config.ValidationConfig{})

	report, err := p.Run(context.Background(), cleanSparkJob)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Accepted() {
		t.Errorf("Expected accepted, got %s with %v", report.Verdict, report.Violations)
	}
	if !report.LintSkipped {
		t.Error("Expected lint to be skipped when ruff is missing")
	}
	if report.Duration <= 0 {
		t.Error("Expected a positive duration")
	}
}

func TestPipeline_RejectsUnsafeCode(t *testing.T) {
	code := `import os
from pyspark.sql import SparkSession

spark = SparkSession.builder.getOrCreate()
df = spark.read.json(os.environ["INPUT"])
`
	p := newTestPipeline(t, config.ValidationConfig{})

	report, err := p.Run(context.Background(), code)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Verdict != VerdictRejectedUnsafe {
		t.Errorf("Expected rejected_unsafe, got %s", report.Verdict)
	}
	if len(report.Violations) == 0 {
		t.Error("Expected violations in the report")
	}
	if report.Repairable() {
		t.Error("Unsafe code must not be repairable")
	}
}

func TestPipeline_RejectsSyntaxError(t *testing.T) {
	p := newTestPipeline(t, config.ValidationConfig{})

	report, err := p.Run(context.Background(), "spark = SparkSession(\ndf = spark.read.csv('x'\n")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Verdict != VerdictRejectedSyntax {
		t.Errorf("Expected rejected_syntax, got %s", report.Verdict)
	}
}

func TestPipeline_RejectsNonSparkCode(t *testing.T) {
	p := newTestPipeline(t, config.ValidationConfig{})

	report, err := p.Run(context.Background(), "x = 1\nprint(x)\n")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Verdict != VerdictRejectedShape {
		t.Errorf("Expected rejected_shape, got %s", report.Verdict)
	}
	if len(report.Violations) != 2 {
		t.Errorf("Expected both shape violations, got %v", report.Violations)
	}
}

func TestPipeline_UnsafeBeatsShape(t *testing.T) {
	p := newTestPipeline(t, config.ValidationConfig{})

	// Both unsafe and not a Spark job; unsafe wins.
	report, err := p.Run(context.Background(), "import socket\n")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Verdict != VerdictRejectedUnsafe {
		t.Errorf("Expected rejected_unsafe, got %s", report.Verdict)
	}
}

func TestPipeline_DisableLint(t *testing.T) {
	p := newTestPipeline(t, config.ValidationConfig{DisableLint: true})

	report, err := p.Run(context.Background(), cleanSparkJob)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Accepted() || !report.LintSkipped {
		t.Errorf("Expected accepted with lint skipped, got %+v", report)
	}
}

func TestPipeline_LintFindings(t *testing.T) {
	ruff := fakeRuff(t, `echo "generated.py:1:8: F401 'json' imported but unused"
exit 1`)
	p := newTestPipeline(t, config.ValidationConfig{RuffBinary: ruff})

	report, err := p.Run(context.Background(), cleanSparkJob)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Verdict != VerdictNeedsLintFix {
		t.Errorf("Expected needs_lint_fix, got %s", report.Verdict)
	}
	if report.LintFindings == "" {
		t.Error("Expected lint findings in the report")
	}
	if !report.Repairable() {
		t.Error("Lint findings should be repairable")
	}
}

func TestPipeline_LintClean(t *testing.T) {
	ruff := fakeRuff(t, "exit 0")
	p := newTestPipeline(t, config.ValidationConfig{RuffBinary: ruff})

	report, err := p.Run(context.Background(), cleanSparkJob)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Accepted() {
		t.Errorf("Expected accepted, got %s", report.Verdict)
	}
	if report.LintSkipped {
		t.Error("Lint ran, should not be marked skipped")
	}
}

func TestLinter_InternalError(t *testing.T) {
	ruff := fakeRuff(t, `echo "panic" >&2
exit 2`)
	l := NewLinter(ruff, 0, nil)

	if _, _, err := l.Run(context.Background(), "x = 1\n"); err == nil {
		t.Error("Expected error for ruff exit code 2")
	}
}

func TestLinter_ReplacesTempPath(t *testing.T) {
	// Echo the file path back like ruff does; the linter must rewrite it.
	ruff := fakeRuff(t, `echo "$2:1:1: E501 line too long"
exit 1`)
	l := NewLinter(ruff, 0, nil)

	clean, diagnostics, err := l.Run(context.Background(), "x = 1\n")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if clean {
		t.Fatal("Expected findings")
	}
	if diagnostics != "generated.py:1:1: E501 line too long\n" {
		t.Errorf("Temp path not rewritten: %q", diagnostics)
	}
}

func TestCheckSparkShape(t *testing.T) {
	tests := []struct {
		name string
		code string
		want int
	}{
		{"valid job", cleanSparkJob, 0},
		{"missing session", "df = spark.read.csv('x')\n", 1},
		{"missing read", "spark = SparkSession.builder.getOrCreate()\n", 1},
		{"missing both", "print('hello')\n", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckSparkShape(tt.code); len(got) != tt.want {
				t.Errorf("Expected %d violations, got %v", tt.want, got)
			}
		})
	}
}
