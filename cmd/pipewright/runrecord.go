package main

import (
	"context"
	"strings"
	"time"

	"pipewright/internal/generator"
	"pipewright/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// newRunRecord converts a generation result into a history row.
func newRunRecord(result *generator.Result) *store.Run {
	return &store.Run{
		ID:          uuid.NewString(),
		Instruction: result.Instruction,
		Model:       result.Model,
		Code:        result.Code,
		Verdict:     verdictOf(result),
		Attempts:    result.Attempts,
		Diagnostics: diagnosticsOf(result),
		CreatedAt:   time.Now().UTC(),
	}
}

// diagnosticsOf flattens the final report into a single text column.
func diagnosticsOf(result *generator.Result) string {
	if result.Report == nil {
		return ""
	}
	if result.Report.LintFindings != "" {
		return result.Report.LintFindings
	}
	if len(result.Report.Violations) == 0 {
		return ""
	}
	lines := make([]string, 0, len(result.Report.Violations))
	for _, v := range result.Report.Violations {
		lines = append(lines, v.String())
	}
	return strings.Join(lines, "\n")
}

// embedInstruction computes the instruction embedding, best-effort.
func embedInstruction(ctx context.Context, tc *toolchain, instruction string) []float32 {
	if tc.embedder == nil {
		return nil
	}
	vec, err := tc.embedder.Embed(ctx, instruction)
	if err != nil {
		logger.Warn("Failed to embed instruction", zap.Error(err))
		return nil
	}
	return vec
}
