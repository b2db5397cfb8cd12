package main

import (
	"context"
	"testing"

	"pipewright/internal/config"
	"pipewright/internal/generator"
	"pipewright/internal/store"

	"go.uber.org/zap"
)

// Runs where the model never produced a code block still land in history,
// so failed generations are visible in `pipewright history`.
func TestRecordRun_KeepsCodelessRuns(t *testing.T) {
	logger = zap.NewNop()

	st, err := store.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	tc := &toolchain{cfg: config.DefaultConfig(), store: st}
	result := &generator.Result{
		Instruction: "aggregate users by department",
		Model:       "mock",
		Completion:  "Sorry, I cannot help with that.",
		Attempts:    1,
	}

	recordRun(context.Background(), tc, result)

	runs, err := st.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	if runs[0].Instruction != result.Instruction {
		t.Errorf("Instruction mismatch: %q", runs[0].Instruction)
	}
	if runs[0].Code != "" {
		t.Errorf("Expected empty code, got %q", runs[0].Code)
	}
	if runs[0].Verdict != "" {
		t.Errorf("Expected empty verdict, got %q", runs[0].Verdict)
	}
	if runs[0].Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", runs[0].Attempts)
	}
}

func TestRecordRun_NilStoreIsNoop(t *testing.T) {
	logger = zap.NewNop()

	tc := &toolchain{cfg: config.DefaultConfig()}
	recordRun(context.Background(), tc, &generator.Result{Instruction: "x"})
	recordRun(context.Background(), tc, nil)
}
