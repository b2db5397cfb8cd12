package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"pipewright/internal/validator"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun(id string) *Run {
	return &Run{
		ID:          id,
		Instruction: "count users by department",
		Model:       "qwen2.5-coder",
		Code:        "df = spark.read.csv('users.csv')",
		Verdict:     validator.VerdictAccepted,
		Attempts:    1,
	}
}

func TestStore_SaveAndGetRun(t *testing.T) {
	s := newTestStore(t)

	run := testRun("run-1")
	run.Diagnostics = "generated.py:1:1: F401"
	if err := s.SaveRun(run, nil); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Instruction != run.Instruction {
		t.Errorf("Instruction mismatch: %q", got.Instruction)
	}
	if got.Verdict != validator.VerdictAccepted {
		t.Errorf("Verdict mismatch: %s", got.Verdict)
	}
	if got.Diagnostics != run.Diagnostics {
		t.Errorf("Diagnostics mismatch: %q", got.Diagnostics)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be populated")
	}
}

func TestStore_SaveRunRequiresID(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveRun(&Run{Instruction: "x"}, nil); err == nil {
		t.Error("Expected error for run without ID")
	}
}

func TestStore_GetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetRun("missing"); err == nil {
		t.Error("Expected error for unknown run")
	}
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		run := testRun(fmt.Sprintf("run-%d", i))
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.SaveRun(run, nil); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	runs, err := s.ListRuns(3)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-4" || runs[2].ID != "run-2" {
		t.Errorf("Runs not newest first: %s, %s, %s", runs[0].ID, runs[1].ID, runs[2].ID)
	}
}

func TestStore_SearchSimilar(t *testing.T) {
	s := newTestStore(t)

	save := func(id string, verdict validator.Verdict, embed []float32) {
		run := testRun(id)
		run.Verdict = verdict
		if err := s.SaveRun(run, embed); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	save("exact", validator.VerdictAccepted, []float32{1, 0, 0})
	save("close", validator.VerdictAccepted, []float32{0.9, 0.1, 0})
	save("far", validator.VerdictAccepted, []float32{0, 0, 1})
	save("rejected", validator.VerdictRejectedUnsafe, []float32{1, 0, 0})
	save("no-embedding", validator.VerdictAccepted, nil)

	results, err := s.SearchSimilar([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("SearchSimilar failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Run.ID != "exact" {
		t.Errorf("Expected exact match first, got %s", results[0].Run.ID)
	}
	if results[1].Run.ID != "close" {
		t.Errorf("Expected close match second, got %s", results[1].Run.ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("Scores not descending: %v", results)
	}
}

func TestStore_SearchSimilarEmptyQuery(t *testing.T) {
	s := newTestStore(t)

	results, err := s.SearchSimilar(nil, 3)
	if err != nil {
		t.Fatalf("SearchSimilar failed: %v", err)
	}
	if results != nil {
		t.Errorf("Expected nil results, got %v", results)
	}
}

func TestStore_EmbeddingRoundTrip(t *testing.T) {
	original := []float32{0.25, -1.5, 3.125, 0}

	decoded, err := decodeEmbedding(encodeEmbedding(original))
	if err != nil {
		t.Fatalf("decodeEmbedding failed: %v", err)
	}
	if len(decoded) != len(original) {
		t.Fatalf("Length mismatch: %d", len(decoded))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("Element %d mismatch: %v != %v", i, decoded[i], original[i])
		}
	}

	if _, err := decodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for truncated blob")
	}
}

func TestStore_MigratesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	// First open creates the schema on disk.
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	// Simulate a database from before the attempts/diagnostics/model columns.
	stmts := []string{
		"DROP TABLE runs",
		`CREATE TABLE runs (
			id          TEXT PRIMARY KEY,
			instruction TEXT NOT NULL,
			code        TEXT NOT NULL DEFAULT '',
			verdict     TEXT NOT NULL DEFAULT '',
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		"INSERT INTO runs (id, instruction, code, verdict) VALUES ('old', 'legacy run', 'x = 1', 'accepted')",
	}
	for _, stmt := range stmts {
		if _, err := s.DB().Exec(stmt); err != nil {
			t.Fatalf("Failed to build legacy schema: %v", err)
		}
	}
	s.Close()

	// Reopen; migrations must add the missing columns.
	s2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetRun("old")
	if err != nil {
		t.Fatalf("GetRun after migration failed: %v", err)
	}
	if got.Attempts != 1 {
		t.Errorf("Expected migrated attempts default 1, got %d", got.Attempts)
	}
	if got.Model != "" {
		t.Errorf("Expected empty migrated model, got %q", got.Model)
	}
}
