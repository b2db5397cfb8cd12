// Package store persists generation runs and instruction embeddings in a
// local SQLite database.
package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"pipewright/internal/embedding"
	"pipewright/internal/validator"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Run is one generation run: the instruction, the final code and the
// validation outcome.
type Run struct {
	ID          string            `json:"id"`
	Instruction string            `json:"instruction"`
	Model       string            `json:"model"`
	Code        string            `json:"code"`
	Verdict     validator.Verdict `json:"verdict"`
	Attempts    int               `json:"attempts"`
	Diagnostics string            `json:"diagnostics,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// SimilarRun is a past run with its similarity to a query embedding.
type SimilarRun struct {
	Run   Run
	Score float64
}

// Store wraps the SQLite run history.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	logger *zap.Logger
}

// Open initializes the SQLite database at the given path, creating the
// schema and applying migrations as needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("Failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("Failed to set sqlite journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logger.Debug("Failed to set sqlite synchronous=NORMAL", zap.Error(err))
	}

	s := &Store{db: db, dbPath: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		instruction TEXT NOT NULL,
		model       TEXT NOT NULL DEFAULT '',
		code        TEXT NOT NULL DEFAULT '',
		verdict     TEXT NOT NULL DEFAULT '',
		attempts    INTEGER NOT NULL DEFAULT 1,
		diagnostics TEXT NOT NULL DEFAULT '',
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS instruction_embeddings (
		run_id    TEXT PRIMARY KEY REFERENCES runs(id) ON DELETE CASCADE,
		embedding BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_verdict ON runs(verdict);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SaveRun persists a run and, when present, its instruction embedding in a
// single transaction.
func (s *Store) SaveRun(run *Run, embed []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, instruction, model, code, verdict, attempts, diagnostics, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Instruction, run.Model, run.Code, string(run.Verdict),
		run.Attempts, run.Diagnostics, createdAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(embed) > 0 {
		_, err = tx.Exec(`
			INSERT INTO instruction_embeddings (run_id, embedding)
			VALUES (?, ?)`,
			run.ID, encodeEmbedding(embed))
		if err != nil {
			return fmt.Errorf("failed to insert embedding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	s.logger.Debug("Saved run",
		zap.String("id", run.ID),
		zap.String("verdict", string(run.Verdict)),
		zap.Bool("embedded", len(embed) > 0))
	return nil
}

// GetRun loads a single run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, instruction, model, code, verdict, attempts, diagnostics, created_at
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, instruction, model, code, verdict, attempts, diagnostics, created_at
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// SearchSimilar returns up to k accepted runs ranked by cosine similarity
// of their instruction embeddings to the query embedding. The scan is
// brute-force; history stays small enough that an ANN index buys nothing.
func (s *Store) SearchSimilar(query []float32, k int) ([]SimilarRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) == 0 || k <= 0 {
		return nil, nil
	}

	rows, err := s.db.Query(`
		SELECT r.id, r.instruction, r.model, r.code, r.verdict, r.attempts, r.diagnostics, r.created_at, e.embedding
		FROM runs r
		JOIN instruction_embeddings e ON e.run_id = r.id
		WHERE r.verdict = ?`, string(validator.VerdictAccepted))
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var results []SimilarRun
	for rows.Next() {
		var run Run
		var verdict string
		var blob []byte
		if err := rows.Scan(&run.ID, &run.Instruction, &run.Model, &run.Code,
			&verdict, &run.Attempts, &run.Diagnostics, &run.CreatedAt, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Verdict = validator.Verdict(verdict)

		stored, err := decodeEmbedding(blob)
		if err != nil {
			s.logger.Warn("Skipping undecodable embedding", zap.String("run", run.ID), zap.Error(err))
			continue
		}

		score := embedding.CosineSimilarity(query, stored)
		results = append(results, SimilarRun{Run: run, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var verdict string
	if err := row.Scan(&run.ID, &run.Instruction, &run.Model, &run.Code,
		&verdict, &run.Attempts, &run.Diagnostics, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.Verdict = validator.Verdict(verdict)
	return &run, nil
}

// encodeEmbedding packs a float32 vector into a little-endian blob.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding unpacks a little-endian blob into a float32 vector.
func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
