package store

import (
	"fmt"

	"go.uber.org/zap"
)

// Migration adds a column to an existing table. Databases created before
// the column existed are upgraded in place; fresh databases already carry
// the full schema and every migration is a no-op.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations lists all column additions since the first release.
var pendingMigrations = []Migration{
	// Attempt counting (added with the repair loop)
	{"runs", "attempts", "INTEGER NOT NULL DEFAULT 1"},
	// Final diagnostics snapshot (added with lint repair)
	{"runs", "diagnostics", "TEXT NOT NULL DEFAULT ''"},
	// Model recording (added with multi-provider support)
	{"runs", "model", "TEXT NOT NULL DEFAULT ''"},
}

func (s *Store) runMigrations() error {
	applied := 0
	for _, m := range pendingMigrations {
		if !s.tableExists(m.Table) {
			continue
		}
		if s.columnExists(m.Table, m.Column) {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %s.%s failed: %w", m.Table, m.Column, err)
		}
		applied++
	}
	if applied > 0 {
		s.logger.Info("Applied schema migrations", zap.Int("count", applied))
	}
	return nil
}

func (s *Store) tableExists(table string) bool {
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	return err == nil
}

func (s *Store) columnExists(table, column string) bool {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
