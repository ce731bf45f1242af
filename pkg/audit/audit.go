// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package audit persists an append-only record of every query session:
// the question, the queries that ran, the repair history, and the full
// explanation log. Records are written once and never updated.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/teradata-labs/verity/internal/sqlitedriver"
	"github.com/teradata-labs/verity/pkg/explain"
)

// Entry is one audited session.
type Entry struct {
	// SessionID identifies the session.
	SessionID string `json:"session_id"`

	// TenantID scopes listing; tenants only see their own records.
	TenantID string `json:"tenant_id"`

	// Question is the natural-language question.
	Question string `json:"question"`

	// Answer is the final answer text, empty on failure.
	Answer string `json:"answer,omitempty"`

	// Success reports whether the session produced an answer.
	Success bool `json:"success"`

	// FailureKind classifies a failed session.
	FailureKind string `json:"failure_kind,omitempty"`

	// Queries lists every executed query or expression in order.
	Queries []string `json:"queries,omitempty"`

	// RepairCount is the number of repair attempts.
	RepairCount int `json:"repair_count"`

	// Explanation is the sealed explanation log.
	Explanation *explain.Log `json:"explanation,omitempty"`

	// CreatedAt is when the record was written.
	CreatedAt time.Time `json:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	session_id   TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	question     TEXT NOT NULL,
	answer       TEXT NOT NULL DEFAULT '',
	success      INTEGER NOT NULL,
	failure_kind TEXT NOT NULL DEFAULT '',
	queries      TEXT NOT NULL DEFAULT '[]',
	repair_count INTEGER NOT NULL DEFAULT 0,
	explanation  TEXT NOT NULL DEFAULT '{}',
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_tenant_created ON audit_log(tenant_id, created_at DESC);
`

// Store is a SQLite-backed audit log.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (and migrates) the audit database at path. WAL mode keeps
// writers from blocking the audit read surface.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate audit database: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one entry. Append-only: a duplicate session ID is an error,
// not an update.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	queries, err := json.Marshal(e.Queries)
	if err != nil {
		return fmt.Errorf("failed to marshal queries: %w", err)
	}
	explanation := []byte("{}")
	if e.Explanation != nil {
		explanation, err = json.Marshal(e.Explanation)
		if err != nil {
			return fmt.Errorf("failed to marshal explanation: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (session_id, tenant_id, question, answer, success, failure_kind, queries, repair_count, explanation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.TenantID, e.Question, e.Answer, boolToInt(e.Success),
		e.FailureKind, string(queries), e.RepairCount, string(explanation),
		e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}

	s.logger.Debug("audit record written",
		zap.String("session_id", e.SessionID),
		zap.String("tenant_id", e.TenantID),
		zap.Bool("success", e.Success))
	return nil
}

// Get returns one entry by session ID, or sql.ErrNoRows.
func (s *Store) Get(ctx context.Context, sessionID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, tenant_id, question, answer, success, failure_kind, queries, repair_count, explanation, created_at
		 FROM audit_log WHERE session_id = ?`, sessionID)
	return scanEntry(row)
}

// List returns a tenant's entries, newest first, bounded by limit.
func (s *Store) List(ctx context.Context, tenantID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, tenant_id, question, answer, success, failure_kind, queries, repair_count, explanation, created_at
		 FROM audit_log WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e           Entry
		success     int
		queries     string
		explanation string
		createdAt   string
	)
	if err := row.Scan(&e.SessionID, &e.TenantID, &e.Question, &e.Answer, &success,
		&e.FailureKind, &queries, &e.RepairCount, &explanation, &createdAt); err != nil {
		return nil, err
	}
	e.Success = success != 0

	if err := json.Unmarshal([]byte(queries), &e.Queries); err != nil {
		return nil, fmt.Errorf("corrupt queries column for %s: %w", e.SessionID, err)
	}
	if explanation != "{}" && explanation != "" {
		var log explain.Log
		if err := json.Unmarshal([]byte(explanation), &log); err != nil {
			return nil, fmt.Errorf("corrupt explanation column for %s: %w", e.SessionID, err)
		}
		e.Explanation = &log
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt created_at column for %s: %w", e.SessionID, err)
	}
	e.CreatedAt = t

	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
