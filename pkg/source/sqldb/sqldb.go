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

// Package sqldb implements source.DataSource over database/sql.
//
// Supported drivers: "sqlite3" (internal/sqlitedriver), "postgres" (lib/pq),
// and "mysql" (go-sql-driver/mysql). One Source wraps one *sql.DB scoped to
// a single tenant's session; it is never shared across tenants.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	_ "github.com/teradata-labs/verity/internal/sqlitedriver"
	"github.com/teradata-labs/verity/pkg/source"
)

// Config holds connection settings for a relational source.
type Config struct {
	// Driver is one of "sqlite3", "postgres", "mysql".
	Driver string

	// DSN is the decrypted connection string from the credential store.
	DSN string

	// Name identifies the source in schema and citation output. Defaults to
	// the driver name.
	Name string

	// PreviewRows bounds result previews. Defaults to source.DefaultPreviewRows.
	PreviewRows int

	// QueryTimeout bounds one query execution. Defaults to 15s.
	QueryTimeout time.Duration

	// Logger for adapter operations. Defaults to zap.NewNop().
	Logger *zap.Logger
}

// Source is a relational data source adapter.
type Source struct {
	cfg Config
	db  *sql.DB

	schemaOnce sync.Once
	schema     *source.SchemaDescriptor
	schemaErr  error
}

// Open connects to the database and verifies connectivity. Connection
// failures are classified ErrorKindUnavailable (fatal for the query, not
// retried).
func Open(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Name == "" {
		cfg.Name = cfg.Driver
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = source.DefaultPreviewRows
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	switch cfg.Driver {
	case "sqlite3", "postgres", "mysql":
	default:
		return nil, source.NewError(source.ErrorKindUnavailable,
			fmt.Sprintf("unsupported driver %q", cfg.Driver))
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, source.NewError(source.ErrorKindUnavailable, err.Error())
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, source.NewError(source.ErrorKindUnavailable, err.Error())
	}

	cfg.Logger.Debug("relational source opened",
		zap.String("driver", cfg.Driver),
		zap.String("name", cfg.Name))

	return &Source{cfg: cfg, db: db}, nil
}

// Name returns the source identifier.
func (s *Source) Name() string { return s.cfg.Name }

// Kind returns source.KindRelational.
func (s *Source) Kind() source.Kind { return source.KindRelational }

// Ping checks connectivity.
func (s *Source) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return source.NewError(source.ErrorKindUnavailable, err.Error())
	}
	return nil
}

// Close releases the connection pool entry.
func (s *Source) Close() error { return s.db.Close() }

// IntrospectSchema enumerates all tables with column names and types.
// The descriptor is computed once and cached for the adapter's lifetime.
func (s *Source) IntrospectSchema(ctx context.Context) (*source.SchemaDescriptor, error) {
	s.schemaOnce.Do(func() {
		s.schema, s.schemaErr = s.introspect(ctx)
	})
	return s.schema, s.schemaErr
}

func (s *Source) introspect(ctx context.Context) (*source.SchemaDescriptor, error) {
	switch s.cfg.Driver {
	case "sqlite3":
		return s.introspectSQLite(ctx)
	case "postgres":
		return s.introspectInformationSchema(ctx,
			`SELECT table_name, column_name, data_type
			 FROM information_schema.columns
			 WHERE table_schema = 'public'
			 ORDER BY table_name, ordinal_position`)
	case "mysql":
		return s.introspectInformationSchema(ctx,
			`SELECT table_name, column_name, data_type
			 FROM information_schema.columns
			 WHERE table_schema = DATABASE()
			 ORDER BY table_name, ordinal_position`)
	}
	return nil, source.NewError(source.ErrorKindUnavailable, "unsupported driver")
}

func (s *Source) introspectSQLite(ctx context.Context) (*source.SchemaDescriptor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, source.NewError(source.KindOf(err), err.Error())
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, source.NewError(source.ErrorKindUnknown, err.Error())
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, source.NewError(source.KindOf(err), err.Error())
	}

	desc := &source.SchemaDescriptor{}
	for _, name := range names {
		cols, err := s.sqliteColumns(ctx, name)
		if err != nil {
			return nil, err
		}
		desc.Tables = append(desc.Tables, source.TableDescriptor{Name: name, Columns: cols})
	}
	return desc, nil
}

func (s *Source) sqliteColumns(ctx context.Context, table string) ([]source.ColumnDescriptor, error) {
	// table came from sqlite_master, not user input; quoting guards odd names.
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, source.NewError(source.KindOf(err), err.Error())
	}
	defer rows.Close()

	var cols []source.ColumnDescriptor
	for rows.Next() {
		var (
			cid       int
			name, typ string
			notnull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return nil, source.NewError(source.ErrorKindUnknown, err.Error())
		}
		if typ == "" {
			typ = "TEXT"
		}
		cols = append(cols, source.ColumnDescriptor{Name: name, Type: typ})
	}
	return cols, rows.Err()
}

func (s *Source) introspectInformationSchema(ctx context.Context, query string) (*source.SchemaDescriptor, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, source.NewError(source.KindOf(err), err.Error())
	}
	defer rows.Close()

	desc := &source.SchemaDescriptor{}
	index := map[string]int{}
	for rows.Next() {
		var table, column, typ string
		if err := rows.Scan(&table, &column, &typ); err != nil {
			return nil, source.NewError(source.ErrorKindUnknown, err.Error())
		}
		i, ok := index[table]
		if !ok {
			i = len(desc.Tables)
			index[table] = i
			desc.Tables = append(desc.Tables, source.TableDescriptor{Name: table})
		}
		desc.Tables[i].Columns = append(desc.Tables[i].Columns,
			source.ColumnDescriptor{Name: column, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return nil, source.NewError(source.KindOf(err), err.Error())
	}
	return desc, nil
}

// ExecuteQuery runs a read-only SELECT and returns a bounded preview.
// The read-only gate runs here unconditionally: repaired queries and
// first-pass queries go through the identical check.
func (s *Source) ExecuteQuery(ctx context.Context, query string) (*source.QueryResult, error) {
	if err := source.GuardReadOnly(query); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, source.NewError(source.KindOf(err), err.Error())
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, source.NewError(source.ErrorKindUnknown, err.Error())
	}

	result := &source.QueryResult{
		Query:     query,
		Table:     primaryTable(query),
		Columns:   cols,
		TotalRows: -1,
	}

	// Read one row past the preview bound to detect truncation.
	for rows.Next() {
		if len(result.Rows) >= s.cfg.PreviewRows {
			result.Truncated = true
			break
		}
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, source.NewError(source.ErrorKindUnknown, err.Error())
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, source.NewError(source.KindOf(err), err.Error())
	}

	result.RowCount = len(result.Rows)
	if !result.Truncated {
		result.TotalRows = result.RowCount
	}
	result.DurationMs = time.Since(start).Milliseconds()

	s.cfg.Logger.Debug("query executed",
		zap.String("source", s.cfg.Name),
		zap.Int("rows", result.RowCount),
		zap.Bool("truncated", result.Truncated))

	return result, nil
}

// normalizeValue converts driver-specific scan types to plain values.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return v
	}
}

// primaryTable extracts the first FROM target for citation locators.
// Best effort: joins and subqueries return the first identifier only.
func primaryTable(query string) string {
	fields := strings.Fields(query)
	for i, f := range fields {
		if strings.EqualFold(f, "from") && i+1 < len(fields) {
			t := strings.Trim(fields[i+1], `"';(),`)
			if t != "" && !strings.EqualFold(t, "select") {
				return t
			}
		}
	}
	return ""
}

var _ source.DataSource = (*Source)(nil)
