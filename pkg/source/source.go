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

// Package source defines uniform read-only access to heterogeneous data
// sources: relational databases (pkg/source/sqldb) and tabular files
// (pkg/source/workbook).
//
// Adapters are scoped per (tenant, data source) and live for one query
// session; they are never shared across tenants. Schema descriptors are
// cached inside the adapter for the session's duration and discarded with it.
package source

import (
	"context"
	"strings"
)

// Kind distinguishes the two backend variants.
type Kind string

const (
	// KindRelational is a SQL database queried with SELECT statements.
	KindRelational Kind = "relational"

	// KindTabular is a tabular file (workbook or CSV) queried with
	// read-only computation expressions.
	KindTabular Kind = "tabular"
)

// DataSource is the uniform interface over both backend variants.
type DataSource interface {
	// Name returns the source identifier (database name or file name).
	Name() string

	// Kind returns the backend variant.
	Kind() Kind

	// IntrospectSchema enumerates every table/sheet with column names and
	// inferred types. Idempotent: the descriptor is cached after the first
	// call for the adapter's (session's) lifetime.
	IntrospectSchema(ctx context.Context) (*SchemaDescriptor, error)

	// ExecuteQuery runs a read-only query. For relational sources the query
	// is a SQL SELECT; for tabular sources it is a computation expression
	// (see workbook.Expression). Mutation statements are rejected with
	// ErrorKindSecurityViolation regardless of any upstream validation.
	ExecuteQuery(ctx context.Context, query string) (*QueryResult, error)

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection or file handle.
	Close() error
}

// SchemaDescriptor enumerates the tables of a data source. It is the single
// source of truth for identifier names during query generation and repair.
type SchemaDescriptor struct {
	Tables []TableDescriptor `json:"tables"`
}

// TableDescriptor is one table or sheet.
type TableDescriptor struct {
	Name    string             `json:"name"`
	Columns []ColumnDescriptor `json:"columns"`
}

// ColumnDescriptor is one column with an inferred or declared type.
type ColumnDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table returns the descriptor for a named table, or nil.
// Matching is case-insensitive, like most SQL identifier resolution.
func (s *SchemaDescriptor) Table(name string) *TableDescriptor {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i]
		}
	}
	return nil
}

// TableNames returns the table names in declaration order.
func (s *SchemaDescriptor) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// QueryResult is a bounded, read-only result preview.
type QueryResult struct {
	// Query is the executed query or computation expression.
	Query string

	// Table is the primary table/sheet the result came from, when known.
	// Used for citation locators.
	Table string

	// Columns are the result column names in order.
	Columns []string

	// Rows is the bounded preview (at most the adapter's preview limit).
	Rows []map[string]interface{}

	// RowCount is the number of rows in the preview.
	RowCount int

	// TotalRows is the full result size when known, -1 otherwise.
	TotalRows int

	// Truncated is set when Rows is a preview of a larger result. Downstream
	// consumers must not treat a truncated preview as the full result set.
	Truncated bool

	// Aggregate describes the computation for aggregate results
	// (e.g., "count(*)"), empty for plain projections.
	Aggregate string

	// DurationMs is the execution time.
	DurationMs int64
}

// Empty reports whether the result carries no rows.
func (r *QueryResult) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// DefaultPreviewRows bounds result previews handed to the reasoning loop,
// keeping token cost bounded.
const DefaultPreviewRows = 50
