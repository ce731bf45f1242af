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

// Package workbook implements source.DataSource over tabular files:
// Excel workbooks (.xlsx) and CSV files.
//
// Every sheet becomes a named table — introspection always enumerates all of
// them, never only the first. Queries are read-only computation expressions
// (see Expression); there is no representation for a mutating operation, and
// unknown operations are rejected with the same security classification as
// SQL DML.
package workbook

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/teradata-labs/verity/pkg/source"
)

const (
	// MaxRowsPerSheet bounds how many rows are loaded from one sheet.
	MaxRowsPerSheet = 10000

	// MaxFileSize bounds the workbook size (100MB).
	MaxFileSize = 100 * 1024 * 1024
)

// Config holds settings for a tabular-file source.
type Config struct {
	// Path to a .xlsx or .csv file. Ignored when Bytes is set.
	Path string

	// Bytes holds raw file content from the object store. FileName supplies
	// the extension when Bytes is used.
	Bytes    []byte
	FileName string

	// Name identifies the source; defaults to the file's base name.
	Name string

	// PreviewRows bounds result previews. Defaults to source.DefaultPreviewRows.
	PreviewRows int

	// Logger for adapter operations. Defaults to zap.NewNop().
	Logger *zap.Logger
}

// table is one loaded sheet.
type table struct {
	name    string
	columns []string
	types   []string
	rows    []map[string]interface{}
}

// Source is a tabular-file data source adapter. All sheets are loaded at
// open time; the schema descriptor is derived once and reused.
type Source struct {
	cfg    Config
	tables []*table
	schema *source.SchemaDescriptor
}

// Open loads the workbook and builds its schema.
func Open(cfg Config) (*Source, error) {
	name := cfg.FileName
	if name == "" {
		name = cfg.Path
	}
	if cfg.Name == "" {
		cfg.Name = filepath.Base(name)
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = source.DefaultPreviewRows
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	data := cfg.Bytes
	if data == nil {
		info, err := os.Stat(cfg.Path)
		if err != nil {
			return nil, source.NewError(source.ErrorKindUnavailable, err.Error())
		}
		if info.Size() > MaxFileSize {
			return nil, source.NewError(source.ErrorKindUnavailable,
				fmt.Sprintf("file size %d exceeds maximum %d", info.Size(), MaxFileSize))
		}
		data, err = os.ReadFile(cfg.Path)
		if err != nil {
			return nil, source.NewError(source.ErrorKindUnavailable, err.Error())
		}
	}
	if len(data) > MaxFileSize {
		return nil, source.NewError(source.ErrorKindUnavailable, "file exceeds maximum size")
	}

	s := &Source{cfg: cfg}
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		err = s.loadExcel(data)
	case ".csv":
		err = s.loadCSV(data)
	default:
		err = source.NewError(source.ErrorKindUnavailable,
			fmt.Sprintf("unsupported file type %q (supported: .xlsx, .csv)", filepath.Ext(name)))
	}
	if err != nil {
		return nil, err
	}

	s.schema = &source.SchemaDescriptor{}
	for _, t := range s.tables {
		td := source.TableDescriptor{Name: t.name}
		for i, col := range t.columns {
			td.Columns = append(td.Columns, source.ColumnDescriptor{Name: col, Type: t.types[i]})
		}
		s.schema.Tables = append(s.schema.Tables, td)
	}

	cfg.Logger.Debug("workbook source opened",
		zap.String("name", cfg.Name),
		zap.Int("tables", len(s.tables)))

	return s, nil
}

// loadExcel loads every sheet of an xlsx workbook.
func (s *Source) loadExcel(data []byte) error {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return source.NewError(source.ErrorKindUnavailable, err.Error())
	}
	defer f.Close()

	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return source.NewError(source.ErrorKindUnavailable, err.Error())
		}
		s.tables = append(s.tables, buildTable(sheetName, rows))
	}
	if len(s.tables) == 0 {
		return source.NewError(source.ErrorKindUnavailable, "workbook has no sheets")
	}
	return nil
}

// loadCSV loads a CSV file as a single table named after the file.
func (s *Source) loadCSV(data []byte) error {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	var records [][]string
	for len(records) <= MaxRowsPerSheet {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return source.NewError(source.ErrorKindUnavailable, fmt.Sprintf("error reading CSV: %v", err))
		}
		records = append(records, record)
	}

	name := strings.TrimSuffix(s.cfg.Name, filepath.Ext(s.cfg.Name))
	s.tables = append(s.tables, buildTable(name, records))
	return nil
}

// buildTable converts raw rows (header first) into a typed table.
func buildTable(name string, raw [][]string) *table {
	t := &table{name: name}
	if len(raw) == 0 {
		return t
	}
	t.columns = raw[0]

	body := raw[1:]
	if len(body) > MaxRowsPerSheet {
		body = body[:MaxRowsPerSheet]
	}
	t.types = inferColumnTypes(t.columns, body)

	for _, record := range body {
		row := make(map[string]interface{}, len(t.columns))
		for i, col := range t.columns {
			if i < len(record) {
				row[col] = convertValue(record[i], t.types[i])
			} else {
				row[col] = nil
			}
		}
		t.rows = append(t.rows, row)
	}
	return t
}

// inferColumnTypes infers integer/float/boolean/date/string per column from
// the cell values.
func inferColumnTypes(columns []string, rows [][]string) []string {
	types := make([]string, len(columns))
	for col := range columns {
		intCount, floatCount, boolCount, dateCount, total := 0, 0, 0, 0, 0
		for _, row := range rows {
			if col >= len(row) {
				continue
			}
			v := strings.TrimSpace(row[col])
			if v == "" {
				continue
			}
			total++
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				intCount++
				continue
			}
			if _, err := strconv.ParseFloat(v, 64); err == nil {
				floatCount++
				continue
			}
			switch strings.ToLower(v) {
			case "true", "false", "yes", "no":
				boolCount++
				continue
			}
			if _, err := time.Parse("2006-01-02", v); err == nil {
				dateCount++
				continue
			}
		}
		switch {
		case total == 0:
			types[col] = "string"
		case intCount == total:
			types[col] = "integer"
		case intCount+floatCount == total:
			types[col] = "float"
		case boolCount == total:
			types[col] = "boolean"
		case dateCount == total:
			types[col] = "date"
		default:
			types[col] = "string"
		}
	}
	return types
}

// convertValue parses a cell according to the column's inferred type.
func convertValue(v, typ string) interface{} {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	switch typ {
	case "integer":
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	case "float":
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	case "boolean":
		switch strings.ToLower(v) {
		case "true", "yes":
			return true
		case "false", "no":
			return false
		}
	}
	return v
}

// Name returns the source identifier.
func (s *Source) Name() string { return s.cfg.Name }

// Kind returns source.KindTabular.
func (s *Source) Kind() source.Kind { return source.KindTabular }

// Ping always succeeds for an in-memory workbook.
func (s *Source) Ping(ctx context.Context) error { return nil }

// Close releases nothing; the file content is garbage-collected with the
// adapter at session end.
func (s *Source) Close() error { return nil }

// IntrospectSchema returns the descriptor covering every sheet.
func (s *Source) IntrospectSchema(ctx context.Context) (*source.SchemaDescriptor, error) {
	return s.schema, nil
}

// lookup finds a table by name, case-insensitively. A question about
// "customers" must resolve to the sheet named customers, never to sheet
// index 0.
func (s *Source) lookup(name string) (*table, error) {
	for _, t := range s.tables {
		if strings.EqualFold(t.name, name) {
			return t, nil
		}
	}
	available := make([]string, len(s.tables))
	for i, t := range s.tables {
		available[i] = t.name
	}
	return nil, source.NewError(source.ErrorKindSchemaMismatch,
		fmt.Sprintf("no such sheet %q (available: %s)", name, strings.Join(available, ", ")))
}

var _ source.DataSource = (*Source)(nil)
