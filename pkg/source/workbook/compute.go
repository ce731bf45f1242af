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
package workbook

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/teradata-labs/verity/pkg/source"
)

// ExecuteQuery evaluates a computation expression against the loaded tables.
// The expression gate runs here unconditionally, so repaired expressions get
// the identical whitelist check as first-pass ones.
func (s *Source) ExecuteQuery(ctx context.Context, query string) (*source.QueryResult, error) {
	expr, err := ParseExpression(query)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, source.NewError(source.ErrorKindTimeout, err.Error())
	}

	t, err := s.lookup(expr.Table)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	rows := t.rows
	if expr.Filter != nil {
		if err := t.requireColumn(expr.Filter.Column); err != nil {
			return nil, err
		}
		rows = filterRows(rows, expr.Filter)
	}

	result := &source.QueryResult{
		Query: expr.String(),
		Table: t.name,
	}

	switch expr.Op {
	case "select":
		err = s.computeSelect(result, t, expr, rows)
	case "count":
		err = computeCount(result, t, expr, rows)
	default:
		err = computeNumericAggregate(result, t, expr, rows)
	}
	if err != nil {
		return nil, err
	}

	result.RowCount = len(result.Rows)
	result.DurationMs = time.Since(start).Milliseconds()
	return result, nil
}

func (t *table) requireColumn(name string) error {
	for _, c := range t.columns {
		if strings.EqualFold(c, name) {
			return nil
		}
	}
	return source.NewError(source.ErrorKindSchemaMismatch,
		fmt.Sprintf("no such column %q in sheet %q (available: %s)",
			name, t.name, strings.Join(t.columns, ", ")))
}

// columnName resolves a case-insensitive reference to the declared name.
func (t *table) columnName(name string) string {
	for _, c := range t.columns {
		if strings.EqualFold(c, name) {
			return c
		}
	}
	return name
}

func (s *Source) computeSelect(result *source.QueryResult, t *table, expr *Expression, rows []map[string]interface{}) error {
	cols := t.columns
	if len(expr.Columns) > 0 {
		cols = make([]string, 0, len(expr.Columns))
		for _, c := range expr.Columns {
			if err := t.requireColumn(c); err != nil {
				return err
			}
			cols = append(cols, t.columnName(c))
		}
	}
	result.Columns = cols

	limit := s.cfg.PreviewRows
	if expr.Limit > 0 && expr.Limit < limit {
		limit = expr.Limit
	}

	result.TotalRows = len(rows)
	for _, row := range rows {
		if len(result.Rows) >= limit {
			result.Truncated = true
			break
		}
		out := make(map[string]interface{}, len(cols))
		for _, c := range cols {
			out[c] = row[c]
		}
		result.Rows = append(result.Rows, out)
	}
	return nil
}

func computeCount(result *source.QueryResult, t *table, expr *Expression, rows []map[string]interface{}) error {
	result.Aggregate = "count(*)"

	if expr.GroupBy == "" {
		result.Columns = []string{"count"}
		result.Rows = []map[string]interface{}{{"count": int64(len(rows))}}
		result.TotalRows = 1
		return nil
	}

	if err := t.requireColumn(expr.GroupBy); err != nil {
		return err
	}
	group := t.columnName(expr.GroupBy)
	counts := map[string]int64{}
	for _, row := range rows {
		counts[groupKey(row[group])]++
	}

	result.Columns = []string{group, "count"}
	for _, key := range sortedKeys(counts) {
		result.Rows = append(result.Rows, map[string]interface{}{group: key, "count": counts[key]})
	}
	result.TotalRows = len(result.Rows)
	return nil
}

func computeNumericAggregate(result *source.QueryResult, t *table, expr *Expression, rows []map[string]interface{}) error {
	if err := t.requireColumn(expr.Column); err != nil {
		return err
	}
	col := t.columnName(expr.Column)
	result.Aggregate = fmt.Sprintf("%s(%s)", expr.Op, col)

	if expr.GroupBy == "" {
		val, n := aggregate(expr.Op, rows, col)
		result.Columns = []string{result.Aggregate}
		if n == 0 {
			result.TotalRows = 0
			return nil
		}
		result.Rows = []map[string]interface{}{{result.Aggregate: val}}
		result.TotalRows = 1
		return nil
	}

	if err := t.requireColumn(expr.GroupBy); err != nil {
		return err
	}
	group := t.columnName(expr.GroupBy)
	buckets := map[string][]map[string]interface{}{}
	for _, row := range rows {
		key := groupKey(row[group])
		buckets[key] = append(buckets[key], row)
	}

	result.Columns = []string{group, result.Aggregate}
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		val, n := aggregate(expr.Op, buckets[key], col)
		if n == 0 {
			continue
		}
		result.Rows = append(result.Rows, map[string]interface{}{group: key, result.Aggregate: val})
	}
	result.TotalRows = len(result.Rows)
	return nil
}

// aggregate applies op over the numeric values of col, skipping cells that
// are nil or non-numeric. Returns the value and how many cells contributed.
func aggregate(op string, rows []map[string]interface{}, col string) (float64, int) {
	var sum, min, max float64
	n := 0
	for _, row := range rows {
		f, ok := asFloat(row[col])
		if !ok {
			continue
		}
		if n == 0 {
			min, max = f, f
		}
		if f < min {
			min = f
		}
		if f > max {
			max = f
		}
		sum += f
		n++
	}
	if n == 0 {
		return 0, 0
	}
	switch op {
	case "sum":
		return sum, n
	case "avg":
		return sum / float64(n), n
	case "min":
		return min, n
	case "max":
		return max, n
	}
	return 0, 0
}

func filterRows(rows []map[string]interface{}, f *Filter) []map[string]interface{} {
	var out []map[string]interface{}
	for _, row := range rows {
		if matches(row[f.Column], f) {
			out = append(out, row)
		}
	}
	return out
}

// matches evaluates one predicate. Numeric comparison is used when both sides
// parse as numbers; otherwise comparison is case-insensitive on strings.
func matches(cell interface{}, f *Filter) bool {
	if cf, ok := asFloat(cell); ok {
		if ff, ok := asFloat(f.Value); ok {
			switch f.Op {
			case "eq":
				return cf == ff
			case "ne":
				return cf != ff
			case "gt":
				return cf > ff
			case "gte":
				return cf >= ff
			case "lt":
				return cf < ff
			case "lte":
				return cf <= ff
			}
		}
	}

	cs := strings.ToLower(groupKey(cell))
	fs := strings.ToLower(groupKey(f.Value))
	switch f.Op {
	case "eq":
		return cs == fs
	case "ne":
		return cs != fs
	case "contains":
		return strings.Contains(cs, fs)
	case "gt":
		return cs > fs
	case "gte":
		return cs >= fs
	case "lt":
		return cs < fs
	case "lte":
		return cs <= fs
	}
	return false
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

// groupKey renders a cell value as a stable string key.
func groupKey(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
