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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teradata-labs/verity/pkg/source"
)

// Expression is the closed query language for tabular sources. It is a JSON
// object, not SQL; the operation set is a whitelist with no mutating member,
// so a workbook query cannot express a write.
//
//	{"table": "orders", "op": "sum", "column": "amount",
//	 "filter": {"column": "region", "op": "eq", "value": "EMEA"}}
type Expression struct {
	// Table names the sheet to read.
	Table string `json:"table"`

	// Op is one of "select", "count", "sum", "avg", "min", "max".
	Op string `json:"op"`

	// Column is the aggregation target. Required for sum/avg/min/max,
	// ignored for count and select.
	Column string `json:"column,omitempty"`

	// Columns optionally projects a subset for select.
	Columns []string `json:"columns,omitempty"`

	// Filter optionally restricts rows before the operation.
	Filter *Filter `json:"filter,omitempty"`

	// GroupBy optionally groups an aggregate by a column's values.
	GroupBy string `json:"group_by,omitempty"`

	// Limit optionally bounds select output below the preview limit.
	Limit int `json:"limit,omitempty"`
}

// Filter is a single-column predicate.
type Filter struct {
	Column string `json:"column"`

	// Op is one of "eq", "ne", "gt", "gte", "lt", "lte", "contains".
	Op string `json:"op"`

	Value interface{} `json:"value"`
}

var expressionOps = map[string]bool{
	"select": true,
	"count":  true,
	"sum":    true,
	"avg":    true,
	"min":    true,
	"max":    true,
}

var filterOps = map[string]bool{
	"eq":       true,
	"ne":       true,
	"gt":       true,
	"gte":      true,
	"lt":       true,
	"lte":      true,
	"contains": true,
}

// ParseExpression decodes and validates a computation expression. An unknown
// operation is a security violation, matching how the SQL gate treats
// mutation verbs: the whitelist is the entire language.
func ParseExpression(query string) (*Expression, error) {
	dec := json.NewDecoder(strings.NewReader(query))
	dec.DisallowUnknownFields()

	var expr Expression
	if err := dec.Decode(&expr); err != nil {
		return nil, source.NewError(source.ErrorKindSyntax,
			fmt.Sprintf("invalid computation expression: %v", err))
	}
	if dec.More() {
		return nil, source.NewError(source.ErrorKindSecurityViolation,
			"multiple expressions are not permitted")
	}

	if expr.Table == "" {
		return nil, source.NewError(source.ErrorKindSyntax, "expression is missing \"table\"")
	}
	op := strings.ToLower(expr.Op)
	if !expressionOps[op] {
		return nil, source.NewError(source.ErrorKindSecurityViolation,
			fmt.Sprintf("operation %q is not permitted on a read-only source (allowed: select, count, sum, avg, min, max)", expr.Op))
	}
	expr.Op = op

	switch op {
	case "sum", "avg", "min", "max":
		if expr.Column == "" {
			return nil, source.NewError(source.ErrorKindSyntax,
				fmt.Sprintf("operation %q requires \"column\"", op))
		}
	}

	if expr.Filter != nil {
		fop := strings.ToLower(expr.Filter.Op)
		if !filterOps[fop] {
			return nil, source.NewError(source.ErrorKindSecurityViolation,
				fmt.Sprintf("filter operation %q is not permitted", expr.Filter.Op))
		}
		expr.Filter.Op = fop
		if expr.Filter.Column == "" {
			return nil, source.NewError(source.ErrorKindSyntax, "filter is missing \"column\"")
		}
	}

	return &expr, nil
}

// String renders the expression back as compact JSON for result/citation
// records.
func (e *Expression) String() string {
	b, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(b)
}
