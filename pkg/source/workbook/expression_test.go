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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/verity/pkg/source"
)

func kindOf(t *testing.T, err error) source.ErrorKind {
	t.Helper()
	var srcErr *source.Error
	require.True(t, errors.As(err, &srcErr), "expected *source.Error, got %T", err)
	return srcErr.Kind
}

func TestParseExpression_Valid(t *testing.T) {
	expr, err := ParseExpression(
		`{"table": "orders", "op": "SUM", "column": "amount", "filter": {"column": "region", "op": "EQ", "value": "EMEA"}}`)
	require.NoError(t, err)

	assert.Equal(t, "orders", expr.Table)
	assert.Equal(t, "sum", expr.Op, "op is normalized to lowercase")
	assert.Equal(t, "eq", expr.Filter.Op)
}

// The operation whitelist is the entire query language: anything outside it
// is a security violation, exactly like a mutation verb in SQL.
func TestParseExpression_UnknownOpIsSecurityViolation(t *testing.T) {
	ops := []string{"delete", "update", "insert", "write", "exec"}
	for _, op := range ops {
		_, err := ParseExpression(`{"table": "orders", "op": "` + op + `"}`)
		require.Error(t, err, "op %q must be rejected", op)
		assert.Equal(t, source.ErrorKindSecurityViolation, kindOf(t, err))
	}
}

func TestParseExpression_UnknownFilterOp(t *testing.T) {
	_, err := ParseExpression(
		`{"table": "orders", "op": "count", "filter": {"column": "region", "op": "regex", "value": ".*"}}`)
	require.Error(t, err)
	assert.Equal(t, source.ErrorKindSecurityViolation, kindOf(t, err))
}

func TestParseExpression_MultipleExpressions(t *testing.T) {
	_, err := ParseExpression(
		`{"table": "orders", "op": "count"} {"table": "orders", "op": "count"}`)
	require.Error(t, err)
	assert.Equal(t, source.ErrorKindSecurityViolation, kindOf(t, err))
}

func TestParseExpression_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"not json", "SELECT * FROM orders"},
		{"unknown field", `{"table": "orders", "op": "count", "destructive": true}`},
		{"missing table", `{"op": "count"}`},
		{"sum without column", `{"table": "orders", "op": "sum"}`},
		{"filter without column", `{"table": "orders", "op": "count", "filter": {"op": "eq", "value": 1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExpression(tt.query)
			require.Error(t, err)
			assert.Equal(t, source.ErrorKindSyntax, kindOf(t, err))
		})
	}
}

// A repaired expression passes through the identical parse gate as the
// first-pass one; the same input always yields the same verdict.
func TestParseExpression_Idempotent(t *testing.T) {
	query := `{"table": "orders", "op": "drop"}`

	first, firstErr := ParseExpression(query)
	second, secondErr := ParseExpression(query)

	assert.Nil(t, first)
	assert.Nil(t, second)
	require.Error(t, firstErr)
	require.Error(t, secondErr)
	assert.Equal(t, firstErr.Error(), secondErr.Error())
}

func TestExpression_String(t *testing.T) {
	expr, err := ParseExpression(`{"table": "orders", "op": "count", "group_by": "region"}`)
	require.NoError(t, err)

	assert.JSONEq(t, `{"table": "orders", "op": "count", "group_by": "region"}`, expr.String())
}
