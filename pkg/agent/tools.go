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
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/teradata-labs/verity/pkg/source"
	"github.com/teradata-labs/verity/pkg/tool"
)

// Tool names. One set per source kind; the executor's allow-list decides
// which set a session may call.
const (
	ToolIntrospectSchema = "introspect_schema"
	ToolExecuteQuery     = "execute_query"
	ToolInspectWorkbook  = "inspect_workbook"
	ToolComputeDataFrame = "compute_dataframe"
)

// toolsForSource builds the capability tools for one data source. Relational
// sources get schema introspection plus SQL execution; tabular sources get
// workbook inspection plus dataframe computation. Nothing else exists for
// the loop to call.
func toolsForSource(src source.DataSource) []tool.Tool {
	switch src.Kind() {
	case source.KindRelational:
		return []tool.Tool{
			&introspectSchemaTool{src: src, name: ToolIntrospectSchema},
			&executeQueryTool{src: src},
		}
	case source.KindTabular:
		return []tool.Tool{
			&introspectSchemaTool{src: src, name: ToolInspectWorkbook},
			&computeDataFrameTool{src: src},
		}
	}
	return nil
}

// renamedTool exposes an existing tool under a different name. Used when two
// sources of the same kind would otherwise collide in the registry.
type renamedTool struct {
	tool.Tool
	name string
}

func (r *renamedTool) Name() string { return r.name }

// errorResult maps a source error into a structured tool error.
func errorResult(err error) *tool.Result {
	kind := source.KindOf(err)
	msg := err.Error()
	var se *source.Error
	if errors.As(err, &se) {
		msg = se.Message
	}
	return &tool.Result{
		Success: false,
		Error: &tool.Error{
			Code:       string(kind),
			Message:    msg,
			Retryable:  kind.Repairable(),
			Suggestion: suggestionFor(kind),
		},
	}
}

func suggestionFor(kind source.ErrorKind) string {
	switch kind {
	case source.ErrorKindSchemaMismatch:
		return "re-check identifiers against the introspected schema"
	case source.ErrorKindSyntax:
		return "correct the query syntax and retry"
	case source.ErrorKindSecurityViolation:
		return "only read-only queries are permitted"
	default:
		return ""
	}
}

// introspectSchemaTool enumerates tables/sheets with column types. Used for
// both source kinds under different names.
type introspectSchemaTool struct {
	src  source.DataSource
	name string
}

func (t *introspectSchemaTool) Name() string { return t.name }

func (t *introspectSchemaTool) Description() string {
	if t.src.Kind() == source.KindTabular {
		return fmt.Sprintf("List every sheet of %s with column names and inferred types. Call this before computing over the workbook.", t.src.Name())
	}
	return fmt.Sprintf("List every table of %s with column names and types. Call this before writing a query.", t.src.Name())
}

func (t *introspectSchemaTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("No parameters.", nil, nil)
}

func (t *introspectSchemaTool) Kind() tool.Kind { return tool.KindSchemaIntrospection }

func (t *introspectSchemaTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.Result, error) {
	desc, err := t.src.IntrospectSchema(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return &tool.Result{
		Success: true,
		Empty:   len(desc.Tables) == 0,
		Data:    desc,
		Metadata: map[string]interface{}{
			"source": t.src.Name(),
			"tables": len(desc.Tables),
		},
	}, nil
}

// executeQueryTool runs a read-only SELECT against a relational source.
type executeQueryTool struct {
	src source.DataSource
}

func (t *executeQueryTool) Name() string { return ToolExecuteQuery }

func (t *executeQueryTool) Description() string {
	return fmt.Sprintf("Execute a read-only SQL SELECT against %s. Mutation statements are rejected. Results are previews bounded to %d rows.",
		t.src.Name(), source.DefaultPreviewRows)
}

func (t *executeQueryTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("Query parameters.", map[string]*tool.JSONSchema{
		"query": tool.NewStringSchema("The SQL SELECT statement to execute."),
	}, []string{"query"})
}

func (t *executeQueryTool) Kind() tool.Kind { return tool.KindQueryExecution }

func (t *executeQueryTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.Result, error) {
	query, ok := params["query"].(string)
	if !ok || query == "" {
		return &tool.Result{
			Success: false,
			Error: &tool.Error{
				Code:      string(source.ErrorKindSyntax),
				Message:   "missing required parameter \"query\"",
				Retryable: true,
			},
		}, nil
	}

	result, err := t.src.ExecuteQuery(ctx, query)
	if err != nil {
		return errorResult(err), nil
	}
	return queryToolResult(t.src.Name(), result), nil
}

// computeDataFrameTool evaluates a computation expression over a tabular
// source.
type computeDataFrameTool struct {
	src source.DataSource
}

func (t *computeDataFrameTool) Name() string { return ToolComputeDataFrame }

func (t *computeDataFrameTool) Description() string {
	return fmt.Sprintf(`Run a read-only computation over a sheet of %s. The expression is a JSON object: {"table": "...", "op": "select|count|sum|avg|min|max", "column": "...", "filter": {"column": "...", "op": "eq|ne|gt|gte|lt|lte|contains", "value": ...}, "group_by": "...", "limit": ...}. Any other operation is rejected.`, t.src.Name())
}

func (t *computeDataFrameTool) InputSchema() *tool.JSONSchema {
	return tool.NewObjectSchema("Computation parameters.", map[string]*tool.JSONSchema{
		"expression": tool.NewStringSchema("The computation expression as a JSON object string."),
	}, []string{"expression"})
}

func (t *computeDataFrameTool) Kind() tool.Kind { return tool.KindDataFrameComputation }

func (t *computeDataFrameTool) Execute(ctx context.Context, params map[string]interface{}) (*tool.Result, error) {
	expr := extractExpression(params)
	if expr == "" {
		return &tool.Result{
			Success: false,
			Error: &tool.Error{
				Code:      string(source.ErrorKindSyntax),
				Message:   "missing required parameter \"expression\"",
				Retryable: true,
			},
		}, nil
	}

	result, err := t.src.ExecuteQuery(ctx, expr)
	if err != nil {
		return errorResult(err), nil
	}
	return queryToolResult(t.src.Name(), result), nil
}

// extractExpression accepts the expression either as a JSON string or as an
// inline object (models produce both).
func extractExpression(params map[string]interface{}) string {
	switch v := params["expression"].(type) {
	case string:
		return v
	case map[string]interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return ""
}

// queryToolResult wraps a query result, marking empty result sets so the
// loop can distinguish "no data" from "failed".
func queryToolResult(sourceName string, result *source.QueryResult) *tool.Result {
	return &tool.Result{
		Success: true,
		Empty:   result.Empty(),
		Data:    result,
		Metadata: map[string]interface{}{
			"source":    sourceName,
			"rows":      result.RowCount,
			"truncated": result.Truncated,
		},
	}
}
