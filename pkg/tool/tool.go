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

// Package tool defines the capability set the reasoning loop can invoke.
//
// The capability variants form a closed set (schema introspection, query
// execution, dataframe computation); the loop's tool-selection policy is an
// explicit allow-list over these variants per data-source kind, enforced by
// the Executor before dispatch.
package tool

import (
	"context"
	"encoding/json"
)

// Kind is a capability variant. The set is closed: new tools must declare
// one of these variants so the selection policy stays an allow-list, not
// runtime reflection.
type Kind string

const (
	// KindSchemaIntrospection enumerates tables/sheets and column types.
	KindSchemaIntrospection Kind = "schema_introspection"

	// KindQueryExecution runs a read-only SQL query.
	KindQueryExecution Kind = "query_execution"

	// KindDataFrameComputation runs a read-only computation over a named
	// table of a tabular file.
	KindDataFrameComputation Kind = "dataframe_computation"
)

// Tool is one executable capability exposed to the reasoning loop.
type Tool interface {
	// Name returns the tool's unique identifier.
	Name() string

	// Description returns a human-readable description for LLM context.
	Description() string

	// InputSchema returns the JSON Schema for tool parameters.
	InputSchema() *JSONSchema

	// Kind returns the capability variant this tool implements.
	Kind() Kind

	// Execute runs the tool with the given parameters.
	Execute(ctx context.Context, params map[string]interface{}) (*Result, error)
}

// Status classifies a tool result for the reasoning loop's observe step.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusEmpty   Status = "empty"
)

// Result is the outcome of one tool execution. Produced by exactly one
// ToolCall; immutable once returned.
type Result struct {
	// Success indicates the tool executed without error.
	Success bool

	// Empty indicates the tool succeeded but produced no usable payload
	// (e.g., a query that matched zero rows).
	Empty bool

	// Data contains the result payload (format varies by tool).
	Data interface{}

	// Error contains structured error information if execution failed.
	Error *Error

	// Metadata contains tool-specific metadata.
	Metadata map[string]interface{}

	// ExecutionTimeMs is the executor-measured duration.
	ExecutionTimeMs int64
}

// Status returns the success|error|empty classification.
func (r *Result) Status() Status {
	switch {
	case r == nil || !r.Success:
		return StatusError
	case r.Empty:
		return StatusEmpty
	default:
		return StatusSuccess
	}
}

// Error is a structured tool execution error. Message must be suitable for
// diagnosis by the self-repair service (exact identifier names preserved).
type Error struct {
	// Code is a machine-readable error code (see pkg/source for the taxonomy).
	Code string

	// Message is the raw error message, verbatim from the backend.
	Message string

	// Retryable indicates if the operation is eligible for self-repair.
	Retryable bool

	// Suggestion provides a hint for fixing the error.
	Suggestion string
}

func (e *Error) String() string {
	if e == nil {
		return ""
	}
	b, err := json.Marshal(e)
	if err != nil {
		return e.Message
	}
	return string(b)
}

// Call records one tool invocation issued by the loop. Immutable once issued.
type Call struct {
	// ID is a unique identifier for this call.
	ID string

	// Name is the tool name.
	Name string

	// Input contains the tool parameters.
	Input map[string]interface{}

	// Attempt is 0 for first-pass calls, >0 for repair re-executions.
	Attempt int
}
