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
package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teradata-labs/verity/pkg/observability"
)

const (
	// DefaultToolTimeout bounds a single tool execution.
	DefaultToolTimeout = 30 * time.Second

	// CodeTimeout is the error code for a timed-out execution. Timeouts are
	// observed as ordinary tool errors, eligible for the same repair/fail
	// paths — never silently retried.
	CodeTimeout = "TIMEOUT"

	// CodeDisallowed is the error code for a tool outside the session's
	// allow-list. This is a contract violation, rejected before dispatch.
	CodeDisallowed = "TOOL_DISALLOWED"
)

// ErrToolNotFound is returned when a tool name resolves to nothing.
var ErrToolNotFound = errors.New("tool not found")

// Executor executes tools with per-tool timeouts and allow-list enforcement.
type Executor struct {
	registry *Registry
	tracer   observability.Tracer

	// allowed restricts execution to this name set. Nil means no restriction.
	allowed map[string]bool

	// timeouts overrides DefaultToolTimeout per tool name.
	timeouts map[string]time.Duration
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, tracer observability.Tracer) *Executor {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Executor{
		registry: registry,
		tracer:   tracer,
		timeouts: make(map[string]time.Duration),
	}
}

// Allow restricts execution to the named tools. Calls for any other tool are
// rejected before dispatch.
func (e *Executor) Allow(names ...string) {
	e.allowed = make(map[string]bool, len(names))
	for _, n := range names {
		e.allowed[n] = true
	}
}

// Allowed reports whether a tool name passes the allow-list.
func (e *Executor) Allowed(name string) bool {
	return e.allowed == nil || e.allowed[name]
}

// SetTimeout overrides the execution timeout for one tool. Schema
// introspection gets a shorter budget than query execution; the caller
// decides.
func (e *Executor) SetTimeout(name string, d time.Duration) {
	if d > 0 {
		e.timeouts[name] = d
	}
}

// Execute runs a tool call and returns its result. A nil error with
// Result.Success=false is a tool-level failure (diagnosable, possibly
// repairable); a non-nil error is an executor-level failure.
func (e *Executor) Execute(ctx context.Context, call Call) (*Result, error) {
	if !e.Allowed(call.Name) {
		return &Result{
			Success: false,
			Error: &Error{
				Code:      CodeDisallowed,
				Message:   fmt.Sprintf("tool %q is not permitted for this data source", call.Name),
				Retryable: false,
			},
		}, nil
	}

	t, ok := e.registry.Get(call.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, call.Name)
	}

	ctx, span := e.tracer.StartSpan(ctx, "tool.execute",
		observability.WithSpanKind("tool"),
		observability.WithAttribute("tool.name", call.Name),
		observability.WithAttribute("tool.attempt", call.Attempt))
	defer e.tracer.EndSpan(span)

	timeout := DefaultToolTimeout
	if d, ok := e.timeouts[call.Name]; ok {
		timeout = d
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := t.Execute(ctx, call.Input)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &Result{
				Success:         false,
				Error:           &Error{Code: CodeTimeout, Message: fmt.Sprintf("tool %s timed out after %s", call.Name, timeout), Retryable: true},
				ExecutionTimeMs: duration.Milliseconds(),
			}, nil
		}
		return &Result{
			Success:         false,
			Error:           &Error{Code: "execution_failed", Message: err.Error()},
			ExecutionTimeMs: duration.Milliseconds(),
		}, nil
	}

	if result == nil {
		result = &Result{Success: true, Empty: true}
	}
	// Executor timing is authoritative.
	result.ExecutionTimeMs = duration.Milliseconds()

	span.SetAttribute("tool.status", string(result.Status()))
	if result.Error != nil {
		span.SetAttribute("tool.error_code", result.Error.Code)
	}
	return result, nil
}
