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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTool is a configurable test tool.
type stubTool struct {
	name    string
	kind    Kind
	execute func(ctx context.Context, params map[string]interface{}) (*Result, error)
}

func (s *stubTool) Name() string             { return s.name }
func (s *stubTool) Description() string      { return "stub" }
func (s *stubTool) InputSchema() *JSONSchema { return NewObjectSchema("none", nil, nil) }
func (s *stubTool) Kind() Kind               { return s.kind }
func (s *stubTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	return s.execute(ctx, params)
}

func okTool(name string) *stubTool {
	return &stubTool{
		name: name,
		kind: KindQueryExecution,
		execute: func(context.Context, map[string]interface{}) (*Result, error) {
			return &Result{Success: true, Data: "ok"}, nil
		},
	}
}

func TestExecutor_Execute(t *testing.T) {
	registry := NewRegistry()
	registry.Register(okTool("execute_query"))
	executor := NewExecutor(registry, nil)

	result, err := executor.Execute(context.Background(), Call{ID: "c1", Name: "execute_query"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, StatusSuccess, result.Status())
}

// Tools outside the allow-list are rejected before dispatch: the tool body
// must never run.
func TestExecutor_AllowList(t *testing.T) {
	ran := false
	registry := NewRegistry()
	registry.Register(&stubTool{
		name: "forbidden",
		kind: KindQueryExecution,
		execute: func(context.Context, map[string]interface{}) (*Result, error) {
			ran = true
			return &Result{Success: true}, nil
		},
	})
	registry.Register(okTool("execute_query"))

	executor := NewExecutor(registry, nil)
	executor.Allow("execute_query")

	result, err := executor.Execute(context.Background(), Call{Name: "forbidden"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, CodeDisallowed, result.Error.Code)
	assert.False(t, result.Error.Retryable)
	assert.False(t, ran)

	// Allowed tools still pass.
	result, err = executor.Execute(context.Background(), Call{Name: "execute_query"})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestExecutor_UnknownTool(t *testing.T) {
	executor := NewExecutor(NewRegistry(), nil)

	_, err := executor.Execute(context.Background(), Call{Name: "missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolNotFound))
}

// A timed-out execution surfaces as an ordinary tool error, observable by
// the loop, never a silent retry.
func TestExecutor_Timeout(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{
		name: "slow",
		kind: KindQueryExecution,
		execute: func(ctx context.Context, _ map[string]interface{}) (*Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	executor := NewExecutor(registry, nil)
	executor.SetTimeout("slow", 20*time.Millisecond)

	result, err := executor.Execute(context.Background(), Call{Name: "slow"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, CodeTimeout, result.Error.Code)
	assert.True(t, result.Error.Retryable)
}

func TestResult_Status(t *testing.T) {
	assert.Equal(t, StatusError, (*Result)(nil).Status())
	assert.Equal(t, StatusError, (&Result{Success: false}).Status())
	assert.Equal(t, StatusEmpty, (&Result{Success: true, Empty: true}).Status())
	assert.Equal(t, StatusSuccess, (&Result{Success: true}).Status())
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register(okTool("b_tool"))
	registry.Register(okTool("a_tool"))

	assert.Equal(t, 2, registry.Count())
	assert.Equal(t, []string{"a_tool", "b_tool"}, registry.List(), "listing is sorted")

	_, ok := registry.Get("a_tool")
	assert.True(t, ok)
	_, ok = registry.Get("missing")
	assert.False(t, ok)

	// Re-registering a name replaces the tool.
	registry.Register(okTool("a_tool"))
	assert.Equal(t, 2, registry.Count())
}
