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
package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingTracer_SpanLifecycle(t *testing.T) {
	tracer := NewRecordingTracer()

	ctx, span := tracer.StartSpan(context.Background(), "engine.run",
		WithSpanKind("engine"),
		WithAttribute("session.id", "s-1"))
	require.NotNil(t, span)
	assert.Empty(t, tracer.Spans(), "spans are retained only on end")

	_, child := tracer.StartSpan(ctx, "agent.tool_execution")
	assert.Equal(t, span.SpanID, child.ParentID)
	assert.Equal(t, span.TraceID, child.TraceID)

	tracer.EndSpan(child)
	tracer.EndSpan(span)

	spans := tracer.Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, StatusOK, spans[0].Status.Code, "unset status resolves to ok")

	named := tracer.SpansNamed("engine.run")
	require.Len(t, named, 1)
	assert.Equal(t, "engine", named[0].Attributes["span.kind"])
	assert.Equal(t, "s-1", named[0].Attributes["session.id"])
	assert.False(t, named[0].EndTime.IsZero())
}

func TestRecordingTracer_RecordError(t *testing.T) {
	tracer := NewRecordingTracer()
	_, span := tracer.StartSpan(context.Background(), "op")

	span.RecordError(errors.New("query failed"))
	tracer.EndSpan(span)

	got := tracer.Spans()[0]
	assert.Equal(t, StatusError, got.Status.Code)
	assert.Equal(t, "query failed", got.Status.Message)
	assert.Equal(t, "query failed", got.Attributes["error.message"])
}

func TestRecordingTracer_Metrics(t *testing.T) {
	tracer := NewRecordingTracer()
	tracer.RecordMetric("engine.session.confidence", 87, map[string]string{"tenant": "acme"})

	metrics := tracer.Metrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, "engine.session.confidence", metrics[0].Name)
	assert.Equal(t, 87.0, metrics[0].Value)
	assert.Equal(t, "acme", metrics[0].Labels["tenant"])
}

func TestNoOpTracer(t *testing.T) {
	tracer := NewNoOpTracer()
	ctx, span := tracer.StartSpan(context.Background(), "op")
	require.NotNil(t, span)
	require.NotNil(t, ctx)
	tracer.EndSpan(span)
	tracer.RecordMetric("x", 1, nil)
	assert.NoError(t, tracer.Flush(context.Background()))
}
