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
	"sync"
	"time"
)

// RecordingTracer keeps completed spans and metrics in memory.
// Used in tests and by the CLI's --trace flag.
type RecordingTracer struct {
	mu      sync.Mutex
	spans   []*Span
	metrics []RecordedMetric
}

// RecordedMetric is one RecordMetric call.
type RecordedMetric struct {
	Name   string
	Value  float64
	Labels map[string]string
}

// NewRecordingTracer creates an in-memory recording tracer.
func NewRecordingTracer() *RecordingTracer {
	return &RecordingTracer{}
}

// StartSpan creates a span linked to the parent in ctx.
func (t *RecordingTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span) {
	span := newSpan(ctx, name, opts...)
	return ContextWithSpan(ctx, span), span
}

// EndSpan finalizes the span and retains it.
func (t *RecordingTracer) EndSpan(span *Span) {
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if span.Status.Code == StatusUnset {
		span.Status.Code = StatusOK
	}
	t.mu.Lock()
	t.spans = append(t.spans, span)
	t.mu.Unlock()
}

// RecordMetric retains the metric point.
func (t *RecordingTracer) RecordMetric(name string, value float64, labels map[string]string) {
	t.mu.Lock()
	t.metrics = append(t.metrics, RecordedMetric{Name: name, Value: value, Labels: labels})
	t.mu.Unlock()
}

// Flush is a no-op; spans are already retained.
func (t *RecordingTracer) Flush(ctx context.Context) error { return nil }

// Spans returns a copy of the completed spans.
func (t *RecordingTracer) Spans() []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Span, len(t.spans))
	copy(out, t.spans)
	return out
}

// SpansNamed returns completed spans with the given name.
func (t *RecordingTracer) SpansNamed(name string) []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Span
	for _, s := range t.spans {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Metrics returns a copy of the recorded metrics.
func (t *RecordingTracer) Metrics() []RecordedMetric {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RecordedMetric, len(t.metrics))
	copy(out, t.metrics)
	return out
}

var _ Tracer = (*RecordingTracer)(nil)
