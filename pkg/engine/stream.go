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

package engine

import (
	"context"

	"github.com/teradata-labs/verity/pkg/explain"
)

// EventType discriminates stream events.
type EventType string

const (
	// EventStep carries one reasoning step as it happens.
	EventStep EventType = "step"

	// EventFinal carries the complete bundle; always the last event.
	EventFinal EventType = "final"
)

// Event is one item on the answer stream.
type Event struct {
	Type EventType `json:"type"`

	// Step is set for EventStep.
	Step *explain.Step `json:"step,omitempty"`

	// Bundle is set for EventFinal, for both success and failure.
	Bundle *AnswerBundle `json:"bundle,omitempty"`
}

// RunStream answers one question, emitting reasoning steps as they occur.
// The channel always ends with an EventFinal and is then closed; consumers
// read the outcome from the final bundle rather than a returned error.
func (e *Engine) RunStream(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		bundle, _ := e.run(ctx, req, func(step explain.Step) {
			s := step
			select {
			case events <- Event{Type: EventStep, Step: &s}:
			case <-ctx.Done():
			}
		})

		select {
		case events <- Event{Type: EventFinal, Bundle: bundle}:
		case <-ctx.Done():
		}
	}()

	return events
}
