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

// Package explain assembles the explanation log: the step-by-step record of
// how an answer was produced, the evidence behind it, and the confidence
// arithmetic. The log is built incrementally during the reasoning loop and
// sealed at finalization.
package explain

import (
	"math"
	"sync"
	"time"

	"github.com/teradata-labs/verity/pkg/fusion"
	"github.com/teradata-labs/verity/pkg/repair"
)

// DefaultRepairPenalty is subtracted from overall confidence per repair
// attempt. An answer that needed repairs is correct but was harder to get;
// the score says so.
const DefaultRepairPenalty = 10.0

// DefaultConflictPenalty is subtracted from overall confidence per
// unresolved conflict, on top of the fusion score's own penalty: an answer
// shipping a disagreement is weaker than its fusion score alone suggests.
const DefaultConflictPenalty = 15.0

// Step is one think/act/observe cycle in the log.
type Step struct {
	// Cycle is the 1-based reasoning cycle.
	Cycle int `json:"cycle"`

	// State is the loop state the step ran in.
	State string `json:"state"`

	// Thought is the model's reasoning text for this cycle, if any.
	Thought string `json:"thought,omitempty"`

	// Action is the tool invoked, empty for pure-reasoning cycles.
	Action string `json:"action,omitempty"`

	// ActionInput is the tool input.
	ActionInput map[string]interface{} `json:"action_input,omitempty"`

	// Observation summarizes the tool result.
	Observation string `json:"observation,omitempty"`

	// Error carries the classified error when the step failed.
	Error string `json:"error,omitempty"`

	// DurationMs is the step's wall time.
	DurationMs int64 `json:"duration_ms"`

	// Timestamp is when the step completed.
	Timestamp time.Time `json:"timestamp"`
}

// Log is the complete explanation of one answered (or failed) question.
type Log struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`

	// Steps in execution order.
	Steps []Step `json:"steps"`

	// Evidence lists every item that contributed to the answer.
	Evidence []fusion.EvidenceItem `json:"evidence,omitempty"`

	// Conflicts lists source disagreements and how they resolved.
	Conflicts []fusion.Conflict `json:"conflicts,omitempty"`

	// RepairAttempts records the self-repair history.
	RepairAttempts []repair.Attempt `json:"repair_attempts,omitempty"`

	// FusionScore is the fusion engine's 0-100 score before penalties.
	FusionScore float64 `json:"fusion_score"`

	// OverallConfidence is the final 0-100 confidence: fusion score minus
	// the repair penalty per attempt and the conflict penalty per
	// unresolved conflict, clamped.
	OverallConfidence float64 `json:"overall_confidence"`

	// StartedAt / FinishedAt bound the session.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Builder accumulates a Log during the reasoning loop.
// Thread-safe: loop and tool goroutines may record concurrently.
type Builder struct {
	mu              sync.Mutex
	log             Log
	repairPenalty   float64
	conflictPenalty float64
	sealed          bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithRepairPenalty overrides the per-attempt confidence penalty.
func WithRepairPenalty(p float64) BuilderOption {
	return func(b *Builder) { b.repairPenalty = p }
}

// WithConflictPenalty overrides the per-unresolved-conflict confidence
// penalty.
func WithConflictPenalty(p float64) BuilderOption {
	return func(b *Builder) { b.conflictPenalty = p }
}

// NewBuilder starts an explanation log for one session.
func NewBuilder(sessionID, question string, opts ...BuilderOption) *Builder {
	b := &Builder{
		log: Log{
			SessionID: sessionID,
			Question:  question,
			StartedAt: time.Now(),
		},
		repairPenalty:   DefaultRepairPenalty,
		conflictPenalty: DefaultConflictPenalty,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddStep appends a step and returns it with its cycle number assigned.
// Steps after sealing are dropped.
func (b *Builder) AddStep(step Step) Step {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return step
	}
	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now()
	}
	step.Cycle = len(b.log.Steps) + 1
	b.log.Steps = append(b.log.Steps, step)
	return step
}

// AddRepairAttempt records one repair round.
func (b *Builder) AddRepairAttempt(attempt repair.Attempt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return
	}
	b.log.RepairAttempts = append(b.log.RepairAttempts, attempt)
}

// RepairAttempts returns a copy of the recorded attempts so far.
func (b *Builder) RepairAttempts() []repair.Attempt {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]repair.Attempt, len(b.log.RepairAttempts))
	copy(out, b.log.RepairAttempts)
	return out
}

// Seal finalizes the log with the fusion result and computes the overall
// confidence. A nil fusion result (failed query) seals with zero confidence.
func (b *Builder) Seal(fused *fusion.Result) *Log {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
	b.log.FinishedAt = time.Now()

	if fused != nil {
		b.log.Evidence = fused.Contributing
		b.log.Conflicts = fused.Conflicts
		b.log.FusionScore = fused.Score

		confidence := fused.Score -
			b.repairPenalty*float64(len(b.log.RepairAttempts)) -
			b.conflictPenalty*float64(fused.Unresolved())
		b.log.OverallConfidence = math.Max(0, math.Min(100, confidence))
	}

	logCopy := b.log
	return &logCopy
}
