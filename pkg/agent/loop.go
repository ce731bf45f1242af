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

// Package agent runs the reasoning loop: think, act, observe, repeat, under
// an explicit state machine with a hard cycle budget. The loop gathers
// evidence through tools and finalizes only when at least one successful
// query result backs the answer.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/verity/pkg/explain"
	"github.com/teradata-labs/verity/pkg/fusion"
	"github.com/teradata-labs/verity/pkg/observability"
	"github.com/teradata-labs/verity/pkg/repair"
	"github.com/teradata-labs/verity/pkg/source"
	"github.com/teradata-labs/verity/pkg/tool"
	"github.com/teradata-labs/verity/pkg/types"
)

// State is the loop's position in its state machine.
type State string

const (
	StateStart              State = "START"
	StateSelectingTool      State = "SELECTING_TOOL"
	StateAwaitingToolResult State = "AWAITING_TOOL_RESULT"
	StateContinueReasoning  State = "CONTINUE_REASONING"
	StateRepairing          State = "REPAIRING"
	StateFinalizing         State = "FINALIZING"
	StateFailed             State = "FAILED"
)

// DefaultMaxCycles bounds reasoning cycles per session. Eight cycles covers
// introspection, a query per source, two repair rounds, and finalization
// with slack; anything needing more is wandering.
const DefaultMaxCycles = 8

// introspectionTimeout is the per-call budget for schema tools; they read
// catalogs, not data, and should be fast.
const introspectionTimeout = 10 * time.Second

// Loop drives one session's reasoning.
type Loop struct {
	provider  types.LLMProvider
	sources   []source.DataSource
	repairer  *repair.Service
	tracer    observability.Tracer
	logger    *zap.Logger
	maxCycles int
	onStep    func(explain.Step)
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxCycles overrides the cycle budget.
func WithMaxCycles(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxCycles = n
		}
	}
}

// WithRepairService overrides the repair service.
func WithRepairService(s *repair.Service) Option {
	return func(l *Loop) { l.repairer = s }
}

// WithTracer sets the tracer.
func WithTracer(t observability.Tracer) Option {
	return func(l *Loop) { l.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithStepCallback registers a callback invoked after every recorded step.
// Used by the streaming surface.
func WithStepCallback(fn func(explain.Step)) Option {
	return func(l *Loop) { l.onStep = fn }
}

// NewLoop creates a reasoning loop over the given sources.
func NewLoop(provider types.LLMProvider, sources []source.DataSource, opts ...Option) *Loop {
	l := &Loop{
		provider:  provider,
		sources:   sources,
		repairer:  repair.NewService(),
		tracer:    observability.NewNoOpTracer(),
		logger:    zap.NewNop(),
		maxCycles: DefaultMaxCycles,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Outcome is the loop's terminal result.
type Outcome struct {
	// AnswerText is the model's final prose answer.
	AnswerText string

	// Evidence is the session's evidence chain in collection order.
	Evidence []fusion.EvidenceItem

	// Cycles is how many reasoning cycles ran.
	Cycles int

	// State is the terminal state (FINALIZING or FAILED).
	State State
}

// Run executes the loop for one session. The explanation builder accumulates
// steps and repair attempts as a side effect; terminal failures are returned
// as *Failure errors.
func (l *Loop) Run(ctx context.Context, session *types.Session, xb *explain.Builder) (*Outcome, error) {
	ctx, span := l.tracer.StartSpan(ctx, "agent.run",
		observability.WithSpanKind("agent"),
		observability.WithAttribute("session.id", session.ID))
	defer l.tracer.EndSpan(span)

	registry := tool.NewRegistry()
	executor := tool.NewExecutor(registry, l.tracer)

	sourceByTool := map[string]source.DataSource{}
	var allowed []string
	for _, src := range l.sources {
		for _, t := range toolsForSource(src) {
			// Two sources of the same kind expose the same base tools;
			// suffix the later ones so neither shadows the other.
			if _, taken := sourceByTool[t.Name()]; taken {
				t = &renamedTool{Tool: t, name: t.Name() + "__" + src.Name()}
			}
			registry.Register(t)
			allowed = append(allowed, t.Name())
			sourceByTool[t.Name()] = src
		}
	}
	executor.Allow(allowed...)
	executor.SetTimeout(ToolIntrospectSchema, introspectionTimeout)
	executor.SetTimeout(ToolInspectWorkbook, introspectionTimeout)

	chain := fusion.NewChain()
	session.AddMessage(types.Message{
		Role:      "user",
		Content:   session.Question,
		Timestamp: time.Now(),
	})

	var (
		state    = StateStart
		attempts []repair.Attempt
		// repairPending is set after a repair prompt goes out; the next
		// query execution closes the open attempt.
		repairPending bool
		queriesRan    int
	)

	for cycle := 1; cycle <= l.maxCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return l.fail(xb, attempts, chain, cycle, NewFailure(FailureTimeout, "session deadline exceeded: %v", err))
		}

		state = StateSelectingTool
		messages := append([]types.Message{{Role: "system", Content: systemPrompt(l.sources)}}, session.GetMessages()...)

		resp, err := l.provider.Chat(ctx, messages, registry.Tools())
		if err != nil {
			if ctx.Err() != nil {
				return l.fail(xb, attempts, chain, cycle, NewFailure(FailureTimeout, "session deadline exceeded during model call"))
			}
			return l.fail(xb, attempts, chain, cycle, NewFailure(FailureLLMProvider, "model call failed after retry: %v", err))
		}
		session.AddMessage(types.Message{
			Role:       "assistant",
			Content:    resp.Content,
			ToolCalls:  resp.ToolCalls,
			Timestamp:  time.Now(),
			TokenCount: resp.Usage.TotalTokens,
		})

		if len(resp.ToolCalls) == 0 {
			// The model wants to finalize. An answer with no successful
			// query behind it is a fabrication; refuse it.
			if queriesRan == 0 {
				return l.fail(xb, attempts, chain, cycle,
					NewFailure(FailureNoEvidence, "model attempted to answer without any successful query result"))
			}
			state = StateFinalizing
			l.recordStep(xb, explain.Step{
				State:   string(state),
				Thought: resp.Content,
			})
			l.logger.Info("session finalized",
				zap.String("session_id", session.ID),
				zap.Int("cycles", cycle),
				zap.Int("evidence", chain.Len()))
			return &Outcome{
				AnswerText: resp.Content,
				Evidence:   chain.Items(),
				Cycles:     cycle,
				State:      StateFinalizing,
			}, nil
		}

		// One tool call per cycle; extras are dropped, the model will
		// re-request anything it still needs.
		tc := resp.ToolCalls[0]
		call := tool.Call{
			ID:      tc.ID,
			Name:    tc.Name,
			Input:   tc.Input,
			Attempt: len(attempts),
		}
		if call.ID == "" {
			call.ID = uuid.New().String()
		}

		state = StateAwaitingToolResult
		result, err := executor.Execute(ctx, call)
		if err != nil {
			return l.fail(xb, attempts, chain, cycle,
				NewFailure(FailureSchemaMismatch, "tool dispatch failed: %v", err))
		}

		step := explain.Step{
			State:       string(state),
			Thought:     resp.Content,
			Action:      call.Name,
			ActionInput: call.Input,
			Observation: observationFor(result),
			DurationMs:  result.ExecutionTimeMs,
		}
		if result.Error != nil {
			step.Error = fmt.Sprintf("%s: %s", result.Error.Code, result.Error.Message)
		}
		l.recordStep(xb, step)

		executedQuery := queryFromCall(call)
		isQuery := isQueryTool(call.Name)
		status := result.Status()

		if repairPending && isQuery {
			attempts[len(attempts)-1].RepairedQuery = executedQuery
			attempts[len(attempts)-1].Succeeded = status == tool.StatusSuccess
			xb.AddRepairAttempt(attempts[len(attempts)-1])
			repairPending = false
		}

		session.AddMessage(types.Message{
			Role:      "tool",
			Content:   toolMessageContent(result),
			ToolUseID: call.ID,
			Timestamp: time.Now(),
		})

		// Only a success with rows counts as a ran query and mints evidence.
		// An empty result is a distinct status: it proves the query executed
		// but backs no claim, so it routes through repair like an error.
		if status == tool.StatusSuccess {
			if isQuery {
				queriesRan++
				if qr, ok := result.Data.(*source.QueryResult); ok {
					src := sourceByTool[call.Name]
					chain.Add(mintEvidence(src.Name(), qr))
				}
			}
			state = StateContinueReasoning
			continue
		}

		if !isQuery {
			// Introspection failures are never repaired; the source itself
			// is the problem. A source with no tables is equally unusable.
			msg := "no tables found"
			if result.Error != nil {
				msg = result.Error.Message
			}
			return l.fail(xb, attempts, chain, cycle,
				NewFailure(FailureSourceUnavailable, "schema introspection failed: %s", msg))
		}

		// Failed or empty query: decide between repair and terminal failure.
		var srcErr *source.Error
		switch {
		case status == tool.StatusEmpty:
			srcErr = source.NewError(source.ErrorKindSchemaMismatch,
				"query returned no rows; filters may not match the data")
		case result.Error.Code == tool.CodeTimeout:
			srcErr = source.NewError(source.ErrorKindTimeout, result.Error.Message)
		default:
			srcErr = source.NewError(source.ErrorKind(result.Error.Code), result.Error.Message)
		}

		decision := l.repairer.CanAttempt(attempts, srcErr)
		if !decision.Repair {
			kind := failureFromSource(srcErr.Kind)
			return l.fail(xb, attempts, chain, cycle,
				NewFailure(kind, "%s (%s)", srcErr.Message, decision.Reason))
		}

		state = StateRepairing
		src := sourceByTool[call.Name]
		schema, schemaErr := src.IntrospectSchema(ctx)
		if schemaErr != nil {
			return l.fail(xb, attempts, chain, cycle,
				NewFailure(FailureSourceUnavailable, "schema introspection for repair failed: %v", schemaErr))
		}

		attempts = append(attempts, repair.Attempt{
			Number:       len(attempts) + 1,
			FailedQuery:  executedQuery,
			ErrorKind:    srcErr.Kind,
			ErrorMessage: srcErr.Message,
		})
		repairPending = true

		session.AddMessage(types.Message{
			Role:      "user",
			Content:   l.repairer.Prompt(executedQuery, srcErr, schema, src.Kind()),
			Timestamp: time.Now(),
		})
		l.logger.Debug("repair prompt issued",
			zap.String("session_id", session.ID),
			zap.Int("attempt", len(attempts)),
			zap.String("error_kind", string(srcErr.Kind)))
	}

	return l.fail(xb, attempts, chain, l.maxCycles,
		NewFailure(FailureCycleLimit, "reasoning loop exceeded %d cycles without finalizing", l.maxCycles))
}

// fail flushes any open repair attempt into the builder and returns the
// terminal failure with whatever evidence was gathered.
func (l *Loop) fail(xb *explain.Builder, attempts []repair.Attempt, chain *fusion.Chain, cycle int, failure *Failure) (*Outcome, error) {
	recorded := len(xb.RepairAttempts())
	for i := recorded; i < len(attempts); i++ {
		xb.AddRepairAttempt(attempts[i])
	}
	l.recordStep(xb, explain.Step{
		State: string(StateFailed),
		Error: failure.Error(),
	})
	l.logger.Warn("session failed",
		zap.String("kind", string(failure.Kind)),
		zap.Int("cycles", cycle),
		zap.String("message", failure.Message))
	return &Outcome{
		Evidence: chain.Items(),
		Cycles:   cycle,
		State:    StateFailed,
	}, failure
}

func (l *Loop) recordStep(xb *explain.Builder, step explain.Step) {
	recorded := xb.AddStep(step)
	if l.onStep != nil {
		l.onStep(recorded)
	}
}

// isQueryTool reports whether the tool executes data queries (as opposed to
// schema introspection). Suffixed names from multi-source sessions count.
func isQueryTool(name string) bool {
	return name == ToolExecuteQuery || name == ToolComputeDataFrame ||
		strings.HasPrefix(name, ToolExecuteQuery+"__") ||
		strings.HasPrefix(name, ToolComputeDataFrame+"__")
}

// queryFromCall extracts the executed query text from a tool call.
func queryFromCall(call tool.Call) string {
	if q, ok := call.Input["query"].(string); ok {
		return q
	}
	return extractExpression(call.Input)
}

// observationFor summarizes a tool result for the explanation log.
func observationFor(result *tool.Result) string {
	switch result.Status() {
	case tool.StatusError:
		return "tool error"
	case tool.StatusEmpty:
		return "empty result"
	default:
		if qr, ok := result.Data.(*source.QueryResult); ok {
			return fmt.Sprintf("%d row(s) in %dms", qr.RowCount, result.ExecutionTimeMs)
		}
		return "success"
	}
}

// toolMessageContent renders a tool result for the conversation.
func toolMessageContent(result *tool.Result) string {
	if result.Error != nil {
		return result.Error.String()
	}
	if result.Data == nil {
		return `{"status":"empty"}`
	}
	b, err := json.Marshal(result.Data)
	if err != nil {
		return fmt.Sprintf("%v", result.Data)
	}
	const limit = 8192
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
