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

// Package repair implements bounded self-repair of failed queries. A failed
// query gets at most MaxAttempts repair rounds; a repeated identical error
// aborts early instead of burning the remaining budget on the same mistake.
package repair

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/verity/pkg/source"
)

// DefaultMaxAttempts bounds repair rounds per query.
const DefaultMaxAttempts = 2

// Attempt records one repair round for the explanation log and audit trail.
type Attempt struct {
	// Number is the 1-based attempt counter.
	Number int `json:"number"`

	// FailedQuery is the query that triggered this attempt.
	FailedQuery string `json:"failed_query"`

	// ErrorKind classifies the triggering error.
	ErrorKind source.ErrorKind `json:"error_kind"`

	// ErrorMessage is the backend error verbatim.
	ErrorMessage string `json:"error_message"`

	// RepairedQuery is the replacement the LLM produced.
	RepairedQuery string `json:"repaired_query,omitempty"`

	// Succeeded reports whether the repaired query executed cleanly.
	Succeeded bool `json:"succeeded"`
}

// Service decides whether a failure is worth repairing and builds the
// repair prompt. The repaired query itself comes from the LLM; execution
// (including the read-only gate) stays in the adapter, so a repaired query
// passes through the identical security check as a first-pass one.
type Service struct {
	maxAttempts int
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMaxAttempts overrides the repair budget.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a repair service.
func NewService(opts ...Option) *Service {
	s := &Service{
		maxAttempts: DefaultMaxAttempts,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxAttempts returns the configured budget.
func (s *Service) MaxAttempts() int { return s.maxAttempts }

// Decision is the outcome of CanAttempt.
type Decision struct {
	// Repair reports whether another repair round is permitted.
	Repair bool

	// Reason explains a negative decision for the explanation log.
	Reason string
}

// CanAttempt decides whether the failure warrants another repair round.
// Three things can veto it: a non-repairable error kind, an exhausted
// budget, or the same error repeating verbatim (the previous repair changed
// nothing material, so another round would too).
func (s *Service) CanAttempt(history []Attempt, srcErr *source.Error) Decision {
	if srcErr == nil {
		return Decision{Repair: false, Reason: "no error to repair"}
	}
	if !srcErr.Kind.Repairable() {
		return Decision{Repair: false, Reason: fmt.Sprintf("error kind %s is not repairable", srcErr.Kind)}
	}
	if len(history) >= s.maxAttempts {
		return Decision{Repair: false, Reason: fmt.Sprintf("repair budget of %d attempts exhausted", s.maxAttempts)}
	}
	if len(history) > 0 {
		last := history[len(history)-1]
		if last.ErrorKind == srcErr.Kind && strings.TrimSpace(last.ErrorMessage) == strings.TrimSpace(srcErr.Message) {
			s.logger.Debug("repair aborted on repeated error",
				zap.String("kind", string(srcErr.Kind)))
			return Decision{Repair: false, Reason: "repair produced the identical error; aborting"}
		}
	}
	return Decision{Repair: true}
}

// Prompt builds the repair instruction for the LLM. It carries exactly one
// error (the latest, never a concatenated history), the backend message
// verbatim, and the authoritative schema, and demands a complete replacement
// query rather than a patch.
func (s *Service) Prompt(failedQuery string, srcErr *source.Error, schema *source.SchemaDescriptor, kind source.Kind) string {
	var b strings.Builder

	b.WriteString("The previous query failed and must be corrected.\n\n")
	fmt.Fprintf(&b, "Failed query:\n%s\n\n", failedQuery)
	fmt.Fprintf(&b, "Error (%s):\n%s\n\n", srcErr.Kind, srcErr.Message)

	b.WriteString("The authoritative schema is:\n")
	b.WriteString(RenderSchema(schema))
	b.WriteString("\n")

	b.WriteString("Use only the tables and columns listed above; do not invent identifiers.\n")
	if kind == source.KindTabular {
		b.WriteString("Respond with a complete replacement computation expression (JSON), not a fragment or a diff.")
	} else {
		b.WriteString("Respond with a complete replacement SELECT statement, not a fragment or a diff.")
	}

	return b.String()
}

// RenderSchema formats a schema descriptor for prompt inclusion.
func RenderSchema(schema *source.SchemaDescriptor) string {
	if schema == nil || len(schema.Tables) == 0 {
		return "(no tables)\n"
	}
	var b strings.Builder
	for _, t := range schema.Tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = fmt.Sprintf("%s %s", c.Name, c.Type)
		}
		fmt.Fprintf(&b, "- %s(%s)\n", t.Name, strings.Join(cols, ", "))
	}
	return b.String()
}
