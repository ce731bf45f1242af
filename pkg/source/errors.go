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
package source

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies query failures for the repair/fail decision.
type ErrorKind string

const (
	// ErrorKindSchemaMismatch: the query references a nonexistent table or
	// column. Recoverable via self-repair.
	ErrorKindSchemaMismatch ErrorKind = "schema_mismatch"

	// ErrorKindSecurityViolation: a mutation statement was attempted.
	// Fatal, never retried.
	ErrorKindSecurityViolation ErrorKind = "security_violation"

	// ErrorKindSyntax: malformed query. Recoverable via self-repair.
	ErrorKindSyntax ErrorKind = "syntax_error"

	// ErrorKindTimeout: execution exceeded its budget.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindUnavailable: connection/decryption failure. Fatal per query.
	ErrorKindUnavailable ErrorKind = "unavailable"

	// ErrorKindUnknown: unclassified failure.
	ErrorKindUnknown ErrorKind = "unknown"
)

// Repairable reports whether self-repair may recover this kind.
func (k ErrorKind) Repairable() bool {
	return k == ErrorKindSchemaMismatch || k == ErrorKindSyntax
}

// Error is a classified query error with the backend's raw message preserved
// verbatim for diagnosis.
type Error struct {
	Kind ErrorKind

	// Message is the raw error message from the backend. The repair prompt
	// quotes this exactly; do not rewrite it.
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds a classified error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the ErrorKind from err, classifying by message when the
// error is not already a *Error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage infers an ErrorKind from a raw backend error message.
// Driver-specific wording varies; this covers sqlite, postgres, and mysql.
func ClassifyMessage(msg string) ErrorKind {
	m := strings.ToLower(msg)

	switch {
	case strings.Contains(m, "no such column"),
		strings.Contains(m, "column") && (strings.Contains(m, "does not exist") || strings.Contains(m, "not found") || strings.Contains(m, "unknown")),
		strings.Contains(m, "unknown column"):
		return ErrorKindSchemaMismatch
	case strings.Contains(m, "no such table"),
		strings.Contains(m, "relation") && strings.Contains(m, "does not exist"),
		strings.Contains(m, "table") && (strings.Contains(m, "doesn't exist") || strings.Contains(m, "does not exist") || strings.Contains(m, "not found")),
		strings.Contains(m, "no such sheet"):
		return ErrorKindSchemaMismatch
	case strings.Contains(m, "syntax"):
		return ErrorKindSyntax
	case strings.Contains(m, "timeout"), strings.Contains(m, "deadline exceeded"), strings.Contains(m, "canceled"), strings.Contains(m, "cancelled"):
		return ErrorKindTimeout
	case strings.Contains(m, "connection refused"), strings.Contains(m, "connection reset"),
		strings.Contains(m, "unable to open"), strings.Contains(m, "authentication"),
		strings.Contains(m, "access denied"), strings.Contains(m, "permission denied"):
		return ErrorKindUnavailable
	default:
		return ErrorKindUnknown
	}
}
