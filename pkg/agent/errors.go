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
package agent

import (
	"errors"
	"fmt"

	"github.com/teradata-labs/verity/pkg/source"
)

// FailureKind classifies why a session ended without an answer.
type FailureKind string

const (
	// FailureSchemaMismatch: the query referenced nonexistent identifiers
	// and repair could not recover.
	FailureSchemaMismatch FailureKind = "SCHEMA_MISMATCH"

	// FailureSecurityViolation: a mutation was attempted. Never repaired.
	FailureSecurityViolation FailureKind = "SECURITY_VIOLATION"

	// FailureLLMProvider: the provider failed even after the single retry.
	FailureLLMProvider FailureKind = "LLM_PROVIDER_ERROR"

	// FailureSourceUnavailable: connection or credential failure.
	FailureSourceUnavailable FailureKind = "DATA_SOURCE_UNAVAILABLE"

	// FailureCycleLimit: the reasoning loop hit its cycle budget.
	FailureCycleLimit FailureKind = "CYCLE_LIMIT_EXCEEDED"

	// FailureNoEvidence: the model tried to answer without any successful
	// tool result backing it.
	FailureNoEvidence FailureKind = "NO_EVIDENCE"

	// FailureTimeout: the session deadline expired.
	FailureTimeout FailureKind = "TIMEOUT"

	// FailureUncitedClaim: the answer carried a numeric claim that no
	// evidence supports.
	FailureUncitedClaim FailureKind = "UNCITED_CLAIM"
)

// Failure is a terminal session error.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// NewFailure builds a terminal failure.
func NewFailure(kind FailureKind, format string, args ...interface{}) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FailureOf extracts the FailureKind from err, or empty string.
func FailureOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// failureFromSource maps a source error kind to a terminal failure kind.
func failureFromSource(kind source.ErrorKind) FailureKind {
	switch kind {
	case source.ErrorKindSecurityViolation:
		return FailureSecurityViolation
	case source.ErrorKindUnavailable:
		return FailureSourceUnavailable
	case source.ErrorKindTimeout:
		return FailureTimeout
	default:
		return FailureSchemaMismatch
	}
}
