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

// Package llm provides provider plumbing shared by the concrete clients:
// error classification, the single-retry wrapper, and token accounting.
package llm

import (
	"errors"
	"fmt"
)

// ProviderError is a failure from an LLM provider: network error, non-2xx
// status, or an unparseable response.
type ProviderError struct {
	// Provider is the provider name ("anthropic", "ollama").
	Provider string

	// StatusCode is the HTTP status, 0 for transport-level failures.
	StatusCode int

	// Message is the raw provider error body or transport error.
	Message string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s provider error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

// IsProviderError reports whether err is (or wraps) a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
