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

// Package fusion merges evidence gathered from heterogeneous sources into a
// single answer, detecting and deterministically resolving conflicts between
// sources along the way.
package fusion

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// SourceType distinguishes where a piece of evidence came from.
type SourceType string

const (
	// SourceStructured is evidence from a query against a relational or
	// tabular source.
	SourceStructured SourceType = "structured"

	// SourceDocument is evidence extracted from an unstructured document.
	SourceDocument SourceType = "document"
)

// VerificationStatus records whether an evidence item was checked against
// its origin.
type VerificationStatus string

const (
	// StatusVerified: the value was re-read from the source and matched.
	StatusVerified VerificationStatus = "verified"

	// StatusUnverified: taken from a single read, not cross-checked.
	StatusUnverified VerificationStatus = "unverified"

	// StatusFailed: verification was attempted and the value did not match.
	StatusFailed VerificationStatus = "failed"
)

// EvidenceItem is one piece of evidence. Items are minted only from
// successful tool results; there is no constructor that fabricates evidence
// from LLM text.
type EvidenceItem struct {
	// ID uniquely identifies the item within a session.
	ID string `json:"id"`

	// SourceType is structured or document.
	SourceType SourceType `json:"source_type"`

	// SourceName is the data source or document the evidence came from.
	SourceName string `json:"source_name"`

	// Content is a human-readable rendering of the evidence (result summary
	// or document passage).
	Content string `json:"content"`

	// Facts are the extracted key/value claims this item supports, keyed by
	// a normalized metric name. Conflict detection compares Facts across
	// items; an item with no Facts can still contribute context but never
	// conflicts.
	Facts map[string]string `json:"facts,omitempty"`

	// RelevanceScore estimates how relevant the evidence is to the question,
	// in [0, 1].
	RelevanceScore float64 `json:"relevance_score"`

	// ConfidenceScore estimates how reliable the evidence is, in [0, 1].
	ConfidenceScore float64 `json:"confidence_score"`

	// Verification records whether the value was cross-checked.
	Verification VerificationStatus `json:"verification"`

	// Locator pins the evidence to its origin: the executed query for
	// structured evidence, a page reference for documents.
	Locator Locator `json:"locator"`

	// CollectedAt is when the evidence was gathered.
	CollectedAt time.Time `json:"collected_at"`
}

// Locator pins evidence to a place in its source.
type Locator struct {
	// Query is the executed query or computation expression (structured).
	Query string `json:"query,omitempty"`

	// Table is the table or sheet the result came from (structured).
	Table string `json:"table,omitempty"`

	// Page is the 1-based page number (document), 0 when not applicable.
	Page int `json:"page,omitempty"`
}

// String renders the locator for explanation output.
func (l Locator) String() string {
	switch {
	case l.Page > 0:
		return fmt.Sprintf("page %d", l.Page)
	case l.Table != "" && l.Query != "":
		return fmt.Sprintf("table %s: %s", l.Table, l.Query)
	case l.Query != "":
		return l.Query
	case l.Table != "":
		return fmt.Sprintf("table %s", l.Table)
	default:
		return ""
	}
}

// Chain is an append-only ledger of evidence for one session.
// Thread-safe: the loop and verification goroutines may append concurrently.
type Chain struct {
	mu    sync.RWMutex
	items []EvidenceItem
}

// NewChain creates an empty evidence chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends an item. Items are never removed or mutated after appending.
func (c *Chain) Add(item EvidenceItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, item)
}

// Items returns a copy of the chain in insertion order.
func (c *Chain) Items() []EvidenceItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]EvidenceItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of items.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// ByID returns the item with the given ID, or nil.
func (c *Chain) ByID(id string) *EvidenceItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.items {
		if c.items[i].ID == id {
			item := c.items[i]
			return &item
		}
	}
	return nil
}

// sortedCopy returns the items ordered by (SourceName, ID) so downstream
// processing is independent of collection order.
func sortedCopy(items []EvidenceItem) []EvidenceItem {
	out := make([]EvidenceItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SourceName != out[j].SourceName {
			return out[i].SourceName < out[j].SourceName
		}
		return out[i].ID < out[j].ID
	})
	return out
}
