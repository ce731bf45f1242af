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
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/teradata-labs/verity/pkg/fusion"
	"github.com/teradata-labs/verity/pkg/source"
)

const (
	// structuredConfidence is the confidence assigned to evidence read
	// directly from a data source.
	structuredConfidence = 0.9

	// structuredRelevance is the baseline relevance for query results; the
	// model chose the query, so the result is presumed on-topic.
	structuredRelevance = 0.8

	// maxContentRows bounds how many rows the evidence summary renders.
	maxContentRows = 5

	// maxFactGroups bounds per-group fact extraction from grouped results.
	maxFactGroups = 10
)

// mintEvidence converts a successful query result into an evidence item.
// This is the only path that creates structured evidence; the loop never
// mints evidence from LLM text.
func mintEvidence(sourceName string, result *source.QueryResult) fusion.EvidenceItem {
	return fusion.EvidenceItem{
		ID:              uuid.New().String(),
		SourceType:      fusion.SourceStructured,
		SourceName:      sourceName,
		Content:         renderResult(result),
		Facts:           extractFacts(result),
		RelevanceScore:  structuredRelevance,
		ConfidenceScore: structuredConfidence,
		Verification:    fusion.StatusVerified,
		Locator: fusion.Locator{
			Query: result.Query,
			Table: result.Table,
		},
		CollectedAt: time.Now(),
	}
}

// renderResult produces the human-readable evidence content.
func renderResult(result *source.QueryResult) string {
	var b strings.Builder

	if result.Aggregate != "" && len(result.Rows) == 1 && len(result.Columns) == 1 {
		fmt.Fprintf(&b, "%s = %v", result.Aggregate, result.Rows[0][result.Columns[0]])
		if result.Table != "" {
			fmt.Fprintf(&b, " (from %s)", result.Table)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "%d row(s)", result.RowCount)
	if result.Table != "" {
		fmt.Fprintf(&b, " from %s", result.Table)
	}
	if result.Truncated {
		b.WriteString(" (truncated preview)")
	}

	n := len(result.Rows)
	if n > maxContentRows {
		n = maxContentRows
	}
	for i := 0; i < n; i++ {
		row, err := json.Marshal(result.Rows[i])
		if err != nil {
			continue
		}
		b.WriteString("\n")
		b.Write(row)
	}
	if len(result.Rows) > n {
		fmt.Fprintf(&b, "\n... %d more", len(result.Rows)-n)
	}
	return b.String()
}

// extractFacts derives fact claims from a query result so fusion can compare
// them across sources. Aggregates yield one fact keyed by the aggregate
// expression; grouped aggregates yield one per group; single-row results
// yield one per numeric column.
func extractFacts(result *source.QueryResult) map[string]string {
	facts := map[string]string{}

	switch {
	case result.Aggregate != "" && len(result.Columns) == 1 && len(result.Rows) == 1:
		key := factKey(result.Aggregate)
		facts[key] = fmt.Sprintf("%v", result.Rows[0][result.Columns[0]])

	case result.Aggregate != "" && len(result.Columns) == 2 && len(result.Rows) <= maxFactGroups:
		// Grouped aggregate: columns are [group, aggregate].
		groupCol, aggCol := result.Columns[0], result.Columns[1]
		for _, row := range result.Rows {
			key := factKey(fmt.Sprintf("%s %v", aggCol, row[groupCol]))
			facts[key] = fmt.Sprintf("%v", row[aggCol])
		}

	case len(result.Rows) == 1:
		for _, col := range result.Columns {
			v := result.Rows[0][col]
			if !isNumericValue(v) {
				continue
			}
			facts[factKey(col)] = fmt.Sprintf("%v", v)
		}
	}

	if len(facts) == 0 {
		return nil
	}
	return facts
}

// factKey normalizes an expression like "SUM(Revenue)" or "Total Revenue"
// into a comparable key ("sum_revenue", "total_revenue") shared across
// source kinds.
func factKey(s string) string {
	var parts []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			parts = append(parts, strings.ToLower(b.String()))
			b.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return strings.Join(parts, "_")
}

func isNumericValue(v interface{}) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}
