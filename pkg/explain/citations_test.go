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
package explain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/verity/pkg/fusion"
)

func evidenceWithFact(id, src, key, value string) fusion.EvidenceItem {
	return fusion.EvidenceItem{
		ID:         id,
		SourceName: src,
		SourceType: fusion.SourceStructured,
		Facts:      map[string]string{key: value},
		Locator:    fusion.Locator{Query: "SELECT SUM(revenue) FROM sales", Table: "sales"},
	}
}

func TestBuildCitations_EveryClaimCited(t *testing.T) {
	evidence := []fusion.EvidenceItem{
		evidenceWithFact("e1", "warehouse", "sum_revenue", "1200000"),
		evidenceWithFact("e2", "budget.xlsx", "headcount", "42"),
	}

	citations, err := BuildCitations(
		"Total revenue was $1.2M across a headcount of 42.",
		"What was total revenue and headcount?",
		evidence)
	require.NoError(t, err)

	require.Len(t, citations, 2)
	assert.Equal(t, "$1.2M", citations[0].Claim)
	assert.Equal(t, "e1", citations[0].EvidenceID)
	assert.Equal(t, "warehouse", citations[0].SourceName)
	assert.Contains(t, citations[0].Locator, "sales")
	assert.Equal(t, "e2", citations[1].EvidenceID)
}

// Fail closed: a number in the answer with no backing evidence rejects the
// entire answer, it does not ship with a gap in the citation list.
func TestBuildCitations_UncitedClaimFailsClosed(t *testing.T) {
	evidence := []fusion.EvidenceItem{
		evidenceWithFact("e1", "warehouse", "sum_revenue", "1200000"),
	}

	citations, err := BuildCitations(
		"Revenue was 1200000 and profit was 300000.",
		"What was revenue?",
		evidence)
	require.Error(t, err)
	assert.Nil(t, citations)

	var uncited *UncitedClaimError
	require.True(t, errors.As(err, &uncited))
	assert.Equal(t, "300000", uncited.Claim)
}

// Numbers the user asked about are echoes of the question, not claims.
func TestBuildCitations_QuestionNumbersExempt(t *testing.T) {
	evidence := []fusion.EvidenceItem{
		evidenceWithFact("e1", "warehouse", "order_count", "17"),
	}

	citations, err := BuildCitations(
		"In 2024 there were 17 qualifying orders.",
		"How many orders were there in 2024?",
		evidence)
	require.NoError(t, err)

	require.Len(t, citations, 1)
	assert.Equal(t, "17", citations[0].Claim)
}

func TestBuildCitations_NoNumbersNoCitations(t *testing.T) {
	citations, err := BuildCitations(
		"The data does not contain that information.",
		"What was revenue?",
		nil)
	require.NoError(t, err)
	assert.Empty(t, citations)
}

func TestBuildCitations_MatchesContentNumbers(t *testing.T) {
	evidence := []fusion.EvidenceItem{
		{
			ID:         "e1",
			SourceName: "annual.pdf",
			SourceType: fusion.SourceDocument,
			Content:    "Revenue reached $2.4M in fiscal 2023.",
			Locator:    fusion.Locator{Page: 3},
		},
	}

	citations, err := BuildCitations(
		"The report cites revenue of 2400000.",
		"What revenue does the report cite?",
		evidence)
	require.NoError(t, err)

	require.Len(t, citations, 1)
	assert.Equal(t, "page 3", citations[0].Locator)
}

func TestBuildCitations_ToleranceCoversRounding(t *testing.T) {
	evidence := []fusion.EvidenceItem{
		evidenceWithFact("e1", "warehouse", "avg_order", "1248.7"),
	}

	// 1250 vs 1248.7 is ~0.1% off: rounding, not a different number.
	citations, err := BuildCitations("The average order was about 1,250.", "average order?", evidence)
	require.NoError(t, err)
	assert.Len(t, citations, 1)
}

func TestParseClaim(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$1.2M", 1200000},
		{"1,200,000", 1200000},
		{"3.1 billion", 3100000000},
		{"4 million", 4000000},
		{"42%", 42},
		{"17", 17},
	}
	for _, tt := range tests {
		got, ok := parseClaim(tt.in)
		require.True(t, ok, "input %q", tt.in)
		assert.InDelta(t, tt.want, got, 0.001, "input %q", tt.in)
	}
}
