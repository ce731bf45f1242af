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
package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func structuredItem(id, src string, facts map[string]string) EvidenceItem {
	return EvidenceItem{
		ID:              id,
		SourceType:      SourceStructured,
		SourceName:      src,
		Facts:           facts,
		RelevanceScore:  0.8,
		ConfidenceScore: 0.9,
		Verification:    StatusVerified,
	}
}

func documentItem(id, src string, facts map[string]string) EvidenceItem {
	return EvidenceItem{
		ID:              id,
		SourceType:      SourceDocument,
		SourceName:      src,
		Facts:           facts,
		RelevanceScore:  0.5,
		ConfidenceScore: 0.6,
		Verification:    StatusUnverified,
	}
}

func TestEngine_FuseEmptySet(t *testing.T) {
	_, err := NewEngine().Fuse(nil)
	assert.ErrorIs(t, err, ErrNoEvidence)
}

func TestEngine_FuseAgreement(t *testing.T) {
	items := []EvidenceItem{
		structuredItem("e1", "warehouse", map[string]string{"total_revenue": "1200000"}),
		// Same value with formatting noise: 1.2M vs 1200000 agree.
		documentItem("e2", "annual.pdf", map[string]string{"Total Revenue": "$1.2M"}),
	}

	result, err := NewEngine().Fuse(items)
	require.NoError(t, err)

	assert.Empty(t, result.Conflicts)
	// The first claim in (SourceName, ID) order supplies the fused value.
	assert.Equal(t, "$1.2M", result.Facts["total_revenue"])
	assert.Len(t, result.Contributing, 2)
	assert.Greater(t, result.Score, 0.0)
}

// Fusion must be a pure function of the evidence set: every permutation of
// the same items produces the same facts, conflicts, and score.
func TestEngine_FuseDeterministicAcrossOrderings(t *testing.T) {
	a := structuredItem("e1", "warehouse", map[string]string{"total_revenue": "1500000"})
	b := documentItem("e2", "annual.pdf", map[string]string{"total_revenue": "1200000"})
	c := structuredItem("e3", "budget.xlsx", map[string]string{"headcount": "42"})

	orderings := [][]EvidenceItem{
		{a, b, c},
		{c, b, a},
		{b, a, c},
		{b, c, a},
	}

	engine := NewEngine()
	first, err := engine.Fuse(orderings[0])
	require.NoError(t, err)

	for _, items := range orderings[1:] {
		result, err := engine.Fuse(items)
		require.NoError(t, err)

		assert.Equal(t, first.Facts, result.Facts)
		assert.Equal(t, first.Conflicts, result.Conflicts)
		assert.Equal(t, first.MergedAnswer, result.MergedAnswer)
		assert.Equal(t, first.Score, result.Score)
	}
}

func TestEngine_VerifiedBeatsUnverified(t *testing.T) {
	items := []EvidenceItem{
		structuredItem("e1", "warehouse", map[string]string{"total_revenue": "1500000"}),
		documentItem("e2", "annual.pdf", map[string]string{"total_revenue": "1200000"}),
	}

	result, err := NewEngine().Fuse(items)
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	assert.True(t, conflict.Resolved)
	assert.Equal(t, "1500000", conflict.ResolvedValue)
	assert.Equal(t, "verified against source", conflict.Resolution)
	assert.Equal(t, "1500000", result.Facts["total_revenue"])

	// Both sides remain in the contributing set.
	assert.Len(t, result.Contributing, 2)
	assert.Len(t, conflict.Values, 2)
}

func TestEngine_FailedVerificationNeverWins(t *testing.T) {
	failed := structuredItem("e1", "warehouse", map[string]string{"total_revenue": "9999999"})
	failed.Verification = StatusFailed
	items := []EvidenceItem{
		failed,
		documentItem("e2", "annual.pdf", map[string]string{"total_revenue": "1200000"}),
	}

	result, err := NewEngine().Fuse(items)
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	assert.True(t, result.Conflicts[0].Resolved)
	assert.Equal(t, "1200000", result.Conflicts[0].ResolvedValue)
}

func TestEngine_HigherConfidenceWins(t *testing.T) {
	low := documentItem("e1", "draft.pdf", map[string]string{"headcount": "40"})
	high := documentItem("e2", "final.pdf", map[string]string{"headcount": "45"})
	high.ConfidenceScore = 0.8

	result, err := NewEngine().Fuse([]EvidenceItem{low, high})
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	assert.True(t, result.Conflicts[0].Resolved)
	assert.Equal(t, "45", result.Conflicts[0].ResolvedValue)
	assert.Equal(t, "higher source confidence", result.Conflicts[0].Resolution)
}

func TestEngine_StructuredBeatsDocumentForNumeric(t *testing.T) {
	doc := documentItem("e1", "annual.pdf", map[string]string{"units_sold": "900"})
	doc.ConfidenceScore = 0.9
	doc.Verification = StatusUnverified
	structured := structuredItem("e2", "warehouse", map[string]string{"units_sold": "850"})
	structured.Verification = StatusUnverified // same verification tier, same confidence

	result, err := NewEngine().Fuse([]EvidenceItem{doc, structured})
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	assert.True(t, result.Conflicts[0].Resolved)
	assert.Equal(t, "850", result.Conflicts[0].ResolvedValue)
	assert.Equal(t, "structured source preferred for numeric fact", result.Conflicts[0].Resolution)
}

// A qualitative disagreement between a structured and a document source,
// tied on verification and confidence, resolves to the document: narrative
// sources carry the context a column value lacks.
func TestEngine_DocumentBeatsStructuredForQualitative(t *testing.T) {
	structured := structuredItem("e1", "warehouse", map[string]string{"trend": "growing"})
	structured.Verification = StatusUnverified
	structured.ConfidenceScore = 0.6
	doc := documentItem("e2", "annual.pdf", map[string]string{"trend": "declining due to churn"})

	result, err := NewEngine().Fuse([]EvidenceItem{structured, doc})
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	assert.True(t, result.Conflicts[0].Resolved)
	assert.Equal(t, "declining due to churn", result.Conflicts[0].ResolvedValue)
	assert.Equal(t, "document source preferred for qualitative fact", result.Conflicts[0].Resolution)
	assert.Equal(t, "declining due to churn", result.Facts["trend"])
}

// Two equally verified, equally confident structured sources that disagree
// stay unresolved: the engine reports the disagreement instead of silently
// picking a side, and the score pays the penalty.
func TestEngine_TrueTieStaysUnresolved(t *testing.T) {
	items := []EvidenceItem{
		structuredItem("e1", "warehouse", map[string]string{"total_revenue": "1500000"}),
		structuredItem("e2", "budget.xlsx", map[string]string{"total_revenue": "1400000"}),
	}

	engine := NewEngine()
	result, err := engine.Fuse(items)
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	assert.False(t, result.Conflicts[0].Resolved)
	assert.Equal(t, 1, result.Unresolved())
	_, fused := result.Facts["total_revenue"]
	assert.False(t, fused, "an unresolved fact must not be fused")

	// Same items without the conflict score strictly higher.
	clean, err := engine.Fuse([]EvidenceItem{items[0]})
	require.NoError(t, err)
	assert.Greater(t, clean.Score, result.Score)
}

// An unresolved fact must not vanish from the merged answer: both values
// surface with their sources and an explicit conflict note.
func TestEngine_UnresolvedConflictSurfacesBothValues(t *testing.T) {
	items := []EvidenceItem{
		structuredItem("e1", "warehouse", map[string]string{"total_sales": "685,449"}),
		structuredItem("e2", "budget.xlsx", map[string]string{"total_sales": "700,000"}),
	}

	result, err := NewEngine().Fuse(items)
	require.NoError(t, err)
	require.Equal(t, 1, result.Unresolved())

	assert.Contains(t, result.MergedAnswer, "conflicting sources")
	assert.Contains(t, result.MergedAnswer, "685,449 per warehouse")
	assert.Contains(t, result.MergedAnswer, "700,000 per budget.xlsx")
}

func TestEngine_ScoreClamped(t *testing.T) {
	// Many unresolved conflicts cannot push the score below zero.
	var items []EvidenceItem
	for i := 0; i < 10; i++ {
		key := string(rune('a' + i))
		x := structuredItem("x"+string(rune('0'+i)), "warehouse", map[string]string{key: "1"})
		y := structuredItem("y"+string(rune('0'+i)), "budget.xlsx", map[string]string{key: "2"})
		items = append(items, x, y)
	}

	result, err := NewEngine().Fuse(items)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 100.0)
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1200000", 1200000, true},
		{"1,200,000", 1200000, true},
		{"$1.2M", 1200000, true},
		{"3.5k", 3500, true},
		{"2B", 2000000000, true},
		{"42%", 42, true},
		{"n/a", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumeric(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 0.001, "input %q", tt.in)
		}
	}
}

func TestValuesAgree(t *testing.T) {
	assert.True(t, valuesAgree("1200000", "$1.2M"))
	assert.True(t, valuesAgree("100.0", "100.4")) // within relative tolerance
	assert.False(t, valuesAgree("100", "102"))
	assert.True(t, valuesAgree(" EMEA ", "emea"))
	assert.False(t, valuesAgree("EMEA", "APAC"))
}

func TestNormalizeFactKey(t *testing.T) {
	assert.Equal(t, "total_revenue", normalizeFactKey("Total Revenue"))
	assert.Equal(t, "total_revenue", normalizeFactKey("total_revenue"))
	assert.Equal(t, "total_revenue", normalizeFactKey("TOTAL-REVENUE"))
}

func TestChain_AppendOnly(t *testing.T) {
	chain := NewChain()
	chain.Add(EvidenceItem{ID: "e1", SourceName: "warehouse"})
	chain.Add(EvidenceItem{ID: "e2", SourceName: "budget.xlsx"})

	assert.Equal(t, 2, chain.Len())
	require.NotNil(t, chain.ByID("e1"))
	assert.Nil(t, chain.ByID("missing"))

	// Mutating the returned slice must not affect the chain.
	items := chain.Items()
	items[0].ID = "tampered"
	assert.Equal(t, "e1", chain.Items()[0].ID)
}
