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
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/teradata-labs/verity/pkg/fusion"
)

// ErrUncitedClaim is wrapped into the error returned when a numeric claim in
// the answer has no supporting evidence. Citation tracking fails closed: an
// answer that cannot account for its numbers is rejected, not shipped.
type UncitedClaimError struct {
	// Claim is the unsupported numeric claim as it appears in the answer.
	Claim string
}

func (e *UncitedClaimError) Error() string {
	return fmt.Sprintf("numeric claim %q in the answer is not supported by any evidence", e.Claim)
}

// Citation ties one numeric claim in the answer to the evidence supporting
// it.
type Citation struct {
	// Claim is the numeric value as it appears in the answer.
	Claim string `json:"claim"`

	// EvidenceID identifies the supporting evidence item.
	EvidenceID string `json:"evidence_id"`

	// SourceName is the supporting source.
	SourceName string `json:"source_name"`

	// Locator pins the claim inside the source.
	Locator string `json:"locator"`
}

// numberPattern matches numeric claims: plain numbers, currency, magnitude
// suffixes, percentages.
var numberPattern = regexp.MustCompile(`\$?\d[\d,]*(?:\.\d+)?\s?(?:[MKBmkb](?:illion)?)?%?`)

// citationTolerance is the relative slack when matching a claimed number to
// an evidence value (formatting and rounding, not disagreement).
const citationTolerance = 0.005

// BuildCitations extracts every numeric claim from the answer and links each
// to supporting evidence. Numbers that already appear in the question are
// echoes, not claims, and are exempt. Any remaining number with no backing
// evidence fails the whole answer with an UncitedClaimError.
func BuildCitations(answer, question string, evidence []fusion.EvidenceItem) ([]Citation, error) {
	claims := numberPattern.FindAllString(answer, -1)
	if len(claims) == 0 {
		return nil, nil
	}

	questionNumbers := map[float64]bool{}
	for _, n := range numberPattern.FindAllString(question, -1) {
		if f, ok := parseClaim(n); ok {
			questionNumbers[f] = true
		}
	}

	var citations []Citation
	seen := map[string]bool{}

	for _, claim := range claims {
		if seen[claim] {
			continue
		}
		seen[claim] = true

		value, ok := parseClaim(claim)
		if !ok {
			continue
		}
		if questionNumbers[value] {
			continue
		}

		item := supportingEvidence(value, evidence)
		if item == nil {
			return nil, &UncitedClaimError{Claim: claim}
		}
		citations = append(citations, Citation{
			Claim:      claim,
			EvidenceID: item.ID,
			SourceName: item.SourceName,
			Locator:    item.Locator.String(),
		})
	}

	return citations, nil
}

// supportingEvidence finds the first evidence item whose facts or content
// contain the claimed value. Evidence is scanned in slice order, which is
// already deterministic after fusion.
func supportingEvidence(value float64, evidence []fusion.EvidenceItem) *fusion.EvidenceItem {
	for i := range evidence {
		item := &evidence[i]
		for _, v := range item.Facts {
			if f, ok := parseClaim(v); ok && numbersMatch(value, f) {
				return item
			}
		}
		for _, n := range numberPattern.FindAllString(item.Content, -1) {
			if f, ok := parseClaim(n); ok && numbersMatch(value, f) {
				return item
			}
		}
	}
	return nil
}

func numbersMatch(a, b float64) bool {
	if a == b {
		return true
	}
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale == 0 {
		return true
	}
	return math.Abs(a-b)/scale <= citationTolerance
}

// parseClaim parses a formatted numeric claim into a comparable float.
func parseClaim(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	mult := 1.0
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "billion"):
		mult = 1_000_000_000
		s = s[:len(s)-len("billion")]
	case strings.HasSuffix(lower, "million"):
		mult = 1_000_000
		s = s[:len(s)-len("million")]
	case strings.HasSuffix(lower, "b"):
		mult = 1_000_000_000
		s = s[:len(s)-1]
	case strings.HasSuffix(lower, "m"):
		mult = 1_000_000
		s = s[:len(s)-1]
	case strings.HasSuffix(lower, "k"):
		mult = 1_000
		s = s[:len(s)-1]
	}
	s = strings.TrimSpace(s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f * mult, true
}
