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
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

const (
	// maxPassagesPerDocument bounds how many passages one document can
	// contribute to an evidence set.
	maxPassagesPerDocument = 3

	// documentConfidence is the baseline confidence for document evidence.
	// Prose is read once and never re-verified against a system of record.
	documentConfidence = 0.6
)

// factPattern matches "Some Metric: $1.2M" style claims in prose.
var factPattern = regexp.MustCompile(`([A-Za-z][A-Za-z ]{2,40}?)\s*(?::|=|of|was|is)\s*(\$?\d[\d,.]*\s?[MKBmkb]?%?)`)

// ExtractPDFEvidence reads a PDF and returns passages relevant to the
// question as document evidence, each pinned to its page. Irrelevant pages
// contribute nothing; a document with no matching passage yields an empty
// slice, not an error.
func ExtractPDFEvidence(path, sourceName, question string) ([]EvidenceItem, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	keywords := questionKeywords(question)

	type scored struct {
		page    int
		text    string
		matches int
	}
	var candidates []scored

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		matches := keywordMatches(text, keywords)
		if matches == 0 {
			continue
		}
		candidates = append(candidates, scored{page: i, text: text, matches: matches})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].matches != candidates[j].matches {
			return candidates[i].matches > candidates[j].matches
		}
		return candidates[i].page < candidates[j].page
	})
	if len(candidates) > maxPassagesPerDocument {
		candidates = candidates[:maxPassagesPerDocument]
	}

	var items []EvidenceItem
	for _, c := range candidates {
		relevance := float64(c.matches) / float64(max(len(keywords), 1))
		if relevance > 1 {
			relevance = 1
		}
		items = append(items, EvidenceItem{
			ID:              uuid.New().String(),
			SourceType:      SourceDocument,
			SourceName:      sourceName,
			Content:         truncatePassage(c.text, 500),
			Facts:           ExtractFacts(c.text),
			RelevanceScore:  relevance,
			ConfidenceScore: documentConfidence,
			Verification:    StatusUnverified,
			Locator:         Locator{Page: c.page},
			CollectedAt:     time.Now(),
		})
	}
	return items, nil
}

// ExtractFacts pulls "metric: value" claims out of prose. Keys are
// normalized with the same rules conflict detection uses.
func ExtractFacts(text string) map[string]string {
	matches := factPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	facts := make(map[string]string, len(matches))
	for _, m := range matches {
		key := normalizeFactKey(m[1])
		if key == "" {
			continue
		}
		facts[key] = strings.TrimSpace(m[2])
	}
	if len(facts) == 0 {
		return nil
	}
	return facts
}

// questionKeywords extracts the content words of a question.
func questionKeywords(question string) []string {
	stop := map[string]bool{
		"the": true, "a": true, "an": true, "of": true, "in": true,
		"for": true, "what": true, "which": true, "how": true, "many": true,
		"much": true, "is": true, "are": true, "was": true, "were": true,
		"and": true, "or": true, "to": true, "by": true, "with": true,
		"per": true, "on": true, "from": true,
	}
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		w = strings.Trim(w, "?.,;:!\"'")
		if len(w) < 3 || stop[w] {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}

func keywordMatches(text string, keywords []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			n++
		}
	}
	return n
}

func truncatePassage(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
