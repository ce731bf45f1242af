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
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrNoEvidence is returned when fusion is asked to merge an empty evidence
// set. An answer cannot be synthesized from nothing; callers must fail the
// query rather than let the LLM fill the gap.
var ErrNoEvidence = errors.New("fusion: no evidence to merge")

// numericTolerance is the relative difference below which two numeric fact
// values are considered equal (unit rounding, not disagreement).
const numericTolerance = 0.005

// Weights configures how evidence scores combine into the fusion score.
type Weights struct {
	// Confidence weights the mean confidence of contributing evidence.
	Confidence float64 `json:"confidence" mapstructure:"confidence"`

	// Relevance weights the mean relevance of contributing evidence.
	Relevance float64 `json:"relevance" mapstructure:"relevance"`

	// ConflictPenalty is subtracted from the score (0-100 scale) per
	// unresolved conflict.
	ConflictPenalty float64 `json:"conflict_penalty" mapstructure:"conflict_penalty"`
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Confidence:      0.7,
		Relevance:       0.3,
		ConflictPenalty: 15,
	}
}

// Conflict records a disagreement between sources on one fact.
type Conflict struct {
	// Key is the fact the sources disagree on.
	Key string `json:"key"`

	// Values are the disagreeing claims, ordered by (SourceName, EvidenceID).
	Values []ConflictValue `json:"values"`

	// Resolved reports whether the resolution rules picked a winner.
	Resolved bool `json:"resolved"`

	// ResolvedValue is the winning value when Resolved.
	ResolvedValue string `json:"resolved_value,omitempty"`

	// Resolution names the rule that decided, for the explanation log.
	Resolution string `json:"resolution,omitempty"`
}

// ConflictValue is one side of a conflict.
type ConflictValue struct {
	EvidenceID string     `json:"evidence_id"`
	SourceName string     `json:"source_name"`
	SourceType SourceType `json:"source_type"`
	Value      string     `json:"value"`
}

// Result is the outcome of merging an evidence set.
type Result struct {
	// MergedAnswer is the fused factual content: resolved fact values plus
	// the contributing evidence summaries.
	MergedAnswer string `json:"merged_answer"`

	// Facts are the fused fact values after conflict resolution.
	Facts map[string]string `json:"facts,omitempty"`

	// Contributing lists every evidence item that fed the answer, including
	// both sides of any conflict.
	Contributing []EvidenceItem `json:"contributing"`

	// Conflicts lists the detected disagreements.
	Conflicts []Conflict `json:"conflicts,omitempty"`

	// Score is the fusion confidence on a 0-100 scale.
	Score float64 `json:"score"`
}

// Unresolved returns the number of conflicts the rules could not decide.
func (r *Result) Unresolved() int {
	n := 0
	for _, c := range r.Conflicts {
		if !c.Resolved {
			n++
		}
	}
	return n
}

// Engine merges evidence sets. Fusion is a pure function of the evidence
// set: the same items produce the same Result regardless of arrival order.
type Engine struct {
	weights Weights
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithWeights overrides the scoring weights.
func WithWeights(w Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a fusion engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		weights: DefaultWeights(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fuse merges the evidence set into a single answer. Returns ErrNoEvidence
// for an empty set.
func (e *Engine) Fuse(items []EvidenceItem) (*Result, error) {
	if len(items) == 0 {
		return nil, ErrNoEvidence
	}

	ordered := sortedCopy(items)
	conflicts, facts := e.detectConflicts(ordered)

	result := &Result{
		Facts:        facts,
		Contributing: ordered,
		Conflicts:    conflicts,
		MergedAnswer: renderAnswer(ordered, facts, conflicts),
	}
	result.Score = e.score(ordered, result.Unresolved())

	e.logger.Debug("evidence fused",
		zap.Int("items", len(ordered)),
		zap.Int("conflicts", len(conflicts)),
		zap.Int("unresolved", result.Unresolved()),
		zap.Float64("score", result.Score))

	return result, nil
}

// claim pairs an evidence item with the value it asserts for one fact.
type claim struct {
	item  *EvidenceItem
	value string
}

// detectConflicts compares fact claims across items and resolves
// disagreements. Returns the conflicts and the fused fact map.
func (e *Engine) detectConflicts(items []EvidenceItem) ([]Conflict, map[string]string) {
	claims := map[string][]claim{}
	var keys []string

	for i := range items {
		for key, value := range items[i].Facts {
			k := normalizeFactKey(key)
			if _, seen := claims[k]; !seen {
				keys = append(keys, k)
			}
			claims[k] = append(claims[k], claim{item: &items[i], value: value})
		}
	}
	sort.Strings(keys)

	facts := map[string]string{}
	var conflicts []Conflict

	for _, key := range keys {
		cs := claims[key]

		agreed := true
		for i := 1; i < len(cs); i++ {
			if !valuesAgree(cs[0].value, cs[i].value) {
				agreed = false
				break
			}
		}
		if agreed {
			facts[key] = cs[0].value
			continue
		}

		conflict := Conflict{Key: key}
		for _, c := range cs {
			conflict.Values = append(conflict.Values, ConflictValue{
				EvidenceID: c.item.ID,
				SourceName: c.item.SourceName,
				SourceType: c.item.SourceType,
				Value:      c.value,
			})
		}

		if winner, rule := resolve(cs); winner != nil {
			conflict.Resolved = true
			conflict.ResolvedValue = winner.value
			conflict.Resolution = rule
			facts[key] = winner.value
		}
		conflicts = append(conflicts, conflict)
	}

	return conflicts, facts
}

// resolve applies the resolution rules in order:
//  1. verified evidence beats unverified; failed evidence never wins
//  2. higher confidence wins
//  3. for numeric facts, structured evidence beats document evidence;
//     for qualitative facts, document evidence beats structured
//
// Candidates are already in (SourceName, ID) order, so ties fall to the
// lexicographically first source and the outcome stays deterministic — but a
// pure tie on every rule is reported unresolved rather than silently picked.
func resolve(cs []claim) (*claim, string) {
	eligible := make([]int, 0, len(cs))
	for i := range cs {
		if cs[i].item.Verification != StatusFailed {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return nil, ""
	}
	if len(eligible) == 1 {
		return &cs[eligible[0]], "only candidate passing verification"
	}

	verified := make([]int, 0, len(eligible))
	for _, i := range eligible {
		if cs[i].item.Verification == StatusVerified {
			verified = append(verified, i)
		}
	}
	if len(verified) == 1 {
		return &cs[verified[0]], "verified against source"
	}
	if len(verified) > 1 {
		eligible = verified
	}

	best := eligible[0]
	distinct := false
	for _, i := range eligible[1:] {
		if cs[i].item.ConfidenceScore > cs[best].item.ConfidenceScore {
			best = i
			distinct = true
		} else if cs[i].item.ConfidenceScore < cs[best].item.ConfidenceScore {
			distinct = true
		}
	}
	if distinct {
		return &cs[best], "higher source confidence"
	}

	if isNumeric(cs[eligible[0]].value) {
		structured := make([]int, 0, len(eligible))
		for _, i := range eligible {
			if cs[i].item.SourceType == SourceStructured {
				structured = append(structured, i)
			}
		}
		if len(structured) > 0 && len(structured) < len(eligible) {
			return &cs[structured[0]], "structured source preferred for numeric fact"
		}
	} else {
		// Qualitative facts carry context a database column lacks; the
		// narrative source wins the tie.
		document := make([]int, 0, len(eligible))
		for _, i := range eligible {
			if cs[i].item.SourceType == SourceDocument {
				document = append(document, i)
			}
		}
		if len(document) > 0 && len(document) < len(eligible) {
			return &cs[document[0]], "document source preferred for qualitative fact"
		}
	}

	return nil, ""
}

// score computes the 0-100 fusion score.
func (e *Engine) score(items []EvidenceItem, unresolved int) float64 {
	var conf, rel float64
	for _, item := range items {
		conf += item.ConfidenceScore
		rel += item.RelevanceScore
	}
	n := float64(len(items))
	score := (e.weights.Confidence*(conf/n) + e.weights.Relevance*(rel/n)) * 100
	score -= e.weights.ConflictPenalty * float64(unresolved)
	return math.Max(0, math.Min(100, score))
}

// renderAnswer assembles the fused factual content: resolved facts first,
// then every side of any unresolved conflict, then each contributing
// summary. An unresolved fact is never dropped; both values surface with
// their sources and an explicit conflict note.
func renderAnswer(items []EvidenceItem, facts map[string]string, conflicts []Conflict) string {
	var b strings.Builder

	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, facts[k])
	}

	for _, c := range conflicts {
		if c.Resolved {
			continue
		}
		sides := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			sides = append(sides, fmt.Sprintf("%s per %s", v.Value, v.SourceName))
		}
		fmt.Fprintf(&b, "%s: conflicting sources report %s\n", c.Key, strings.Join(sides, " vs "))
	}

	for _, item := range items {
		if item.Content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s] %s", item.SourceName, item.Content)
	}
	return b.String()
}

// valuesAgree reports whether two fact values are the same claim. Numeric
// values compare with a small relative tolerance; strings compare
// case-insensitively after trimming.
func valuesAgree(a, b string) bool {
	fa, oka := parseNumeric(a)
	fb, okb := parseNumeric(b)
	if oka && okb {
		if fa == fb {
			return true
		}
		scale := math.Max(math.Abs(fa), math.Abs(fb))
		if scale == 0 {
			return true
		}
		return math.Abs(fa-fb)/scale <= numericTolerance
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func isNumeric(v string) bool {
	_, ok := parseNumeric(v)
	return ok
}

// parseNumeric parses values like "1,200,000", "$1.2M", "42%".
func parseNumeric(v string) (float64, bool) {
	s := strings.TrimSpace(v)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")

	mult := 1.0
	switch {
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "m"):
		mult = 1_000_000
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "K"), strings.HasSuffix(s, "k"):
		mult = 1_000
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "B"), strings.HasSuffix(s, "b"):
		mult = 1_000_000_000
		s = s[:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f * mult, true
}

// normalizeFactKey lowercases and underscores a fact key so "Total Revenue"
// and "total_revenue" collide.
func normalizeFactKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.Join(strings.FieldsFunc(k, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}
