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
	"fmt"
	"strings"
	"unicode"
)

// mutationVerbs are rejected anywhere in a query's token set, not only in
// statement position; subqueries and CTE bodies are covered by the same scan.
var mutationVerbs = map[string]bool{
	"insert":   true,
	"update":   true,
	"delete":   true,
	"drop":     true,
	"alter":    true,
	"truncate": true,
	"create":   true,
	"merge":    true,
	"replace":  true,
	"grant":    true,
	"revoke":   true,
	"exec":     true,
	"execute":  true,
	"call":     true,
	"attach":   true,
	"vacuum":   true,
	"pragma":   true,
}

// GuardReadOnly rejects any SQL statement whose token set includes a mutation
// verb, and anything that is not a single SELECT/WITH statement.
//
// This is a hard security gate applied inside the adapter, independent of
// upstream validation: first-pass queries and repaired queries pass through
// the identical check.
func GuardReadOnly(query string) error {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return NewError(ErrorKindSyntax, "empty query")
	}

	if first := tokens[0]; first != "select" && first != "with" {
		return NewError(ErrorKindSecurityViolation,
			fmt.Sprintf("only SELECT statements are permitted, got %q", strings.ToUpper(first)))
	}

	for _, tok := range tokens {
		if mutationVerbs[tok] {
			return NewError(ErrorKindSecurityViolation,
				fmt.Sprintf("mutation verb %q is not permitted on a read-only source", strings.ToUpper(tok)))
		}
	}

	if strings.Count(stripLiterals(query), ";") > 1 ||
		(strings.Contains(stripLiterals(query), ";") && !strings.HasSuffix(strings.TrimSpace(query), ";")) {
		return NewError(ErrorKindSecurityViolation, "multiple statements are not permitted")
	}

	return nil
}

// tokenize lowercases the query and splits it into identifier/keyword tokens,
// skipping string literals so a value like 'drop by Q4' cannot false-positive
// and a real verb cannot hide inside concatenation tricks.
func tokenize(query string) []string {
	stripped := stripLiterals(query)
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, strings.ToLower(b.String()))
			b.Reset()
		}
	}
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// stripLiterals blanks out single- and double-quoted literal contents.
func stripLiterals(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	var quote rune
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			b.WriteRune(' ')
		case r == '\'' || r == '"':
			quote = r
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
