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
	"fmt"
	"strings"

	"github.com/teradata-labs/verity/pkg/source"
)

// systemPrompt builds the loop's system message. It names the available
// sources, sets the one-tool-per-turn protocol, and forbids answering from
// anything but tool results.
func systemPrompt(sources []source.DataSource) string {
	var b strings.Builder

	b.WriteString(`You are a data analyst answering questions strictly from the data sources listed below. You must ground every value in your answer in a tool result; never state a number you did not read from a source.

Protocol:
1. Introspect a source's schema before querying it.
2. Call at most one tool per turn, then wait for its result.
3. Use only table and column names that appear in the introspected schema.
4. Queries are read-only. Never attempt INSERT, UPDATE, DELETE, DROP, ALTER, TRUNCATE, or any other mutation.
5. When a query fails, you will receive the exact error and the authoritative schema; respond with a complete corrected query.
6. If the data cannot answer the question, say so; do not guess.
7. When you have gathered enough evidence, answer in plain prose with the values you read.

Available data sources:
`)

	for _, src := range sources {
		switch src.Kind() {
		case source.KindRelational:
			fmt.Fprintf(&b, "- %s (relational database; tools: %s, %s)\n",
				src.Name(), ToolIntrospectSchema, ToolExecuteQuery)
		case source.KindTabular:
			fmt.Fprintf(&b, "- %s (tabular file; tools: %s, %s)\n",
				src.Name(), ToolInspectWorkbook, ToolComputeDataFrame)
		}
	}

	return b.String()
}
