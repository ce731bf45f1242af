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
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/verity/internal/log"
	"github.com/teradata-labs/verity/pkg/audit"
	"github.com/teradata-labs/verity/pkg/engine"
)

var (
	queryTenant  string
	queryDocs    []string
	queryStream  bool
	queryAsJSON  bool
	queryExplain bool
)

var queryCmd = &cobra.Command{
	Use:   "query \"<question>\"",
	Short: "Ask a question over the configured sources",
	Long: `Run one question through the reasoning engine and print the verified
answer with its citations and confidence.

Examples:
  verity query "What was total revenue in Q3?"
  verity query --stream "Which region grew fastest year over year?"
  verity query --doc reports/annual.pdf "What headcount does the report cite?"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryTenant, "tenant", "default", "tenant whose credentials and audit trail to use")
	queryCmd.Flags().StringArrayVar(&queryDocs, "doc", nil, "PDF document to include as evidence (repeatable)")
	queryCmd.Flags().BoolVar(&queryStream, "stream", false, "print reasoning steps as they happen")
	queryCmd.Flags().BoolVar(&queryAsJSON, "json", false, "print the full answer bundle as JSON")
	queryCmd.Flags().BoolVar(&queryExplain, "explain", false, "print the explanation log after the answer")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("no sources configured; add a sources section to verity.yaml")
	}

	opts := []engine.Option{engine.WithLogger(log.Logger())}
	if cfg.Audit.Path != "" {
		store, err := audit.Open(cfg.Audit.Path, log.Logger())
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, engine.WithAuditStore(store))
	}

	eng, err := engine.New(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := engine.Request{
		TenantID:  queryTenant,
		Question:  args[0],
		Documents: queryDocs,
	}

	var bundle *engine.AnswerBundle
	if queryStream {
		for ev := range eng.RunStream(ctx, req) {
			switch ev.Type {
			case engine.EventStep:
				printStep(ev)
			case engine.EventFinal:
				bundle = ev.Bundle
			}
		}
		if bundle == nil {
			return fmt.Errorf("stream ended without a final event")
		}
	} else {
		bundle, _ = eng.Run(ctx, req)
	}

	if queryAsJSON {
		out, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	} else {
		printBundle(bundle)
	}

	if !bundle.Success {
		os.Exit(1)
	}
	return nil
}

func printStep(ev engine.Event) {
	step := ev.Step
	switch {
	case step.Error != "":
		fmt.Printf("  [%d] %s: %s\n", step.Cycle, step.State, step.Error)
	case step.Action != "":
		fmt.Printf("  [%d] %s → %s (%s)\n", step.Cycle, step.State, step.Action, step.Observation)
	default:
		fmt.Printf("  [%d] %s\n", step.Cycle, step.State)
	}
}

func printBundle(bundle *engine.AnswerBundle) {
	if !bundle.Success {
		fmt.Printf("No answer: %s\n", bundle.FailureKind)
		if bundle.Explanation != nil && len(bundle.Explanation.Steps) > 0 {
			last := bundle.Explanation.Steps[len(bundle.Explanation.Steps)-1]
			if last.Error != "" {
				fmt.Printf("  %s\n", last.Error)
			}
		}
		return
	}

	fmt.Println(bundle.AnswerText)
	fmt.Printf("\nConfidence: %.0f/100\n", bundle.Confidence)

	if len(bundle.Citations) > 0 {
		fmt.Println("Citations:")
		for _, c := range bundle.Citations {
			fmt.Printf("  %s ← %s (%s)\n", c.Claim, c.SourceName, c.Locator)
		}
	}
	if bundle.Fusion != nil {
		for _, conflict := range bundle.Fusion.Conflicts {
			if conflict.Resolved {
				fmt.Printf("Note: sources disagreed on %s; used %s (%s)\n",
					conflict.Key, conflict.ResolvedValue, conflict.Resolution)
			} else {
				var vals []string
				for _, v := range conflict.Values {
					vals = append(vals, fmt.Sprintf("%s=%s", v.SourceName, v.Value))
				}
				fmt.Printf("Warning: unresolved disagreement on %s: %s\n",
					conflict.Key, strings.Join(vals, ", "))
			}
		}
	}

	if queryExplain && bundle.Explanation != nil {
		fmt.Println("\nExplanation:")
		for _, step := range bundle.Explanation.Steps {
			printStep(engine.Event{Step: &step})
		}
		for _, attempt := range bundle.Explanation.RepairAttempts {
			status := "failed"
			if attempt.Succeeded {
				status = "succeeded"
			}
			fmt.Printf("  repair #%d (%s): %s\n", attempt.Number, status, attempt.ErrorMessage)
		}
	}
}
