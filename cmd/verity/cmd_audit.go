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
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/verity/internal/log"
	"github.com/teradata-labs/verity/pkg/audit"
)

var (
	auditTenant string
	auditLimit  int
	auditAsJSON bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the session audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a tenant's sessions, newest first",
	RunE:  runAuditList,
}

var auditShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show one session's full record",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditShow,
}

func init() {
	auditCmd.PersistentFlags().StringVar(&auditTenant, "tenant", "default", "tenant whose records to read")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 20, "maximum records to list")
	auditShowCmd.Flags().BoolVar(&auditAsJSON, "json", false, "print the record as JSON")
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditShowCmd)
	rootCmd.AddCommand(auditCmd)
}

func openAuditStore() (*audit.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Audit.Path == "" {
		return nil, fmt.Errorf("auditing is disabled (audit.path is empty)")
	}
	return audit.Open(cfg.Audit.Path, log.Logger())
}

func runAuditList(cmd *cobra.Command, args []string) error {
	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context(), auditTenant, auditLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("No sessions recorded for tenant %q\n", auditTenant)
		return nil
	}

	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = e.FailureKind
		}
		fmt.Printf("%s  %s  [%s]  repairs=%d  %s\n",
			e.CreatedAt.Local().Format(time.DateTime),
			e.SessionID, status, e.RepairCount, e.Question)
	}
	return nil
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entry, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("no audit record for session %s: %w", args[0], err)
	}

	if auditAsJSON {
		out, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Session:  %s\n", entry.SessionID)
	fmt.Printf("Tenant:   %s\n", entry.TenantID)
	fmt.Printf("When:     %s\n", entry.CreatedAt.Local().Format(time.DateTime))
	fmt.Printf("Question: %s\n", entry.Question)
	if entry.Success {
		fmt.Printf("Answer:   %s\n", entry.Answer)
	} else {
		fmt.Printf("Failed:   %s\n", entry.FailureKind)
	}
	if len(entry.Queries) > 0 {
		fmt.Println("Queries:")
		for i, q := range entry.Queries {
			fmt.Printf("  %d. %s\n", i+1, q)
		}
	}
	if entry.Explanation != nil {
		fmt.Printf("Repairs:  %d\n", len(entry.Explanation.RepairAttempts))
		fmt.Printf("Confidence: %.0f/100\n", entry.Explanation.OverallConfidence)
	}
	return nil
}
