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
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/teradata-labs/verity/pkg/credstore"
)

var credTenant string

var credCmd = &cobra.Command{
	Use:   "cred",
	Short: "Manage data source credentials",
	Long: `Store, verify, and remove connection strings in the system keyring.

Credentials are stored in your system's secure credential storage
(Keychain on macOS, Credential Manager on Windows, Secret Service on Linux)
and resolved per tenant when a query session opens its sources.`,
}

var credSetCmd = &cobra.Command{
	Use:   "set [ref]",
	Short: "Save a connection string to the system keyring",
	Long: `Save a connection string under a credential reference. The reference is
what a source's credential_ref names in verity.yaml.

Examples:
  verity cred set sales_db_dsn
  verity cred set --tenant acme warehouse_dsn
  verity cred set anthropic_api_key --tenant system`,
	Args: cobra.ExactArgs(1),
	RunE: runCredSet,
}

var credGetCmd = &cobra.Command{
	Use:   "get [ref]",
	Short: "Verify a credential exists in the keyring",
	Long:  `Check that a credential resolves, without printing its value.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runCredGet,
}

var credDeleteCmd = &cobra.Command{
	Use:   "delete [ref]",
	Short: "Remove a credential from the keyring",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredDelete,
}

func init() {
	credCmd.PersistentFlags().StringVar(&credTenant, "tenant", "default", "tenant the credential belongs to")
	credCmd.AddCommand(credSetCmd)
	credCmd.AddCommand(credGetCmd)
	credCmd.AddCommand(credDeleteCmd)
	rootCmd.AddCommand(credCmd)
}

func runCredSet(cmd *cobra.Command, args []string) error {
	ref := args[0]

	fmt.Printf("Enter value for %s (input hidden): ", ref)
	var value string
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		value = string(raw)
	} else {
		// Piped input, e.g. verity cred set ref < dsn.txt
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read input: %w", err)
		}
		value = strings.TrimRight(line, "\r\n")
	}
	if value == "" {
		return fmt.Errorf("empty value; nothing stored")
	}

	store := credstore.NewKeyringStore()
	if err := store.Put(cmd.Context(), credTenant, ref, value); err != nil {
		return err
	}
	fmt.Printf("Stored %q for tenant %q\n", ref, credTenant)
	return nil
}

func runCredGet(cmd *cobra.Command, args []string) error {
	ref := args[0]
	store := credstore.NewKeyringStore()
	value, err := store.Resolve(cmd.Context(), credTenant, ref)
	if err != nil {
		return err
	}
	fmt.Printf("Credential %q resolves for tenant %q (%d characters)\n", ref, credTenant, len(value))
	return nil
}

func runCredDelete(cmd *cobra.Command, args []string) error {
	ref := args[0]
	store := credstore.NewKeyringStore()
	if err := store.Delete(cmd.Context(), credTenant, ref); err != nil {
		return err
	}
	fmt.Printf("Deleted %q for tenant %q\n", ref, credTenant)
	return nil
}
