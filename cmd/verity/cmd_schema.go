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
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teradata-labs/verity/internal/log"
	"github.com/teradata-labs/verity/pkg/credstore"
	"github.com/teradata-labs/verity/pkg/engine"
	"github.com/teradata-labs/verity/pkg/repair"
)

var schemaTenant string

var schemaCmd = &cobra.Command{
	Use:   "schema [source-name]",
	Short: "Show the discovered schema of configured sources",
	Long: `Connect to each configured source and print its tables (or sheets)
with column names and inferred types. With a source name, show only
that source.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVar(&schemaTenant, "tenant", "default", "tenant whose credentials to use")
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("no sources configured; add a sources section to verity.yaml")
	}

	ctx := cmd.Context()
	sources, err := engine.OpenSources(ctx, cfg, schemaTenant, credstore.NewKeyringStore(), log.Logger())
	if err != nil {
		return err
	}
	defer func() {
		for _, s := range sources {
			_ = s.Close()
		}
	}()

	shown := 0
	for _, src := range sources {
		if len(args) == 1 && !strings.EqualFold(src.Name(), args[0]) {
			continue
		}
		schema, err := src.IntrospectSchema(ctx)
		if err != nil {
			return fmt.Errorf("introspection of %q failed: %w", src.Name(), err)
		}
		fmt.Printf("%s (%s)\n", src.Name(), src.Kind())
		fmt.Print(repair.RenderSchema(schema))
		fmt.Println()
		shown++
	}
	if len(args) == 1 && shown == 0 {
		return fmt.Errorf("no configured source named %q", args[0])
	}
	return nil
}
