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
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "verity.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 8, cfg.Loop.MaxCycles)
	assert.Equal(t, 2, cfg.Loop.MaxRepairAttempts)
	assert.Equal(t, 120*time.Second, cfg.Loop.SessionTimeout())
	assert.Equal(t, 15*time.Second, cfg.Loop.QueryTimeout())
	assert.Equal(t, 50, cfg.Loop.PreviewRows)
	assert.Equal(t, 0.7, cfg.Fusion.ConfidenceWeight)
	assert.Equal(t, 0.3, cfg.Fusion.RelevanceWeight)
	assert.Equal(t, 15.0, cfg.Fusion.ConflictPenalty)
	assert.Equal(t, 10.0, cfg.Fusion.RepairPenalty)
	assert.Equal(t, "verity_audit.db", cfg.Audit.Path)
	assert.Empty(t, cfg.Sources)
}

func TestLoad_FullFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
llm:
  provider: ollama
  ollama_model: llama3.1
loop:
  max_cycles: 12
sources:
  - name: warehouse
    kind: relational
    driver: postgres
    credential_ref: warehouse_dsn
  - name: budget
    kind: tabular
    path: /data/budget.xlsx
`))
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 12, cfg.Loop.MaxCycles)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, "relational", cfg.Sources[0].Kind)
	assert.Equal(t, "warehouse_dsn", cfg.Sources[0].CredentialRef)
	assert.Equal(t, "/data/budget.xlsx", cfg.Sources[1].Path)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"unknown provider",
			func(c *Config) { c.LLM.Provider = "hal9000" },
			"unknown llm provider",
		},
		{
			"source without name",
			func(c *Config) { c.Sources = []SourceEntry{{Kind: "tabular", Path: "x.csv"}} },
			"name is required",
		},
		{
			"relational without driver",
			func(c *Config) { c.Sources = []SourceEntry{{Name: "db", Kind: "relational", DSN: "x"}} },
			"driver is required",
		},
		{
			"relational without credentials",
			func(c *Config) { c.Sources = []SourceEntry{{Name: "db", Kind: "relational", Driver: "postgres"}} },
			"credential_ref or dsn",
		},
		{
			"tabular without path",
			func(c *Config) { c.Sources = []SourceEntry{{Name: "wb", Kind: "tabular"}} },
			"path is required",
		},
		{
			"unknown kind",
			func(c *Config) { c.Sources = []SourceEntry{{Name: "x", Kind: "graph"}} },
			"unknown kind",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LLM: LLMConfig{Provider: "anthropic"}}
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
