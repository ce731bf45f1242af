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
package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/verity/pkg/agent"
	"github.com/teradata-labs/verity/pkg/audit"
	"github.com/teradata-labs/verity/pkg/config"
	"github.com/teradata-labs/verity/pkg/explain"
	"github.com/teradata-labs/verity/pkg/tool"
	"github.com/teradata-labs/verity/pkg/types"
)

// scriptedProvider replays a fixed response sequence.
type scriptedProvider struct {
	responses []*types.LLMResponse
	calls     int
}

func (p *scriptedProvider) Chat(_ context.Context, _ []types.Message, _ []tool.Tool) (*types.LLMResponse, error) {
	p.calls++
	if len(p.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

// testConfig builds a config with one CSV source backed by a temp file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	csv := "Region,Revenue\nEMEA,1500.75\nAPAC,1000\nEMEA,800\nAMER,1000\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	cfgPath := filepath.Join(t.TempDir(), "verity.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("{}\n"), 0o644))
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.Sources = []config.SourceEntry{{Name: "sales", Kind: "tabular", Path: path}}
	cfg.Audit.Path = ""
	return cfg
}

func happyScript() []*types.LLMResponse {
	return []*types.LLMResponse{
		{Content: "Inspecting the workbook.", ToolCalls: []types.ToolCall{
			{ID: "c1", Name: agent.ToolInspectWorkbook},
		}},
		{Content: "Summing revenue.", ToolCalls: []types.ToolCall{
			{ID: "c2", Name: agent.ToolComputeDataFrame, Input: map[string]interface{}{
				"expression": `{"table": "sales", "op": "sum", "column": "Revenue"}`,
			}},
		}},
		{Content: "Total revenue was 4300.75."},
	}
}

func TestEngine_RunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	auditor, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	defer auditor.Close()

	eng, err := New(cfg,
		WithProvider(&scriptedProvider{responses: happyScript()}),
		WithAuditStore(auditor))
	require.NoError(t, err)

	bundle, err := eng.Run(context.Background(), Request{
		TenantID: "acme",
		Question: "What was total revenue?",
	})
	require.NoError(t, err)

	assert.True(t, bundle.Success)
	assert.Equal(t, "Total revenue was 4300.75.", bundle.AnswerText)
	assert.Greater(t, bundle.Confidence, 50.0)

	// Every numeric claim is backed by evidence from the workbook.
	require.NotEmpty(t, bundle.Citations)
	assert.Equal(t, "4300.75", bundle.Citations[0].Claim)
	assert.Equal(t, "sales", bundle.Citations[0].SourceName)

	require.NotNil(t, bundle.Fusion)
	assert.Equal(t, "4300.75", bundle.Fusion.Facts["sum_revenue"])

	require.NotNil(t, bundle.Explanation)
	assert.False(t, bundle.Explanation.FinishedAt.IsZero())
	assert.NotEmpty(t, bundle.Explanation.Steps)

	// The session landed in the audit trail with the executed expression.
	entry, err := auditor.Get(context.Background(), bundle.SessionID)
	require.NoError(t, err)
	assert.True(t, entry.Success)
	assert.Equal(t, "acme", entry.TenantID)
	require.Len(t, entry.Queries, 1)
	assert.Contains(t, entry.Queries[0], `"op": "sum"`)
	assert.Equal(t, 0, entry.RepairCount)
}

// An answer with no query behind it fails closed; the failure is still a
// complete, audited bundle.
func TestEngine_NoEvidenceFailsClosed(t *testing.T) {
	cfg := testConfig(t)
	auditor, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	defer auditor.Close()

	eng, err := New(cfg,
		WithProvider(&scriptedProvider{responses: []*types.LLMResponse{
			{Content: "Revenue was definitely 9 million."},
		}}),
		WithAuditStore(auditor))
	require.NoError(t, err)

	bundle, err := eng.Run(context.Background(), Request{TenantID: "acme", Question: "q"})
	require.Error(t, err)
	assert.Equal(t, agent.FailureNoEvidence, agent.FailureOf(err))

	assert.False(t, bundle.Success)
	assert.Equal(t, string(agent.FailureNoEvidence), bundle.FailureKind)
	assert.Empty(t, bundle.AnswerText)
	require.NotNil(t, bundle.Explanation)
	assert.False(t, bundle.Explanation.FinishedAt.IsZero())

	entry, auditErr := auditor.Get(context.Background(), bundle.SessionID)
	require.NoError(t, auditErr)
	assert.False(t, entry.Success)
	assert.Equal(t, string(agent.FailureNoEvidence), entry.FailureKind)
}

func TestEngine_UnknownSourceFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sources[0].Path = filepath.Join(t.TempDir(), "missing.csv")

	eng, err := New(cfg, WithProvider(&scriptedProvider{responses: happyScript()}))
	require.NoError(t, err)

	bundle, err := eng.Run(context.Background(), Request{TenantID: "acme", Question: "q"})
	require.Error(t, err)
	assert.Equal(t, agent.FailureSourceUnavailable, agent.FailureOf(err))
	assert.False(t, bundle.Success)
}

func TestEngine_RunStream(t *testing.T) {
	cfg := testConfig(t)
	eng, err := New(cfg, WithProvider(&scriptedProvider{responses: happyScript()}))
	require.NoError(t, err)

	var steps []explain.Step
	var final *AnswerBundle
	for ev := range eng.RunStream(context.Background(), Request{TenantID: "acme", Question: "What was total revenue?"}) {
		switch ev.Type {
		case EventStep:
			steps = append(steps, *ev.Step)
		case EventFinal:
			final = ev.Bundle
		}
	}

	require.NotNil(t, final, "the stream always ends with a final event")
	assert.True(t, final.Success)
	assert.NotEmpty(t, steps)
	// Steps arrive in cycle order.
	for i, step := range steps {
		assert.Equal(t, i+1, step.Cycle)
	}
}

func TestExecutedQueries(t *testing.T) {
	assert.Nil(t, executedQueries(nil))

	log := &explain.Log{Steps: []explain.Step{
		{ActionInput: map[string]interface{}{"query": "SELECT 1"}},
		{ActionInput: nil},
		{ActionInput: map[string]interface{}{"expression": `{"op":"count"}`}},
		{ActionInput: map[string]interface{}{"query": ""}},
	}}
	assert.Equal(t, []string{"SELECT 1", `{"op":"count"}`}, executedQueries(log))
}
