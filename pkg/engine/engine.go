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

// Package engine orchestrates one question end to end: credential
// resolution, adapter construction, the reasoning loop, evidence fusion,
// citation tracking, explanation sealing, and the audit record.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/verity/pkg/agent"
	"github.com/teradata-labs/verity/pkg/audit"
	"github.com/teradata-labs/verity/pkg/config"
	"github.com/teradata-labs/verity/pkg/credstore"
	"github.com/teradata-labs/verity/pkg/explain"
	"github.com/teradata-labs/verity/pkg/fusion"
	"github.com/teradata-labs/verity/pkg/llm"
	"github.com/teradata-labs/verity/pkg/llm/anthropic"
	"github.com/teradata-labs/verity/pkg/llm/ollama"
	"github.com/teradata-labs/verity/pkg/observability"
	"github.com/teradata-labs/verity/pkg/repair"
	"github.com/teradata-labs/verity/pkg/source"
	"github.com/teradata-labs/verity/pkg/source/sqldb"
	"github.com/teradata-labs/verity/pkg/source/workbook"
	"github.com/teradata-labs/verity/pkg/types"
)

// Request is one question against a tenant's sources.
type Request struct {
	// TenantID scopes credentials and auditing.
	TenantID string

	// Question is the natural-language question.
	Question string

	// Documents optionally lists PDF paths whose passages supplement the
	// structured evidence.
	Documents []string
}

// AnswerBundle is the complete outcome of one session.
type AnswerBundle struct {
	// SessionID identifies the session in the audit trail.
	SessionID string `json:"session_id"`

	// AnswerText is the final answer, empty on failure.
	AnswerText string `json:"answer_text,omitempty"`

	// Success reports whether an answer was produced.
	Success bool `json:"success"`

	// FailureKind classifies a failure.
	FailureKind string `json:"failure_kind,omitempty"`

	// Confidence is the overall 0-100 confidence.
	Confidence float64 `json:"confidence"`

	// Explanation is the sealed explanation log.
	Explanation *explain.Log `json:"explanation,omitempty"`

	// Citations tie the answer's numeric claims to evidence.
	Citations []explain.Citation `json:"citations,omitempty"`

	// Fusion is the merged-evidence result behind the answer.
	Fusion *fusion.Result `json:"fusion,omitempty"`
}

// Engine answers questions over configured sources.
type Engine struct {
	cfg      *config.Config
	provider types.LLMProvider
	creds    credstore.Store
	auditor  *audit.Store
	tracer   observability.Tracer
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithProvider injects an LLM provider, bypassing config-based construction.
func WithProvider(p types.LLMProvider) Option {
	return func(e *Engine) { e.provider = p }
}

// WithCredentialStore overrides the credential store.
func WithCredentialStore(s credstore.Store) Option {
	return func(e *Engine) { e.creds = s }
}

// WithAuditStore sets the audit store.
func WithAuditStore(s *audit.Store) Option {
	return func(e *Engine) { e.auditor = s }
}

// WithTracer sets the tracer.
func WithTracer(t observability.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New builds an engine from configuration.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		creds:  credstore.NewKeyringStore(),
		tracer: observability.NewNoOpTracer(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.provider == nil {
		p, err := e.buildProvider()
		if err != nil {
			return nil, err
		}
		e.provider = p
	}
	// Provider failures get exactly one retry regardless of which client
	// is underneath.
	e.provider = llm.NewRetryProvider(e.provider, llm.WithLogger(e.logger))

	return e, nil
}

// buildProvider constructs the configured LLM client.
func (e *Engine) buildProvider() (types.LLMProvider, error) {
	switch e.cfg.LLM.Provider {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			key, err := e.creds.Resolve(context.Background(), "system", e.cfg.LLM.APIKeyRef)
			if err != nil {
				return nil, fmt.Errorf("no Anthropic API key: set ANTHROPIC_API_KEY or store %q: %w",
					e.cfg.LLM.APIKeyRef, err)
			}
			apiKey = key
		}
		return anthropic.NewClient(anthropic.Config{
			APIKey:      apiKey,
			Model:       e.cfg.LLM.AnthropicModel,
			MaxTokens:   e.cfg.LLM.MaxTokens,
			Temperature: e.cfg.LLM.Temperature,
			Timeout:     e.cfg.LLM.Timeout(),
		}), nil
	case "ollama":
		return ollama.NewClient(ollama.Config{
			Endpoint:    e.cfg.LLM.OllamaEndpoint,
			Model:       e.cfg.LLM.OllamaModel,
			MaxTokens:   e.cfg.LLM.MaxTokens,
			Temperature: e.cfg.LLM.Temperature,
			Timeout:     e.cfg.LLM.Timeout(),
		}), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", e.cfg.LLM.Provider)
}

// openSources resolves credentials and opens an adapter per configured
// source.
func (e *Engine) openSources(ctx context.Context, tenantID string) ([]source.DataSource, error) {
	return OpenSources(ctx, e.cfg, tenantID, e.creds, e.logger)
}

// OpenSources resolves credentials and opens an adapter per configured
// source. All-or-nothing: a single unavailable source fails the session
// rather than producing a partial answer. Callers own closing the
// returned adapters.
func OpenSources(ctx context.Context, cfg *config.Config, tenantID string, creds credstore.Store, logger *zap.Logger) ([]source.DataSource, error) {
	var sources []source.DataSource
	closeAll := func() {
		for _, s := range sources {
			_ = s.Close()
		}
	}

	for _, entry := range cfg.Sources {
		switch entry.Kind {
		case "relational":
			dsn := entry.DSN
			if entry.CredentialRef != "" {
				resolved, err := creds.Resolve(ctx, tenantID, entry.CredentialRef)
				if err != nil {
					closeAll()
					return nil, source.NewError(source.ErrorKindUnavailable, err.Error())
				}
				dsn = resolved
			}
			src, err := sqldb.Open(ctx, sqldb.Config{
				Driver:       entry.Driver,
				DSN:          dsn,
				Name:         entry.Name,
				PreviewRows:  cfg.Loop.PreviewRows,
				QueryTimeout: cfg.Loop.QueryTimeout(),
				Logger:       logger,
			})
			if err != nil {
				closeAll()
				return nil, err
			}
			sources = append(sources, src)

		case "tabular":
			src, err := workbook.Open(workbook.Config{
				Path:        entry.Path,
				Name:        entry.Name,
				PreviewRows: cfg.Loop.PreviewRows,
				Logger:      logger,
			})
			if err != nil {
				closeAll()
				return nil, err
			}
			sources = append(sources, src)
		}
	}
	return sources, nil
}

// Run answers one question. The returned bundle is complete for both
// success and failure; the error mirrors bundle.FailureKind for callers
// that prefer errors.
func (e *Engine) Run(ctx context.Context, req Request) (*AnswerBundle, error) {
	return e.run(ctx, req, nil)
}

func (e *Engine) run(ctx context.Context, req Request, onStep func(explain.Step)) (*AnswerBundle, error) {
	sessionID := uuid.New().String()
	ctx, span := e.tracer.StartSpan(ctx, "engine.run",
		observability.WithSpanKind("engine"),
		observability.WithAttribute("session.id", sessionID),
		observability.WithAttribute("tenant.id", req.TenantID))
	defer e.tracer.EndSpan(span)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Loop.SessionTimeout())
	defer cancel()

	xb := explain.NewBuilder(sessionID, req.Question,
		explain.WithRepairPenalty(e.cfg.Fusion.RepairPenalty),
		explain.WithConflictPenalty(e.cfg.Fusion.ConflictPenalty))

	bundle := &AnswerBundle{SessionID: sessionID}

	sources, err := e.openSources(ctx, req.TenantID)
	if err != nil {
		span.RecordError(err)
		return e.finish(ctx, req, bundle, xb, nil, nil,
			agent.NewFailure(agent.FailureSourceUnavailable, "failed to open sources: %v", err))
	}
	defer func() {
		for _, s := range sources {
			_ = s.Close()
		}
	}()

	session := &types.Session{
		ID:        sessionID,
		TenantID:  req.TenantID,
		Question:  req.Question,
		CreatedAt: time.Now(),
	}

	loopOpts := []agent.Option{
		agent.WithMaxCycles(e.cfg.Loop.MaxCycles),
		agent.WithTracer(e.tracer),
		agent.WithLogger(e.logger),
	}
	if e.cfg.Loop.MaxRepairAttempts > 0 {
		loopOpts = append(loopOpts, agent.WithRepairService(repair.NewService(
			repair.WithMaxAttempts(e.cfg.Loop.MaxRepairAttempts),
			repair.WithLogger(e.logger))))
	}
	if onStep != nil {
		loopOpts = append(loopOpts, agent.WithStepCallback(onStep))
	}

	loop := agent.NewLoop(e.provider, sources, loopOpts...)
	outcome, runErr := loop.Run(ctx, session, xb)
	if runErr != nil {
		span.RecordError(runErr)
		var failure *agent.Failure
		if !errors.As(runErr, &failure) {
			failure = agent.NewFailure(agent.FailureLLMProvider, "%v", runErr)
		}
		return e.finish(ctx, req, bundle, xb, nil, outcome.Evidence, failure)
	}

	evidence := outcome.Evidence
	for _, doc := range req.Documents {
		items, docErr := fusion.ExtractPDFEvidence(doc, filepath.Base(doc), req.Question)
		if docErr != nil {
			e.logger.Warn("document evidence skipped",
				zap.String("path", doc), zap.Error(docErr))
			continue
		}
		evidence = append(evidence, items...)
	}

	fusionEngine := fusion.NewEngine(
		fusion.WithWeights(fusion.Weights{
			Confidence:      e.cfg.Fusion.ConfidenceWeight,
			Relevance:       e.cfg.Fusion.RelevanceWeight,
			ConflictPenalty: e.cfg.Fusion.ConflictPenalty,
		}),
		fusion.WithLogger(e.logger))

	fused, fuseErr := fusionEngine.Fuse(evidence)
	if fuseErr != nil {
		span.RecordError(fuseErr)
		return e.finish(ctx, req, bundle, xb, nil, evidence,
			agent.NewFailure(agent.FailureNoEvidence, "%v", fuseErr))
	}

	citations, citeErr := explain.BuildCitations(outcome.AnswerText, req.Question, fused.Contributing)
	if citeErr != nil {
		// Fail closed: an answer with an unsupported number never ships.
		span.RecordError(citeErr)
		return e.finish(ctx, req, bundle, xb, fused, evidence,
			agent.NewFailure(agent.FailureUncitedClaim, "%v", citeErr))
	}

	bundle.AnswerText = outcome.AnswerText
	bundle.Success = true
	bundle.Citations = citations
	bundle.Fusion = fused
	bundle.Explanation = xb.Seal(fused)
	bundle.Confidence = bundle.Explanation.OverallConfidence

	e.record(ctx, req, bundle)
	e.tracer.RecordMetric("engine.session.confidence", bundle.Confidence,
		map[string]string{"tenant": req.TenantID})

	return bundle, nil
}

// finish seals a failed session into a bundle and audits it.
func (e *Engine) finish(ctx context.Context, req Request, bundle *AnswerBundle, xb *explain.Builder,
	fused *fusion.Result, evidence []fusion.EvidenceItem, failure *agent.Failure) (*AnswerBundle, error) {

	bundle.Success = false
	bundle.FailureKind = string(failure.Kind)
	bundle.Fusion = fused
	bundle.Explanation = xb.Seal(fused)
	if bundle.Explanation.Evidence == nil {
		bundle.Explanation.Evidence = evidence
	}

	e.record(ctx, req, bundle)
	return bundle, failure
}

// record writes the audit entry. Audit failures are logged, not propagated;
// the answer's fate is already decided.
func (e *Engine) record(ctx context.Context, req Request, bundle *AnswerBundle) {
	if e.auditor == nil {
		return
	}
	entry := audit.Entry{
		SessionID:   bundle.SessionID,
		TenantID:    req.TenantID,
		Question:    req.Question,
		Answer:      bundle.AnswerText,
		Success:     bundle.Success,
		FailureKind: bundle.FailureKind,
		Queries:     executedQueries(bundle.Explanation),
		Explanation: bundle.Explanation,
	}
	if bundle.Explanation != nil {
		entry.RepairCount = len(bundle.Explanation.RepairAttempts)
	}
	if err := e.auditor.Record(ctx, entry); err != nil {
		e.logger.Error("audit record failed",
			zap.String("session_id", bundle.SessionID), zap.Error(err))
	}
}

// executedQueries extracts the executed queries from the explanation steps.
func executedQueries(log *explain.Log) []string {
	if log == nil {
		return nil
	}
	var queries []string
	for _, step := range log.Steps {
		if step.ActionInput == nil {
			continue
		}
		if q, ok := step.ActionInput["query"].(string); ok && q != "" {
			queries = append(queries, q)
		} else if expr, ok := step.ActionInput["expression"].(string); ok && expr != "" {
			queries = append(queries, expr)
		}
	}
	return queries
}
