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
package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/verity/pkg/tool"
	"github.com/teradata-labs/verity/pkg/types"
)

// DefaultRetryBackoff is the pause before the single retry.
const DefaultRetryBackoff = 2 * time.Second

// RetryProvider wraps an LLMProvider with a single retry on provider
// failure. One retry, not more: transient provider hiccups recover on the
// second call, and anything persistent should surface to the caller rather
// than burn budget in a retry loop.
type RetryProvider struct {
	inner   types.LLMProvider
	backoff time.Duration
	logger  *zap.Logger
}

// RetryOption configures a RetryProvider.
type RetryOption func(*RetryProvider)

// WithBackoff overrides the pause before the retry.
func WithBackoff(d time.Duration) RetryOption {
	return func(r *RetryProvider) { r.backoff = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) RetryOption {
	return func(r *RetryProvider) { r.logger = logger }
}

// NewRetryProvider wraps provider with retry-once semantics.
func NewRetryProvider(provider types.LLMProvider, opts ...RetryOption) *RetryProvider {
	r := &RetryProvider{
		inner:   provider,
		backoff: DefaultRetryBackoff,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the wrapped provider's name.
func (r *RetryProvider) Name() string { return r.inner.Name() }

// Model returns the wrapped provider's model.
func (r *RetryProvider) Model() string { return r.inner.Model() }

// Chat calls the wrapped provider, retrying exactly once on a provider
// error. Context cancellation is never retried.
func (r *RetryProvider) Chat(ctx context.Context, messages []types.Message, tools []tool.Tool) (*types.LLMResponse, error) {
	resp, err := r.inner.Chat(ctx, messages, tools)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	r.logger.Warn("provider call failed, retrying once",
		zap.String("provider", r.inner.Name()),
		zap.Error(err))

	select {
	case <-time.After(r.backoff):
	case <-ctx.Done():
		return nil, err
	}

	resp, retryErr := r.inner.Chat(ctx, messages, tools)
	if retryErr != nil {
		r.logger.Error("provider retry failed",
			zap.String("provider", r.inner.Name()),
			zap.Error(retryErr))
		return nil, retryErr
	}
	return resp, nil
}

var _ types.LLMProvider = (*RetryProvider)(nil)
