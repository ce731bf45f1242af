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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/verity/pkg/tool"
	"github.com/teradata-labs/verity/pkg/types"
)

// countingProvider fails the first n Chat calls, then succeeds.
type countingProvider struct {
	calls    int
	failures int
}

func (p *countingProvider) Name() string  { return "counting" }
func (p *countingProvider) Model() string { return "test-model" }

func (p *countingProvider) Chat(_ context.Context, _ []types.Message, _ []tool.Tool) (*types.LLMResponse, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, &ProviderError{Provider: "counting", StatusCode: 529, Message: "overloaded"}
	}
	return &types.LLMResponse{Content: "ok"}, nil
}

func TestRetryProvider_NoRetryOnSuccess(t *testing.T) {
	inner := &countingProvider{}
	provider := NewRetryProvider(inner, WithBackoff(time.Millisecond))

	resp, err := provider.Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryProvider_RetriesOnce(t *testing.T) {
	inner := &countingProvider{failures: 1}
	provider := NewRetryProvider(inner, WithBackoff(time.Millisecond))

	resp, err := provider.Chat(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, inner.calls)
}

// Two failures exhaust the wrapper: exactly two calls, then the second
// error surfaces.
func TestRetryProvider_SecondFailureSurfaces(t *testing.T) {
	inner := &countingProvider{failures: 2}
	provider := NewRetryProvider(inner, WithBackoff(time.Millisecond))

	_, err := provider.Chat(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
	assert.Equal(t, 2, inner.calls)
}

// A cancelled context is the caller giving up, not a provider hiccup;
// retrying it would only delay the shutdown.
func TestRetryProvider_NoRetryOnCancellation(t *testing.T) {
	inner := &countingProvider{failures: 2}
	provider := NewRetryProvider(inner, WithBackoff(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Chat(ctx, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryProvider_DelegatesIdentity(t *testing.T) {
	provider := NewRetryProvider(&countingProvider{})
	assert.Equal(t, "counting", provider.Name())
	assert.Equal(t, "test-model", provider.Model())
}

func TestIsProviderError(t *testing.T) {
	assert.True(t, IsProviderError(&ProviderError{Provider: "ollama", Message: "down"}))
	assert.False(t, IsProviderError(context.Canceled))
	assert.False(t, IsProviderError(nil))
}
