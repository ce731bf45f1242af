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
package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/verity/pkg/explain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RecordAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entry := Entry{
		SessionID:   "s-1",
		TenantID:    "acme",
		Question:    "What was total revenue?",
		Answer:      "Total revenue was 1200000.",
		Success:     true,
		Queries:     []string{"SELECT SUM(revenue) FROM sales"},
		RepairCount: 1,
		Explanation: &explain.Log{
			SessionID:         "s-1",
			Question:          "What was total revenue?",
			OverallConfidence: 77,
		},
	}
	require.NoError(t, store.Record(ctx, entry))

	got, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.TenantID)
	assert.Equal(t, "Total revenue was 1200000.", got.Answer)
	assert.True(t, got.Success)
	assert.Equal(t, []string{"SELECT SUM(revenue) FROM sales"}, got.Queries)
	assert.Equal(t, 1, got.RepairCount)
	require.NotNil(t, got.Explanation)
	assert.Equal(t, 77.0, got.Explanation.OverallConfidence)
	assert.False(t, got.CreatedAt.IsZero())
}

// The log is append-only: a second write for the same session is an error,
// never an update.
func TestStore_DuplicateSessionRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	entry := Entry{SessionID: "s-1", TenantID: "acme", Question: "q", Success: true}
	require.NoError(t, store.Record(ctx, entry))

	entry.Answer = "rewritten history"
	err := store.Record(ctx, entry)
	require.Error(t, err)

	got, getErr := store.Get(ctx, "s-1")
	require.NoError(t, getErr)
	assert.Empty(t, got.Answer, "original record is untouched")
}

func TestStore_FailedSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, Entry{
		SessionID:   "s-2",
		TenantID:    "acme",
		Question:    "q",
		Success:     false,
		FailureKind: "NO_EVIDENCE",
	}))

	got, err := store.Get(ctx, "s-2")
	require.NoError(t, err)
	assert.False(t, got.Success)
	assert.Equal(t, "NO_EVIDENCE", got.FailureKind)
	assert.Nil(t, got.Explanation)
}

func TestStore_ListScopedToTenant(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, tenant := range []string{"acme", "acme", "globex"} {
		require.NoError(t, store.Record(ctx, Entry{
			SessionID: []string{"a1", "a2", "g1"}[i],
			TenantID:  tenant,
			Question:  "q",
			Success:   true,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := store.List(ctx, "acme", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2, "tenants only see their own records")
	// Newest first.
	assert.Equal(t, "a2", entries[0].SessionID)
	assert.Equal(t, "a1", entries[1].SessionID)

	limited, err := store.List(ctx, "acme", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
