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
package credstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticStore_Resolve(t *testing.T) {
	store := NewStaticStore(map[string]string{
		"acme/warehouse_dsn": "postgres://warehouse",
	})

	dsn, err := store.Resolve(context.Background(), "acme", "warehouse_dsn")
	require.NoError(t, err)
	assert.Equal(t, "postgres://warehouse", dsn)
}

func TestStaticStore_MissingRef(t *testing.T) {
	store := NewStaticStore(nil)

	_, err := store.Resolve(context.Background(), "acme", "warehouse_dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"warehouse_dsn"`)
	assert.Contains(t, err.Error(), `"acme"`)
}

// Credentials are keyed by tenant: another tenant holding the same ref
// name never resolves a neighbor's DSN.
func TestStaticStore_TenantIsolation(t *testing.T) {
	store := NewStaticStore(map[string]string{
		"acme/warehouse_dsn": "postgres://acme-warehouse",
	})

	_, err := store.Resolve(context.Background(), "globex", "warehouse_dsn")
	require.Error(t, err)
}

func TestStaticStore_PutAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStaticStore(nil)

	require.NoError(t, store.Put(ctx, "acme", "budget_dsn", "mysql://budget"))
	dsn, err := store.Resolve(ctx, "acme", "budget_dsn")
	require.NoError(t, err)
	assert.Equal(t, "mysql://budget", dsn)

	require.NoError(t, store.Delete(ctx, "acme", "budget_dsn"))
	_, err = store.Resolve(ctx, "acme", "budget_dsn")
	assert.Error(t, err)
}

// The constructor copies its input; later mutation of the caller's map
// must not leak into the store.
func TestNewStaticStore_CopiesEntries(t *testing.T) {
	entries := map[string]string{"acme/ref": "dsn-1"}
	store := NewStaticStore(entries)
	entries["acme/ref"] = "dsn-2"

	dsn, err := store.Resolve(context.Background(), "acme", "ref")
	require.NoError(t, err)
	assert.Equal(t, "dsn-1", dsn)
}
