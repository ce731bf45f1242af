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

// Package credstore resolves per-tenant data source credentials. Connection
// strings are stored encrypted at rest (system keyring) and resolved just
// before a session opens its adapters; a resolution failure makes the
// source unavailable for that query, never a partial answer.
package credstore

import (
	"context"
	"fmt"

	"github.com/zalando/go-keyring"
)

// ServiceName namespaces keyring entries.
const ServiceName = "verity"

// Store resolves credential references to connection strings.
type Store interface {
	// Resolve returns the decrypted DSN for a tenant's credential ref.
	Resolve(ctx context.Context, tenantID, ref string) (string, error)

	// Put stores a credential.
	Put(ctx context.Context, tenantID, ref, dsn string) error

	// Delete removes a credential.
	Delete(ctx context.Context, tenantID, ref string) error
}

// keyringStore stores credentials in the system keyring, keyed by
// tenant/ref so tenants cannot resolve each other's entries.
type keyringStore struct{}

// NewKeyringStore returns a Store over the system keyring.
func NewKeyringStore() Store {
	return &keyringStore{}
}

func keyFor(tenantID, ref string) string {
	return fmt.Sprintf("%s/%s", tenantID, ref)
}

func (s *keyringStore) Resolve(ctx context.Context, tenantID, ref string) (string, error) {
	dsn, err := keyring.Get(ServiceName, keyFor(tenantID, ref))
	if err != nil {
		return "", fmt.Errorf("failed to resolve credential %q for tenant %q: %w", ref, tenantID, err)
	}
	return dsn, nil
}

func (s *keyringStore) Put(ctx context.Context, tenantID, ref, dsn string) error {
	if err := keyring.Set(ServiceName, keyFor(tenantID, ref), dsn); err != nil {
		return fmt.Errorf("failed to store credential %q for tenant %q: %w", ref, tenantID, err)
	}
	return nil
}

func (s *keyringStore) Delete(ctx context.Context, tenantID, ref string) error {
	if err := keyring.Delete(ServiceName, keyFor(tenantID, ref)); err != nil {
		return fmt.Errorf("failed to delete credential %q for tenant %q: %w", ref, tenantID, err)
	}
	return nil
}

// StaticStore resolves from an in-memory map. Used in tests and for
// configurations that pass DSNs directly.
type StaticStore struct {
	creds map[string]string
}

// NewStaticStore builds a static store from tenant/ref → DSN entries.
func NewStaticStore(entries map[string]string) *StaticStore {
	creds := make(map[string]string, len(entries))
	for k, v := range entries {
		creds[k] = v
	}
	return &StaticStore{creds: creds}
}

func (s *StaticStore) Resolve(ctx context.Context, tenantID, ref string) (string, error) {
	dsn, ok := s.creds[keyFor(tenantID, ref)]
	if !ok {
		return "", fmt.Errorf("no credential %q for tenant %q", ref, tenantID)
	}
	return dsn, nil
}

func (s *StaticStore) Put(ctx context.Context, tenantID, ref, dsn string) error {
	s.creds[keyFor(tenantID, ref)] = dsn
	return nil
}

func (s *StaticStore) Delete(ctx context.Context, tenantID, ref string) error {
	delete(s.creds, keyFor(tenantID, ref))
	return nil
}

var (
	_ Store = (*keyringStore)(nil)
	_ Store = (*StaticStore)(nil)
)
