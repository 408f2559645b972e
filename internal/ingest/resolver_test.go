// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/codeautomation/mailwatch/internal/models"
)

// --- Mock client directory ---

type mockDirectory struct {
	clients map[string]*models.Client
	err     error
	lookups []string
}

func (m *mockDirectory) GetClientByEmail(_ context.Context, email string) (*models.Client, error) {
	m.lookups = append(m.lookups, email)
	if m.err != nil {
		return nil, m.err
	}
	return m.clients[email], nil
}

// TestResolver_Resolve covers address extraction and client lookup.
func TestResolver_Resolve(t *testing.T) {
	dir := &mockDirectory{clients: map[string]*models.Client{
		"alice@example.com": {ID: 7, Email: "alice@example.com", Name: "Alice"},
	}}
	r := NewResolver(dir)

	tests := []struct {
		name    string
		from    string
		wantID  int64
		wantErr error
	}{
		{"display name form", `"Alice" <alice@example.com>`, 7, nil},
		{"bare address", "alice@example.com", 7, nil},
		{"mixed case lowered", "Alice@Example.COM", 7, nil},
		{"unknown sender", "bob@example.com", 0, ErrUnknownSender},
		{"empty header", "", 0, ErrMalformedSender},
		{"garbage header", "not an address", 0, ErrMalformedSender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := r.Resolve(context.Background(), tt.from)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve(%q) error = %v, want %v", tt.from, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%q) failed: %v", tt.from, err)
			}
			if client.ID != tt.wantID {
				t.Errorf("Resolve(%q) client ID = %d, want %d", tt.from, client.ID, tt.wantID)
			}
		})
	}
}

// TestResolver_DirectoryError verifies that a store failure is surfaced
// as-is, not masked as an unknown sender.
func TestResolver_DirectoryError(t *testing.T) {
	dir := &mockDirectory{err: errors.New("connection refused")}
	r := NewResolver(dir)

	_, err := r.Resolve(context.Background(), "alice@example.com")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, ErrUnknownSender) || errors.Is(err, ErrMalformedSender) {
		t.Errorf("store failure misclassified: %v", err)
	}
}

// TestResolver_MalformedNeverHitsDirectory verifies that an unparsable
// header short-circuits before any lookup.
func TestResolver_MalformedNeverHitsDirectory(t *testing.T) {
	dir := &mockDirectory{}
	r := NewResolver(dir)

	_, err := r.Resolve(context.Background(), "<<<")
	if !errors.Is(err, ErrMalformedSender) {
		t.Fatalf("error = %v, want ErrMalformedSender", err)
	}
	if len(dir.lookups) != 0 {
		t.Errorf("directory was queried %d times for a malformed header", len(dir.lookups))
	}
}
