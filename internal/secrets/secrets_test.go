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

package secrets

import (
	"encoding/base64"
	"strings"
	"testing"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

// TestNewKeeper_InvalidKeys verifies key validation.
func TestNewKeeper_InvalidKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"not hex", "zz"},
		{"too short", "abcd"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewKeeper(tt.key); err == nil {
				t.Errorf("NewKeeper(%q) succeeded, want error", tt.key)
			}
		})
	}
}

// TestKeeper_RoundTrip verifies Seal then Open recovers the plaintext.
func TestKeeper_RoundTrip(t *testing.T) {
	k, err := NewKeeper(testKey)
	if err != nil {
		t.Fatalf("NewKeeper: %v", err)
	}

	sealed, err := k.Seal("hunter2")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if strings.Contains(sealed, "hunter2") {
		t.Error("sealed credential leaks the plaintext")
	}

	got, err := k.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Open = %q, want hunter2", got)
	}
}

// TestKeeper_Tampered verifies that modified ciphertext is rejected.
func TestKeeper_Tampered(t *testing.T) {
	k, err := NewKeeper(testKey)
	if err != nil {
		t.Fatalf("NewKeeper: %v", err)
	}

	sealed, err := k.Seal("hunter2")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := k.Open(tampered); err == nil {
		t.Error("Open accepted tampered ciphertext")
	}
}

// TestKeeper_WrongKey verifies that a different key cannot open.
func TestKeeper_WrongKey(t *testing.T) {
	k1, _ := NewKeeper(testKey)
	k2, _ := NewKeeper(strings.Repeat("ab", 32))

	sealed, err := k1.Seal("hunter2")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := k2.Open(sealed); err == nil {
		t.Error("Open with wrong key succeeded")
	}
}
