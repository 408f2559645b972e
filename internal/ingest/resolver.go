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
	"fmt"
	"net/mail"
	"strings"

	"github.com/codeautomation/mailwatch/internal/models"
)

// ErrMalformedSender marks a From header no address could be extracted
// from. Handled per message, never fatal.
var ErrMalformedSender = errors.New("malformed sender header")

// ErrUnknownSender marks a sender address with no matching client.
// The message is skipped, not treated as a failure.
var ErrUnknownSender = errors.New("sender does not match any client")

// ClientDirectory looks up clients by email address. Returns (nil, nil)
// when no client matches. Implemented by store.Store.
type ClientDirectory interface {
	GetClientByEmail(ctx context.Context, email string) (*models.Client, error)
}

// Resolver maps raw From headers to known clients. It has no side effects.
type Resolver struct {
	dir ClientDirectory
}

// NewResolver creates a sender resolver backed by the given directory.
func NewResolver(dir ClientDirectory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve extracts the bare address from a raw From header (e.g.
// `"Name" <addr@example.com>`) and looks up the matching client.
// Returns ErrMalformedSender when no address can be parsed and
// ErrUnknownSender when no client owns the address.
func (r *Resolver) Resolve(ctx context.Context, rawFrom string) (*models.Client, error) {
	addr, err := mail.ParseAddress(rawFrom)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedSender, rawFrom)
	}

	email := strings.ToLower(addr.Address)

	client, err := r.dir.GetClientByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up client %s: %w", email, err)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSender, email)
	}

	return client, nil
}
