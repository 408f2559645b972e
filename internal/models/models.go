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

// Package models defines the data structures shared across the mailwatch service.
package models

import "time"

// Client is a customer contact whose inbound mail is tracked.
// Identity key is the email address.
type Client struct {
	ID          int64  `json:"client_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Company     string `json:"company,omitempty"`
	Designation string `json:"designation,omitempty"`
}

// ProjectManager owns a mailbox that the ingestion pipeline polls and is
// the recipient of unreplied-mail reminders. The mailbox password is
// stored sealed (NaCl secretbox), never in plaintext.
type ProjectManager struct {
	ID          int64  `json:"pm_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	ProjectName string `json:"project_name,omitempty"`

	// SealedPassword is the base64-encoded secretbox ciphertext of the
	// mailbox password. It never leaves the service in API responses.
	SealedPassword string `json:"-"`
}

// Recipient is an additional notification address linked to one or more
// clients through ClientRecipient.
type Recipient struct {
	ID    int64  `json:"recipient_id"`
	Email string `json:"email"`
}

// ClientRecipient links a client to a recipient (composite key).
type ClientRecipient struct {
	ClientID    int64 `json:"client_id"`
	RecipientID int64 `json:"recipient_id"`
}

// Mail is one tracked inbound email, created by the ingestion pipeline
// (or manually via the API) and escalated by the unreplied scanner.
//
// Invariant: IsReplied implies IsRead. The store enforces this on update.
type Mail struct {
	ID        int64     `json:"email_id"`
	ClientID  int64     `json:"client_id"`
	PMID      int64     `json:"pm_id"`
	MessageID string    `json:"message_id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	IsRead    bool      `json:"is_read"`
	IsReplied bool      `json:"is_replied"`
	CreatedAt time.Time `json:"created_at"`
}

// IncomingMessage is an unseen message pulled from a mailbox session,
// before sender resolution. MessageID is the RFC 5322 Message-ID when the
// header is present, otherwise a deterministic digest computed by the
// mailbox session.
type IncomingMessage struct {
	MessageID string
	From      string // raw From header, e.g. `"Name" <addr@example.com>`
	Subject   string
	Body      string
	Date      time.Time
}
