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

	"github.com/codeautomation/mailwatch/internal/mailbox"
	"github.com/codeautomation/mailwatch/internal/models"
	"github.com/codeautomation/mailwatch/internal/store"
)

// --- Mock mailbox ---

type mockSession struct {
	messages []models.IncomingMessage
	fetchErr error
	closed   bool
}

func (m *mockSession) FetchUnseen(_ context.Context) ([]models.IncomingMessage, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.messages, nil
}

func (m *mockSession) Close() error {
	m.closed = true
	return nil
}

type mockDialer struct {
	sessions map[string]*mockSession // keyed by account address
	failFor  map[string]error
}

func (m *mockDialer) Dial(_ context.Context, account mailbox.Account) (mailbox.Session, error) {
	if err := m.failFor[account.Address]; err != nil {
		return nil, &mailbox.ConnError{Account: account.Address, Err: err}
	}
	sess, ok := m.sessions[account.Address]
	if !ok {
		sess = &mockSession{}
	}
	return sess, nil
}

// --- Mock mail store ---

type mockMailStore struct {
	created  []models.Mail
	err      error
	dupAfter int // return ErrDuplicateMail once this many inserts succeeded
}

func (m *mockMailStore) CreateMail(_ context.Context, mail *models.Mail) error {
	if m.err != nil {
		return m.err
	}
	if m.dupAfter > 0 && len(m.created) >= m.dupAfter {
		return store.ErrDuplicateMail
	}
	mail.ID = int64(len(m.created) + 1)
	m.created = append(m.created, *mail)
	return nil
}

// --- Mock dedup filter ---

type mockFilter struct {
	seen map[string]bool
	err  error
}

func (m *mockFilter) IsNew(_ context.Context, messageID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.seen[messageID] {
		return false, nil
	}
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	m.seen[messageID] = true
	return true, nil
}

// --- Helpers ---

func testPipeline(dialer mailbox.Dialer, mails MailStore, filter Filter) *Pipeline {
	dir := &mockDirectory{clients: map[string]*models.Client{
		"client@example.com": {ID: 1, Email: "client@example.com", Name: "Client"},
	}}
	return NewPipeline(PipelineConfig{
		Dialer:   dialer,
		Resolver: NewResolver(dir),
		Mails:    mails,
		Filter:   filter,
	})
}

func msg(id, from, subject string) models.IncomingMessage {
	return models.IncomingMessage{MessageID: id, From: from, Subject: subject, Body: "body"}
}

// TestPipeline_StoresResolvedMessages verifies the happy path: unseen
// messages from a known client become mail records owned by the polled
// project manager.
func TestPipeline_StoresResolvedMessages(t *testing.T) {
	mails := &mockMailStore{}
	dialer := &mockDialer{sessions: map[string]*mockSession{
		"pm@example.com": {messages: []models.IncomingMessage{
			msg("<m1@x>", "client@example.com", "first"),
			msg("<m2@x>", "client@example.com", "second"),
		}},
	}}

	p := testPipeline(dialer, mails, &mockFilter{})
	result := p.RunAll(context.Background(), []models.ProjectManager{
		{ID: 42, Email: "pm@example.com"},
	})

	if result.TotalStored != 2 {
		t.Fatalf("TotalStored = %d, want 2", result.TotalStored)
	}
	if result.FailedAccounts != 0 {
		t.Errorf("FailedAccounts = %d, want 0", result.FailedAccounts)
	}
	for _, m := range mails.created {
		if m.ClientID != 1 || m.PMID != 42 {
			t.Errorf("mail record owners = (client %d, pm %d), want (1, 42)", m.ClientID, m.PMID)
		}
		if m.IsRead || m.IsReplied {
			t.Errorf("new record flags = (read %v, replied %v), want both false", m.IsRead, m.IsReplied)
		}
	}
	if !dialer.sessions["pm@example.com"].closed {
		t.Error("session was not closed")
	}
}

// TestPipeline_EmptyMailboxStoresNothing verifies that a mailbox with no
// unseen messages produces zero inserts and zero notifications.
func TestPipeline_EmptyMailboxStoresNothing(t *testing.T) {
	mails := &mockMailStore{}
	dialer := &mockDialer{sessions: map[string]*mockSession{
		"pm@example.com": {},
	}}

	p := testPipeline(dialer, mails, &mockFilter{})
	result := p.RunAll(context.Background(), []models.ProjectManager{
		{ID: 1, Email: "pm@example.com"},
	})

	if result.TotalStored != 0 || len(mails.created) != 0 {
		t.Fatalf("stored %d records for an empty mailbox", len(mails.created))
	}
}

// TestPipeline_AccountFailureDoesNotBlockOthers verifies fault isolation:
// a connection failure on one account leaves the rest of the pass intact.
func TestPipeline_AccountFailureDoesNotBlockOthers(t *testing.T) {
	mails := &mockMailStore{}
	dialer := &mockDialer{
		failFor: map[string]error{"broken@example.com": errors.New("connection refused")},
		sessions: map[string]*mockSession{
			"ok@example.com": {messages: []models.IncomingMessage{
				msg("<m1@x>", "client@example.com", "hello"),
			}},
		},
	}

	p := testPipeline(dialer, mails, &mockFilter{})
	result := p.RunAll(context.Background(), []models.ProjectManager{
		{ID: 1, Email: "broken@example.com"},
		{ID: 2, Email: "ok@example.com"},
	})

	if result.FailedAccounts != 1 {
		t.Errorf("FailedAccounts = %d, want 1", result.FailedAccounts)
	}
	if result.TotalStored != 1 {
		t.Errorf("TotalStored = %d, want 1", result.TotalStored)
	}
}

// TestPipeline_UnknownSenderSkipped verifies that mail from an address
// with no matching client is consumed but never persisted.
func TestPipeline_UnknownSenderSkipped(t *testing.T) {
	mails := &mockMailStore{}
	dialer := &mockDialer{sessions: map[string]*mockSession{
		"pm@example.com": {messages: []models.IncomingMessage{
			msg("<m1@x>", "stranger@example.com", "spam"),
			msg("<m2@x>", "client@example.com", "real"),
		}},
	}}

	p := testPipeline(dialer, mails, &mockFilter{})
	result := p.RunAll(context.Background(), []models.ProjectManager{
		{ID: 1, Email: "pm@example.com"},
	})

	if result.TotalStored != 1 {
		t.Fatalf("TotalStored = %d, want 1", result.TotalStored)
	}
	ar := result.Accounts[0]
	if ar.Unknown != 1 {
		t.Errorf("Unknown = %d, want 1", ar.Unknown)
	}
	if ar.Errors != 0 {
		t.Errorf("Errors = %d, want 0 — unknown senders are not failures", ar.Errors)
	}
}

// TestPipeline_MalformedSenderSkipped verifies that an unparsable From
// header skips the message without failing the account.
func TestPipeline_MalformedSenderSkipped(t *testing.T) {
	mails := &mockMailStore{}
	dialer := &mockDialer{sessions: map[string]*mockSession{
		"pm@example.com": {messages: []models.IncomingMessage{
			msg("<m1@x>", "<<<garbage", "broken"),
		}},
	}}

	p := testPipeline(dialer, mails, &mockFilter{})
	result := p.RunAll(context.Background(), []models.ProjectManager{
		{ID: 1, Email: "pm@example.com"},
	})

	if result.FailedAccounts != 0 {
		t.Errorf("FailedAccounts = %d, want 0", result.FailedAccounts)
	}
	if result.Accounts[0].Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", result.Accounts[0].Malformed)
	}
	if len(mails.created) != 0 {
		t.Errorf("stored %d records from malformed senders", len(mails.created))
	}
}

// TestPipeline_DedupFilterSkipsSeenMessages verifies that a message ID
// the filter has already seen is counted as a duplicate, not re-inserted.
func TestPipeline_DedupFilterSkipsSeenMessages(t *testing.T) {
	mails := &mockMailStore{}
	filter := &mockFilter{seen: map[string]bool{"<dup@x>": true}}
	dialer := &mockDialer{sessions: map[string]*mockSession{
		"pm@example.com": {messages: []models.IncomingMessage{
			msg("<dup@x>", "client@example.com", "again"),
			msg("<new@x>", "client@example.com", "fresh"),
		}},
	}}

	p := testPipeline(dialer, mails, filter)
	result := p.RunAll(context.Background(), []models.ProjectManager{
		{ID: 1, Email: "pm@example.com"},
	})

	if result.TotalStored != 1 {
		t.Fatalf("TotalStored = %d, want 1", result.TotalStored)
	}
	if result.Accounts[0].Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", result.Accounts[0].Duplicates)
	}
}

// TestPipeline_StoreDuplicateBackstop verifies that the store's unique
// index is honoured when the dedup filter misses: ErrDuplicateMail counts
// as a duplicate, not an error.
func TestPipeline_StoreDuplicateBackstop(t *testing.T) {
	mails := &mockMailStore{dupAfter: 1}
	dialer := &mockDialer{sessions: map[string]*mockSession{
		"pm@example.com": {messages: []models.IncomingMessage{
			msg("<m1@x>", "client@example.com", "first"),
			msg("<m2@x>", "client@example.com", "second"),
		}},
	}}

	p := testPipeline(dialer, mails, nil) // no filter: store is the backstop
	result := p.RunAll(context.Background(), []models.ProjectManager{
		{ID: 1, Email: "pm@example.com"},
	})

	ar := result.Accounts[0]
	if ar.Stored != 1 || ar.Duplicates != 1 || ar.Errors != 0 {
		t.Errorf("counters = (stored %d, dup %d, err %d), want (1, 1, 0)",
			ar.Stored, ar.Duplicates, ar.Errors)
	}
}

// TestPipeline_FilterErrorIsAdvisory verifies that a Redis failure does
// not block ingestion; the message proceeds to the store.
func TestPipeline_FilterErrorIsAdvisory(t *testing.T) {
	mails := &mockMailStore{}
	filter := &mockFilter{err: errors.New("redis down")}
	dialer := &mockDialer{sessions: map[string]*mockSession{
		"pm@example.com": {messages: []models.IncomingMessage{
			msg("<m1@x>", "client@example.com", "hello"),
		}},
	}}

	p := testPipeline(dialer, mails, filter)
	result := p.RunAll(context.Background(), []models.ProjectManager{
		{ID: 1, Email: "pm@example.com"},
	})

	if result.TotalStored != 1 {
		t.Fatalf("TotalStored = %d, want 1 — dedup failures must not drop mail", result.TotalStored)
	}
}

// TestPipeline_CancelledContextStopsPass verifies that cancellation stops
// the account loop between accounts.
func TestPipeline_CancelledContextStopsPass(t *testing.T) {
	mails := &mockMailStore{}
	dialer := &mockDialer{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := testPipeline(dialer, mails, nil)
	result := p.RunAll(ctx, []models.ProjectManager{
		{ID: 1, Email: "a@example.com"},
		{ID: 2, Email: "b@example.com"},
	})

	if len(result.Accounts) != 0 {
		t.Errorf("processed %d accounts under a cancelled context", len(result.Accounts))
	}
}
