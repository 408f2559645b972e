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

// Package ingest drains unseen messages from each project manager's
// mailbox, resolves senders to known clients, and persists mail records.
// Every per-account and per-message failure is caught at its boundary
// and logged; one account's failure never blocks the others.
package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/codeautomation/mailwatch/internal/mailbox"
	"github.com/codeautomation/mailwatch/internal/models"
	"github.com/codeautomation/mailwatch/internal/store"
)

// MailStore persists mail records. Implemented by store.Store.
type MailStore interface {
	CreateMail(ctx context.Context, m *models.Mail) error
}

// Filter skips messages that have already been ingested. Implemented by
// dedup.Filter.
type Filter interface {
	IsNew(ctx context.Context, messageID string) (bool, error)
}

// CredentialOpener unseals stored mailbox passwords. Implemented by
// secrets.Keeper.
type CredentialOpener interface {
	Open(sealed string) (string, error)
}

// Pipeline ingests unseen mailbox messages for project managers.
type Pipeline struct {
	dialer   mailbox.Dialer
	resolver *Resolver
	mails    MailStore
	filter   Filter
	keeper   CredentialOpener
}

// PipelineConfig holds the dependencies for the ingestion pipeline.
type PipelineConfig struct {
	Dialer   mailbox.Dialer
	Resolver *Resolver
	Mails    MailStore
	Filter   Filter
	Keeper   CredentialOpener
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		dialer:   cfg.Dialer,
		resolver: cfg.Resolver,
		mails:    cfg.Mails,
		filter:   cfg.Filter,
		keeper:   cfg.Keeper,
	}
}

// AccountResult tracks per-account ingestion counters.
type AccountResult struct {
	PMEmail    string
	Fetched    int
	Stored     int
	Unknown    int // unresolvable senders, skipped
	Malformed  int // unparsable From headers, skipped
	Duplicates int
	Errors     int
}

// RunResult summarises one ingestion pass over all project managers.
type RunResult struct {
	Accounts       []AccountResult
	TotalStored    int
	FailedAccounts int
}

// RunAll processes every project manager in sequence. A total failure on
// one account (connection, auth, missing credentials) is logged and the
// run continues with the next account.
func (p *Pipeline) RunAll(ctx context.Context, pms []models.ProjectManager) RunResult {
	var result RunResult

	for _, pm := range pms {
		if err := ctx.Err(); err != nil {
			slog.Warn("ingestion pass cancelled", "remaining", len(pms)-len(result.Accounts))
			return result
		}

		ar, err := p.runAccount(ctx, pm)
		if err != nil {
			slog.Error("ingestion failed for account",
				"pm", pm.Email,
				"error", err,
			)
			result.FailedAccounts++
		}

		result.Accounts = append(result.Accounts, ar)
		result.TotalStored += ar.Stored
	}

	return result
}

// runAccount drains one project manager's mailbox. The session is always
// closed before returning, on every path.
func (p *Pipeline) runAccount(ctx context.Context, pm models.ProjectManager) (AccountResult, error) {
	ar := AccountResult{PMEmail: pm.Email}

	account := mailbox.Account{Address: pm.Email}
	if pm.SealedPassword != "" && p.keeper != nil {
		password, err := p.keeper.Open(pm.SealedPassword)
		if err != nil {
			return ar, err
		}
		account.Password = password
	}

	sess, err := p.dialer.Dial(ctx, account)
	if err != nil {
		return ar, err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Warn("mailbox session close failed", "pm", pm.Email, "error", err)
		}
	}()

	messages, err := sess.FetchUnseen(ctx)
	if err != nil {
		return ar, err
	}

	ar.Fetched = len(messages)

	for _, msg := range messages {
		p.processMessage(ctx, pm, msg, &ar)
	}

	if ar.Fetched > 0 {
		slog.Info("mailbox drained",
			"pm", pm.Email,
			"fetched", ar.Fetched,
			"stored", ar.Stored,
			"unknown_senders", ar.Unknown,
			"duplicates", ar.Duplicates,
		)
	}

	return ar, nil
}

// processMessage resolves and persists a single message. All failure
// modes are recoverable: the message is skipped and the drain continues.
func (p *Pipeline) processMessage(ctx context.Context, pm models.ProjectManager, msg models.IncomingMessage, ar *AccountResult) {
	if p.filter != nil {
		isNew, err := p.filter.IsNew(ctx, msg.MessageID)
		if err != nil {
			// Dedup is advisory; the store's unique index is the backstop.
			slog.Warn("dedup check failed", "message_id", msg.MessageID, "error", err)
		} else if !isNew {
			ar.Duplicates++
			return
		}
	}

	client, err := p.resolver.Resolve(ctx, msg.From)
	switch {
	case errors.Is(err, ErrUnknownSender):
		slog.Info("skipping message from unknown sender",
			"pm", pm.Email,
			"from", msg.From,
		)
		ar.Unknown++
		return
	case errors.Is(err, ErrMalformedSender):
		slog.Warn("skipping message with malformed sender header",
			"pm", pm.Email,
			"from", msg.From,
		)
		ar.Malformed++
		return
	case err != nil:
		slog.Error("sender resolution failed",
			"pm", pm.Email,
			"from", msg.From,
			"error", err,
		)
		ar.Errors++
		return
	}

	record := &models.Mail{
		ClientID:  client.ID,
		PMID:      pm.ID,
		MessageID: msg.MessageID,
		Subject:   msg.Subject,
		Body:      msg.Body,
	}

	err = p.mails.CreateMail(ctx, record)
	switch {
	case errors.Is(err, store.ErrDuplicateMail):
		ar.Duplicates++
	case err != nil:
		slog.Error("failed to persist mail record",
			"pm", pm.Email,
			"message_id", msg.MessageID,
			"error", err,
		)
		ar.Errors++
	default:
		ar.Stored++
	}
}
