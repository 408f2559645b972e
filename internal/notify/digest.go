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

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/codeautomation/mailwatch/internal/models"
)

// ErrPartyNotFound marks a digest request naming a client or project
// manager that does not exist. The API maps it to a 404.
var ErrPartyNotFound = errors.New("no such client or project manager")

// DigestStore is the data the digest service reads. Implemented by
// store.Store.
type DigestStore interface {
	GetClientByEmail(ctx context.Context, email string) (*models.Client, error)
	GetProjectManagerByEmail(ctx context.Context, email string) (*models.ProjectManager, error)
	ListUnreadMails(ctx context.Context, clientID, pmID int64) ([]models.Mail, error)
	ListReadUnrepliedMails(ctx context.Context, clientID, pmID int64) ([]models.Mail, error)
	RecipientsForClient(ctx context.Context, clientID int64) ([]models.Recipient, error)
}

// DigestSender sends one digest email. Implemented by Mailer.
type DigestSender interface {
	SendDigest(ctx context.Context, req DigestRequest) error
}

// DigestService builds and sends batched notifications for a client/PM
// pair. It is invoked from the API layer, not the scheduler.
type DigestService struct {
	store  DigestStore
	sender DigestSender
}

// NewDigestService creates a digest service.
func NewDigestService(store DigestStore, sender DigestSender) *DigestService {
	return &DigestService{store: store, sender: sender}
}

// DigestReport summarises one CheckMailStatus run.
type DigestReport struct {
	UnreadCount        int  `json:"unread_count"`
	UnreadSent         bool `json:"unread_sent"`
	ReadUnrepliedCount int  `json:"read_unreplied_count"`
	ReadUnrepliedSent  bool `json:"read_unreplied_sent"`
}

// CheckMailStatus looks up all unread and read-but-unreplied mail for a
// client/PM pair and sends one digest per non-empty batch. A send
// failure on one batch is logged and does not block the other.
func (d *DigestService) CheckMailStatus(ctx context.Context, clientEmail, pmEmail string) (DigestReport, error) {
	var report DigestReport

	client, err := d.store.GetClientByEmail(ctx, clientEmail)
	if err != nil {
		return report, fmt.Errorf("look up client %s: %w", clientEmail, err)
	}
	if client == nil {
		return report, fmt.Errorf("%w: client %s", ErrPartyNotFound, clientEmail)
	}

	pm, err := d.store.GetProjectManagerByEmail(ctx, pmEmail)
	if err != nil {
		return report, fmt.Errorf("look up project manager %s: %w", pmEmail, err)
	}
	if pm == nil {
		return report, fmt.Errorf("%w: project manager %s", ErrPartyNotFound, pmEmail)
	}

	recipients, err := d.store.RecipientsForClient(ctx, client.ID)
	if err != nil {
		return report, fmt.Errorf("list recipients for client %s: %w", clientEmail, err)
	}
	cc := make([]string, 0, len(recipients))
	for _, r := range recipients {
		cc = append(cc, r.Email)
	}

	unread, err := d.store.ListUnreadMails(ctx, client.ID, pm.ID)
	if err != nil {
		return report, fmt.Errorf("list unread mail: %w", err)
	}
	report.UnreadCount = len(unread)
	if len(unread) > 0 {
		report.UnreadSent = d.sendBatch(ctx, pm.Email, client.Email, unread, DigestUnread, cc)
	}

	stale, err := d.store.ListReadUnrepliedMails(ctx, client.ID, pm.ID)
	if err != nil {
		return report, fmt.Errorf("list read-unreplied mail: %w", err)
	}
	report.ReadUnrepliedCount = len(stale)
	if len(stale) > 0 {
		report.ReadUnrepliedSent = d.sendBatch(ctx, pm.Email, client.Email, stale, DigestReadNotReplied, cc)
	}

	return report, nil
}

func (d *DigestService) sendBatch(ctx context.Context, pmEmail, clientEmail string, mails []models.Mail, kind DigestKind, cc []string) bool {
	subjects := make([]string, 0, len(mails))
	for _, m := range mails {
		subjects = append(subjects, m.Subject)
	}

	err := d.sender.SendDigest(ctx, DigestRequest{
		PMEmail:     pmEmail,
		ClientEmail: clientEmail,
		Subjects:    subjects,
		Kind:        kind,
		CC:          cc,
	})
	if err != nil {
		slog.Error("digest send failed",
			"kind", kind,
			"pm", pmEmail,
			"client", clientEmail,
			"error", err,
		)
		return false
	}
	return true
}
