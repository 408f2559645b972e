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

// Package notify sends outbound email over the SMTP relay. It carries
// two surfaces: per-record unreplied reminders sent with the project
// manager's own mailbox identity, and batched digests sent with the
// service account identity.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/codeautomation/mailwatch/internal/config"
	"github.com/codeautomation/mailwatch/internal/store"
)

// CredentialOpener unseals stored mailbox passwords. Implemented by
// secrets.Keeper.
type CredentialOpener interface {
	Open(sealed string) (string, error)
}

// Mailer sends reminders and digests over the configured SMTP relay.
type Mailer struct {
	cfg    config.SMTPConfig
	keeper CredentialOpener

	// send is swappable for tests.
	send func(d *gomail.Dialer, m *gomail.Message) error
}

// NewMailer creates a mailer for the given relay settings.
func NewMailer(cfg config.SMTPConfig, keeper CredentialOpener) *Mailer {
	return &Mailer{
		cfg:    cfg,
		keeper: keeper,
		send: func(d *gomail.Dialer, m *gomail.Message) error {
			return d.DialAndSend(m)
		},
	}
}

// SendReminder emails a project manager about one read-but-unreplied
// mail record. The reminder is sent to the manager's own address using
// their own mailbox credentials as the sending identity.
func (m *Mailer) SendReminder(ctx context.Context, rem store.UnrepliedMail) error {
	password, err := m.keeper.Open(rem.PMSealedPassword)
	if err != nil {
		return fmt.Errorf("unseal credentials for %s: %w", rem.PMEmail, err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", rem.PMEmail)
	msg.SetHeader("To", rem.PMEmail)
	msg.SetHeader("Subject", fmt.Sprintf("Reminder: unreplied email from %s", rem.ClientName))
	msg.SetHeader("Message-ID", fmt.Sprintf("<%s@mailwatch>", uuid.New()))
	msg.SetBody("text/plain", reminderBody(rem))

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, rem.PMEmail, password)
	dialer.SSL = true // implicit TLS on 465

	if err := m.sendWithTimeout(ctx, dialer, msg); err != nil {
		return fmt.Errorf("send reminder to %s: %w", rem.PMEmail, err)
	}

	slog.Info("reminder sent",
		"pm", rem.PMEmail,
		"client", rem.ClientEmail,
		"mail_id", rem.Mail.ID,
		"subject", rem.Mail.Subject,
	)

	return nil
}

// DigestKind selects which batch a digest summarises.
type DigestKind string

const (
	DigestUnread         DigestKind = "unread"
	DigestReadNotReplied DigestKind = "read_but_not_replied"
)

// DigestRequest describes one batched notification: every listed subject
// belongs to the same client/PM pair. CC carries the client's linked
// recipients.
type DigestRequest struct {
	PMEmail     string
	ClientEmail string
	Subjects    []string
	Kind        DigestKind
	CC          []string
}

// SendDigest emails a project manager (and any linked recipients) a
// summary of multiple mail records, using the service account identity.
func (m *Mailer) SendDigest(ctx context.Context, req DigestRequest) error {
	svc := m.cfg.ServiceAccount
	if svc.Address == "" || svc.Password == "" {
		return fmt.Errorf("smtp.service_account is not configured")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", svc.Address)
	msg.SetHeader("To", append([]string{req.PMEmail}, req.CC...)...)
	msg.SetHeader("Subject", digestSubject(req.Kind))
	msg.SetHeader("Message-ID", fmt.Sprintf("<%s@mailwatch>", uuid.New()))
	msg.SetBody("text/plain", digestBody(req))

	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, svc.Address, svc.Password)
	dialer.SSL = true

	if err := m.sendWithTimeout(ctx, dialer, msg); err != nil {
		return fmt.Errorf("send %s digest to %s: %w", req.Kind, req.PMEmail, err)
	}

	slog.Info("digest sent",
		"kind", req.Kind,
		"pm", req.PMEmail,
		"client", req.ClientEmail,
		"mails", len(req.Subjects),
		"cc", len(req.CC),
	)

	return nil
}

// sendWithTimeout runs a blocking gomail send under the configured
// deadline. gomail has no native timeout, so the send runs in a
// goroutine and the caller stops waiting when the deadline passes.
func (m *Mailer) sendWithTimeout(ctx context.Context, d *gomail.Dialer, msg *gomail.Message) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.send(d, msg)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp send timed out after %s", m.cfg.SendTimeout)
	}
}

// reminderBody formats the body of a single-record reminder.
func reminderBody(rem store.UnrepliedMail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", rem.PMName)
	fmt.Fprintf(&b, "You read the following email from %s <%s> but have not replied yet:\n\n",
		rem.ClientName, rem.ClientEmail)
	fmt.Fprintf(&b, "  Subject: %s\n", rem.Mail.Subject)
	fmt.Fprintf(&b, "  Received: %s\n", rem.Mail.CreatedAt.Format(time.RFC1123))
	b.WriteString("\nPlease follow up.\n")
	return b.String()
}

func digestSubject(kind DigestKind) string {
	if kind == DigestUnread {
		return "Unread Email Notification"
	}
	return "Read But Not Replied Email Notification"
}

// digestBody formats a batched summary, one line per mail subject.
func digestBody(req DigestRequest) string {
	var b strings.Builder
	if req.Kind == DigestUnread {
		fmt.Fprintf(&b, "You have unread emails from client %s:\n\n", req.ClientEmail)
	} else {
		fmt.Fprintf(&b, "You have read but not replied to the following emails from client %s:\n\n", req.ClientEmail)
	}
	for _, subject := range req.Subjects {
		fmt.Fprintf(&b, "  - Subject: %s\n", subject)
	}
	return b.String()
}
