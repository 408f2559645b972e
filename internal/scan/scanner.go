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

// Package scan finds mail records that were read but not replied to
// within the configured threshold and escalates each one to its owning
// project manager. A Redis-backed cooldown keeps a stale record from
// re-notifying on every scheduler tick.
package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeautomation/mailwatch/internal/store"
)

// MailSource lists escalation candidates. Implemented by store.Store.
type MailSource interface {
	ListUnrepliedBefore(ctx context.Context, cutoff time.Time) ([]store.UnrepliedMail, error)
}

// Gate rate-limits reminders per mail record. Implemented by
// dedup.Cooldown. Allow checks the window; Mark opens it, and is only
// called after a successful send so a transient SMTP failure does not
// consume the window. A nil gate means every pass re-notifies, which
// was the legacy behaviour.
type Gate interface {
	Allow(ctx context.Context, mailID int64) (bool, error)
	Mark(ctx context.Context, mailID int64) error
}

// Notifier sends one reminder. Implemented by notify.Mailer.
type Notifier interface {
	SendReminder(ctx context.Context, rem store.UnrepliedMail) error
}

// Scanner performs one escalation pass per invocation.
type Scanner struct {
	mails     MailSource
	gate      Gate
	notifier  Notifier
	threshold time.Duration
	now       func() time.Time
}

// ScannerConfig holds the dependencies for the unreplied scanner.
type ScannerConfig struct {
	Mails     MailSource
	Gate      Gate
	Notifier  Notifier
	Threshold time.Duration
	Now       func() time.Time // defaults to time.Now
}

// NewScanner creates an unreplied scanner.
func NewScanner(cfg ScannerConfig) *Scanner {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scanner{
		mails:     cfg.Mails,
		gate:      cfg.Gate,
		notifier:  cfg.Notifier,
		threshold: cfg.Threshold,
		now:       now,
	}
}

// Result summarises one scanner pass.
type Result struct {
	Scanned    int
	Notified   int
	Suppressed int // within cooldown
	Errors     int
}

// Run scans the full candidate set once. Notification failures are
// logged and never abort the pass.
func (s *Scanner) Run(ctx context.Context) Result {
	var result Result

	cutoff := s.now().Add(-s.threshold)

	stale, err := s.mails.ListUnrepliedBefore(ctx, cutoff)
	if err != nil {
		slog.Error("failed to list unreplied mail", "error", err)
		result.Errors++
		return result
	}

	result.Scanned = len(stale)

	for _, rem := range stale {
		if err := ctx.Err(); err != nil {
			slog.Warn("scanner pass cancelled", "notified", result.Notified)
			return result
		}

		if s.gate != nil {
			allowed, err := s.gate.Allow(ctx, rem.Mail.ID)
			if err != nil {
				slog.Warn("cooldown check failed, notifying anyway",
					"mail_id", rem.Mail.ID,
					"error", err,
				)
			} else if !allowed {
				result.Suppressed++
				continue
			}
		}

		if err := s.notifier.SendReminder(ctx, rem); err != nil {
			slog.Error("reminder failed",
				"pm", rem.PMEmail,
				"mail_id", rem.Mail.ID,
				"error", err,
			)
			result.Errors++
			continue
		}

		result.Notified++

		if s.gate != nil {
			if err := s.gate.Mark(ctx, rem.Mail.ID); err != nil {
				// Worst case the next pass re-notifies once.
				slog.Warn("failed to open cooldown window",
					"mail_id", rem.Mail.ID,
					"error", err,
				)
			}
		}
	}

	if result.Scanned > 0 {
		slog.Info("unreplied scan complete",
			"scanned", result.Scanned,
			"notified", result.Notified,
			"suppressed", result.Suppressed,
			"errors", result.Errors,
		)
	}

	return result
}
