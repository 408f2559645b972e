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

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/codeautomation/mailwatch/internal/models"
)

// UnrepliedMail is a mail record joined with the parties the unreplied
// scanner needs: the owning project manager (the reminder recipient and
// sending identity) and the originating client.
type UnrepliedMail struct {
	Mail             models.Mail
	PMEmail          string
	PMName           string
	PMSealedPassword string
	ClientEmail      string
	ClientName       string
}

// MailFilter narrows detailed mail listings by client or project manager
// attributes. Zero-valued fields are ignored.
type MailFilter struct {
	ClientName    string
	ClientEmail   string
	ClientCompany string
	PMName        string
	PMEmail       string
	ProjectName   string
}

// MailDetail is a mail record joined with its client and project manager
// for API responses.
type MailDetail struct {
	Mail   models.Mail           `json:"email"`
	Client models.Client         `json:"client"`
	PM     models.ProjectManager `json:"project_manager"`
}

// CreateMail inserts a new mail record and fills in its generated ID and
// creation time. Returns ErrDuplicateMail when the (pm_id, message_id)
// pair has already been ingested, making retries idempotent.
func (s *Store) CreateMail(ctx context.Context, m *models.Mail) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO mails (client_id, pm_id, message_id, subject, body, is_read, is_replied)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, m.ClientID, m.PMID, m.MessageID, m.Subject, m.Body, m.IsRead, m.IsReplied).
		Scan(&m.ID, &m.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateMail
	}
	return err
}

// GetMail retrieves a mail record by ID. Returns (nil, nil) when absent.
func (s *Store) GetMail(ctx context.Context, id int64) (*models.Mail, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, client_id, pm_id, message_id, subject, body, is_read, is_replied, created_at
		FROM mails
		WHERE id = $1
	`, id)

	var m models.Mail
	err := row.Scan(&m.ID, &m.ClientID, &m.PMID, &m.MessageID, &m.Subject,
		&m.Body, &m.IsRead, &m.IsReplied, &m.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMailStatus updates the subject, body, read/reply flags, and
// optionally the owning parties of a mail record. A zero ClientID or
// PMID keeps the stored value. A replied mail is always marked read,
// keeping the is_replied-implies-is_read invariant regardless of caller
// input. Returns (false, nil) when the record does not exist.
func (s *Store) UpdateMailStatus(ctx context.Context, m models.Mail) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE mails
		SET subject = $1, body = $2,
		    is_read = ($3 OR $4),
		    is_replied = $4,
		    client_id = CASE WHEN $5 = 0 THEN client_id ELSE $5 END,
		    pm_id = CASE WHEN $6 = 0 THEN pm_id ELSE $6 END
		WHERE id = $7
	`, m.Subject, m.Body, m.IsRead, m.IsReplied, m.ClientID, m.PMID, m.ID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteMail removes a mail record. Returns (false, nil) when absent.
// Only the API deletes mail; the background job never does.
func (s *Store) DeleteMail(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM mails WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListMailsDetailed returns mail records joined with their client and
// project manager, optionally narrowed by filter fields.
func (s *Store) ListMailsDetailed(ctx context.Context, f MailFilter) ([]MailDetail, error) {
	query := `
		SELECT m.id, m.client_id, m.pm_id, m.message_id, m.subject, m.body,
		       m.is_read, m.is_replied, m.created_at,
		       c.id, c.email, c.name, c.company, c.designation,
		       p.id, p.email, p.name, p.project_name
		FROM mails m
		JOIN clients c ON c.id = m.client_id
		JOIN project_managers p ON p.id = m.pm_id
	`

	var (
		conds []string
		args  []any
	)
	add := func(cond string, v string) {
		if v != "" {
			args = append(args, v)
			conds = append(conds, fmt.Sprintf(cond, len(args)))
		}
	}
	add("c.name = $%d", f.ClientName)
	add("c.email = $%d", f.ClientEmail)
	add("c.company = $%d", f.ClientCompany)
	add("p.name = $%d", f.PMName)
	add("p.email = $%d", f.PMEmail)
	add("p.project_name = $%d", f.ProjectName)

	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY m.created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []MailDetail
	for rows.Next() {
		var d MailDetail
		if err := rows.Scan(
			&d.Mail.ID, &d.Mail.ClientID, &d.Mail.PMID, &d.Mail.MessageID,
			&d.Mail.Subject, &d.Mail.Body, &d.Mail.IsRead, &d.Mail.IsReplied,
			&d.Mail.CreatedAt,
			&d.Client.ID, &d.Client.Email, &d.Client.Name, &d.Client.Company,
			&d.Client.Designation,
			&d.PM.ID, &d.PM.Email, &d.PM.Name, &d.PM.ProjectName,
		); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// ListUnrepliedBefore returns mail records that are read but not replied
// and were created before the cutoff, joined with the parties needed for
// escalation.
func (s *Store) ListUnrepliedBefore(ctx context.Context, cutoff time.Time) ([]UnrepliedMail, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.client_id, m.pm_id, m.message_id, m.subject, m.body,
		       m.is_read, m.is_replied, m.created_at,
		       p.email, p.name, p.sealed_password,
		       c.email, c.name
		FROM mails m
		JOIN project_managers p ON p.id = m.pm_id
		JOIN clients c ON c.id = m.client_id
		WHERE m.is_read = TRUE AND m.is_replied = FALSE AND m.created_at < $1
		ORDER BY m.created_at
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []UnrepliedMail
	for rows.Next() {
		var u UnrepliedMail
		if err := rows.Scan(
			&u.Mail.ID, &u.Mail.ClientID, &u.Mail.PMID, &u.Mail.MessageID,
			&u.Mail.Subject, &u.Mail.Body, &u.Mail.IsRead, &u.Mail.IsReplied,
			&u.Mail.CreatedAt,
			&u.PMEmail, &u.PMName, &u.PMSealedPassword,
			&u.ClientEmail, &u.ClientName,
		); err != nil {
			return nil, err
		}
		stale = append(stale, u)
	}
	return stale, rows.Err()
}

// ListUnreadMails returns unread mail for a client/PM pair, oldest first.
// Backs the "unread" digest.
func (s *Store) ListUnreadMails(ctx context.Context, clientID, pmID int64) ([]models.Mail, error) {
	return s.listPair(ctx, `
		SELECT id, client_id, pm_id, message_id, subject, body, is_read, is_replied, created_at
		FROM mails
		WHERE client_id = $1 AND pm_id = $2 AND is_read = FALSE
		ORDER BY created_at
	`, clientID, pmID)
}

// ListReadUnrepliedMails returns read-but-unreplied mail for a client/PM
// pair, oldest first. Backs the "read but not replied" digest.
func (s *Store) ListReadUnrepliedMails(ctx context.Context, clientID, pmID int64) ([]models.Mail, error) {
	return s.listPair(ctx, `
		SELECT id, client_id, pm_id, message_id, subject, body, is_read, is_replied, created_at
		FROM mails
		WHERE client_id = $1 AND pm_id = $2 AND is_read = TRUE AND is_replied = FALSE
		ORDER BY created_at
	`, clientID, pmID)
}

func (s *Store) listPair(ctx context.Context, query string, clientID, pmID int64) ([]models.Mail, error) {
	rows, err := s.pool.Query(ctx, query, clientID, pmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mails []models.Mail
	for rows.Next() {
		var m models.Mail
		if err := rows.Scan(&m.ID, &m.ClientID, &m.PMID, &m.MessageID, &m.Subject,
			&m.Body, &m.IsRead, &m.IsReplied, &m.CreatedAt); err != nil {
			return nil, err
		}
		mails = append(mails, m)
	}
	return mails, rows.Err()
}
