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

	"github.com/jackc/pgx/v5"

	"github.com/codeautomation/mailwatch/internal/models"
)

// CreateRecipient inserts a new recipient and fills in its generated ID.
func (s *Store) CreateRecipient(ctx context.Context, r *models.Recipient) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO recipients (email) VALUES ($1) RETURNING id
	`, r.Email).Scan(&r.ID)
}

// GetRecipient retrieves a recipient by ID. Returns (nil, nil) when absent.
func (s *Store) GetRecipient(ctx context.Context, id int64) (*models.Recipient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email FROM recipients WHERE id = $1
	`, id)

	var r models.Recipient
	err := row.Scan(&r.ID, &r.Email)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecipients returns all recipients ordered by email.
func (s *Store) ListRecipients(ctx context.Context) ([]models.Recipient, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, email FROM recipients ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecipients(rows)
}

// DeleteRecipient removes a recipient. Returns (false, nil) when absent.
func (s *Store) DeleteRecipient(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM recipients WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// LinkRecipient associates a recipient with a client. Linking twice is a
// no-op.
func (s *Store) LinkRecipient(ctx context.Context, clientID, recipientID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO client_recipients (client_id, recipient_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, clientID, recipientID)
	return err
}

// UnlinkRecipient removes a client-recipient association. Returns
// (false, nil) when no such link exists.
func (s *Store) UnlinkRecipient(ctx context.Context, clientID, recipientID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM client_recipients
		WHERE client_id = $1 AND recipient_id = $2
	`, clientID, recipientID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListClientRecipients returns all client-recipient links.
func (s *Store) ListClientRecipients(ctx context.Context) ([]models.ClientRecipient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT client_id, recipient_id
		FROM client_recipients
		ORDER BY client_id, recipient_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []models.ClientRecipient
	for rows.Next() {
		var l models.ClientRecipient
		if err := rows.Scan(&l.ClientID, &l.RecipientID); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// RecipientsForClient returns the recipients linked to a client. Digest
// notifications copy these addresses alongside the project manager.
func (s *Store) RecipientsForClient(ctx context.Context, clientID int64) ([]models.Recipient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.email
		FROM recipients r
		JOIN client_recipients cr ON cr.recipient_id = r.id
		WHERE cr.client_id = $1
		ORDER BY r.email
	`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecipients(rows)
}

func collectRecipients(rows pgx.Rows) ([]models.Recipient, error) {
	var recipients []models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.ID, &r.Email); err != nil {
			return nil, err
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}
