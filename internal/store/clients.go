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

// CreateClient inserts a new client and fills in its generated ID.
func (s *Store) CreateClient(ctx context.Context, c *models.Client) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO clients (email, name, company, designation)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, c.Email, c.Name, c.Company, c.Designation).Scan(&c.ID)
}

// GetClient retrieves a client by ID. Returns (nil, nil) when absent.
func (s *Store) GetClient(ctx context.Context, id int64) (*models.Client, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, name, company, designation
		FROM clients
		WHERE id = $1
	`, id)
	return scanClient(row)
}

// GetClientByEmail retrieves a client by its unique email address,
// compared case-insensitively so a client stored as Foo@Client.com still
// resolves inbound mail from foo@client.com. Returns (nil, nil) when no
// client matches — the sender resolver relies on this to distinguish
// "unknown sender" from a store failure.
func (s *Store) GetClientByEmail(ctx context.Context, email string) (*models.Client, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, name, company, designation
		FROM clients
		WHERE LOWER(email) = LOWER($1)
	`, email)
	return scanClient(row)
}

// ListClients returns all clients ordered by name.
func (s *Store) ListClients(ctx context.Context) ([]models.Client, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, name, company, designation
		FROM clients
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.Email, &c.Name, &c.Company, &c.Designation); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// UpdateClient updates all mutable fields of a client. Returns
// (false, nil) when the client does not exist.
func (s *Store) UpdateClient(ctx context.Context, c models.Client) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE clients
		SET email = $1, name = $2, company = $3, designation = $4
		WHERE id = $5
	`, c.Email, c.Name, c.Company, c.Designation, c.ID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteClient removes a client. Returns (false, nil) when absent.
func (s *Store) DeleteClient(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanClient(row pgx.Row) (*models.Client, error) {
	var c models.Client
	err := row.Scan(&c.ID, &c.Email, &c.Name, &c.Company, &c.Designation)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
