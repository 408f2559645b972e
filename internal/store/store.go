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

// Package store provides the Postgres-backed data store for clients,
// project managers, recipients, and tracked mail records.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateMail is returned by CreateMail when a mail record with the
// same (pm_id, message_id) already exists. Callers treat it as "already
// ingested", not as a failure.
var ErrDuplicateMail = errors.New("mail record already exists")

// Store provides CRUD operations against Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store backed by the given Postgres pool.
// It ensures the schema exists on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	slog.Info("store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS clients (
			id          BIGSERIAL PRIMARY KEY,
			email       TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL,
			company     TEXT DEFAULT '',
			designation TEXT DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS project_managers (
			id              BIGSERIAL PRIMARY KEY,
			email           TEXT NOT NULL UNIQUE,
			name            TEXT NOT NULL,
			project_name    TEXT DEFAULT '',
			sealed_password TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS recipients (
			id    BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS client_recipients (
			client_id    BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
			recipient_id BIGINT NOT NULL REFERENCES recipients(id) ON DELETE CASCADE,
			PRIMARY KEY (client_id, recipient_id)
		);
		CREATE TABLE IF NOT EXISTS mails (
			id         BIGSERIAL PRIMARY KEY,
			client_id  BIGINT NOT NULL REFERENCES clients(id),
			pm_id      BIGINT NOT NULL REFERENCES project_managers(id),
			message_id TEXT NOT NULL,
			subject    TEXT NOT NULL,
			body       TEXT NOT NULL,
			is_read    BOOLEAN DEFAULT FALSE,
			is_replied BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			UNIQUE (pm_id, message_id)
		);
		CREATE INDEX IF NOT EXISTS idx_mails_client ON mails(client_id);
		CREATE INDEX IF NOT EXISTS idx_mails_pm ON mails(pm_id);
		CREATE INDEX IF NOT EXISTS idx_mails_unreplied ON mails(is_read, is_replied, created_at);
	`)
	return err
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
