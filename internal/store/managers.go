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

// CreateProjectManager inserts a new project manager. The password must
// already be sealed by the secrets keeper.
func (s *Store) CreateProjectManager(ctx context.Context, pm *models.ProjectManager) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO project_managers (email, name, project_name, sealed_password)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, pm.Email, pm.Name, pm.ProjectName, pm.SealedPassword).Scan(&pm.ID)
}

// GetProjectManager retrieves a project manager by ID. Returns (nil, nil)
// when absent.
func (s *Store) GetProjectManager(ctx context.Context, id int64) (*models.ProjectManager, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, name, project_name, sealed_password
		FROM project_managers
		WHERE id = $1
	`, id)
	return scanManager(row)
}

// GetProjectManagerByEmail retrieves a project manager by email,
// compared case-insensitively. Returns (nil, nil) when absent.
func (s *Store) GetProjectManagerByEmail(ctx context.Context, email string) (*models.ProjectManager, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, name, project_name, sealed_password
		FROM project_managers
		WHERE LOWER(email) = LOWER($1)
	`, email)
	return scanManager(row)
}

// ListProjectManagers returns all project managers ordered by email.
// This is the set of mailboxes the scheduler polls each tick.
func (s *Store) ListProjectManagers(ctx context.Context) ([]models.ProjectManager, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, email, name, project_name, sealed_password
		FROM project_managers
		ORDER BY email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pms []models.ProjectManager
	for rows.Next() {
		var pm models.ProjectManager
		if err := rows.Scan(&pm.ID, &pm.Email, &pm.Name, &pm.ProjectName, &pm.SealedPassword); err != nil {
			return nil, err
		}
		pms = append(pms, pm)
	}
	return pms, rows.Err()
}

// UpdateProjectManager updates all mutable fields. An empty
// SealedPassword keeps the stored credential. Returns (false, nil) when
// the manager does not exist.
func (s *Store) UpdateProjectManager(ctx context.Context, pm models.ProjectManager) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE project_managers
		SET email = $1, name = $2, project_name = $3,
		    sealed_password = CASE WHEN $4 = '' THEN sealed_password ELSE $4 END
		WHERE id = $5
	`, pm.Email, pm.Name, pm.ProjectName, pm.SealedPassword, pm.ID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteProjectManager removes a project manager. Returns (false, nil)
// when absent.
func (s *Store) DeleteProjectManager(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM project_managers WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanManager(row pgx.Row) (*models.ProjectManager, error) {
	var pm models.ProjectManager
	err := row.Scan(&pm.ID, &pm.Email, &pm.Name, &pm.ProjectName, &pm.SealedPassword)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pm, nil
}
