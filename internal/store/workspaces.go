package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *PostgresStore) InsertWorkspace(ctx context.Context, workspace Workspace) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, owner_id, status)
		VALUES ($1, $2, $3, $4)
	`, workspace.ID, workspace.Name, workspace.OwnerID, workspace.Status)
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	var item Workspace
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, status, created_at, updated_at
		FROM workspaces
		WHERE id=$1
	`, workspaceID).Scan(&item.ID, &item.Name, &item.OwnerID, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Workspace{}, err
	}
	return item, nil
}

// ListWorkspacesForUser returns workspaces the user owns or is a member of.
func (s *PostgresStore) ListWorkspacesForUser(ctx context.Context, userID string) ([]Workspace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT w.id, w.name, w.owner_id, w.status, w.created_at, w.updated_at
		FROM workspaces w
		LEFT JOIN workspace_memberships wm ON wm.workspace_id = w.id
		WHERE w.owner_id=$1 OR wm.user_id=$1
		ORDER BY w.created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	defer rows.Close()

	items := make([]Workspace, 0)
	for rows.Next() {
		var item Workspace
		if err := rows.Scan(&item.ID, &item.Name, &item.OwnerID, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateWorkspace(ctx context.Context, workspaceID, name, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE workspaces SET name=$2, status=$3, updated_at=NOW()
		WHERE id=$1
	`, workspaceID, name, status)
	if err != nil {
		return fmt.Errorf("update workspace: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id=$1`, workspaceID)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}

// GetMembershipRole returns the stored role for (workspace, user), or "" when
// no membership row exists. Absence is a normal no-access result, not an error.
func (s *PostgresStore) GetMembershipRole(ctx context.Context, workspaceID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM workspace_memberships WHERE workspace_id=$1 AND user_id=$2
	`, workspaceID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read membership role: %w", err)
	}
	return role, nil
}

func (s *PostgresStore) UpsertMembership(ctx context.Context, membership Membership) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workspace_memberships (id, workspace_id, user_id, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workspace_id, user_id) DO UPDATE SET role=EXCLUDED.role
	`, membership.ID, membership.WorkspaceID, membership.UserID, membership.Role)
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteMembership(ctx context.Context, workspaceID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM workspace_memberships WHERE workspace_id=$1 AND user_id=$2
	`, workspaceID, userID)
	if err != nil {
		return false, fmt.Errorf("delete membership: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete membership rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListMemberships(ctx context.Context, workspaceID string) ([]Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wm.id, wm.workspace_id, wm.user_id, wm.role, wm.created_at, u.email, u.display_name
		FROM workspace_memberships wm
		JOIN users u ON u.id = wm.user_id
		WHERE wm.workspace_id=$1
		ORDER BY wm.created_at ASC
	`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	items := make([]Membership, 0)
	for rows.Next() {
		var item Membership
		if err := rows.Scan(&item.ID, &item.WorkspaceID, &item.UserID, &item.Role, &item.CreatedAt, &item.UserEmail, &item.UserName); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return items, nil
}

// WorkspaceIDForCategory resolves the owning workspace of a category.
// sql.ErrNoRows means the category itself does not exist.
func (s *PostgresStore) WorkspaceIDForCategory(ctx context.Context, categoryID string) (string, error) {
	var workspaceID string
	err := s.db.QueryRowContext(ctx, `
		SELECT workspace_id FROM categories WHERE id=$1
	`, categoryID).Scan(&workspaceID)
	if err != nil {
		return "", err
	}
	return workspaceID, nil
}

// WorkspaceIDForDocument walks document -> category -> workspace.
// sql.ErrNoRows means the document itself does not exist.
func (s *PostgresStore) WorkspaceIDForDocument(ctx context.Context, documentID string) (string, error) {
	var workspaceID string
	err := s.db.QueryRowContext(ctx, `
		SELECT c.workspace_id
		FROM documents d
		JOIN categories c ON c.id = d.category_id
		WHERE d.id=$1
	`, documentID).Scan(&workspaceID)
	if err != nil {
		return "", err
	}
	return workspaceID, nil
}
